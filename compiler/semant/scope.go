package semant

import "fmt"

// ---------------------------------------------------------------------------
// Lexical scopes
// ---------------------------------------------------------------------------

// Scope maps local names to their types within one lexical block.
type Scope struct {
	serial int
	vars   map[string]Type
	temps  int
}

func newScope(serial int) *Scope {
	return &Scope{
		serial: serial,
		vars:   make(map[string]Type),
	}
}

// Lookup returns the type bound to name in this scope only.
func (s *Scope) Lookup(name string) (Type, bool) {
	t, ok := s.vars[name]
	return t, ok
}

// Len returns the number of bindings in the scope.
func (s *Scope) Len() int {
	return len(s.vars)
}

// StartScope pushes a fresh scope.
func (e *Env) StartScope() {
	e.scopeCount++
	e.scopes = append(e.scopes, newScope(e.scopeCount))
	log.Debugf("enter scope %d (depth %d)", e.scopeCount, len(e.scopes))
}

// EndScope pops the innermost scope.
func (e *Env) EndScope() error {
	if len(e.scopes) == 0 {
		return ErrNoScope
	}
	top := e.scopes[len(e.scopes)-1]
	e.scopes = e.scopes[:len(e.scopes)-1]
	log.Debugf("leave scope %d (%d bindings)", top.serial, top.Len())
	return nil
}

// ScopeDepth returns the number of open scopes.
func (e *Env) ScopeDepth() int {
	return len(e.scopes)
}

// CurrentScope returns the innermost open scope.
func (e *Env) CurrentScope() (*Scope, bool) {
	if len(e.scopes) == 0 {
		return nil, false
	}
	return e.scopes[len(e.scopes)-1], true
}

// AddVariable binds name in the innermost scope. Shadowing a binding of an
// enclosing scope is allowed; rebinding within the same scope is not.
func (e *Env) AddVariable(name, typ string) error {
	t, err := e.ResolveType(typ)
	if err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}
	s, ok := e.CurrentScope()
	if !ok {
		return fmt.Errorf("%w: cannot bind %s", ErrNoScope, name)
	}
	if _, exists := s.vars[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateVariable, name)
	}
	s.vars[name] = t
	return nil
}

// AddTemporary binds a freshly minted name of type typ in the innermost
// scope and returns it. Minted names contain '$', which no identifier can,
// and carry the scope's serial number so they are unique for the whole run.
func (e *Env) AddTemporary(typ string) (string, error) {
	t, err := e.ResolveType(typ)
	if err != nil {
		return "", fmt.Errorf("temporary: %w", err)
	}
	s, ok := e.CurrentScope()
	if !ok {
		return "", fmt.Errorf("%w: cannot bind temporary", ErrNoScope)
	}
	name := fmt.Sprintf("$t%d_%d", s.serial, s.temps)
	s.temps++
	s.vars[name] = t
	return name, nil
}

// LookupVariable resolves name from the innermost scope outwards.
func (e *Env) LookupVariable(name string) (Type, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if t, ok := e.scopes[i].vars[name]; ok {
			return t, true
		}
	}
	return Type{}, false
}
