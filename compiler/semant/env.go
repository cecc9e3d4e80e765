// Package semant holds the type and class environment used during
// semantic analysis: the global class table with single inheritance and
// the stack of lexical scopes for local bindings.
package semant

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("coolc.semant")

// ParamDecl is an unresolved formal parameter as written in the source.
type ParamDecl struct {
	Name string
	Type string
}

// Env is the class table plus the scope stack. It is built by a single
// analysis pass and is not safe for concurrent use.
type Env struct {
	classes []*Class
	byName  map[string]ClassID

	scopes     []*Scope
	scopeCount int // scopes ever opened, used to mint temporary names
}

// NewEnv creates an environment knowing only the built-in types.
func NewEnv() *Env {
	return &Env{
		byName: make(map[string]ClassID),
	}
}

// ---------------------------------------------------------------------------
// Type resolution
// ---------------------------------------------------------------------------

// TypeDeclared reports whether name is a built-in or a declared class.
func (e *Env) TypeDeclared(name string) bool {
	if IsBuiltin(name) {
		return true
	}
	_, ok := e.byName[name]
	return ok
}

// ResolveType maps a type name to a Type.
func (e *Env) ResolveType(name string) (Type, error) {
	if t, ok := builtinTypes[name]; ok {
		return t, nil
	}
	if id, ok := e.byName[name]; ok {
		return Custom(id), nil
	}
	return Type{}, fmt.Errorf("%w: %s", ErrUndeclaredType, name)
}

// TypeName returns the source name of t.
func (e *Env) TypeName(t Type) string {
	if c, ok := e.ClassOf(t); ok {
		return c.Name
	}
	return t.String()
}

// Class returns the declared class called name.
func (e *Env) Class(name string) (*Class, bool) {
	id, ok := e.byName[name]
	if !ok {
		return nil, false
	}
	return e.classes[id], true
}

// ClassOf returns the class behind a custom type.
func (e *Env) ClassOf(t Type) (*Class, bool) {
	if t.Kind != KindCustom || int(t.Class) < 0 || int(t.Class) >= len(e.classes) {
		return nil, false
	}
	return e.classes[t.Class], true
}

// Classes returns the declared classes in declaration order.
func (e *Env) Classes() []*Class {
	out := make([]*Class, len(e.classes))
	copy(out, e.classes)
	return out
}

// parentOf returns the parent of t. Object has none.
func (e *Env) parentOf(t Type) (Type, bool) {
	switch t.Kind {
	case KindObject:
		return Type{}, false
	case KindCustom:
		c, ok := e.ClassOf(t)
		if !ok {
			return Type{}, false
		}
		return c.Parent, true
	case KindInvalid:
		return Type{}, false
	}
	return Object, true
}

// Ancestors returns the parents of t, nearest first, ending with Object.
func (e *Env) Ancestors(t Type) []Type {
	var out []Type
	for p, ok := e.parentOf(t); ok; p, ok = e.parentOf(p) {
		out = append(out, p)
	}
	return out
}

// Conforms reports whether a is b or inherits from b.
func (e *Env) Conforms(a, b Type) bool {
	if a == b {
		return true
	}
	for _, p := range e.Ancestors(a) {
		if p == b {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Class table
// ---------------------------------------------------------------------------

// DeclareClass registers a new empty class. An empty parent means Object.
func (e *Env) DeclareClass(name, parent string) error {
	if e.TypeDeclared(name) {
		return fmt.Errorf("%w: class %s", ErrDuplicateClass, name)
	}

	parentType := Object
	if parent != "" {
		if !IsInheritable(parent) {
			return fmt.Errorf("%w: class %s cannot inherit from %s", ErrNotInheritable, name, parent)
		}
		t, err := e.ResolveType(parent)
		if err != nil {
			return fmt.Errorf("parent of class %s: %w", name, err)
		}
		parentType = t
	}

	id := ClassID(len(e.classes))
	e.classes = append(e.classes, newClass(id, name, parentType))
	e.byName[name] = id

	log.Debugf("declared class %s inherits %s", name, e.TypeName(parentType))
	return nil
}

// ownerClass resolves the class features are being added to.
func (e *Env) ownerClass(name string) (*Class, error) {
	if IsBuiltin(name) {
		return nil, fmt.Errorf("%w: %s", ErrBuiltinClass, name)
	}
	c, ok := e.Class(name)
	if !ok {
		return nil, fmt.Errorf("%w: class %s", ErrUndeclaredType, name)
	}
	return c, nil
}

// DefineMemberVariable adds a member variable to class.
func (e *Env) DefineMemberVariable(class, name, typ string) error {
	c, err := e.ownerClass(class)
	if err != nil {
		return err
	}
	t, err := e.ResolveType(typ)
	if err != nil {
		return fmt.Errorf("member %s.%s: %w", class, name, err)
	}
	if e.exposes(c.Type(), name) {
		return fmt.Errorf("%w: %s already contains %s", ErrDuplicateFeature, class, name)
	}

	c.put(&Member{Name: name, Type: t})
	log.Debugf("defined member %s.%s : %s", class, name, typ)
	return nil
}

// DefineMethod adds a new method to class. The name must not already be
// visible on the class, inherited or not; use RedefineMethod to override.
func (e *Env) DefineMethod(class, name string, params []ParamDecl, ret string) error {
	c, m, err := e.buildMethod(class, name, params, ret)
	if err != nil {
		return err
	}
	if e.exposes(c.Type(), name) {
		return fmt.Errorf("%w: %s already contains method %s", ErrDuplicateFeature, class, name)
	}

	c.put(m)
	log.Debugf("defined method %s", m.Label())
	return nil
}

// RedefineMethod replaces a method that class already has, either its own
// or inherited. The parameter list may differ from the one it replaces.
func (e *Env) RedefineMethod(class, name string, params []ParamDecl, ret string) error {
	c, m, err := e.buildMethod(class, name, params, ret)
	if err != nil {
		return err
	}
	if !e.ContainsMethod(c.Type(), name) {
		return fmt.Errorf("%w: %s on %s", ErrUndefinedMethod, name, class)
	}

	c.put(m)
	log.Debugf("redefined method %s", m.Label())
	return nil
}

// buildMethod resolves every type of a method signature.
func (e *Env) buildMethod(class, name string, params []ParamDecl, ret string) (*Class, *Method, error) {
	c, err := e.ownerClass(class)
	if err != nil {
		return nil, nil, err
	}

	m := &Method{
		Name:      name,
		Owner:     c.Type(),
		OwnerName: c.Name,
		Params:    make([]Param, 0, len(params)),
	}
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		t, err := e.ResolveType(p.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: type %s of parameter %s of %s.%s", ErrUndeclaredType, p.Type, p.Name, class, name)
		}
		if seen[p.Name] {
			return nil, nil, fmt.Errorf("%w: %s in %s.%s", ErrDuplicateParameter, p.Name, class, name)
		}
		seen[p.Name] = true
		m.Params = append(m.Params, Param{Name: p.Name, Type: t})
	}

	m.Return, err = e.ResolveType(ret)
	if err != nil {
		return nil, nil, fmt.Errorf("return type of %s.%s: %w", class, name, err)
	}
	return c, m, nil
}

// ---------------------------------------------------------------------------
// Feature lookup through the inheritance chain
// ---------------------------------------------------------------------------

// lookupFeature finds the nearest declaration of name on t or its ancestors.
func (e *Env) lookupFeature(t Type, name string) (Feature, bool) {
	for cur, ok := t, true; ok; cur, ok = e.parentOf(cur) {
		if c, isClass := e.ClassOf(cur); isClass {
			if f, found := c.Feature(name); found {
				return f, true
			}
			continue
		}
		if m, found := lookupBuiltinMethod(cur.Kind, name); found {
			return m, true
		}
	}
	return nil, false
}

// exposes reports whether any feature called name is visible on t.
func (e *Env) exposes(t Type, name string) bool {
	_, ok := e.lookupFeature(t, name)
	return ok
}

// ContainsMemberVariable reports whether t or an ancestor declares a
// member variable called name.
func (e *Env) ContainsMemberVariable(t Type, name string) bool {
	_, ok := e.MemberType(t, name)
	return ok
}

// ContainsMethod reports whether t or an ancestor declares a method
// called name.
func (e *Env) ContainsMethod(t Type, name string) bool {
	_, ok := e.LookupMethod(t, name)
	return ok
}

// MemberType returns the declared type of the nearest member called name.
func (e *Env) MemberType(t Type, name string) (Type, bool) {
	f, ok := e.lookupFeature(t, name)
	if !ok {
		return Type{}, false
	}
	m, isMember := f.(*Member)
	if !isMember {
		return Type{}, false
	}
	return m.Type, true
}

// LookupMethod returns the nearest method called name, following overrides.
func (e *Env) LookupMethod(t Type, name string) (*Method, bool) {
	f, ok := e.lookupFeature(t, name)
	if !ok {
		return nil, false
	}
	m, isMethod := f.(*Method)
	return m, isMethod
}
