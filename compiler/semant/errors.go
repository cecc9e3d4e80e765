package semant

import "errors"

// Semantic errors. Every error returned by Env wraps exactly one of these
// together with the offending names.
var (
	ErrDuplicateClass     = errors.New("class already defined")
	ErrNotInheritable     = errors.New("type cannot be inherited")
	ErrUndeclaredType     = errors.New("type is not declared")
	ErrBuiltinClass       = errors.New("cannot add features to a built-in type")
	ErrDuplicateFeature   = errors.New("feature already defined")
	ErrUndefinedMethod    = errors.New("method is not defined")
	ErrDuplicateParameter = errors.New("duplicate parameter")
	ErrDuplicateVariable  = errors.New("variable already defined in this scope")
	ErrNoScope            = errors.New("no open scope")
)
