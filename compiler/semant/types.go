package semant

import "fmt"

// Kind distinguishes the built-in types from user-declared classes.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindObject
	KindString
	KindBool
	KindInt
	KindIO
	KindCustom
)

// ClassID indexes a user-declared class in the environment's arena.
type ClassID int

// Type is a resolved type. Custom types refer to their class by ID; the
// environment owns the class itself.
type Type struct {
	Kind  Kind
	Class ClassID // meaningful only for KindCustom
}

// Built-in types.
var (
	Object = Type{Kind: KindObject}
	String = Type{Kind: KindString}
	Bool   = Type{Kind: KindBool}
	Int    = Type{Kind: KindInt}
	IO     = Type{Kind: KindIO}
)

// Custom returns the type naming class id.
func Custom(id ClassID) Type {
	return Type{Kind: KindCustom, Class: id}
}

// IsBuiltin reports whether t is one of Object, String, Bool, Int or IO.
func (t Type) IsBuiltin() bool {
	return t.Kind >= KindObject && t.Kind <= KindIO
}

// IsCustom reports whether t names a user-declared class.
func (t Type) IsCustom() bool {
	return t.Kind == KindCustom
}

func (t Type) String() string {
	if name, ok := builtinNames[t.Kind]; ok {
		return name
	}
	if t.Kind == KindCustom {
		return fmt.Sprintf("class#%d", t.Class)
	}
	return "<invalid>"
}

// ---------------------------------------------------------------------------
// Built-in type table
// ---------------------------------------------------------------------------

var builtinNames = map[Kind]string{
	KindObject: "Object",
	KindString: "String",
	KindBool:   "Bool",
	KindInt:    "Int",
	KindIO:     "IO",
}

var builtinTypes = map[string]Type{
	"Object": Object,
	"String": String,
	"Bool":   Bool,
	"Int":    Int,
	"IO":     IO,
}

// IsBuiltin reports whether name is a built-in type name.
func IsBuiltin(name string) bool {
	_, ok := builtinTypes[name]
	return ok
}

// IsInheritable reports whether a class may name name as its parent.
// Int, String and Bool are sealed.
func IsInheritable(name string) bool {
	switch name {
	case "Int", "String", "Bool":
		return false
	}
	return true
}

// builtinMethods holds the fixed method signatures of the built-in types.
// SELF_TYPE results are reported as the receiver's own built-in type.
var builtinMethods = map[Kind][]*Method{
	KindObject: {
		builtinMethod(Object, "abort", Object),
		builtinMethod(Object, "type_name", String),
		builtinMethod(Object, "copy", Object),
	},
	KindIO: {
		builtinMethod(IO, "out_string", IO, Param{Name: "x", Type: String}),
		builtinMethod(IO, "out_int", IO, Param{Name: "x", Type: Int}),
		builtinMethod(IO, "in_string", String),
		builtinMethod(IO, "in_int", Int),
	},
	KindString: {
		builtinMethod(String, "length", Int),
		builtinMethod(String, "concat", String, Param{Name: "s", Type: String}),
		builtinMethod(String, "substr", String, Param{Name: "i", Type: Int}, Param{Name: "l", Type: Int}),
	},
}

func builtinMethod(owner Type, name string, ret Type, params ...Param) *Method {
	return &Method{
		Name:      name,
		Owner:     owner,
		OwnerName: builtinNames[owner.Kind],
		Params:    params,
		Return:    ret,
	}
}

func lookupBuiltinMethod(k Kind, name string) (*Method, bool) {
	for _, m := range builtinMethods[k] {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}
