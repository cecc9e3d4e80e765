package semant

// ---------------------------------------------------------------------------
// Classes and their features
// ---------------------------------------------------------------------------

// Feature is a member variable or a method declared on a class.
type Feature interface {
	FeatureName() string
	feature() // marker method
}

// Member is a member variable (attribute).
type Member struct {
	Name string
	Type Type
}

func (m *Member) FeatureName() string { return m.Name }
func (*Member) feature()              {}

// Param is a method formal parameter.
type Param struct {
	Name string
	Type Type
}

// Method is a method signature. Owner is the class that declared it.
type Method struct {
	Name      string
	Owner     Type
	OwnerName string
	Params    []Param
	Return    Type
}

func (m *Method) FeatureName() string { return m.Name }
func (*Method) feature()              {}

// Label identifies the method program-wide: owning class name, an
// underscore, then the method name.
func (m *Method) Label() string {
	return m.OwnerName + "_" + m.Name
}

// Param returns the parameter called name.
func (m *Method) Param(name string) (Param, bool) {
	for _, p := range m.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Class is a user-declared class. The environment owns every Class; other
// values refer to it by ClassID.
type Class struct {
	ID     ClassID
	Name   string
	Parent Type

	features map[string]Feature
	order    []string // declaration order of feature names
}

func newClass(id ClassID, name string, parent Type) *Class {
	return &Class{
		ID:       id,
		Name:     name,
		Parent:   parent,
		features: make(map[string]Feature),
	}
}

// Type returns the custom type naming c.
func (c *Class) Type() Type {
	return Custom(c.ID)
}

// Feature returns the feature c declares itself, ignoring ancestors.
func (c *Class) Feature(name string) (Feature, bool) {
	f, ok := c.features[name]
	return f, ok
}

// Features returns the class's own features in declaration order.
func (c *Class) Features() []Feature {
	out := make([]Feature, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.features[name])
	}
	return out
}

// put inserts or replaces a feature in the class's own map.
func (c *Class) put(f Feature) {
	name := f.FeatureName()
	if _, exists := c.features[name]; !exists {
		c.order = append(c.order, name)
	}
	c.features[name] = f
}
