package manifest

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// manifestSchema constrains a decoded cool.toml.
const manifestSchema = `
#Manifest: {
	project: {
		name:    string
		version: string & =~"^([0-9]+\\.[0-9]+\\.[0-9]+)?$"
		main:    string & =~"^(.*\\.cl)?$"
	}
	diagnostics: {
		"keep-going": bool
		"max-errors": int & >=0
	}
	output: {
		tokens:   bool
		snapshot: string
		index:    string
	}
}
`

// Validate checks m against the manifest schema.
func Validate(m *Manifest) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(manifestSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling manifest schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))

	value := ctx.Encode(m)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return err
	}
	if m.Output.Snapshot != "" && m.Output.Snapshot == m.Output.Index {
		return fmt.Errorf("output.snapshot and output.index both point to %s", m.Output.Index)
	}
	return nil
}
