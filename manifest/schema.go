package manifest

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// Schema constrains every garnet.toml. Fields are optional; an absent field
// takes the runtime default.
const Schema = `
#Manifest: {
	runtime: #Runtime
	log:     #Log
	server:  #Server
	image:   #Image
}

#Runtime: {
	platform?:          string
	engine?:            =~"^[a-z][a-z0-9_-]*$"
	version?:           =~"^[0-9]+\\.[0-9]+\\.[0-9]+$"
	argv?:              [...string]
	"class-variables"?: "hierarchy" | "flat"
	"max-depth"?:       int & >0 & <=1000000
	"method-missing"?:  [...=~"^[A-Za-z_][A-Za-z0-9_]*[?!=]?$"]
}

#Log: {
	verbosity: int & >=-4 & <=5
	file?:     string
}

#Server: {
	addr?: =~"^[^:]*:[0-9]+$"
}

#Image: {
	output?: string
	store?:  string
	label?:  =~"^[A-Za-z0-9._-]+$"
}
`

// Validate checks m against Schema.
func Validate(m *Manifest) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(Schema, cue.Filename("garnet.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	val := ctx.Encode(m)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Manifest"))
	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s", strings.TrimSpace(errors.Details(err, nil)))
	}
	return nil
}
