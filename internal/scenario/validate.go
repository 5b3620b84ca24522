package scenario

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

const schemaDefinition = "#Scenario"

// Validate checks a decoded YAML document against the embedded schema.
// Schema violations are reported with ErrInvalidScenario, one line per
// offending path.
func Validate(doc any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath(schemaDefinition))
	if !def.Exists() {
		return fmt.Errorf("scenario schema has no %s definition", schemaDefinition)
	}

	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidScenario, details(err))
	}
	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidScenario, details(err))
	}
	return nil
}

// ValidateScenario checks a scenario assembled in code.
func ValidateScenario(sc *Scenario) error {
	data, err := Marshal(sc)
	if err != nil {
		return err
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return Validate(raw)
}

func details(err error) string {
	lines := strings.Split(strings.TrimSpace(cueerrors.Details(err, nil)), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "; ")
}
