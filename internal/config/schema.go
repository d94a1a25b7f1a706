package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema constrains the shape of the unmarshalled settings map before
// it is decoded into Config, catching malformed types (a string where a
// number is expected, a negative capacity) as a ConfigViolation at load time
// rather than as a confusing panic deep in the orchestrator.
const configSchema = `{
  "type": "object",
  "properties": {
    "container": {
      "type": "object",
      "properties": {
        "method_refs_limit": {"type": "number", "minimum": 1},
        "field_refs_limit": {"type": "number", "minimum": 1},
        "type_refs_limit": {"type": "number", "minimum": 1},
        "linear_alloc_limit": {"type": "number", "minimum": 0}
      }
    },
    "minimizer": {
      "type": "object",
      "properties": {
        "method_ref_weight": {"type": "number", "minimum": 0},
        "field_ref_weight": {"type": "number", "minimum": 0},
        "type_ref_weight": {"type": "number", "minimum": 0},
        "string_ref_weight": {"type": "number", "minimum": 0}
      }
    },
    "relocator": {
      "type": "object",
      "properties": {
        "max_relocated_methods_per_class": {"type": "number", "minimum": 0}
      }
    }
  }
}`

// validateAgainstSchema schema-checks the raw settings map decoded from
// viper before it is unmarshalled into Config. A schema failure is a
// ConfigViolation: it is always the caller's fault and always fatal.
func validateAgainstSchema(settings map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	docLoader := gojsonschema.NewGoLoader(settings)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("%w: schema check failed: %v", ErrConfigViolation, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}

		return fmt.Errorf("%w: %s", ErrConfigViolation, strings.Join(msgs, "; "))
	}

	return nil
}
