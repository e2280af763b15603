package synth

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/reactquery/agent/internal/registry"
)

// toJSONSchema renders a Function Record's parameter_schema (§3) as a JSON
// Schema document, the shape real github.com/xeipuuv/gojsonschema expects —
// replacing the teacher's network-avoidance stub (internal/gojsonschema)
// with the genuine validator now that a real module is wired.
func toJSONSchema(schema map[string]registry.ParamSpec) map[string]interface{} {
	properties := make(map[string]interface{}, len(schema))
	required := make([]string, 0, len(schema))
	for name, spec := range schema {
		prop := map[string]interface{}{"type": jsonSchemaType(spec.Type)}
		if len(spec.Enum) > 0 {
			prop["enum"] = spec.Enum
		}
		properties[name] = prop
		if spec.Required {
			required = append(required, name)
		}
	}
	doc := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func jsonSchemaType(t registry.ParamType) string {
	switch t {
	case registry.ParamString:
		return "string"
	case registry.ParamInteger:
		return "integer"
	case registry.ParamNumber:
		return "number"
	case registry.ParamBoolean:
		return "boolean"
	case registry.ParamArray:
		return "array"
	case registry.ParamObject:
		return "object"
	default:
		return "string"
	}
}

// Validate checks parameters against schema, returning the first violation
// as an error (§4.5 validation rule). A nil error means every required
// parameter is present and every value matches its declared type.
func Validate(schema map[string]registry.ParamSpec, parameters map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(toJSONSchema(schema))
	docLoader := gojsonschema.NewGoLoader(parameters)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("synth: schema validation error: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("synth: %s", errs[0].String())
		}
		return fmt.Errorf("synth: parameters do not satisfy schema")
	}
	return nil
}
