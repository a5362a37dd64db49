package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	invopop "github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// ReflectSchema builds a tool schema from an argument struct. Field
// descriptions come from `jsonschema:"description=..."` tags.
func ReflectSchema[T any](name, description string) *jsonschema.Schema {
	reflector := &invopop.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	reflected := reflector.Reflect(new(T))

	schema := &jsonschema.Schema{Type: "object"}
	data, err := json.Marshal(reflected)
	if err == nil {
		if err := json.Unmarshal(data, schema); err != nil {
			schema = &jsonschema.Schema{Type: "object"}
		}
	}

	schema.Schema = ""
	schema.ID = ""
	schema.Title = name
	schema.Description = description
	return schema
}

// ValidateArguments checks tool arguments against the tool schema
func ValidateArguments(schema *jsonschema.Schema, args map[string]any) error {
	if schema == nil {
		return nil
	}

	// Title and description carry no constraints
	bare := *schema
	bare.Title = ""
	bare.Description = ""
	raw, err := json.Marshal(&bare)
	if err != nil {
		return fmt.Errorf("failed to encode schema for %s: %w", schema.Title, err)
	}

	if args == nil {
		args = map[string]any{}
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(raw), gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("failed to validate arguments for %s: %w", schema.Title, err)
	}
	if result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	reasons := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		reasons = append(reasons, e.String())
	}
	return &ValidationError{
		Field:  first.Field(),
		Reason: strings.Join(reasons, "; "),
	}
}
