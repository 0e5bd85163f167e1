package inference

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// buildResponseSchema returns a deliberately lenient JSON-Schema (draft
// 2020-12 subset) for the inference output. Field-level invalidity
// (amount <= 0, unknown category) is handled by normalization penalties;
// the schema only rejects structurally hopeless responses such as an
// amount that is an array, which route to the malformed-output path.
func buildResponseSchema() map[string]any {
	loose := func(types ...string) map[string]any {
		return map[string]any{"type": types}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"amount":         loose("number", "string", "null"),
			"description":    loose("string", "null"),
			"category":       loose("string", "null"),
			"payment_method": loose("string", "null"),
			"location":       loose("string", "null"),
			"date_offset":    loose("integer", "number", "null"),
			"confidence":     loose("number", "string", "null"),
		},
		"additionalProperties": true,
	}
}

// validateAgainstSchema validates data against schemaMap.
func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
