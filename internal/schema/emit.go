package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Emit renders a Tree as the {type, properties, required} JSON-schema object
// the completion service expects.
func Emit(t Tree) map[string]any {
	return emitObject(t.Params, false)
}

func emitParam(p Param) map[string]any {
	out := map[string]any{"type": string(p.Type)}
	if p.Description != "" {
		out["description"] = p.Description
	}
	switch p.Type {
	case TypeObject:
		obj := emitObject(p.Properties, p.OpenObject)
		for k, v := range obj {
			out[k] = v
		}
	case TypeArray:
		if p.Items != nil {
			out["items"] = emitParam(*p.Items)
		}
	}
	if p.Default != nil {
		out["default"] = p.Default
	}
	return out
}

func emitObject(params []Param, open bool) map[string]any {
	properties := map[string]any{}
	var required []string
	for _, p := range params {
		properties[p.Name] = emitParam(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	out["additionalProperties"] = open
	return out
}

// ToolWireShape is the {name, description, input_schema} object handed to
// the completion service.
type ToolWireShape struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Wire renders a Declaration into its completion-service wire shape.
func Wire(d Declaration) ToolWireShape {
	return ToolWireShape{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: Emit(d.Parameters),
	}
}

// CompileCheck validates that the emitted JSON-schema tree for d is a
// well-formed JSON-schema document. This is a registration-time assertion
// only (grounded on pkg/pluginsdk/validation.go's compileSchema use of
// santhosh-tekuri/jsonschema/v5); the runtime validate-and-report path is
// the hand-rolled recursive walk in validate.go, since the
// default-substitution and open-object rules it implements don't map onto
// the library's generic validation error shape.
func CompileCheck(d Declaration) error {
	raw, err := json.Marshal(Emit(d.Parameters))
	if err != nil {
		return fmt.Errorf("marshal schema for tool %s: %w", d.ID, err)
	}
	if _, err := jsonschema.CompileString(d.ID+".schema.json", string(raw)); err != nil {
		return fmt.Errorf("invalid schema for tool %s: %w", d.ID, err)
	}
	return nil
}
