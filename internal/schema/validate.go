package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValidationError reports a single field that failed validation, named by
// its dotted path (e.g. "filters.date_from").
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate decodes raw (a JSON object) and checks it against params:
// required fields present, optional fields get
// their declared default when absent, cross-type assignments fail, objects
// recurse into declared properties (unknown properties allowed but not
// forwarded unless the schema marks the object open), arrays validate every
// element against a declared item schema. Returns the normalized argument
// map (defaults substituted) on success.
func Validate(raw []byte, params []Param) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, &ValidationError{Message: "arguments must be a JSON object: " + err.Error()}
	}

	return validateObject(data, params, false, "")
}

func validateObject(data map[string]any, params []Param, open bool, path string) (map[string]any, error) {
	out := map[string]any{}
	declared := make(map[string]struct{}, len(params))

	for _, p := range params {
		declared[p.Name] = struct{}{}
		fieldPath := joinPath(path, p.Name)

		raw, present := data[p.Name]
		if !present {
			if p.Required {
				return nil, &ValidationError{Path: fieldPath, Message: "required field is missing"}
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}

		validated, err := validateValue(raw, p, fieldPath)
		if err != nil {
			return nil, err
		}
		out[p.Name] = validated
	}

	if open {
		for k, v := range data {
			if _, ok := declared[k]; ok {
				continue
			}
			out[k] = v
		}
	}

	return out, nil
}

func validateValue(raw any, p Param, path string) (any, error) {
	switch p.Type {
	case TypeString:
		v, ok := raw.(string)
		if !ok {
			return nil, typeErr(path, "string", raw)
		}
		return v, nil

	case TypeBoolean:
		v, ok := raw.(bool)
		if !ok {
			return nil, typeErr(path, "boolean", raw)
		}
		return v, nil

	case TypeInteger:
		num, ok := raw.(json.Number)
		if !ok {
			return nil, typeErr(path, "integer", raw)
		}
		if _, err := num.Int64(); err != nil {
			return nil, &ValidationError{Path: path, Message: "expected an integer, got a non-integral number"}
		}
		return num, nil

	case TypeNumber:
		num, ok := raw.(json.Number)
		if !ok {
			return nil, typeErr(path, "number", raw)
		}
		return num, nil

	case TypeObject:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, typeErr(path, "object", raw)
		}
		return validateObject(obj, p.Properties, p.OpenObject, path)

	case TypeArray:
		arr, ok := raw.([]any)
		if !ok {
			return nil, typeErr(path, "array", raw)
		}
		if p.Items == nil {
			return arr, nil
		}
		result := make([]any, len(arr))
		for i, elem := range arr {
			validated, err := validateValue(elem, *p.Items, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			result[i] = validated
		}
		return result, nil

	default:
		return nil, &ValidationError{Path: path, Message: fmt.Sprintf("unknown declared type %q", p.Type)}
	}
}

func typeErr(path, want string, got any) error {
	return &ValidationError{Path: path, Message: fmt.Sprintf("expected %s, got %T", want, got)}
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
