package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
)

// Validate checks a JSON document against a JSON Schema. It is used by the
// tool registry to validate tool call arguments before invocation; failures
// are *ValidationError values naming the offending field so the model can
// self-correct.
//
// The subset of JSON Schema understood here matches what the builders in
// this package can produce: type, enum, required, properties,
// additionalProperties, string length/pattern, numeric bounds, and array
// items/bounds.
func Validate(schemaDoc, doc json.RawMessage) error {
	var n node
	if err := json.Unmarshal(schemaDoc, &n); err != nil {
		return &ValidationError{Message: fmt.Sprintf("unparseable schema: %v", err), Err: err}
	}

	var value any
	if len(doc) == 0 {
		value = map[string]any{}
	} else if err := json.Unmarshal(doc, &value); err != nil {
		return &ValidationError{Message: fmt.Sprintf("arguments are not valid JSON: %v", err), Err: err}
	}

	return validateValue(&n, value, "")
}

func validateValue(n *node, value any, path string) error {
	if len(n.Enum) > 0 {
		if err := validateEnum(n, value, path); err != nil {
			return err
		}
	}

	switch n.Type {
	case "string":
		return validateString(n, value, path)
	case "integer", "number":
		return validateNumber(n, value, path)
	case "boolean":
		if _, ok := value.(bool); !ok {
			return typeMismatch(path, "boolean", value)
		}
		return nil
	case "array":
		return validateArray(n, value, path)
	case "object":
		return validateObject(n, value, path)
	case "":
		// No declared type: accept anything.
		return nil
	default:
		return &ValidationError{
			Field:   path,
			Message: fmt.Sprintf("unsupported schema type %q", n.Type),
		}
	}
}

func validateEnum(n *node, value any, path string) error {
	for _, allowed := range n.Enum {
		if allowed == value {
			return nil
		}
	}
	return &ValidationError{
		Field:   path,
		Message: fmt.Sprintf("value %v is not one of the allowed options", value),
	}
}

func validateString(n *node, value any, path string) error {
	s, ok := value.(string)
	if !ok {
		return typeMismatch(path, "string", value)
	}
	if n.MinLength != nil && len(s) < *n.MinLength {
		return &ValidationError{
			Field:   path,
			Message: fmt.Sprintf("length %d below minimum %d", len(s), *n.MinLength),
		}
	}
	if n.MaxLength != nil && len(s) > *n.MaxLength {
		return &ValidationError{
			Field:   path,
			Message: fmt.Sprintf("length %d above maximum %d", len(s), *n.MaxLength),
		}
	}
	if n.Pattern != "" {
		re, err := regexp.Compile(n.Pattern)
		if err != nil {
			return &ValidationError{Field: path, Message: "invalid pattern in schema", Err: ErrInvalidPattern}
		}
		if !re.MatchString(s) {
			return &ValidationError{
				Field:   path,
				Message: fmt.Sprintf("value does not match pattern %q", n.Pattern),
			}
		}
	}
	return nil
}

func validateNumber(n *node, value any, path string) error {
	f, ok := value.(float64)
	if !ok {
		return typeMismatch(path, n.Type, value)
	}
	if n.Type == "integer" && f != math.Trunc(f) {
		return &ValidationError{
			Field:   path,
			Message: fmt.Sprintf("value %v is not an integer", f),
		}
	}
	if n.Minimum != nil && f < *n.Minimum {
		return &ValidationError{
			Field:   path,
			Message: fmt.Sprintf("value %v below minimum %v", f, *n.Minimum),
		}
	}
	if n.Maximum != nil && f > *n.Maximum {
		return &ValidationError{
			Field:   path,
			Message: fmt.Sprintf("value %v above maximum %v", f, *n.Maximum),
		}
	}
	return nil
}

func validateArray(n *node, value any, path string) error {
	arr, ok := value.([]any)
	if !ok {
		return typeMismatch(path, "array", value)
	}
	if n.MinItems != nil && len(arr) < *n.MinItems {
		return &ValidationError{
			Field:   path,
			Message: fmt.Sprintf("%d items below minimum %d", len(arr), *n.MinItems),
		}
	}
	if n.MaxItems != nil && len(arr) > *n.MaxItems {
		return &ValidationError{
			Field:   path,
			Message: fmt.Sprintf("%d items above maximum %d", len(arr), *n.MaxItems),
		}
	}
	if n.Items != nil {
		for i, item := range arr {
			if err := validateValue(n.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateObject(n *node, value any, path string) error {
	obj, ok := value.(map[string]any)
	if !ok {
		return typeMismatch(path, "object", value)
	}

	for _, required := range n.Required {
		if _, present := obj[required]; !present {
			return &ValidationError{
				Field:   joinPath(path, required),
				Message: "required parameter missing",
			}
		}
	}

	for name, v := range obj {
		prop, declared := n.Properties[name]
		if !declared {
			if n.AdditionalProperties != nil && !*n.AdditionalProperties {
				return &ValidationError{
					Field:   joinPath(path, name),
					Message: "parameter not declared in schema",
				}
			}
			continue
		}
		if err := validateValue(prop, v, joinPath(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func typeMismatch(path, want string, got any) *ValidationError {
	return &ValidationError{
		Field:   path,
		Message: fmt.Sprintf("expected %s, got %T", want, got),
	}
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
