package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// For generates a JSON Schema from a struct type T by reflection.
// Field names come from json tags, and the following tags refine the schema:
//
//	desc:"..."      sets the field description
//	required:"true" marks the field as required
//	enum:"a,b,c"    restricts a string field to the listed values
//
// Pointer fields are treated as optional, slices become arrays, and nested
// structs become nested objects. Fields tagged json:"-" are skipped.
func For[T any]() (json.RawMessage, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: For requires a struct type, got %v", t)
	}

	n, err := structNode(t)
	if err != nil {
		return nil, err
	}
	return n.build()
}

// MustFor is like For but panics on error. Intended for package-level
// tool definitions where the schema is fixed at compile time.
func MustFor[T any]() json.RawMessage {
	s, err := For[T]()
	if err != nil {
		panic(err)
	}
	return s
}

func structNode(t reflect.Type) (*node, error) {
	n := &node{
		Type:                 "object",
		Properties:           make(map[string]*node),
		AdditionalProperties: ptr(false),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name := strings.Split(jsonTag, ",")[0]
		if name == "" {
			name = field.Name
		}

		prop, err := fieldNode(field.Type)
		if err != nil {
			return nil, fmt.Errorf("schema: field %q: %w", name, err)
		}

		if desc := field.Tag.Get("desc"); desc != "" {
			prop.Description = desc
		}
		if enum := field.Tag.Get("enum"); enum != "" {
			if err := applyEnum(prop, enum); err != nil {
				return nil, fmt.Errorf("schema: field %q: %w", name, err)
			}
		}
		if field.Tag.Get("required") == "true" {
			n.Required = append(n.Required, name)
		}

		n.Properties[name] = prop
	}

	return n, nil
}

func fieldNode(t reflect.Type) (*node, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return &node{Type: "string"}, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &node{Type: "integer"}, nil

	case reflect.Float32, reflect.Float64:
		return &node{Type: "number"}, nil

	case reflect.Bool:
		return &node{Type: "boolean"}, nil

	case reflect.Slice, reflect.Array:
		items, err := fieldNode(t.Elem())
		if err != nil {
			return nil, err
		}
		return &node{Type: "array", Items: items}, nil

	case reflect.Struct:
		return structNode(t)

	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key must be string, got %v", t.Key())
		}
		// Open-ended object; values are not constrained.
		return &node{Type: "object"}, nil

	default:
		return nil, fmt.Errorf("unsupported type %v", t)
	}
}

func applyEnum(n *node, tag string) error {
	values := strings.Split(tag, ",")
	n.Enum = make([]any, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		switch n.Type {
		case "string":
			n.Enum[i] = v
		case "integer":
			iv, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("enum value %q is not an integer", v)
			}
			n.Enum[i] = iv
		default:
			return fmt.Errorf("enum tag not supported for type %q", n.Type)
		}
	}
	return nil
}
