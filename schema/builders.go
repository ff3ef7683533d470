package schema

import (
	"encoding/json"
	"fmt"
)

// RequiredField wraps a Builder to mark it as required in an object.
type RequiredField struct {
	builder Builder
}

// base provides the shared builder plumbing for all scalar builders.
type base[B Builder] struct {
	node *node
	self B
}

func (b *base[B]) Required() *RequiredField        { return &RequiredField{builder: b.self} }
func (b *base[B]) Build() (json.RawMessage, error) { return b.node.build() }
func (b *base[B]) schema() *node                   { return b.node }

func (b *base[B]) MustBuild() json.RawMessage {
	data, err := b.Build()
	if err != nil {
		panic(err)
	}
	return data
}

// StringBuilder constructs string type schemas.
type StringBuilder struct{ base[*StringBuilder] }

// String creates a new string schema builder.
func String() *StringBuilder {
	b := &StringBuilder{base[*StringBuilder]{node: &node{Type: "string"}}}
	b.self = b
	return b
}

// Desc sets the description for this field.
func (b *StringBuilder) Desc(d string) *StringBuilder {
	b.node.Description = d
	return b
}

// Enum restricts the value to one of the provided options.
func (b *StringBuilder) Enum(values ...string) *StringBuilder {
	b.node.Enum = make([]any, len(values))
	for i, v := range values {
		b.node.Enum[i] = v
	}
	return b
}

// MinLength sets the minimum string length.
func (b *StringBuilder) MinLength(n int) *StringBuilder {
	b.node.MinLength = ptr(n)
	return b
}

// MaxLength sets the maximum string length.
func (b *StringBuilder) MaxLength(n int) *StringBuilder {
	b.node.MaxLength = ptr(n)
	return b
}

// Pattern sets a regex pattern the string must match.
func (b *StringBuilder) Pattern(regex string) *StringBuilder {
	b.node.Pattern = regex
	return b
}

// Default sets the default value.
func (b *StringBuilder) Default(v string) *StringBuilder {
	b.node.Default = v
	return b
}

// IntegerBuilder constructs integer type schemas.
type IntegerBuilder struct{ base[*IntegerBuilder] }

// Integer creates a new integer schema builder.
func Integer() *IntegerBuilder {
	b := &IntegerBuilder{base[*IntegerBuilder]{node: &node{Type: "integer"}}}
	b.self = b
	return b
}

// Desc sets the description for this field.
func (b *IntegerBuilder) Desc(d string) *IntegerBuilder {
	b.node.Description = d
	return b
}

// Min sets the minimum value (inclusive).
func (b *IntegerBuilder) Min(n int) *IntegerBuilder {
	b.node.Minimum = ptr(float64(n))
	return b
}

// Max sets the maximum value (inclusive).
func (b *IntegerBuilder) Max(n int) *IntegerBuilder {
	b.node.Maximum = ptr(float64(n))
	return b
}

// Default sets the default value.
func (b *IntegerBuilder) Default(v int) *IntegerBuilder {
	b.node.Default = v
	return b
}

// NumberBuilder constructs number (float) type schemas.
type NumberBuilder struct{ base[*NumberBuilder] }

// Number creates a new number schema builder.
func Number() *NumberBuilder {
	b := &NumberBuilder{base[*NumberBuilder]{node: &node{Type: "number"}}}
	b.self = b
	return b
}

// Desc sets the description for this field.
func (b *NumberBuilder) Desc(d string) *NumberBuilder {
	b.node.Description = d
	return b
}

// Min sets the minimum value (inclusive).
func (b *NumberBuilder) Min(n float64) *NumberBuilder {
	b.node.Minimum = ptr(n)
	return b
}

// Max sets the maximum value (inclusive).
func (b *NumberBuilder) Max(n float64) *NumberBuilder {
	b.node.Maximum = ptr(n)
	return b
}

// BoolBuilder constructs boolean type schemas.
type BoolBuilder struct{ base[*BoolBuilder] }

// Bool creates a new boolean schema builder.
func Bool() *BoolBuilder {
	b := &BoolBuilder{base[*BoolBuilder]{node: &node{Type: "boolean"}}}
	b.self = b
	return b
}

// Desc sets the description for this field.
func (b *BoolBuilder) Desc(d string) *BoolBuilder {
	b.node.Description = d
	return b
}

// Default sets the default value.
func (b *BoolBuilder) Default(v bool) *BoolBuilder {
	b.node.Default = v
	return b
}

// ArrayBuilder constructs array type schemas.
type ArrayBuilder struct{ base[*ArrayBuilder] }

// Array creates a new array schema builder with the given items schema.
func Array(items Builder) *ArrayBuilder {
	b := &ArrayBuilder{base[*ArrayBuilder]{node: &node{Type: "array"}}}
	b.self = b
	if items != nil {
		b.node.Items = items.schema()
	}
	return b
}

// Desc sets the description for this field.
func (b *ArrayBuilder) Desc(d string) *ArrayBuilder {
	b.node.Description = d
	return b
}

// MinItems sets the minimum array length.
func (b *ArrayBuilder) MinItems(n int) *ArrayBuilder {
	b.node.MinItems = ptr(n)
	return b
}

// MaxItems sets the maximum array length.
func (b *ArrayBuilder) MaxItems(n int) *ArrayBuilder {
	b.node.MaxItems = ptr(n)
	return b
}

// ObjectBuilder constructs object type schemas.
type ObjectBuilder struct{ base[*ObjectBuilder] }

// Object creates a new object schema builder.
func Object() *ObjectBuilder {
	b := &ObjectBuilder{base[*ObjectBuilder]{node: &node{
		Type:       "object",
		Properties: make(map[string]*node),
	}}}
	b.self = b
	return b
}

// Desc sets the description for the object itself.
func (b *ObjectBuilder) Desc(d string) *ObjectBuilder {
	b.node.Description = d
	return b
}

// Field adds a field with its schema.
// The field argument can be a Builder or a *RequiredField.
func (b *ObjectBuilder) Field(name string, field any) *ObjectBuilder {
	switch f := field.(type) {
	case *RequiredField:
		b.node.Properties[name] = f.builder.schema()
		b.addRequired(name)
	case Builder:
		b.node.Properties[name] = f.schema()
	default:
		panic(fmt.Sprintf("schema: Field %q requires a Builder or *RequiredField, got %T", name, field))
	}
	return b
}

func (b *ObjectBuilder) addRequired(name string) {
	for _, r := range b.node.Required {
		if r == name {
			return
		}
	}
	b.node.Required = append(b.node.Required, name)
}

// AdditionalProperties controls whether extra properties are allowed.
func (b *ObjectBuilder) AdditionalProperties(allowed bool) *ObjectBuilder {
	b.node.AdditionalProperties = ptr(allowed)
	return b
}
