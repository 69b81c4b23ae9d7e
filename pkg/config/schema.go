package config

import (
	"fmt"

	"github.com/arthur-debert/strata/pkg/errors"
)

// FieldType is the declared type of a configuration field
type FieldType int

const (
	TypeString FieldType = iota
	TypeBool
	TypeStringList
	TypeMap
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeStringList:
		return "string list"
	case TypeMap:
		return "map"
	default:
		return "invalid"
	}
}

// MergeMode controls how a specified collection combines with the
// inherited value. Replace is the default for every field; Additive
// unions the child's elements with the parent's.
type MergeMode int

const (
	Replace MergeMode = iota
	Additive
)

// FieldSpec declares one overridable configuration attribute
type FieldSpec struct {
	Name string
	Type FieldType
	Mode MergeMode
}

// Schema describes the set of overridable fields and which of them merge
// additively. The merge engine consults it for type checking and for the
// absolute default a never-specified field falls back to.
type Schema struct {
	fields map[string]FieldSpec
	order  []string
}

// NewSchema builds a schema from field specs. Duplicate names are an error.
func NewSchema(specs ...FieldSpec) (*Schema, error) {
	s := &Schema{fields: make(map[string]FieldSpec, len(specs))}
	for _, spec := range specs {
		if _, dup := s.fields[spec.Name]; dup {
			return nil, errors.Newf(errors.ErrInvalidInput,
				"duplicate field %q in schema", spec.Name)
		}
		s.fields[spec.Name] = spec
		s.order = append(s.order, spec.Name)
	}
	return s, nil
}

// DefaultSchema returns the standard resource configuration surface.
// Only tags merge additively; every other field replaces.
func DefaultSchema() *Schema {
	s, err := NewSchema(
		FieldSpec{Name: "schema", Type: TypeString},
		FieldSpec{Name: "database", Type: TypeString},
		FieldSpec{Name: "catalog", Type: TypeString},
		FieldSpec{Name: "alias", Type: TypeString},
		FieldSpec{Name: "materialized", Type: TypeString},
		FieldSpec{Name: "group", Type: TypeString},
		FieldSpec{Name: "description", Type: TypeString},
		FieldSpec{Name: "enabled", Type: TypeBool},
		FieldSpec{Name: "tags", Type: TypeStringList, Mode: Additive},
		FieldSpec{Name: "meta", Type: TypeMap},
	)
	if err != nil {
		panic(err) // static field list, cannot collide
	}
	return s
}

// Field returns the spec for name
func (s *Schema) Field(name string) (FieldSpec, bool) {
	spec, ok := s.fields[name]
	return spec, ok
}

// Fields returns the field names in declaration order
func (s *Schema) Fields() []string {
	return s.order
}

// Default returns the absolute default for a field nobody ever specified
func (s *Schema) Default(name string) interface{} {
	spec, ok := s.fields[name]
	if !ok {
		return nil
	}
	switch spec.Type {
	case TypeString:
		return ""
	case TypeBool:
		return false
	case TypeStringList:
		return []string(nil)
	case TypeMap:
		return map[string]interface{}(nil)
	default:
		return nil
	}
}

// checkType validates a concrete value against the field's declared type.
// No coercion is attempted beyond what the deserializer already did.
func (s *Schema) checkType(name string, value interface{}) error {
	spec, ok := s.fields[name]
	if !ok {
		return errors.Newf(errors.ErrConfigParse,
			"unknown configuration field %q", name)
	}
	switch spec.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return typeError(name, spec.Type, value)
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return typeError(name, spec.Type, value)
		}
	case TypeStringList:
		if _, ok := value.([]string); !ok {
			return typeError(name, spec.Type, value)
		}
	case TypeMap:
		if _, ok := value.(map[string]interface{}); !ok {
			return typeError(name, spec.Type, value)
		}
	}
	return nil
}

func typeError(name string, want FieldType, got interface{}) error {
	return errors.Newf(errors.ErrConfigType,
		"field %q expects %s, got %s", name, want, fmt.Sprintf("%T", got)).
		WithDetail("field", name)
}
