package selector

import (
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/strata/pkg/errors"
)

// File is a selectors document: a list of named, reusable definitions.
// At most one may be marked default.
type File struct {
	Version   string       `yaml:"version"`
	Selectors []Definition `yaml:"selectors"`
}

// Definition is one named selector
type Definition struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Default     bool            `yaml:"default"`
	Definition  DefinitionValue `yaml:"definition"`
}

// DefinitionValue is either a bare CLI-style string ("pkg tag:nightly")
// or a full structured expression tree.
type DefinitionValue struct {
	Str  string
	Expr *Expr

	line, column int
}

// IsString reports whether this is the bare string form
func (d DefinitionValue) IsString() bool {
	return d.Expr == nil
}

// StringValue builds the string form programmatically
func StringValue(s string) DefinitionValue {
	return DefinitionValue{Str: s}
}

// ExprValue builds the structured form programmatically
func ExprValue(e Expr) DefinitionValue {
	return DefinitionValue{Expr: &e}
}

func (d *DefinitionValue) UnmarshalYAML(node *yaml.Node) error {
	d.line, d.column = node.Line, node.Column
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return errors.New(errors.ErrSelectorSyntax,
				"selector definition must not be null").
				WithSpan(node.Line, node.Column)
		}
		d.Str = node.Value
		return nil
	case yaml.MappingNode:
		var expr Expr
		if err := node.Decode(&expr); err != nil {
			return err
		}
		d.Expr = &expr
		return nil
	default:
		return errors.New(errors.ErrSelectorSyntax,
			"selector definition must be a string or a mapping").
			WithSpan(node.Line, node.Column)
	}
}

// Expr is a structured selector node: a union/intersection composite or
// an atom.
type Expr struct {
	Union        []DefinitionValue
	Intersection []DefinitionValue
	Atom         *AtomDef

	line, column int
}

// IsComposite reports whether this node carries a union or intersection list
func (e *Expr) IsComposite() bool {
	return e.Union != nil || e.Intersection != nil
}

// AtomDef is the structured leaf form: a method with value, graph-walk
// modifiers and optional nested excludes, or the "method: value"
// shorthand, or a standalone exclude.
type AtomDef struct {
	Method string `yaml:"method"`
	Value  string `yaml:"value"`

	ChildrensParents bool `yaml:"childrens_parents"`
	Parents          bool `yaml:"parents"`
	Children         bool `yaml:"children"`

	ParentsDepth  *uint32 `yaml:"parents_depth"`
	ChildrenDepth *uint32 `yaml:"children_depth"`

	IndirectSelection IndirectSelection `yaml:"indirect_selection"`

	Exclude []DefinitionValue `yaml:"exclude"`

	// MethodKey holds the shorthand form: a single "tag: nightly" pair
	MethodKey map[string]string `yaml:"-"`
}

func (e *Expr) UnmarshalYAML(node *yaml.Node) error {
	e.line, e.column = node.Line, node.Column
	if node.Kind != yaml.MappingNode {
		return errors.New(errors.ErrSelectorSyntax,
			"selector expression must be a mapping").
			WithSpan(node.Line, node.Column)
	}

	keys := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		keys[node.Content[i].Value] = node.Content[i+1]
	}

	// composite forms
	if list, ok := keys["union"]; ok {
		return list.Decode(&e.Union)
	}
	if list, ok := keys["intersection"]; ok {
		return list.Decode(&e.Intersection)
	}

	// full method atom
	if _, ok := keys["method"]; ok {
		var atom AtomDef
		if err := node.Decode(&atom); err != nil {
			return err
		}
		e.Atom = &atom
		return nil
	}

	// standalone exclude atom
	if list, ok := keys["exclude"]; ok && len(keys) == 1 {
		var atom AtomDef
		if err := list.Decode(&atom.Exclude); err != nil {
			return err
		}
		e.Atom = &atom
		return nil
	}

	// "method: value" shorthand
	var kv map[string]string
	if err := node.Decode(&kv); err != nil {
		return errors.Wrap(err, errors.ErrSelectorSyntax,
			"selector atom must be a method/value mapping").
			WithSpan(node.Line, node.Column)
	}
	e.Atom = &AtomDef{MethodKey: kv}
	return nil
}

// ParseFile decodes a selectors document
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		if errors.GetErrorCode(err) != errors.ErrUnknown {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrSelectorSyntax, "malformed selectors document")
	}
	return &f, nil
}
