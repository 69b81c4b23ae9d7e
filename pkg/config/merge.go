package config

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/strata/pkg/errors"
	"github.com/arthur-debert/strata/pkg/logging"
)

// Effective is the fully merged configuration for one scope. Fields that
// were explicitly nulled are recorded as null; fields nobody ever
// specified fall back to the schema's absolute default. Immutable once
// computed.
type Effective struct {
	schema *Schema
	values map[string]interface{} // entry present with nil value = explicit null
}

// NewEffective returns an empty effective configuration, used as the
// parent of the root scope
func NewEffective(schema *Schema) *Effective {
	return &Effective{schema: schema, values: make(map[string]interface{})}
}

// Value returns the effective value for a field: the explicit value, nil
// for an explicit null, or the schema's absolute default when no ancestor
// ever specified the field
func (e *Effective) Value(name string) interface{} {
	if v, ok := e.values[name]; ok {
		return v
	}
	return e.schema.Default(name)
}

// IsNull reports whether the field was explicitly cleared at some level
func (e *Effective) IsNull(name string) bool {
	v, ok := e.values[name]
	return ok && v == nil
}

// Specified reports whether any ancestor specified the field at all
func (e *Effective) Specified(name string) bool {
	_, ok := e.values[name]
	return ok
}

// Tags returns the effective tag set
func (e *Effective) Tags() []string {
	tags, _ := e.Value("tags").([]string)
	return tags
}

func (e *Effective) clone() map[string]interface{} {
	out := make(map[string]interface{}, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Merger applies the hierarchical override rules over a fragment tree.
// It is a pure computation and safe to use concurrently as long as each
// call works on a disjoint tree.
type Merger struct {
	schema *Schema
	logger zerolog.Logger
}

// NewMerger creates a merger for the given field schema
func NewMerger(schema *Schema) *Merger {
	return &Merger{
		schema: schema,
		logger: logging.GetLogger("config.merger"),
	}
}

// MergeNode computes one scope's effective configuration from its
// fragment and its parent's already-resolved configuration. Evaluated
// independently per field:
//
//	omitted        -> inherit parent's entry verbatim
//	explicit null  -> null, regardless of parent
//	explicit value -> the value; additive fields union with the parent
func (m *Merger) MergeNode(node *Node, parent *Effective) (*Effective, error) {
	values := parent.clone()

	for name, field := range node.Fields {
		spec, known := m.schema.Field(name)
		if !known {
			return nil, errors.Newf(errors.ErrConfigParse,
				"unknown configuration field %q in scope %q", name, node.Name).
				WithDetail("scope", node.Name)
		}

		switch {
		case field.IsOmitted():
			// nothing to do, parent entry stays as-is
		case field.IsNull():
			values[name] = nil
		default:
			v, _ := field.Get()
			v = normalize(v)
			if err := m.schema.checkType(name, v); err != nil {
				return nil, errors.Wrapf(err, errors.ErrConfigType,
					"scope %q", node.Name)
			}
			if spec.Mode == Additive {
				values[name] = unionList(parent.Value(name), v)
			} else {
				values[name] = v
			}
		}
	}

	return &Effective{schema: m.schema, values: values}, nil
}

// Resolve walks the tree depth-first, root to leaf, resolving every
// scope strictly after its parent. The result maps slash-joined scope
// paths to effective configurations.
func (m *Merger) Resolve(root *Node) (map[string]*Effective, error) {
	out := make(map[string]*Effective)
	err := m.resolve(root, NewEffective(m.schema), nil, out)
	return out, err
}

func (m *Merger) resolve(node *Node, parent *Effective, path []string, out map[string]*Effective) error {
	path = append(path, node.Name)
	key := strings.Join(path, "/")

	eff, err := m.MergeNode(node, parent)
	if err != nil {
		return errors.Wrapf(err, errors.GetErrorCode(err), "resolving scope %q", key)
	}
	out[key] = eff

	m.logger.Trace().Str("scope", key).Int("children", len(node.Children)).Msg("Scope resolved")

	for _, child := range node.Children {
		if err := m.resolve(child, eff, path, out); err != nil {
			return err
		}
	}
	return nil
}

// unionList merges the child's elements into the inherited list,
// preserving order and dropping duplicates. Tags are additive: a child
// never removes an inherited tag, it can only add.
func unionList(parent interface{}, child interface{}) []string {
	parentList, _ := parent.([]string)
	childList, _ := child.([]string)

	seen := make(map[string]struct{}, len(parentList))
	out := make([]string, 0, len(parentList)+len(childList))
	for _, t := range parentList {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range childList {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// normalize converts loosely-typed deserializer output into the schema's
// canonical representations ([]interface{} of strings -> []string,
// map[interface{}]interface{} -> map[string]interface{})
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return v // let checkType report it
			}
			out = append(out, s)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			s, ok := k.(string)
			if !ok {
				return v
			}
			out[s] = item
		}
		return out
	default:
		return v
	}
}
