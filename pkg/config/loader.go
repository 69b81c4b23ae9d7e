package config

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/strata/pkg/errors"
	"github.com/arthur-debert/strata/pkg/logging"
)

var log = logging.GetLogger("config")

// LoadFragment parses a YAML scope document into a fragment tree.
//
// Mapping keys carrying a "+" prefix declare configuration at that scope
// ("+schema: staging"); any other mapping key opens a child scope whose
// value is itself a scope mapping. Explicit nulls survive as explicit
// nulls, which is the whole point:
//
//	models:
//	  +schema: null        # clears schema for everything below
//	  staging:
//	    +schema: stg       # overrides it back for staging/
//	    +tags: [nightly]
//
// The root scope is named after rootName.
func LoadFragment(rootName string, data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "malformed fragment document")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		// Empty documents are legal: an all-omitted scope
		return NewNode(rootName), nil
	}
	root, err := parseScope(rootName, doc.Content[0])
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("root", rootName).
		Int("fields", len(root.Fields)).
		Int("children", len(root.Children)).
		Msg("Fragment loaded")
	return root, nil
}

func parseScope(name string, node *yaml.Node) (*Node, error) {
	if node.Tag == "!!null" {
		// "scope_name:" with no body is an all-omitted scope
		return NewNode(name), nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.Newf(errors.ErrConfigParse,
			"scope %q must be a mapping", name).
			WithSpan(node.Line, node.Column)
	}

	scope := NewNode(name)
	for i := 0; i < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value

		if strings.HasPrefix(key, "+") {
			field := strings.TrimPrefix(key, "+")
			if err := setField(scope, field, valNode); err != nil {
				return nil, err
			}
			continue
		}

		child, err := parseScope(key, valNode)
		if err != nil {
			return nil, err
		}
		scope.AddChild(child)
	}
	return scope, nil
}

func setField(scope *Node, field string, node *yaml.Node) error {
	if node.Tag == "!!null" {
		scope.SetNull(field)
		return nil
	}
	value, err := decodeValue(node)
	if err != nil {
		return err
	}
	scope.Set(field, value)
	return nil
}

// decodeValue converts a YAML value node to the merge engine's canonical
// Go representation: string, bool, []string or map[string]interface{}.
// Anything else is reported at the source position; the declared schema
// type is enforced later, at merge time.
func decodeValue(node *yaml.Node) (interface{}, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return nil, parseErr(node, err)
			}
			return b, nil
		default:
			var s string
			if err := node.Decode(&s); err != nil {
				return nil, parseErr(node, err)
			}
			return s, nil
		}
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return nil, parseErr(node, err)
		}
		return list, nil
	case yaml.MappingNode:
		var m map[string]interface{}
		if err := node.Decode(&m); err != nil {
			return nil, parseErr(node, err)
		}
		return m, nil
	default:
		return nil, errors.Newf(errors.ErrConfigParse,
			"unsupported value kind for configuration field").
			WithSpan(node.Line, node.Column)
	}
}

func parseErr(node *yaml.Node, err error) error {
	return errors.Wrapf(err, errors.ErrConfigParse,
		"cannot decode configuration value at line %d", node.Line).
		WithSpan(node.Line, node.Column)
}
