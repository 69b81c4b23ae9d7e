package config

import (
	"github.com/arthur-debert/strata/pkg/omissible"
)

// Node is one scope's configuration fragment: a mapping from field name
// to a tri-state value, plus the ordered child scopes (package,
// subdirectory, file, inline). Each node is owned by its parent; the
// root is owned by the resolution pass.
type Node struct {
	Name     string
	Fields   map[string]omissible.Value[interface{}]
	Children []*Node
}

// NewNode returns an empty fragment for the named scope
func NewNode(name string) *Node {
	return &Node{
		Name:   name,
		Fields: make(map[string]omissible.Value[interface{}]),
	}
}

// Set records an explicit value for a field
func (n *Node) Set(field string, value interface{}) *Node {
	n.Fields[field] = omissible.Of(value)
	return n
}

// SetNull records an explicit null for a field
func (n *Node) SetNull(field string) *Node {
	n.Fields[field] = omissible.Clear[interface{}]()
	return n
}

// AddChild appends a child scope and returns it
func (n *Node) AddChild(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// Field returns the tri-state value for a field; absent map entries are
// Omitted, so callers never see a fourth state
func (n *Node) Field(name string) omissible.Value[interface{}] {
	return n.Fields[name]
}
