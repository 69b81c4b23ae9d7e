// Package omissible provides a tri-state value wrapper that distinguishes
// "not specified" from "explicitly cleared" from "explicitly set". This is
// the unit of hierarchical configuration merging: an omitted field inherits,
// an explicit null clears, an explicit value overrides.
package omissible

import (
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/strata/pkg/errors"
)

// State identifies which of the three variants a Value holds.
type State int

const (
	// Omitted means the key was absent from the fragment.
	Omitted State = iota
	// Null means the key was present with an explicit null.
	Null
	// Set means the key was present with a concrete value.
	Set
)

func (s State) String() string {
	switch s {
	case Omitted:
		return "omitted"
	case Null:
		return "null"
	case Set:
		return "set"
	default:
		return "invalid"
	}
}

// Value is a tri-state wrapper over T. The zero value is Omitted.
type Value[T any] struct {
	state State
	value T
}

// Omit returns an omitted Value
func Omit[T any]() Value[T] {
	return Value[T]{state: Omitted}
}

// Clear returns a Value holding an explicit null
func Clear[T any]() Value[T] {
	return Value[T]{state: Null}
}

// Of returns a Value holding v
func Of[T any](v T) Value[T] {
	return Value[T]{state: Set, value: v}
}

// State returns the three-way variant, for merge logic that must not
// conflate omitted with explicit null
func (o Value[T]) State() State {
	return o.state
}

// IsOmitted reports whether the key was absent
func (o Value[T]) IsOmitted() bool {
	return o.state == Omitted
}

// IsNull reports whether the key was present with an explicit null
func (o Value[T]) IsNull() bool {
	return o.state == Null
}

// IsSet reports whether the key was present with a concrete value
func (o Value[T]) IsSet() bool {
	return o.state == Set
}

// Get returns the stored value; ok is false unless the state is Set
func (o Value[T]) Get() (T, bool) {
	return o.value, o.state == Set
}

// IntoInner collapses the tri-state for simple consumers: omitted and
// explicit null both come back as (zero, false)
func (o Value[T]) IntoInner() (T, bool) {
	if o.state != Set {
		var zero T
		return zero, false
	}
	return o.value, true
}

// Override applies the hierarchical override rule for a single field:
// an omitted child inherits the parent verbatim (including an explicit
// null the parent carries); anything the child specifies wins.
func Override[T any](child, parent Value[T]) Value[T] {
	if child.state == Omitted {
		return parent
	}
	return child
}

// IsZero makes an Omitted value disappear under yaml ",omitempty",
// which is what round-trips Omitted as key-absence
func (o Value[T]) IsZero() bool {
	return o.state == Omitted
}

// MarshalYAML serializes Null as an explicit null and Set as the value.
// Omitted is handled by IsZero plus omitempty; marshaling an Omitted
// value directly also produces null, there is nothing better to emit.
func (o Value[T]) MarshalYAML() (interface{}, error) {
	if o.state != Set {
		return nil, nil
	}
	return o.value, nil
}

// UnmarshalYAML maps an explicit null node to Null and anything else to
// Set. Absent keys never reach this method, which is what keeps them
// Omitted.
func (o *Value[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*o = Clear[T]()
		return nil
	}
	var v T
	if err := node.Decode(&v); err != nil {
		return errors.Wrapf(err, errors.ErrConfigParse,
			"cannot decode value %q", node.Value).
			WithSpan(node.Line, node.Column)
	}
	*o = Of(v)
	return nil
}
