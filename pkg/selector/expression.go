package selector

import (
	"fmt"
	"math"
	"strings"
)

// IndirectSelection controls how indirectly selected tests join the
// selected set. It rides along on atoms; evaluation policy belongs to the
// consumer.
type IndirectSelection string

const (
	IndirectEager     IndirectSelection = "eager"
	IndirectBuildable IndirectSelection = "buildable"
	IndirectCautious  IndirectSelection = "cautious"
	IndirectEmpty     IndirectSelection = "empty"
)

// UnlimitedDepth marks a graph-walk modifier with no depth bound
// ("+model" rather than "2+model").
const UnlimitedDepth uint32 = math.MaxUint32

// Criteria is a single leaf predicate: a method plus its arguments and
// value, with optional graph-walk modifiers.
type Criteria struct {
	Method     MethodName
	MethodArgs []string
	Value      string

	// graph-walk modifiers
	ChildrensParents bool    // @
	ParentsDepth     *uint32 // +foo / N+foo; nil means no parents
	ChildrenDepth    *uint32 // foo+ / foo+N; nil means no children

	Indirect IndirectSelection
}

// Depth returns a pointer suitable for the depth fields
func Depth(n uint32) *uint32 {
	return &n
}

func (c Criteria) String() string {
	var b strings.Builder

	if c.ChildrensParents {
		b.WriteByte('@')
	}
	if c.ParentsDepth != nil {
		if *c.ParentsDepth != UnlimitedDepth {
			fmt.Fprintf(&b, "%d", *c.ParentsDepth)
		}
		b.WriteByte('+')
	}

	b.WriteString(string(c.Method))
	for _, arg := range c.MethodArgs {
		b.WriteByte('.')
		b.WriteString(arg)
	}
	b.WriteByte(':')
	b.WriteString(c.Value)

	if c.ChildrenDepth != nil {
		b.WriteByte('+')
		if *c.ChildrenDepth != UnlimitedDepth {
			fmt.Fprintf(&b, "%d", *c.ChildrenDepth)
		}
	}
	return b.String()
}

// Expression is the selection AST: an Atom leaf, a Union (comma/OR), an
// Intersection (space/AND), or a structural Exclude wrapper. Trees are
// acyclic and finite, owned by the definition that produced them.
type Expression interface {
	fmt.Stringer
	isExpression()
}

// Atom is a single leaf predicate
type Atom struct {
	Criteria Criteria
}

// Union is OR composition (comma in the flat grammar)
type Union struct {
	Terms []Expression
}

// Intersection is AND composition (whitespace in the flat grammar)
type Intersection struct {
	Terms []Expression
}

// Exclude negates its inner expression. Negation is structural, not a
// flag on Atom, so it composes under Union and Intersection without
// ambiguity.
type Exclude struct {
	Inner Expression
}

func (Atom) isExpression()         {}
func (Union) isExpression()        {}
func (Intersection) isExpression() {}
func (Exclude) isExpression()      {}

func (a Atom) String() string {
	return a.Criteria.String()
}

// Union terms join with commas; an Exclude term switches to the flat
// grammar's "--exclude" spelling so the printed form re-parses.
func (u Union) String() string {
	var b strings.Builder
	for i, term := range u.Terms {
		if i > 0 {
			if _, isExclude := term.(Exclude); isExclude {
				b.WriteByte(' ')
			} else {
				b.WriteByte(',')
			}
		}
		b.WriteString(term.String())
	}
	return b.String()
}

func (n Intersection) String() string {
	parts := make([]string, len(n.Terms))
	for i, term := range n.Terms {
		parts[i] = term.String()
	}
	return strings.Join(parts, " ")
}

func (e Exclude) String() string {
	return "--exclude " + e.Inner.String()
}

// SetIndirect sets the indirect-selection mode on every atom in the tree
func SetIndirect(expr Expression, mode IndirectSelection) Expression {
	return mapAtoms(expr, func(c Criteria) Criteria {
		c.Indirect = mode
		return c
	})
}

// ApplyDefaultIndirect sets the mode only on atoms that carry none
func ApplyDefaultIndirect(expr Expression, mode IndirectSelection) Expression {
	return mapAtoms(expr, func(c Criteria) Criteria {
		if c.Indirect == "" {
			c.Indirect = mode
		}
		return c
	})
}

func mapAtoms(expr Expression, f func(Criteria) Criteria) Expression {
	switch e := expr.(type) {
	case Atom:
		e.Criteria = f(e.Criteria)
		return e
	case Union:
		terms := make([]Expression, len(e.Terms))
		for i, term := range e.Terms {
			terms[i] = mapAtoms(term, f)
		}
		return Union{Terms: terms}
	case Intersection:
		terms := make([]Expression, len(e.Terms))
		for i, term := range e.Terms {
			terms[i] = mapAtoms(term, f)
		}
		return Intersection{Terms: terms}
	case Exclude:
		return Exclude{Inner: mapAtoms(e.Inner, f)}
	default:
		return expr
	}
}

// Conjoin joins two optional expressions under Intersection, used by
// callers that stack an extra criterion onto an existing selection
func Conjoin(a, b Expression) Expression {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		if inner, ok := a.(Intersection); ok {
			return Intersection{Terms: append(append([]Expression{}, inner.Terms...), b)}
		}
		return Intersection{Terms: []Expression{a, b}}
	}
}
