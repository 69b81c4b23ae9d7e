package selection

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/strata/pkg/errors"
	"github.com/arthur-debert/strata/pkg/logging"
	"github.com/arthur-debert/strata/pkg/selector"
)

// set is the working representation of a selection
type set map[string]struct{}

func (s set) add(id string)      { s[id] = struct{}{} }
func (s set) has(id string) bool { _, ok := s[id]; return ok }
func (s set) addAll(other set) {
	for id := range other {
		s[id] = struct{}{}
	}
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func intersect(a, b set) set {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(set, len(a))
	for id := range a {
		if b.has(id) {
			out.add(id)
		}
	}
	return out
}

func subtract(a, b set) set {
	out := make(set, len(a))
	for id := range a {
		if !b.has(id) {
			out.add(id)
		}
	}
	return out
}

// Evaluator applies selector expressions to a graph
type Evaluator struct {
	graph  *Graph
	logger zerolog.Logger
}

// NewEvaluator creates an evaluator over the given graph
func NewEvaluator(graph *Graph) *Evaluator {
	return &Evaluator{
		graph:  graph,
		logger: logging.GetLogger("selection"),
	}
}

// Evaluate returns the sorted unique IDs selected by the expression.
// A nil expression selects nothing.
func (e *Evaluator) Evaluate(expr selector.Expression) ([]string, error) {
	if expr == nil {
		return nil, nil
	}
	selected, err := e.eval(expr)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().
		Str("expression", expr.String()).
		Int("selected", len(selected)).
		Msg("Evaluated selector")
	return selected.sorted(), nil
}

// EvaluateResolved evaluates a compiled include/exclude pair
func (e *Evaluator) EvaluateResolved(resolved selector.Resolved) ([]string, error) {
	return e.Evaluate(resolved.Expression())
}

func (e *Evaluator) eval(expr selector.Expression) (set, error) {
	switch node := expr.(type) {
	case selector.Atom:
		return e.evalAtom(node.Criteria)
	case selector.Union:
		return e.evalUnion(node.Terms)
	case selector.Intersection:
		return e.evalIntersection(node.Terms)
	case selector.Exclude:
		// a bare exclusion selects the complement
		inner, err := e.eval(node.Inner)
		if err != nil {
			return nil, err
		}
		return subtract(e.allIDs(), inner), nil
	default:
		return nil, errors.Newf(errors.ErrInternal,
			"unhandled selector expression %T", expr)
	}
}

// evalUnion accumulates additive terms first, then applies exclusions
// against the accumulated set
func (e *Evaluator) evalUnion(terms []selector.Expression) (set, error) {
	out := make(set)
	var excludes []selector.Expression
	for _, term := range terms {
		if ex, ok := term.(selector.Exclude); ok {
			excludes = append(excludes, ex.Inner)
			continue
		}
		sub, err := e.eval(term)
		if err != nil {
			return nil, err
		}
		out.addAll(sub)
	}
	for _, inner := range excludes {
		sub, err := e.eval(inner)
		if err != nil {
			return nil, err
		}
		out = subtract(out, sub)
	}
	return out, nil
}

func (e *Evaluator) evalIntersection(terms []selector.Expression) (set, error) {
	var out set
	var excludes []selector.Expression
	for _, term := range terms {
		if ex, ok := term.(selector.Exclude); ok {
			excludes = append(excludes, ex.Inner)
			continue
		}
		sub, err := e.eval(term)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = sub
		} else {
			out = intersect(out, sub)
		}
	}
	if out == nil {
		out = make(set)
	}
	for _, inner := range excludes {
		sub, err := e.eval(inner)
		if err != nil {
			return nil, err
		}
		out = subtract(out, sub)
	}
	return out, nil
}

// evalAtom matches the criteria directly, expands along the graph per
// the atom's modifiers, then folds in indirectly selected tests
func (e *Evaluator) evalAtom(c selector.Criteria) (set, error) {
	match, err := e.matcher(c)
	if err != nil {
		return nil, err
	}

	direct := make(set)
	for id, r := range e.graph.resources {
		if match(r) {
			direct.add(id)
		}
	}

	expanded := e.expandGraph(direct, c)
	return e.expandIndirect(expanded, c.Indirect), nil
}

func (e *Evaluator) expandGraph(base set, c selector.Criteria) set {
	out := make(set, len(base))
	out.addAll(base)

	if c.ChildrensParents {
		// the node, everything downstream of it, and everything any
		// of those depend on
		for id := range base {
			for _, child := range e.graph.Children(id, selector.UnlimitedDepth) {
				out.add(child)
			}
		}
		withParents := make(set, len(out))
		withParents.addAll(out)
		for id := range out {
			for _, parent := range e.graph.Parents(id, selector.UnlimitedDepth) {
				withParents.add(parent)
			}
		}
		return withParents
	}

	if c.ParentsDepth != nil {
		for id := range base {
			for _, parent := range e.graph.Parents(id, *c.ParentsDepth) {
				out.add(parent)
			}
		}
	}
	if c.ChildrenDepth != nil {
		for id := range base {
			for _, child := range e.graph.Children(id, *c.ChildrenDepth) {
				out.add(child)
			}
		}
	}
	return out
}

// expandIndirect pulls in tests attached to selected nodes. Eager mode
// takes a test as soon as one of its inputs is selected, cautious only
// when all of them are, buildable when the rest are at least ancestors
// of the selection. Empty mode takes nothing indirectly.
func (e *Evaluator) expandIndirect(selected set, mode selector.IndirectSelection) set {
	if mode == selector.IndirectEmpty {
		return selected
	}

	out := make(set, len(selected))
	out.addAll(selected)

	ancestors := make(set)
	if mode == selector.IndirectBuildable {
		for id := range selected {
			for _, parent := range e.graph.Parents(id, selector.UnlimitedDepth) {
				ancestors.add(parent)
			}
		}
	}

	for id, r := range e.graph.resources {
		if !r.IsTest() || selected.has(id) || len(r.DependsOn) == 0 {
			continue
		}
		anySelected := false
		allSelected := true
		allBuildable := true
		for _, dep := range r.DependsOn {
			if selected.has(dep) {
				anySelected = true
				continue
			}
			allSelected = false
			if !ancestors.has(dep) {
				allBuildable = false
			}
		}
		if !anySelected {
			continue
		}
		switch mode {
		case selector.IndirectCautious:
			if allSelected {
				out.add(id)
			}
		case selector.IndirectBuildable:
			if allSelected || allBuildable {
				out.add(id)
			}
		default:
			out.add(id)
		}
	}
	return out
}

func (e *Evaluator) allIDs() set {
	out := make(set, len(e.graph.resources))
	for id := range e.graph.resources {
		out.add(id)
	}
	return out
}

// matcher builds the per-resource predicate for one criteria
func (e *Evaluator) matcher(c selector.Criteria) (func(*Resource) bool, error) {
	value := c.Value
	switch c.Method {
	case selector.MethodFqn:
		return func(r *Resource) bool { return matchFqn(r, value) }, nil
	case selector.MethodTag:
		return func(r *Resource) bool { return matchAnyGlob(r.Tags, value) }, nil
	case selector.MethodPath:
		return func(r *Resource) bool { return matchPath(r.Path, value) }, nil
	case selector.MethodFile:
		return func(r *Resource) bool { return matchGlob(path.Base(r.Path), value) }, nil
	case selector.MethodPackage:
		return func(r *Resource) bool { return matchGlob(r.PackageName, value) }, nil
	case selector.MethodResourceType:
		return func(r *Resource) bool { return r.ResourceType == value }, nil
	case selector.MethodGroup:
		return func(r *Resource) bool { return r.Group == value }, nil
	case selector.MethodAccess:
		return func(r *Resource) bool { return r.Access == value }, nil
	case selector.MethodVersion:
		return func(r *Resource) bool { return r.Version == value }, nil
	case selector.MethodSource:
		return func(r *Resource) bool {
			return r.ResourceType == "source" && matchFqn(r, value)
		}, nil
	case selector.MethodExposure:
		return func(r *Resource) bool {
			return r.ResourceType == "exposure" && matchGlob(r.Name, value)
		}, nil
	case selector.MethodMetric:
		return func(r *Resource) bool {
			return r.ResourceType == "metric" && matchGlob(r.Name, value)
		}, nil
	case selector.MethodTestName:
		return func(r *Resource) bool {
			return r.IsTest() && matchGlob(r.Name, value)
		}, nil
	case selector.MethodTestType:
		return func(r *Resource) bool {
			return r.IsTest() && r.TestType == value
		}, nil
	case selector.MethodConfig:
		if len(c.MethodArgs) == 0 {
			return nil, errors.New(errors.ErrSelectorSyntax,
				"config method needs a field, e.g. config.materialized:view")
		}
		field := c.MethodArgs[0]
		return func(r *Resource) bool { return matchConfig(r, field, value) }, nil
	case selector.MethodState:
		return nil, errors.New(errors.ErrNotImplemented,
			"state method needs a comparison manifest and none is loaded")
	default:
		return nil, errors.Newf(errors.ErrSelectorUnknownMethod,
			"method %q cannot be evaluated", c.Method)
	}
}

// matchFqn matches a dotted qualified name against the trailing
// components of a resource FQN, with per-segment globs. A single
// segment also matches the bare resource name.
func matchFqn(r *Resource, value string) bool {
	parts := strings.Split(value, ".")
	if len(parts) == 1 && matchGlob(r.Name, value) {
		return true
	}
	if len(parts) > len(r.FQN) {
		return false
	}
	// anchor at every offset so pkg.model and model both work
	for offset := 0; offset+len(parts) <= len(r.FQN); offset++ {
		matched := true
		for i, part := range parts {
			if !matchGlob(r.FQN[offset+i], part) {
				matched = false
				break
			}
		}
		if matched && offset+len(parts) == len(r.FQN) {
			return true
		}
	}
	return false
}

func matchPath(resourcePath, value string) bool {
	cleaned := strings.TrimSuffix(value, "/")
	if resourcePath == cleaned || strings.HasPrefix(resourcePath, cleaned+"/") {
		return true
	}
	return matchGlob(resourcePath, value)
}

func matchAnyGlob(values []string, pattern string) bool {
	for _, v := range values {
		if matchGlob(v, pattern) {
			return true
		}
	}
	return false
}

func matchGlob(value, pattern string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return value == pattern
	}
	ok, err := doublestar.Match(pattern, value)
	return err == nil && ok
}

// matchConfig compares against the effective configuration. Tags are
// a membership test, everything else compares the rendered value.
func matchConfig(r *Resource, field, value string) bool {
	if r.Config == nil {
		return false
	}
	if field == "tags" {
		for _, tag := range r.Config.Tags() {
			if tag == value {
				return true
			}
		}
		return false
	}
	got := r.Config.Value(field)
	if got == nil {
		return false
	}
	return fmt.Sprintf("%v", got) == value
}
