package selector

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/strata/pkg/errors"
	"github.com/arthur-debert/strata/pkg/logging"
)

// Resolved is a compiled selector: the include expression and the
// optional exclude expression.
type Resolved struct {
	Include Expression
	Exclude Expression
}

// Expression collapses a Resolved into a single tree, combining the
// include set with the negated exclude set (include ∪ negated-exclude)
func (r Resolved) Expression() Expression {
	switch {
	case r.Include == nil && r.Exclude == nil:
		return nil
	case r.Exclude == nil:
		return r.Include
	case r.Include == nil:
		return Exclude{Inner: r.Exclude}
	default:
		return Union{Terms: []Expression{r.Include, Exclude{Inner: r.Exclude}}}
	}
}

// Parser compiles selector definitions into expression trees, resolving
// references to other named definitions recursively. A parser instance
// is not safe for concurrent use; compile each tree on its own parser.
type Parser struct {
	defs      map[string]Definition
	resolving map[string]bool // in-progress names, for cycle detection
	logger    zerolog.Logger
}

// NewParser creates a parser over the table of named definitions
func NewParser(defs map[string]Definition) *Parser {
	return &Parser{
		defs:      defs,
		resolving: make(map[string]bool),
		logger:    logging.GetLogger("selector.parser"),
	}
}

// ParseNamed resolves a named selector. A name already being resolved on
// the current call stack is a definition cycle and fails; it never
// truncates silently or recurses unboundedly.
func (p *Parser) ParseNamed(name string) (Resolved, error) {
	if p.resolving[name] {
		return Resolved{}, errors.Newf(errors.ErrSelectorCycle,
			"selector %q is defined in terms of itself", name).
			WithDetail("name", name)
	}
	def, ok := p.defs[name]
	if !ok {
		return Resolved{}, errors.Newf(errors.ErrSelectorUndefined,
			"unknown selector %q", name).
			WithDetail("name", name).
			WithDetail("available", p.names())
	}

	p.resolving[name] = true
	defer delete(p.resolving, name)
	return p.ParseDefinition(def.Definition)
}

// ParseDefinition compiles one definition value: the bare string form
// routes through the flat tokenizer, the structured form through the
// expression walker.
func (p *Parser) ParseDefinition(dv DefinitionValue) (Resolved, error) {
	if dv.IsString() {
		expr, err := ParseString(dv.Str)
		if err != nil {
			return Resolved{}, spanned(err, dv)
		}
		return Resolved{Include: expr}, nil
	}
	return p.parseExpr(dv.Expr)
}

func (p *Parser) parseExpr(expr *Expr) (Resolved, error) {
	if expr.IsComposite() {
		return p.parseComposite(expr)
	}
	if expr.Atom == nil {
		return Resolved{}, errors.New(errors.ErrSelectorSyntax,
			"empty selector expression").WithSpan(expr.line, expr.column)
	}
	return p.parseAtom(expr.Atom, expr)
}

// parseComposite compiles each sub-definition, gathers their includes
// under the composite's operator and their excludes under Union,
// preserving left-to-right order for deterministic output.
func (p *Parser) parseComposite(expr *Expr) (Resolved, error) {
	values := expr.Union
	isUnion := true
	if values == nil {
		values = expr.Intersection
		isUnion = false
	}

	var includes, excludes []Expression
	for _, value := range values {
		sub, err := p.ParseDefinition(value)
		if err != nil {
			return Resolved{}, err
		}
		if sub.Include != nil {
			includes = append(includes, sub.Include)
		}
		if sub.Exclude != nil {
			excludes = append(excludes, sub.Exclude)
		}
	}

	var include Expression
	switch {
	case len(includes) == 0:
		include = nil
	case isUnion:
		include = Union{Terms: includes}
	default:
		include = Intersection{Terms: includes}
	}

	return Resolved{Include: include, Exclude: collapseUnion(excludes)}, nil
}

func (p *Parser) parseAtom(atom *AtomDef, expr *Expr) (Resolved, error) {
	if atom.MethodKey != nil {
		return p.parseMethodKey(atom.MethodKey, expr)
	}

	if atom.Method == "" {
		// standalone exclude atom
		if len(atom.Exclude) == 0 {
			return Resolved{}, errors.New(errors.ErrSelectorSyntax,
				"empty exclude list").WithSpan(expr.line, expr.column)
		}
		excludes, err := p.collectIncludes(atom.Exclude)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{Exclude: collapseUnion(excludes)}, nil
	}

	// per-atom excludes compile first, they apply to both branches below
	var excludeExpr Expression
	if atom.Exclude != nil {
		if len(atom.Exclude) == 0 {
			return Resolved{}, errors.New(errors.ErrSelectorSyntax,
				"empty exclude list").WithSpan(expr.line, expr.column)
		}
		exprs, err := p.collectIncludes(atom.Exclude)
		if err != nil {
			return Resolved{}, err
		}
		excludeExpr = collapseUnion(exprs)
	}

	// "method: selector" references another named definition
	if atom.Method == SelectorKeyword {
		if atom.ChildrensParents || atom.Parents || atom.Children ||
			atom.ParentsDepth != nil || atom.ChildrenDepth != nil {
			p.logger.Warn().
				Str("selector", atom.Value).
				Msg("Graph operators are not supported with selector inheritance and will be ignored")
		}

		referenced, err := p.ParseNamed(atom.Value)
		if err != nil {
			return Resolved{}, err
		}
		var combined Expression
		switch {
		case referenced.Exclude != nil && excludeExpr != nil:
			combined = Union{Terms: []Expression{referenced.Exclude, excludeExpr}}
		case referenced.Exclude != nil:
			combined = referenced.Exclude
		default:
			combined = excludeExpr
		}
		return Resolved{Include: referenced.Include, Exclude: combined}, nil
	}

	criteria, err := atomCriteria(atom, expr)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Include: Atom{Criteria: criteria}, Exclude: excludeExpr}, nil
}

func (p *Parser) parseMethodKey(kv map[string]string, expr *Expr) (Resolved, error) {
	if len(kv) != 1 {
		return Resolved{}, errors.New(errors.ErrSelectorSyntax,
			"selector shorthand must have exactly one method/value pair").
			WithSpan(expr.line, expr.column)
	}
	for methodKey, value := range kv {
		if methodKey == SelectorKeyword {
			return p.ParseNamed(value)
		}
		method, methodArgs, err := splitMethod(methodKey, expr)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{Include: Atom{Criteria: Criteria{
			Method:     method,
			MethodArgs: methodArgs,
			Value:      value,
			Indirect:   IndirectEager,
		}}}, nil
	}
	return Resolved{}, nil // unreachable, len(kv) == 1
}

// collectIncludes compiles each sub-definition and keeps only its
// include expression; nested definitions inside an exclude list cannot
// themselves contribute excludes.
func (p *Parser) collectIncludes(defs []DefinitionValue) ([]Expression, error) {
	out := make([]Expression, 0, len(defs))
	for _, dv := range defs {
		sub, err := p.ParseDefinition(dv)
		if err != nil {
			return nil, err
		}
		if sub.Include == nil {
			return nil, errors.New(errors.ErrSelectorSyntax,
				"no include expression found in nested definition").
				WithSpan(dv.line, dv.column)
		}
		out = append(out, sub.Include)
	}
	return out, nil
}

func (p *Parser) names() []string {
	names := make([]string, 0, len(p.defs))
	for name := range p.defs {
		names = append(names, name)
	}
	return names
}

func atomCriteria(atom *AtomDef, expr *Expr) (Criteria, error) {
	method, methodArgs, err := splitMethod(atom.Method, expr)
	if err != nil {
		return Criteria{}, err
	}

	parentsDepth := atom.ParentsDepth
	if atom.Parents && parentsDepth == nil {
		parentsDepth = Depth(UnlimitedDepth)
	}
	childrenDepth := atom.ChildrenDepth
	if atom.Children && childrenDepth == nil {
		childrenDepth = Depth(UnlimitedDepth)
	}

	indirect := atom.IndirectSelection
	if indirect == "" {
		indirect = IndirectEager
	}

	return Criteria{
		Method:           method,
		MethodArgs:       methodArgs,
		Value:            atom.Value,
		ChildrensParents: atom.ChildrensParents,
		ParentsDepth:     parentsDepth,
		ChildrenDepth:    childrenDepth,
		Indirect:         indirect,
	}, nil
}

func splitMethod(qualifier string, expr *Expr) (MethodName, []string, error) {
	parts := strings.Split(qualifier, ".")
	method, err := ParseMethod(parts[0])
	if err != nil {
		return "", nil, spannedExpr(err, expr)
	}
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return method, args, nil
}

func collapseUnion(exprs []Expression) Expression {
	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	default:
		return Union{Terms: exprs}
	}
}

func spanned(err error, dv DefinitionValue) error {
	var serr *errors.StrataError
	if e, ok := err.(*errors.StrataError); ok {
		serr = e
	} else {
		serr = errors.Wrap(err, errors.ErrSelectorSyntax, "invalid selector definition")
	}
	if dv.line > 0 {
		serr = serr.WithSpan(dv.line, dv.column)
	}
	return serr
}

func spannedExpr(err error, expr *Expr) error {
	var serr *errors.StrataError
	if e, ok := err.(*errors.StrataError); ok {
		serr = e
	} else {
		serr = errors.Wrap(err, errors.ErrSelectorSyntax, "invalid selector expression")
	}
	if expr != nil && expr.line > 0 {
		serr = serr.WithSpan(expr.line, expr.column)
	}
	return serr
}
