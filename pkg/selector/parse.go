package selector

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/arthur-debert/strata/pkg/errors"
)

// excludeMarker splits a flat token stream into its include half and its
// negated half.
const excludeMarker = "--exclude"

// atomRe captures the flat atom grammar:
//
//	[@][N+][method[.arg]*:]value[+N]
//
// The parents/children groups swallow their '+' so presence is
// distinguishable from an empty depth.
var atomRe = regexp.MustCompile(
	`^(?P<cp>@)?(?P<parents>(?P<pd>\d*)\+)?(?:(?P<method>[\w.]+):)?(?P<value>.*?)(?P<children>\+(?P<cd>\d*))?$`)

// ParseString tokenizes a selector string on whitespace (respecting
// quotes) and parses it. This is the inverse of Expression.String for
// flat-expressible trees.
func ParseString(input string) (Expression, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	return ParseTokens(tokens)
}

// ParseTokens turns an already-tokenized CLI list into an expression
// tree. Whitespace-separated tokens are Intersection (AND) terms; commas
// inside a token separate Union (OR) terms; a "--exclude" marker negates
// everything after it, and the result is include ∪ negated-exclude.
func ParseTokens(tokens []string) (Expression, error) {
	if len(tokens) == 0 {
		return nil, errors.New(errors.ErrSelectorSyntax, "empty selector list")
	}

	var includeTokens, excludeTokens []string
	seenExclude := false
	for i, token := range tokens {
		if token == excludeMarker {
			if seenExclude {
				return nil, errors.New(errors.ErrSelectorSyntax,
					"duplicate --exclude marker").WithTokenIndex(i)
			}
			seenExclude = true
			continue
		}
		if strings.HasPrefix(token, "--") {
			return nil, errors.Newf(errors.ErrSelectorSyntax,
				"unknown operator %q", token).WithTokenIndex(i)
		}
		if seenExclude {
			excludeTokens = append(excludeTokens, token)
		} else {
			includeTokens = append(includeTokens, token)
		}
	}

	include, err := parseSpecifiers(includeTokens)
	if err != nil {
		return nil, err
	}
	if !seenExclude {
		if include == nil {
			return nil, errors.New(errors.ErrSelectorSyntax,
				"selector contained only delimiters but no actual criteria")
		}
		return include, nil
	}

	excluded, err := parseSpecifiers(excludeTokens)
	if err != nil {
		return nil, err
	}
	if excluded == nil {
		return nil, errors.New(errors.ErrSelectorSyntax, "empty exclude list")
	}
	if include == nil {
		return Exclude{Inner: excluded}, nil
	}
	return Union{Terms: []Expression{include, Exclude{Inner: excluded}}}, nil
}

// parseSpecifiers builds the AND level across tokens and the OR level
// within each token. Single terms are never wrapped.
func parseSpecifiers(tokens []string) (Expression, error) {
	var andTerms []Expression

	for i, token := range tokens {
		if strings.TrimSpace(token) == "" {
			continue
		}

		var orTerms []Expression
		for _, piece := range strings.Split(token, ",") {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			criteria, err := parseSingle(piece, i)
			if err != nil {
				return nil, err
			}
			orTerms = append(orTerms, Atom{Criteria: criteria})
		}

		switch len(orTerms) {
		case 0:
			continue
		case 1:
			andTerms = append(andTerms, orTerms[0])
		default:
			andTerms = append(andTerms, Union{Terms: orTerms})
		}
	}

	switch len(andTerms) {
	case 0:
		return nil, nil
	case 1:
		return andTerms[0], nil
	default:
		return Intersection{Terms: andTerms}, nil
	}
}

// parseSingle parses one atom specifier. tokenIndex is attached to every
// error so CLI callers can point at the offending argument.
func parseSingle(raw string, tokenIndex int) (Criteria, error) {
	m := atomRe.FindStringSubmatch(raw)
	if m == nil {
		return Criteria{}, errors.Newf(errors.ErrSelectorSyntax,
			"invalid selector spec %q", raw).WithTokenIndex(tokenIndex)
	}
	group := func(name string) string {
		return m[atomRe.SubexpIndex(name)]
	}

	value := group("value")
	if value == "" || strings.ContainsRune(value, ':') {
		return Criteria{}, errors.Newf(errors.ErrSelectorSyntax,
			"invalid selector spec %q", raw).WithTokenIndex(tokenIndex)
	}

	var method MethodName
	var methodArgs []string
	if qualifier := group("method"); qualifier != "" {
		parts := strings.Split(qualifier, ".")
		var err error
		method, err = ParseMethod(parts[0])
		if err != nil {
			return Criteria{}, errors.Wrapf(err, errors.ErrSelectorUnknownMethod,
				"in selector spec %q", raw).WithTokenIndex(tokenIndex)
		}
		methodArgs = parts[1:]
	} else {
		method = DefaultMethodFor(value)
	}

	criteria := Criteria{
		Method:           method,
		MethodArgs:       methodArgs,
		Value:            value,
		ChildrensParents: group("cp") == "@",
		ParentsDepth:     parseDepth(group("parents"), group("pd")),
		ChildrenDepth:    parseDepth(group("children"), group("cd")),
		Indirect:         IndirectEager,
	}

	// "@foo+" is illegal: childrens-parents already implies children
	if criteria.ChildrensParents && criteria.ChildrenDepth != nil {
		return Criteria{}, errors.Newf(errors.ErrSelectorSyntax,
			"invalid selector %q: \"@\" and trailing \"+\" are incompatible", raw).
			WithTokenIndex(tokenIndex)
	}

	// a '+' that survived inside the value is a malformed depth
	if strings.ContainsRune(criteria.Value, '+') {
		return Criteria{}, errors.Newf(errors.ErrSelectorSyntax,
			"invalid model specifier near %q", raw).WithTokenIndex(tokenIndex)
	}

	return criteria, nil
}

func parseDepth(whole, digits string) *uint32 {
	if whole == "" {
		return nil
	}
	if digits == "" {
		return Depth(UnlimitedDepth)
	}
	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return Depth(UnlimitedDepth) // \d* cannot overflow into here in practice
	}
	return Depth(uint32(n))
}

// tokenize splits on whitespace while respecting single and double
// quotes. Unbalanced quotes are a syntax error.
func tokenize(input string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	var quote rune

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range input {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, errors.Newf(errors.ErrSelectorSyntax,
			"unbalanced %q quote in selector", string(quote)).
			WithTokenIndex(len(tokens))
	}
	flush()
	return tokens, nil
}
