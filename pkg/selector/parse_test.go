package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/strata/pkg/errors"
)

func atom(method MethodName, value string) Atom {
	return Atom{Criteria: Criteria{Method: method, Value: value, Indirect: IndirectEager}}
}

func TestParseSingleAtoms(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Criteria
	}{
		{
			name:     "bare_identifier_defaults_to_fqn",
			input:    "customers",
			expected: Criteria{Method: MethodFqn, Value: "customers", Indirect: IndirectEager},
		},
		{
			name:     "path_separator_defaults_to_path",
			input:    "models/staging",
			expected: Criteria{Method: MethodPath, Value: "models/staging", Indirect: IndirectEager},
		},
		{
			name:     "sql_suffix_defaults_to_file",
			input:    "customers.sql",
			expected: Criteria{Method: MethodFile, Value: "customers.sql", Indirect: IndirectEager},
		},
		{
			name:     "qualified_method",
			input:    "tag:nightly",
			expected: Criteria{Method: MethodTag, Value: "nightly", Indirect: IndirectEager},
		},
		{
			name:  "dotted_method_args",
			input: "config.materialized:view",
			expected: Criteria{
				Method: MethodConfig, MethodArgs: []string{"materialized"},
				Value: "view", Indirect: IndirectEager,
			},
		},
		{
			name:  "at_pattern",
			input: "@customers",
			expected: Criteria{
				Method: MethodFqn, Value: "customers",
				ChildrensParents: true, Indirect: IndirectEager,
			},
		},
		{
			name:  "unlimited_parents",
			input: "+customers",
			expected: Criteria{
				Method: MethodFqn, Value: "customers",
				ParentsDepth: Depth(UnlimitedDepth), Indirect: IndirectEager,
			},
		},
		{
			name:  "bounded_parents",
			input: "2+customers",
			expected: Criteria{
				Method: MethodFqn, Value: "customers",
				ParentsDepth: Depth(2), Indirect: IndirectEager,
			},
		},
		{
			name:  "unlimited_children",
			input: "customers+",
			expected: Criteria{
				Method: MethodFqn, Value: "customers",
				ChildrenDepth: Depth(UnlimitedDepth), Indirect: IndirectEager,
			},
		},
		{
			name:  "bounded_children",
			input: "tag:nightly+3",
			expected: Criteria{
				Method: MethodTag, Value: "nightly",
				ChildrenDepth: Depth(3), Indirect: IndirectEager,
			},
		},
		{
			name:  "parents_and_children",
			input: "1+customers+2",
			expected: Criteria{
				Method: MethodFqn, Value: "customers",
				ParentsDepth: Depth(1), ChildrenDepth: Depth(2), Indirect: IndirectEager,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseString(tt.input)
			require.NoError(t, err)
			require.IsType(t, Atom{}, expr)
			assert.Equal(t, tt.expected, expr.(Atom).Criteria)
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  errors.ErrorCode
	}{
		{"empty_value_plus_plus", "++", errors.ErrSelectorSyntax},
		{"empty_value_at", "@", errors.ErrSelectorSyntax},
		{"empty_value_qualifier_only", "+:", errors.ErrSelectorSyntax},
		{"at_with_trailing_plus", "@customers+", errors.ErrSelectorSyntax},
		{"non_numeric_depth", "customers+abc", errors.ErrSelectorSyntax},
		{"unknown_method", "flavor:chocolate", errors.ErrSelectorUnknownMethod},
		{"unknown_operator", "tag:nightly --invert tag:x", errors.ErrSelectorSyntax},
		{"duplicate_exclude", "a --exclude b --exclude c", errors.ErrSelectorSyntax},
		{"unbalanced_quote", `path:"models/staging`, errors.ErrSelectorSyntax},
		{"only_delimiters", " , ", errors.ErrSelectorSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input)
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, tt.code),
				"expected %s, got %v", tt.code, err)
		})
	}
}

func TestParseEmptyTokenList(t *testing.T) {
	_, err := ParseTokens(nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSelectorSyntax))
}

func TestParseErrorCarriesTokenIndex(t *testing.T) {
	_, err := ParseTokens([]string{"tag:nightly", "flavor:chocolate"})
	require.Error(t, err)
	assert.Equal(t, 1, errors.GetErrorDetails(err)["token"])
}

func TestParseCommaIsUnion(t *testing.T) {
	expr, err := ParseString("tag:nightly,path:models/staging")
	require.NoError(t, err)

	expected := Union{Terms: []Expression{
		atom(MethodTag, "nightly"),
		atom(MethodPath, "models/staging"),
	}}
	assert.Equal(t, expected, expr)
}

func TestParseWhitespaceIsIntersection(t *testing.T) {
	expr, err := ParseString("tag:nightly path:models/staging")
	require.NoError(t, err)

	expected := Intersection{Terms: []Expression{
		atom(MethodTag, "nightly"),
		atom(MethodPath, "models/staging"),
	}}
	assert.Equal(t, expected, expr)
}

func TestParseExcludeComposite(t *testing.T) {
	expr, err := ParseString("tag:nightly --exclude tag:deprecated")
	require.NoError(t, err)

	expected := Union{Terms: []Expression{
		atom(MethodTag, "nightly"),
		Exclude{Inner: atom(MethodTag, "deprecated")},
	}}
	assert.Equal(t, expected, expr)
}

func TestParseExcludeOnly(t *testing.T) {
	expr, err := ParseTokens([]string{"--exclude", "tag:deprecated"})
	require.NoError(t, err)
	assert.Equal(t, Exclude{Inner: atom(MethodTag, "deprecated")}, expr)
}

func TestParseMixedOperators(t *testing.T) {
	// AND across tokens, OR inside a token
	expr, err := ParseString("tag:nightly,tag:weekly path:models/core")
	require.NoError(t, err)

	expected := Intersection{Terms: []Expression{
		Union{Terms: []Expression{atom(MethodTag, "nightly"), atom(MethodTag, "weekly")}},
		atom(MethodPath, "models/core"),
	}}
	assert.Equal(t, expected, expr)
}

func TestParseSkipsEmptyTokens(t *testing.T) {
	expr, err := ParseTokens([]string{"tag:nightly", "", "  "})
	require.NoError(t, err)
	assert.Equal(t, atom(MethodTag, "nightly"), expr)
}

func TestPrettyPrintRoundTrip(t *testing.T) {
	exprs := []Expression{
		atom(MethodTag, "nightly"),
		Atom{Criteria: Criteria{
			Method: MethodFqn, Value: "customers",
			ChildrensParents: true, Indirect: IndirectEager,
		}},
		Atom{Criteria: Criteria{
			Method: MethodFqn, Value: "orders",
			ParentsDepth: Depth(2), ChildrenDepth: Depth(UnlimitedDepth),
			Indirect: IndirectEager,
		}},
		Atom{Criteria: Criteria{
			Method: MethodConfig, MethodArgs: []string{"materialized"},
			Value: "view", Indirect: IndirectEager,
		}},
		Union{Terms: []Expression{atom(MethodTag, "nightly"), atom(MethodTag, "weekly")}},
		Intersection{Terms: []Expression{
			atom(MethodTag, "nightly"),
			atom(MethodPath, "models/staging"),
		}},
		Union{Terms: []Expression{
			atom(MethodTag, "nightly"),
			Exclude{Inner: atom(MethodTag, "deprecated")},
		}},
		Intersection{Terms: []Expression{
			Union{Terms: []Expression{atom(MethodTag, "a"), atom(MethodTag, "b")}},
			atom(MethodSource, "events"),
		}},
	}

	for _, expr := range exprs {
		t.Run(expr.String(), func(t *testing.T) {
			back, err := ParseString(expr.String())
			require.NoError(t, err)
			assert.Equal(t, expr, back)
		})
	}
}

func TestCriteriaString(t *testing.T) {
	tests := []struct {
		criteria Criteria
		expected string
	}{
		{Criteria{Method: MethodTag, Value: "nightly"}, "tag:nightly"},
		{Criteria{Method: MethodFqn, Value: "m", ChildrensParents: true}, "@fqn:m"},
		{Criteria{Method: MethodFqn, Value: "m", ParentsDepth: Depth(UnlimitedDepth)}, "+fqn:m"},
		{Criteria{Method: MethodFqn, Value: "m", ParentsDepth: Depth(3)}, "3+fqn:m"},
		{Criteria{Method: MethodFqn, Value: "m", ChildrenDepth: Depth(UnlimitedDepth)}, "fqn:m+"},
		{Criteria{Method: MethodFqn, Value: "m", ChildrenDepth: Depth(4)}, "fqn:m+4"},
		{Criteria{Method: MethodConfig, MethodArgs: []string{"materialized"}, Value: "view"}, "config.materialized:view"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.criteria.String())
	}
}

func TestConjoin(t *testing.T) {
	a := atom(MethodTag, "a")
	b := atom(MethodTag, "b")

	assert.Equal(t, a, Conjoin(a, nil))
	assert.Equal(t, b, Conjoin(nil, b))
	assert.Equal(t, Intersection{Terms: []Expression{a, b}}, Conjoin(a, b))

	c := atom(MethodTag, "c")
	assert.Equal(t,
		Intersection{Terms: []Expression{a, b, c}},
		Conjoin(Conjoin(a, b), c))
}
