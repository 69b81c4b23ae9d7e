package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFragmentFields(t *testing.T) {
	root, err := LoadFragment("models", []byte(`
+schema: analytics
+tags: [daily, core]
+enabled: true
`))
	require.NoError(t, err)

	v, ok := root.Field("schema").Get()
	require.True(t, ok)
	assert.Equal(t, "analytics", v)

	tags, ok := root.Field("tags").Get()
	require.True(t, ok)
	assert.Equal(t, []string{"daily", "core"}, tags)

	enabled, ok := root.Field("enabled").Get()
	require.True(t, ok)
	assert.Equal(t, true, enabled)
}

func TestLoadFragmentExplicitNullSurvives(t *testing.T) {
	root, err := LoadFragment("models", []byte("+schema: null\n"))
	require.NoError(t, err)
	assert.True(t, root.Field("schema").IsNull())
}

func TestLoadFragmentAbsentKeyIsOmitted(t *testing.T) {
	root, err := LoadFragment("models", []byte("+schema: analytics\n"))
	require.NoError(t, err)
	assert.True(t, root.Field("database").IsOmitted())
}

func TestLoadFragmentChildScopes(t *testing.T) {
	root, err := LoadFragment("models", []byte(`
+schema: null
staging:
  +schema: stg
  +tags: [nightly]
  vendor:
marts:
  +materialized: table
`))
	require.NoError(t, err)

	require.Len(t, root.Children, 2)
	staging := root.Children[0]
	assert.Equal(t, "staging", staging.Name)
	v, _ := staging.Field("schema").Get()
	assert.Equal(t, "stg", v)

	// "vendor:" with no body is an all-omitted scope
	require.Len(t, staging.Children, 1)
	assert.Equal(t, "vendor", staging.Children[0].Name)
	assert.Empty(t, staging.Children[0].Fields)

	assert.Equal(t, "marts", root.Children[1].Name)
}

func TestLoadFragmentEmptyDocument(t *testing.T) {
	root, err := LoadFragment("models", []byte(""))
	require.NoError(t, err)
	assert.Equal(t, "models", root.Name)
	assert.Empty(t, root.Fields)
}

func TestLoadFragmentScalarScopeRejected(t *testing.T) {
	_, err := LoadFragment("models", []byte("staging: not_a_scope\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIG_PARSE")
}

func TestLoadFragmentMalformedYAML(t *testing.T) {
	_, err := LoadFragment("models", []byte("+schema: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIG_PARSE")
}

func TestLoadFragmentThenResolve(t *testing.T) {
	root, err := LoadFragment("models", []byte(`
+schema: null
+tags: [base]
pkg:
  +schema: pkg_schema
  model:
`))
	require.NoError(t, err)

	effs, err := NewMerger(DefaultSchema()).Resolve(root)
	require.NoError(t, err)

	model := effs["models/pkg/model"]
	require.NotNil(t, model)
	assert.Equal(t, "pkg_schema", model.Value("schema"))
	assert.Equal(t, []string{"base"}, model.Tags())
}
