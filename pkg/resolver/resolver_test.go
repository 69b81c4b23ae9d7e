package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/strata/pkg/config"
	"github.com/arthur-debert/strata/pkg/errors"
	"github.com/arthur-debert/strata/pkg/selection"
	"github.com/arthur-debert/strata/pkg/selector"
	"github.com/arthur-debert/strata/pkg/settings"
)

func testSettings(strict bool) *settings.Settings {
	return &settings.Settings{
		Resolver: settings.ResolverSettings{
			Workers: 2,
			Strict:  strict,
			Timeout: 10 * time.Second,
		},
		Selectors: settings.SelectorSettings{Indirect: "eager"},
	}
}

func packageTree(name, schemaName string) *config.Node {
	root := config.NewNode(name)
	root.Set("schema", schemaName)
	staging := root.AddChild(config.NewNode("staging"))
	staging.Set("materialized", "view")
	return root
}

func testResources() []*selection.Resource {
	return []*selection.Resource{
		{
			UniqueID:     "model.app.stg_events",
			Name:         "stg_events",
			PackageName:  "app",
			Path:         "models/staging/stg_events.sql",
			FQN:          []string{"app", "staging", "stg_events"},
			Tags:         []string{"nightly"},
			ResourceType: "model",
		},
		{
			UniqueID:     "model.app.orders",
			Name:         "orders",
			PackageName:  "app",
			Path:         "models/marts/orders.sql",
			FQN:          []string{"app", "marts", "orders"},
			ResourceType: "model",
			DependsOn:    []string{"model.app.stg_events"},
		},
	}
}

func TestRunResolvesPackagesAndSelection(t *testing.T) {
	r := New(testSettings(true))

	result, err := r.Run(context.Background(), Request{
		Packages: []*PackageInput{
			{Name: "app", Tree: packageTree("app", "analytics")},
			{Name: "shared", Tree: packageTree("shared", "common")},
		},
		Resources: testResources(),
		Selection: selector.Request{Select: []string{"tag:nightly"}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.InvocationID)
	assert.Empty(t, result.Errors)

	require.Contains(t, result.Configs, "app")
	require.Contains(t, result.Configs, "app/staging")
	require.Contains(t, result.Configs, "shared/staging")
	assert.Equal(t, "analytics", result.Configs["app"].Value("schema"))
	assert.Equal(t, "analytics", result.Configs["app/staging"].Value("schema"))
	assert.Equal(t, "view", result.Configs["app/staging"].Value("materialized"))
	assert.Equal(t, "common", result.Configs["shared/staging"].Value("schema"))

	assert.Equal(t, []string{"model.app.stg_events"}, result.Selected)
}

func TestRunFreshInvocationIDs(t *testing.T) {
	r := New(testSettings(true))
	a, err := r.Run(context.Background(), Request{})
	require.NoError(t, err)
	b, err := r.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.NotEqual(t, a.InvocationID, b.InvocationID)
}

func TestRunStrictAbortsOnPackageError(t *testing.T) {
	r := New(testSettings(true))

	bad := config.NewNode("bad")
	bad.Set("enabled", "definitely") // bool field

	_, err := r.Run(context.Background(), Request{
		Packages: []*PackageInput{
			{Name: "good", Tree: packageTree("good", "x")},
			{Name: "bad", Tree: bad},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigType))
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestRunLenientCollectsPackageErrors(t *testing.T) {
	r := New(testSettings(false))

	bad := config.NewNode("bad")
	bad.Set("enabled", "definitely")

	result, err := r.Run(context.Background(), Request{
		Packages: []*PackageInput{
			{Name: "good", Tree: packageTree("good", "x")},
			{Name: "bad", Tree: bad},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.True(t, errors.IsErrorCode(result.Errors[0], errors.ErrConfigType))
	// the healthy package still resolved
	assert.Contains(t, result.Configs, "good/staging")
}

func TestRunNamedSelector(t *testing.T) {
	r := New(testSettings(true))

	file, err := selector.ParseFile([]byte(`
selectors:
  - name: nightly
    definition: tag:nightly
`))
	require.NoError(t, err)

	result, err := r.Run(context.Background(), Request{
		Resources: testResources(),
		Selectors: file,
		Selection: selector.Request{Selector: "nightly"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"model.app.stg_events"}, result.Selected)
}

func TestRunUndefinedSelector(t *testing.T) {
	r := New(testSettings(true))

	_, err := r.Run(context.Background(), Request{
		Resources: testResources(),
		Selection: selector.Request{Selector: "ghost"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSelectorUndefined))
}

func TestRunEmptySelectionRequest(t *testing.T) {
	r := New(testSettings(true))

	result, err := r.Run(context.Background(), Request{Resources: testResources()})
	require.NoError(t, err)
	assert.Empty(t, result.Selected)
}

func TestRunCanceledContext(t *testing.T) {
	r := New(testSettings(true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, Request{
		Packages: []*PackageInput{{Name: "app", Tree: packageTree("app", "x")}},
	})
	require.Error(t, err)
}

func TestRunManyPackages(t *testing.T) {
	r := New(testSettings(true))

	var packages []*PackageInput
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		packages = append(packages, &PackageInput{
			Name: name, Tree: packageTree(name, "schema_"+name),
		})
	}

	result, err := r.Run(context.Background(), Request{Packages: packages})
	require.NoError(t, err)
	assert.Len(t, result.Configs, 16)
	assert.Equal(t, "schema_c", result.Configs["c"].Value("schema"))
}
