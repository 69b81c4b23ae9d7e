// Package resolver ties the engine together: it merges configuration
// trees for every package of a workspace, compiles the requested
// selector, and evaluates it against the resource graph.
package resolver

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/strata/pkg/config"
	"github.com/arthur-debert/strata/pkg/errors"
	"github.com/arthur-debert/strata/pkg/logging"
	"github.com/arthur-debert/strata/pkg/selection"
	"github.com/arthur-debert/strata/pkg/selector"
	"github.com/arthur-debert/strata/pkg/settings"
)

// PackageInput is one package's configuration tree awaiting resolution
type PackageInput struct {
	Name string
	Tree *config.Node
}

// Request carries everything one resolution run needs
type Request struct {
	// Packages are resolved concurrently, bounded by the worker setting
	Packages []*PackageInput

	// Resources form the graph the selection is evaluated against
	Resources []*selection.Resource

	// Selectors is the compiled-from-YAML document; may be nil
	Selectors *selector.File

	// Selection holds the caller's select/exclude/selector arguments
	Selection selector.Request
}

// Result is the outcome of a run
type Result struct {
	// InvocationID tags every log line of the run
	InvocationID string

	// Configs maps scope paths (pkg/models/staging) to effective values
	Configs map[string]*config.Effective

	// Selected lists the chosen unique IDs in sorted order
	Selected []string

	// Errors collects per-package failures when strict mode is off
	Errors []error
}

// Resolver executes resolution runs
type Resolver struct {
	settings *settings.Settings
	merger   *config.Merger
	logger   zerolog.Logger
}

// New creates a resolver using the default field schema
func New(s *settings.Settings) *Resolver {
	return NewWithSchema(s, config.DefaultSchema())
}

// NewWithSchema creates a resolver over a custom field schema
func NewWithSchema(s *settings.Settings, schema *config.Schema) *Resolver {
	return &Resolver{
		settings: s,
		merger:   config.NewMerger(schema),
		logger:   logging.GetLogger("resolver"),
	}
}

// Run resolves every package's configuration, then the selection.
// In strict mode the first package error aborts the run; otherwise
// errors are collected on the result and the remaining packages still
// resolve.
func (r *Resolver) Run(ctx context.Context, req Request) (*Result, error) {
	result := &Result{
		InvocationID: uuid.New().String(),
		Configs:      make(map[string]*config.Effective),
	}
	logger := r.logger.With().Str("invocation_id", result.InvocationID).Logger()
	defer logging.LogOperationStart(logger, "resolution")()

	if r.settings.Resolver.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.settings.Resolver.Timeout)
		defer cancel()
	}

	logger.Info().
		Int("packages", len(req.Packages)).
		Int("resources", len(req.Resources)).
		Msg("Starting resolution run")

	if err := r.resolvePackages(ctx, req.Packages, result, logger); err != nil {
		return nil, err
	}

	selected, err := r.resolveSelection(req, logger)
	if err != nil {
		return nil, err
	}
	result.Selected = selected

	logger.Info().
		Int("scopes", len(result.Configs)).
		Int("selected", len(result.Selected)).
		Int("errors", len(result.Errors)).
		Msg("Resolution run complete")
	return result, nil
}

type packageOutcome struct {
	name    string
	configs map[string]*config.Effective
	err     error
}

// resolvePackages fans the package trees out over a bounded worker
// pool and folds the outcomes back into the result
func (r *Resolver) resolvePackages(ctx context.Context, packages []*PackageInput, result *Result, logger zerolog.Logger) error {
	if len(packages) == 0 {
		return nil
	}

	// an early strict-mode return must still unblock the feeder
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := r.settings.Resolver.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(packages) {
		workers = len(packages)
	}

	jobs := make(chan *PackageInput)
	outcomes := make(chan packageOutcome, len(packages))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pkg := range jobs {
				if err := ctx.Err(); err != nil {
					outcomes <- packageOutcome{name: pkg.Name, err: err}
					continue
				}
				configs, err := r.merger.Resolve(pkg.Tree)
				outcomes <- packageOutcome{name: pkg.Name, configs: configs, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, pkg := range packages {
			select {
			case jobs <- pkg:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for outcome := range outcomes {
		if outcome.err != nil {
			wrapped := errors.Wrapf(outcome.err, errors.GetErrorCode(outcome.err),
				"resolving package %q", outcome.name)
			if r.settings.Resolver.Strict {
				return wrapped
			}
			logger.Error().Err(wrapped).Str("package", outcome.name).
				Msg("Package failed, continuing")
			result.Errors = append(result.Errors, wrapped)
			continue
		}
		for key, eff := range outcome.configs {
			result.Configs[key] = eff
		}
		logger.Debug().Str("package", outcome.name).
			Int("scopes", len(outcome.configs)).Msg("Package resolved")
	}
	return nil
}

func (r *Resolver) resolveSelection(req Request, logger zerolog.Logger) ([]string, error) {
	sel := req.Selection
	// the configured fallback fills CLI input only; a named selector
	// keeps the modes its definition recorded unless the caller
	// explicitly overrides them
	if sel.Indirect == "" && sel.Selector == "" {
		sel.Indirect = selector.IndirectSelection(r.settings.Selectors.Indirect)
	}

	resolved, err := selector.ResolveFinal(req.Selectors, sel)
	if err != nil {
		return nil, err
	}

	expr := resolved.Expression()
	if expr == nil {
		return nil, nil
	}

	graph := selection.NewGraph(req.Resources)
	selected, err := selection.NewEvaluator(graph).Evaluate(expr)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("expression", expr.String()).
		Int("selected", len(selected)).Msg("Selection evaluated")
	return selected, nil
}
