package selector

import (
	"github.com/arthur-debert/strata/pkg/errors"
	"github.com/arthur-debert/strata/pkg/logging"
)

// Entry is a fully compiled named selector
type Entry struct {
	Resolved    Resolved
	IsDefault   bool
	Description string
}

// Request carries the caller-supplied selection arguments: flat CLI
// tokens and/or the name of a selector definition to use.
type Request struct {
	Select   []string
	Exclude  []string
	Selector string
	Indirect IndirectSelection // fallback mode applied to atoms that carry none
}

func (r Request) hasCLIArgs() bool {
	return len(r.Select) > 0 || len(r.Exclude) > 0
}

// CompileFile compiles every definition in a selectors document and
// validates that at most one is marked default.
func CompileFile(file *File) (map[string]Entry, error) {
	defs := make(map[string]Definition, len(file.Selectors))
	for _, def := range file.Selectors {
		defs[def.Name] = def
	}

	entries := make(map[string]Entry, len(file.Selectors))
	defaults := 0
	for _, def := range file.Selectors {
		resolved, err := NewParser(defs).ParseDefinition(def.Definition)
		if err != nil {
			return nil, errors.Wrapf(err, errors.GetErrorCode(err),
				"compiling selector %q", def.Name)
		}
		if def.Default {
			defaults++
		}
		entries[def.Name] = Entry{
			Resolved:    resolved,
			IsDefault:   def.Default,
			Description: def.Description,
		}
	}
	if defaults > 1 {
		return nil, errors.New(errors.ErrSelectorDefault,
			"multiple selectors have default: true")
	}
	return entries, nil
}

// ResolveFinal computes the final include/exclude pair from a selectors
// document (which may be nil) and the caller's arguments.
//
// Precedence: an explicitly named selector wins; otherwise explicit CLI
// select/exclude tokens win; otherwise the document's default selector
// applies. CLI arguments and the default are never merged.
func ResolveFinal(file *File, req Request) (Resolved, error) {
	logger := logging.GetLogger("selector.resolve")

	var entries map[string]Entry
	if file != nil {
		var err error
		entries, err = CompileFile(file)
		if err != nil {
			return Resolved{}, err
		}
	}

	if req.Selector != "" {
		entry, ok := entries[req.Selector]
		if !ok {
			return Resolved{}, errors.Newf(errors.ErrSelectorUndefined,
				"unknown selector %q (see selectors file)", req.Selector).
				WithDetail("name", req.Selector)
		}
		logger.Debug().Str("selector", req.Selector).Msg("Using named selector")
		return forceIndirect(entry.Resolved, req.Indirect), nil
	}

	if req.hasCLIArgs() {
		resolved, err := parseRequestArgs(req)
		if err != nil {
			return Resolved{}, err
		}
		return applyIndirect(resolved, req.Indirect), nil
	}

	for name, entry := range entries {
		if entry.IsDefault {
			logger.Debug().Str("selector", name).Msg("Using default selector")
			return applyIndirect(entry.Resolved, req.Indirect), nil
		}
	}

	// nothing requested, nothing defaulted: an empty selection request
	return Resolved{}, nil
}

func parseRequestArgs(req Request) (Resolved, error) {
	var resolved Resolved
	if len(req.Select) > 0 {
		expr, err := ParseTokens(req.Select)
		if err != nil {
			return Resolved{}, err
		}
		resolved.Include = expr
	}
	if len(req.Exclude) > 0 {
		expr, err := ParseTokens(req.Exclude)
		if err != nil {
			return Resolved{}, err
		}
		resolved.Exclude = expr
	}
	return resolved, nil
}

// applyIndirect fills the mode in on atoms that carry none (CLI fallback)
func applyIndirect(resolved Resolved, mode IndirectSelection) Resolved {
	if mode == "" {
		return resolved
	}
	if resolved.Include != nil {
		resolved.Include = ApplyDefaultIndirect(resolved.Include, mode)
	}
	if resolved.Exclude != nil {
		resolved.Exclude = ApplyDefaultIndirect(resolved.Exclude, mode)
	}
	return resolved
}

// forceIndirect overrides the mode on every atom; an explicit CLI mode
// beats whatever the selector definition recorded
func forceIndirect(resolved Resolved, mode IndirectSelection) Resolved {
	if mode == "" {
		return resolved
	}
	if resolved.Include != nil {
		resolved.Include = SetIndirect(resolved.Include, mode)
	}
	if resolved.Exclude != nil {
		resolved.Exclude = SetIndirect(resolved.Exclude, mode)
	}
	return resolved
}
