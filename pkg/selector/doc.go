// Package selector implements the node-selection expression model and its
// two parsers: a flat CLI-style token parser and a structured compiler for
// YAML selector-definition files.
//
// The flat grammar, per atom:
//
//	[@][N+][method[.arg]*:]value[+N]
//
// Commas inside a token join Union (OR) terms; whitespace between tokens
// joins Intersection (AND) terms; a "--exclude" marker splits the token
// stream into the include half and the negated half.
//
// Structured definitions support union/intersection composites, method
// atoms with graph modifiers and nested excludes, "method: value"
// shorthands, and references to other named selectors, which are resolved
// recursively with cycle detection.
package selector
