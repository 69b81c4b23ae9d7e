// Package config implements the hierarchical configuration merge engine.
//
// A project is a tree of configuration fragments (global defaults, then
// package, directory, file and inline scopes). Each scope declares fields
// as tri-state omissible values; the merge engine walks the tree
// depth-first, parent before child, and produces one Effective
// configuration per scope. The per-field rules are:
//
//  1. child omitted      -> inherit the parent's effective value verbatim
//  2. child explicit null -> effective value is null, whatever the parent says
//  3. child explicit value -> effective value is the child's value
//
// Collection-typed fields replace wholesale on rule 3 unless the field is
// declared additive in the Schema, in which case the child's elements are
// unioned with the inherited ones (tags behave this way).
package config
