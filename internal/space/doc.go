// Package space implements the Private, Public and Stage element and version
// stores on top of the raw repositories.
//
// The repositories only store rows. This package layers the space rules on
// them: dirty tracking and hash guards in Private, clone-on-write revisions
// in Public, conflict resolution in Stage. All three spaces share one
// space-parameterized helper (tree) that turns an ElementContext and the
// session carried by the context into a repository scope.
//
// Expected absence is reported as (value, false, nil). Rows that must exist
// but do not are reported as model Internal errors.
package space
