// Package apperr defines the sentinel errors shared across notelinker.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrParse marks a note whose text matches no grammar production.
	ErrParse = errors.New("parse failure")
	// ErrAliasUnavailable is non-fatal: the note falls back to its title.
	ErrAliasUnavailable = errors.New("aliases unavailable")
	ErrRegexBuild       = errors.New("regex build failure")
	// ErrInvariant marks a structurally impossible parser or scanner state.
	ErrInvariant = errors.New("internal invariant violation")
)
