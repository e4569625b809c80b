// Package models defines the storage-facing types for notelinker.
package models

import "time"

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvalidNote reports a note that could not be parsed.
type InvalidNote struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}
