package api

import (
	"github.com/starford/notelinker/internal/linker"
	"github.com/starford/notelinker/internal/linkservice"
	"github.com/starford/notelinker/internal/models"
)

// Link is the wire form of a found mention.
type Link = linker.Link

// LinksResponse lists the unlinked mentions of one note.
type LinksResponse struct {
	Path  string `json:"path" example:"alan turing.md" validate:"required"`
	Links []Link `json:"links" validate:"required"`
}

// FileLinks is one entry of a batch scan.
type FileLinks struct {
	Path  string `json:"path" example:"alan turing.md" validate:"required"`
	Links []Link `json:"links" validate:"required"`
	Error string `json:"error,omitempty" example:"internal invariant violation"`
}

// BatchResponse wraps a whole-vault scan.
type BatchResponse struct {
	Files []FileLinks `json:"files" validate:"required"`
	Total int         `json:"total" example:"12" validate:"required"`
}

// ApplyRequest is the request body for applying links to a note.
type ApplyRequest struct {
	Links []Link `json:"links" validate:"required"`
}

// ApplyResponse describes the rewritten note.
type ApplyResponse = linkservice.ApplyResult

// PreviewRequest is the request body for previewing a single link.
type PreviewRequest struct {
	Link Link `json:"link" validate:"required"`
}

// PreviewResponse carries the highlighted note text.
type PreviewResponse struct {
	Path    string `json:"path" example:"alan turing.md" validate:"required"`
	Preview string `json:"preview" validate:"required"`
}

// MentionsResponse lists cached mentions pointing at a note.
type MentionsResponse struct {
	Target   string `json:"target" example:"turing machine.md" validate:"required"`
	Mentions []Link `json:"mentions" validate:"required"`
}

// InvalidResponse lists the notes that failed to parse.
type InvalidResponse struct {
	Notes []models.InvalidNote `json:"notes" validate:"required"`
}

// RescanResponse reports the size of the reloaded corpus.
type RescanResponse struct {
	Valid   int `json:"valid" example:"40" validate:"required"`
	Invalid int `json:"invalid" example:"2" validate:"required"`
}

func nonNilLinks(ls []Link) []Link {
	if ls == nil {
		return []Link{}
	}
	return ls
}
