package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notelinker/internal/apperr"
	"github.com/starford/notelinker/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc Service
}

// NewHandler creates a new Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the note path from the wildcard part of the URL.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeServiceError maps service errors onto status codes.
func writeServiceError(w http.ResponseWriter, op, path string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrParse):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// FindLinks handles GET /api/links/*.
//
//	@Summary		Find unlinked mentions in a note
//	@Tags			links
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	LinksResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/{path} [get]
func (h *Handler) FindLinks(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	links, err := h.svc.FindLinks(r.Context(), path)
	if err != nil {
		writeServiceError(w, "find links", path, err)
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Path: path, Links: nonNilLinks(links)})
}

// FindAll handles GET /api/links.
//
//	@Summary		Scan every note of the vault
//	@Tags			links
//	@Produce		json
//	@Success		200	{object}	BatchResponse
//	@Security		BearerAuth
//	@Router			/links [get]
func (h *Handler) FindAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.FindAll(r.Context())
	if err != nil {
		writeServiceError(w, "scan vault", "", err)
		return
	}
	out := BatchResponse{Files: make([]FileLinks, len(res.Files))}
	for i, f := range res.Files {
		out.Files[i] = FileLinks{Path: f.Path, Links: nonNilLinks(f.Links)}
		if f.Err != nil {
			out.Files[i].Error = f.Err.Error()
		}
		out.Total += len(f.Links)
	}
	writeJSON(w, http.StatusOK, out)
}

// Apply handles POST /api/links/apply/*.
//
//	@Summary		Rewrite mentions of a note into wikilinks
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string			true	"Note path"
//	@Param			If-Match	header		string			false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		ApplyRequest	true	"Links to apply"
//	@Success		200			{object}	ApplyResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/apply/{path} [post]
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req ApplyRequest
	if !readJSON(w, r, &req) {
		return
	}
	if len(req.Links) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("links are required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	res, err := h.svc.Apply(r.Context(), path, req.Links, ifMatch)
	if err != nil {
		writeServiceError(w, "apply links", path, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Preview handles POST /api/links/preview/*.
//
//	@Summary		Preview a single link in its note
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string			true	"Note path"
//	@Param			body	body		PreviewRequest	true	"Link to preview"
//	@Success		200		{object}	PreviewResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/preview/{path} [post]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req PreviewRequest
	if !readJSON(w, r, &req) {
		return
	}
	out, err := h.svc.Preview(r.Context(), path, req.Link)
	if err != nil {
		writeServiceError(w, "preview link", path, err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{Path: path, Preview: out})
}

// Mentions handles GET /api/mentions/*.
//
//	@Summary		List cached mentions of a note
//	@Tags			links
//	@Produce		json
//	@Param			path	path		string	true	"Target note path"
//	@Success		200		{object}	MentionsResponse
//	@Security		BearerAuth
//	@Router			/mentions/{path} [get]
func (h *Handler) Mentions(w http.ResponseWriter, r *http.Request) {
	target := notePath(r)
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	links, err := h.svc.Mentions(r.Context(), target)
	if err != nil {
		writeServiceError(w, "mentions", target, err)
		return
	}
	writeJSON(w, http.StatusOK, MentionsResponse{Target: target, Mentions: nonNilLinks(links)})
}

// Invalid handles GET /api/invalid.
//
//	@Summary		List notes that failed to parse
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	InvalidResponse
//	@Security		BearerAuth
//	@Router			/invalid [get]
func (h *Handler) Invalid(w http.ResponseWriter, r *http.Request) {
	invalid, err := h.svc.Invalid(r.Context())
	if err != nil {
		writeServiceError(w, "list invalid", "", err)
		return
	}
	notes := make([]models.InvalidNote, len(invalid))
	for i, inv := range invalid {
		notes[i] = models.InvalidNote{Path: inv.Path, Error: inv.Err.Error()}
	}
	writeJSON(w, http.StatusOK, InvalidResponse{Notes: notes})
}

// Rescan handles POST /api/rescan.
//
//	@Summary		Reload the vault
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	RescanResponse
//	@Security		BearerAuth
//	@Router			/rescan [post]
func (h *Handler) Rescan(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Load(r.Context())
	if err != nil {
		writeServiceError(w, "rescan", "", err)
		return
	}
	writeJSON(w, http.StatusOK, RescanResponse{
		Valid:   len(snap.Vault.Valid()),
		Invalid: len(snap.Vault.Invalid()),
	})
}
