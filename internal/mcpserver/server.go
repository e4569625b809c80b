// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes notelinker tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notelinker/internal/linker"
	"github.com/starford/notelinker/internal/linkservice"
	"github.com/starford/notelinker/internal/models"
	"github.com/starford/notelinker/internal/storage"
	"github.com/starford/notelinker/internal/vault"
)

const linkFormatURI = "notelinker://link-format"

// Service is the link service surface used by the tools.
type Service interface {
	FindLinks(ctx context.Context, path string) ([]linker.Link, error)
	FindAll(ctx context.Context) (linkservice.BatchResult, error)
	Invalid(ctx context.Context) ([]vault.Invalid, error)
	Preview(ctx context.Context, path string, l linker.Link) (string, error)
	Apply(ctx context.Context, path string, links []linker.Link, ifMatch string) (*linkservice.ApplyResult, error)
}

// Server wraps the MCP server with notelinker tools.
type Server struct {
	mcp   *server.MCPServer
	svc   Service
	store storage.Provider
}

// New creates a new MCP server with all notelinker tools registered.
func New(svc Service, store storage.Provider) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"notelinker",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("find_links",
		mcp.WithDescription("Find unlinked mentions of other notes' titles and aliases in a note. "+
			"Returns a JSON array of {source, target, byte_start, byte_end}."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.findLinks)

	s.mcp.AddTool(mcp.NewTool("scan_vault",
		mcp.WithDescription("Find unlinked mentions in every note of the vault."),
	), s.scanVault)

	s.mcp.AddTool(mcp.NewTool("list_invalid_notes",
		mcp.WithDescription("List notes that could not be parsed, with the parse error."),
	), s.listInvalidNotes)

	s.mcp.AddTool(mcp.NewTool("preview_link",
		mcp.WithDescription("Show a note with one mention replaced by its highlighted wikilink."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Path of the note the mention refers to")),
		mcp.WithNumber("byte_start", mcp.Required(), mcp.Description("Byte offset where the mention starts")),
		mcp.WithNumber("byte_end", mcp.Required(), mcp.Description("Byte offset where the mention ends")),
	), s.previewLink)

	s.mcp.AddTool(mcp.NewTool("apply_links",
		mcp.WithDescription("Rewrite mentions of a note into [[target|text]] wikilinks. "+
			"Read the link format first via the "+linkFormatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
		mcp.WithString("links", mcp.Description("JSON array of links from find_links; all found links when omitted")),
		mcp.WithString("if_match", mcp.Description("Expected SHA-256 checksum of the note")),
	), s.applyLinks)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddResource(
		mcp.NewResource(linkFormatURI, "Link Format",
			mcp.WithResourceDescription("How mentions are found and rewritten into wikilinks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLinkFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) findLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.svc.FindLinks(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if links == nil {
		links = []linker.Link{}
	}
	return jsonResult(links), nil
}

type fileLinks struct {
	Path  string        `json:"path"`
	Links []linker.Link `json:"links"`
	Error string        `json:"error,omitempty"`
}

func (s *Server) scanVault(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.FindAll(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]fileLinks, 0, len(res.Files))
	for _, f := range res.Files {
		if len(f.Links) == 0 && f.Err == nil {
			continue
		}
		fl := fileLinks{Path: f.Path, Links: f.Links}
		if f.Err != nil {
			fl.Error = f.Err.Error()
		}
		out = append(out, fl)
	}
	return jsonResult(out), nil
}

func (s *Server) listInvalidNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	invalid, err := s.svc.Invalid(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(invalid) == 0 {
		return mcp.NewToolResultText("no invalid notes"), nil
	}
	notes := make([]models.InvalidNote, len(invalid))
	for i, inv := range invalid {
		notes[i] = models.InvalidNote{Path: inv.Path, Error: inv.Err.Error()}
	}
	return jsonResult(notes), nil
}

func (s *Server) previewLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, err := req.RequireInt("byte_start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := req.RequireInt("byte_end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := s.svc.Preview(ctx, path, linker.Link{Source: path, Target: target, ByteStart: start, ByteEnd: end})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) applyLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var links []linker.Link
	if raw := req.GetString("links", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &links); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid links: %v", err)), nil
		}
	} else {
		links, err = s.svc.FindLinks(ctx, path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no links to apply"), nil
	}

	res, err := s.svc.Apply(ctx, path, links, req.GetString("if_match", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := s.store.List(req.GetString("folder", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) readLinkFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      linkFormatURI,
			MIMEType: "text/markdown",
			Text:     LinkFormat,
		},
	}, nil
}
