package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/notelinker/internal/linker"
	"github.com/starford/notelinker/internal/linkservice"
	"github.com/starford/notelinker/internal/mcpserver"
	"github.com/starford/notelinker/internal/review"
)

// ScanOptions controls the scan and link commands.
type ScanOptions struct {
	JSON   bool // print results as JSON
	Apply  bool // rewrite every found mention without asking
	Review bool // accept or decline each mention interactively
}

// progressPrinter writes batch progress lines as notes finish.
type progressPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *progressPrinter) Progress(done, total int, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, linkservice.ProgressMessage(done, total, path))
}

type fileReport struct {
	Path  string        `json:"path"`
	Links []linker.Link `json:"links"`
	Error string        `json:"error,omitempty"`
}

// Scan finds links across the whole vault and prints them.
func Scan(ctx context.Context, so ScanOptions, opts ...Option) error {
	app := resolve(opts)
	e, cleanup, err := setup(opts, linkservice.WithNotifier(&progressPrinter{w: app.logOut}))
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := e.svc.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	snap, err := e.svc.Snapshot(ctx)
	if err != nil {
		return err
	}

	reports := make([]fileReport, 0, len(res.Files))
	found := make(map[string][]linker.Link)
	for _, f := range res.Files {
		r := fileReport{Path: f.Path, Links: f.Links}
		if r.Links == nil {
			r.Links = []linker.Link{}
		}
		if f.Err != nil {
			r.Error = f.Err.Error()
		}
		reports = append(reports, r)
		if len(f.Links) > 0 {
			found[f.Path] = f.Links
		}
	}

	if err := e.act(ctx, snap, found, so); err != nil {
		return err
	}
	if so.JSON {
		return writeJSON(e.out, reports)
	}
	for _, r := range reports {
		if r.Error != "" {
			_, _ = fmt.Fprintf(e.out, "%s: error: %s\n", r.Path, r.Error)
			continue
		}
		e.printLinks(snap, r.Path, r.Links)
	}
	return nil
}

// Link finds links in the single note at path and prints them.
func Link(ctx context.Context, path string, so ScanOptions, opts ...Option) error {
	e, cleanup, err := setup(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	links, err := e.svc.FindLinks(ctx, path)
	if err != nil {
		return fmt.Errorf("link %s: %w", path, err)
	}
	snap, err := e.svc.Snapshot(ctx)
	if err != nil {
		return err
	}
	if links == nil {
		links = []linker.Link{}
	}

	found := map[string][]linker.Link{}
	if len(links) > 0 {
		found[path] = links
	}
	if err := e.act(ctx, snap, found, so); err != nil {
		return err
	}
	if so.JSON {
		return writeJSON(e.out, links)
	}
	e.printLinks(snap, path, links)
	return nil
}

// Invalid prints the notes that could not be parsed.
func Invalid(ctx context.Context, jsonOut bool, opts ...Option) error {
	e, cleanup, err := setup(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	invalid, err := e.svc.Invalid(ctx)
	if err != nil {
		return err
	}
	if jsonOut {
		type entry struct {
			Path  string `json:"path"`
			Error string `json:"error"`
		}
		out := make([]entry, 0, len(invalid))
		for _, inv := range invalid {
			out = append(out, entry{Path: inv.Path, Error: inv.Err.Error()})
		}
		return writeJSON(e.out, out)
	}
	for _, inv := range invalid {
		_, _ = fmt.Fprintf(e.out, "%s: %s\n", inv.Path, inv.Err)
	}
	return nil
}

// ServeMCP serves the MCP tools over stdin/stdout until the client hangs up.
func ServeMCP(ctx context.Context, opts ...Option) error {
	e, cleanup, err := setup(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := e.svc.Load(ctx); err != nil {
		e.logger.Warn("initial corpus load failed", slog.String("error", err.Error()))
	}
	e.logger.Info("MCP server listening on stdio")
	return mcpserver.New(e.svc, e.store).ServeStdio()
}

// act applies found links, either all of them or the ones accepted in
// review. snap is the snapshot the links were found in.
func (e *env) act(ctx context.Context, snap *linkservice.Snapshot, found map[string][]linker.Link, so ScanOptions) error {
	if (!so.Apply && !so.Review) || len(found) == 0 {
		return nil
	}

	accepted := found
	if so.Review {
		var items []review.Item
		for _, path := range snap.Vault.Paths() {
			links, ok := found[path]
			if !ok {
				continue
			}
			f, err := snap.Vault.File(path)
			if err != nil {
				continue
			}
			items = append(items, review.Item{Path: path, Text: f.Text(), Links: links})
		}
		var err error
		accepted, err = review.Run(items, e.svc.Settings().Color, tea.WithAltScreen())
		if err != nil {
			return err
		}
	}

	// Notes are written in path order; a failing note does not stop the rest.
	var errs []error
	for _, path := range snap.Vault.Paths() {
		links, ok := accepted[path]
		if !ok || len(links) == 0 {
			continue
		}
		ifMatch := ""
		if f, err := snap.Vault.File(path); err == nil {
			ifMatch = f.Checksum()
		}
		res, err := e.svc.Apply(ctx, path, links, ifMatch)
		if err != nil {
			e.logger.Warn("links not written", slog.String("path", path), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("apply %s: %w", path, err))
			continue
		}
		e.logger.Info("links written", slog.String("path", path), slog.Int("count", len(res.Applied)))
	}
	return errors.Join(errs...)
}

func (e *env) printLinks(snap *linkservice.Snapshot, path string, links []linker.Link) {
	text := ""
	if f, err := snap.Vault.File(path); err == nil {
		text = f.Text()
	}
	for _, l := range links {
		_, _ = fmt.Fprintf(e.out, "%s:[%d,%d) %q -> %s\n", path, l.ByteStart, l.ByteEnd, l.Mention(text), l.Target)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
