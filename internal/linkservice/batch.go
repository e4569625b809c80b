package linkservice

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/starford/notelinker/internal/apperr"
	"github.com/starford/notelinker/internal/linker"
	"github.com/starford/notelinker/internal/vault"
)

// FileResult holds the links found in one note, or the error that stopped
// its scan.
type FileResult struct {
	Path  string
	Links []linker.Link
	Err   error
}

// BatchResult is the outcome of a whole-vault scan, ordered by path.
type BatchResult struct {
	Files []FileResult
}

// Links returns every link of the batch in path and source order.
func (b BatchResult) Links() []linker.Link {
	var out []linker.Link
	for _, r := range b.Files {
		out = append(out, r.Links...)
	}
	return out
}

// Failed returns the results whose scan failed.
func (b BatchResult) Failed() []FileResult {
	var out []FileResult
	for _, r := range b.Files {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// FindAll scans every valid note of the current snapshot. A failing note is
// reported in its FileResult and does not stop the others; only
// cancellation of ctx aborts the batch.
func (s *Service) FindAll(ctx context.Context) (BatchResult, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	files := snap.Vault.Valid()
	results := make([]FileResult, len(files))

	workers := s.settings.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			links, err := s.scanOne(snap, f)
			results[i] = FileResult{Path: f.Path(), Links: links, Err: err}
			if err != nil {
				s.logger.Warn("linkservice: scan failed", slog.String("path", f.Path()), slog.String("error", err.Error()))
			}
			n := int(done.Add(1))
			s.logger.Debug("linkservice: scanned", slog.String("path", f.Path()), slog.Int("links", len(links)))
			if s.notifier != nil {
				s.notifier.Progress(n, len(files), f.Path())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}
	return BatchResult{Files: results}, nil
}

// scanOne runs one read-only task. A panic in the scanner is reported as an
// invariant violation for this note only.
func (s *Service) scanOne(snap *Snapshot, f *vault.File) (links []linker.Link, err error) {
	defer func() {
		if r := recover(); r != nil {
			links = nil
			err = fmt.Errorf("linkservice: scan %s: %v: %w", f.Path(), r, apperr.ErrInvariant)
		}
	}()
	return s.linksFor(snap, f)
}

// ProgressMessage formats batch progress for display.
func ProgressMessage(done, total int, path string) string {
	return fmt.Sprintf("(%d / %d) Found links for %s", done, total, path)
}
