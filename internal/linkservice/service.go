// Package linkservice coordinates the vault, the link finder and the link
// cache. It owns the current corpus snapshot and answers per-note and
// whole-vault link queries.
package linkservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/notelinker/internal/apperr"
	"github.com/starford/notelinker/internal/checksum"
	"github.com/starford/notelinker/internal/index"
	"github.com/starford/notelinker/internal/linker"
	"github.com/starford/notelinker/internal/storage"
	"github.com/starford/notelinker/internal/vault"
)

// Settings control which notes take part and how they are matched.
type Settings struct {
	Filter  vault.Filter
	Linker  linker.Options
	Color   string
	Workers int
}

// Notifier receives batch scan progress.
type Notifier interface {
	Progress(done, total int, path string)
}

// Snapshot is an immutable view of the corpus. Finder is built from the
// valid files of Vault; Fingerprint identifies the names and options it
// matches with.
type Snapshot struct {
	Vault       *vault.Vault
	Finder      *linker.Finder
	Fingerprint string
}

// Service answers link queries over the vault held by a storage provider.
type Service struct {
	store    storage.Provider
	cache    index.LinkCache
	parse    *vault.ParseCache
	settings Settings
	logger   *slog.Logger
	notifier Notifier

	mu      sync.RWMutex
	snap    *Snapshot
	snapGen uint64 // generation snap was read at
	gen     uint64 // bumped by MarkStale
}

// Option configures a Service.
type Option func(*Service)

// WithCache stores link results in c.
func WithCache(c index.LinkCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithParseCache reuses parse results across snapshots.
func WithParseCache(c *vault.ParseCache) Option {
	return func(s *Service) { s.parse = c }
}

// WithNotifier reports batch progress to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// New creates a Service. The corpus is loaded lazily on the first query.
func New(store storage.Provider, settings Settings, logger *slog.Logger, opts ...Option) *Service {
	if settings.Color == "" {
		settings.Color = linker.DefaultColor
	}
	s := &Service{store: store, settings: settings, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Settings returns the service settings.
func (s *Service) Settings() Settings { return s.settings }

// Load reads every allowed note, parses it and replaces the current snapshot.
// A change reported while Load is reading leaves the new snapshot stale, so
// the next query loads again.
func (s *Service) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	metas, err := s.store.List("")
	if err != nil {
		return nil, fmt.Errorf("linkservice: list: %w", err)
	}

	entries := make([]vault.Entry, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.settings.Filter.Allow(m.Path) {
			continue
		}
		data, err := s.store.Read(m.Path)
		if err != nil {
			// The note can vanish between List and Read.
			s.logger.Warn("linkservice: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		entries = append(entries, vault.Entry{Path: m.Path, Content: string(data)})
	}

	var v *vault.Vault
	if s.parse != nil {
		v = s.parse.Build(entries)
	} else {
		v = vault.New(entries)
	}
	snap := &Snapshot{
		Vault:       v,
		Finder:      linker.New(v.Valid(), s.settings.Linker),
		Fingerprint: fingerprint(v, s.settings.Linker),
	}

	s.mu.Lock()
	var prev *Snapshot
	if s.snap == nil || gen >= s.snapGen {
		prev = s.snap
		s.snap, s.snapGen = snap, gen
	}
	s.mu.Unlock()

	if prev != nil && prev.Fingerprint != snap.Fingerprint && s.cache != nil {
		// Results under the old names can never be hit again.
		if err := s.cache.InvalidateLinks(); err != nil {
			s.logger.Warn("linkservice: cache invalidation failed", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("linkservice: corpus loaded",
		slog.Int("valid", len(v.Valid())),
		slog.Int("invalid", len(v.Invalid())))
	return snap, nil
}

// Snapshot returns the current snapshot, loading the corpus when there is
// none or when it was marked stale.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	snap, fresh := s.snap, s.snapGen == s.gen
	s.mu.RUnlock()
	if snap != nil && fresh {
		return snap, nil
	}
	return s.Load(ctx)
}

// MarkStale makes the next query reload the corpus. It is called when a note
// changes on disk.
func (s *Service) MarkStale() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
}

// HandleEvent is an index.EventCallback. Any note change may alter the names
// of the corpus, so the snapshot is rebuilt on the next query.
func (s *Service) HandleEvent(ev index.Event) {
	s.logger.Debug("linkservice: note changed", slog.String("path", ev.Path), slog.String("op", ev.Kind))
	s.MarkStale()
}

// FindLinks returns the unlinked mentions in the note at path.
func (s *Service) FindLinks(ctx context.Context, path string) ([]linker.Link, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	f, err := lookup(snap.Vault, path)
	if err != nil {
		return nil, err
	}
	return s.linksFor(snap, f)
}

// Invalid lists the notes that could not be parsed.
func (s *Service) Invalid(ctx context.Context) ([]vault.Invalid, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Vault.Invalid(), nil
}

// Mentions returns cached links pointing at target. Only notes scanned
// against the current snapshot, in their current content, contribute.
func (s *Service) Mentions(ctx context.Context, target string) ([]linker.Link, error) {
	if s.cache == nil {
		return []linker.Link{}, nil
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	cached, err := s.cache.Mentions(target, snap.Fingerprint)
	if err != nil {
		return nil, err
	}

	current := make(map[string]bool)
	out := make([]linker.Link, 0, len(cached))
	for _, l := range cached {
		ok, seen := current[l.Source]
		if !seen {
			ok = s.cachedFor(snap, l.Source)
			current[l.Source] = ok
		}
		if ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// cachedFor reports whether the cached result of path matches the note's
// content in snap.
func (s *Service) cachedFor(snap *Snapshot, path string) bool {
	f, err := snap.Vault.File(path)
	if err != nil {
		return false
	}
	_, ok, err := s.cache.GetLinks(path, f.Checksum(), snap.Fingerprint)
	return err == nil && ok
}

// Preview renders the note at path with l highlighted as its wikilink.
func (s *Service) Preview(ctx context.Context, path string, l linker.Link) (string, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	f, err := lookup(snap.Vault, path)
	if err != nil {
		return "", err
	}
	return linker.Preview(f.Text(), l, s.settings.Color)
}

// ApplyResult describes a rewritten note.
type ApplyResult struct {
	Path     string        `json:"path"`
	Checksum string        `json:"checksum"`
	Applied  []linker.Link `json:"applied"`
}

// Apply rewrites the given mentions of the note at path into wikilinks and
// writes the note back. When ifMatch is not empty it must equal the checksum
// of the note on disk, otherwise apperr.ErrConflict is returned.
func (s *Service) Apply(ctx context.Context, path string, links []linker.Link, ifMatch string) (*ApplyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, l := range links {
		if l.Source != path {
			return nil, fmt.Errorf("linkservice: link source %q does not match %q: %w", l.Source, path, apperr.ErrConflict)
		}
	}

	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(data) {
		return nil, apperr.ErrConflict
	}
	f, err := vault.NewFile(path, string(data))
	if err != nil {
		return nil, err
	}

	text, applied, err := linker.Apply(f.Text(), links)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return &ApplyResult{Path: path, Checksum: f.Checksum(), Applied: []linker.Link{}}, nil
	}
	if err := s.store.Write(path, []byte(text)); err != nil {
		return nil, err
	}
	s.MarkStale()

	s.logger.Info("linkservice: links applied", slog.String("path", path), slog.Int("count", len(applied)))
	return &ApplyResult{Path: path, Checksum: checksum.Sum([]byte(text)), Applied: applied}, nil
}

func (s *Service) linksFor(snap *Snapshot, f *vault.File) ([]linker.Link, error) {
	if s.cache != nil {
		links, ok, err := s.cache.GetLinks(f.Path(), f.Checksum(), snap.Fingerprint)
		if err != nil {
			s.logger.Warn("linkservice: cache read failed", slog.String("path", f.Path()), slog.String("error", err.Error()))
		} else if ok {
			if links == nil {
				links = []linker.Link{}
			}
			return links, nil
		}
	}

	links, err := snap.Finder.FindLinks(f)
	if err != nil {
		return nil, err
	}
	links = dropBadLinks(links, f.BadLinks())
	if links == nil {
		links = []linker.Link{}
	}

	if s.cache != nil {
		if err := s.cache.PutLinks(f.Path(), f.Checksum(), snap.Fingerprint, links); err != nil {
			s.logger.Warn("linkservice: cache write failed", slog.String("path", f.Path()), slog.String("error", err.Error()))
		}
	}
	return links, nil
}

// lookup finds path among the valid files, returning the parse error for a
// note that is known but invalid.
func lookup(v *vault.Vault, path string) (*vault.File, error) {
	f, err := v.File(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	for _, inv := range v.Invalid() {
		if inv.Path == path {
			return nil, inv.Err
		}
	}
	return nil, err
}

func dropBadLinks(links []linker.Link, bad []string) []linker.Link {
	if len(bad) == 0 {
		return links
	}
	kept := links[:0]
next:
	for _, l := range links {
		for _, b := range bad {
			if b != "" && strings.HasSuffix(l.Target, b) {
				continue next
			}
		}
		kept = append(kept, l)
	}
	return kept
}

func fingerprint(v *vault.Vault, opts linker.Options) string {
	return checksum.Sum([]byte(fmt.Sprintf("%s ci=%t self=%t",
		checksum.Names(v.NameTable()), opts.CaseInsensitive, opts.LinkToSelf)))
}
