package vault

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/notelinker/internal/apperr"
	"github.com/starford/notelinker/internal/checksum"
)

// Entry is a raw note as read from storage.
type Entry struct {
	Path    string
	Content string
}

// Invalid is a note that could not be parsed.
type Invalid struct {
	Path     string
	Checksum string
	Err      error
}

// Vault is an immutable set of notes, partitioned into parsed files and
// invalid entries. All accessors return results sorted by path.
type Vault struct {
	files   []*File
	byPath  map[string]*File
	invalid []Invalid
}

// New parses every entry.
func New(entries []Entry) *Vault {
	return assemble(entries, func(e Entry) (*File, error) {
		return NewFile(e.Path, e.Content)
	})
}

func assemble(entries []Entry, parse func(Entry) (*File, error)) *Vault {
	v := &Vault{byPath: make(map[string]*File, len(entries))}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Path] {
			v.invalid = append(v.invalid, Invalid{
				Path: e.Path,
				Err:  fmt.Errorf("vault: %s: duplicate path: %w", e.Path, apperr.ErrAlreadyExists),
			})
			continue
		}
		seen[e.Path] = true

		f, err := parse(e)
		if err != nil {
			v.invalid = append(v.invalid, Invalid{
				Path:     e.Path,
				Checksum: checksum.Sum([]byte(e.Content)),
				Err:      err,
			})
			continue
		}
		v.files = append(v.files, f)
		v.byPath[f.path] = f
	}
	sort.Slice(v.files, func(i, j int) bool { return v.files[i].path < v.files[j].path })
	sort.SliceStable(v.invalid, func(i, j int) bool { return v.invalid[i].Path < v.invalid[j].Path })
	return v
}

// Valid returns the parsed files.
func (v *Vault) Valid() []*File { return v.files }

// Invalid returns the entries that failed to parse.
func (v *Vault) Invalid() []Invalid { return v.invalid }

// File returns the parsed file at path.
func (v *Vault) File(path string) (*File, error) {
	f, ok := v.byPath[path]
	if !ok {
		return nil, fmt.Errorf("vault: %s: %w", path, apperr.ErrNotFound)
	}
	return f, nil
}

// Paths returns the paths of the parsed files.
func (v *Vault) Paths() []string {
	out := make([]string, len(v.files))
	for i, f := range v.files {
		out[i] = f.path
	}
	return out
}

// NameTable maps every parsed path to its names.
func (v *Vault) NameTable() map[string][]string {
	out := make(map[string][]string, len(v.files))
	for _, f := range v.files {
		out[f.path] = f.Names()
	}
	return out
}

// Filter selects notes by path prefix. Blank prefixes are ignored, an empty
// Include admits every path and Exclude always wins.
type Filter struct {
	Include []string
	Exclude []string
}

// Allow reports whether path passes the filter.
func (f Filter) Allow(path string) bool {
	p := filepath.ToSlash(path)
	for _, ex := range f.Exclude {
		if hasPathPrefix(p, ex) {
			return false
		}
	}
	restricted := false
	for _, in := range f.Include {
		if strings.TrimSpace(in) == "" {
			continue
		}
		restricted = true
		if hasPathPrefix(p, in) {
			return true
		}
	}
	return !restricted
}

// Apply returns the entries that pass the filter, preserving order.
func (f Filter) Apply(entries []Entry) []Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if f.Allow(e.Path) {
			out = append(out, e)
		}
	}
	return out
}

func hasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimSpace(filepath.ToSlash(prefix))
	if prefix == "" {
		return false
	}
	return strings.HasPrefix(path, prefix)
}
