// Package vault holds parsed notes and the corpus they form.
package vault

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/notelinker/internal/apperr"
	"github.com/starford/notelinker/internal/checksum"
	"github.com/starford/notelinker/internal/markdown"
)

const (
	aliasesKey  = "aliases"
	badLinksKey = "bad_links"
)

// File is a successfully parsed note. It is immutable once built.
type File struct {
	path string
	sum  string
	doc  *markdown.Document
}

// NewFile parses content as the note stored at path. A parse failure is
// returned as a *markdown.ParseError carrying the path.
func NewFile(path, content string) (*File, error) {
	return newFile(path, content, checksum.Sum([]byte(content)))
}

func newFile(path, content, sum string) (*File, error) {
	doc, err := markdown.Parse(content)
	if err != nil {
		var pe *markdown.ParseError
		if errors.As(err, &pe) {
			pe.Path = path
			return nil, pe
		}
		return nil, fmt.Errorf("vault: parse %s: %w", path, err)
	}
	return &File{path: path, sum: sum, doc: doc}, nil
}

// Path returns the note's path relative to the vault root.
func (f *File) Path() string { return f.path }

// Checksum returns the digest of the content the file was parsed from.
func (f *File) Checksum() string { return f.sum }

// Doc returns the parsed document.
func (f *File) Doc() *markdown.Document { return f.doc }

// Text returns the normalized note text all spans refer to.
func (f *File) Text() string { return f.doc.Text }

// Title is the file name without its extension.
func (f *File) Title() string {
	base := filepath.Base(f.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Aliases returns the front-matter "aliases" sequence. A missing front
// matter, a YAML error, a missing key or a value that is not a sequence of
// strings yields an error wrapping apperr.ErrAliasUnavailable.
func (f *File) Aliases() ([]string, error) {
	fm := f.doc.FrontMatter
	switch {
	case fm == nil:
		return nil, fmt.Errorf("vault: %s: no front matter: %w", f.path, apperr.ErrAliasUnavailable)
	case fm.Err != nil:
		return nil, fmt.Errorf("vault: %s: %v: %w", f.path, fm.Err, apperr.ErrAliasUnavailable)
	}
	v, ok := fm.Value.Lookup(aliasesKey)
	if !ok {
		return nil, fmt.Errorf("vault: %s: no %q field: %w", f.path, aliasesKey, apperr.ErrAliasUnavailable)
	}
	aliases, ok := v.Strings()
	if !ok {
		return nil, fmt.Errorf("vault: %s: %q is a %s, want a list of strings: %w",
			f.path, aliasesKey, v.Kind, apperr.ErrAliasUnavailable)
	}
	return aliases, nil
}

// Names returns the title followed by every readable alias.
func (f *File) Names() []string {
	names := []string{f.Title()}
	aliases, _ := f.Aliases()
	return append(names, aliases...)
}

// BadLinks returns the front-matter "bad_links" entries. A link whose target
// path ends with one of them is never reported for this note.
func (f *File) BadLinks() []string {
	fm := f.doc.FrontMatter
	if fm == nil || fm.Err != nil {
		return nil
	}
	v, ok := fm.Value.Lookup(badLinksKey)
	if !ok {
		return nil
	}
	out, _ := v.Strings()
	return out
}
