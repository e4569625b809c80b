package linker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/starford/notelinker/internal/apperr"
	"github.com/starford/notelinker/internal/markdown"
	"github.com/starford/notelinker/internal/vault"
)

// Options tune matching.
type Options struct {
	// CaseInsensitive matches names regardless of case.
	CaseInsensitive bool
	// LinkToSelf keeps a note's own names in the pattern used to scan it.
	LinkToSelf bool
}

// RegexBuildError reports a pattern the regex engine rejected.
type RegexBuildError struct {
	Pattern string
	Err     error
}

func (e *RegexBuildError) Error() string {
	return fmt.Sprintf("linker: build pattern: %v", e.Err)
}

func (e *RegexBuildError) Unwrap() []error { return []error{apperr.ErrRegexBuild, e.Err} }

type group struct {
	path    string
	alias   string
	pattern string
}

// Finder matches the names of a fixed set of notes. Each name becomes its own
// capturing group; longer patterns come first so the longest name wins when
// several start at the same place. A Finder is immutable and safe for
// concurrent use.
type Finder struct {
	groups []group
	opts   Options
}

// New builds a Finder over the names of files.
func New(files []*vault.File, opts Options) *Finder {
	var groups []group
	for _, f := range files {
		seen := make(map[string]bool)
		for _, name := range f.Names() {
			if strings.TrimSpace(name) == "" || seen[name] {
				continue
			}
			seen[name] = true
			groups = append(groups, group{
				path:    f.Path(),
				alias:   name,
				pattern: `(\b` + regexp2.Escape(name) + `\b)`,
			})
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if len(a.pattern) != len(b.pattern) {
			return len(a.pattern) > len(b.pattern)
		}
		if a.path != b.path {
			return a.path < b.path
		}
		return a.alias < b.alias
	})
	return &Finder{groups: groups, opts: opts}
}

// Options returns the options the Finder was built with.
func (f *Finder) Options() Options { return f.opts }

// Pattern returns the alternation used to scan a note, leaving out the
// groups of exclude, and the target path of each group: element i of the
// table belongs to capturing group i+1.
func (f *Finder) Pattern(exclude string) (string, []string) {
	parts := make([]string, 0, len(f.groups))
	targets := make([]string, 0, len(f.groups))
	for _, g := range f.groups {
		if exclude != "" && g.path == exclude {
			continue
		}
		parts = append(parts, g.pattern)
		targets = append(targets, g.path)
	}
	return strings.Join(parts, "|"), targets
}

func (f *Finder) compile(exclude string) (*regexp2.Regexp, []string, error) {
	pattern, targets := f.Pattern(exclude)
	if len(targets) == 0 {
		return nil, nil, nil
	}
	opt := regexp2.None
	if f.opts.CaseInsensitive {
		opt |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(pattern, opt)
	if err != nil {
		return nil, nil, &RegexBuildError{Pattern: pattern, Err: err}
	}
	return re, targets, nil
}

// FindLinks returns the mentions in file of every other note's names, in
// source order. Only linkable prose is scanned.
func (f *Finder) FindLinks(file *vault.File) ([]Link, error) {
	exclude := file.Path()
	if f.opts.LinkToSelf {
		exclude = ""
	}
	re, targets, err := f.compile(exclude)
	if err != nil {
		return nil, err
	}
	if re == nil {
		return nil, nil
	}

	var links []Link
	for _, txt := range markdown.LinkableText(file.Doc()) {
		links, err = scan(re, targets, file.Path(), txt, links)
		if err != nil {
			return nil, err
		}
	}

	if !f.opts.LinkToSelf {
		kept := links[:0]
		for _, l := range links {
			if l.Source != l.Target {
				kept = append(kept, l)
			}
		}
		links = kept
	}
	return links, nil
}

func scan(re *regexp2.Regexp, targets []string, source string, txt *markdown.Text, links []Link) ([]Link, error) {
	s := txt.Value
	// regexp2 reports rune positions; offs maps them back to bytes.
	offs := make([]int, 0, len(s)+1)
	for i := range s {
		offs = append(offs, i)
	}
	offs = append(offs, len(s))

	m, err := re.FindStringMatch(s)
	for ; m != nil && err == nil; m, err = re.FindNextMatch(m) {
		gi, g := firstGroup(m, len(targets))
		if g == nil {
			return nil, fmt.Errorf("linker: %s: match %q at %d has no participating group: %w",
				source, m.String(), txt.Start+offs[m.Index], apperr.ErrInvariant)
		}
		start, end := g.Index, g.Index+g.Length
		if end >= len(offs) {
			return nil, fmt.Errorf("linker: %s: match end %d past text: %w", source, end, apperr.ErrInvariant)
		}
		links = append(links, Link{
			Source:    source,
			Target:    targets[gi-1],
			ByteStart: txt.Start + offs[start],
			ByteEnd:   txt.Start + offs[end],
		})
	}
	if err != nil {
		return nil, fmt.Errorf("linker: scan %s: %w", source, err)
	}
	return links, nil
}

// firstGroup returns the lowest numbered group that took part in m.
func firstGroup(m *regexp2.Match, n int) (int, *regexp2.Group) {
	for i := 1; i <= n; i++ {
		if g := m.GroupByNumber(i); g != nil && len(g.Captures) > 0 {
			return i, g
		}
	}
	return 0, nil
}
