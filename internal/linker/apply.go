package linker

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/notelinker/internal/apperr"
)

// DefaultColor is the preview color used when none is configured.
const DefaultColor = "red"

// WikiTarget returns the wikilink target for a note path: slash separated,
// without the ".md" extension.
func WikiTarget(path string) string {
	return strings.TrimSuffix(filepath.ToSlash(path), ".md")
}

// Wikilink renders the replacement for mention pointing at target.
func Wikilink(target, mention string) string {
	return "[[" + WikiTarget(target) + "|" + mention + "]]"
}

// Apply rewrites the mention of every link into a wikilink and returns the new
// text with the links that were applied, their offsets shifted to the new
// text. Links are applied in source order; a link overlapping an earlier one
// is skipped. A link that does not fit text fails with apperr.ErrConflict.
func Apply(text string, links []Link) (string, []Link, error) {
	sorted := append([]Link(nil), links...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ByteStart < sorted[j].ByteStart })

	var (
		b       strings.Builder
		applied []Link
		last    int
		delta   int
	)
	for _, l := range sorted {
		if err := checkBounds(text, l); err != nil {
			return "", nil, err
		}
		if l.ByteStart < last {
			continue
		}
		mention := text[l.ByteStart:l.ByteEnd]
		repl := Wikilink(l.Target, mention)

		b.WriteString(text[last:l.ByteStart])
		b.WriteString(repl)
		last = l.ByteEnd

		shifted := l
		shifted.ByteStart += delta
		shifted.ByteEnd = shifted.ByteStart + len(repl)
		applied = append(applied, shifted)
		delta += len(repl) - len(mention)
	}
	b.WriteString(text[last:])
	return b.String(), applied, nil
}

// Preview renders text with the mention of l replaced by its escaped
// wikilink inside a colored span.
func Preview(text string, l Link, color string) (string, error) {
	if err := checkBounds(text, l); err != nil {
		return "", err
	}
	if color == "" {
		color = DefaultColor
	}
	mention := text[l.ByteStart:l.ByteEnd]
	span := fmt.Sprintf(`<span style="color:%s">\[\[%s\|%s\]\]</span>`, color, WikiTarget(l.Target), mention)
	return text[:l.ByteStart] + span + text[l.ByteEnd:], nil
}

func checkBounds(text string, l Link) error {
	if l.ByteStart < 0 || l.ByteStart >= l.ByteEnd || l.ByteEnd > len(text) {
		return fmt.Errorf("linker: link [%d,%d) outside text of %d bytes: %w",
			l.ByteStart, l.ByteEnd, len(text), apperr.ErrConflict)
	}
	return nil
}
