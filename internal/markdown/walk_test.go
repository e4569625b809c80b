package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkableText(t *testing.T) {
	doc := mustParse(t, richNote)

	var got []string
	for _, txt := range LinkableText(doc) {
		got = append(got, txt.Value)
	}
	want := []string{
		"Title",
		"Some ", "bold ", " text", " and ", "it", " and ", "both", ".",
		"first ", " item",
		"nested ", " bullet",
		" quote line", " nested quote", " back to top",
		"tail ", " ",
	}
	assert.Equal(t, want, got)
}

func TestLinkableText_SkipsOpaque(t *testing.T) {
	doc := mustParse(t, "[[alpha]] [alpha](x) `alpha` $alpha$ [alpha]\n```\nalpha\n```\n")
	for _, txt := range LinkableText(doc) {
		assert.NotContains(t, txt.Value, "alpha")
	}
}

func TestInspect_Prune(t *testing.T) {
	doc := mustParse(t, "> quoted words\nfree words\n")

	var seen []string
	Inspect(doc, func(e Element) bool {
		if _, ok := e.(*BlockQuote); ok {
			return false
		}
		if txt, ok := e.(*Text); ok {
			seen = append(seen, txt.Value)
		}
		return true
	})
	require.Len(t, seen, 1)
	assert.True(t, strings.HasPrefix(seen[0], "free"))
}
