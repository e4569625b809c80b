package linker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notelinker/internal/apperr"
)

func TestApply(t *testing.T) {
	text := "Alan Turing built the Turing machine.\n"
	links := []Link{
		{Source: "n.md", Target: "machines/turing machine.md", ByteStart: 22, ByteEnd: 36},
		{Source: "n.md", Target: "alan turing.md", ByteStart: 0, ByteEnd: 11},
		{Source: "n.md", Target: "turing.md", ByteStart: 22, ByteEnd: 28},
	}

	got, applied, err := Apply(text, links)
	require.NoError(t, err)
	assert.Equal(t, "[[alan turing|Alan Turing]] built the [[machines/turing machine|Turing machine]].\n", got)

	require.Len(t, applied, 2)
	for _, l := range applied {
		assert.Equal(t, "[[", got[l.ByteStart:l.ByteStart+2])
		assert.Equal(t, "]]", got[l.ByteEnd-2:l.ByteEnd])
	}
}

func TestApply_StaleLink(t *testing.T) {
	_, _, err := Apply("short\n", []Link{{ByteStart: 2, ByteEnd: 40}})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestPreview(t *testing.T) {
	text := "see Alan Turing here"
	l := Link{Target: "alan turing.md", ByteStart: 4, ByteEnd: 15}

	got, err := Preview(text, l, "")
	require.NoError(t, err)
	assert.Equal(t, `see <span style="color:red">\[\[alan turing\|Alan Turing\]\]</span> here`, got)

	got, err = Preview(text, l, "#2ecc71")
	require.NoError(t, err)
	assert.Contains(t, got, `color:#2ecc71`)
}

func TestWikiTarget(t *testing.T) {
	assert.Equal(t, "dir/note", WikiTarget("dir/note.md"))
	assert.Equal(t, "plain.txt", WikiTarget("plain.txt"))
}
