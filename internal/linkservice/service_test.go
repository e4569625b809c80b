package linkservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notelinker/internal/apperr"
	"github.com/starford/notelinker/internal/checksum"
	"github.com/starford/notelinker/internal/index"
	"github.com/starford/notelinker/internal/linker"
	"github.com/starford/notelinker/internal/markdown"
	"github.com/starford/notelinker/internal/storage"
	"github.com/starford/notelinker/internal/testutil"
	"github.com/starford/notelinker/internal/vault"
)

const (
	turingPath  = "alan turing.md"
	machinePath = "turing machine.md"
)

var defaultSettings = Settings{Linker: linker.Options{CaseInsensitive: true}}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fixtureVault copies the linker fixtures into a fresh vault directory.
func fixtureVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir, store := testutil.TestVault(t)
	for _, name := range []string{turingPath, machinePath} {
		data, err := os.ReadFile(filepath.Join("..", "linker", "testdata", name))
		require.NoError(t, err)
		require.NoError(t, store.Write(name, data))
	}
	return dir, store
}

func writeNote(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestFindLinks_Fixtures(t *testing.T) {
	_, store := fixtureVault(t)
	svc := New(store, defaultSettings, quietLogger())
	ctx := context.Background()

	links, err := svc.FindLinks(ctx, turingPath)
	require.NoError(t, err)
	assert.Equal(t, []linker.Link{
		{Source: turingPath, Target: machinePath, ByteStart: 189, ByteEnd: 203},
	}, links)

	links, err = svc.FindLinks(ctx, machinePath)
	require.NoError(t, err)
	require.Len(t, links, 4)
	assert.Equal(t, 149, links[0].ByteStart)
	assert.Equal(t, 421, links[3].ByteEnd)
}

func TestFindLinks_NotFound(t *testing.T) {
	_, store := fixtureVault(t)
	svc := New(store, defaultSettings, quietLogger())

	_, err := svc.FindLinks(context.Background(), "missing.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFindLinks_InvalidNoteReportsParseError(t *testing.T) {
	dir, store := fixtureVault(t)
	writeNote(t, dir, "broken.md", "a * b\n")
	svc := New(store, defaultSettings, quietLogger())

	_, err := svc.FindLinks(context.Background(), "broken.md")
	require.ErrorIs(t, err, apperr.ErrParse)
	var pe *markdown.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "broken.md", pe.Path)

	invalid, err := svc.Invalid(context.Background())
	require.NoError(t, err)
	require.Len(t, invalid, 1)
	assert.Equal(t, "broken.md", invalid[0].Path)
}

func TestFindLinks_BadLinksSuppressed(t *testing.T) {
	dir, store := testutil.TestVault(t)
	writeNote(t, dir, "gopher.md", "---\nbad_links:\n  - mole.md\n---\nThe gopher met a mole and a badger.\n")
	writeNote(t, dir, "mole.md", "Underground.\n")
	writeNote(t, dir, "badger.md", "Stripes.\n")
	svc := New(store, defaultSettings, quietLogger())

	links, err := svc.FindLinks(context.Background(), "gopher.md")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "badger.md", links[0].Target)
}

func TestFindLinks_FilterExcludes(t *testing.T) {
	dir, store := testutil.TestVault(t)
	writeNote(t, dir, "notes/a.md", "See b and c.\n")
	writeNote(t, dir, "notes/b.md", "B.\n")
	writeNote(t, dir, "archive/c.md", "C.\n")

	settings := defaultSettings
	settings.Filter = vault.Filter{Exclude: []string{"archive"}}
	svc := New(store, settings, quietLogger())

	links, err := svc.FindLinks(context.Background(), filepath.Join("notes", "a.md"))
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, filepath.Join("notes", "b.md"), links[0].Target)
}

func TestFindLinks_UsesCache(t *testing.T) {
	_, store := fixtureVault(t)
	db := testutil.TestDB(t)
	svc := New(store, defaultSettings, quietLogger(), WithCache(db))
	ctx := context.Background()

	want, err := svc.FindLinks(ctx, machinePath)
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	f, err := snap.Vault.File(machinePath)
	require.NoError(t, err)

	cached, ok, err := db.GetLinks(machinePath, f.Checksum(), snap.Fingerprint)
	require.NoError(t, err)
	require.True(t, ok, "result should be cached")
	assert.Equal(t, want, cached)

	mentions, err := svc.Mentions(ctx, turingPath)
	require.NoError(t, err)
	assert.Len(t, mentions, 4)

	// A planted cache entry is served as is.
	planted := []linker.Link{{Source: machinePath, Target: turingPath, ByteStart: 1, ByteEnd: 2}}
	require.NoError(t, db.PutLinks(machinePath, f.Checksum(), snap.Fingerprint, planted))
	got, err := svc.FindLinks(ctx, machinePath)
	require.NoError(t, err)
	assert.Equal(t, planted, got)
}

func TestFingerprint_ChangesWithCorpusNames(t *testing.T) {
	dir, store := fixtureVault(t)
	svc := New(store, defaultSettings, quietLogger())
	ctx := context.Background()

	first, err := svc.Load(ctx)
	require.NoError(t, err)

	writeNote(t, dir, "enigma.md", "Codes.\n")
	svc.HandleEvent(index.Event{Kind: index.EventCreated, Path: "enigma.md"})
	second, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)

	// Content-only edits keep the fingerprint.
	writeNote(t, dir, "enigma.md", "Ciphers.\n")
	svc.MarkStale()
	third, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Fingerprint, third.Fingerprint)
}

// editingStore rewrites a note and reports the change the first time a
// given path is read, as a watcher would while a load is in progress.
type editingStore struct {
	storage.Provider
	trigger string
	edit    func()
	once    sync.Once
}

func (e *editingStore) Read(path string) ([]byte, error) {
	data, err := e.Provider.Read(path)
	if path == e.trigger {
		e.once.Do(e.edit)
	}
	return data, err
}

func TestLoad_ChangeDuringLoadIsNotLost(t *testing.T) {
	dir, store := testutil.TestVault(t)
	writeNote(t, dir, "a.md", "nothing yet\n")
	writeNote(t, dir, "b.md", "target\n")

	es := &editingStore{Provider: store, trigger: "b.md"}
	svc := New(es, defaultSettings, quietLogger())
	es.edit = func() {
		writeNote(t, dir, "a.md", "now mentions b\n")
		svc.MarkStale()
	}
	ctx := context.Background()

	first, err := svc.Load(ctx)
	require.NoError(t, err)
	f, err := first.Vault.File("a.md")
	require.NoError(t, err)
	assert.Equal(t, "nothing yet\n", f.Text(), "a.md was read before the edit")

	links, err := svc.FindLinks(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, []linker.Link{{Source: "a.md", Target: "b.md", ByteStart: 13, ByteEnd: 14}}, links)
}

func TestMentions_ForgetsDeletedTarget(t *testing.T) {
	dir, store := fixtureVault(t)
	db := testutil.TestDB(t)
	svc := New(store, defaultSettings, quietLogger(), WithCache(db))
	ctx := context.Background()

	_, err := svc.FindAll(ctx)
	require.NoError(t, err)
	mentions, err := svc.Mentions(ctx, turingPath)
	require.NoError(t, err)
	require.Len(t, mentions, 4)

	require.NoError(t, os.Remove(filepath.Join(dir, turingPath)))
	require.NoError(t, db.DeleteNote(turingPath))
	svc.HandleEvent(index.Event{Kind: index.EventDeleted, Path: turingPath})

	mentions, err = svc.Mentions(ctx, turingPath)
	require.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestMentions_SkipsEditedSource(t *testing.T) {
	dir, store := fixtureVault(t)
	db := testutil.TestDB(t)
	svc := New(store, defaultSettings, quietLogger(), WithCache(db))
	ctx := context.Background()

	_, err := svc.FindLinks(ctx, machinePath)
	require.NoError(t, err)

	// Same names, new content: the cached offsets no longer apply.
	writeNote(t, dir, machinePath, "# Rewritten\n")
	svc.MarkStale()

	mentions, err := svc.Mentions(ctx, turingPath)
	require.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestSnapshot_ReusedUntilStale(t *testing.T) {
	_, store := fixtureVault(t)
	svc := New(store, defaultSettings, quietLogger())
	ctx := context.Background()

	a, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	b, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Same(t, a, b)

	svc.MarkStale()
	c, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestParseCacheReusedAcrossLoads(t *testing.T) {
	_, store := fixtureVault(t)
	pc, err := vault.NewParseCache(16)
	require.NoError(t, err)
	svc := New(store, defaultSettings, quietLogger(), WithParseCache(pc))
	ctx := context.Background()

	a, err := svc.Load(ctx)
	require.NoError(t, err)
	b, err := svc.Load(ctx)
	require.NoError(t, err)

	fa, _ := a.Vault.File(turingPath)
	fb, _ := b.Vault.File(turingPath)
	assert.Same(t, fa, fb)
	assert.Equal(t, 2, pc.Len())
}

func TestApply(t *testing.T) {
	dir, store := fixtureVault(t)
	db := testutil.TestDB(t)
	svc := New(store, defaultSettings, quietLogger(), WithCache(db))
	ctx := context.Background()

	links, err := svc.FindLinks(ctx, turingPath)
	require.NoError(t, err)

	res, err := svc.Apply(ctx, turingPath, links, "")
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)

	data, err := os.ReadFile(filepath.Join(dir, turingPath))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[[turing machine|Turing Machine]]")
	assert.Equal(t, checksum.Sum(data), res.Checksum)

	// The rewritten mention is a link now, so nothing is left to find.
	links, err = svc.FindLinks(ctx, turingPath)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestApply_Conflicts(t *testing.T) {
	_, store := fixtureVault(t)
	svc := New(store, defaultSettings, quietLogger())
	ctx := context.Background()

	links, err := svc.FindLinks(ctx, turingPath)
	require.NoError(t, err)

	_, err = svc.Apply(ctx, turingPath, links, "stale-checksum")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Apply(ctx, machinePath, links, "")
	assert.ErrorIs(t, err, apperr.ErrConflict, "link from another note")

	_, err = svc.Apply(ctx, "missing.md", nil, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPreview(t *testing.T) {
	_, store := fixtureVault(t)
	settings := defaultSettings
	settings.Color = "teal"
	svc := New(store, settings, quietLogger())
	ctx := context.Background()

	links, err := svc.FindLinks(ctx, turingPath)
	require.NoError(t, err)
	out, err := svc.Preview(ctx, turingPath, links[0])
	require.NoError(t, err)
	assert.Contains(t, out, `<span style="color:teal">\[\[turing machine\|Turing Machine\]\]</span>`)
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) Progress(done, total int, path string) {
	r.mu.Lock()
	r.calls = append(r.calls, ProgressMessage(done, total, path))
	r.mu.Unlock()
}

func TestFindAll(t *testing.T) {
	dir, store := fixtureVault(t)
	writeNote(t, dir, "broken.md", "a * b\n")
	rec := &recorder{}
	settings := defaultSettings
	settings.Workers = 2
	svc := New(store, settings, quietLogger(), WithNotifier(rec), WithCache(testutil.TestDB(t)))

	res, err := svc.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Equal(t, turingPath, res.Files[0].Path)
	assert.Equal(t, machinePath, res.Files[1].Path)
	assert.Len(t, res.Links(), 5)
	assert.Empty(t, res.Failed())

	require.Len(t, rec.calls, 2)
	final := 0
	for _, c := range rec.calls {
		if strings.HasPrefix(c, "(2 / 2) Found links for ") {
			final++
		}
	}
	assert.Equal(t, 1, final, "exactly one task reports completion: %v", rec.calls)
}

func TestFindAll_Cancelled(t *testing.T) {
	_, store := fixtureVault(t)
	svc := New(store, defaultSettings, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.FindAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProgressMessage(t *testing.T) {
	assert.Equal(t, "(3 / 7) Found links for a.md", ProgressMessage(3, 7, "a.md"))
}
