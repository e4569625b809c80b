package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notelinker/internal/linker"
	"github.com/starford/notelinker/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "notelinker-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"notes", "link_results", "mentions"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestUpsertAndGetNote(t *testing.T) {
	db := testDB(t)
	row := NoteRow{
		Path:      "alan turing.md",
		Title:     "alan turing",
		Checksum:  "abc123",
		Names:     []string{"alan turing", "turing"},
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertNote(row); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	cs, err := db.GetChecksum("alan turing.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}

	got, err := db.GetNote("alan turing.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got == nil || len(got.Names) != 2 || got.Names[1] != "turing" {
		t.Errorf("GetNote = %+v", got)
	}

	missing, err := db.GetNote("nope.md")
	if err != nil || missing != nil {
		t.Errorf("GetNote(missing) = %+v, %v", missing, err)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestInvalidNotes(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "ok.md", Checksum: "1", UpdatedAt: now})
	_ = db.UpsertNote(NoteRow{Path: "bad.md", Checksum: "2", ParseError: "parse failure at line 1, column 3", UpdatedAt: now})

	rows, err := db.InvalidNotes()
	if err != nil {
		t.Fatalf("InvalidNotes: %v", err)
	}
	if len(rows) != 1 || rows[0].Path != "bad.md" {
		t.Errorf("InvalidNotes = %+v, want only bad.md", rows)
	}
}

func TestLinkCache_HitAndMiss(t *testing.T) {
	db := testDB(t)
	links := []linker.Link{
		{Source: "a.md", Target: "b.md", ByteStart: 4, ByteEnd: 9},
		{Source: "a.md", Target: "c.md", ByteStart: 0, ByteEnd: 3},
	}
	if err := db.PutLinks("a.md", "sum1", "fp1", links); err != nil {
		t.Fatalf("PutLinks: %v", err)
	}

	got, ok, err := db.GetLinks("a.md", "sum1", "fp1")
	if err != nil || !ok {
		t.Fatalf("GetLinks: ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0].ByteStart != 0 || got[1].Target != "b.md" {
		t.Errorf("GetLinks = %+v, want links ordered by offset", got)
	}

	if _, ok, _ := db.GetLinks("a.md", "sum2", "fp1"); ok {
		t.Error("changed checksum should miss")
	}
	if _, ok, _ := db.GetLinks("a.md", "sum1", "fp2"); ok {
		t.Error("changed fingerprint should miss")
	}

	empty := []linker.Link{}
	if err := db.PutLinks("d.md", "s", "fp1", empty); err != nil {
		t.Fatalf("PutLinks(empty): %v", err)
	}
	got, ok, _ = db.GetLinks("d.md", "s", "fp1")
	if !ok || len(got) != 0 {
		t.Errorf("empty result should be a hit with no links, got ok=%v %+v", ok, got)
	}
}

func TestMentions(t *testing.T) {
	db := testDB(t)
	_ = db.PutLinks("x.md", "1", "fp", []linker.Link{{Source: "x.md", Target: "t.md", ByteStart: 1, ByteEnd: 2}})
	_ = db.PutLinks("y.md", "1", "fp", []linker.Link{{Source: "y.md", Target: "t.md", ByteStart: 5, ByteEnd: 6}})

	got, err := db.Mentions("t.md", "fp")
	if err != nil {
		t.Fatalf("Mentions: %v", err)
	}
	if len(got) != 2 || got[0].Source != "x.md" {
		t.Errorf("Mentions = %+v", got)
	}

	if err := db.InvalidateLinks(); err != nil {
		t.Fatalf("InvalidateLinks: %v", err)
	}
	got, _ = db.Mentions("t.md", "fp")
	if len(got) != 0 {
		t.Errorf("expected no mentions after invalidation, got %d", len(got))
	}
}

func TestMentions_OnlyCurrentFingerprint(t *testing.T) {
	db := testDB(t)
	_ = db.PutLinks("old.md", "1", "fp-old", []linker.Link{{Source: "old.md", Target: "t.md", ByteStart: 0, ByteEnd: 1}})
	_ = db.PutLinks("new.md", "1", "fp-new", []linker.Link{{Source: "new.md", Target: "t.md", ByteStart: 3, ByteEnd: 4}})

	got, err := db.Mentions("t.md", "fp-new")
	if err != nil {
		t.Fatalf("Mentions: %v", err)
	}
	if len(got) != 1 || got[0].Source != "new.md" {
		t.Errorf("Mentions(fp-new) = %+v, want only new.md", got)
	}
	if got, _ := db.Mentions("t.md", "fp-gone"); len(got) != 0 {
		t.Errorf("unknown fingerprint should have no mentions, got %+v", got)
	}
}

func TestPutLinks_FailedMentionDeleteRollsBack(t *testing.T) {
	db := testDB(t)
	if _, err := db.conn.Exec(`DROP TABLE mentions`); err != nil {
		t.Fatal(err)
	}

	err := db.PutLinks("a.md", "1", "fp", []linker.Link{{Source: "a.md", Target: "b.md", ByteStart: 0, ByteEnd: 1}})
	if err == nil {
		t.Fatal("PutLinks should report the failed mention delete")
	}
	if _, ok, _ := db.GetLinks("a.md", "1", "fp"); ok {
		t.Error("link result must not be committed without its mentions")
	}
	if err := db.DeleteNote("a.md"); err == nil {
		t.Error("DeleteNote should report the failed mention delete")
	}
}

func TestUpsertNote_ChangedChecksumDropsLinks(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "a.md", Checksum: "1", UpdatedAt: now})
	_ = db.PutLinks("a.md", "1", "fp", []linker.Link{{Source: "a.md", Target: "b.md", ByteStart: 0, ByteEnd: 1}})

	_ = db.UpsertNote(NoteRow{Path: "a.md", Checksum: "1", UpdatedAt: now})
	if _, ok, _ := db.GetLinks("a.md", "1", "fp"); !ok {
		t.Error("same checksum should keep cached links")
	}

	_ = db.UpsertNote(NoteRow{Path: "a.md", Checksum: "2", UpdatedAt: now})
	if got, _ := db.Mentions("b.md", "fp"); len(got) != 0 {
		t.Errorf("changed checksum should drop mentions, got %+v", got)
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "del.md", Checksum: "x", UpdatedAt: time.Now()})
	_ = db.PutLinks("del.md", "x", "fp", []linker.Link{{Source: "del.md", Target: "target.md", ByteStart: 0, ByteEnd: 1}})

	if err := db.DeleteNote("del.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	cs, _ := db.GetChecksum("del.md")
	if cs != "" {
		t.Errorf("deleted note still has checksum %q", cs)
	}
	ml, _ := db.Mentions("target.md", "fp")
	if len(ml) != 0 {
		t.Errorf("expected 0 mentions after delete, got %d", len(ml))
	}
}

func TestSync(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	_ = os.WriteFile(filepath.Join(dir, "good.md"), []byte("---\naliases: [g]\n---\nfine\n"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "bad.md"), []byte("a * b\n"), 0o644)
	_ = db.UpsertNote(NoteRow{Path: "gone.md", Checksum: "old", UpdatedAt: time.Now()})

	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	good, _ := db.GetNote("good.md")
	if good == nil || good.ParseError != "" || len(good.Names) != 2 {
		t.Errorf("good.md row = %+v", good)
	}
	bad, _ := db.GetNote("bad.md")
	if bad == nil || bad.ParseError == "" {
		t.Errorf("bad.md should be recorded with its parse error, got %+v", bad)
	}
	if cs, _ := db.GetChecksum("gone.md"); cs != "" {
		t.Error("stale row should be removed")
	}
}
