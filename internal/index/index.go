package index

import "github.com/starford/notelinker/internal/linker"

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	GetNote(path string) (*NoteRow, error)
	InvalidNotes() ([]NoteRow, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// LinkCache stores link results per note.
type LinkCache interface {
	PutLinks(path, checksum, fingerprint string, links []linker.Link) error
	GetLinks(path, checksum, fingerprint string) ([]linker.Link, bool, error)
	Mentions(target, fingerprint string) ([]linker.Link, error)
	InvalidateLinks() error
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ NoteIndex = (*DB)(nil)
	_ LinkCache = (*DB)(nil)
)
