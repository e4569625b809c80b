package index

import (
	"log/slog"
	"time"

	"github.com/starford/notelinker/internal/checksum"
	"github.com/starford/notelinker/internal/storage"
	"github.com/starford/notelinker/internal/vault"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and their row upserted
//   - files removed from disk are deleted together with their cached links
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile parses data and upserts the resulting row. A note that does not
// parse is still recorded, with its error.
func indexFile(db *DB, path string, data []byte) error {
	row := NoteRow{
		Path:      path,
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now(),
	}
	f, err := vault.NewFile(path, string(data))
	if err != nil {
		row.ParseError = err.Error()
	} else {
		row.Title = f.Title()
		row.Names = f.Names()
	}
	return db.UpsertNote(row)
}
