package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/notelinker/internal/linker"
)

// PutLinks stores the links computed for path. checksum is the content the
// links were found in; fingerprint identifies the corpus names and options.
func (db *DB) PutLinks(path, checksum, fingerprint string, links []linker.Link) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO link_results (path, checksum, fingerprint, computed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum    = excluded.checksum,
			fingerprint = excluded.fingerprint,
			computed_at = excluded.computed_at
	`, path, checksum, fingerprint, time.Now())
	if err != nil {
		return fmt.Errorf("index: upsert link result: %w", err)
	}

	// Replace mentions: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM mentions WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: clear mentions: %w", err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO mentions (source, target, byte_start, byte_end) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare mention insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			if _, err := stmt.Exec(path, l.Target, l.ByteStart, l.ByteEnd); err != nil {
				return fmt.Errorf("index: insert mention: %w", err)
			}
		}
	}

	return tx.Commit()
}

// GetLinks returns the cached links of path when they were computed for the
// same checksum and fingerprint. The second result is false on a miss.
func (db *DB) GetLinks(path, checksum, fingerprint string) ([]linker.Link, bool, error) {
	var cs, fp string
	err := db.conn.QueryRow(`SELECT checksum, fingerprint FROM link_results WHERE path = ?`, path).Scan(&cs, &fp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("index: get link result: %w", err)
	}
	if cs != checksum || fp != fingerprint {
		return nil, false, nil
	}

	links, err := db.queryMentions(`SELECT source, target, byte_start, byte_end FROM mentions WHERE source = ? ORDER BY byte_start`, path)
	if err != nil {
		return nil, false, err
	}
	return links, true, nil
}

// Mentions returns the cached unlinked mentions of target, ordered by source
// then offset. Only results computed under fingerprint are included.
func (db *DB) Mentions(target, fingerprint string) ([]linker.Link, error) {
	return db.queryMentions(`
		SELECT m.source, m.target, m.byte_start, m.byte_end
		FROM mentions m
		JOIN link_results r ON r.path = m.source
		WHERE m.target = ? AND r.fingerprint = ?
		ORDER BY m.source, m.byte_start`, target, fingerprint)
}

// InvalidateLinks drops every cached link result.
func (db *DB) InvalidateLinks() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM mentions`); err != nil {
		return fmt.Errorf("index: clear mentions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM link_results`); err != nil {
		return fmt.Errorf("index: clear link results: %w", err)
	}
	return tx.Commit()
}

func (db *DB) queryMentions(query string, args ...any) ([]linker.Link, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: mentions: %w", err)
	}
	defer rows.Close()

	out := []linker.Link{}
	for rows.Next() {
		var l linker.Link
		if err := rows.Scan(&l.Source, &l.Target, &l.ByteStart, &l.ByteEnd); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// dropStaleResults removes the cached result of path unless it was computed
// for checksum.
func dropStaleResults(tx *sql.Tx, path, checksum string) error {
	var cs string
	err := tx.QueryRow(`SELECT checksum FROM link_results WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && cs == checksum) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("index: read link result: %w", err)
	}
	return dropResults(tx, path)
}

// dropResults removes the cached result of path and its mentions.
func dropResults(tx *sql.Tx, path string) error {
	if _, err := tx.Exec(`DELETE FROM mentions WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: drop mentions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM link_results WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: drop link result: %w", err)
	}
	return nil
}
