package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"
)

// Replace swaps the stored index for idx within one transaction.
func (db *DB) Replace(ctx context.Context, idx *CorpusIndex) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"document_fields", "document_tags", "documents"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}

	docStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (path, title, basename, dir, created, heading_count, has_toc, checksum, parse_error, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare document insert: %w", err)
	}
	defer docStmt.Close()

	tagStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO document_tags (path, tag, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare tag insert: %w", err)
	}
	defer tagStmt.Close()

	fieldStmt, err := tx.PrepareContext(ctx, `INSERT INTO document_fields (path, name, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare field insert: %w", err)
	}
	defer fieldStmt.Close()

	for pos, e := range idx.Entries() {
		var created sql.NullString
		if e.Created != nil {
			created = sql.NullString{String: e.Created.Format(time.RFC3339Nano), Valid: true}
		}
		if _, err := docStmt.ExecContext(ctx, e.Path, e.Title, e.Basename, e.Dir, created,
			e.HeadingCount, e.HasTOC, e.Checksum, e.ParseError, pos); err != nil {
			return fmt.Errorf("index: insert document %s: %w", e.Path, err)
		}
		for i, tag := range e.Tags {
			if _, err := tagStmt.ExecContext(ctx, e.Path, tag, i); err != nil {
				return fmt.Errorf("index: insert tag: %w", err)
			}
		}
		for name, value := range e.Fields {
			raw, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("index: encode field %s of %s: %w", name, e.Path, err)
			}
			if _, err := fieldStmt.ExecContext(ctx, e.Path, name, string(raw)); err != nil {
				return fmt.Errorf("index: insert field: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Get reads one stored entry. The second result is false when path is unknown.
func (db *DB) Get(ctx context.Context, p string) (Entry, bool, error) {
	var (
		e       Entry
		created sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT path, title, basename, dir, created, heading_count, has_toc, checksum, parse_error
		FROM documents WHERE path = ?
	`, p).Scan(&e.Path, &e.Title, &e.Basename, &e.Dir, &created, &e.HeadingCount, &e.HasTOC, &e.Checksum, &e.ParseError)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("index: get %s: %w", p, err)
	}
	if created.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, created.String); err == nil {
			e.Created = &ts
		}
	}

	e.Tags, err = db.strings(ctx, `SELECT tag FROM document_tags WHERE path = ? ORDER BY position`, p)
	if err != nil {
		return Entry{}, false, err
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT name, value FROM document_fields WHERE path = ? ORDER BY name`, p)
	if err != nil {
		return Entry{}, false, fmt.Errorf("index: fields: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return Entry{}, false, err
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return Entry{}, false, fmt.Errorf("index: decode field %s: %w", name, err)
		}
		if e.Fields == nil {
			e.Fields = make(map[string]any)
		}
		e.Fields[name] = v
	}
	if e.Basename == "" {
		e.Basename = path.Base(e.Path)
	}
	return e, true, rows.Err()
}

// ByTag returns the stored paths carrying tag, in corpus order.
func (db *DB) ByTag(ctx context.Context, tag string) ([]string, error) {
	return db.strings(ctx, `
		SELECT t.path FROM document_tags t
		JOIN documents d ON d.path = t.path
		WHERE t.tag = ?
		ORDER BY d.position
	`, tag)
}

// Paths returns every stored path in corpus order.
func (db *DB) Paths(ctx context.Context) ([]string, error) {
	return db.strings(ctx, `SELECT path FROM documents ORDER BY position`)
}

func (db *DB) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
