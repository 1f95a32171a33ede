package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path          TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	basename      TEXT NOT NULL DEFAULT '',
	dir           TEXT NOT NULL DEFAULT '',
	created       TEXT,
	heading_count INTEGER NOT NULL DEFAULT 0,
	has_toc       INTEGER NOT NULL DEFAULT 0,
	checksum      TEXT NOT NULL DEFAULT '',
	parse_error   TEXT NOT NULL DEFAULT '',
	position      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS document_tags (
	path     TEXT NOT NULL,
	tag      TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	UNIQUE(path, tag)
);

CREATE TABLE IF NOT EXISTS document_fields (
	path  TEXT NOT NULL,
	name  TEXT NOT NULL,
	value TEXT NOT NULL DEFAULT 'null',
	UNIQUE(path, name)
);

CREATE INDEX IF NOT EXISTS idx_document_tags_tag ON document_tags(tag);
`

// DB is an exported index stored in SQLite.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
