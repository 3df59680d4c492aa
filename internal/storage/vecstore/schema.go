package vecstore

import (
	"database/sql"
	"fmt"
)

// One DDL constant per table; a chunk belongs to a source document and
// carries its frequently-filtered metadata as typed columns so
// predicates can be pushed down into SQL.
const createSourcesTable = `
CREATE TABLE IF NOT EXISTS sources (
	id              TEXT PRIMARY KEY,
	path            TEXT NOT NULL,
	content_hash    TEXT NOT NULL,
	chunk_count     INTEGER NOT NULL DEFAULT 0,
	last_ingested_at TEXT NOT NULL
)`

const createChunksTable = `
CREATE TABLE IF NOT EXISTS chunks (
	id               TEXT PRIMARY KEY,
	source_id        TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	position         INTEGER NOT NULL,
	text             TEXT NOT NULL,
	byte_start       INTEGER NOT NULL,
	byte_end         INTEGER NOT NULL,
	line_start       INTEGER NOT NULL,
	line_end         INTEGER NOT NULL,
	content_type     TEXT NOT NULL,
	language         TEXT NOT NULL,
	hash             TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	splitter_tag     TEXT NOT NULL,
	tags             TEXT NOT NULL DEFAULT '[]',
	file_name        TEXT NOT NULL,
	file_type        TEXT NOT NULL,
	file_size_bytes  INTEGER NOT NULL,
	file_modified_at TEXT NOT NULL,
	file_line_count  INTEGER NOT NULL
)`

const createChunksIndexBySource = `
CREATE INDEX IF NOT EXISTS idx_chunks_source_id ON chunks(source_id)
`

const createIndexMetadataTable = `
CREATE TABLE IF NOT EXISTS index_metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// createSchema creates all tables and indexes in one transaction,
// all-or-nothing.
func createSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	ddls := []string{
		createSourcesTable,
		createChunksTable,
		createChunksIndexBySource,
		createIndexMetadataTable,
	}
	for _, ddl := range ddls {
		if _, err := tx.Exec(ddl); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return tx.Commit()
}
