package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Schema uses snowflake IDs, so primary keys carry no AUTOINCREMENT.
// context_hash is NOT NULL with the '__GLOBAL__' sentinel so the
// (content_id, target_lang, context_hash) uniqueness holds with a single index.
const baseSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS content (
  content_id INTEGER PRIMARY KEY,
  value TEXT NOT NULL UNIQUE,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sources (
  business_id TEXT PRIMARY KEY,
  content_id INTEGER NOT NULL,
  context_hash TEXT NOT NULL DEFAULT '__GLOBAL__',
  last_seen_at TEXT NOT NULL,
  FOREIGN KEY (content_id) REFERENCES content(content_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sources_content_id ON sources(content_id);
CREATE INDEX IF NOT EXISTS idx_sources_last_seen_at ON sources(last_seen_at);

CREATE TABLE IF NOT EXISTS translations (
  translation_id INTEGER PRIMARY KEY,
  content_id INTEGER NOT NULL,
  source_lang TEXT,
  target_lang TEXT NOT NULL,
  context_hash TEXT NOT NULL DEFAULT '__GLOBAL__',
  context_json TEXT,
  translated_text TEXT,
  engine_name TEXT,
  engine_version TEXT,
  status TEXT NOT NULL DEFAULT 'PENDING',
  last_updated_at TEXT NOT NULL,
  FOREIGN KEY (content_id) REFERENCES content(content_id) ON DELETE CASCADE,
  UNIQUE (content_id, target_lang, context_hash)
);

CREATE INDEX IF NOT EXISTS idx_translations_claim
  ON translations(target_lang, status, last_updated_at);
CREATE INDEX IF NOT EXISTS idx_translations_content_id
  ON translations(content_id);

CREATE TABLE IF NOT EXISTS dead_letters (
  dead_letter_id INTEGER PRIMARY KEY,
  translation_id INTEGER NOT NULL,
  content_id INTEGER NOT NULL,
  target_lang TEXT NOT NULL,
  context_hash TEXT NOT NULL,
  last_error TEXT NOT NULL,
  attempts INTEGER NOT NULL,
  moved_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dead_letters_translation_id
  ON dead_letters(translation_id);
`

const schemaVersion = 1

// Migrate applies the base schema and any pending incremental migrations,
// recording each applied version in schema_version.
func Migrate(conn *sql.DB) error {
	if _, err := conn.Exec(baseSchema); err != nil {
		return fmt.Errorf("migrate base schema: %w", err)
	}

	current, err := currentVersion(conn)
	if err != nil {
		return err
	}
	for v := current + 1; v <= schemaVersion; v++ {
		if err := applyMigration(conn, v); err != nil {
			return fmt.Errorf("apply migration %d: %w", v, err)
		}
	}
	return nil
}

func currentVersion(conn *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := conn.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

func applyMigration(conn *sql.DB, version int) error {
	switch version {
	case 1:
		// Base schema already creates everything for version 1.
	default:
		return fmt.Errorf("unknown schema version %d", version)
	}
	_, err := conn.Exec(
		`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
		version, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}
