// Package store is the sole gateway to durable state. Every mutating method
// runs inside a single transaction and behind a process-wide writer gate,
// because SQLite allows only one write transaction at a time. Reads never
// take the gate.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	sqlite "modernc.org/sqlite"

	"transhub/internal/db"
	"transhub/internal/errs"
	"transhub/internal/logger"
	"transhub/internal/model"
	"transhub/internal/snowflake"
)

// timeLayout is RFC3339 with fixed-width nanoseconds so stored timestamps
// compare correctly as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the SQLite database holding content, sources, translations and
// the dead-letter queue.
type Store struct {
	path string
	conn *sql.DB
	gate *semaphore.Weighted
}

// New creates a Store for the database at path. Initialize must be called
// before any other method.
func New(path string) *Store {
	return &Store{
		path: path,
		gate: semaphore.NewWeighted(1),
	}
}

// Initialize opens the database, applies pragmas and migrates the schema.
func (s *Store) Initialize(ctx context.Context) error {
	conn, err := db.Open(s.path)
	if err != nil {
		return fmt.Errorf("%w: initialize: %v", errs.ErrStorage, err)
	}
	s.conn = conn
	logger.Info("store initialized", "module", "store", "action", "initialize", "resource", "db", "result", "ok", "path", s.path)
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("%w: close: %v", errs.ErrStorage, err)
	}
	return nil
}

// DB exposes the raw connection for test seeding.
func (s *Store) DB() *sql.DB {
	return s.conn
}

// acquireWrite takes the process-wide writer gate, honoring ctx cancellation.
func (s *Store) acquireWrite(ctx context.Context) error {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: writer gate: %v", errs.ErrStorage, err)
	}
	return nil
}

func (s *Store) releaseWrite() {
	s.gate.Release(1)
}

// withWriteTx runs fn inside a write transaction under the writer gate.
func (s *Store) withWriteTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if err := s.acquireWrite(ctx); err != nil {
		return err
	}
	defer s.releaseWrite()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return wrapErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// wrapErr classifies a driver error into the core taxonomy. Errors already
// rooted in the taxonomy pass through unchanged.
func wrapErr(op string, err error) error {
	if errors.Is(err, errs.ErrCore) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isConstraintErr(err) {
		return fmt.Errorf("%w: %s: %v", errs.ErrConflict, op, err)
	}
	return fmt.Errorf("%w: %s: %v", errs.ErrStorage, op, err)
}

// isConstraintErr reports whether err is a SQLITE_CONSTRAINT (base code 19),
// including extended codes like SQLITE_CONSTRAINT_UNIQUE.
func isConstraintErr(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == 19
	}
	return false
}

// EnsurePendingParams carries one Register call into the store.
type EnsurePendingParams struct {
	Text          string
	TargetLangs   []string
	SourceLang    *string
	EngineVersion string
	BusinessID    *string
	ContextHash   string
	ContextJSON   *string
}

// EnsurePending durably records a translation request in one transaction:
// content is upserted by value, the optional business-id association is
// upserted, and a PENDING row is created per target language unless a
// TRANSLATED row already exists for the key. FAILED rows are revived to
// PENDING, preserving their translation_id. Returns the number of rows that
// ended up PENDING because of this call.
func (s *Store) EnsurePending(ctx context.Context, p EnsurePendingParams) (int, error) {
	now := formatTime(time.Now())
	enqueued := 0

	err := s.withWriteTx(ctx, "ensure pending", func(tx *sql.Tx) error {
		enqueued = 0

		contentID, err := upsertContent(ctx, tx, p.Text, now)
		if err != nil {
			return fmt.Errorf("upsert content: %w", err)
		}

		if p.BusinessID != nil {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO sources (business_id, content_id, context_hash, last_seen_at)
				 VALUES (?, ?, ?, ?)
				 ON CONFLICT(business_id) DO UPDATE SET
				   content_id = excluded.content_id,
				   context_hash = excluded.context_hash,
				   last_seen_at = excluded.last_seen_at`,
				*p.BusinessID, contentID, p.ContextHash, now,
			)
			if err != nil {
				return fmt.Errorf("upsert source: %w", err)
			}
		}

		for _, lang := range p.TargetLangs {
			var translationID int64
			var status string
			err := tx.QueryRowContext(ctx,
				`SELECT translation_id, status FROM translations
				 WHERE content_id = ? AND target_lang = ? AND context_hash = ?`,
				contentID, lang, p.ContextHash,
			).Scan(&translationID, &status)

			switch {
			case err == sql.ErrNoRows:
				_, err = tx.ExecContext(ctx,
					`INSERT INTO translations
					 (translation_id, content_id, source_lang, target_lang, context_hash,
					  context_json, engine_version, status, last_updated_at)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					snowflake.NextID(), contentID, p.SourceLang, lang, p.ContextHash,
					p.ContextJSON, p.EngineVersion, model.StatusPending, now,
				)
				if err != nil {
					return fmt.Errorf("insert translation: %w", err)
				}
				enqueued++
			case err != nil:
				return fmt.Errorf("select translation: %w", err)
			case model.Status(status) == model.StatusFailed:
				_, err = tx.ExecContext(ctx,
					`UPDATE translations SET status = ?, last_updated_at = ?, engine_version = ?
					 WHERE translation_id = ?`,
					model.StatusPending, now, p.EngineVersion, translationID,
				)
				if err != nil {
					return fmt.Errorf("revive translation: %w", err)
				}
				enqueued++
			default:
				// PENDING, TRANSLATING or TRANSLATED: registration is a no-op.
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return enqueued, nil
}

func upsertContent(ctx context.Context, tx *sql.Tx, value, now string) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO content (content_id, value, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(value) DO NOTHING`,
		snowflake.NextID(), value, now,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT content_id FROM content WHERE value = ?`, value).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// SaveItem is one finished outcome to persist.
type SaveItem struct {
	TranslationID  int64
	ContentID      int64
	TargetLang     string
	ContextHash    string
	TranslatedText *string
	EngineName     string
	EngineVersion  string
	Status         model.Status
	Error          *string
	Attempts       int
}

// SaveTranslations commits a whole batch of outcomes in one transaction.
// Items with status FAILED also get a dead-letter row in the same commit.
func (s *Store) SaveTranslations(ctx context.Context, items []SaveItem) error {
	if len(items) == 0 {
		return nil
	}
	now := formatTime(time.Now())

	return s.withWriteTx(ctx, "save translations", func(tx *sql.Tx) error {
		for _, item := range items {
			_, err := tx.ExecContext(ctx,
				`UPDATE translations
				 SET translated_text = ?, engine_name = ?, engine_version = ?, status = ?, last_updated_at = ?
				 WHERE translation_id = ?`,
				item.TranslatedText, item.EngineName, item.EngineVersion, item.Status, now, item.TranslationID,
			)
			if err != nil {
				return fmt.Errorf("update translation %d: %w", item.TranslationID, err)
			}
			if item.Status == model.StatusFailed {
				if err := moveToDeadLetter(ctx, tx, item, now); err != nil {
					return fmt.Errorf("dead-letter translation %d: %w", item.TranslationID, err)
				}
			}
		}
		return nil
	})
}

// moveToDeadLetter appends a DLQ row. Runs inside the SaveTranslations
// transaction so FAILED status and its DLQ mirror commit atomically.
func moveToDeadLetter(ctx context.Context, tx *sql.Tx, item SaveItem, now string) error {
	lastError := ""
	if item.Error != nil {
		lastError = *item.Error
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO dead_letters
		 (dead_letter_id, translation_id, content_id, target_lang, context_hash, last_error, attempts, moved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snowflake.NextID(), item.TranslationID, item.ContentID, item.TargetLang,
		item.ContextHash, lastError, item.Attempts, now,
	)
	return err
}

// GetTranslation returns the TRANSLATED row for (text, targetLang, contextHash),
// or nil when no such row exists.
func (s *Store) GetTranslation(ctx context.Context, text, targetLang, contextHash string) (*model.Translation, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT t.translation_id, t.content_id, t.source_lang, t.target_lang, t.context_hash,
		        t.context_json, t.translated_text, t.engine_name, t.engine_version, t.status, t.last_updated_at
		 FROM translations t
		 INNER JOIN content c ON t.content_id = c.content_id
		 WHERE c.value = ? AND t.target_lang = ? AND t.context_hash = ? AND t.status = ?`,
		text, targetLang, contextHash, model.StatusTranslated,
	)
	t, err := scanTranslation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("get translation", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTranslation(row rowScanner) (*model.Translation, error) {
	var t model.Translation
	var status, lastUpdated string
	err := row.Scan(
		&t.TranslationID, &t.ContentID, &t.SourceLang, &t.TargetLang, &t.ContextHash,
		&t.ContextJSON, &t.TranslatedText, &t.EngineName, &t.EngineVersion, &status, &lastUpdated,
	)
	if err != nil {
		return nil, err
	}
	if !model.Status(status).Valid() {
		return nil, fmt.Errorf("translation %d: unknown status %q", t.TranslationID, status)
	}
	t.Status = model.Status(status)
	t.LastUpdatedAt, _ = parseTime(lastUpdated)
	return &t, nil
}

// ListDeadLetters returns the newest limit dead-letter rows for inspection.
func (s *Store) ListDeadLetters(ctx context.Context, limit int) ([]model.DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT dead_letter_id, translation_id, content_id, target_lang, context_hash, last_error, attempts, moved_at
		 FROM dead_letters ORDER BY moved_at DESC, dead_letter_id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, wrapErr("list dead letters", err)
	}
	defer rows.Close()

	var entries []model.DeadLetter
	for rows.Next() {
		var dl model.DeadLetter
		var movedAt string
		if err := rows.Scan(&dl.DeadLetterID, &dl.TranslationID, &dl.ContentID, &dl.TargetLang,
			&dl.ContextHash, &dl.LastError, &dl.Attempts, &movedAt); err != nil {
			return nil, wrapErr("list dead letters", err)
		}
		dl.MovedAt, _ = parseTime(movedAt)
		entries = append(entries, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list dead letters", err)
	}
	return entries, nil
}

// GetBusinessIDForContent returns one business id associated with
// (contentID, contextHash), or nil when none exists. Ordered so repeated
// calls are deterministic when multiple ids point at the same content.
func (s *Store) GetBusinessIDForContent(ctx context.Context, contentID int64, contextHash string) (*string, error) {
	var businessID string
	err := s.conn.QueryRowContext(ctx,
		`SELECT business_id FROM sources
		 WHERE content_id = ? AND context_hash = ?
		 ORDER BY business_id LIMIT 1`,
		contentID, contextHash,
	).Scan(&businessID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("get business id", err)
	}
	return &businessID, nil
}

// TouchSource bumps last_seen_at for a business id.
func (s *Store) TouchSource(ctx context.Context, businessID string) error {
	return s.withWriteTx(ctx, "touch source", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE sources SET last_seen_at = ? WHERE business_id = ?`,
			formatTime(time.Now()), businessID,
		)
		return err
	})
}

// ReclaimStale flips TRANSLATING rows whose claim is older than olderThan back
// to PENDING, making work abandoned by a crashed worker claimable again.
func (s *Store) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))
	var reclaimed int64
	err := s.withWriteTx(ctx, "reclaim stale", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE translations SET status = ?, last_updated_at = ?
			 WHERE status = ? AND last_updated_at < ?`,
			model.StatusPending, formatTime(time.Now()), model.StatusTranslating, cutoff,
		)
		if err != nil {
			return err
		}
		reclaimed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		logger.Info("stale claims reclaimed", "module", "store", "action", "reclaim", "resource", "translation", "result", "ok", "count", reclaimed)
	}
	return reclaimed, nil
}
