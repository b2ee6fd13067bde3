package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"transhub/internal/logger"
	"transhub/internal/model"
)

// StreamTranslatable claims batches of rows for langCode whose status is in
// statuses and streams them on the returned channel. Each batch is selected
// oldest-first and flipped to TRANSLATING in a single transaction before it is
// sent, so a row is handed to exactly one consumer across concurrent workers.
//
// The stream is lazy, finite and non-restartable: it ends when no eligible
// rows remain, when limit rows have been claimed, or when ctx is cancelled.
// A batch claimed but not yet delivered when ctx is cancelled is released
// back to PENDING before the channels close. Fatal storage errors arrive on
// the error channel and also end the stream.
func (s *Store) StreamTranslatable(ctx context.Context, langCode string, statuses []model.Status, batchSize, limit int) (<-chan []model.ContentItem, <-chan error) {
	batchCh := make(chan []model.ContentItem)
	errCh := make(chan error, 1)

	go func() {
		defer close(batchCh)
		defer close(errCh)

		remaining := limit
		for {
			size := batchSize
			if limit > 0 && remaining < size {
				size = remaining
			}
			if size <= 0 {
				return
			}

			batch, err := s.claimBatch(ctx, langCode, statuses, size)
			if err != nil {
				errCh <- err
				return
			}
			if len(batch) == 0 {
				return
			}

			select {
			case batchCh <- batch:
			case <-ctx.Done():
				s.releaseBatch(batch)
				return
			}

			if limit > 0 {
				remaining -= len(batch)
				if remaining <= 0 {
					return
				}
			}
		}
	}()

	return batchCh, errCh
}

// claimBatch selects up to size eligible rows and marks them TRANSLATING in
// one transaction. The claim is visible to other workers only after commit.
func (s *Store) claimBatch(ctx context.Context, langCode string, statuses []model.Status, size int) ([]model.ContentItem, error) {
	var batch []model.ContentItem

	err := s.withWriteTx(ctx, "claim batch", func(tx *sql.Tx) error {
		batch = batch[:0]

		placeholders := make([]string, len(statuses))
		args := make([]any, 0, len(statuses)+2)
		args = append(args, langCode)
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		args = append(args, size)

		query := fmt.Sprintf(
			`SELECT t.translation_id, t.content_id, c.value, t.context_hash, t.context_json
			 FROM translations t
			 INNER JOIN content c ON t.content_id = c.content_id
			 WHERE t.target_lang = ? AND t.status IN (%s)
			 ORDER BY t.last_updated_at ASC
			 LIMIT ?`,
			strings.Join(placeholders, ","),
		)

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("select claimable: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var item model.ContentItem
			var contextJSON sql.NullString
			if err := rows.Scan(&item.TranslationID, &item.ContentID, &item.Value, &item.ContextHash, &contextJSON); err != nil {
				return fmt.Errorf("scan claimable: %w", err)
			}
			if contextJSON.Valid {
				parsed, err := model.ParseContext(contextJSON.String)
				if err != nil {
					return fmt.Errorf("translation %d: %w", item.TranslationID, err)
				}
				item.Context = parsed
			}
			batch = append(batch, item)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate claimable: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		now := formatTime(time.Now())
		for _, item := range batch {
			if _, err := tx.ExecContext(ctx,
				`UPDATE translations SET status = ?, last_updated_at = ? WHERE translation_id = ?`,
				model.StatusTranslating, now, item.TranslationID,
			); err != nil {
				return fmt.Errorf("mark translating %d: %w", item.TranslationID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// releaseBatch returns claimed rows to PENDING. Called on the cancellation
// path, so it uses a fresh short-lived context rather than the cancelled one.
func (s *Store) releaseBatch(batch []model.ContentItem) {
	ids := make([]int64, len(batch))
	for i, item := range batch {
		ids[i] = item.TranslationID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.ReleaseClaims(ctx, ids); err != nil {
		logger.Error("release claims failed", "module", "store", "action", "release", "resource", "translation", "result", "failed", "count", len(ids), "error", err)
	}
}

// ReleaseClaims flips claimed rows back to PENDING.
func (s *Store) ReleaseClaims(ctx context.Context, translationIDs []int64) error {
	if len(translationIDs) == 0 {
		return nil
	}
	now := formatTime(time.Now())
	return s.withWriteTx(ctx, "release claims", func(tx *sql.Tx) error {
		for _, id := range translationIDs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE translations SET status = ?, last_updated_at = ?
				 WHERE translation_id = ? AND status = ?`,
				model.StatusPending, now, id, model.StatusTranslating,
			); err != nil {
				return fmt.Errorf("release claim %d: %w", id, err)
			}
		}
		return nil
	})
}
