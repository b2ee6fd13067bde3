package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"transhub/internal/errs"
	"transhub/internal/logger"
	"transhub/internal/model"
)

// GarbageCollect removes stale business-id associations and orphaned content
// in one transaction: sources whose last_seen_at predates the retention window
// (date-granular), then content with no remaining source and no in-flight
// translation. Deleting content cascades to its translations; the report
// counts those separately. With dryRun the deletes run and the transaction
// rolls back, so the counts are exactly what a real run would remove.
func (s *Store) GarbageCollect(ctx context.Context, retentionDays int, dryRun bool) (model.GCReport, error) {
	var report model.GCReport

	now := time.Now().UTC()
	cutoffDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -retentionDays)
	cutoff := formatTime(cutoffDay)

	err := s.withWriteTx(ctx, "garbage collect", func(tx *sql.Tx) error {
		report = model.GCReport{}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM sources WHERE last_seen_at < ?`, cutoff,
		)
		if err != nil {
			return fmt.Errorf("delete stale sources: %w", err)
		}
		if report.DeletedSources, err = res.RowsAffected(); err != nil {
			return err
		}

		// Orphan content: no referring source and no in-flight work. The
		// cascade will take dependent translations with it, so count them
		// first for the report.
		const orphanFilter = `
			content_id NOT IN (SELECT content_id FROM sources)
			AND content_id NOT IN (
				SELECT content_id FROM translations WHERE status IN (?, ?)
			)`

		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM translations WHERE `+orphanFilter,
			model.StatusPending, model.StatusTranslating,
		).Scan(&report.DeletedTranslations)
		if err != nil {
			return fmt.Errorf("count cascading translations: %w", err)
		}

		res, err = tx.ExecContext(ctx,
			`DELETE FROM content WHERE `+orphanFilter,
			model.StatusPending, model.StatusTranslating,
		)
		if err != nil {
			return fmt.Errorf("delete orphan content: %w", err)
		}
		if report.DeletedContent, err = res.RowsAffected(); err != nil {
			return err
		}

		if dryRun {
			return errGCDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errGCDryRun) {
		return model.GCReport{}, err
	}

	logger.Info("garbage collect finished",
		"module", "store", "action", "gc", "resource", "db", "result", "ok",
		"dry_run", dryRun, "retention_days", retentionDays,
		"deleted_sources", report.DeletedSources,
		"deleted_content", report.DeletedContent,
		"deleted_translations", report.DeletedTranslations,
	)
	return report, nil
}

// errGCDryRun aborts the GC transaction after the counts are captured. Rooted
// in ErrCore so the transaction wrapper passes it through untouched.
var errGCDryRun = fmt.Errorf("%w: gc dry run rollback", errs.ErrCore)
