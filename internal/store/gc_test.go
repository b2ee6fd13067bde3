package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transhub/internal/model"
)

// seedTranslated registers text, claims it and commits a TRANSLATED outcome.
// Unrelated rows swept up by the claim are released back to PENDING.
func seedTranslated(t *testing.T, s *Store, text, businessID string) {
	t.Helper()
	enqueue(t, s, text, []string{"fr"}, strPtr(businessID))
	items := claimAll(t, s, "fr", 10, 0)

	var saves []SaveItem
	var release []int64
	for _, item := range items {
		if item.Value != text {
			release = append(release, item.TranslationID)
			continue
		}
		saves = append(saves, SaveItem{
			TranslationID:  item.TranslationID,
			ContentID:      item.ContentID,
			TargetLang:     "fr",
			ContextHash:    item.ContextHash,
			TranslatedText: strPtr("x"),
			EngineName:     "debug",
			EngineVersion:  "1.0.0",
			Status:         model.StatusTranslated,
			Attempts:       1,
		})
	}
	require.NoError(t, s.SaveTranslations(context.Background(), saves))
	require.NoError(t, s.ReleaseClaims(context.Background(), release))
}

func backdateSource(t *testing.T, s *Store, businessID string, age time.Duration) {
	t.Helper()
	_, err := s.DB().Exec(
		`UPDATE sources SET last_seen_at = ? WHERE business_id = ?`,
		formatTime(time.Now().Add(-age)), businessID,
	)
	require.NoError(t, err)
}

func TestGarbageCollect(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Finished content whose only source expired: fully collectable.
	seedTranslated(t, s, "finished", "old.done")
	backdateSource(t, s, "old.done", 40*24*time.Hour)

	// Pending content whose source expired: the source goes, the content and
	// its queued work survive.
	enqueue(t, s, "queued", []string{"fr"}, strPtr("old.pending"))
	backdateSource(t, s, "old.pending", 40*24*time.Hour)

	// Fresh content: untouched.
	seedTranslated(t, s, "fresh", "new.done")

	dry, err := s.GarbageCollect(ctx, 30, true)
	require.NoError(t, err)
	require.EqualValues(t, 2, dry.DeletedSources)
	require.EqualValues(t, 1, dry.DeletedContent)
	require.EqualValues(t, 1, dry.DeletedTranslations)

	// Dry run rolled back: nothing actually left the database.
	require.Equal(t, 3, countRows(t, s, "sources"))
	require.Equal(t, 3, countRows(t, s, "content"))
	require.Equal(t, 3, countRows(t, s, "translations"))

	report, err := s.GarbageCollect(ctx, 30, false)
	require.NoError(t, err)
	require.Equal(t, dry, report)

	require.Equal(t, 1, countRows(t, s, "sources"))
	require.Equal(t, 2, countRows(t, s, "content"))
	require.Equal(t, 2, countRows(t, s, "translations"))

	var remaining int
	require.NoError(t, s.DB().QueryRow(
		`SELECT COUNT(*) FROM content WHERE value IN ('queued', 'fresh')`,
	).Scan(&remaining))
	require.Equal(t, 2, remaining)

	// Idempotent: a second pass finds nothing.
	report, err = s.GarbageCollect(ctx, 30, false)
	require.NoError(t, err)
	require.Equal(t, model.GCReport{}, report)
}
