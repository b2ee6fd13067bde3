package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"transhub/internal/engine"
	"transhub/internal/engine/mocks"
	"transhub/internal/errs"
	"transhub/internal/model"
)

// installEngine swaps in an engine under test without going through the
// registry.
func installEngine(c *Coordinator, name string, eng engine.Engine) {
	c.mu.Lock()
	c.engines[name] = eng
	c.active = eng
	c.mu.Unlock()
}

func TestWholesaleEngineErrorIsRetriedPerItem(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctrl := gomock.NewController(t)

	mock := mocks.NewMockEngine(ctrl)
	mock.EXPECT().Name().Return("mock").AnyTimes()
	mock.EXPECT().Version().Return("0.0.1").AnyTimes()
	mock.EXPECT().MaxBatchSize().Return(10).AnyTimes()
	mock.EXPECT().Close().Return(nil).AnyTimes()
	mock.EXPECT().ValidateAndParseContext(gomock.Any()).Return(nil, nil)
	mock.EXPECT().
		TranslateBatch(gomock.Any(), gomock.Any(), "fr", gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection reset")).
		Times(3)
	installEngine(c, "mock", mock)

	register(t, c, "Hello", []string{"fr"}, nil, nil)

	results := drain(t, c, "fr", ProcessOptions{})
	require.Len(t, results, 1)
	require.Equal(t, model.StatusFailed, results[0].Status)
	require.Contains(t, *results[0].Error, "connection reset")
	require.Contains(t, *results[0].Error, errs.ErrAPI.Error())
}

func TestShortEngineResponseIsRetriedPerItem(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctrl := gomock.NewController(t)

	mock := mocks.NewMockEngine(ctrl)
	mock.EXPECT().Name().Return("mock").AnyTimes()
	mock.EXPECT().Version().Return("0.0.1").AnyTimes()
	mock.EXPECT().MaxBatchSize().Return(10).AnyTimes()
	mock.EXPECT().Close().Return(nil).AnyTimes()
	mock.EXPECT().ValidateAndParseContext(gomock.Any()).Return(nil, nil)
	// First call drops a result; the retry answers both items.
	mock.EXPECT().
		TranslateBatch(gomock.Any(), gomock.Any(), "fr", gomock.Any(), gomock.Any()).
		Return([]engine.Result{engine.Success("only one")}, nil)
	mock.EXPECT().
		TranslateBatch(gomock.Any(), gomock.Any(), "fr", gomock.Any(), gomock.Any()).
		Return([]engine.Result{engine.Success("un"), engine.Success("deux")}, nil)
	installEngine(c, "mock", mock)

	register(t, c, "one", []string{"fr"}, nil, nil)
	register(t, c, "two", []string{"fr"}, nil, nil)

	results := drain(t, c, "fr", ProcessOptions{})
	require.Len(t, results, 2)
	for _, result := range results {
		require.Equal(t, model.StatusTranslated, result.Status)
	}
}

func TestInvalidContextFailsWholeGroupTerminally(t *testing.T) {
	c, dbg := newTestCoordinator(t)

	register(t, c, "Hello", []string{"fr"}, nil, model.Context{"mapping": "not an object"})

	results := drain(t, c, "fr", ProcessOptions{})
	require.Len(t, results, 1)
	require.Equal(t, model.StatusFailed, results[0].Status)
	require.Contains(t, *results[0].Error, "mapping")
	// The engine was never called for the invalid group.
	require.Equal(t, 0, dbg.Calls("Hello"))
}

func TestCacheShortCircuitsEngineOnReprocess(t *testing.T) {
	c, dbg := newTestCoordinator(t)
	dbg.SetMapping("Cached", "Mis en cache")

	register(t, c, "Cached", []string{"fr"}, nil, nil)
	drain(t, c, "fr", ProcessOptions{})
	require.Equal(t, 1, dbg.Calls("Cached"))

	// Force the committed row back to PENDING; reprocessing must be served
	// from the cache without another engine call.
	_, err := c.store.DB().Exec(`UPDATE translations SET status = ?`, model.StatusPending)
	require.NoError(t, err)

	results := drain(t, c, "fr", ProcessOptions{})
	require.Len(t, results, 1)
	require.Equal(t, model.StatusTranslated, results[0].Status)
	require.Equal(t, "Mis en cache", *results[0].TranslatedContent)
	require.Equal(t, 1, dbg.Calls("Cached"))
}

func TestProcessPendingHonorsLimit(t *testing.T) {
	c, _ := newTestCoordinator(t)

	for _, text := range []string{"a", "b", "c", "d"} {
		register(t, c, text, []string{"fr"}, nil, nil)
	}

	require.Len(t, drain(t, c, "fr", ProcessOptions{Limit: 3}), 3)
	require.Len(t, drain(t, c, "fr", ProcessOptions{}), 1)
}

func TestProcessPendingCancelledBeforeCommitReleasesClaim(t *testing.T) {
	c, dbg := newTestCoordinator(t)
	dbg.FailAlways("Slow", true, "busy")

	register(t, c, "Slow", []string{"fr"}, nil, nil)

	// Cancel while the retry loop is sleeping between attempts: the claim
	// must go back to PENDING, not stay TRANSLATING.
	ctx, cancel := context.WithCancel(context.Background())
	resultCh, errCh, err := c.ProcessPending(ctx, "fr", ProcessOptions{
		MaxAttempts:    5,
		InitialBackoff: time.Minute,
		MaxBackoff:     time.Minute,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return dbg.Calls("Slow") >= 1
	}, 5*time.Second, time.Millisecond)
	cancel()

	for range resultCh {
	}
	require.NoError(t, <-errCh)

	require.Eventually(t, func() bool {
		var status string
		require.NoError(t, c.store.DB().QueryRow(
			`SELECT status FROM translations`,
		).Scan(&status))
		return model.Status(status) == model.StatusPending
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRetryScheduleIsDeterministic(t *testing.T) {
	p := retryPolicy{maxAttempts: 5, initialBackoff: time.Second, maxBackoff: 4 * time.Second}
	schedule := p.schedule()

	require.Equal(t, time.Second, schedule.NextBackOff())
	require.Equal(t, 2*time.Second, schedule.NextBackOff())
	require.Equal(t, 4*time.Second, schedule.NextBackOff())
	require.Equal(t, 4*time.Second, schedule.NextBackOff())
}
