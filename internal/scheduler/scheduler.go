// Package scheduler runs the background worker loop: every interval it
// reclaims stale claims and drains the pending queue for each configured
// target language; garbage collection runs on its own slower cadence.
package scheduler

import (
	"context"
	"sync"
	"time"

	"transhub/internal/coordinator"
	"transhub/internal/logger"
	"transhub/internal/model"
)

type Scheduler struct {
	coord      *coordinator.Coordinator
	langs      []string
	interval   time.Duration
	gcInterval time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc // cancels the in-flight drain
	mu         sync.Mutex         // protects cancelFunc
}

func New(coord *coordinator.Coordinator, langs []string, interval, gcInterval time.Duration) *Scheduler {
	return &Scheduler{
		coord:      coord,
		langs:      langs,
		interval:   interval,
		gcInterval: gcInterval,
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	logger.Info("scheduler started", "module", "scheduler", "action", "start", "resource", "worker", "result", "ok", "interval_ms", s.interval.Milliseconds(), "langs", len(s.langs))
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	logger.Info("scheduler stopped", "module", "scheduler", "action", "stop", "resource", "worker", "result", "ok")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Drain once on start, then on every tick.
	s.drain()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	gcTicker := time.NewTicker(s.gcInterval)
	defer gcTicker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drain()
		case <-gcTicker.C:
			s.gc()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)

	s.mu.Lock()
	s.cancelFunc = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancelFunc = nil
		s.mu.Unlock()
	}()

	if _, err := s.coord.ReclaimStale(ctx); err != nil {
		logger.Error("stale reclaim failed", "module", "scheduler", "action", "reclaim", "resource", "translation", "result", "failed", "error", err)
	}

	for _, lang := range s.langs {
		if ctx.Err() != nil {
			logger.Warn("drain cancelled", "module", "scheduler", "action", "drain", "resource", "translation", "result", "cancelled")
			return
		}
		s.drainLang(ctx, lang)
	}
}

func (s *Scheduler) drainLang(ctx context.Context, lang string) {
	resultCh, errCh, err := s.coord.ProcessPending(ctx, lang, coordinator.ProcessOptions{})
	if err != nil {
		logger.Error("drain start failed", "module", "scheduler", "action", "drain", "resource", "translation", "result", "failed", "lang", lang, "error", err)
		return
	}

	processed, failed := 0, 0
	for result := range resultCh {
		processed++
		if result.Status == model.StatusFailed {
			failed++
		}
	}
	if err := <-errCh; err != nil {
		logger.Error("drain aborted", "module", "scheduler", "action", "drain", "resource", "translation", "result", "failed", "lang", lang, "error", err)
		return
	}
	if processed > 0 {
		logger.Info("drain finished", "module", "scheduler", "action", "drain", "resource", "translation", "result", "ok", "lang", lang, "processed", processed, "failed", failed)
	}
}

func (s *Scheduler) gc() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	report, err := s.coord.RunGC(ctx, 0, false)
	if err != nil {
		logger.Error("scheduled gc failed", "module", "scheduler", "action", "gc", "resource", "db", "result", "failed", "error", err)
		return
	}
	logger.Info("scheduled gc finished", "module", "scheduler", "action", "gc", "resource", "db", "result", "ok",
		"deleted_sources", report.DeletedSources, "deleted_content", report.DeletedContent, "deleted_translations", report.DeletedTranslations)
}
