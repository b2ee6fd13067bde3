package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transhub/internal/config"
	"transhub/internal/coordinator"
	"transhub/internal/handler"
	transport "transhub/internal/http"
	"transhub/internal/logger"
	"transhub/internal/scheduler"
	"transhub/internal/snowflake"
	"transhub/internal/store"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.ParseLevel(cfg.LogLevel))

	if err := snowflake.Init(1); err != nil {
		log.Fatalf("init snowflake: %v", err)
	}

	st := store.New(cfg.DBPath)
	coord, err := coordinator.New(cfg, st)
	if err != nil {
		log.Fatalf("build coordinator: %v", err)
	}
	if err := coord.Initialize(context.Background()); err != nil {
		log.Fatalf("initialize coordinator: %v", err)
	}
	defer coord.Close()

	translationHandler := handler.NewTranslationHandler(coord)
	router := transport.NewRouter(translationHandler)

	// The worker loop only runs when target languages are configured;
	// otherwise processing happens on demand through the API.
	var sched *scheduler.Scheduler
	if len(cfg.TargetLangs) > 0 {
		sched = scheduler.New(coord, cfg.TargetLangs, time.Minute, 24*time.Hour)
		sched.Start()
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("shutting down...")
		if sched != nil {
			sched.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = router.Shutdown(shutdownCtx)
		_ = coord.Close()
		os.Exit(0)
	}()

	if err := router.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("start server: %v", err)
	}
}
