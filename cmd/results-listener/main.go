package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"skatescore/internal/config"
	"skatescore/internal/listener"
	"skatescore/internal/logging"
	"skatescore/internal/metrics"
	"skatescore/internal/pipeline"
	"skatescore/internal/results"
	"skatescore/internal/source"
	"skatescore/internal/storage"
)

func main() {
	must(run())
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}

	store, err := storage.OpenConfigured(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()

	importer := pipeline.NewImportService(store, source.NewReader(),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(metrics.NewManager()),
		pipeline.WithIncremental(cfg.ImportIncremental),
	)
	deps := listener.Deps{
		Sync:     results.NewSyncService(results.NewClient(cfg), cfg, log),
		Importer: importer,
		Query:    store,
	}
	if ledger, ok := store.(listener.Ledger); ok {
		deps.Ledger = ledger
	}

	svc := listener.NewService(deps, cfg, log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return svc.Run(ctx)
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
