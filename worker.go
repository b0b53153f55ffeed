package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fieldlogger/evidencedrive/internal/auth"
	"github.com/fieldlogger/evidencedrive/internal/config"
	"github.com/fieldlogger/evidencedrive/internal/drive"
	"github.com/fieldlogger/evidencedrive/internal/ledger"
	"github.com/fieldlogger/evidencedrive/internal/progress"
	"github.com/fieldlogger/evidencedrive/internal/queue"
)

// shutdownGrace bounds how long the progress server waits for open
// WebSocket connections on shutdown.
const shutdownGrace = 5 * time.Second

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the upload/publication worker pool and progress server",
		RunE:  runWorker,
	}
}

func runWorker(_ *cobra.Command, _ []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}

	logger := buildLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := ledger.Open(resolvedCfg.Ledger.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	broadcaster := progress.NewBroadcaster(logger)
	hub := progress.NewHub(broadcaster, logger)

	processor := queue.NewProcessor(
		newStoreFactory(resolvedCfg, logger),
		store,
		broadcaster,
		resolvedCfg.Drive.RootFolderName,
		resolvedCfg.Uploads.Locale,
		logger,
	)

	asynqServer := asynq.NewServer(
		asynq.RedisClientOpt{Addr: resolvedCfg.Queue.RedisAddr},
		asynq.Config{Concurrency: resolvedCfg.Queue.Concurrency},
	)

	httpServer := &http.Server{
		Addr:    resolvedCfg.Progress.ListenAddr,
		Handler: hub.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("progress server listening", slog.String("addr", httpServer.Addr))

		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		logger.Info("worker pool starting",
			slog.Int("concurrency", resolvedCfg.Queue.Concurrency),
			slog.String("redis_addr", resolvedCfg.Queue.RedisAddr),
		)

		return asynqServer.Run(processor.Handler())
	})

	g.Go(func() error {
		<-ctx.Done()

		asynqServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// newStoreFactory builds the per-unit remote store constructor. Each unit
// of work gets a fresh client with its own folder cache, so nothing leaks
// across owners or operations.
func newStoreFactory(cfg *config.Config, logger *slog.Logger) queue.StoreFactory {
	return func(ctx context.Context) (queue.RemoteStore, error) {
		ts, err := auth.NewTokenSource(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}

		api, err := drive.NewGoogleAPI(ctx, ts, cfg.Drive.SharedDriveID, logger)
		if err != nil {
			return nil, err
		}

		rootParent := drive.RootParentID
		if cfg.Drive.SharedDriveID != "" {
			rootParent = cfg.Drive.SharedDriveID
		}

		return drive.NewClient(api, rootParent, logger), nil
	}
}
