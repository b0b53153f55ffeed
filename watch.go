package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldlogger/evidencedrive/internal/queue"
	"github.com/fieldlogger/evidencedrive/internal/staging"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the staging directory and enqueue settled batches",
		Long: "Watches <staging>/<owner>/<category>/ directories; once a directory " +
			"has been quiet for the settle window, its files are claimed and " +
			"enqueued as one upload batch.",
		RunE: runWatch,
	}
}

func runWatch(_ *cobra.Command, _ []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}

	logger := buildLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enqueuer := queue.NewEnqueuer(resolvedCfg.Queue.RedisAddr, resolvedCfg.Queue.MaxRetry, logger)
	defer enqueuer.Close()

	watcher := staging.NewWatcher(resolvedCfg.Uploads.StagingDir, enqueuer, logger)

	statusf("Watching %s; Ctrl-C to stop.\n", resolvedCfg.Uploads.StagingDir)

	return watcher.Run(ctx)
}
