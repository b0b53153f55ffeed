package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fieldlogger/evidencedrive/internal/category"
	"github.com/fieldlogger/evidencedrive/internal/queue"
	"github.com/fieldlogger/evidencedrive/internal/staging"
)

var (
	flagUploadOwner string
	flagUploadName  string
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <category> <file>...",
		Short: "Stage local files and enqueue them as one upload batch",
		Long: "Copies the given files into the staging area and enqueues a batch " +
			"for the worker. Categories: digital, social, logbook.",
		Args: cobra.MinimumNArgs(2),
		RunE: runUpload,
	}

	cmd.Flags().StringVar(&flagUploadOwner, "owner", "", "owner id the batch belongs to (required)")
	cmd.Flags().StringVar(&flagUploadName, "name", "", "display name shared by the uploaded files")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runUpload(_ *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}

	logger := buildLogger()
	ctx := context.Background()

	cat, err := category.Parse(args[0])
	if err != nil {
		return err
	}

	batchID := uuid.NewString()
	tasks := make([]queue.UploadTaskPayload, 0, len(args)-1)

	for _, src := range args[1:] {
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("opening %s: %w", src, err)
		}

		name := filepath.Base(src)

		staged, err := staging.Stage(resolvedCfg.Uploads.StagingDir, flagUploadOwner, cat, name, f)
		f.Close()

		if err != nil {
			return err
		}

		tasks = append(tasks, queue.UploadTaskPayload{
			SourcePath:   staged,
			OriginalName: name,
			DisplayName:  flagUploadName,
		})
	}

	enqueuer := queue.NewEnqueuer(resolvedCfg.Queue.RedisAddr, resolvedCfg.Queue.MaxRetry, logger)
	defer enqueuer.Close()

	payload := queue.UploadBatchPayload{
		BatchID:  batchID,
		OwnerID:  flagUploadOwner,
		Category: string(cat),
		Tasks:    tasks,
	}

	if err := enqueuer.EnqueueUploadBatch(ctx, payload); err != nil {
		return err
	}

	statusf("Batch %s enqueued with %d file(s).\n", batchID, len(tasks))

	return nil
}
