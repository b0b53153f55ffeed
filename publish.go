package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fieldlogger/evidencedrive/internal/ledger"
	"github.com/fieldlogger/evidencedrive/internal/publish"
	"github.com/fieldlogger/evidencedrive/internal/queue"
)

var (
	flagPublishOwner      string
	flagPublishOwnerName  string
	flagPublishDate       string
	flagPublishActivities []string
	flagPublishNotes      string
)

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <entry-id> [evidence-file]...",
		Short: "Enqueue publication of a logbook entry and its evidence",
		Long: "Publishes a logbook entry: evidence is uploaded into the dated folder " +
			"hierarchy and the monthly report is regenerated. If the entry does not " +
			"exist in the ledger yet, it is created from the flags.",
		Args: cobra.MinimumNArgs(1),
		RunE: runPublish,
	}

	cmd.Flags().StringVar(&flagPublishOwner, "owner", "", "owner id for a new entry")
	cmd.Flags().StringVar(&flagPublishOwnerName, "owner-name", "", "owner display name for a new entry")
	cmd.Flags().StringVar(&flagPublishDate, "date", "", "entry date for a new entry (YYYY-MM-DD, default today)")
	cmd.Flags().StringSliceVar(&flagPublishActivities, "activity", nil, "activity label (repeatable)")
	cmd.Flags().StringVar(&flagPublishNotes, "notes", "", "free-text notes for a new entry")

	return cmd
}

func runPublish(_ *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}

	logger := buildLogger()
	ctx := context.Background()

	store, err := ledger.Open(resolvedCfg.Ledger.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	entryID := args[0]

	rec, err := ensureEntry(ctx, store, entryID)
	if err != nil {
		return err
	}

	enqueuer := queue.NewEnqueuer(resolvedCfg.Queue.RedisAddr, resolvedCfg.Queue.MaxRetry, logger)
	defer enqueuer.Close()

	operationID := uuid.NewString()

	payload := queue.PublishEntryPayload{
		SubjectID:     entryID,
		OperationID:   operationID,
		EvidencePaths: args[1:],
		TargetDate:    rec.Date,
	}

	if err := enqueuer.EnqueuePublishEntry(ctx, payload); err != nil {
		return err
	}

	statusf("Publication %s enqueued for entry %s (%d evidence files).\n",
		operationID, entryID, len(payload.EvidencePaths))

	return nil
}

// ensureEntry loads the entry or, when it does not exist yet, creates it
// from the command flags.
func ensureEntry(ctx context.Context, store *ledger.Store, entryID string) (*publish.Record, error) {
	rec, err := store.Record(ctx, entryID)
	if err == nil {
		return rec, nil
	}

	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	if flagPublishOwner == "" || flagPublishOwnerName == "" {
		return nil, fmt.Errorf("entry %s not found; pass --owner and --owner-name to create it", entryID)
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)

	if flagPublishDate != "" {
		parsed, parseErr := time.Parse("2006-01-02", strings.TrimSpace(flagPublishDate))
		if parseErr != nil {
			return nil, fmt.Errorf("parsing --date: %w", parseErr)
		}

		date = parsed
	}

	rec = &publish.Record{
		ID:         entryID,
		OwnerID:    flagPublishOwner,
		OwnerName:  flagPublishOwnerName,
		Date:       date,
		Activities: flagPublishActivities,
		Notes:      flagPublishNotes,
	}

	if err := store.CreateEntry(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}
