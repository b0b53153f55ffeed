package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Enqueuer pushes units of work onto the queue and returns immediately;
// execution happens in the worker pool.
type Enqueuer struct {
	client   *asynq.Client
	maxRetry int
	logger   *slog.Logger
}

// NewEnqueuer connects an enqueuer to Redis. maxRetry is the scheduler-level
// retry budget applied to every enqueued unit.
func NewEnqueuer(redisAddr string, maxRetry int, logger *slog.Logger) *Enqueuer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Enqueuer{
		client:   asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
		maxRetry: maxRetry,
		logger:   logger,
	}
}

// Close releases the underlying Redis connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// EnqueueUploadBatch schedules an upload batch for a worker.
func (e *Enqueuer) EnqueueUploadBatch(ctx context.Context, payload UploadBatchPayload) error {
	if err := e.enqueue(ctx, TypeUploadBatch, payload); err != nil {
		return err
	}

	e.logger.Info("upload batch enqueued",
		slog.String("batch_id", payload.BatchID),
		slog.String("owner_id", payload.OwnerID),
		slog.Int("tasks", len(payload.Tasks)),
	)

	return nil
}

// EnqueuePublishEntry schedules a publication request for a worker.
func (e *Enqueuer) EnqueuePublishEntry(ctx context.Context, payload PublishEntryPayload) error {
	if err := e.enqueue(ctx, TypePublishEntry, payload); err != nil {
		return err
	}

	e.logger.Info("publication enqueued",
		slog.String("subject_id", payload.SubjectID),
		slog.String("operation_id", payload.OperationID),
	)

	return nil
}

func (e *Enqueuer) enqueue(ctx context.Context, taskType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: encoding %s payload: %w", taskType, err)
	}

	task := asynq.NewTask(taskType, data)

	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(e.maxRetry)); err != nil {
		return fmt.Errorf("queue: enqueueing %s: %w", taskType, err)
	}

	return nil
}
