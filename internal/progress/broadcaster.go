package progress

import (
	"log/slog"
	"sync"
)

// subscriberBuffer is the per-subscriber channel depth. A slow consumer
// loses events beyond this depth rather than blocking a publisher.
const subscriberBuffer = 32

// Broadcaster fans events out to per-owner subscribers. Publishing never
// blocks: when a subscriber's buffer is full the event is dropped for that
// subscriber, and when nobody is subscribed the event goes nowhere.
type Broadcaster struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Event // owner id -> subscriber id -> channel
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	return &Broadcaster{
		logger: logger,
		subs:   make(map[string]map[int]chan Event),
	}
}

// Subscribe registers interest in events for ownerID. The returned cancel
// function removes the subscription and closes the channel; it is safe to
// call more than once.
func (b *Broadcaster) Subscribe(ownerID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID

	if b.subs[ownerID] == nil {
		b.subs[ownerID] = make(map[int]chan Event)
	}

	b.subs[ownerID][id] = ch
	b.mu.Unlock()

	var once sync.Once

	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[ownerID], id)

			if len(b.subs[ownerID]) == 0 {
				delete(b.subs, ownerID)
			}
			b.mu.Unlock()

			close(ch)
		})
	}

	return ch, cancel
}

// Publish delivers an event to every subscriber of its owner. Never blocks.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[ev.OwnerID] {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("dropping progress event for slow subscriber",
				slog.String("owner_id", ev.OwnerID),
				slog.String("operation_id", ev.OperationID),
			)
		}
	}
}

// Reporter binds a broadcaster to one (owner, operation) pair so pipelines
// can emit events without repeating identifiers.
type Reporter struct {
	b           *Broadcaster
	ownerID     string
	operationID string
}

// NewReporter creates a reporter for one unit of work.
func (b *Broadcaster) NewReporter(ownerID, operationID string) *Reporter {
	return &Reporter{b: b, ownerID: ownerID, operationID: operationID}
}

func (r *Reporter) emit(status Status, stage, message string, pct int, extra map[string]any) {
	r.b.Publish(Event{
		OperationID: r.operationID,
		OwnerID:     r.ownerID,
		Status:      status,
		Stage:       stage,
		Message:     message,
		Progress:    pct,
		Extra:       extra,
	})
}

// Queued reports that the unit has been accepted but not started.
func (r *Reporter) Queued(message string) {
	r.emit(StatusQueued, "", message, 0, nil)
}

// Started reports that the unit began executing.
func (r *Reporter) Started(message string) {
	r.emit(StatusStarted, "", message, 0, nil)
}

// Progress reports an intermediate step with a 0..100 percentage.
func (r *Reporter) Progress(stage string, pct int, message string) {
	r.emit(StatusProgress, stage, message, pct, nil)
}

// Completed reports terminal success. extra carries result fields for the
// realtime consumer.
func (r *Reporter) Completed(message string, extra map[string]any) {
	r.emit(StatusCompleted, "", message, 100, extra)
}

// Failed reports terminal failure with a human-readable message.
func (r *Reporter) Failed(message string) {
	r.emit(StatusFailed, "", message, 0, nil)
}
