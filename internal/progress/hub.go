package progress

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// writeTimeout bounds a single event write to one WebSocket client. A client
// that cannot keep up is disconnected rather than allowed to stall the hub.
const writeTimeout = 5 * time.Second

// Hub serves broadcast events over WebSocket, keyed by owner id. Clients
// connect to GET /events/{owner} and receive every event published for that
// owner while connected; there is no replay of missed events.
type Hub struct {
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewHub creates a hub over the given broadcaster.
func NewHub(b *Broadcaster, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{broadcaster: b, logger: logger}
}

// Handler returns the HTTP handler exposing the event stream.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events/{owner}", h.serveEvents)

	return mux
}

func (h *Hub) serveEvents(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("owner")
	if ownerID == "" {
		http.Error(w, "missing owner id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)

		return
	}

	defer conn.Close(websocket.StatusInternalError, "hub shutting down")

	events, cancel := h.broadcaster.Subscribe(ownerID)
	defer cancel()

	h.logger.Info("progress subscriber connected",
		slog.String("owner_id", ownerID),
	)

	// Reads are discarded; the read loop only surfaces close frames.
	readCtx := conn.CloseRead(r.Context())

	for {
		select {
		case <-readCtx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			if err := h.writeEvent(readCtx, conn, ev); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.logger.Debug("dropping progress subscriber",
						slog.String("owner_id", ownerID),
						slog.String("error", err.Error()),
					)
				}

				return
			}
		}
	}
}

func (h *Hub) writeEvent(ctx context.Context, conn *websocket.Conn, ev Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wsjson.Write(writeCtx, conn, ev)
}
