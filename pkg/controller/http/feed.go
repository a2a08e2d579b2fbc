package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
)

const (
	// feedBuffer is how many changes may queue for one slow subscriber
	feedBuffer   = 64
	writeTimeout = 5 * time.Second
)

type subscriber struct {
	changes chan model.Change
}

// Hub fans record changes out to the websocket subscribers of each table
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

// NewHub creates a hub without subscribers
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Publish queues change for every subscriber of table. A subscriber whose
// queue is full misses the change.
func (h *Hub) Publish(ctx context.Context, table string, change model.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	for sub := range h.subs[table] {
		select {
		case sub.changes <- change:
		default:
			logging.From(ctx).Warn("feed subscriber is lagging, dropping change",
				slog.String("table", table),
				slog.String("type", change.Type.String()),
			)
		}
	}
}

// Subscribers returns the number of live subscribers of table
func (h *Hub) Subscribers(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}

func (h *Hub) subscribe(table string) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	sub := &subscriber{changes: make(chan model.Change, feedBuffer)}
	if h.subs[table] == nil {
		h.subs[table] = make(map[*subscriber]struct{})
	}
	h.subs[table][sub] = struct{}{}
	return sub, true
}

func (h *Hub) unsubscribe(table string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[table][sub]; !ok {
		return
	}
	delete(h.subs[table], sub)
	close(sub.changes)
}

// Close ends every subscription. Connections are closed normally.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, subs := range h.subs {
		for sub := range subs {
			close(sub.changes)
		}
	}
	h.subs = make(map[string]map[*subscriber]struct{})
}

// ServeHTTP upgrades same origin requests to WebSocket and streams the
// changes of {table}
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, nil)
}

// Handler is ServeHTTP that also accepts the origins matching patterns
func (h *Hub) Handler(patterns ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serve(w, r, patterns)
	}
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, patterns []string) {
	table := chi.URLParam(r, "table")
	logger := logging.From(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: patterns,
	})
	if err != nil {
		logger.Warn("websocket accept failed", logging.ErrAttr(err))
		return
	}
	defer conn.CloseNow()

	sub, ok := h.subscribe(table)
	if !ok {
		conn.Close(websocket.StatusGoingAway, "shutting down") //nolint:errcheck // connection is dropped anyway
		return
	}
	defer h.unsubscribe(table, sub)

	// the feed is one way; reads only watch for the peer closing
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-sub.changes:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck // connection is dropped anyway
				return
			}
			if err := h.write(ctx, conn, change); err != nil {
				if websocket.CloseStatus(err) == -1 {
					logger.Warn("failed to write change", logging.ErrAttr(err))
				}
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, change model.Change) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, change)
}
