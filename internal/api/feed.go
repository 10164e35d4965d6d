package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/framecut/timeline/internal/logging"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 30 * time.Second
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// callers authenticate with a bearer token, not cookies
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans committed revisions out to feed subscribers. Each subscriber
// holds at most one undelivered event: a newer revision replaces an older
// one, since readers only care about the latest.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan FeedEvent]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[chan FeedEvent]struct{}),
		logger: logging.WithComponent(logger, "feed"),
	}
}

func (h *Hub) Publish(projectID string, revision int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ev := FeedEvent{ProjectID: projectID, Revision: revision}
	for ch := range h.subs[projectID] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Subscribe registers for a project's revisions. The returned func
// unregisters and must be called once.
func (h *Hub) Subscribe(projectID string) (<-chan FeedEvent, func()) {
	ch := make(chan FeedEvent, 1)

	h.mu.Lock()
	if h.subs[projectID] == nil {
		h.subs[projectID] = make(map[chan FeedEvent]struct{})
	}
	h.subs[projectID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[projectID], ch)
		if len(h.subs[projectID]) == 0 {
			delete(h.subs, projectID)
		}
	}
}

func (h *Hub) Subscribers(projectID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[projectID])
}

func feedHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "id")

		// Subscribe before reading the revision so no commit falls in between.
		events, unsubscribe := cfg.Feed.Subscribe(projectID)
		defer unsubscribe()

		project, err := cfg.Store.GetProject(r.Context(), projectID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if project == nil {
			WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
			return
		}

		conn, err := feedUpgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client.
			return
		}
		defer conn.Close()

		log := logging.WithProjectID(cfg.Feed.logger, projectID)
		log.Debug("feed subscriber connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The client never sends anything; reading is only how a close is noticed.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		// Start every subscriber from the revision as of connecting.
		if err := writeFeedEvent(conn, FeedEvent{ProjectID: projectID, Revision: project.Revision}); err != nil {
			return
		}

		ticker := time.NewTicker(feedPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Debug("feed subscriber disconnected")
				return
			case ev := <-events:
				if err := writeFeedEvent(conn, ev); err != nil {
					log.Debug("feed write failed", "error", err)
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func writeFeedEvent(conn *websocket.Conn, ev FeedEvent) error {
	conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	return conn.WriteJSON(ev)
}
