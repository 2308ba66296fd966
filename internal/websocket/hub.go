package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pbimirror/internal/infrastructure"
	"pbimirror/internal/mirror"
)

// Message types sent to viewers
const (
	TypeConnection = "connection"
	TypeEvent      = "mirror:event"
)

const broadcastBuffer = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Envelope is the JSON frame every viewer receives.
type Envelope struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// Hub fans walk events out to connected viewers. It implements mirror.Observer.
type Hub struct {
	peers     map[*peer]struct{}
	broadcast chan []byte
	join      chan *peer
	part      chan *peer
	done      chan struct{}

	mu      sync.RWMutex
	sent    int64
	dropped int64

	logger *slog.Logger
}

// NewHub creates a hub. Call Run to start delivering.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		peers:     make(map[*peer]struct{}),
		broadcast: make(chan []byte, broadcastBuffer),
		join:      make(chan *peer),
		part:      make(chan *peer),
		done:      make(chan struct{}),
		logger:    infrastructure.WithComponent(logger, "websocket"),
	}
}

// Run delivers broadcasts until ctx is done, then disconnects every viewer.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.disconnectAll()
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.InfoContext(ctx, "Progress hub stopping", slog.Int("viewers", h.ViewerCount()))
			return

		case p := <-h.join:
			h.mu.Lock()
			h.peers[p] = struct{}{}
			n := len(h.peers)
			h.mu.Unlock()
			h.logger.InfoContext(ctx, "Viewer connected",
				slog.String("peer_id", p.id),
				slog.String("remote_addr", p.addr),
				slog.Int("viewers", n))
			h.greet(p)

		case p := <-h.part:
			h.mu.Lock()
			_, ok := h.peers[p]
			if ok {
				delete(h.peers, p)
				close(p.out)
			}
			h.mu.Unlock()
			if ok {
				h.logger.InfoContext(ctx, "Viewer disconnected",
					slog.String("peer_id", p.id),
					slog.Duration("connected_for", time.Since(p.since)))
			}

		case msg := <-h.broadcast:
			h.deliver(ctx, msg)
		}
	}
}

func (h *Hub) greet(p *peer) {
	data, err := json.Marshal(Envelope{
		Type:      TypeConnection,
		Data:      map[string]string{"status": "connected", "peer_id": p.id},
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	select {
	case p.out <- data:
	default:
	}
}

// deliver queues msg for every viewer; a viewer whose queue is full is dropped.
func (h *Hub) deliver(ctx context.Context, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		select {
		case p.out <- msg:
			h.sent++
		default:
			delete(h.peers, p)
			close(p.out)
			h.logger.WarnContext(ctx, "Viewer too slow, disconnecting", slog.String("peer_id", p.id))
		}
	}
}

// OnEvent queues a walk event for broadcast. It never blocks the walk: when
// the queue is full the event is counted as dropped.
func (h *Hub) OnEvent(ctx context.Context, e mirror.Event) {
	data, err := json.Marshal(Envelope{
		Type:      TypeEvent,
		Data:      e,
		Timestamp: time.Now().UTC(),
		TraceID:   infrastructure.GetTraceID(ctx),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to encode walk event",
			slog.String("event_type", string(e.Type)),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
	}
}

// ServeWS upgrades the request and attaches the viewer to the hub
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	p := newPeer(h, conn)
	select {
	case h.join <- p:
	case <-h.done:
		conn.Close()
		return
	}

	go p.pump()
	go p.drain()
}

// ViewerCount returns the number of connected viewers
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Stats reports messages queued to viewers and events dropped at the hub
func (h *Hub) Stats() (sent, dropped int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sent, h.dropped
}

// leave detaches p unless the hub has already stopped
func (h *Hub) leave(p *peer) {
	select {
	case h.part <- p:
	case <-h.done:
	}
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		delete(h.peers, p)
		close(p.out)
	}
}
