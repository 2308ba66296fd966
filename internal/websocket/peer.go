// Package websocket streams walk progress to browser or CLI clients.
package websocket

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	// pingInterval must stay below pongTimeout.
	pingInterval = pongTimeout * 9 / 10
	readLimit    = 512
	peerBuffer   = 64
)

// peer is one connected progress viewer.
type peer struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan []byte

	id     string
	addr   string
	since  time.Time
	logger *slog.Logger
}

func newPeer(hub *Hub, conn *websocket.Conn) *peer {
	id := uuid.New().String()
	return &peer{
		hub:    hub,
		conn:   conn,
		out:    make(chan []byte, peerBuffer),
		id:     id,
		addr:   conn.RemoteAddr().String(),
		since:  time.Now(),
		logger: hub.logger.With(slog.String("peer_id", id)),
	}
}

// drain reads until the connection fails so control frames get handled.
// Viewers have nothing to say; payloads are discarded.
func (p *peer) drain() {
	defer func() {
		p.hub.leave(p)
		p.conn.Close()
	}()

	p.conn.SetReadLimit(readLimit)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := p.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				p.logger.Warn("Viewer connection closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// pump writes queued messages and keepalive pings until out is closed or a
// write fails.
func (p *peer) pump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		var err error
		select {
		case msg, ok := <-p.out:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "walk finished"))
				return
			}
			err = p.conn.WriteMessage(websocket.TextMessage, msg)
		case <-ticker.C:
			err = p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
		}
		if err != nil {
			p.logger.Debug("Viewer write failed", slog.String("error", err.Error()))
			return
		}
	}
}
