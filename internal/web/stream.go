package web

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	"go.uber.org/zap"
)

type streamMessage struct {
	Kind          string                     `json:"kind"` // "ticks" or "notifications"
	Ticks         []domain.PriceTick         `json:"ticks,omitempty"`
	Notifications []domain.NotificationEvent `json:"notifications,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("web: ws upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("web: ws client connected", zap.String("remote", conn.RemoteAddr().String()))

	// Drain reads so close frames are processed; the stream is one-way.
	go func() {
		defer s.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// PushTicks forwards a tick cycle to all connected stream clients. Wired as a
// feed callback by the host.
func (s *Server) PushTicks(ticks []domain.PriceTick) {
	s.broadcast(streamMessage{Kind: "ticks", Ticks: ticks})
}

// PushNotifications records the latest batch for polling clients and forwards
// it to the stream. Wired as the notification batcher sink by the host.
func (s *Server) PushNotifications(batch []domain.NotificationEvent) {
	s.mu.Lock()
	s.lastBatch = batch
	s.mu.Unlock()
	s.broadcast(streamMessage{Kind: "notifications", Notifications: batch})
}

func (s *Server) broadcast(msg streamMessage) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	// Gorilla allows one concurrent writer per connection; tick and
	// notification broadcasts arrive from different goroutines.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, c := range conns {
		if err := c.WriteJSON(msg); err != nil {
			s.dropClient(c)
		}
	}
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	if _, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		conn.Close()
	}
	s.mu.Unlock()
}
