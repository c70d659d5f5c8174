package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	"github.com/janpivonka/pulsenow-trade-engine/internal/usecase"
	"go.uber.org/zap"
)

// Server exposes the engine read surfaces and order intake to the UI layer.
type Server struct {
	router   *http.ServeMux
	server   *http.Server
	ledger   *usecase.Ledger
	history  *usecase.HistoryLog
	engine   *usecase.ExecutionEngine
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	writeMu   sync.Mutex
	clients   map[*websocket.Conn]struct{}
	lastBatch []domain.NotificationEvent
}

func NewServer(
	port int,
	ledger *usecase.Ledger,
	history *usecase.HistoryLog,
	engine *usecase.ExecutionEngine,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		ledger:  ledger,
		history: history,
		engine:  engine,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Read surfaces
	s.router.HandleFunc("GET /api/positions", s.handlePositions)
	s.router.HandleFunc("GET /api/history", s.handleHistory)
	s.router.HandleFunc("GET /api/notifications", s.handleNotifications)

	// Order intake
	s.router.HandleFunc("POST /api/orders", s.handleOrder)
	s.router.HandleFunc("POST /api/positions/{id}/close", s.handleClose)

	// Live stream
	s.router.HandleFunc("GET /ws", s.handleWS)
}

func (s *Server) Start() error {
	s.logger.Info("web: listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
