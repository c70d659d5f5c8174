package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	"go.uber.org/zap"
)

type levelRequest struct {
	ID            string  `json:"id"`
	Price         float64 `json:"price"`
	Amount        float64 `json:"amount"`
	DisplayAmount float64 `json:"display_amount"`
	Type          string  `json:"type"`
}

// orderRequest mirrors the loose UI order shape. SL/TP arrive as strings so
// that "", null and a number can be told apart before normalization. Type is
// the legacy buy/sell discriminator still sent by older clients.
type orderRequest struct {
	PositionID string          `json:"position_id"`
	Symbol     string          `json:"symbol"`
	Operation  string          `json:"operation"`
	Type       string          `json:"type"`
	Amount     float64         `json:"amount"`
	Price      float64         `json:"price"`
	SL         *string         `json:"sl"`
	TP         *string         `json:"tp"`
	Levels     *[]levelRequest `json:"levels"`
}

// operationFor maps the legacy type field onto an operation when the request
// does not carry one: buy without an id opens a unit, buy against an id adds,
// sell reduces.
func operationFor(req *orderRequest) domain.OperationType {
	if req.Operation != "" {
		return domain.OperationType(req.Operation)
	}
	switch req.Type {
	case "buy":
		if req.PositionID == "" {
			return domain.OpOpen
		}
		return domain.OpAdd
	case "sell":
		return domain.OpReduce
	}
	return domain.OpRiskUpdate
}

type closeRequest struct {
	ExitPrice float64 `json:"exit_price"`
	Reason    string  `json:"reason"`
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ledger.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.history.Snapshot())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	batch := s.lastBatch
	s.mu.Unlock()
	if batch == nil {
		batch = []domain.NotificationEvent{}
	}
	s.writeJSON(w, batch)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid order payload", http.StatusBadRequest)
		return
	}

	order := &domain.Order{
		PositionID: req.PositionID,
		Symbol:     req.Symbol,
		Operation:  operationFor(&req),
		Amount:     req.Amount,
		Price:      req.Price,
	}

	if req.SL != nil || req.TP != nil {
		order.HasRisk = true
		var err error
		if order.SL, err = parseRisk(req.SL); err != nil {
			http.Error(w, "invalid sl", http.StatusBadRequest)
			return
		}
		if order.TP, err = parseRisk(req.TP); err != nil {
			http.Error(w, "invalid tp", http.StatusBadRequest)
			return
		}
	}
	if req.Levels != nil {
		order.HasLevels = true
		for _, lv := range *req.Levels {
			order.Levels = append(order.Levels, domain.Level{
				ID:            lv.ID,
				Price:         lv.Price,
				Amount:        lv.Amount,
				DisplayAmount: lv.DisplayAmount,
				Type:          domain.LevelType(lv.Type),
			})
		}
	}

	s.engine.Apply(r.Context(), order)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid close payload", http.StatusBadRequest)
		return
	}

	s.engine.Close(r.Context(), id, req.ExitPrice, req.Reason)
	w.WriteHeader(http.StatusAccepted)
}

// parseRisk maps "" and null to no threshold.
func parseRisk(v *string) (*float64, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(*v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("web: failed to encode response", zap.Error(err))
	}
}
