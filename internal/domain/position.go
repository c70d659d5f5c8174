package domain

import "time"

type LevelType string

const (
	LevelStopLoss   LevelType = "SL"
	LevelTakeProfit LevelType = "TP"
)

// Level is one conditional exit target within a position's plan.
// Levels are independently triggerable; removing one must not touch its siblings.
type Level struct {
	ID            string    `json:"id"`
	Price         float64   `json:"price"`
	Amount        float64   `json:"amount"`
	DisplayAmount float64   `json:"display_amount"` // percent of the position, used when Amount is zero
	Type          LevelType `json:"type"`
}

// Position represents one open exposure to a symbol ("unit" in the UI).
type Position struct {
	ID          string    `json:"id"`
	TradeNumber int64     `json:"trade_number"`
	Symbol      string    `json:"symbol"`
	Amount      float64   `json:"amount"`
	Price       float64   `json:"price"` // volume-weighted average entry
	SL          *float64  `json:"sl,omitempty"`
	TP          *float64  `json:"tp,omitempty"`
	Levels      []Level   `json:"levels,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Clone returns a deep copy, so ledger snapshots cannot be mutated behind the
// ledger's back.
func (p *Position) Clone() *Position {
	cp := *p
	if p.SL != nil {
		sl := *p.SL
		cp.SL = &sl
	}
	if p.TP != nil {
		tp := *p.TP
		cp.TP = &tp
	}
	if p.Levels != nil {
		cp.Levels = make([]Level, len(p.Levels))
		copy(cp.Levels, p.Levels)
	}
	return &cp
}

type OperationType string

const (
	OpOpen       OperationType = "OPEN"
	OpReduce     OperationType = "REDUCE"
	OpAdd        OperationType = "ADD"
	OpRiskUpdate OperationType = "RISK_UPDATE"
)

// Order is a single mutation request against the ledger. An order with an
// amount component (REDUCE/ADD) may additionally carry a risk component
// (HasRisk / HasLevels); both are applied together and notified as one batch.
type Order struct {
	PositionID string
	Symbol     string
	Operation  OperationType
	Amount     float64
	Price      float64

	SL        *float64
	TP        *float64
	HasRisk   bool // SL/TP fields were present on the request
	Levels    []Level
	HasLevels bool // Levels field was present on the request
}
