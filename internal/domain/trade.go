package domain

import "time"

// Exit reasons recorded on history entries. Full and level closes echo the
// reason into the notification type ("UNIT #N <reason>").
const (
	TradePartialClose       = "PARTIAL_CLOSE"
	TradeClosed             = "CLOSED"
	TradeStopLossHit        = "STOP_LOSS_HIT"
	TradeTakeProfitHit      = "TAKE_PROFIT_HIT"
	TradeStopLossLevelHit   = "STOP_LOSS_LEVEL_HIT"
	TradeTakeProfitLevelHit = "TAKE_PROFIT_LEVEL_HIT"
)

// TradeHistoryEntry is an immutable record of one settled execution.
type TradeHistoryEntry struct {
	ID        string    `json:"id"`
	DisplayID int64     `json:"display_id"` // the position's trade number
	Symbol    string    `json:"symbol"`
	Amount    float64   `json:"amount"`
	BuyPrice  float64   `json:"buy_price"`
	SellPrice float64   `json:"sell_price"`
	PL        float64   `json:"pl"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationEvent is a transient, user-visible outcome of an action.
type NotificationEvent struct {
	Symbol string  `json:"symbol"`
	PL     float64 `json:"pl"`
	Type   string  `json:"type"`
}

// PriceTick is one price update for a tracked instrument, as delivered by the
// external feed.
type PriceTick struct {
	Symbol       string    `json:"symbol"`
	CurrentPrice float64   `json:"current_price"`
	PriceHistory []float64 `json:"price_history,omitempty"`
	Time         time.Time `json:"time"`
}
