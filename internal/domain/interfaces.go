package domain

import "context"

// HistoryArchive persists settled executions for reporting surfaces. The
// in-memory history log remains authoritative; the archive is a sink.
type HistoryArchive interface {
	SaveTrade(ctx context.Context, entry *TradeHistoryEntry) error
	ListTrades(ctx context.Context, limit int) ([]*TradeHistoryEntry, error)
}

// PriceFeed delivers periodic price ticks for a set of tracked instruments.
type PriceFeed interface {
	OnTick(callback func(ticks []PriceTick))
	Start(ctx context.Context) error
	Stop()
}
