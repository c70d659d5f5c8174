package usecase_test

import (
	"testing"
	"time"

	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	"github.com/janpivonka/pulsenow-trade-engine/internal/usecase"
	"go.uber.org/zap"
)

func entry(id string, displayID int64, typ string) *domain.TradeHistoryEntry {
	return &domain.TradeHistoryEntry{
		ID:        id,
		DisplayID: displayID,
		Symbol:    "BTCUSD",
		Amount:    1,
		BuyPrice:  100,
		SellPrice: 110,
		PL:        10,
		Type:      typ,
		Timestamp: time.Now(),
	}
}

func TestHistoryLog_DuplicateIDDropped(t *testing.T) {
	h := usecase.NewHistoryLog(usecase.DefaultDedupWindow, nil, zap.NewNop())

	if !h.Append(ctxBG, entry("e1", 1, domain.TradePartialClose)) {
		t.Fatalf("first append must succeed")
	}
	if h.Append(ctxBG, entry("e1", 2, domain.TradeClosed)) {
		t.Errorf("colliding id must be dropped")
	}
	if h.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", h.Len())
	}
}

func TestHistoryLog_FuzzyDuplicateWindow(t *testing.T) {
	h := usecase.NewHistoryLog(100*time.Millisecond, nil, zap.NewNop())

	// 1. Same displayId+type inside the window: second insert absorbed.
	if !h.Append(ctxBG, entry("e1", 7, domain.TradeStopLossHit)) {
		t.Fatalf("first append must succeed")
	}
	if h.Append(ctxBG, entry("e2", 7, domain.TradeStopLossHit)) {
		t.Errorf("fuzzy duplicate inside window must be dropped")
	}

	// 2. Different type for the same unit is not a duplicate.
	if !h.Append(ctxBG, entry("e3", 7, domain.TradePartialClose)) {
		t.Errorf("different type must be accepted")
	}

	// 3. Outside the window the same key is accepted again.
	time.Sleep(150 * time.Millisecond)
	if !h.Append(ctxBG, entry("e4", 7, domain.TradeStopLossHit)) {
		t.Errorf("entry outside window must be accepted")
	}

	if h.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", h.Len())
	}
}

func TestHistoryLog_SnapshotNewestFirst(t *testing.T) {
	h := usecase.NewHistoryLog(usecase.DefaultDedupWindow, nil, zap.NewNop())

	h.Append(ctxBG, entry("e1", 1, domain.TradePartialClose))
	h.Append(ctxBG, entry("e2", 2, domain.TradeClosed))
	h.Append(ctxBG, entry("e3", 3, domain.TradeTakeProfitHit))

	snap := h.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snap))
	}
	if snap[0].ID != "e3" || snap[2].ID != "e1" {
		t.Errorf("expected newest first, got %s..%s", snap[0].ID, snap[2].ID)
	}

	// Snapshot entries are copies.
	snap[0].PL = 0
	if h.Snapshot()[0].PL != 10 {
		t.Errorf("snapshot mutation leaked into the log")
	}
}
