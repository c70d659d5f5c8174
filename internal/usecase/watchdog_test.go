package usecase_test

import (
	"testing"
	"time"

	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
)

func TestWatchdog_AtMostOneTriggerPerBreach(t *testing.T) {
	r := newRig(time.Second)

	pos := r.openPosition("BTCUSD", 2, 100, func(o *domain.Order) {
		o.HasRisk = true
		o.SL = floatPtr(90)
	})

	// 5 consecutive ticks below the stop: exactly one close.
	for i := 0; i < 5; i++ {
		r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 89))
	}

	if r.ledger.Get(pos.ID) != nil {
		t.Fatalf("position should be closed")
	}
	entries := r.history.Snapshot()
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 history entry, got %d", len(entries))
	}
	if entries[0].Type != domain.TradeStopLossHit {
		t.Errorf("expected %s, got %s", domain.TradeStopLossHit, entries[0].Type)
	}
}

func TestWatchdog_TakeProfitLegacyPath(t *testing.T) {
	r := newRig(time.Second)

	pos := r.openPosition("BTCUSD", 2, 100, func(o *domain.Order) {
		o.HasRisk = true
		o.TP = floatPtr(110)
	})

	// 1. Below the target: nothing fires.
	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 105))
	if r.ledger.Get(pos.ID) == nil {
		t.Fatalf("position closed prematurely")
	}

	// 2. Crossing the target closes the full amount.
	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 111))
	if r.ledger.Get(pos.ID) != nil {
		t.Fatalf("position should be closed on TP breach")
	}
	entries := r.history.Snapshot()
	if len(entries) != 1 || entries[0].Type != domain.TradeTakeProfitHit {
		t.Fatalf("expected one TAKE_PROFIT_HIT entry, got %+v", entries)
	}
	if pl := entries[0].PL; pl != (111-100)*2 {
		t.Errorf("expected pl 22, got %f", pl)
	}
}

func TestWatchdog_LevelIndependence(t *testing.T) {
	r := newRig(time.Second)

	pos := r.openPosition("BTCUSD", 10, 100, func(o *domain.Order) {
		o.HasLevels = true
		o.Levels = []domain.Level{
			{ID: "sl1", Price: 90, Amount: 4, Type: domain.LevelStopLoss},
			{ID: "tp1", Price: 110, Amount: 4, Type: domain.LevelTakeProfit},
		}
	})

	// 1. SL level breaches: partial close, sibling TP level untouched.
	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 89))

	got := r.ledger.Get(pos.ID)
	if got == nil {
		t.Fatalf("position should survive a partial level close")
	}
	if got.Amount != 6 {
		t.Errorf("expected residual amount 6, got %f", got.Amount)
	}
	if len(got.Levels) != 1 || got.Levels[0].ID != "tp1" {
		t.Fatalf("expected only tp1 to remain, got %+v", got.Levels)
	}

	// 2. The TP level's lock state was not affected: it fires on its own breach.
	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 111))

	got = r.ledger.Get(pos.ID)
	if got == nil {
		t.Fatalf("position should still hold residual amount")
	}
	if got.Amount != 2 {
		t.Errorf("expected residual amount 2, got %f", got.Amount)
	}

	entries := r.history.Snapshot()
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	// Newest first
	if entries[0].Type != domain.TradeTakeProfitLevelHit || entries[1].Type != domain.TradeStopLossLevelHit {
		t.Errorf("unexpected entry types: %s, %s", entries[0].Type, entries[1].Type)
	}
}

func TestWatchdog_LevelDisplayAmountPercent(t *testing.T) {
	r := newRig(time.Second)

	pos := r.openPosition("BTCUSD", 10, 100, func(o *domain.Order) {
		o.HasLevels = true
		o.Levels = []domain.Level{
			{ID: "tp1", Price: 110, DisplayAmount: 50, Type: domain.LevelTakeProfit},
		}
	})

	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 112))

	got := r.ledger.Get(pos.ID)
	if got == nil || got.Amount != 5 {
		t.Fatalf("expected 50%% partial close to leave amount 5, got %+v", got)
	}
}

func TestWatchdog_StaleQuoteSkipsPosition(t *testing.T) {
	r := newRig(time.Second)

	pos := r.openPosition("BTCUSD", 2, 100, func(o *domain.Order) {
		o.HasRisk = true
		o.SL = floatPtr(90)
	})

	// Zero, negative and missing prices are stale quotes, not triggers.
	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 0))
	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", -5))
	r.watchdog.ProcessTick(ctxBG, tick("ETHUSD", 10))

	if r.ledger.Get(pos.ID) == nil {
		t.Fatalf("position must not be closed on stale quotes")
	}
	if r.history.Len() != 0 {
		t.Errorf("expected no history entries, got %d", r.history.Len())
	}
}

func TestWatchdog_CooldownFiresHarmlesslyAfterRemoval(t *testing.T) {
	r := newRig(30 * time.Millisecond)

	r.openPosition("BTCUSD", 2, 100, func(o *domain.Order) {
		o.HasRisk = true
		o.SL = floatPtr(90)
	})

	// 1. Breach closes the position and removes it from the ledger.
	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 89))
	if r.ledger.Len() != 0 {
		t.Fatalf("position should be closed")
	}

	// 2. The scheduled lock release fires after the position is gone; further
	// ticks must stay no-ops.
	time.Sleep(80 * time.Millisecond)
	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 89))

	if got := r.history.Len(); got != 1 {
		t.Errorf("expected 1 history entry, got %d", got)
	}
}

func TestWatchdog_CooldownExpiryReArmsTrigger(t *testing.T) {
	r := newRig(200 * time.Millisecond)

	level := domain.Level{ID: "sl1", Price: 90, Amount: 2, Type: domain.LevelStopLoss}
	pos := r.openPosition("BTCUSD", 10, 100, func(o *domain.Order) {
		o.HasLevels = true
		o.Levels = []domain.Level{level}
	})

	// 1. Breach fires the level once; the fired level leaves the plan.
	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 89))
	if got := r.ledger.Get(pos.ID); got == nil || got.Amount != 8 {
		t.Fatalf("expected partial close to amount 8, got %+v", got)
	}

	// 2. The user re-installs the same level id. Its trigger lock is still in
	// cooldown, so the next tick must not re-fire.
	r.engine.Apply(ctxBG, &domain.Order{
		PositionID: pos.ID,
		Operation:  domain.OpRiskUpdate,
		HasLevels:  true,
		Levels:     []domain.Level{level},
	})
	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 89))
	if got := r.history.Len(); got != 1 {
		t.Fatalf("cooldown must suppress the re-installed level, got %d entries", got)
	}

	// 3. Past the cooldown (and the history fuzzy window) the trigger is armed
	// again and fires against the new breach.
	time.Sleep(600 * time.Millisecond)
	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 89))

	if got := r.history.Len(); got != 2 {
		t.Fatalf("expected re-armed trigger to fire, got %d entries", got)
	}
	if got := r.ledger.Get(pos.ID); got == nil || got.Amount != 6 {
		t.Errorf("expected second partial close to amount 6, got %+v", got)
	}
}

// Legacy sl and a same-priced SL level operate under independent lock
// granularities, so a single tick may fire both: the level books its partial
// close first, then the legacy path closes the remainder. This codifies the
// known double-exit behavior rather than silently resolving it.
func TestWatchdog_LegacyAndLevelSameTick(t *testing.T) {
	r := newRig(time.Second)

	pos := r.openPosition("BTCUSD", 10, 100, func(o *domain.Order) {
		o.HasRisk = true
		o.SL = floatPtr(90)
		o.HasLevels = true
		o.Levels = []domain.Level{
			{ID: "sl1", Price: 90, Amount: 5, Type: domain.LevelStopLoss},
		}
	})

	r.watchdog.ProcessTick(ctxBG, tick("BTCUSD", 89))

	if r.ledger.Get(pos.ID) != nil {
		t.Fatalf("position should be fully closed after both triggers")
	}
	entries := r.history.Snapshot()
	if len(entries) != 2 {
		t.Fatalf("expected level partial + legacy full close, got %d entries", len(entries))
	}
	if entries[1].Type != domain.TradeStopLossLevelHit || entries[0].Type != domain.TradeStopLossHit {
		t.Errorf("unexpected entry types: %s, %s", entries[1].Type, entries[0].Type)
	}
	// Conservation: the two closes together settle exactly the held amount.
	if total := entries[0].Amount + entries[1].Amount; total != 10 {
		t.Errorf("expected settled amounts to sum to 10, got %f", total)
	}
}
