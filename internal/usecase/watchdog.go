package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	"go.uber.org/zap"
)

// priceEpsilon guards threshold comparisons against float noise.
const priceEpsilon = 1e-8

// DefaultTriggerCooldown keeps a fired trigger locked past the ledger mutation.
// The release is deliberately delayed instead of immediate: the mutation and
// the next tick evaluation are not strictly sequenced, and releasing early
// would re-fire the same threshold against stale state.
const DefaultTriggerCooldown = 2 * time.Second

// Watchdog scans open positions on every price tick and fires at most one exit
// attempt per distinct threshold. Two independent lock granularities exist:
// per-level (positionID+levelID) for plan targets and per-position for the
// legacy single sl/tp path. They guard redundant triggering only; memory
// safety is the ledger's and engine's concern.
type Watchdog struct {
	ledger   *Ledger
	engine   *ExecutionEngine
	cooldown time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]struct{}
}

func NewWatchdog(ledger *Ledger, engine *ExecutionEngine, cooldown time.Duration, logger *zap.Logger) *Watchdog {
	if cooldown <= 0 {
		cooldown = DefaultTriggerCooldown
	}
	return &Watchdog{
		ledger:   ledger,
		engine:   engine,
		cooldown: cooldown,
		logger:   logger,
		locks:    make(map[string]struct{}),
	}
}

// ProcessTick evaluates every open position against the latest prices.
// Zero, negative or missing prices are stale quotes; the position is skipped
// for this tick.
func (w *Watchdog) ProcessTick(ctx context.Context, ticks []domain.PriceTick) {
	prices := make(map[string]float64, len(ticks))
	for _, t := range ticks {
		if t.CurrentPrice > 0 {
			prices[t.Symbol] = t.CurrentPrice
		}
	}
	if len(prices) == 0 {
		return
	}

	for _, pos := range w.ledger.Snapshot() {
		price, ok := prices[pos.Symbol]
		if !ok {
			continue
		}
		if w.isLocked(pos.ID) {
			// A full close is already in flight for this position.
			continue
		}

		for _, lv := range pos.Levels {
			if !levelBreached(lv, price) {
				continue
			}
			key := pos.ID + ":" + lv.ID
			if !w.tryLock(key) {
				continue
			}
			w.logger.Info("watchdog: level breached",
				zap.Int64("unit", pos.TradeNumber), zap.String("level_id", lv.ID),
				zap.String("type", string(lv.Type)), zap.Float64("price", price))
			w.engine.ReduceForLevel(ctx, pos.ID, lv, price)
			w.scheduleUnlock(key)
		}

		// Legacy single sl/tp path, evaluated even when a levels plan exists.
		if reason, hit := legacyBreached(pos, price); hit {
			if !w.tryLock(pos.ID) {
				continue
			}
			w.logger.Info("watchdog: threshold breached",
				zap.Int64("unit", pos.TradeNumber), zap.String("reason", reason), zap.Float64("price", price))
			w.engine.Close(ctx, pos.ID, price, reason)
			w.scheduleUnlock(pos.ID)
		}
	}
}

func levelBreached(lv domain.Level, price float64) bool {
	switch lv.Type {
	case domain.LevelStopLoss:
		return price <= lv.Price+priceEpsilon
	case domain.LevelTakeProfit:
		return price >= lv.Price-priceEpsilon
	}
	return false
}

func legacyBreached(pos *domain.Position, price float64) (string, bool) {
	if pos.SL != nil && price <= *pos.SL+priceEpsilon {
		return domain.TradeStopLossHit, true
	}
	if pos.TP != nil && price >= *pos.TP-priceEpsilon {
		return domain.TradeTakeProfitHit, true
	}
	return "", false
}

func (w *Watchdog) isLocked(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, held := w.locks[key]
	return held
}

func (w *Watchdog) tryLock(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, held := w.locks[key]; held {
		return false
	}
	w.locks[key] = struct{}{}
	return true
}

// scheduleUnlock releases the trigger lock after the cooldown. Firing for a
// position that has since left the ledger is a harmless no-op.
func (w *Watchdog) scheduleUnlock(key string) {
	time.AfterFunc(w.cooldown, func() {
		w.mu.Lock()
		delete(w.locks, key)
		w.mu.Unlock()
	})
}
