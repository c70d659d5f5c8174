package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	"go.uber.org/zap"
)

// amountEpsilon is the residue below which a position is destroyed rather than
// left near zero.
const amountEpsilon = 1e-8

// ExecutionEngine is the single authority that turns orders into ledger
// mutations, history entries and notification events. A mutex serializes all
// mutations so a tick-triggered close and a user order never interleave against
// a stale copy of the same position.
type ExecutionEngine struct {
	mu       sync.Mutex
	ledger   *Ledger
	history  *HistoryLog
	notifier *NotificationBatcher
	tradeSeq atomic.Int64
	logger   *zap.Logger
}

func NewExecutionEngine(ledger *Ledger, history *HistoryLog, notifier *NotificationBatcher, logger *zap.Logger) *ExecutionEngine {
	return &ExecutionEngine{
		ledger:   ledger,
		history:  history,
		notifier: notifier,
		logger:   logger,
	}
}

// Apply executes one order. Orders referencing a missing position are silent
// no-ops: the position may have been closed by the watchdog between UI intent
// and execution. Invalid amounts or prices reject the order without mutation.
func (e *ExecutionEngine) Apply(ctx context.Context, order *domain.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if order.PositionID == "" || order.Operation == domain.OpOpen {
		e.open(ctx, order)
		return
	}

	pos := e.ledger.Get(order.PositionID)
	if pos == nil {
		e.logger.Info("executor: order for unknown position, skipping",
			zap.String("position_id", order.PositionID), zap.String("op", string(order.Operation)))
		return
	}

	var events []domain.NotificationEvent
	removed := false

	switch order.Operation {
	case domain.OpReduce:
		if !validQty(order.Amount) || !validPrice(order.Price) {
			e.logger.Warn("executor: rejected reduce", zap.Float64("amount", order.Amount), zap.Float64("price", order.Price))
			return
		}
		qty := order.Amount
		if qty > pos.Amount {
			qty = pos.Amount
		}
		pl := (order.Price - pos.Price) * qty
		e.appendHistory(ctx, pos, qty, order.Price, pl, domain.TradePartialClose)
		pos.Amount -= qty
		if pos.Amount <= amountEpsilon {
			e.ledger.Remove(pos.ID)
			removed = true
		}
		events = append(events, domain.NotificationEvent{
			Symbol: pos.Symbol,
			PL:     pl,
			Type:   fmt.Sprintf("UNIT #%d PARTIAL SELL", pos.TradeNumber),
		})
	case domain.OpAdd:
		if !validQty(order.Amount) || !validPrice(order.Price) {
			e.logger.Warn("executor: rejected add", zap.Float64("amount", order.Amount), zap.Float64("price", order.Price))
			return
		}
		pos.Price = (pos.Price*pos.Amount + order.Price*order.Amount) / (pos.Amount + order.Amount)
		pos.Amount += order.Amount
		events = append(events, domain.NotificationEvent{
			Symbol: pos.Symbol,
			Type:   fmt.Sprintf("UNIT #%d INCREASED", pos.TradeNumber),
		})
	}

	if (order.HasRisk || order.HasLevels) && !removed {
		if e.applyRisk(pos, order) {
			events = append(events, domain.NotificationEvent{
				Symbol: pos.Symbol,
				Type:   fmt.Sprintf("UNIT #%d RISK UPDATED", pos.TradeNumber),
			})
		}
	}

	if !removed && len(events) > 0 {
		e.ledger.Upsert(pos)
	}
	e.notifier.Publish(events...)
}

// Close settles the entire remaining amount of a position at exitPrice,
// records one history entry tagged with reason and removes the position.
func (e *ExecutionEngine) Close(ctx context.Context, positionID string, exitPrice float64, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.ledger.Get(positionID)
	if pos == nil {
		e.logger.Info("executor: close for unknown position, skipping", zap.String("position_id", positionID))
		return
	}
	if !validPrice(exitPrice) {
		e.logger.Warn("executor: rejected close", zap.Float64("exit_price", exitPrice))
		return
	}
	if reason == "" {
		reason = domain.TradeClosed
	}

	pl := (exitPrice - pos.Price) * pos.Amount
	e.appendHistory(ctx, pos, pos.Amount, exitPrice, pl, reason)
	e.ledger.Remove(pos.ID)
	e.notifier.Publish(domain.NotificationEvent{
		Symbol: pos.Symbol,
		PL:     pl,
		Type:   fmt.Sprintf("UNIT #%d %s", pos.TradeNumber, reason),
	})
	e.logger.Info("executor: position closed",
		zap.Int64("unit", pos.TradeNumber), zap.String("reason", reason), zap.Float64("pl", pl))
}

// ReduceForLevel partially closes a position for one fired exit level. The
// fired level is removed from the plan; siblings are untouched. When the level
// exhausts the remaining amount the position is destroyed.
func (e *ExecutionEngine) ReduceForLevel(ctx context.Context, positionID string, level domain.Level, fillPrice float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.ledger.Get(positionID)
	if pos == nil {
		e.logger.Debug("executor: level fill for unknown position, skipping",
			zap.String("position_id", positionID), zap.String("level_id", level.ID))
		return
	}
	if !validPrice(fillPrice) {
		return
	}

	qty := level.Amount
	if qty <= 0 && level.DisplayAmount > 0 {
		qty = pos.Amount * level.DisplayAmount / 100
	}
	if qty <= 0 {
		return
	}
	if qty > pos.Amount {
		qty = pos.Amount
	}

	reason := domain.TradeStopLossLevelHit
	if level.Type == domain.LevelTakeProfit {
		reason = domain.TradeTakeProfitLevelHit
	}

	pl := (fillPrice - pos.Price) * qty
	e.appendHistory(ctx, pos, qty, fillPrice, pl, reason)

	kept := pos.Levels[:0]
	for _, lv := range pos.Levels {
		if lv.ID != level.ID {
			kept = append(kept, lv)
		}
	}
	pos.Levels = kept

	pos.Amount -= qty
	if pos.Amount <= amountEpsilon {
		e.ledger.Remove(pos.ID)
	} else {
		e.ledger.Upsert(pos)
	}

	e.notifier.Publish(domain.NotificationEvent{
		Symbol: pos.Symbol,
		PL:     pl,
		Type:   fmt.Sprintf("UNIT #%d %s", pos.TradeNumber, reason),
	})
	e.logger.Info("executor: level filled",
		zap.Int64("unit", pos.TradeNumber), zap.String("level_id", level.ID),
		zap.String("reason", reason), zap.Float64("pl", pl))
}

func (e *ExecutionEngine) open(ctx context.Context, order *domain.Order) {
	if !validQty(order.Amount) || !validPrice(order.Price) || order.Symbol == "" {
		e.logger.Warn("executor: rejected open",
			zap.String("symbol", order.Symbol), zap.Float64("amount", order.Amount), zap.Float64("price", order.Price))
		return
	}

	pos := &domain.Position{
		ID:          uuid.NewString(),
		TradeNumber: e.tradeSeq.Add(1),
		Symbol:      order.Symbol,
		Amount:      order.Amount,
		Price:       order.Price,
		SL:          normalizeRisk(order.SL),
		TP:          normalizeRisk(order.TP),
		Levels:      dedupeLevels(order.Levels),
		Timestamp:   time.Now(),
	}
	e.ledger.Upsert(pos)
	e.notifier.Publish(domain.NotificationEvent{
		Symbol: pos.Symbol,
		Type:   fmt.Sprintf("UNIT #%d OPENED", pos.TradeNumber),
	})
	e.logger.Info("executor: position opened",
		zap.Int64("unit", pos.TradeNumber), zap.String("symbol", pos.Symbol),
		zap.Float64("amount", pos.Amount), zap.Float64("price", pos.Price))
}

// applyRisk normalizes and replaces sl/tp and the levels plan. Reports whether
// anything actually changed; a no-op update must not notify.
func (e *ExecutionEngine) applyRisk(pos *domain.Position, order *domain.Order) bool {
	changed := false

	if order.HasRisk {
		sl := normalizeRisk(order.SL)
		tp := normalizeRisk(order.TP)
		if !riskEqual(pos.SL, sl) {
			pos.SL = sl
			changed = true
		}
		if !riskEqual(pos.TP, tp) {
			pos.TP = tp
			changed = true
		}
	}
	if order.HasLevels {
		next := dedupeLevels(order.Levels)
		if !levelsEqual(pos.Levels, next) {
			pos.Levels = next
			changed = true
		}
	}
	return changed
}

func (e *ExecutionEngine) appendHistory(ctx context.Context, pos *domain.Position, qty, sellPrice, pl float64, tag string) {
	e.history.Append(ctx, &domain.TradeHistoryEntry{
		ID:        uuid.NewString(),
		DisplayID: pos.TradeNumber,
		Symbol:    pos.Symbol,
		Amount:    qty,
		BuyPrice:  pos.Price,
		SellPrice: sellPrice,
		PL:        pl,
		Type:      tag,
		Timestamp: time.Now(),
	})
}

func validQty(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// normalizeRisk collapses absent and non-positive thresholds to nil so that
// "", null and 0 all compare equal.
func normalizeRisk(v *float64) *float64 {
	if v == nil || *v <= 0 || math.IsInf(*v, 0) || math.IsNaN(*v) {
		return nil
	}
	cp := *v
	return &cp
}

func riskEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func levelsEqual(a, b []domain.Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// dedupeLevels keeps the first occurrence of each level id; a plan never holds
// two levels with the same id.
func dedupeLevels(levels []domain.Level) []domain.Level {
	if len(levels) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(levels))
	out := make([]domain.Level, 0, len(levels))
	for _, lv := range levels {
		if _, dup := seen[lv.ID]; dup {
			continue
		}
		seen[lv.ID] = struct{}{}
		out = append(out, lv)
	}
	return out
}
