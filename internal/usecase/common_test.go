package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	"github.com/janpivonka/pulsenow-trade-engine/internal/usecase"
	"go.uber.org/zap"
)

var ctxBG = context.Background()

// sinkRecorder captures delivered notification batches.
type sinkRecorder struct {
	mu      sync.Mutex
	batches [][]domain.NotificationEvent
}

func (r *sinkRecorder) accept(batch []domain.NotificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

func (r *sinkRecorder) batchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *sinkRecorder) lastBatch() []domain.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return nil
	}
	return r.batches[len(r.batches)-1]
}

func (r *sinkRecorder) allEvents() []domain.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.NotificationEvent
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

type rig struct {
	ledger   *usecase.Ledger
	history  *usecase.HistoryLog
	notifier *usecase.NotificationBatcher
	engine   *usecase.ExecutionEngine
	watchdog *usecase.Watchdog
	sink     *sinkRecorder
}

// newRig wires a complete engine with fast timers for tests.
func newRig(cooldown time.Duration) *rig {
	logger := zap.NewNop()
	sink := &sinkRecorder{}

	ledger := usecase.NewLedger()
	history := usecase.NewHistoryLog(usecase.DefaultDedupWindow, nil, logger)
	notifier := usecase.NewNotificationBatcher(20*time.Millisecond, sink.accept, logger)
	engine := usecase.NewExecutionEngine(ledger, history, notifier, logger)
	watchdog := usecase.NewWatchdog(ledger, engine, cooldown, logger)

	return &rig{
		ledger:   ledger,
		history:  history,
		notifier: notifier,
		engine:   engine,
		watchdog: watchdog,
		sink:     sink,
	}
}

// openPosition opens a unit and returns the ledger copy.
func (r *rig) openPosition(symbol string, amount, price float64, mutate func(*domain.Order)) *domain.Position {
	order := &domain.Order{
		Operation: domain.OpOpen,
		Symbol:    symbol,
		Amount:    amount,
		Price:     price,
	}
	if mutate != nil {
		mutate(order)
	}
	r.engine.Apply(ctxBG, order)

	snapshot := r.ledger.Snapshot()
	return snapshot[len(snapshot)-1]
}

func tick(symbol string, price float64) []domain.PriceTick {
	return []domain.PriceTick{{Symbol: symbol, CurrentPrice: price, Time: time.Now()}}
}

func floatPtr(v float64) *float64 {
	return &v
}
