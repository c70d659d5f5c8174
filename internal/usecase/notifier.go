package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	"go.uber.org/zap"
)

// DefaultDebounceWindow coalesces notifications produced by one user action
// (e.g. a reduce plus a risk update) into a single confirmation.
const DefaultDebounceWindow = 150 * time.Millisecond

// NotificationBatcher buffers events and delivers them as one deduplicated
// batch after a debounce window. The timer is re-armed on every new event.
type NotificationBatcher struct {
	mu      sync.Mutex
	pending []domain.NotificationEvent
	timer   *time.Timer
	window  time.Duration
	sink    func(batch []domain.NotificationEvent)
	stopped bool
	logger  *zap.Logger
}

func NewNotificationBatcher(window time.Duration, sink func([]domain.NotificationEvent), logger *zap.Logger) *NotificationBatcher {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &NotificationBatcher{
		window: window,
		sink:   sink,
		logger: logger,
	}
}

// Publish appends events to the pending buffer and (re)arms the debounce timer.
func (b *NotificationBatcher) Publish(events ...domain.NotificationEvent) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}

	b.pending = append(b.pending, events...)
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.window, b.Flush)
}

// Flush delivers the pending buffer immediately, deduplicated by
// (symbol, type, pl), first seen wins.
func (b *NotificationBatcher) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	pending := b.pending
	b.pending = nil
	sink := b.sink
	b.mu.Unlock()

	if len(pending) == 0 || sink == nil {
		return
	}

	seen := make(map[string]struct{}, len(pending))
	batch := make([]domain.NotificationEvent, 0, len(pending))
	for _, ev := range pending {
		key := fmt.Sprintf("%s|%s|%.8f", ev.Symbol, ev.Type, ev.PL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		batch = append(batch, ev)
	}

	b.logger.Debug("notifier: delivering batch", zap.Int("events", len(batch)))
	sink(batch)
}

// Stop cancels any armed timer and delivers whatever is still buffered.
func (b *NotificationBatcher) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
	b.Flush()
}
