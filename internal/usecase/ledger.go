package usecase

import (
	"sort"
	"sync"

	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
)

// Ledger is the authoritative in-memory store of open positions. It hands out
// deep copies only, so the watchdog can iterate a snapshot while the execution
// engine mutates concurrently.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*domain.Position
}

func NewLedger() *Ledger {
	return &Ledger{
		positions: make(map[string]*domain.Position),
	}
}

// Get returns a copy of the position, or nil if it is not in the ledger.
func (l *Ledger) Get(id string) *domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.positions[id]; ok {
		return p.Clone()
	}
	return nil
}

// Upsert inserts or replaces a position by id. The ledger stores its own copy.
func (l *Ledger) Upsert(p *domain.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions[p.ID] = p.Clone()
}

func (l *Ledger) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.positions, id)
}

// Snapshot returns copies of all open positions, ordered by trade number.
func (l *Ledger) Snapshot() []*domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TradeNumber < out[j].TradeNumber
	})
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}
