package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	"go.uber.org/zap"
)

const historyDepth = 120

// SymbolConfig seeds one simulated instrument.
type SymbolConfig struct {
	Symbol     string  `yaml:"symbol"`
	StartPrice float64 `yaml:"start_price"`
	Volatility float64 `yaml:"volatility"` // max relative move per tick, e.g. 0.002
}

type symbolState struct {
	price      float64
	volatility float64
	history    []float64
}

// Simulator is a random-walk price generator standing in for the external
// feed. Each tick moves every symbol and delivers the full tick set to all
// registered callbacks.
type Simulator struct {
	interval  time.Duration
	logger    *zap.Logger
	rng       *rand.Rand
	mu        sync.Mutex
	symbols   map[string]*symbolState
	callbacks []func(ticks []domain.PriceTick)
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewSimulator(symbols []SymbolConfig, interval time.Duration, logger *zap.Logger) *Simulator {
	if interval <= 0 {
		interval = time.Second
	}
	s := &Simulator{
		interval: interval,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		symbols:  make(map[string]*symbolState, len(symbols)),
	}
	for _, cfg := range symbols {
		vol := cfg.Volatility
		if vol <= 0 {
			vol = 0.002
		}
		s.symbols[cfg.Symbol] = &symbolState{
			price:      cfg.StartPrice,
			volatility: vol,
			history:    []float64{cfg.StartPrice},
		}
	}
	return s
}

// OnTick registers a callback invoked on every tick cycle.
func (s *Simulator) OnTick(callback func(ticks []domain.PriceTick)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

func (s *Simulator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.step()
			}
		}
	}()

	s.logger.Info("feed: simulator started",
		zap.Int("symbols", len(s.symbols)), zap.Duration("interval", s.interval))
	return nil
}

func (s *Simulator) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Simulator) step() {
	now := time.Now()
	s.mu.Lock()
	ticks := make([]domain.PriceTick, 0, len(s.symbols))
	for symbol, st := range s.symbols {
		move := (s.rng.Float64()*2 - 1) * st.volatility
		st.price = st.price * (1 + move)
		st.history = append(st.history, st.price)
		if len(st.history) > historyDepth {
			st.history = st.history[len(st.history)-historyDepth:]
		}
		history := make([]float64, len(st.history))
		copy(history, st.history)
		ticks = append(ticks, domain.PriceTick{
			Symbol:       symbol,
			CurrentPrice: st.price,
			PriceHistory: history,
			Time:         now,
		})
	}
	callbacks := make([]func([]domain.PriceTick), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(ticks)
	}
}
