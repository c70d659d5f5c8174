package main

import (
	"context"
	"fmt"
	"time"

	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	"github.com/janpivonka/pulsenow-trade-engine/internal/infrastructure/feed"
	"go.uber.org/zap"
)

// Prints a few seconds of simulated ticks to eyeball the random walk.
func main() {
	log, _ := zap.NewDevelopment()
	defer log.Sync()

	simulator := feed.NewSimulator([]feed.SymbolConfig{
		{Symbol: "BTCUSD", StartPrice: 65000, Volatility: 0.003},
		{Symbol: "ETHUSD", StartPrice: 3200, Volatility: 0.004},
	}, 500*time.Millisecond, log)

	simulator.OnTick(func(ticks []domain.PriceTick) {
		for _, t := range ticks {
			fmt.Printf("%s  %s  %.2f  (history: %d points)\n",
				t.Time.Format("15:04:05.000"), t.Symbol, t.CurrentPrice, len(t.PriceHistory))
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := simulator.Start(ctx); err != nil {
		log.Fatal("failed to start simulator", zap.Error(err))
	}
	<-ctx.Done()
	simulator.Stop()
}
