package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	"github.com/janpivonka/pulsenow-trade-engine/internal/infrastructure/feed"
	"github.com/janpivonka/pulsenow-trade-engine/internal/infrastructure/logger"
	"github.com/janpivonka/pulsenow-trade-engine/internal/infrastructure/storage"
	"github.com/janpivonka/pulsenow-trade-engine/internal/usecase"
	"github.com/janpivonka/pulsenow-trade-engine/internal/web"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Feed struct {
		IntervalMs int                 `yaml:"interval_ms"`
		Symbols    []feed.SymbolConfig `yaml:"symbols"`
	} `yaml:"feed"`
	Engine struct {
		TriggerCooldownMs int `yaml:"trigger_cooldown_ms"`
		DebounceMs        int `yaml:"debounce_ms"`
		DedupWindowMs     int `yaml:"dedup_window_ms"`
	} `yaml:"engine"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// 1. Load Config
	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Archive
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Build Engine
	ledger := usecase.NewLedger()
	history := usecase.NewHistoryLog(time.Duration(cfg.Engine.DedupWindowMs)*time.Millisecond, store, log)

	var server *web.Server
	notifier := usecase.NewNotificationBatcher(
		time.Duration(cfg.Engine.DebounceMs)*time.Millisecond,
		func(batch []domain.NotificationEvent) {
			if server != nil {
				server.PushNotifications(batch)
			}
		},
		log,
	)
	engine := usecase.NewExecutionEngine(ledger, history, notifier, log)
	watchdog := usecase.NewWatchdog(ledger, engine,
		time.Duration(cfg.Engine.TriggerCooldownMs)*time.Millisecond, log)

	// 5. Web Surface
	server = web.NewServer(cfg.Server.Port, ledger, history, engine, log)

	// 6. Price Feed
	var simulator domain.PriceFeed = feed.NewSimulator(
		cfg.Feed.Symbols, time.Duration(cfg.Feed.IntervalMs)*time.Millisecond, log)
	simulator.OnTick(func(ticks []domain.PriceTick) {
		watchdog.ProcessTick(context.Background(), ticks)
	})
	simulator.OnTick(server.PushTicks)

	if err := simulator.Start(context.Background()); err != nil {
		log.Fatal("Failed to start feed", zap.Error(err))
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Web server failed", zap.Error(err))
		}
	}()

	// 7. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	simulator.Stop()
	notifier.Stop()
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error("Shutdown error", zap.Error(err))
	}
}
