package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore archives settled executions. It implements domain.HistoryArchive.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trade_history (
			id TEXT PRIMARY KEY,
			display_id INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			amount REAL NOT NULL,
			buy_price REAL NOT NULL,
			sell_price REAL NOT NULL,
			pl REAL NOT NULL,
			type TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_history_display_id ON trade_history(display_id);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_history_timestamp ON trade_history(timestamp);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveTrade(ctx context.Context, entry *domain.TradeHistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO trade_history
			(id, display_id, symbol, amount, buy_price, sell_price, pl, type, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.DisplayID, entry.Symbol, entry.Amount,
		entry.BuyPrice, entry.SellPrice, entry.PL, entry.Type, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]*domain.TradeHistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_id, symbol, amount, buy_price, sell_price, pl, type, timestamp
		FROM trade_history ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var entries []*domain.TradeHistoryEntry
	for rows.Next() {
		var e domain.TradeHistoryEntry
		if err := rows.Scan(&e.ID, &e.DisplayID, &e.Symbol, &e.Amount,
			&e.BuyPrice, &e.SellPrice, &e.PL, &e.Type, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
