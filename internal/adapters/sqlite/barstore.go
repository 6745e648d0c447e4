// Package sqlite implements the ports.BarStore interface using SQLite.
// The store is a read-through cache for historical bars; the gateway core
// keeps no other persistent state.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradegateway/internal/domain"
	"tradegateway/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// BarStore implements ports.BarStore backed by a single SQLite file.
type BarStore struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite bar store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewBarStore opens (or creates) the SQLite database and ensures the schema.
func NewBarStore(cfg Config) (*BarStore, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite bar store")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/history.db"
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
			cfg.Logger.Error(context.Background(), err, "SQLite bar store initialization failed")
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite bar store initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %v", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite bar store initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from
	// limiting connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &BarStore{db: db, logger: cfg.Logger}
	if err := store.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite bar store initialization failed")
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "SQLite bar store ready", map[string]interface{}{"path": dbPath})
	return store, nil
}

func (s *BarStore) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS bars (
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		interval TEXT NOT NULL,
		open_time INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		PRIMARY KEY (symbol, interval, open_time)
	);
	CREATE INDEX IF NOT EXISTS idx_bars_symbol_interval_time ON bars (symbol, interval, open_time);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// SaveBars upserts a batch of bars in one transaction. Re-fetching a range
// overwrites the cached rows rather than duplicating them.
func (s *BarStore) SaveBars(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
	INSERT INTO bars (symbol, exchange, interval, open_time, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(symbol, interval, open_time) DO UPDATE SET
		exchange = excluded.exchange,
		open = excluded.open,
		high = excluded.high,
		low = excluded.low,
		close = excluded.close,
		volume = excluded.volume`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		_, err := stmt.ExecContext(ctx,
			bar.Symbol, bar.Exchange, bar.Interval, bar.OpenTime.UnixMilli(),
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
		if err != nil {
			return fmt.Errorf("failed to upsert bar %s/%s@%s: %w",
				bar.Symbol, bar.Interval, bar.OpenTime.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bar batch: %w", err)
	}
	s.logger.Debug(ctx, "Bars saved", map[string]interface{}{"count": len(bars)})
	return nil
}

// FindBars retrieves cached bars for the request range, ordered by open time
// ascending. An empty result is not an error.
func (s *BarStore) FindBars(ctx context.Context, req domain.HistoryRequest) ([]*domain.Bar, error) {
	const query = `
	SELECT symbol, exchange, interval, open_time, open, high, low, close, volume
	FROM bars
	WHERE symbol = ? AND interval = ? AND open_time >= ? AND open_time <= ?
	ORDER BY open_time ASC`

	rows, err := s.db.QueryContext(ctx, query,
		req.Symbol, req.Interval, req.Start.UnixMilli(), req.End.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s/%s: %w: %v",
			req.Symbol, req.Interval, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	bars := make([]*domain.Bar, 0)
	for rows.Next() {
		bar := &domain.Bar{}
		var openTime int64
		err := rows.Scan(&bar.Symbol, &bar.Exchange, &bar.Interval, &openTime,
			&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bar row: %w", err)
		}
		bar.OpenTime = time.UnixMilli(openTime)
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bar rows: %w", err)
	}
	return bars, nil
}

// Close closes the database connection.
func (s *BarStore) Close() error {
	if s.db != nil {
		s.logger.Info(context.Background(), "Closing SQLite bar store")
		return s.db.Close()
	}
	return nil
}
