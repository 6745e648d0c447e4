// Command fetch_history pre-warms the local bar cache: it pulls historical
// bars for one symbol over the venue's request path and upserts them into
// the SQLite store that backs the gateway's history queries.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"tradegateway/config"
	"tradegateway/internal/adapters/binancevenue"
	"tradegateway/internal/adapters/logger"
	"tradegateway/internal/adapters/sqlite"
	"tradegateway/internal/domain"
)

func main() {
	symbol := flag.String("symbol", "ETHUSDT", "instrument symbol to fetch")
	interval := flag.String("interval", "1m", "bar interval (e.g. 1m, 5m, 1h)")
	days := flag.Int("days", 90, "how many days back to fetch")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	venue, err := binancevenue.New(binancevenue.Config{
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance venue client")
		log.Fatalf("FATAL: Failed to initialize Binance venue client: %v", err)
	}

	store, err := sqlite.NewBarStore(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize bar store")
		log.Fatalf("FATAL: Failed to initialize bar store: %v", err)
	}
	defer store.Close()

	end := time.Now()
	start := end.AddDate(0, 0, -*days)
	req := domain.HistoryRequest{
		Symbol:   *symbol,
		Interval: *interval,
		Start:    start,
		End:      end,
	}

	appLogger.Info(ctx, "Fetching bars", map[string]interface{}{
		"symbol":   req.Symbol,
		"interval": req.Interval,
		"start":    start.Format(time.RFC3339),
		"end":      end.Format(time.RFC3339),
	})

	bars, err := venue.GetBars(ctx, req)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching bars")
		log.Fatalf("Error fetching bars: %v", err)
	}
	appLogger.Info(ctx, "Fetched bars", map[string]interface{}{"count": len(bars)})

	if err := store.SaveBars(ctx, bars); err != nil {
		appLogger.Error(ctx, err, "Error saving bars")
		log.Fatalf("Error saving bars: %v", err)
	}
	appLogger.Info(ctx, "Bar cache updated", map[string]interface{}{"path": cfg.DBPath})
}
