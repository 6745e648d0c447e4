package main

import (
	"context"
	"log" // Standard log only for fatal errors before the logger is set up
	"os"
	"os/signal"
	"syscall"

	"tradegateway/config"
	"tradegateway/internal/adapters/binancevenue"
	"tradegateway/internal/adapters/logger"
	"tradegateway/internal/adapters/sqlite"
	"tradegateway/internal/gateway"
	"tradegateway/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	var appLogger ports.Logger
	if cfg.UseZapLog {
		zl, err := logger.NewZapLogger(cfg.LogLevel)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize zap logger: %v", err)
		}
		defer zl.Sync()
		appLogger = zl
	} else {
		appLogger = logger.NewStdLogger(cfg.LogLevel)
	}
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Bar Store (history cache)
	barStore, err := sqlite.NewBarStore(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize bar store")
		log.Fatalf("FATAL: Failed to initialize bar store: %v", err)
	}
	defer func() {
		if err := barStore.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing bar store")
		}
	}()
	appLogger.Info(context.Background(), "Bar store initialized")

	// 4. Initialize Venue Client (Binance Adapter)
	venue, err := binancevenue.New(binancevenue.Config{
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance venue client")
		log.Fatalf("FATAL: Failed to initialize Binance venue client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance venue client initialized")

	// 5. Assemble the Gateway
	gw, err := gateway.New(gateway.Config{
		Venue:             venue,
		Sink:              logSink{logger: appLogger},
		Logger:            appLogger,
		Bars:              barStore,
		QueueCapacity:     cfg.QueueCapacity,
		ReconnectLimit:    cfg.ReconnectLimit,
		ReconnectDelay:    cfg.ReconnectDelay,
		SubscribeRetries:  cfg.SubscribeRetries,
		SubscribeDelay:    cfg.SubscribeDelay,
		HeartbeatInterval: cfg.HeartbeatInterval,
		DataReconnectMax:  cfg.DataReconnectMax,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to assemble gateway")
		log.Fatalf("FATAL: Failed to assemble gateway: %v", err)
	}
	appLogger.Info(context.Background(), "Gateway assembled")

	// 6. Connect and wait for shutdown
	gw.Connect(ports.Credentials{APIKey: cfg.APIKey, SecretKey: cfg.SecretKey})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	appLogger.Info(context.Background(), "Shutdown signal received", map[string]interface{}{"signal": sig.String()})

	gw.Close()
	appLogger.Info(context.Background(), "Application finished gracefully.")
}
