// Package gateway exposes the externally visible operations of the
// connectivity adapter and coordinates the session supervisor, market data
// multiplexer, repositories, translator and ingestion pipeline behind them.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradegateway/internal/domain"
	"tradegateway/internal/marketdata"
	"tradegateway/internal/pipeline"
	"tradegateway/internal/ports"
	"tradegateway/internal/repository"
	"tradegateway/internal/session"
	"tradegateway/internal/translator"
)

// Config wires a gateway together.
type Config struct {
	Venue  ports.VenueClient
	Sink   ports.EventSink
	Logger ports.Logger
	Bars   ports.BarStore // optional history cache

	QueueCapacity     int           // Ingestion pipeline depth (default 3000)
	ReconnectLimit    int           // Session reconnect attempts (default 3)
	ReconnectDelay    time.Duration // Session reconnect delay (default 5s)
	SubscribeRetries  int           // Per-batch subscribe attempts (default 3)
	SubscribeDelay    time.Duration // Subscribe retry delay (default 5s)
	HeartbeatInterval time.Duration // Data channel ping interval (default 30s)
	DataReconnectMax  int           // Data channel reconnect budget (default 3)
}

// Gateway is the host application's entry point. All operations are
// synchronous; operations issued while the session is not ready fail fast
// with a precondition result instead of blocking or queuing.
type Gateway struct {
	venue      ports.VenueClient
	sink       ports.EventSink
	logger     ports.Logger
	bars       ports.BarStore
	repos      *repository.Repositories
	supervisor *session.Supervisor
	mux        *marketdata.Multiplexer
	pipe       *pipeline.Pipeline

	mu      sync.Mutex // guards started/closed lifecycle flags
	started bool
	closed  bool
}

// New assembles the gateway's components and installs the venue callback
// routing. The pipeline consumer and heartbeat loop start on Connect.
func New(cfg Config) (*Gateway, error) {
	if cfg.Venue == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for gateway")
	}
	sink := cfg.Sink
	if sink == nil {
		sink = ports.NopSink{}
	}

	repos := repository.NewRepositories()
	pipe := pipeline.New(cfg.QueueCapacity, sink, cfg.Logger)

	supervisor, err := session.New(session.Config{
		Venue:          cfg.Venue,
		Repos:          repos,
		Logger:         cfg.Logger,
		ReconnectLimit: cfg.ReconnectLimit,
		ReconnectDelay: cfg.ReconnectDelay,
	})
	if err != nil {
		return nil, err
	}

	mux, err := marketdata.New(marketdata.Config{
		Venue:             cfg.Venue,
		Repos:             repos,
		Logger:            cfg.Logger,
		Health:            supervisor,
		SubscribeRetries:  cfg.SubscribeRetries,
		RetryDelay:        cfg.SubscribeDelay,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectLimit:    cfg.DataReconnectMax,
	})
	if err != nil {
		return nil, err
	}

	trans, err := translator.New(repos, sink, pipe, mux, cfg.Logger)
	if err != nil {
		return nil, err
	}

	supervisor.SetCallbacks(ports.VenueCallbacks{
		OnOrderAck:     trans.OnOrderAck,
		OnOrderChanged: trans.OnOrderChanged,
		OnFill:         trans.OnFill,
		OnSessionEvent: func(e ports.SessionEvent) {
			trans.OnSessionEvent(e)
			if e.Kind == ports.SessionEventDisconnected {
				supervisor.OnDisconnect()
			}
		},
		OnTickTrade: trans.OnTickTrade,
		OnTickBook:  trans.OnTickBook,
	})

	return &Gateway{
		venue:      cfg.Venue,
		sink:       sink,
		logger:     cfg.Logger,
		bars:       cfg.Bars,
		repos:      repos,
		supervisor: supervisor,
		mux:        mux,
		pipe:       pipe,
	}, nil
}

// Connect starts the session without blocking. Calling it while a connect
// attempt is in flight or the session is already up is a no-op. A closed
// gateway rejects Connect; build a fresh gateway for a new session.
func (g *Gateway) Connect(creds ports.Credentials) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.logger.Warn(context.Background(), "Connect rejected: gateway closed")
		return
	}
	if !g.started {
		g.started = true
		g.pipe.Start()
		g.mux.Start()
	}
	g.mu.Unlock()
	g.supervisor.Connect(creds)
}

// Close tears the session down: releases all repositories, clears
// subscriptions and the tick cache, and stops the pipeline consumer and
// heartbeat loop. Terminal and idempotent.
func (g *Gateway) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.mu.Unlock()
	g.supervisor.Close()
	g.mux.Stop()
	g.mux.ClearCache()
	g.pipe.Stop()
}

// State returns the current session state for host polling.
func (g *Gateway) State() domain.SessionState {
	return g.supervisor.State()
}

// Subscribe starts market data delivery for a symbol.
func (g *Gateway) Subscribe(symbol string) error {
	ctx := context.Background()
	if !g.supervisor.IsReady() {
		g.logger.Warn(ctx, "Subscribe rejected: session not ready", map[string]interface{}{"symbol": symbol})
		return ports.ErrNotReady
	}
	return g.mux.Subscribe(ctx, symbol)
}

// Unsubscribe stops market data delivery for a symbol. Unsubscribing a
// symbol that is not subscribed is a no-op.
func (g *Gateway) Unsubscribe(symbol string) error {
	ctx := context.Background()
	if !g.supervisor.IsReady() {
		g.logger.Warn(ctx, "Unsubscribe rejected: session not ready", map[string]interface{}{"symbol": symbol})
		return ports.ErrNotReady
	}
	return g.mux.Unsubscribe(ctx, symbol)
}

// SendOrder places a new order and returns the venue sequence number, or
// an empty string on any precondition or venue failure.
func (g *Gateway) SendOrder(req domain.OrderRequest) string {
	ctx := context.Background()
	op := "SendOrder"

	if !g.supervisor.IsReady() {
		g.logger.Warn(ctx, op+" rejected: session not ready", map[string]interface{}{"symbol": req.Symbol})
		return ""
	}
	contract, ok := g.repos.Contracts.Get(req.Symbol)
	if !ok {
		g.logger.Warn(ctx, op+" rejected: unknown symbol", map[string]interface{}{"symbol": req.Symbol})
		return ""
	}
	account, ok := g.supervisor.AccountFor(contract.AssetClass)
	if !ok {
		g.logger.Warn(ctx, op+" rejected: no account for asset class",
			map[string]interface{}{"symbol": req.Symbol, "assetClass": string(contract.AssetClass)})
		return ""
	}

	seqNo, err := g.venue.PlaceOrder(ctx, account.ID, req, contract.Exchange)
	if err != nil {
		// No automatic retry for order operations; that is a host decision.
		g.logger.Error(ctx, err, op+" failed at venue", map[string]interface{}{"symbol": req.Symbol})
		return ""
	}

	order := &domain.Order{
		SeqNo:     seqNo,
		Symbol:    req.Symbol,
		Exchange:  contract.Exchange,
		Direction: req.Direction,
		Price:     req.Price,
		Volume:    req.Volume,
		Status:    domain.StatusSubmitted,
		Timestamp: time.Now().UTC(),
	}
	g.repos.Orders.Put(seqNo, order)
	snapshot := *order
	g.sink.OnOrder(&snapshot)

	g.logger.Info(ctx, op+" accepted", map[string]interface{}{"symbol": req.Symbol, "seqNo": seqNo})
	return seqNo
}

// CancelOrder cancels an open order. Returns false on any precondition or
// venue failure.
func (g *Gateway) CancelOrder(req domain.CancelRequest) bool {
	ctx := context.Background()
	op := "CancelOrder"

	account, _, ok := g.resolveOrder(ctx, op, req.Symbol, req.SeqNo)
	if !ok {
		return false
	}
	if err := g.venue.CancelOrder(ctx, account.ID, req.Symbol, req.SeqNo); err != nil {
		g.logger.Error(ctx, err, op+" failed at venue", map[string]interface{}{"symbol": req.Symbol, "seqNo": req.SeqNo})
		return false
	}
	g.logger.Info(ctx, op+" accepted", map[string]interface{}{"symbol": req.Symbol, "seqNo": req.SeqNo})
	return true
}

// ModifyPrice amends an open order's price.
func (g *Gateway) ModifyPrice(symbol, seqNo string, price float64) bool {
	return g.modify(symbol, seqNo, &price, nil)
}

// ModifyQuantity amends an open order's volume.
func (g *Gateway) ModifyQuantity(symbol, seqNo string, volume float64) bool {
	return g.modify(symbol, seqNo, nil, &volume)
}

func (g *Gateway) modify(symbol, seqNo string, price, volume *float64) bool {
	ctx := context.Background()
	op := "ModifyOrder"

	account, _, ok := g.resolveOrder(ctx, op, symbol, seqNo)
	if !ok {
		return false
	}
	if err := g.venue.ModifyOrder(ctx, account.ID, symbol, seqNo, price, volume); err != nil {
		g.logger.Error(ctx, err, op+" failed at venue", map[string]interface{}{"symbol": symbol, "seqNo": seqNo})
		return false
	}
	g.logger.Info(ctx, op+" accepted", map[string]interface{}{"symbol": symbol, "seqNo": seqNo})
	return true
}

// resolveOrder performs the shared precondition checks for cancel/modify:
// session ready, order known, contract known, account available.
func (g *Gateway) resolveOrder(ctx context.Context, op, symbol, seqNo string) (*domain.Account, *domain.Order, bool) {
	if !g.supervisor.IsReady() {
		g.logger.Warn(ctx, op+" rejected: session not ready", map[string]interface{}{"symbol": symbol, "seqNo": seqNo})
		return nil, nil, false
	}
	order, ok := g.repos.Orders.Get(seqNo)
	if !ok {
		g.logger.Warn(ctx, op+" rejected: unknown order", map[string]interface{}{"symbol": symbol, "seqNo": seqNo})
		return nil, nil, false
	}
	contract, ok := g.repos.Contracts.Get(symbol)
	if !ok {
		g.logger.Warn(ctx, op+" rejected: unknown symbol", map[string]interface{}{"symbol": symbol})
		return nil, nil, false
	}
	account, ok := g.supervisor.AccountFor(contract.AssetClass)
	if !ok {
		g.logger.Warn(ctx, op+" rejected: no account for asset class",
			map[string]interface{}{"symbol": symbol, "assetClass": string(contract.AssetClass)})
		return nil, nil, false
	}
	return account, order, true
}

// QueryAccount refreshes account state from the venue and returns it.
// Returns an empty slice on precondition or venue failure.
func (g *Gateway) QueryAccount() []*domain.Account {
	ctx := context.Background()
	op := "QueryAccount"

	if !g.supervisor.IsReady() {
		g.logger.Warn(ctx, op+" rejected: session not ready")
		return nil
	}
	accounts, err := g.venue.QueryAccounts(ctx)
	if err != nil {
		g.logger.Error(ctx, err, op+" failed at venue")
		return nil
	}
	fresh := make(map[string]*domain.Account, len(accounts))
	for _, acc := range accounts {
		fresh[acc.ID] = acc
	}
	g.repos.Accounts.Replace(fresh)
	return accounts
}

// QueryPosition refreshes positions from the venue, replacing the position
// repository wholesale, and returns the result. Returns an empty slice on
// precondition or venue failure.
func (g *Gateway) QueryPosition() []*domain.Position {
	ctx := context.Background()
	op := "QueryPosition"

	if !g.supervisor.IsReady() {
		g.logger.Warn(ctx, op+" rejected: session not ready")
		return nil
	}
	positions, err := g.venue.QueryPositions(ctx)
	if err != nil {
		g.logger.Error(ctx, err, op+" failed at venue")
		return nil
	}
	fresh := make(map[domain.PositionKey]*domain.Position, len(positions))
	for _, pos := range positions {
		fresh[pos.Key()] = pos
	}
	g.repos.Positions.Replace(fresh)
	return positions
}

// QueryContracts returns the contract table bulk-loaded during connect.
func (g *Gateway) QueryContracts() []*domain.Contract {
	if !g.supervisor.IsReady() {
		g.logger.Warn(context.Background(), "QueryContracts rejected: session not ready")
		return nil
	}
	return g.repos.Contracts.Snapshot()
}

// LastTick returns the cached last-value snapshot for a symbol, if any.
func (g *Gateway) LastTick(symbol string) (*domain.Tick, bool) {
	return g.mux.LastTick(symbol)
}

// QueryHistory fetches historical bars, serving from the local bar cache
// when possible. Unlike the live operations it does not require a ready
// session: history goes over the venue's request path.
func (g *Gateway) QueryHistory(req domain.HistoryRequest) []*domain.Bar {
	ctx := context.Background()
	op := "QueryHistory"

	if g.bars != nil {
		cached, err := g.bars.FindBars(ctx, req)
		if err != nil {
			g.logger.Warn(ctx, op+": bar cache lookup failed", map[string]interface{}{"error": err.Error()})
		} else if len(cached) > 0 {
			g.logger.Debug(ctx, op+": served from bar cache", map[string]interface{}{"symbol": req.Symbol, "bars": len(cached)})
			return cached
		}
	}

	bars, err := g.venue.GetBars(ctx, req)
	if err != nil {
		g.logger.Error(ctx, err, op+" failed at venue", map[string]interface{}{"symbol": req.Symbol})
		return nil
	}
	if g.bars != nil && len(bars) > 0 {
		if err := g.bars.SaveBars(ctx, bars); err != nil {
			g.logger.Warn(ctx, op+": bar cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return bars
}
