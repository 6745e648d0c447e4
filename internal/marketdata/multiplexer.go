// Package marketdata owns the subscribed-symbol set and the market data
// channel: asset-class batched subscribe/unsubscribe with per-batch retry,
// a last-value tick cache, and a heartbeat loop with its own bounded
// reconnect, independent of the session supervisor's policy.
package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradegateway/internal/domain"
	"tradegateway/internal/ports"
	"tradegateway/internal/repository"
)

const (
	defaultSubscribeRetries = 3
	defaultRetryDelay       = 5 * time.Second
	defaultHeartbeat        = 30 * time.Second
	defaultReconnectLimit   = 3
)

// SessionHealth lets the multiplexer flag the session Degraded while its
// data channel is down. Implemented by the session supervisor.
type SessionHealth interface {
	MarkDegraded()
	MarkRecovered()
}

// Config holds multiplexer dependencies and tuning knobs.
type Config struct {
	Venue  ports.VenueClient
	Repos  *repository.Repositories
	Logger ports.Logger
	Health SessionHealth // optional

	SubscribeRetries  int           // Per-batch subscribe attempts (default 3)
	RetryDelay        time.Duration // Fixed delay between attempts (default 5s)
	HeartbeatInterval time.Duration // Data channel ping interval (default 30s)
	ReconnectLimit    int           // Data channel reconnect budget (default 3)
}

// Multiplexer partitions symbols into asset-class batches and keeps the
// per-symbol last-value tick cache. Batches fail or succeed independently.
type Multiplexer struct {
	venue  ports.VenueClient
	repos  *repository.Repositories
	logger ports.Logger
	health SessionHealth

	subscribeRetries  int
	retryDelay        time.Duration
	heartbeatInterval time.Duration
	reconnectLimit    int

	cacheMu sync.Mutex
	cache   map[string]*domain.Tick

	reconMu     sync.Mutex
	reconFailed int

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a multiplexer. The heartbeat loop starts with Start.
func New(cfg Config) (*Multiplexer, error) {
	if cfg.Venue == nil || cfg.Repos == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for market data multiplexer")
	}
	m := &Multiplexer{
		venue:             cfg.Venue,
		repos:             cfg.Repos,
		logger:            cfg.Logger,
		health:            cfg.Health,
		subscribeRetries:  cfg.SubscribeRetries,
		retryDelay:        cfg.RetryDelay,
		heartbeatInterval: cfg.HeartbeatInterval,
		reconnectLimit:    cfg.ReconnectLimit,
		cache:             make(map[string]*domain.Tick),
		stop:              make(chan struct{}),
	}
	if m.subscribeRetries <= 0 {
		m.subscribeRetries = defaultSubscribeRetries
	}
	if m.retryDelay <= 0 {
		m.retryDelay = defaultRetryDelay
	}
	if m.heartbeatInterval <= 0 {
		m.heartbeatInterval = defaultHeartbeat
	}
	if m.reconnectLimit <= 0 {
		m.reconnectLimit = defaultReconnectLimit
	}
	return m, nil
}

// Subscribe adds symbols to the membership set and issues batched venue
// subscriptions. Symbols already subscribed are skipped without contacting
// the venue; a batch whose retries are exhausted is rolled back out of the
// membership. Returns nil if at least one symbol subscribed (or nothing new
// was requested).
func (m *Multiplexer) Subscribe(ctx context.Context, symbols ...string) error {
	op := "Subscribe"

	var fresh []string
	for _, sym := range symbols {
		if m.repos.Subscriptions.Add(sym) {
			fresh = append(fresh, sym)
		}
	}
	if len(fresh) == 0 {
		m.logger.Debug(ctx, op+": nothing new to subscribe")
		return nil
	}

	batches := m.partition(ctx, fresh)
	subscribed := 0
	for class, batch := range batches {
		if err := m.subscribeBatch(ctx, class, batch); err != nil {
			m.logger.Error(ctx, err, op+": batch failed, rolling back membership",
				map[string]interface{}{"assetClass": string(class), "symbols": batch})
			for _, sym := range batch {
				m.repos.Subscriptions.Remove(sym)
			}
			continue
		}
		subscribed += len(batch)
	}

	if subscribed == 0 {
		return fmt.Errorf("%s: no batch succeeded: %w", op, ports.ErrSubscribeFailed)
	}

	// A successful venue subscribe proves the data channel is alive again,
	// so reopen the heartbeat's exhausted reconnect budget.
	m.reconMu.Lock()
	wasDown := m.reconFailed > 0
	m.reconFailed = 0
	m.reconMu.Unlock()
	if wasDown && m.health != nil {
		m.health.MarkRecovered()
	}

	m.logger.Info(ctx, op+" completed", map[string]interface{}{"requested": len(fresh), "subscribed": subscribed})
	return nil
}

// Unsubscribe removes symbols from the membership set via batched venue
// calls. Symbols not currently subscribed are ignored without contacting
// the venue. On venue failure the symbols stay in the membership set:
// remaining subscribed is harmless, so nothing is rolled back.
func (m *Multiplexer) Unsubscribe(ctx context.Context, symbols ...string) error {
	op := "Unsubscribe"

	var active []string
	for _, sym := range symbols {
		if m.repos.Subscriptions.Contains(sym) {
			active = append(active, sym)
		}
	}
	if len(active) == 0 {
		m.logger.Debug(ctx, op+": nothing subscribed to remove")
		return nil
	}

	batches := m.partition(ctx, active)
	failed := 0
	for class, batch := range batches {
		if err := m.unsubscribeBatch(ctx, class, batch); err != nil {
			m.logger.Error(ctx, err, op+": batch failed, membership unchanged",
				map[string]interface{}{"assetClass": string(class), "symbols": batch})
			failed += len(batch)
			continue
		}
		for _, sym := range batch {
			m.repos.Subscriptions.Remove(sym)
		}
	}

	if failed == len(active) {
		return fmt.Errorf("%s: no batch succeeded: %w", op, ports.ErrUnsubscribeFailed)
	}
	return nil
}

// partition groups symbols into asset-class batches using the contract
// table. Symbols without a contract get the futures channel by default so
// an incomplete contract load degrades to a venue error, not a silent drop.
func (m *Multiplexer) partition(ctx context.Context, symbols []string) map[domain.AssetClass][]string {
	batches := make(map[domain.AssetClass][]string)
	for _, sym := range symbols {
		class := domain.AssetFutures
		if contract, ok := m.repos.Contracts.Get(sym); ok {
			class = contract.AssetClass
		} else {
			m.logger.Warn(ctx, "No contract for symbol, defaulting channel",
				map[string]interface{}{"symbol": sym, "assetClass": string(class)})
		}
		batches[class] = append(batches[class], sym)
	}
	return batches
}

// subscribeBatch issues one venue subscribe with up to subscribeRetries
// attempts separated by the fixed retry delay.
func (m *Multiplexer) subscribeBatch(ctx context.Context, class domain.AssetClass, batch []string) error {
	var lastErr error
	for attempt := 1; attempt <= m.subscribeRetries; attempt++ {
		lastErr = m.venue.Subscribe(ctx, class, batch)
		if lastErr == nil {
			return nil
		}
		m.logger.Warn(ctx, "Subscribe attempt failed", map[string]interface{}{
			"assetClass": string(class), "attempt": attempt, "limit": m.subscribeRetries, "error": lastErr.Error(),
		})
		if attempt < m.subscribeRetries {
			time.Sleep(m.retryDelay)
		}
	}
	return lastErr
}

func (m *Multiplexer) unsubscribeBatch(ctx context.Context, class domain.AssetClass, batch []string) error {
	var lastErr error
	for attempt := 1; attempt <= m.subscribeRetries; attempt++ {
		lastErr = m.venue.Unsubscribe(ctx, class, batch)
		if lastErr == nil {
			return nil
		}
		if attempt < m.subscribeRetries {
			time.Sleep(m.retryDelay)
		}
	}
	return lastErr
}

// Start launches the heartbeat loop for the data channel.
func (m *Multiplexer) Start() {
	m.wg.Add(1)
	go m.heartbeatLoop()
}

// Stop terminates the heartbeat loop. Idempotent.
func (m *Multiplexer) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

// heartbeatLoop pings the venue's data channel on a fixed interval and
// hands failures to the multiplexer's own reconnect policy.
func (m *Multiplexer) heartbeatLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if err := m.venue.Ping(ctx); err != nil {
				m.logger.Warn(ctx, "Data channel heartbeat failed", map[string]interface{}{"error": err.Error()})
				m.reconnectData(ctx)
			}
		}
	}
}

// reconnectData runs the data channel's bounded reconnect: re-ping with
// fixed delays and, on success, resubscribe the full pre-failure membership
// before resetting the counter. Exhausting the budget leaves the channel
// down until a manual Subscribe succeeds.
func (m *Multiplexer) reconnectData(ctx context.Context) {
	m.reconMu.Lock()
	if m.reconFailed >= m.reconnectLimit {
		m.reconMu.Unlock()
		return
	}
	m.reconMu.Unlock()

	if m.health != nil {
		m.health.MarkDegraded()
	}

	for {
		m.reconMu.Lock()
		m.reconFailed++
		attempt := m.reconFailed
		m.reconMu.Unlock()
		if attempt > m.reconnectLimit {
			m.logger.Error(ctx, ports.ErrConnectionFailed, "Data channel reconnect limit reached",
				map[string]interface{}{"limit": m.reconnectLimit})
			return
		}

		select {
		case <-m.stop:
			return
		case <-time.After(m.retryDelay):
		}

		if err := m.venue.Ping(ctx); err != nil {
			m.logger.Warn(ctx, "Data channel reconnect attempt failed",
				map[string]interface{}{"attempt": attempt, "limit": m.reconnectLimit, "error": err.Error()})
			continue
		}

		m.resubscribeAll(ctx)
		m.reconMu.Lock()
		m.reconFailed = 0
		m.reconMu.Unlock()
		if m.health != nil {
			m.health.MarkRecovered()
		}
		m.logger.Info(ctx, "Data channel recovered", map[string]interface{}{"attempt": attempt})
		return
	}
}

// resubscribeAll re-issues venue subscriptions for the current membership
// without touching the membership set itself.
func (m *Multiplexer) resubscribeAll(ctx context.Context) {
	members := m.repos.Subscriptions.Members()
	if len(members) == 0 {
		return
	}
	for class, batch := range m.partition(ctx, members) {
		if err := m.subscribeBatch(ctx, class, batch); err != nil {
			m.logger.Error(ctx, err, "Resubscribe batch failed after reconnect",
				map[string]interface{}{"assetClass": string(class), "symbols": batch})
		}
	}
}

// ApplyTrade updates (or seeds) the cached tick for a trade-kind message,
// replacing the trade fields, and returns a snapshot for delivery.
func (m *Multiplexer) ApplyTrade(msg ports.TickTrade) *domain.Tick {
	exchange := ""
	if contract, ok := m.repos.Contracts.Get(msg.Symbol); ok {
		exchange = contract.Exchange
	}

	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	tick, ok := m.cache[msg.Symbol]
	if !ok {
		tick = &domain.Tick{Symbol: msg.Symbol, Exchange: exchange}
		m.cache[msg.Symbol] = tick
	}
	tick.LastPrice = msg.Price
	tick.LastVolume = msg.Volume
	tick.Volume += msg.Volume
	tick.Time = msg.Time
	return tick.Clone()
}

// ApplyBook updates up to domain.BookLevels depth slots on an existing
// cache entry. A book message for a symbol with no prior trade-seeded entry
// is dropped (returns nil): there is no last price to anchor a snapshot.
func (m *Multiplexer) ApplyBook(msg ports.TickBook) *domain.Tick {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	tick, ok := m.cache[msg.Symbol]
	if !ok {
		return nil
	}
	for i := 0; i < domain.BookLevels; i++ {
		if i < len(msg.BidPrice) {
			tick.BidPrice[i] = msg.BidPrice[i]
		}
		if i < len(msg.BidVolume) {
			tick.BidVolume[i] = msg.BidVolume[i]
		}
		if i < len(msg.AskPrice) {
			tick.AskPrice[i] = msg.AskPrice[i]
		}
		if i < len(msg.AskVolume) {
			tick.AskVolume[i] = msg.AskVolume[i]
		}
	}
	return tick.Clone()
}

// LastTick returns the cached last-value snapshot for a symbol, if any.
func (m *Multiplexer) LastTick(symbol string) (*domain.Tick, bool) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	tick, ok := m.cache[symbol]
	if !ok {
		return nil, false
	}
	return tick.Clone(), true
}

// ClearCache drops all cached ticks. Called on session close.
func (m *Multiplexer) ClearCache() {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cache = make(map[string]*domain.Tick)
}
