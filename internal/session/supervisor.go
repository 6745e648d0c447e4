// Package session owns the connect/login/reconnect lifecycle of the venue
// session: the Disconnected -> Connecting -> Ready state machine, the
// bounded-retry reconnect policy, and callback registration with the venue
// client.
package session

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
	defaultReconnectLimit = 3
	defaultReconnectDelay = 5 * time.Second
)

// Config holds supervisor tuning knobs.
type Config struct {
	Venue  ports.VenueClient
	Repos  *repository.Repositories
	Logger ports.Logger

	ReconnectLimit int           // Max consecutive failed attempts (default 3)
	ReconnectDelay time.Duration // Fixed delay between attempts (default 5s)
}

// Supervisor serializes all session state transitions. Only one connect
// attempt may be in flight at any time; the attempt counter resets to zero
// only after a successful Ready transition.
type Supervisor struct {
	venue          ports.VenueClient
	repos          *repository.Repositories
	logger         ports.Logger
	reconnectLimit int
	reconnectDelay time.Duration

	// Asset-class buckets built from the accounts returned by login.
	buckets *repository.Store[domain.AssetClass, []*domain.Account]

	stateMu sync.Mutex
	state   domain.SessionState
	creds   ports.Credentials
	gen     int // bumped by Close and manual Connect; stale scheduled reconnects abort

	retryMu sync.Mutex
	retries int

	cbMu      sync.Mutex
	callbacks ports.VenueCallbacks
}

// New creates a supervisor in the Disconnected state.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Venue == nil || cfg.Repos == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for session supervisor")
	}
	limit := cfg.ReconnectLimit
	if limit <= 0 {
		limit = defaultReconnectLimit
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	return &Supervisor{
		venue:          cfg.Venue,
		repos:          cfg.Repos,
		logger:         cfg.Logger,
		reconnectLimit: limit,
		reconnectDelay: delay,
		buckets:        repository.NewStore[domain.AssetClass, []*domain.Account](),
		state:          domain.StateDisconnected,
	}, nil
}

// SetCallbacks installs the venue notification handlers registered during
// the connect sequence. Must be called before Connect.
func (s *Supervisor) SetCallbacks(cb ports.VenueCallbacks) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.callbacks = cb
}

// State returns the current session state.
func (s *Supervisor) State() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// IsReady reports whether synchronous gateway operations may proceed.
// Degraded counts as ready for trading: only the data channel is down.
func (s *Supervisor) IsReady() bool {
	switch s.State() {
	case domain.StateReady, domain.StateDegraded:
		return true
	default:
		return false
	}
}

// Connect starts the connect sequence without blocking. It spawns exactly
// one worker; calling it while a connect is in flight or the session is
// already up is a no-op.
func (s *Supervisor) Connect(creds ports.Credentials) {
	gen, ok := s.beginConnect(creds)
	if !ok {
		s.logger.Debug(context.Background(), "Connect ignored: already connecting or connected",
			map[string]interface{}{"state": string(s.State())})
		return
	}
	go s.connectWorker(creds, gen)
}

// beginConnect transitions Disconnected -> Connecting under the state lock,
// recording the credentials for later automatic reconnects. A manual connect
// opens a new generation, invalidating any reconnect still sleeping from a
// previous one.
func (s *Supervisor) beginConnect(creds ports.Credentials) (int, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	switch s.state {
	case domain.StateConnecting, domain.StateReady, domain.StateDegraded:
		return 0, false
	}
	s.gen++
	s.state = domain.StateConnecting
	s.creds = creds
	return s.gen, true
}

// resumeConnect is beginConnect for a scheduled reconnect: it additionally
// aborts when the generation moved, meaning Close or a manual Connect got
// there while the reconnect was sleeping.
func (s *Supervisor) resumeConnect(creds ports.Credentials, gen int) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.gen != gen {
		return false
	}
	switch s.state {
	case domain.StateConnecting, domain.StateReady, domain.StateDegraded:
		return false
	}
	s.state = domain.StateConnecting
	s.creds = creds
	return true
}

// connectWorker runs the full connect sequence once and applies the
// reconnect policy on failure. The worker self-terminates.
func (s *Supervisor) connectWorker(creds ports.Credentials, gen int) {
	ctx := context.Background()
	op := "connectWorker"

	if err := s.establish(ctx, creds); err != nil {
		s.logger.Error(ctx, err, op+": connect attempt failed")
		s.setState(domain.StateDisconnected)
		s.scheduleReconnect(creds, gen)
		return
	}

	s.setState(domain.StateReady)
	s.resetRetries()
	s.logger.Info(ctx, op+": session ready", map[string]interface{}{
		"accounts":  s.repos.Accounts.Len(),
		"contracts": s.repos.Contracts.Len(),
	})
}

// establish performs validate -> login -> partition accounts -> register
// callbacks -> bulk-load contracts. Any failing step aborts the attempt.
func (s *Supervisor) establish(ctx context.Context, creds ports.Credentials) error {
	if creds.APIKey == "" || creds.SecretKey == "" {
		return fmt.Errorf("credential validation: %w", ports.ErrAuthenticationFailed)
	}

	accounts, err := s.venue.Login(ctx, creds)
	if err != nil {
		return fmt.Errorf("venue login: %w", err)
	}

	buckets := make(map[domain.AssetClass][]*domain.Account)
	for _, acc := range accounts {
		s.repos.Accounts.Put(acc.ID, acc)
		buckets[acc.AssetClass] = append(buckets[acc.AssetClass], acc)
	}
	s.buckets.Replace(buckets)

	s.cbMu.Lock()
	cb := s.callbacks
	s.cbMu.Unlock()
	if err := s.venue.RegisterCallbacks(cb); err != nil {
		return fmt.Errorf("callback registration: %w", err)
	}

	contracts, err := s.venue.LoadContracts(ctx)
	if err != nil {
		return fmt.Errorf("contract load: %w", err)
	}
	for _, c := range contracts {
		s.repos.Contracts.Put(c.Symbol, c)
	}

	return nil
}

// scheduleReconnect applies the bounded fixed-delay retry policy. Reaching
// the limit leaves the session terminally Disconnected until a manual
// Connect.
func (s *Supervisor) scheduleReconnect(creds ports.Credentials, gen int) {
	ctx := context.Background()
	s.retryMu.Lock()
	s.retries++
	attempt := s.retries
	s.retryMu.Unlock()

	if attempt >= s.reconnectLimit {
		s.logger.Error(ctx, ports.ErrConnectionFailed, "Reconnect limit reached, staying disconnected",
			map[string]interface{}{"attempts": attempt, "limit": s.reconnectLimit})
		return
	}

	s.logger.Warn(ctx, "Scheduling reconnect attempt", map[string]interface{}{
		"attempt": attempt + 1,
		"limit":   s.reconnectLimit,
		"delay":   s.reconnectDelay.String(),
	})

	go func() {
		time.Sleep(s.reconnectDelay)
		if !s.resumeConnect(creds, gen) {
			// A manual connect or close got there first.
			return
		}
		s.connectWorker(creds, gen)
	}()
}

// OnDisconnect handles a mid-session disconnect notification from the
// venue: Ready -> Disconnected, then the reconnect policy takes over.
func (s *Supervisor) OnDisconnect() {
	s.stateMu.Lock()
	if s.state != domain.StateReady && s.state != domain.StateDegraded {
		s.stateMu.Unlock()
		return
	}
	s.state = domain.StateDisconnected
	creds := s.creds
	gen := s.gen
	s.stateMu.Unlock()

	s.logger.Warn(context.Background(), "Venue reported session disconnect")
	s.scheduleReconnect(creds, gen)
}

// MarkDegraded flags the session Degraded while the market data channel is
// reconnecting. No-op unless the session is Ready.
func (s *Supervisor) MarkDegraded() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == domain.StateReady {
		s.state = domain.StateDegraded
	}
}

// MarkRecovered restores Ready after the data channel came back. No-op
// unless the session is Degraded.
func (s *Supervisor) MarkRecovered() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == domain.StateDegraded {
		s.state = domain.StateReady
	}
}

// AccountFor returns a trading account for the given asset class.
func (s *Supervisor) AccountFor(class domain.AssetClass) (*domain.Account, bool) {
	accs, ok := s.buckets.Get(class)
	if !ok || len(accs) == 0 {
		return nil, false
	}
	return accs[0], true
}

// Close tears the session down, releasing all repositories and clearing
// subscriptions. Idempotent: safe to call when already disconnected.
func (s *Supervisor) Close() {
	ctx := context.Background()
	s.stateMu.Lock()
	already := s.state == domain.StateDisconnected
	s.state = domain.StateDisconnected
	s.gen++ // invalidate any reconnect still sleeping
	s.stateMu.Unlock()

	if err := s.venue.Close(); err != nil {
		s.logger.Warn(ctx, "Venue close reported an error", map[string]interface{}{"error": err.Error()})
	}
	s.repos.ClearAll()
	s.buckets.Clear()

	if !already {
		s.logger.Info(ctx, "Session closed")
	}
}

func (s *Supervisor) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *Supervisor) resetRetries() {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	s.retries = 0
}
