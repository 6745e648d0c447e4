package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"tradegateway/internal/domain"
	"tradegateway/internal/ports"
	"tradegateway/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockVenue implements ports.VenueClient with scripted responses.
type mockVenue struct {
	mu            sync.Mutex
	loginCalls    int
	closeCalls    int
	loginErr      error
	loginGate     chan struct{} // when set, Login blocks until the gate closes
	accounts      []*domain.Account
	contracts     []*domain.Contract
	registeredCbs ports.VenueCallbacks
}

func newMockVenue() *mockVenue {
	return &mockVenue{
		accounts: []*domain.Account{
			{ID: "FUTURES", AssetClass: domain.AssetFutures, Balance: 1000},
		},
		contracts: []*domain.Contract{
			{Symbol: "ETHUSDT", Exchange: "BINANCE", AssetClass: domain.AssetFutures},
		},
	}
}

func (v *mockVenue) Login(ctx context.Context, creds ports.Credentials) ([]*domain.Account, error) {
	v.mu.Lock()
	v.loginCalls++
	gate := v.loginGate
	err := v.loginErr
	accounts := v.accounts
	v.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (v *mockVenue) RegisterCallbacks(cb ports.VenueCallbacks) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.registeredCbs = cb
	return nil
}

func (v *mockVenue) LoadContracts(ctx context.Context) ([]*domain.Contract, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.contracts, nil
}

func (v *mockVenue) QueryAccounts(ctx context.Context) ([]*domain.Account, error) {
	return v.accounts, nil
}

func (v *mockVenue) QueryPositions(ctx context.Context) ([]*domain.Position, error) {
	return nil, nil
}

func (v *mockVenue) PlaceOrder(ctx context.Context, accountID string, req domain.OrderRequest, exchange string) (string, error) {
	return "", nil
}

func (v *mockVenue) CancelOrder(ctx context.Context, accountID, symbol, seqNo string) error {
	return nil
}

func (v *mockVenue) ModifyOrder(ctx context.Context, accountID, symbol, seqNo string, newPrice, newVolume *float64) error {
	return nil
}

func (v *mockVenue) Subscribe(ctx context.Context, channel domain.AssetClass, symbols []string) error {
	return nil
}

func (v *mockVenue) Unsubscribe(ctx context.Context, channel domain.AssetClass, symbols []string) error {
	return nil
}

func (v *mockVenue) Ping(ctx context.Context) error { return nil }

func (v *mockVenue) GetBars(ctx context.Context, req domain.HistoryRequest) ([]*domain.Bar, error) {
	return nil, nil
}

func (v *mockVenue) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeCalls++
	return nil
}

func (v *mockVenue) logins() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loginCalls
}

func (v *mockVenue) closes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closeCalls
}

var testCreds = ports.Credentials{APIKey: "key", SecretKey: "secret"}

func newTestSupervisor(t *testing.T, venue *mockVenue) (*Supervisor, *repository.Repositories) {
	t.Helper()
	repos := repository.NewRepositories()
	sup, err := New(Config{
		Venue:          venue,
		Repos:          repos,
		Logger:         &mockLogger{},
		ReconnectLimit: 3,
		ReconnectDelay: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return sup, repos
}

func waitForState(t *testing.T, sup *Supervisor, want domain.SessionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sup.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state never reached %s, stuck at %s", want, sup.State())
}

func TestSupervisor_ConnectReachesReady(t *testing.T) {
	venue := newMockVenue()
	sup, repos := newTestSupervisor(t, venue)

	sup.Connect(testCreds)
	waitForState(t, sup, domain.StateReady)

	assert.True(t, sup.IsReady())
	assert.Equal(t, 1, venue.logins())
	assert.Equal(t, 1, repos.Accounts.Len())
	assert.Equal(t, 1, repos.Contracts.Len())

	account, ok := sup.AccountFor(domain.AssetFutures)
	require.True(t, ok)
	assert.Equal(t, "FUTURES", account.ID)

	_, ok = sup.AccountFor(domain.AssetSpot)
	assert.False(t, ok, "no account was granted for spot")
}

func TestSupervisor_ConnectWhileInFlightIsNoop(t *testing.T) {
	venue := newMockVenue()
	gate := make(chan struct{})
	venue.loginGate = gate
	sup, _ := newTestSupervisor(t, venue)

	sup.Connect(testCreds)
	waitForState(t, sup, domain.StateConnecting)
	sup.Connect(testCreds)
	sup.Connect(testCreds)

	close(gate)
	waitForState(t, sup, domain.StateReady)
	assert.Equal(t, 1, venue.logins(), "only one connect worker may run")

	// Connecting again while Ready is also a no-op.
	sup.Connect(testCreds)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, venue.logins())
}

func TestSupervisor_ReconnectStopsAtLimit(t *testing.T) {
	venue := newMockVenue()
	venue.loginErr = ports.ErrConnectionFailed
	sup, _ := newTestSupervisor(t, venue)

	sup.Connect(testCreds)

	// Initial attempt plus retries until the consecutive-failure count
	// reaches the limit of 3: three logins in total, then terminal.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && venue.logins() < 3 {
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, venue.logins())
	assert.Equal(t, domain.StateDisconnected, sup.State())
	assert.False(t, sup.IsReady())

	// A manual Connect starts a fresh cycle.
	venue.mu.Lock()
	venue.loginErr = nil
	venue.mu.Unlock()
	sup.Connect(testCreds)
	waitForState(t, sup, domain.StateReady)
}

func TestSupervisor_EmptyCredentialsFailBeforeVenue(t *testing.T) {
	venue := newMockVenue()
	sup, _ := newTestSupervisor(t, venue)

	sup.Connect(ports.Credentials{})
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 0, venue.logins(), "validation must fail before the venue is contacted")
	assert.Equal(t, domain.StateDisconnected, sup.State())
}

func TestSupervisor_OnDisconnectTriggersReconnect(t *testing.T) {
	venue := newMockVenue()
	sup, _ := newTestSupervisor(t, venue)

	sup.Connect(testCreds)
	waitForState(t, sup, domain.StateReady)

	sup.OnDisconnect()
	waitForState(t, sup, domain.StateReady)
	assert.Equal(t, 2, venue.logins(), "reconnect must reuse the stored credentials")

	// A disconnect notification while already down is ignored.
	sup.Close()
	sup.OnDisconnect()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, venue.logins())
}

func TestSupervisor_CloseCancelsPendingReconnect(t *testing.T) {
	venue := newMockVenue()
	sup, _ := newTestSupervisor(t, venue)

	sup.Connect(testCreds)
	waitForState(t, sup, domain.StateReady)
	require.Equal(t, 1, venue.logins())

	// Close lands while the reconnect is still sleeping out its delay. The
	// stale attempt must not wake up and log the session back in.
	sup.OnDisconnect()
	sup.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, domain.StateDisconnected, sup.State(), "closed session must stay down")
	assert.Equal(t, 1, venue.logins(), "no login after close")

	// A deliberate Connect still works after the cancelled reconnect.
	sup.Connect(testCreds)
	waitForState(t, sup, domain.StateReady)
	assert.Equal(t, 2, venue.logins())
}

func TestSupervisor_DegradedCountsAsReady(t *testing.T) {
	venue := newMockVenue()
	sup, _ := newTestSupervisor(t, venue)

	// Degraded transitions only apply off a live session.
	sup.MarkDegraded()
	assert.Equal(t, domain.StateDisconnected, sup.State())

	sup.Connect(testCreds)
	waitForState(t, sup, domain.StateReady)

	sup.MarkDegraded()
	assert.Equal(t, domain.StateDegraded, sup.State())
	assert.True(t, sup.IsReady(), "trading continues while only the data channel is down")

	sup.MarkRecovered()
	assert.Equal(t, domain.StateReady, sup.State())
}

func TestSupervisor_CloseIsIdempotentAndClearsState(t *testing.T) {
	venue := newMockVenue()
	sup, repos := newTestSupervisor(t, venue)

	sup.Connect(testCreds)
	waitForState(t, sup, domain.StateReady)
	repos.Subscriptions.Add("ETHUSDT")

	sup.Close()
	assert.Equal(t, domain.StateDisconnected, sup.State())
	assert.Equal(t, 0, repos.Accounts.Len())
	assert.Equal(t, 0, repos.Contracts.Len())
	assert.Equal(t, 0, repos.Subscriptions.Len())
	_, ok := sup.AccountFor(domain.AssetFutures)
	assert.False(t, ok)

	sup.Close()
	assert.Equal(t, 2, venue.closes(), "close is safe to repeat")
}
