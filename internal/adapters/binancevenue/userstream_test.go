package binancevenue

import (
	"context"
	"testing"

	"tradegateway/internal/domain"
	"tradegateway/internal/ports"

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

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Config{UseTestnet: true, Logger: &mockLogger{}})
	require.NoError(t, err)
	return c
}

func TestClient_InstallUserStreamStopsPrevious(t *testing.T) {
	c := newTestClient(t)

	prevStopped := false
	prev := &userStream{client: c, cancel: func() { prevStopped = true }}
	c.installUserStream(prev)
	require.False(t, prevStopped)

	nextStopped := false
	next := &userStream{client: c, cancel: func() { nextStopped = true }}
	c.installUserStream(next)

	assert.True(t, prevStopped, "replacing the user stream must stop the old read loop")
	assert.False(t, nextStopped)
	assert.Same(t, next, c.userStream)

	c.installUserStream(nil)
	assert.True(t, nextStopped)
	assert.Nil(t, c.userStream)
}

func TestUserStream_DispatchRoutesOrderEvents(t *testing.T) {
	c := newTestClient(t)

	var acks []ports.OrderNotice
	var changes []ports.OrderNotice
	var fills []ports.FillNotice
	var events []ports.SessionEvent
	require.NoError(t, c.RegisterCallbacks(ports.VenueCallbacks{
		OnOrderAck:     func(n ports.OrderNotice) { acks = append(acks, n) },
		OnOrderChanged: func(n ports.OrderNotice) { changes = append(changes, n) },
		OnFill:         func(n ports.FillNotice) { fills = append(fills, n) },
		OnSessionEvent: func(e ports.SessionEvent) { events = append(events, e) },
	}))

	us := &userStream{client: c}

	us.dispatch([]byte(`{"e":"ORDER_TRADE_UPDATE","E":1,"o":{"s":"ETHUSDT","S":"BUY","i":42,"p":"2000.5","q":"1.5","x":"NEW","X":"NEW","T":1700000000000}}`))
	require.Len(t, acks, 1)
	assert.Equal(t, "42", acks[0].SeqNo)
	assert.Equal(t, domain.Long, acks[0].Direction)
	assert.Equal(t, domain.StatusAccepted, acks[0].Status)
	assert.Equal(t, 2000.5, acks[0].Price)

	us.dispatch([]byte(`{"e":"ORDER_TRADE_UPDATE","E":2,"o":{"s":"ETHUSDT","S":"BUY","i":42,"x":"TRADE","X":"FILLED","l":"1.5","L":"2001.0","t":7,"T":1700000001000}}`))
	require.Len(t, fills, 1)
	assert.Equal(t, "7", fills[0].FillID)
	assert.Equal(t, "42", fills[0].SeqNo)
	assert.Equal(t, 2001.0, fills[0].Price)
	assert.Equal(t, 1.5, fills[0].Volume)

	us.dispatch([]byte(`{"e":"ORDER_TRADE_UPDATE","E":3,"o":{"s":"ETHUSDT","S":"SELL","i":43,"x":"CANCELED","X":"CANCELED","T":1700000002000}}`))
	require.Len(t, changes, 1)
	assert.Equal(t, domain.StatusCancelled, changes[0].Status)
	assert.Equal(t, domain.Short, changes[0].Direction)

	us.dispatch([]byte(`{"e":"listenKeyExpired","E":4}`))
	require.Len(t, events, 1)
	assert.Equal(t, ports.SessionEventDisconnected, events[0].Kind)

	// Malformed frames are dropped without reaching any callback.
	us.dispatch([]byte(`{not json`))
	assert.Len(t, acks, 1)
	assert.Len(t, changes, 1)
	assert.Len(t, fills, 1)
}
