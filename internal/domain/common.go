package domain

// Direction represents the side of an order or position (LONG or SHORT).
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// OrderStatus represents the lifecycle status of an order at the venue.
type OrderStatus string

const (
	StatusSubmitted  OrderStatus = "SUBMITTED"
	StatusAccepted   OrderStatus = "ACCEPTED"
	StatusPartFilled OrderStatus = "PART_FILLED"
	StatusFilled     OrderStatus = "FILLED"
	StatusCancelled  OrderStatus = "CANCELLED"
	StatusRejected   OrderStatus = "REJECTED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// AssetClass partitions contracts (and their venue data channels) by product
// kind. Subscribe/unsubscribe batches are formed per asset class.
type AssetClass string

const (
	AssetSpot    AssetClass = "SPOT"
	AssetFutures AssetClass = "FUTURES"
	AssetOption  AssetClass = "OPTION"
)

// SessionState is the connection state of the gateway session.
// Transitions are serialized by the session supervisor; other components
// only observe it.
type SessionState string

const (
	StateDisconnected SessionState = "DISCONNECTED"
	StateConnecting   SessionState = "CONNECTING"
	StateReady        SessionState = "READY"
	StateDegraded     SessionState = "DEGRADED" // session up, data channel reconnecting
)
