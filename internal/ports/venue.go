package ports

import (
	"context"
	"time"

	"tradegateway/internal/domain"
)

// Credentials authenticates a venue session.
type Credentials struct {
	APIKey    string
	SecretKey string
}

// OrderNotice is a venue notification about an order (new-order ack or a
// later status change), expressed in canonical terms at the port boundary.
type OrderNotice struct {
	SeqNo     string
	Symbol    string
	Direction domain.Direction
	Price     float64
	Volume    float64
	Status    domain.OrderStatus
	Time      time.Time
}

// FillNotice is a venue notification about a fill (execution).
type FillNotice struct {
	FillID    string
	SeqNo     string
	Symbol    string
	Direction domain.Direction
	Price     float64
	Volume    float64
	Time      time.Time
}

// SessionEventKind classifies generic session notifications.
type SessionEventKind string

const (
	SessionEventInfo         SessionEventKind = "INFO"
	SessionEventError        SessionEventKind = "ERROR"
	SessionEventDisconnected SessionEventKind = "DISCONNECTED"
)

// SessionEvent is a generic session notification from the venue
// (including mid-session disconnects).
type SessionEvent struct {
	Kind    SessionEventKind
	Message string
}

// TickTrade is a trade-kind market data message for one symbol.
type TickTrade struct {
	Symbol string
	Price  float64
	Volume float64
	Time   time.Time
}

// TickBook is a book-kind market data message carrying up to
// domain.BookLevels depth slots per side. Slices may be shorter than
// domain.BookLevels; extra entries are ignored.
type TickBook struct {
	Symbol    string
	BidPrice  []float64
	BidVolume []float64
	AskPrice  []float64
	AskVolume []float64
}

// VenueCallbacks carries the handlers the venue client invokes on its own
// threads when asynchronous notifications arrive. The venue client's
// threading model is opaque: handlers must be safe for concurrent and
// reentrant invocation.
type VenueCallbacks struct {
	OnOrderAck     func(OrderNotice)
	OnOrderChanged func(OrderNotice)
	OnFill         func(FillNotice)
	OnSessionEvent func(SessionEvent)
	OnTickTrade    func(TickTrade)
	OnTickBook     func(TickBook)
}

// VenueClient defines the interface for interacting with a trading venue.
// Calls are synchronous with an implicit venue-side timeout; this layer
// imposes no per-call timeout of its own.
type VenueClient interface {
	// Login opens a venue session and returns the trading accounts it grants.
	Login(ctx context.Context, creds Credentials) ([]*domain.Account, error)

	// RegisterCallbacks installs the notification handlers. Must be called
	// before market data or order notifications are expected.
	RegisterCallbacks(cb VenueCallbacks) error

	// LoadContracts bulk-loads the venue's tradable instrument table.
	LoadContracts(ctx context.Context) ([]*domain.Contract, error)

	// QueryAccounts fetches the current account balances.
	QueryAccounts(ctx context.Context) ([]*domain.Account, error)

	// QueryPositions fetches the current open positions. The response is
	// authoritative and replaces prior position state wholesale.
	QueryPositions(ctx context.Context) ([]*domain.Position, error)

	// PlaceOrder submits a new order for the given account and returns the
	// venue-assigned sequence number.
	PlaceOrder(ctx context.Context, accountID string, req domain.OrderRequest, exchange string) (string, error)

	// CancelOrder cancels an open order by sequence number.
	CancelOrder(ctx context.Context, accountID, symbol, seqNo string) error

	// ModifyOrder amends an open order's price and/or volume. Nil means
	// leave that attribute unchanged.
	ModifyOrder(ctx context.Context, accountID, symbol, seqNo string, newPrice, newVolume *float64) error

	// Subscribe starts market data delivery for one batch of symbols on the
	// channel belonging to the given asset class.
	Subscribe(ctx context.Context, channel domain.AssetClass, symbols []string) error

	// Unsubscribe stops market data delivery for one batch of symbols.
	Unsubscribe(ctx context.Context, channel domain.AssetClass, symbols []string) error

	// Ping checks the venue's data channel liveness.
	Ping(ctx context.Context) error

	// GetBars retrieves historical bars for the requested range.
	GetBars(ctx context.Context, req domain.HistoryRequest) ([]*domain.Bar, error)

	// Close releases venue-side resources (streams, listen keys).
	// Safe to call more than once.
	Close() error
}
