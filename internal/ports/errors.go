package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying venue/infrastructure errors with these standard
// errors so that core components can test them with errors.Is.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Session / Connectivity Errors
	ErrNotReady             = errors.New("gateway session is not ready")
	ErrConnectInFlight      = errors.New("a connect attempt is already in flight")
	ErrConnectionFailed     = errors.New("failed to connect to the venue")
	ErrAuthenticationFailed = errors.New("venue authentication failed (check credentials)")
	ErrRateLimited          = errors.New("venue API rate limit exceeded")

	// Trading Errors
	ErrVenueRejected    = errors.New("request rejected by the venue")
	ErrOrderNotFound    = errors.New("order not found")
	ErrContractNotFound = errors.New("contract not found for symbol")

	// Market Data Errors
	ErrSubscribeFailed   = errors.New("market data subscription failed")
	ErrUnsubscribeFailed = errors.New("market data unsubscription failed")

	// Storage Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
