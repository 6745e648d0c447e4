package domain

import "time"

// Order represents the gateway's view of an order submitted to the venue.
// Identity is the venue-assigned sequence number. A stored order is never
// written through: notification translation (ack/fill/change) replaces it
// with a rebuilt copy, and entries are only overwritten or cleared when the
// session closes.
type Order struct {
	SeqNo     string      // Venue-assigned sequence number (primary key)
	Symbol    string      // Instrument symbol (e.g., "ETHUSDT")
	Exchange  string      // Venue exchange/routing code resolved from the contract
	Direction Direction   // LONG or SHORT
	Price     float64     // Limit price (0 for market orders)
	Volume    float64     // Original quantity requested
	Status    OrderStatus // Current lifecycle status
	Timestamp time.Time   // Time of the last status change
}

// OrderRequest is the host application's instruction to place a new order.
type OrderRequest struct {
	Symbol    string
	Direction Direction
	Price     float64
	Volume    float64
}

// CancelRequest identifies an order to cancel.
type CancelRequest struct {
	Symbol string
	SeqNo  string
}
