package domain

import "time"

// Trade represents a single fill reported by the venue. Trades are immutable
// once created; one order may accumulate several trades (partial fills).
type Trade struct {
	FillID    string    // Venue-assigned fill identifier
	SeqNo     string    // Sequence number of the originating order
	Symbol    string    // Instrument symbol
	Exchange  string    // Venue exchange/routing code
	Direction Direction // Side of the originating order
	Price     float64   // Fill price
	Volume    float64   // Fill quantity
	Time      time.Time // Fill time reported by the venue
}
