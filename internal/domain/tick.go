package domain

import "time"

// BookLevels is the number of bid/ask depth slots carried on a tick.
const BookLevels = 5

// Tick is the mutable last-value snapshot for one symbol: the most recent
// trade fields plus up to five levels of book depth. Trade-kind and
// book-kind venue messages update disjoint field groups independently.
type Tick struct {
	Symbol   string    // Instrument symbol (cache key)
	Exchange string    // Venue exchange/routing code
	Time     time.Time // Time of the last trade update

	// Trade fields, replaced wholesale by a trade-kind message.
	LastPrice  float64
	LastVolume float64
	Volume     float64 // Cumulative session volume, when the venue reports it

	// Book fields, updated slot-by-slot by a book-kind message.
	BidPrice  [BookLevels]float64
	BidVolume [BookLevels]float64
	AskPrice  [BookLevels]float64
	AskVolume [BookLevels]float64
}

// Clone returns a copy safe to hand across goroutines.
func (t *Tick) Clone() *Tick {
	c := *t
	return &c
}
