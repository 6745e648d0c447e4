package domain

// PositionKey identifies a position by instrument and side.
type PositionKey struct {
	Symbol    string
	Direction Direction
}

// Position represents current exposure in one instrument on one side.
// Positions are replaced wholesale on each account query rather than being
// mutated incrementally from trade events.
type Position struct {
	Symbol    string    // Instrument symbol
	Exchange  string    // Venue exchange/routing code
	Direction Direction // LONG or SHORT
	Volume    float64   // Current position size
	Price     float64   // Average entry price
	PNL       float64   // Unrealized profit and loss
	Frozen    float64   // Volume locked by pending close orders
}

// Key returns the repository key for the position.
func (p *Position) Key() PositionKey {
	return PositionKey{Symbol: p.Symbol, Direction: p.Direction}
}
