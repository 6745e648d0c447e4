package domain

// Contract is immutable reference data for one tradable instrument,
// bulk-loaded once per session. Every order and subscribe operation consults
// the contract table (read-only) to resolve exchange routing and batching.
type Contract struct {
	Symbol     string     // Instrument symbol (primary key)
	Exchange   string     // Venue exchange/routing code
	Name       string     // Human-readable instrument name
	AssetClass AssetClass // Product kind, drives channel batching
	PriceTick  float64    // Minimum price increment
	LotSize    float64    // Minimum quantity increment
}
