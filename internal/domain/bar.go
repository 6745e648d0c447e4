package domain

import "time"

// Bar represents one OHLCV candle of historical market data.
type Bar struct {
	Symbol   string    // Instrument symbol
	Exchange string    // Venue exchange/routing code
	Interval string    // Bar interval (e.g., "1m", "1h", "1d")
	OpenTime time.Time // Start of the bar period
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// HistoryRequest asks for historical bars over a time range.
type HistoryRequest struct {
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time
}
