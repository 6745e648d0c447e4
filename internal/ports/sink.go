package ports

import "tradegateway/internal/domain"

// EventSink receives the canonical event stream produced by the gateway.
// OnOrder and OnTrade are dispatched synchronously on the venue callback
// thread at the moment of translation; OnTick is delivered by the ingestion
// pipeline's consumer in arrival order. Implementations must not assume any
// relative ordering between the two streams.
type EventSink interface {
	OnOrder(order *domain.Order)
	OnTrade(trade *domain.Trade)
	OnTick(tick *domain.Tick)
	OnLog(msg string)
	OnError(msg string)
}

// NopSink discards all events. Useful as a default and in tests.
type NopSink struct{}

func (NopSink) OnOrder(*domain.Order) {}
func (NopSink) OnTrade(*domain.Trade) {}
func (NopSink) OnTick(*domain.Tick)   {}
func (NopSink) OnLog(string)          {}
func (NopSink) OnError(string)        {}
