// Package translator maps venue-native asynchronous notifications into
// canonical domain records and repository updates. Its methods run on
// whichever threads the venue client uses to deliver callbacks, so they
// carry no mutable state of their own and are safe for concurrent,
// reentrant invocation.
package translator

import (
	"context"
	"fmt"

	"tradegateway/internal/domain"
	"tradegateway/internal/pipeline"
	"tradegateway/internal/ports"
	"tradegateway/internal/repository"
)

// TickCache applies market data messages to a last-value cache and returns
// a snapshot of the resulting tick, or nil when the message is dropped.
// Implemented by the market data multiplexer.
type TickCache interface {
	ApplyTrade(msg ports.TickTrade) *domain.Tick
	ApplyBook(msg ports.TickBook) *domain.Tick
}

// Translator holds only immutable references; all mutable state lives in
// the repositories and the tick cache, each behind its own lock.
type Translator struct {
	repos  *repository.Repositories
	sink   ports.EventSink
	pipe   *pipeline.Pipeline
	cache  TickCache
	logger ports.Logger
}

// New creates a translator writing into the given repositories and
// dispatching canonical events to the sink (orders/trades synchronously,
// ticks through the pipeline).
func New(repos *repository.Repositories, sink ports.EventSink, pipe *pipeline.Pipeline, cache TickCache, logger ports.Logger) (*Translator, error) {
	if repos == nil || pipe == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Translator")
	}
	if sink == nil {
		sink = ports.NopSink{}
	}
	return &Translator{repos: repos, sink: sink, pipe: pipe, cache: cache, logger: logger}, nil
}

// OnOrderAck handles a new-order acknowledgment from the venue.
func (t *Translator) OnOrderAck(n ports.OrderNotice) {
	defer t.recoverCallback("OnOrderAck")
	ctx := context.Background()

	contract, ok := t.repos.Contracts.Get(n.Symbol)
	if !ok {
		// Venue notifications are not re-deliverable; drop, don't retry.
		t.logger.Warn(ctx, "Order ack for unknown symbol dropped", map[string]interface{}{"symbol": n.Symbol, "seqNo": n.SeqNo})
		return
	}

	status := n.Status
	if status == "" {
		status = domain.StatusSubmitted
	}
	order := &domain.Order{
		SeqNo:     n.SeqNo,
		Symbol:    n.Symbol,
		Exchange:  contract.Exchange,
		Direction: n.Direction,
		Price:     n.Price,
		Volume:    n.Volume,
		Status:    status,
		Timestamp: n.Time,
	}
	t.repos.Orders.Put(order.SeqNo, order)
	t.dispatchOrder(order)
}

// OnOrderChanged handles a status/attribute change for an existing order.
// A change for a sequence number never acked is treated as an ack.
func (t *Translator) OnOrderChanged(n ports.OrderNotice) {
	defer t.recoverCallback("OnOrderChanged")
	ctx := context.Background()

	order, ok := t.repos.Orders.Get(n.SeqNo)
	if !ok {
		t.OnOrderAck(n)
		return
	}
	if _, known := t.repos.Contracts.Get(n.Symbol); !known {
		t.logger.Warn(ctx, "Order change for unknown symbol dropped", map[string]interface{}{"symbol": n.Symbol, "seqNo": n.SeqNo})
		return
	}

	// Rebuild-and-swap: stored orders are never written through; concurrent
	// callbacks for the same order race only on the map slot, which the
	// store lock serializes.
	updated := *order
	if n.Price != 0 {
		updated.Price = n.Price
	}
	if n.Volume != 0 {
		updated.Volume = n.Volume
	}
	if n.Status != "" {
		updated.Status = n.Status
	}
	updated.Timestamp = n.Time
	t.repos.Orders.Put(updated.SeqNo, &updated)
	t.dispatchOrder(&updated)
}

// OnFill handles a fill (execution) notification: records the trade and
// forces the originating order's status to fully filled.
func (t *Translator) OnFill(n ports.FillNotice) {
	defer t.recoverCallback("OnFill")
	ctx := context.Background()

	contract, ok := t.repos.Contracts.Get(n.Symbol)
	if !ok {
		t.logger.Warn(ctx, "Fill for unknown symbol dropped", map[string]interface{}{"symbol": n.Symbol, "fillID": n.FillID})
		return
	}

	trade := &domain.Trade{
		FillID:    n.FillID,
		SeqNo:     n.SeqNo,
		Symbol:    n.Symbol,
		Exchange:  contract.Exchange,
		Direction: n.Direction,
		Price:     n.Price,
		Volume:    n.Volume,
		Time:      n.Time,
	}
	t.repos.Fills.Append(trade)

	if order, ok := t.repos.Orders.Get(n.SeqNo); ok {
		filled := *order
		filled.Status = domain.StatusFilled
		filled.Timestamp = n.Time
		t.repos.Orders.Put(filled.SeqNo, &filled)
		t.dispatchOrder(&filled)
	} else {
		t.logger.Warn(ctx, "Fill references unknown order", map[string]interface{}{"seqNo": n.SeqNo, "fillID": n.FillID})
	}

	t.dispatchTrade(trade)
}

// OnSessionEvent forwards generic session notifications to the host log
// stream. Disconnect handling itself belongs to the session supervisor.
func (t *Translator) OnSessionEvent(e ports.SessionEvent) {
	defer t.recoverCallback("OnSessionEvent")
	switch e.Kind {
	case ports.SessionEventError:
		t.sink.OnError(e.Message)
	default:
		t.sink.OnLog(e.Message)
	}
}

// OnTickTrade applies a trade-kind market data message to the tick cache
// and enqueues the resulting snapshot for ordered delivery.
func (t *Translator) OnTickTrade(msg ports.TickTrade) {
	defer t.recoverCallback("OnTickTrade")
	if t.cache == nil {
		return
	}
	if tick := t.cache.ApplyTrade(msg); tick != nil {
		t.pipe.Enqueue(tick)
	}
}

// OnTickBook applies a book-kind market data message. A book message for a
// symbol with no prior trade-seeded cache entry is silently dropped.
func (t *Translator) OnTickBook(msg ports.TickBook) {
	defer t.recoverCallback("OnTickBook")
	if t.cache == nil {
		return
	}
	if tick := t.cache.ApplyBook(msg); tick != nil {
		t.pipe.Enqueue(tick)
	}
}

// dispatchOrder hands a copy to the host synchronously on the callback
// thread, so the host can hold its snapshot without sharing the stored value.
func (t *Translator) dispatchOrder(order *domain.Order) {
	c := *order
	t.sink.OnOrder(&c)
}

func (t *Translator) dispatchTrade(trade *domain.Trade) {
	c := *trade
	t.sink.OnTrade(&c)
}

// recoverCallback keeps a malformed notification or a panicking sink from
// crashing the venue's callback thread.
func (t *Translator) recoverCallback(op string) {
	if r := recover(); r != nil {
		t.logger.Error(context.Background(), fmt.Errorf("panic in %s: %v", op, r),
			"Recovered panic at callback boundary", map[string]interface{}{"operation": op})
	}
}
