// Package pipeline implements the bounded producer-consumer queue that
// serializes venue-callback-produced ticks into an ordered stream for the
// host application's sink.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"tradegateway/internal/domain"
	"tradegateway/internal/ports"
)

// DefaultCapacity is the queue depth used when none is configured.
const DefaultCapacity = 3000

// Pipeline is a bounded FIFO queue with exactly one consumer goroutine.
// Producers are venue-callback threads; Enqueue blocks when the queue is
// full (backpressure, not drop), which may in turn stall the venue client.
type Pipeline struct {
	ch     chan *domain.Tick
	done   chan struct{}
	logger ports.Logger
	sink   ports.EventSink

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates a pipeline delivering to the given sink. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int, sink ports.EventSink, logger ports.Logger) *Pipeline {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if sink == nil {
		sink = ports.NopSink{}
	}
	return &Pipeline{
		ch:     make(chan *domain.Tick, capacity),
		done:   make(chan struct{}),
		logger: logger,
		sink:   sink,
	}
}

// Enqueue submits a tick for ordered delivery. It blocks the calling thread
// while the queue is full and becomes a no-op once the pipeline is stopped.
func (p *Pipeline) Enqueue(tick *domain.Tick) {
	select {
	case p.ch <- tick:
	case <-p.done:
	}
}

// Start spawns the single consumer goroutine. Subsequent calls are no-ops;
// the consumer runs until the owning session tears the pipeline down.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.run()
	})
}

// Stop terminates the consumer after draining whatever is already buffered,
// and waits for it to exit. Idempotent.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

// Len returns the number of currently buffered ticks.
func (p *Pipeline) Len() int {
	return len(p.ch)
}

func (p *Pipeline) run() {
	defer p.wg.Done()
	for {
		select {
		case tick := <-p.ch:
			p.deliver(tick)
		case <-p.done:
			// Drain the backlog so nothing already accepted is lost.
			for {
				select {
				case tick := <-p.ch:
					p.deliver(tick)
				default:
					return
				}
			}
		}
	}
}

// deliver forwards one tick, isolating the consumer loop from sink panics.
// A misbehaving sink must never kill the consumer.
func (p *Pipeline) deliver(tick *domain.Tick) {
	defer func() {
		if r := recover(); r != nil && p.logger != nil {
			p.logger.Error(context.Background(), fmt.Errorf("panic in tick sink: %v", r),
				"Tick delivery panicked", map[string]interface{}{"symbol": tick.Symbol})
		}
	}()
	p.sink.OnTick(tick)
}
