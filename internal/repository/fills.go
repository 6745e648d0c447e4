package repository

import (
	"sync"

	"tradegateway/internal/domain"
)

// FillBook stores fills keyed by the originating order's sequence number.
// Trades are append-only; one order may accumulate several partial fills.
type FillBook struct {
	mu    sync.RWMutex
	fills map[string][]*domain.Trade
}

// NewFillBook creates an empty fill book.
func NewFillBook() *FillBook {
	return &FillBook{fills: make(map[string][]*domain.Trade)}
}

// Append records a fill under its order's sequence number.
func (b *FillBook) Append(t *domain.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fills[t.SeqNo] = append(b.fills[t.SeqNo], t)
}

// ByOrder returns the fills recorded for one order, in arrival order.
func (b *FillBook) ByOrder(seqNo string) []*domain.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	src := b.fills[seqNo]
	out := make([]*domain.Trade, len(src))
	copy(out, src)
	return out
}

// Snapshot returns a copy of all fills. Order is unspecified.
func (b *FillBook) Snapshot() []*domain.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*domain.Trade
	for _, ts := range b.fills {
		out = append(out, ts...)
	}
	return out
}

// Len returns the total number of recorded fills.
func (b *FillBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, ts := range b.fills {
		n += len(ts)
	}
	return n
}

// Clear removes all fills.
func (b *FillBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fills = make(map[string][]*domain.Trade)
}
