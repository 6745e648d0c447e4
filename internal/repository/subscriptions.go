package repository

import "sync"

// SubscriptionSet tracks the symbols with an active market data
// subscription. It drives resubscription after a data-channel reconnect.
type SubscriptionSet struct {
	mu      sync.RWMutex
	symbols map[string]struct{}
}

// NewSubscriptionSet creates an empty subscription set.
func NewSubscriptionSet() *SubscriptionSet {
	return &SubscriptionSet{symbols: make(map[string]struct{})}
}

// Add inserts a symbol and reports whether it was newly added.
func (s *SubscriptionSet) Add(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.symbols[symbol]; ok {
		return false
	}
	s.symbols[symbol] = struct{}{}
	return true
}

// Remove deletes a symbol and reports whether it was present.
func (s *SubscriptionSet) Remove(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.symbols[symbol]; !ok {
		return false
	}
	delete(s.symbols, symbol)
	return true
}

// Contains reports whether the symbol is currently subscribed.
func (s *SubscriptionSet) Contains(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.symbols[symbol]
	return ok
}

// Members returns a copy of the current membership. Order is unspecified.
func (s *SubscriptionSet) Members() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	return out
}

// Len returns the number of subscribed symbols.
func (s *SubscriptionSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}

// Clear removes all symbols.
func (s *SubscriptionSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = make(map[string]struct{})
}
