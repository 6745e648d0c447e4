package repository

import (
	"sync"
	"testing"

	"tradegateway/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGetDelete(t *testing.T) {
	s := NewStore[string, *domain.Order]()

	_, ok := s.Get("1")
	assert.False(t, ok, "empty store should not resolve any key")

	order := &domain.Order{SeqNo: "1", Symbol: "ETHUSDT", Status: domain.StatusSubmitted}
	s.Put("1", order)

	got, ok := s.Get("1")
	require.True(t, ok)
	assert.Equal(t, order, got)
	assert.Equal(t, 1, s.Len())

	// Overwrite under the same key.
	updated := &domain.Order{SeqNo: "1", Symbol: "ETHUSDT", Status: domain.StatusFilled}
	s.Put("1", updated)
	got, ok = s.Get("1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusFilled, got.Status)
	assert.Equal(t, 1, s.Len())

	s.Delete("1")
	_, ok = s.Get("1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	// Deleting an absent key is a no-op.
	s.Delete("missing")
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore[string, *domain.Contract]()
	s.Put("ETHUSDT", &domain.Contract{Symbol: "ETHUSDT"})
	s.Put("BTCUSDT", &domain.Contract{Symbol: "BTCUSDT"})

	snap := s.Snapshot()
	assert.Len(t, snap, 2)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Len(t, snap, 2, "snapshot must survive a later Clear")
}

func TestStore_ReplaceSwapsWholesale(t *testing.T) {
	s := NewStore[string, *domain.Account]()
	s.Put("A", &domain.Account{ID: "A", Balance: 10})
	s.Put("B", &domain.Account{ID: "B", Balance: 20})

	fresh := map[string]*domain.Account{
		"C": {ID: "C", Balance: 30},
	}
	s.Replace(fresh)

	_, ok := s.Get("A")
	assert.False(t, ok, "stale entries must be gone after Replace")
	got, ok := s.Get("C")
	require.True(t, ok)
	assert.Equal(t, 30.0, got.Balance)
	assert.Equal(t, 1, s.Len())

	// Mutating the caller's map afterwards must not leak into the store.
	fresh["D"] = &domain.Account{ID: "D"}
	assert.Equal(t, 1, s.Len())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Put(n, n*2)
			_, _ = s.Get(n)
			_ = s.Snapshot()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
