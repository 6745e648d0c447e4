package repository

import (
	"testing"

	"tradegateway/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillBook_AppendAndByOrder(t *testing.T) {
	b := NewFillBook()

	assert.Empty(t, b.ByOrder("1"))
	assert.Equal(t, 0, b.Len())

	// Two partial fills for one order, one fill for another.
	b.Append(&domain.Trade{FillID: "f1", SeqNo: "1", Symbol: "ETHUSDT", Volume: 0.4})
	b.Append(&domain.Trade{FillID: "f2", SeqNo: "1", Symbol: "ETHUSDT", Volume: 0.6})
	b.Append(&domain.Trade{FillID: "f3", SeqNo: "2", Symbol: "BTCUSDT", Volume: 1.0})

	fills := b.ByOrder("1")
	require.Len(t, fills, 2)
	assert.Equal(t, "f1", fills[0].FillID, "fills must come back in arrival order")
	assert.Equal(t, "f2", fills[1].FillID)

	assert.Len(t, b.ByOrder("2"), 1)
	assert.Equal(t, 3, b.Len())
	assert.Len(t, b.Snapshot(), 3)
}

func TestFillBook_ByOrderReturnsCopy(t *testing.T) {
	b := NewFillBook()
	b.Append(&domain.Trade{FillID: "f1", SeqNo: "1"})

	fills := b.ByOrder("1")
	fills[0] = &domain.Trade{FillID: "mutated", SeqNo: "1"}

	again := b.ByOrder("1")
	require.Len(t, again, 1)
	assert.Equal(t, "f1", again[0].FillID, "caller mutations must not reach the book")
}

func TestFillBook_Clear(t *testing.T) {
	b := NewFillBook()
	b.Append(&domain.Trade{FillID: "f1", SeqNo: "1"})
	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.ByOrder("1"))
}
