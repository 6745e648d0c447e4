package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionSet_AddReportsNew(t *testing.T) {
	s := NewSubscriptionSet()

	assert.True(t, s.Add("ETHUSDT"), "first add is new")
	assert.False(t, s.Add("ETHUSDT"), "second add is a duplicate")
	assert.True(t, s.Contains("ETHUSDT"))
	assert.Equal(t, 1, s.Len())
}

func TestSubscriptionSet_RemoveReportsPresence(t *testing.T) {
	s := NewSubscriptionSet()
	s.Add("ETHUSDT")

	assert.True(t, s.Remove("ETHUSDT"))
	assert.False(t, s.Remove("ETHUSDT"), "removing an absent symbol reports false")
	assert.False(t, s.Contains("ETHUSDT"))
}

func TestSubscriptionSet_MembersAndClear(t *testing.T) {
	s := NewSubscriptionSet()
	s.Add("ETHUSDT")
	s.Add("BTCUSDT")

	members := s.Members()
	assert.ElementsMatch(t, []string{"ETHUSDT", "BTCUSDT"}, members)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Members())
}

func TestRepositories_ClearAll(t *testing.T) {
	r := NewRepositories()
	r.Subscriptions.Add("ETHUSDT")
	r.Orders.Put("1", nil)

	r.ClearAll()
	assert.Equal(t, 0, r.Subscriptions.Len())
	assert.Equal(t, 0, r.Orders.Len())
	assert.Equal(t, 0, r.Fills.Len())
}
