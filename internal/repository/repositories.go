package repository

import "tradegateway/internal/domain"

// Repositories bundles the gateway's live entity stores. Each store keeps
// its own independent lock; ClearAll acquires them strictly one at a time.
type Repositories struct {
	Orders        *Store[string, *domain.Order]
	Fills         *FillBook
	Positions     *Store[domain.PositionKey, *domain.Position]
	Accounts      *Store[string, *domain.Account]
	Contracts     *Store[string, *domain.Contract]
	Subscriptions *SubscriptionSet
}

// NewRepositories creates the full set of empty stores.
func NewRepositories() *Repositories {
	return &Repositories{
		Orders:        NewStore[string, *domain.Order](),
		Fills:         NewFillBook(),
		Positions:     NewStore[domain.PositionKey, *domain.Position](),
		Accounts:      NewStore[string, *domain.Account](),
		Contracts:     NewStore[string, *domain.Contract](),
		Subscriptions: NewSubscriptionSet(),
	}
}

// ClearAll empties every store. Called on session close.
func (r *Repositories) ClearAll() {
	r.Orders.Clear()
	r.Fills.Clear()
	r.Positions.Clear()
	r.Accounts.Clear()
	r.Contracts.Clear()
	r.Subscriptions.Clear()
}
