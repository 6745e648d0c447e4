package ports

import (
	"context"

	"tradegateway/internal/domain"
)

// BarStore defines the interface for the optional local cache of historical
// bars. The gateway core itself holds no state beyond the process lifetime;
// a BarStore only backs QueryHistory as a read-through cache.
type BarStore interface {
	// SaveBars upserts a batch of bars.
	SaveBars(ctx context.Context, bars []*domain.Bar) error
	// FindBars retrieves cached bars for the request range, ordered by open time.
	FindBars(ctx context.Context, req domain.HistoryRequest) ([]*domain.Bar, error)
	// Close releases the underlying storage.
	Close() error
}
