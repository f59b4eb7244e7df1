package storage

import (
	"context"

	"github.com/IshaanNene/ShopStalk/internal/types"
)

// Storage is the interface for all dataset backends. Store replaces the
// backend's previous contents with records, so each scrape run is a fresh
// snapshot.
type Storage interface {
	// Store persists the full record set, in order.
	Store(ctx context.Context, records []types.ProductRecord) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}
