package storage

import (
	"context"
	"errors"
	"time"

	"newhome-tracker/models"
)

// ErrNotFound is returned when no listing matches an identity.
var ErrNotFound = errors.New("storage: listing not found")

// ListingStore is the durable home of listings and their price history.
type ListingStore interface {
	// Session acquires a persistence session. The caller must Close it.
	Session(ctx context.Context) (Session, error)
	ListAllListings(ctx context.Context) ([]*models.Listing, error)
	RecentPriceChanges(ctx context.Context, since time.Time) ([]*models.PriceHistory, error)
	Close() error
}

// Session is a persistence session scoped to one harvest cycle. Each
// extractor batch runs in its own transaction opened with Begin.
type Session interface {
	Begin(ctx context.Context) (ListingTx, error)
	Close() error
}

// ListingTx groups the writes of one batch into a single atomic unit.
type ListingTx interface {
	FindByIdentity(ctx context.Context, id models.Identity) (*models.Listing, error)
	InsertListing(ctx context.Context, l *models.Listing) error
	UpdateListing(ctx context.Context, l *models.Listing) error
	AppendPriceHistory(ctx context.Context, listingID, oldPrice, newPrice int64, at time.Time) error
	Commit() error
	Rollback() error
}

// PlansCache caches the rendered catalog payload served by the read API.
type PlansCache interface {
	Get(ctx context.Context) ([]byte, bool)
	Set(ctx context.Context, payload []byte) error
	Invalidate(ctx context.Context) error
}

// RecentlyChangedIDs returns the set of listing IDs with a price history row
// at or after since.
func RecentlyChangedIDs(ctx context.Context, s ListingStore, since time.Time) (map[int64]bool, error) {
	changes, err := s.RecentPriceChanges(ctx, since)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(changes))
	for _, c := range changes {
		ids[c.ListingID] = true
	}
	return ids, nil
}
