package scraper

import (
	"context"
	"fmt"
)

// PageFunc fetches one 1-based page, returning its items and the total item
// count the source reports (0 when unknown).
type PageFunc[T any] func(ctx context.Context, page int) (items []T, total int, err error)

// DrainPages calls fetch for pages 1..maxPages until a page comes back empty
// or the reported total has been collected. Items gathered before an error
// are returned alongside it.
func DrainPages[T any](ctx context.Context, maxPages int, fetch PageFunc[T]) ([]T, error) {
	if maxPages < 1 {
		maxPages = 1
	}
	var all []T
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		items, total, err := fetch(ctx, page)
		if err != nil {
			return all, fmt.Errorf("page %d: %w", page, err)
		}
		all = append(all, items...)
		if len(items) == 0 || (total > 0 && len(all) >= total) {
			break
		}
	}
	return all, nil
}
