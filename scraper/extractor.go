// Package scraper holds the extractor contract and the shared fetch
// machinery (static pages, JSON endpoints and a headless browser) that the
// per-builder adapters are built on.
package scraper

import (
	"context"
	"strings"

	"newhome-tracker/models"
)

// Key names one (builder, community, listing kind) source.
type Key struct {
	Builder   string
	Community string
	Kind      string
}

// String renders the key as "builder/community/kind" slugs,
// e.g. "unionmain/elevon/plan".
func (k Key) String() string {
	return slug(k.Builder) + "/" + slug(k.Community) + "/" + slug(k.Kind)
}

func slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

// Extractor produces the current records for one source.
//
// FetchListings never fails outward: network, status and parse problems are
// logged and yield an empty slice, which callers treat as "no data this cycle".
// Every returned record is normalized and deduplicated.
type Extractor interface {
	Key() Key
	FetchListings(ctx context.Context) []models.Record
}

// Base carries the fields every adapter shares.
type Base struct {
	K       Key
	URL     string
	Company string
	// Community is the display name written into records.
	Community string
}

func (b Base) Key() Key { return b.K }

// Record starts a record stamped with the base's identity fields.
func (b Base) Record(kind string) models.Record {
	return models.Record{Company: b.Company, Community: b.Community, Type: kind}
}
