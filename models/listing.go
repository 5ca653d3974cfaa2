package models

import (
	"strings"
	"time"
)

// Listing kinds. A plan is a buildable floor plan, a now listing is a specific
// home under construction or ready to move in.
const (
	TypePlan = "plan"
	TypeNow  = "now"
)

// Record is the normalized shape every extractor emits.
// Optional numeric fields are nil when the source withholds them.
type Record struct {
	PlanName  string `validate:"required"`
	Company   string `validate:"required"`
	Community string `validate:"required"`
	Type      string `validate:"required,oneof=plan now"`

	Price        *int64
	Sqft         *int64
	Stories      string
	PricePerSqft *float64

	Beds    string
	Baths   string
	Address string

	DesignNumber  string
	Status        string
	URL           string
	OriginalPrice *int64
}

// Identity returns the quadruple used to match a record against stored listings.
func (r *Record) Identity() Identity {
	return Identity{PlanName: r.PlanName, Company: r.Company, Community: r.Community, Type: r.Type}
}

// Identity is the stable cross-run key of a listing.
type Identity struct {
	PlanName  string
	Company   string
	Community string
	Type      string
}

// String joins the identity fields into a single map key.
func (id Identity) String() string {
	return strings.Join([]string{id.PlanName, id.Company, id.Community, id.Type}, "\x1f")
}

// Listing is the persisted catalog entity.
type Listing struct {
	ID        int64
	PlanName  string
	Company   string
	Community string
	Type      string

	Price        *int64
	Sqft         *int64
	Stories      string
	PricePerSqft *float64

	Beds         string
	Baths        string
	Address      string
	DesignNumber string

	LastUpdated time.Time
}

// Identity returns the listing's identity quadruple.
func (l *Listing) Identity() Identity {
	return Identity{PlanName: l.PlanName, Company: l.Company, Community: l.Community, Type: l.Type}
}

// PriceHistory is one journaled price transition. Entries are never modified.
type PriceHistory struct {
	ID        int64
	ListingID int64
	OldPrice  int64
	NewPrice  int64
	ChangedAt time.Time
}

// PlanView is the catalog element served by GET /api/plans.
type PlanView struct {
	PlanName             string    `json:"plan_name"`
	Price                int64     `json:"price"`
	Sqft                 *int64    `json:"sqft"`
	Stories              *string   `json:"stories"`
	PricePerSqft         *float64  `json:"price_per_sqft"`
	LastUpdated          time.Time `json:"last_updated"`
	Company              string    `json:"company"`
	Community            string    `json:"community"`
	Type                 string    `json:"type"`
	Address              *string   `json:"address"`
	PriceChangedRecently bool      `json:"price_changed_recently"`
}

// CatalogReport holds summary statistics over the stored catalog.
type CatalogReport struct {
	TotalListings       int
	PlanListings        int
	NowListings         int
	PricedListings      int
	AveragePrice        float64
	MinPrice            int64
	MaxPrice            int64
	AveragePricePerSqft float64
	MostExpensive       *Listing
	RecentlyChanged     []*Listing
	ByCommunity         map[string]int
	ByCompany           map[string]int
}
