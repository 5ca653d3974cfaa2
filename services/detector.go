package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"newhome-tracker/models"
	"newhome-tracker/storage"
	"newhome-tracker/utils"
)

// ErrMalformedRecord marks a record that cannot be matched to a listing.
var ErrMalformedRecord = errors.New("malformed record")

// BatchResult counts what one extractor batch did to the store.
type BatchResult struct {
	Created      int
	Updated      int
	Unchanged    int
	PriceChanges int
	Malformed    int
	Duplicates   int // later records whose identity already appeared in the batch
}

// Add accumulates other into r.
func (r *BatchResult) Add(other BatchResult) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
	r.PriceChanges += other.PriceChanges
	r.Malformed += other.Malformed
	r.Duplicates += other.Duplicates
}

// Changed reports whether the batch wrote anything.
func (r BatchResult) Changed() bool {
	return r.Created > 0 || r.Updated > 0
}

// ChangeDetector resolves records to stored listings, journals price
// transitions and upserts mutable fields.
type ChangeDetector struct {
	logger   *utils.Logger
	clock    utils.Clock
	validate *validator.Validate
}

// NewChangeDetector creates a ChangeDetector. A nil clock means wall time.
func NewChangeDetector(logger *utils.Logger, clock utils.Clock) *ChangeDetector {
	if clock == nil {
		clock = utils.RealClock{}
	}
	return &ChangeDetector{logger: logger, clock: clock, validate: validator.New()}
}

// Validate checks that the identity quadruple is present and the type is known.
func (d *ChangeDetector) Validate(r *models.Record) error {
	if err := d.validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return nil
}

// Apply writes one extractor batch inside a single transaction on sess.
// On any store error the whole batch is rolled back.
func (d *ChangeDetector) Apply(ctx context.Context, sess storage.Session, records []models.Record) (res BatchResult, err error) {
	if len(records) == 0 {
		return res, nil
	}

	tx, err := sess.Begin(ctx)
	if err != nil {
		return res, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := d.clock.Now()
	seen := utils.NewKeySet()
	for i := range records {
		r := &records[i]
		if err := d.Validate(r); err != nil {
			res.Malformed++
			d.logger.Warn("[detector] Skipping record %q (%s/%s): %v", r.PlanName, r.Company, r.Community, err)
			continue
		}
		if !seen.Add(r.Identity().String()) {
			res.Duplicates++
			d.logger.Warn("[detector] Skipping repeated %s record %q (%s/%s) in one batch",
				r.Type, r.PlanName, r.Company, r.Community)
			continue
		}

		existing, err := tx.FindByIdentity(ctx, r.Identity())
		if errors.Is(err, storage.ErrNotFound) {
			l := newListing(r, now)
			if err := tx.InsertListing(ctx, l); err != nil {
				return BatchResult{}, err
			}
			res.Created++
			d.logger.Debug("[detector] New %s listing %q (%s, %s)", l.Type, l.PlanName, l.Company, l.Community)
			continue
		}
		if err != nil {
			return BatchResult{}, err
		}

		old := existing.Price
		changed, priceChanged := merge(existing, r)
		if priceChanged {
			if err := tx.AppendPriceHistory(ctx, existing.ID, *old, *existing.Price, now); err != nil {
				return BatchResult{}, err
			}
			res.PriceChanges++
			d.logger.Info("[detector] Price change %q (%s, %s): $%d -> $%d",
				existing.PlanName, existing.Company, existing.Community, *old, *existing.Price)
		}
		if !changed {
			res.Unchanged++
			continue
		}
		existing.LastUpdated = now
		if err := tx.UpdateListing(ctx, existing); err != nil {
			return BatchResult{}, err
		}
		res.Updated++
	}

	if err := tx.Commit(); err != nil {
		return BatchResult{}, fmt.Errorf("detector: commit: %w", err)
	}
	committed = true
	return res, nil
}

func newListing(r *models.Record, now time.Time) *models.Listing {
	return &models.Listing{
		PlanName:     r.PlanName,
		Company:      r.Company,
		Community:    r.Community,
		Type:         r.Type,
		Price:        r.Price,
		Sqft:         r.Sqft,
		Stories:      r.Stories,
		PricePerSqft: PricePerSqft(r.Price, r.Sqft),
		Beds:         r.Beds,
		Baths:        r.Baths,
		Address:      r.Address,
		DesignNumber: r.DesignNumber,
		LastUpdated:  now,
	}
}

// merge applies r onto l. A nil incoming price is "no news". Sqft, stories and
// price_per_sqft are stable characteristics once stored, except that
// price_per_sqft follows the price.
func merge(l *models.Listing, r *models.Record) (changed, priceChanged bool) {
	if r.Price != nil {
		switch {
		case l.Price == nil:
			l.Price = r.Price
			changed = true
		case *l.Price != *r.Price:
			l.Price = r.Price
			changed, priceChanged = true, true
		}
		if changed {
			l.PricePerSqft = PricePerSqft(l.Price, l.Sqft)
		}
	}

	overwrite := func(dst *string, src string) {
		if src != "" && *dst != src {
			*dst = src
			changed = true
		}
	}
	overwrite(&l.Type, r.Type)
	overwrite(&l.Beds, r.Beds)
	overwrite(&l.Baths, r.Baths)
	overwrite(&l.Address, r.Address)
	overwrite(&l.DesignNumber, r.DesignNumber)
	return changed, priceChanged
}
