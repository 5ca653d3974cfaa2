package storage_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newhome-tracker/models"
	"newhome-tracker/storage"
	"newhome-tracker/storage/storagetest"
)

func i64(v int64) *int64 { return &v }

func burnet(at time.Time) *models.Listing {
	ppsf := 170.0
	return &models.Listing{
		PlanName: "Burnet", Company: "UnionMain Homes", Community: "Elevon", Type: models.TypePlan,
		Price: i64(425000), Sqft: i64(2500), Stories: "2", PricePerSqft: &ppsf,
		Beds: "3", Baths: "2.5", LastUpdated: at,
	}
}

func withTx(t *testing.T, s storage.ListingStore, fn func(tx storage.ListingTx)) {
	t.Helper()
	ctx := context.Background()
	sess, err := s.Session(ctx)
	require.NoError(t, err)
	defer sess.Close()

	tx, err := sess.Begin(ctx)
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit())
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := storagetest.NewStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
}

func TestInsertAndFindByIdentity(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	l := burnet(now)
	withTx(t, s, func(tx storage.ListingTx) {
		require.NoError(t, tx.InsertListing(ctx, l))
	})
	require.NotZero(t, l.ID)

	withTx(t, s, func(tx storage.ListingTx) {
		got, err := tx.FindByIdentity(ctx, l.Identity())
		require.NoError(t, err)
		assert.Equal(t, l.ID, got.ID)
		assert.Equal(t, int64(425000), *got.Price)
		assert.Equal(t, int64(2500), *got.Sqft)
		assert.InDelta(t, 170.0, *got.PricePerSqft, 0.001)
		assert.Equal(t, "2.5", got.Baths)
		assert.True(t, now.Equal(got.LastUpdated), "last_updated %v != %v", got.LastUpdated, now)

		_, err = tx.FindByIdentity(ctx, models.Identity{PlanName: "Burnet", Company: "UnionMain Homes",
			Community: "Elevon", Type: models.TypeNow})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestIdentityIsUnique(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	withTx(t, s, func(tx storage.ListingTx) {
		require.NoError(t, tx.InsertListing(ctx, burnet(now)))
	})

	sess, err := s.Session(ctx)
	require.NoError(t, err)
	defer sess.Close()
	tx, err := sess.Begin(ctx)
	require.NoError(t, err)
	assert.Error(t, tx.InsertListing(ctx, burnet(now)))
	require.NoError(t, tx.Rollback())
}

func TestNullablePriceRoundTrip(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()

	l := &models.Listing{PlanName: "Llano", Company: "UnionMain Homes", Community: "Elevon",
		Type: models.TypePlan, LastUpdated: time.Now().UTC()}
	withTx(t, s, func(tx storage.ListingTx) {
		require.NoError(t, tx.InsertListing(ctx, l))
	})

	all, err := s.ListAllListings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Nil(t, all[0].Price)
	assert.Nil(t, all[0].Sqft)
	assert.Nil(t, all[0].PricePerSqft)
}

func TestRecentPriceChangesWindow(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	l := burnet(now)
	withTx(t, s, func(tx storage.ListingTx) {
		require.NoError(t, tx.InsertListing(ctx, l))
		require.NoError(t, tx.AppendPriceHistory(ctx, l.ID, 450000, 425000, now.Add(-30*time.Hour)))
		require.NoError(t, tx.AppendPriceHistory(ctx, l.ID, 425000, 399000, now.Add(-2*time.Hour)))
	})

	recent, err := s.RecentPriceChanges(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(425000), recent[0].OldPrice)
	assert.Equal(t, int64(399000), recent[0].NewPrice)
	assert.Equal(t, l.ID, recent[0].ListingID)

	all, err := s.ListPriceHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAppendPriceHistoryRejectsNoop(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()

	l := burnet(time.Now().UTC())
	withTx(t, s, func(tx storage.ListingTx) {
		require.NoError(t, tx.InsertListing(ctx, l))
		assert.Error(t, tx.AppendPriceHistory(ctx, l.ID, 425000, 425000, time.Now()))
	})
}

func TestRollbackDiscardsBatch(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()

	sess, err := s.Session(ctx)
	require.NoError(t, err)
	tx, err := sess.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertListing(ctx, burnet(time.Now().UTC())))
	require.NoError(t, tx.Rollback())
	require.NoError(t, sess.Close())

	all, err := s.ListAllListings(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdateListing(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()

	l := burnet(time.Now().UTC())
	withTx(t, s, func(tx storage.ListingTx) {
		require.NoError(t, tx.InsertListing(ctx, l))
		l.Beds = "4"
		l.Price = i64(399000)
		require.NoError(t, tx.UpdateListing(ctx, l))
	})

	all, err := s.ListAllListings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "4", all[0].Beds)
	assert.Equal(t, int64(399000), *all[0].Price)
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	e, err := storage.NewCSVExporterWriter(&buf)
	require.NoError(t, err)

	l := burnet(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	l.ID = 7
	require.NoError(t, e.Write([]*models.Listing{l, {ID: 8, PlanName: "Llano", Type: models.TypePlan}}))
	require.NoError(t, e.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,plan_name,company"))
	assert.Equal(t, "7,Burnet,UnionMain Homes,Elevon,plan,425000,2500,2,170.00,3,2.5,,,2026-10-01T00:00:00Z", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "8,Llano,,,plan,,,"))
}

func TestRecentlyChangedIDs(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	a, b := burnet(now), burnet(now)
	b.PlanName = "Llano"
	withTx(t, s, func(tx storage.ListingTx) {
		require.NoError(t, tx.InsertListing(ctx, a))
		require.NoError(t, tx.InsertListing(ctx, b))
		require.NoError(t, tx.AppendPriceHistory(ctx, a.ID, 450000, 425000, now.Add(-time.Hour)))
		require.NoError(t, tx.AppendPriceHistory(ctx, a.ID, 425000, 420000, now.Add(-time.Minute)))
		require.NoError(t, tx.AppendPriceHistory(ctx, b.ID, 500000, 480000, now.Add(-48*time.Hour)))
	})

	ids, err := storage.RecentlyChangedIDs(ctx, s, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{a.ID: true}, ids)
}
