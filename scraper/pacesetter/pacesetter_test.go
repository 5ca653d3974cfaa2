package pacesetter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newhome-tracker/models"
	"newhome-tracker/scraper"
)

var _ Renderer = (*scraper.Browser)(nil)

type fakeRenderer struct {
	payload string
	err     error

	target, wait, script string
}

func (f *fakeRenderer) Evaluate(_ context.Context, target, wait, script string, out any) error {
	f.target, f.wait, f.script = target, wait, script
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.payload), out)
}

func TestFetchPlans(t *testing.T) {
	r := &fakeRenderer{payload: `[
		{"name": "Magnolia", "price": "From $389,990", "sqft": "2,104 SQ FT", "beds": "3 Beds", "baths": "2 Baths", "stories": "1 Story", "url": "https://example.test/plans/magnolia"},
		{"name": "Cypress", "price": "Call for pricing", "sqft": "2,640 SQ FT", "beds": "4 Beds", "baths": "3 Baths", "stories": "2 Story"},
		{"name": "Magnolia", "price": "From $389,990"}
	]`}
	e := New(Config{Community: "Mobberly Farms", URL: "https://example.test/mobberly-farms", Kind: models.TypePlan, Renderer: r})

	got := e.FetchListings(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, "https://example.test/mobberly-farms", r.target)
	assert.Equal(t, waitSelector, r.wait)
	assert.True(t, strings.Contains(r.script, `[data-kind="plan"]`))

	m := got[0]
	assert.Equal(t, "Magnolia", m.PlanName)
	assert.Equal(t, Company, m.Company)
	assert.Equal(t, "Mobberly Farms", m.Community)
	assert.Equal(t, int64(389990), *m.Price)
	assert.Equal(t, int64(2104), *m.Sqft)
	assert.Equal(t, "1", m.Stories)
	assert.InDelta(t, 185.36, *m.PricePerSqft, 0.001)

	assert.Nil(t, got[1].Price)
}

func TestFetchHomesUsesHomeTiles(t *testing.T) {
	r := &fakeRenderer{payload: `[
		{"name": "Cypress", "price": "$452,500", "was": "$469,900", "address": "908 Wagon Trail", "status": "Ready Now"}
	]`}
	e := New(Config{Community: "Mobberly Farms", URL: "https://example.test/x", Kind: models.TypeNow, Renderer: r})

	got := e.FetchListings(context.Background())
	require.Len(t, got, 1)
	assert.True(t, strings.Contains(r.script, `[data-kind="home"]`))
	assert.Equal(t, models.TypeNow, got[0].Type)
	assert.Equal(t, "908 Wagon Trail", got[0].Address)
	assert.Equal(t, "908 Wagon Trail", got[0].PlanName)
	assert.Equal(t, int64(469900), *got[0].OriginalPrice)
}

func TestRenderFailureYieldsNothing(t *testing.T) {
	e := New(Config{Community: "Mobberly Farms", Kind: models.TypePlan, Renderer: &fakeRenderer{err: errors.New("chrome gone")}})
	assert.Empty(t, e.FetchListings(context.Background()))
}
