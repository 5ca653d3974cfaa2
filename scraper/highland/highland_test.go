package highland

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newhome-tracker/models"
	"newhome-tracker/scraper"
)

var feed = map[string][]string{
	"plans": {
		`{"totalCount": 3, "items": [
			{"planName": "Plan 204", "designNumber": 204, "price": "$363s", "sqft": "2,431 - 2,778", "beds": "3 - 4", "baths": "2.5", "stories": 1},
			{"planName": "Plan 216", "designNumber": "216", "price": 412990, "sqft": 2890, "beds": "4", "baths": "3.5", "stories": "2"}
		]}`,
		`{"totalCount": 3, "items": [
			{"planName": "", "designNumber": "220", "price": null, "sqft": "3,011", "beds": "4", "baths": "3", "stories": "2"}
		]}`,
	},
	"inventory": {
		`{"totalCount": 0, "items": [
			{"planName": "Plan 204", "price": "$379,990", "originalPrice": "$394,990", "sqft": "2,431", "address": "2207 Prairie Clover Dr", "status": "Under Construction"},
			{"planName": "Plan 204", "price": "$381,990", "address": "2207 PRAIRIE CLOVER DR"},
			{"planName": "Plan 204", "price": "$401,990", "address": "2215 Prairie Clover Dr, Lavon, TX 75166"}
		]}`,
		`{"totalCount": 0, "items": []}`,
	},
}

func newServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		seen = append(seen, q.Get("community")+":"+q.Get("type")+":"+q.Get("page")+":"+q.Get("pageSize"))
		pages := feed[q.Get("type")]
		var n int
		_ = json.Unmarshal([]byte(q.Get("page")), &n)
		if q.Get("community") != "elevon" || n < 1 || n > len(pages) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pages[n-1]))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newExtractor(base, slug, kind string) *Extractor {
	return New(Config{
		Community: "Elevon",
		Slug:      slug,
		BaseURL:   base + "/api/community-listings",
		Kind:      kind,
		Fetcher:   scraper.NewPageFetcher(scraper.FetchConfig{Timeout: 5 * time.Second, MaxRetries: 1}),
	})
}

func TestFetchPlansDrainsPages(t *testing.T) {
	srv, seen := newServer(t)
	got := newExtractor(srv.URL, "elevon", models.TypePlan).FetchListings(context.Background())
	require.Len(t, got, 3)
	assert.Equal(t, []string{"elevon:plans:1:24", "elevon:plans:2:24"}, *seen)

	p204 := got[0]
	assert.Equal(t, "Plan 204", p204.PlanName)
	assert.Equal(t, Company, p204.Company)
	assert.Equal(t, "204", p204.DesignNumber)
	assert.Equal(t, int64(363000), *p204.Price)
	assert.Equal(t, int64(2431), *p204.Sqft)
	assert.Equal(t, "3-4", p204.Beds)
	assert.Equal(t, "1", p204.Stories)

	assert.Equal(t, int64(412990), *got[1].Price)
	assert.Equal(t, int64(2890), *got[1].Sqft)

	assert.Equal(t, "Plan 220", got[2].PlanName)
	assert.Nil(t, got[2].Price)
}

func TestFetchInventoryDedupsByAddress(t *testing.T) {
	srv, _ := newServer(t)
	got := newExtractor(srv.URL, "elevon", models.TypeNow).FetchListings(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, models.TypeNow, got[0].Type)
	assert.Equal(t, "2207 Prairie Clover Dr", got[0].PlanName)
	assert.Equal(t, "2215 Prairie Clover Dr", got[1].PlanName, "same floor plan, distinct home")
	assert.Equal(t, int64(401990), *got[1].Price)
	assert.Equal(t, int64(379990), *got[0].Price)
	assert.Equal(t, int64(394990), *got[0].OriginalPrice)
	assert.Equal(t, "Under Construction", got[0].Status)
}

func TestFeedFailureYieldsNothing(t *testing.T) {
	srv, _ := newServer(t)
	assert.Empty(t, newExtractor(srv.URL, "nowhere", models.TypePlan).FetchListings(context.Background()))
}

func TestFlexString(t *testing.T) {
	var v struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "$363s", "b": 2431.5, "c": null}`), &v))
	assert.Equal(t, flexString("$363s"), v.A)
	assert.Equal(t, flexString("2431.5"), v.B)
	assert.Equal(t, flexString(""), v.C)
}
