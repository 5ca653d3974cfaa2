package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newhome-tracker/api"
	"newhome-tracker/metrics"
	"newhome-tracker/models"
	"newhome-tracker/storage"
	"newhome-tracker/storage/storagetest"
	"newhome-tracker/utils"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func i64(v int64) *int64 { return &v }

type memCache struct {
	mu      sync.Mutex
	payload []byte
	sets    int
}

func (c *memCache) Get(context.Context) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload, c.payload != nil
}

func (c *memCache) Set(_ context.Context, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payload = p
	c.sets++
	return nil
}

func (c *memCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payload = nil
	return nil
}

// seed stores a catalog with one recently changed listing, one stale change,
// one move-in home and one unpriced plan.
func seed(t *testing.T) *storage.SQLStore {
	t.Helper()
	s := storagetest.NewStore(t)
	ctx := context.Background()

	sess, err := s.Session(ctx)
	require.NoError(t, err)
	defer sess.Close()
	tx, err := sess.Begin(ctx)
	require.NoError(t, err)

	ppsf := 159.6
	burnet := &models.Listing{PlanName: "Burnet", Company: "UnionMain Homes", Community: "Elevon",
		Type: models.TypePlan, Price: i64(399000), Sqft: i64(2500), Stories: "2", PricePerSqft: &ppsf, LastUpdated: now}
	home := &models.Listing{PlanName: "123 Main St", Company: "UnionMain Homes", Community: "Elevon",
		Type: models.TypeNow, Price: i64(437990), Address: "123 Main St, Anytown", LastUpdated: now}
	dayton := &models.Listing{PlanName: "Dayton", Company: "M/I Homes", Community: "Wildflower Ranch",
		Type: models.TypePlan, Price: i64(389990), LastUpdated: now}
	llano := &models.Listing{PlanName: "Llano", Company: "UnionMain Homes", Community: "Elevon",
		Type: models.TypePlan, LastUpdated: now}
	for _, l := range []*models.Listing{dayton, burnet, home, llano} {
		require.NoError(t, tx.InsertListing(ctx, l))
	}
	require.NoError(t, tx.AppendPriceHistory(ctx, burnet.ID, 425000, 399000, now.Add(-time.Hour)))
	require.NoError(t, tx.AppendPriceHistory(ctx, dayton.ID, 399990, 389990, now.Add(-25*time.Hour)))
	require.NoError(t, tx.Commit())
	return s
}

func newServer(t *testing.T, s storage.ListingStore, cfg api.Config, opts ...api.Option) *httptest.Server {
	t.Helper()
	opts = append([]api.Option{api.WithClock(utils.NewMockClock(now))}, opts...)
	srv := httptest.NewServer(api.NewServer(s, utils.NewNopLogger(), cfg, opts...).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func getPlans(t *testing.T, base string) ([]map[string]any, *http.Response) {
	t.Helper()
	resp, err := http.Get(base + "/api/plans")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out, resp
}

func TestPlansFiltersSortsAndFlags(t *testing.T) {
	srv := newServer(t, seed(t), api.Config{})
	plans, _ := getPlans(t, srv.URL)
	require.Len(t, plans, 3, "unpriced Llano must not be served")

	assert.Equal(t, "123 Main St", plans[0]["plan_name"])
	assert.Equal(t, "Burnet", plans[1]["plan_name"])
	assert.Equal(t, "Dayton", plans[2]["plan_name"])

	burnet := plans[1]
	assert.Equal(t, 399000.0, burnet["price"])
	assert.Equal(t, 2500.0, burnet["sqft"])
	assert.Equal(t, "2", burnet["stories"])
	assert.Equal(t, 159.6, burnet["price_per_sqft"])
	assert.Equal(t, "plan", burnet["type"])
	assert.Nil(t, burnet["address"])
	assert.Equal(t, true, burnet["price_changed_recently"])

	home := plans[0]
	assert.Equal(t, "now", home["type"])
	assert.Equal(t, "123 Main St, Anytown", home["address"])
	assert.Nil(t, home["sqft"])
	assert.Nil(t, home["stories"])
	assert.Nil(t, home["price_per_sqft"])
	assert.Equal(t, false, home["price_changed_recently"])

	assert.Equal(t, false, plans[2]["price_changed_recently"], "change older than the window")
	for _, p := range plans {
		for _, k := range []string{"plan_name", "price", "company", "community", "last_updated"} {
			assert.NotNil(t, p[k], "%s missing on %v", k, p["plan_name"])
		}
	}
}

func TestPlansEmptyStoreIsEmptyArray(t *testing.T) {
	srv := newServer(t, storagetest.NewStore(t), api.Config{})
	resp, err := http.Get(srv.URL + "/api/plans")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "[]", string(body))
}

func TestPlansUsesCache(t *testing.T) {
	cache := &memCache{}
	srv := newServer(t, seed(t), api.Config{}, api.WithPlansCache(cache))

	_, first := getPlans(t, srv.URL)
	assert.Equal(t, "MISS", first.Header.Get("X-Cache"))
	_, second := getPlans(t, srv.URL)
	assert.Equal(t, "HIT", second.Header.Get("X-Cache"))
	assert.Equal(t, 1, cache.sets)

	require.NoError(t, cache.Invalidate(context.Background()))
	_, third := getPlans(t, srv.URL)
	assert.Equal(t, "MISS", third.Header.Get("X-Cache"))
}

func TestHealth(t *testing.T) {
	srv := newServer(t, storagetest.NewStore(t), api.Config{})
	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "ok"}, body)
}

func TestCORSAllowsFrontendOrigin(t *testing.T) {
	srv := newServer(t, storagetest.NewStore(t), api.Config{FrontendOrigins: []string{"http://localhost:5173"}})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	srv := newServer(t, storagetest.NewStore(t), api.Config{}, api.WithMetrics(m))

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `newhome_http_requests_total{route="/api/health",status="200"} 1`)
}

func TestFrontendHosting(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<div id=app></div>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "app.js"), []byte("console.log(1)"), 0o644))
	srv := newServer(t, storagetest.NewStore(t), api.Config{StaticRoot: root})

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/", http.StatusOK, "<div id=app></div>"},
		{"/assets/app.js", http.StatusOK, "console.log(1)"},
		{"/communities/elevon", http.StatusOK, "<div id=app></div>"},
		{"/assets/missing.js", http.StatusNotFound, ""},
		{"/api/nope", http.StatusNotFound, ""},
		{"/../secret.txt", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantBody != "" {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.wantBody, string(body))
			}
		})
	}
}

func TestFrontendDisabledWithoutRoot(t *testing.T) {
	srv := newServer(t, storagetest.NewStore(t), api.Config{StaticRoot: filepath.Join(t.TempDir(), "missing")})
	resp, err := http.Get(srv.URL + "/communities/elevon")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
