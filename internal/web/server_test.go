package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/regionmap/internal/config"
	"github.com/JonMunkholm/regionmap/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const testBilling = `state,ProductType,MRC,NRC
Texas,Fiber,10,5
Texas,Fiber,20,0
New Mexico,Voice,7.5,n/a
`

const testBoundaries = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"Texas","fips":"48"},"geometry":null},
{"type":"Feature","properties":{"name":"California","fips":"06"},"geometry":null},
{"type":"Feature","properties":{"name":"New Mexico","fips":"35"},"geometry":null}
]}`

type stringRows string

func (s stringRows) Name() string { return "test" }

func (s stringRows) LoadRows(_ context.Context, opts ...core.Option) ([]core.Row, error) {
	return core.Parse(string(s), opts...), nil
}

type stringBoundaries string

func (s stringBoundaries) LoadBoundaries(_ context.Context, opts ...core.Option) ([]core.BoundaryRecord, error) {
	return core.LoadBoundaries([]byte(s), "", opts...), nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second, ShutdownTimeout: time.Second},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, load bool) (*Server, *core.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := core.NewService(stringRows(testBilling), stringBoundaries(testBoundaries), core.ServiceConfig{
		Workers:    2,
		ReloadWait: 20 * time.Millisecond,
	}, logger)
	if load {
		_, err := svc.Reload(context.Background())
		require.NoError(t, err)
	}
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, svc
}

func do(t *testing.T, srv *Server, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestBeforeFirstLoad(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), false)

	rec := do(t, srv, http.MethodGet, "/api/regions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SNP001", gjson.Get(rec.Body.String(), "code").String())

	rec = do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "loading", gjson.Get(rec.Body.String(), "status").String())
}

func TestHandleRegions(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), true)

	rec := do(t, srv, http.MethodGet, "/api/regions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, geoJSONContentType, rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	require.True(t, gjson.Valid(body))
	assert.Equal(t, "FeatureCollection", gjson.Get(body, "type").String())
	require.Equal(t, int64(3), gjson.Get(body, "features.#").Int())

	texas := gjson.Get(body, "features.0.properties")
	assert.Equal(t, "Texas", texas.Get("name").String())
	assert.Equal(t, "48", texas.Get("fips").String())
	assert.True(t, texas.Get("billing.hasData").Bool())
	assert.Equal(t, int64(1), texas.Get("billing.totalPresentCategories").Int())
	assert.Equal(t, "Fiber", texas.Get("billing.categories.0.category").String())
	assert.Equal(t, int64(2), texas.Get("billing.categories.0.count").Int())
	assert.Equal(t, float64(30), texas.Get("billing.categories.0.mrc").Float())
	assert.Equal(t, float64(5), texas.Get("billing.categories.0.nrc").Float())

	california := gjson.Get(body, "features.1.properties.billing")
	assert.JSONEq(t, `{"hasData":false}`, california.Raw)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	rec = do(t, srv, http.MethodGet, "/api/regions", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestHandleRegion(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), true)

	rec := do(t, srv, http.MethodGet, "/api/regions/New%20Mexico", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "New Mexico", gjson.Get(body, "properties.name").String())
	assert.Equal(t, "Voice", gjson.Get(body, "properties.billing.categories.0.category").String())
	assert.Equal(t, float64(0), gjson.Get(body, "properties.billing.categories.0.nrc").Float())

	rec = do(t, srv, http.MethodGet, "/api/regions/Atlantis", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "REG001", gjson.Get(rec.Body.String(), "code").String())
}

func TestHandleSummary(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), true)

	t.Run("json", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/regions/Texas/summary", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Equal(t, "Texas", gjson.Get(body, "region").String())
		assert.True(t, gjson.Get(body, "hasData").Bool())
		assert.Equal(t, int64(2), gjson.Get(body, "lines.0.count").Int())
		assert.Equal(t, "30", gjson.Get(body, "totalMrc").String())
		assert.Equal(t, "5", gjson.Get(body, "totalNrc").String())
	})

	t.Run("text", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/regions/Texas/summary?format=text", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		want := "Region: Texas\n" +
			"Fiber: Count: 2, MRC: 30.00, NRC: 5.00\n" +
			"Total MRC Sum: 30.00\n" +
			"Total NRC Sum: 5.00\n"
		assert.Equal(t, want, rec.Body.String())
	})

	t.Run("html", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/regions/Texas/summary?format=html", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "<td>Fiber</td><td>2</td><td>30.00</td><td>5.00</td>")
	})

	t.Run("region without data", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/regions/California/summary", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.False(t, gjson.Get(body, "hasData").Bool())
		assert.Equal(t, int64(0), gjson.Get(body, "lines.#").Int())
		assert.Equal(t, "0", gjson.Get(body, "totalMrc").String())
	})

	t.Run("unsupported format", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/regions/Texas/summary?format=pdf", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "REQ001", gjson.Get(rec.Body.String(), "code").String())
	})
}

func TestHandleCategoriesAndLegend(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), true)

	rec := do(t, srv, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"categories":["Fiber","Voice"]}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/legend", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"classes":[
		{"label":"No Data","hasData":false,"regions":1},
		{"label":"Data","hasData":true,"regions":2}
	]}`, rec.Body.String())
}

func TestHandleSnapshot(t *testing.T) {
	srv, svc := newTestServer(t, testConfig(), true)
	snap, err := svc.Snapshot()
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/api/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Equal(t, snap.ID.String(), gjson.Get(body, "id").String())
	assert.Equal(t, "test", gjson.Get(body, "source").String())
	assert.Equal(t, int64(3), gjson.Get(body, "rows").Int())
	assert.Equal(t, int64(len(testBilling)), gjson.Get(body, "sourceBytes").Int())
	assert.Equal(t, int64(3), gjson.Get(body, "regions").Int())
	assert.Equal(t, int64(2), gjson.Get(body, "regionsWithData").Int())
	assert.Equal(t, int64(2), gjson.Get(body, "categories").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "warnings.total").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "warnings.byKind.non_numeric_amount").Int())
	assert.Equal(t, "n/a", gjson.Get(body, "warnings.entries.0.value").String())
}

func TestHandleReload(t *testing.T) {
	srv, svc := newTestServer(t, testConfig(), true)
	before, err := svc.Snapshot()
	require.NoError(t, err)

	rec := do(t, srv, http.MethodPost, "/api/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	after, err := svc.Snapshot()
	require.NoError(t, err)
	assert.NotEqual(t, before.ID, after.ID)
	assert.Equal(t, after.ID.String(), gjson.Get(rec.Body.String(), "id").String())
	assert.Equal(t, core.TriggerAPI, gjson.Get(rec.Body.String(), "trigger.reason").String())
	assert.Equal(t, core.TriggerAPI, after.Trigger.Reason)
}

func TestHandleReload_Busy(t *testing.T) {
	srv, svc := newTestServer(t, testConfig(), true)

	require.True(t, svc.Limiter().TryAcquire())
	defer svc.Limiter().Release()

	rec := do(t, srv, http.MethodPost, "/api/reload", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SNP002", gjson.Get(rec.Body.String(), "code").String())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHandleReload_APIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Security.ReloadAPIKeys = []string{"reload-key"}
	srv, _ := newTestServer(t, cfg, true)

	rec := do(t, srv, http.MethodPost, "/api/reload", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/reload", map[string]string{"X-API-Key": "reload-key"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, ReloadLimit: 1}
	srv, _ := newTestServer(t, cfg, true)

	rec := do(t, srv, http.MethodPost, "/api/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/reload", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", gjson.Get(rec.Body.String(), "code").String())
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec = do(t, srv, http.MethodGet, "/api/legend", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "read limit is separate from reload limit")
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), true)

	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "reloads.maxConcurrent").Int())

	rec = do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "regionmap_snapshot_rows"))
}

func TestSecurityHeaders(t *testing.T) {
	cfg := testConfig()
	cfg.Security.EnableCSP = true
	srv, _ := newTestServer(t, cfg, true)

	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestSummaryPopup_Escapes(t *testing.T) {
	index, cats := core.Aggregate(core.Parse("state,ProductType,MRC,NRC\nTexas,<b>Fiber</b>,1,2\n"), core.DefaultColumns())
	summary := core.Summarize(index, cats, "Texas")

	var b strings.Builder
	require.NoError(t, summaryPopup(summary).Render(context.Background(), &b))

	assert.NotContains(t, b.String(), "<b>Fiber</b>")
	assert.Contains(t, b.String(), "&lt;b&gt;Fiber&lt;/b&gt;")
	assert.Contains(t, b.String(), `data-has-data="true"`)

	b.Reset()
	require.NoError(t, summaryPopup(core.Summarize(index, cats, "Ohio")).Render(context.Background(), &b))
	assert.Contains(t, b.String(), "No categories")
}

func TestRespondError_LogLevel(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantLevel string
	}{
		{"missing snapshot is expected", core.ErrNoSnapshot, http.StatusServiceUnavailable, "WARN"},
		{"timeout is coded", fmt.Errorf("reload: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "WARN"},
		{"unknown region", fmt.Errorf("region %q: %w", "Atlantis", core.ErrUnknownRegion), http.StatusNotFound, "WARN"},
		{"unexpected failure", errors.New("render feature collection: boom"), http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			prev := slog.Default()
			slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
			t.Cleanup(func() { slog.SetDefault(prev) })

			rec := httptest.NewRecorder()
			respondError(rec, httptest.NewRequest(http.MethodGet, "/api/regions", nil), tt.err, 0)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLevel, gjson.Get(logs.String(), "level").String())
			assert.Equal(t, "/api/regions", gjson.Get(logs.String(), "path").String())
		})
	}
}

func TestHandleSummary_LogsRegion(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), true)

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	rec := do(t, srv, http.MethodGet, "/api/regions/Texas/summary?format=text", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		if gjson.Get(line, "msg").String() == "summary served" {
			found = true
			assert.Equal(t, "Texas", gjson.Get(line, "region").String())
			assert.Equal(t, "text", gjson.Get(line, "format").String())
		}
	}
	assert.True(t, found, "summary log line missing: %s", logs.String())
}
