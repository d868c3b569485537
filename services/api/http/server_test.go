package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/printer-page-counter/internal/series"
	"github.com/02loveslollipop/printer-page-counter/services/api/config"
	"github.com/02loveslollipop/printer-page-counter/services/api/db"
)

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	ctx := context.Background()
	store := series.NewMemoryStore()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	for _, r := range []series.Reading{
		{Timestamp: base.Add(-48 * time.Hour), PeriodKey: "2024-05", SourceID: "imp-03-1", CounterTotal: series.Int64(1000)},
		{Timestamp: base, PeriodKey: "2024-06", SourceID: "imp-03-1", CounterTotal: series.Int64(1200), PeriodDelta: 200},
		{Timestamp: base.Add(time.Hour), PeriodKey: "2024-06", SourceID: "imp-04-1", CounterTotal: series.Int64(90)},
	} {
		require.NoError(t, store.Append(ctx, r.SourceID, r))
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(config.Config{Port: 0, BearerToken: token}, db.New(store), logger)
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta map[string]any  `json:"meta"`
}

func get(t *testing.T, s *Server, path string, header ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	var env envelope
	if rec.Code == http.StatusOK && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealthz(t *testing.T) {
	rec, _ := get(t, newTestServer(t, "secret"), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListSources(t *testing.T) {
	rec, env := get(t, newTestServer(t, ""), "/api/v1/sources")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))

	var ids []string
	require.NoError(t, json.Unmarshal(env.Data, &ids))
	assert.Equal(t, []string{"imp-03-1", "imp-04-1"}, ids)
	assert.EqualValues(t, 2, env.Meta["count"])
}

func TestSourceSeries(t *testing.T) {
	s := newTestServer(t, "")

	rec, env := get(t, s, "/api/v1/sources/imp-03-1/series")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []series.Reading
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	assert.Len(t, rows, 2)

	rec, env = get(t, s, "/api/v1/sources/imp-03-1/series?period=2024-06")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, int64(200), rows[0].PeriodDelta)
	assert.Equal(t, "2024-06", env.Meta["period"])

	rec, _ = get(t, s, "/api/v1/sources/imp-03-1/series?period=june")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = get(t, s, "/api/v1/sources/unknown/series")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestSourceIDValidation(t *testing.T) {
	s := newTestServer(t, "")
	for _, path := range []string{
		"/api/v1/sources/../series",
		"/api/v1/sources/%2E%2E/usage",
		"/api/v1/sources/a%5Cb/series",
	} {
		rec, _ := get(t, s, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestSourceUsage(t *testing.T) {
	rec, env := get(t, newTestServer(t, ""), "/api/v1/sources/imp-03-1/usage")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"period":"2024-05","pages":0,"readings":1},{"period":"2024-06","pages":200,"readings":1}]`, string(env.Data))
}

func TestLatestPeriod(t *testing.T) {
	rec, env := get(t, newTestServer(t, ""), "/api/v1/readings/latest-period")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-06", env.Meta["period"])

	var rows []series.Reading
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "imp-03-1", rows[0].SourceID)
	assert.Equal(t, "imp-04-1", rows[1].SourceID)
}

func TestTotals(t *testing.T) {
	rec, env := get(t, newTestServer(t, ""), "/api/v1/totals")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"imp-03-1":1200,"imp-04-1":90}`, string(env.Data))
	assert.EqualValues(t, 1290, env.Meta["sum"])
}

func TestBearerAuth(t *testing.T) {
	s := newTestServer(t, "secret")

	rec, _ := get(t, s, "/api/v1/totals")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = get(t, s, "/api/v1/totals", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = get(t, s, "/api/v1/totals", "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, "secret")
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/totals", nil)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
