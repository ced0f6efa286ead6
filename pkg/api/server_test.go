package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminalab/mindloom/pkg/aggregator"
	"github.com/luminalab/mindloom/pkg/analysis"
	"github.com/luminalab/mindloom/pkg/sources"
	"github.com/luminalab/mindloom/pkg/timeline"
)

func createTestLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{
		Level: log.ErrorLevel,
	})
}

type stubAdapter struct {
	items []timeline.Item
}

func (s stubAdapter) Name() string { return "stub" }

func (s stubAdapter) Fetch(ctx context.Context, start, end time.Time) ([]timeline.Item, error) {
	return s.items, nil
}

func newTestServer(items ...timeline.Item) *Server {
	extractor := analysis.NewExtractor(createTestLogger(), nil, "")
	agg := aggregator.New(createTestLogger(), extractor, []sources.Adapter{stubAdapter{items: items}}...)
	return NewServer(createTestLogger(), agg, nil)
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestStatisticsBeforeFirstRun(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodGet, "/api/statistics", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "no_data", resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Message)
}

func TestSearchRequiresQuery(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodGet, "/api/search", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_query", decodeError(t, rec).Error.Code)
}

func TestAggregateRejectsInvalidBody(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodPost, "/api/aggregate", "not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", decodeError(t, rec).Error.Code)
}

func TestAggregateRejectsInvertedRange(t *testing.T) {
	body := `{"start":"2025-03-10T00:00:00Z","end":"2025-03-01T00:00:00Z"}`
	rec := doRequest(t, newTestServer(), http.MethodPost, "/api/aggregate", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_range", decodeError(t, rec).Error.Code)
}

func TestAggregateThenRead(t *testing.T) {
	ts := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	item := timeline.NewItem(timeline.SourceNote, "n1", "Deployment notes",
		"kubernetes deployment kubernetes deployment", ts, ts)
	s := newTestServer(item)

	rec := doRequest(t, s, http.MethodPost, "/api/aggregate",
		`{"start":"2025-03-01T00:00:00Z","end":"2025-03-31T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result timeline.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Items, 1)
	assert.NotEmpty(t, result.Items[0].ExtractedConcepts)

	rec = doRequest(t, s, http.MethodGet, "/api/timeline", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var items []timeline.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 1)

	rec = doRequest(t, s, http.MethodGet, "/api/statistics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/search?q=kubernetes", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 1)

	rec = doRequest(t, s, http.MethodGet, "/api/clusters", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBatchEndpointsWithoutProcessor(t *testing.T) {
	s := newTestServer()

	for _, route := range []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/batch/start"},
		{http.MethodPost, "/api/batch/stop"},
		{http.MethodGet, "/api/batch/status"},
	} {
		rec := doRequest(t, s, route.method, route.target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, route.target)
		assert.Equal(t, "batch_unavailable", decodeError(t, rec).Error.Code, route.target)
	}
}
