package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zvonler/wallspider/graph"
	"github.com/zvonler/wallspider/logging"
	"github.com/zvonler/wallspider/model"
)

type recordingCrawler struct {
	nodeID, nodeType string
	opts             model.CrawlOptions
	records          []model.Record
	err              error
}

func (c *recordingCrawler) Crawl(ctx context.Context, nodeID, nodeType string, opts model.CrawlOptions) ([]model.Record, error) {
	c.nodeID, c.nodeType, c.opts = nodeID, nodeType, opts
	return c.records, c.err
}

func get(t *testing.T, crawler graph.NodeCrawler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewServer(crawler, logging.Discard()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestCrawlEndpoint(t *testing.T) {
	crawler := &recordingCrawler{records: []model.Record{
		{ID: "1", Message: "hi", By: "A", CreatedTime: 1577836800, ReadableTime: "Wed Jan 01 2020 00:00:00 GMT+0000 (UTC)"},
	}}

	rec := get(t, crawler, "/nodes/post/123_456?since=10&until=20")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	require.Equal(t, "123_456", crawler.nodeID)
	require.Equal(t, "post", crawler.nodeType)
	require.Equal(t, model.CrawlOptions{Since: 10, Until: 20}, crawler.opts)

	var records []model.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Equal(t, crawler.records, records)
}

func TestCrawlEndpointEmpty(t *testing.T) {
	rec := get(t, &recordingCrawler{}, "/nodes/comment/9?since_days_ago=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestCrawlEndpointBadQuery(t *testing.T) {
	crawler := &recordingCrawler{}
	rec := get(t, crawler, "/nodes/post/1?since=yesterday")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, crawler.nodeID)
}

func TestCrawlEndpointErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&graph.ValidationError{Field: "node type", Value: "reply", Err: graph.ErrInvalidNodeType}, http.StatusBadRequest},
		{fmt.Errorf("crawl post 1: %w", &graph.TransportError{Path: "/1", StatusCode: 500}), http.StatusBadGateway},
		{&graph.MalformedResponseError{Reason: "missing data"}, http.StatusBadGateway},
		{fmt.Errorf("%w: more than 5 pages", graph.ErrPageLimit), http.StatusBadGateway},
		{fmt.Errorf("crawl post 1: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("something else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := get(t, &recordingCrawler{err: tt.err}, "/nodes/post/1")
			require.Equal(t, tt.want, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

func TestHealthz(t *testing.T) {
	rec := get(t, &recordingCrawler{}, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCrawlEndpointWithRealCrawler(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/123/comments" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"data":[{"id":"c1","message":"hello","from":{"name":"Ann"},"created_time":"2020-01-01T00:00:00+0000"}],"paging":{}}`))
	}))
	defer api.Close()

	transport, err := graph.NewTransport(api.URL, graph.WithRoundTripper(http.DefaultTransport))
	require.NoError(t, err)
	crawler := graph.NewCrawler(graph.NewPaginator(transport), "tok")

	rec := get(t, crawler, "/nodes/post/123")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"id":"c1","message":"hello","by":"Ann","createdTime":1577836800,"readableTime":"Wed Jan 01 2020 00:00:00 GMT+0000 (UTC)"}]`, rec.Body.String())
}
