package v8

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pteich/esxport/elastic"
)

type recorded struct {
	method string
	path   string
	query  string
	body   map[string]interface{}
}

type fakeCluster struct {
	mu       sync.Mutex
	requests []recorded
	routes   map[string]func(w http.ResponseWriter)
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, &body)

	f.mu.Lock()
	f.requests = append(f.requests, recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: body})
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet && r.URL.Path == "/" {
		_, _ = w.Write([]byte(`{"version": {"number": "8.17.0", "build_flavor": "default"}, "tagline": "You Know, for Search"}`))
		return
	}
	if route, ok := f.routes[r.Method+" "+r.URL.Path]; ok {
		route(w)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"error": {"type": "not_found", "reason": "no route"}, "status": 404}`))
}

func (f *fakeCluster) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func respond(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestClient(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*Client, *fakeCluster) {
	t.Helper()
	cluster := &fakeCluster{routes: routes}
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	client, err := NewClient(NewConfig(srv.URL, "", "", srv.Client()))
	require.NoError(t, err)
	return client, cluster
}

func TestClientSearchAndScroll(t *testing.T) {
	page := `{"_scroll_id": "s1", "hits": {"total": {"value": 3}, "hits": [{"_id": "1", "_index": "i", "_source": {"a": 1}}]}}`
	client, cluster := newTestClient(t, map[string]func(w http.ResponseWriter){
		"POST /logs-a,logs-b/_search":  respond(http.StatusOK, page),
		"POST /_search/scroll":         respond(http.StatusOK, `{"_scroll_id": "s2", "hits": {"total": {"value": 3}, "hits": []}}`),
		"DELETE /_search/scroll/s1,s2": respond(http.StatusOK, `{"succeeded": true}`),
	})
	ctx := context.Background()

	res, err := client.Search(ctx, elastic.SearchParams{
		Index:     "logs-a,logs-b",
		Query:     elastic.NewMatchAllQuery().Build(),
		Size:      10,
		ScrollTTL: 30 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", res.ScrollID)
	assert.EqualValues(t, 3, res.Total)
	require.Len(t, res.Hits, 1)

	req := cluster.last()
	assert.Contains(t, req.query, "scroll=1800000ms")
	assert.EqualValues(t, 10, req.body["size"])
	assert.Equal(t, true, req.body["track_total_hits"])

	next, err := client.ScrollContinue(ctx, "s1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "s2", next.ScrollID)
	assert.Empty(t, next.Hits)
	assert.Equal(t, "s1", cluster.last().body["scroll_id"])

	require.NoError(t, client.ClearScroll(ctx, []string{"s1", "s2"}))
}

func TestClientScrollExpired(t *testing.T) {
	client, _ := newTestClient(t, map[string]func(w http.ResponseWriter){
		"POST /_search/scroll": respond(http.StatusNotFound, `{"error": {"type": "search_context_missing_exception"}, "status": 404}`),
	})

	_, err := client.ScrollContinue(context.Background(), "gone", time.Minute)
	assert.ErrorIs(t, err, elastic.ErrScrollExpired)
}

func TestClientSearchBadRequest(t *testing.T) {
	client, _ := newTestClient(t, map[string]func(w http.ResponseWriter){
		"POST /logs/_search": respond(http.StatusBadRequest, `{"error": {"type": "parsing_exception", "reason": "bad"}, "status": 400}`),
	})

	_, err := client.Search(context.Background(), elastic.SearchParams{Index: "logs", ScrollTTL: time.Minute})
	require.Error(t, err)
	assert.True(t, elastic.IsBadRequest(err))
	assert.False(t, elastic.IsConnectionError(err))
}

func TestClientIndexExistsAndMapping(t *testing.T) {
	client, _ := newTestClient(t, map[string]func(w http.ResponseWriter){
		"HEAD /logs":         respond(http.StatusOK, ""),
		"GET /logs/_mapping": respond(http.StatusOK, `{"logs": {"mappings": {"properties": {"msg": {"type": "text"}}}}}`),
	})
	ctx := context.Background()

	ok, err := client.IndexExists(ctx, []string{"logs"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.IndexExists(ctx, []string{"missing"})
	require.NoError(t, err)
	assert.False(t, ok)

	fields, err := client.GetMapping(ctx, "logs")
	require.NoError(t, err)
	assert.Equal(t, []string{"msg"}, fields)
}

func TestClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(NewConfig(url, "", "", &http.Client{Transport: http.DefaultTransport}))
	require.NoError(t, err)

	_, err = client.IndexExists(context.Background(), []string{"logs"})
	assert.Error(t, err)
}
