package elastic

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// Reserved per-hit metadata keys that can be merged into exported rows.
const (
	MetaID    = "_id"
	MetaIndex = "_index"
	MetaScore = "_score"
)

// MetaFields lists every metadata key a hit can provide.
var MetaFields = []string{MetaID, MetaIndex, MetaScore}

// AllIndices selects every index of the cluster.
const AllIndices = "_all"

// Client is the capability surface the exporter needs from a search cluster.
type Client interface {
	IndexExists(ctx context.Context, indices []string) (bool, error)
	GetMapping(ctx context.Context, index string) ([]string, error)
	Search(ctx context.Context, params SearchParams) (*Page, error)
	ScrollContinue(ctx context.Context, scrollID string, ttl time.Duration) (*Page, error)
	ClearScroll(ctx context.Context, scrollIDs []string) error
	Stop()
}

type SortField struct {
	Field string
	Order string
}

// SearchParams describes the initial scroll search.
type SearchParams struct {
	Index          string
	Query          map[string]interface{}
	Sort           []SortField
	Size           int
	TerminateAfter int
	SourceIncludes []string
	ScrollTTL      time.Duration
}

// Page is one batch of hits together with the cursor to fetch the next one.
type Page struct {
	ScrollID string
	Hits     []Hit
	Total    int64
}

type Hit struct {
	ID     string
	Index  string
	Score  *float64
	Source json.RawMessage
}

// Meta returns the metadata value stored under one of the reserved keys.
func (h Hit) Meta(key string) (interface{}, bool) {
	switch key {
	case MetaID:
		return h.ID, true
	case MetaIndex:
		return h.Index, true
	case MetaScore:
		if h.Score == nil {
			return nil, true
		}
		return *h.Score, true
	default:
		return nil, false
	}
}

// IsMetaField reports whether name is one of the reserved metadata keys.
func IsMetaField(name string) bool {
	for _, f := range MetaFields {
		if f == name {
			return true
		}
	}
	return false
}

// SearchBody builds the request body shared by all client versions.
func SearchBody(params SearchParams) map[string]interface{} {
	body := map[string]interface{}{
		"track_total_hits": true,
	}
	if len(params.Query) > 0 {
		body["query"] = params.Query
	}
	if params.Size > 0 {
		body["size"] = params.Size
	}
	if params.TerminateAfter > 0 {
		body["terminate_after"] = params.TerminateAfter
	}
	if len(params.Sort) > 0 {
		sort := make([]interface{}, 0, len(params.Sort))
		for _, s := range params.Sort {
			order := s.Order
			if order == "" {
				order = "asc"
			}
			sort = append(sort, map[string]interface{}{
				s.Field: map[string]interface{}{"order": order},
			})
		}
		body["sort"] = sort
	}
	if len(params.SourceIncludes) > 0 {
		body["_source"] = map[string]interface{}{
			"includes": params.SourceIncludes,
		}
	}
	return body
}

// FormatDuration renders d in the time unit syntax understood by Elasticsearch.
func FormatDuration(d time.Duration) string {
	switch {
	case d%time.Minute == 0:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	case d%time.Second == 0:
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	default:
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
}
