package elastic

import (
	"encoding/json"
	"fmt"
)

// Query renders itself to the JSON structure of the query DSL.
type Query interface {
	Build() map[string]interface{}
}

type BoolQuery struct {
	must   []Query
	filter []Query
}

func NewBoolQuery() *BoolQuery {
	return &BoolQuery{}
}

func (q *BoolQuery) Must(query Query) *BoolQuery {
	q.must = append(q.must, query)
	return q
}

func (q *BoolQuery) Filter(query Query) *BoolQuery {
	q.filter = append(q.filter, query)
	return q
}

func (q *BoolQuery) Build() map[string]interface{} {
	boolQuery := make(map[string]interface{})
	if len(q.must) > 0 {
		boolQuery["must"] = buildAll(q.must)
	}
	if len(q.filter) > 0 {
		boolQuery["filter"] = buildAll(q.filter)
	}
	return map[string]interface{}{"bool": boolQuery}
}

func buildAll(queries []Query) []interface{} {
	out := make([]interface{}, 0, len(queries))
	for _, q := range queries {
		out = append(out, q.Build())
	}
	return out
}

type RangeQuery struct {
	field  string
	bounds map[string]interface{}
}

func NewRangeQuery(field string) *RangeQuery {
	return &RangeQuery{
		field:  field,
		bounds: make(map[string]interface{}),
	}
}

func (q *RangeQuery) Gte(value string) *RangeQuery {
	q.bounds["gte"] = value
	return q
}

func (q *RangeQuery) Lte(value string) *RangeQuery {
	q.bounds["lte"] = value
	return q
}

func (q *RangeQuery) Build() map[string]interface{} {
	return map[string]interface{}{
		"range": map[string]interface{}{q.field: q.bounds},
	}
}

type QueryStringQuery struct {
	query string
}

func NewQueryStringQuery(query string) *QueryStringQuery {
	return &QueryStringQuery{query: query}
}

func (q *QueryStringQuery) Build() map[string]interface{} {
	return map[string]interface{}{
		"query_string": map[string]interface{}{"query": q.query},
	}
}

type MatchAllQuery struct{}

func NewMatchAllQuery() *MatchAllQuery {
	return &MatchAllQuery{}
}

func (q *MatchAllQuery) Build() map[string]interface{} {
	return map[string]interface{}{"match_all": map[string]interface{}{}}
}

// RawQuery passes a decoded query DSL object through untouched.
type RawQuery struct {
	query map[string]interface{}
}

// NewRawQuery wraps an already decoded query. A full search body ({"query": {...}})
// is unwrapped to its query clause.
func NewRawQuery(query map[string]interface{}) *RawQuery {
	if inner, ok := query["query"].(map[string]interface{}); ok && len(query) == 1 {
		query = inner
	}
	return &RawQuery{query: query}
}

// NewRawStringQuery decodes a JSON query string.
func NewRawStringQuery(rawQuery string) (*RawQuery, error) {
	var query map[string]interface{}
	if err := json.Unmarshal([]byte(rawQuery), &query); err != nil {
		return nil, fmt.Errorf("decode raw query: %w", err)
	}
	return NewRawQuery(query), nil
}

func (q *RawQuery) Build() map[string]interface{} {
	return q.query
}
