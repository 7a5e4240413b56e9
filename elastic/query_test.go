package elastic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoolQuery(t *testing.T) {
	q := NewBoolQuery().
		Filter(NewRangeQuery("@timestamp").Gte("2023-01-01").Lte("2023-02-01")).
		Must(NewQueryStringQuery("status:200"))

	assert.Equal(t, map[string]interface{}{
		"bool": map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{"query_string": map[string]interface{}{"query": "status:200"}},
			},
			"filter": []interface{}{
				map[string]interface{}{"range": map[string]interface{}{
					"@timestamp": map[string]interface{}{"gte": "2023-01-01", "lte": "2023-02-01"},
				}},
			},
		},
	}, q.Build())
}

func TestRawStringQuery(t *testing.T) {
	q, err := NewRawStringQuery(`{"term": {"user": "kimchy"}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"user": "kimchy"}}, q.Build())

	wrapped, err := NewRawStringQuery(`{"query": {"match_all": {}}}`)
	require.NoError(t, err)
	assert.Equal(t, NewMatchAllQuery().Build(), wrapped.Build())

	_, err = NewRawStringQuery(`{"term":`)
	assert.Error(t, err)
}
