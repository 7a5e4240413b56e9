package elastic

import (
	"errors"
	"sort"

	"github.com/tidwall/gjson"
)

var errInvalidResponse = errors.New("invalid search response")

// ParsePage decodes a search or scroll response body.
func ParsePage(body []byte) (*Page, error) {
	if !gjson.ValidBytes(body) {
		return nil, errInvalidResponse
	}
	res := gjson.ParseBytes(body)

	page := &Page{
		ScrollID: res.Get("_scroll_id").String(),
	}

	// ES 6 reports a plain number, later versions an object with value and relation
	total := res.Get("hits.total")
	if total.IsObject() {
		page.Total = total.Get("value").Int()
	} else {
		page.Total = total.Int()
	}

	hits := res.Get("hits.hits").Array()
	page.Hits = make([]Hit, 0, len(hits))
	for _, h := range hits {
		hit := Hit{
			ID:    h.Get("_id").String(),
			Index: h.Get("_index").String(),
		}
		if score := h.Get("_score"); score.Type == gjson.Number {
			v := score.Float()
			hit.Score = &v
		}
		if src := h.Get("_source"); src.Exists() {
			hit.Source = []byte(src.Raw)
		}
		page.Hits = append(page.Hits, hit)
	}

	return page, nil
}

// ParseMappingFields collects every field name from a get-mapping response. Object
// properties contribute both their own name and dotted sub-paths, multi-fields their
// dotted name (e.g. "title.keyword").
func ParseMappingFields(body []byte) ([]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, errInvalidResponse
	}

	seen := make(map[string]struct{})
	gjson.ParseBytes(body).ForEach(func(_, index gjson.Result) bool {
		mappings := index.Get("mappings")
		props := mappings.Get("properties")
		if !props.Exists() {
			// pre 7.x mappings are keyed by document type
			mappings.ForEach(func(_, typ gjson.Result) bool {
				collectProperties(typ.Get("properties"), "", seen)
				return true
			})
			return true
		}
		collectProperties(props, "", seen)
		return true
	})

	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields, nil
}

func collectProperties(props gjson.Result, prefix string, seen map[string]struct{}) {
	props.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if prefix != "" {
			name = prefix + "." + name
		}
		seen[name] = struct{}{}

		if sub := value.Get("properties"); sub.Exists() {
			collectProperties(sub, name, seen)
		}
		value.Get("fields").ForEach(func(multi, _ gjson.Result) bool {
			seen[name+"."+multi.String()] = struct{}{}
			return true
		})
		return true
	})
}
