package export

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/pteich/esxport/elastic"
)

// planSearch turns the request into the initial scroll search. The query is passed
// through untouched.
func planSearch(req Request, indices []string) elastic.SearchParams {
	params := elastic.SearchParams{
		Index:     strings.Join(indices, ","),
		Query:     req.Query,
		Sort:      req.Sort,
		Size:      req.PageSize,
		ScrollTTL: req.ScrollTTL,
	}
	if req.ResultCap > 0 {
		params.TerminateAfter = req.ResultCap
	}
	if !req.AllFields() {
		params.SourceIncludes = req.Fields
	}
	return params
}

func logPlan(logger *zap.Logger, params elastic.SearchParams) {
	if ce := logger.Check(zap.DebugLevel, "search request"); ce != nil {
		query, _ := json.Marshal(params.Query)
		sort := make([]string, 0, len(params.Sort))
		for _, s := range params.Sort {
			sort = append(sort, s.Field+":"+s.Order)
		}
		fields := params.SourceIncludes
		if len(fields) == 0 {
			fields = []string{AllFields}
		}
		ce.Write(
			zap.String("indices", params.Index),
			zap.ByteString("query", query),
			zap.Strings("fields", fields),
			zap.Strings("sort", sort),
			zap.Int("size", params.Size),
			zap.Int("terminate_after", params.TerminateAfter),
		)
	}
}
