package export

import (
	"context"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pteich/esxport/elastic"
)

const mappingWorkers = 4

// sort keys the cluster understands without a mapping entry
var builtinSortFields = map[string]struct{}{
	"_score": {},
	"_doc":   {},
}

// resolveIndices checks that the selected indices exist. Selecting _all skips the
// check and replaces the whole selector.
func (e *Exporter) resolveIndices(ctx context.Context, req Request) ([]string, error) {
	for _, idx := range req.Indices {
		if idx == elastic.AllIndices {
			return []string{elastic.AllIndices}, nil
		}
	}

	exists, err := callES(ctx, e, "index check", func(ctx context.Context) (bool, error) {
		return e.client.IndexExists(ctx, req.Indices)
	})
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &IndexNotFoundError{Indices: req.Indices, URL: e.url}
	}
	return req.Indices, nil
}

// validateFields checks every requested and sort field against the union of the
// mappings of all indices. Requesting all fields skips the check.
func (e *Exporter) validateFields(ctx context.Context, req Request, indices []string) error {
	if req.AllFields() {
		return nil
	}

	expected := make([]string, 0, len(req.Fields)+len(req.Sort))
	expected = append(expected, req.Fields...)
	for _, s := range req.Sort {
		if _, ok := builtinSortFields[s.Field]; !ok {
			expected = append(expected, s.Field)
		}
	}
	if len(expected) == 0 {
		return nil
	}

	mappings := make([][]string, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mappingWorkers)
	for i, index := range indices {
		g.Go(func() error {
			fields, err := callES(gctx, e, "get mapping", func(ctx context.Context) ([]string, error) {
				return e.client.GetMapping(ctx, index)
			})
			if err != nil {
				return err
			}
			mappings[i] = fields
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	known := make(map[string]struct{})
	for _, fields := range mappings {
		for _, f := range fields {
			known[f] = struct{}{}
		}
	}
	e.logger.Debug("validating fields",
		zap.Strings("fields", expected),
		zap.Int("mapped_fields", len(known)),
	)

	for _, field := range expected {
		if !fieldKnown(field, known) {
			return &FieldNotFoundError{Field: field}
		}
	}
	return nil
}

func fieldKnown(field string, known map[string]struct{}) bool {
	if _, ok := known[field]; ok {
		return true
	}
	if !strings.ContainsAny(field, "*?[") {
		return false
	}
	for k := range known {
		if ok, _ := path.Match(field, k); ok {
			return true
		}
	}
	return false
}
