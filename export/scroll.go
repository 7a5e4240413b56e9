package export

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/pteich/esxport/elastic"
	"github.com/pteich/esxport/formats"
)

// State is the position of an export in the scroll lifecycle.
type State int

const (
	StateInit State = iota
	StateFirstPage
	StateDraining
	StateCapReached
	StateExhausted
	StateStarved
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFirstPage:
		return "first_page"
	case StateDraining:
		return "draining"
	case StateCapReached:
		return "cap_reached"
	case StateExhausted:
		return "exhausted"
	case StateStarved:
		return "starved"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// scroller drains one scroll into a spool file.
type scroller struct {
	e         *Exporter
	req       Request
	flattener formats.Flattener

	state   State
	outcome State
	total   int64
	limit   int64
	seen    int64
	skipped int64 // hits without any of the requested fields
	cursors []string
	buffer  []*formats.Row
	spool   *formats.Spool
}

func newScroller(e *Exporter, req Request) *scroller {
	return &scroller{
		e:   e,
		req: req,
		flattener: formats.Flattener{
			PathDelimiter:  req.PathDelimiter,
			ValueDelimiter: string(req.Delimiter),
			IndexArrays:    !req.JoinArrays,
			MetaFields:     req.MetaFields,
		},
		state: StateInit,
	}
}

// run issues the initial search and pages through the scroll until the result
// limit is hit, the results are exhausted or the cursor starves. The spool is
// only created when the search matched anything. All cursors are released before
// run returns.
func (s *scroller) run(ctx context.Context, params elastic.SearchParams) error {
	defer s.release(ctx)

	s.state = StateFirstPage
	page, err := callES(ctx, s.e, "search", func(ctx context.Context) (*elastic.Page, error) {
		return s.e.client.Search(ctx, params)
	})
	if err != nil {
		if elastic.IsBadRequest(err) {
			return &InvalidQueryError{Err: err}
		}
		return err
	}

	s.total = page.Total
	s.e.metrics.DocumentsFound(s.total)
	s.e.logger.Info("found matching documents",
		zap.Int64("total", s.total),
		zap.String("indices", params.Index),
	)
	if s.total == 0 {
		s.track(page.ScrollID)
		s.state = StateExhausted
		return nil
	}

	s.limit = s.total
	if limit := s.req.Cap(); limit >= 0 && limit < s.limit {
		s.limit = limit
	}

	s.spool, err = formats.CreateSpool(s.req.Outfile)
	if err != nil {
		return err
	}

	bar := s.e.newBar(s.limit, "scroll")
	defer bar.Finish()

	s.state = StateDraining
	for s.state == StateDraining {
		s.track(page.ScrollID)

		if len(page.Hits) == 0 {
			s.starve()
			break
		}
		s.e.metrics.PageFetched()

		for _, hit := range page.Hits {
			s.seen++
			bar.Increment()
			if row := s.flattener.Row(hit); row.Len() > 0 {
				s.buffer = append(s.buffer, row)
			} else {
				s.skipped++
			}

			if len(s.buffer) >= s.req.FlushThreshold || s.seen == s.limit {
				if err := s.flush(); err != nil {
					return err
				}
			}
			if s.seen == s.limit {
				break
			}
		}

		if s.seen >= s.limit {
			if s.seen < s.total {
				s.state = StateCapReached
			} else {
				s.state = StateExhausted
			}
			break
		}

		page, err = s.next(ctx, page.ScrollID)
		if err != nil {
			// keep what was read so far
			return errors.Join(err, s.flush())
		}
	}

	if s.skipped > 0 {
		s.e.logger.Info("skipped documents without any requested field", zap.Int64("documents", s.skipped))
	}
	return s.flush()
}

// next fetches the following page. An expired cursor is handled like an empty page.
func (s *scroller) next(ctx context.Context, scrollID string) (*elastic.Page, error) {
	page, err := callES(ctx, s.e, "scroll", func(ctx context.Context) (*elastic.Page, error) {
		return s.e.client.ScrollContinue(ctx, scrollID, s.req.ScrollTTL)
	})
	if errors.Is(err, elastic.ErrScrollExpired) {
		s.e.logger.Debug("scroll cursor expired", zap.String("scroll_id", scrollID))
		return &elastic.Page{ScrollID: scrollID, Total: s.total}, nil
	}
	return page, err
}

func (s *scroller) starve() {
	s.state = StateStarved
	s.e.metrics.Starved()
	s.e.logger.Warn("scroll returned no more hits before all matching documents were read, output is incomplete",
		zap.Int64("read", s.seen),
		zap.Int64("expected", s.limit),
		zap.Int64("total", s.total),
	)
}

func (s *scroller) flush() error {
	if len(s.buffer) == 0 {
		return nil
	}
	if err := s.spool.Append(s.buffer); err != nil {
		return err
	}
	s.e.logger.Debug("flushed rows to spool",
		zap.Int("rows", len(s.buffer)),
		zap.Int64("spooled", s.spool.Rows()),
	)
	s.buffer = s.buffer[:0]
	return nil
}

func (s *scroller) track(scrollID string) {
	if scrollID == "" {
		return
	}
	for _, id := range s.cursors {
		if id == scrollID {
			return
		}
	}
	s.cursors = append(s.cursors, scrollID)
}

// release clears every cursor seen and records the state the scroll ended in. It
// runs even when ctx was cancelled, failures are only logged.
func (s *scroller) release(ctx context.Context) {
	defer func() {
		s.cursors = nil
		s.outcome, s.state = s.state, StateReleased
	}()
	if len(s.cursors) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.e.client.ClearScroll(ctx, s.cursors); err != nil {
		s.e.logger.Warn("failed to release scroll cursors",
			zap.Int("cursors", len(s.cursors)),
			zap.Error(err),
		)
		return
	}
	s.e.logger.Debug("released scroll cursors", zap.Int("cursors", len(s.cursors)))
}
