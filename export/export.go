package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/esxport/elastic"
	"github.com/pteich/esxport/flags"
	"github.com/pteich/esxport/formats"
	"github.com/pteich/esxport/metrics"
	"github.com/pteich/esxport/retry"
)

// Formatter writes the rows of a spool file to the final output.
type Formatter interface {
	Run(ctx context.Context, spoolPath string) (int64, error)
}

// Result summarizes a finished export.
type Result struct {
	Total   int64 // matches reported by the cluster
	Written int64 // rows written to Output
	Output  string
	State   State
}

type Exporter struct {
	client   elastic.Client
	url      string
	policy   retry.Policy
	logger   *zap.Logger
	metrics  *metrics.Recorder
	progress io.Writer
	stdout   io.Writer
}

type Option func(*Exporter)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// WithRetryPolicy overrides attempts and delay. Retryable is always the
// connection error check of the elastic package unless set.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *Exporter) {
		e.policy = p
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Exporter) {
		e.metrics = m
	}
}

// WithProgress renders progress bars to w.
func WithProgress(w io.Writer) Option {
	return func(e *Exporter) {
		e.progress = w
	}
}

// WithURL sets the cluster address used in error messages.
func WithURL(url string) Option {
	return func(e *Exporter) {
		e.url = url
	}
}

// WithStdout sets the writer used for the output path "-".
func WithStdout(w io.Writer) Option {
	return func(e *Exporter) {
		e.stdout = w
	}
}

func New(client elastic.Client, opts ...Option) *Exporter {
	e := &Exporter{
		client: client,
		policy: retry.Policy{
			Retries: retry.DefaultRetries,
			Delay:   retry.DefaultDelay,
		},
		logger: zap.NewNop(),
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.policy.Retryable == nil {
		e.policy.Retryable = elastic.IsConnectionError
	}
	if e.policy.Logger == nil {
		e.policy.Logger = e.logger
	}
	if e.policy.OnRetry == nil {
		e.policy.OnRetry = e.metrics.Retry
	}
	return e
}

// callES runs fn under the retry policy. Exhausted retries become a ConnectionError.
func callES[T any](ctx context.Context, e *Exporter, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := retry.Call(ctx, e.policy, op, fn)
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return v, &ConnectionError{Op: op, Err: exhausted.Err}
	}
	return v, err
}

// Export validates the request against the cluster, drains the scroll into a spool
// file next to the output and finally writes the output from the spool.
//
// Nothing is written when the query matches no documents. The spool is removed
// once the write phase starts, whatever its outcome. A failure while scrolling
// keeps the spool with the rows read so far.
func (e *Exporter) Export(ctx context.Context, req Request) (Result, error) {
	res := Result{Output: req.Outfile, State: StateInit}

	req, err := NewRequest(req)
	if err != nil {
		return res, err
	}
	res.Output = req.Outfile

	indices, err := e.resolveIndices(ctx, req)
	if err != nil {
		return res, err
	}
	if err := e.validateFields(ctx, req, indices); err != nil {
		return res, err
	}

	params := planSearch(req, indices)
	logPlan(e.logger, params)

	s := newScroller(e, req)
	err = s.run(ctx, params)
	res.Total = s.total
	res.State = s.outcome
	if err != nil {
		if s.spool != nil {
			if cerr := s.spool.Close(); cerr != nil {
				e.logger.Warn("failed to close intermediate file", zap.Error(cerr))
			}
			e.logger.Error("export aborted, keeping intermediate file",
				zap.String("path", s.spool.Path()),
				zap.Int64("rows", s.spool.Rows()),
			)
		}
		return res, err
	}

	if s.spool == nil {
		e.logger.Info("no documents matched the query")
		return res, nil
	}

	res.Written, err = e.write(ctx, req, s.spool)
	e.metrics.RowsWritten(res.Written)
	return res, err
}

func (e *Exporter) write(ctx context.Context, req Request, spool *formats.Spool) (written int64, err error) {
	defer func() {
		if rerr := spool.Remove(); rerr != nil {
			e.logger.Warn("failed to remove intermediate file",
				zap.String("path", spool.Path()),
				zap.Error(rerr),
			)
		}
	}()

	if err := spool.Close(); err != nil {
		return 0, err
	}
	rows := spool.Rows()
	if rows == 0 {
		e.logger.Info("no matching rows for requested fields", zap.Strings("fields", req.Fields))
		return 0, nil
	}

	// header discovery runs before the output file is created
	schema, err := formats.ReadSchema(spool.Path())
	if err != nil {
		return 0, fmt.Errorf("read intermediate file: %w", err)
	}
	if len(schema) == 0 {
		return 0, fmt.Errorf("intermediate file holds %d rows without columns", rows)
	}

	out, closeOut, err := e.openOutput(req.Outfile)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = fmt.Errorf("close output file: %w", cerr)
		}
	}()

	bar := e.newBar(rows, "write")
	defer bar.Finish()

	written, err = e.formatter(req, schema, out, bar).Run(ctx, spool.Path())
	if err != nil {
		return written, fmt.Errorf("write %s output: %w", req.Format, err)
	}
	if written != rows {
		return written, fmt.Errorf("wrote %d of %d spooled rows", written, rows)
	}

	e.logger.Info("export written",
		zap.String("output", req.Outfile),
		zap.String("format", req.Format),
		zap.Int64("rows", written),
	)
	return written, nil
}

func (e *Exporter) formatter(req Request, schema []string, out io.Writer, bar *pb.ProgressBar) Formatter {
	switch req.Format {
	case flags.FormatJSON:
		return formats.JSON{
			Outfile:    out,
			ProgessBar: bar,
		}
	default:
		return formats.CSV{
			Delimiter:  req.Delimiter,
			Schema:     schema,
			Outfile:    out,
			ProgessBar: bar,
			Logger:     e.logger,
		}
	}
}

func (e *Exporter) openOutput(outfile string) (io.Writer, func() error, error) {
	if outfile == "-" {
		return e.stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outfile)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}

// newBar returns a progress bar that is only rendered when progress output is set.
func (e *Exporter) newBar(total int64, prefix string) *pb.ProgressBar {
	bar := pb.New64(total).Set("prefix", prefix+" ")
	if e.progress == nil {
		return bar.SetWriter(io.Discard)
	}
	return bar.SetWriter(e.progress).Start()
}

// Run executes one export as configured on the command line.
func Run(ctx context.Context, conf *flags.Flags) (err error) {
	logger := NewLogger(conf.Debug)
	defer func() {
		_ = logger.Sync()
	}()

	req, err := RequestFromFlags(conf)
	if err != nil {
		logger.Error("invalid export request", zap.Error(err))
		return err
	}

	delay := retry.DefaultDelay
	if conf.RetryDelay != "" {
		delay, err = time.ParseDuration(conf.RetryDelay)
		if err != nil {
			logger.Error("invalid retry delay", zap.String("delay", conf.RetryDelay), zap.Error(err))
			return fmt.Errorf("invalid retry delay: %w", err)
		}
	}

	client, err := createClient(conf, logger)
	if err != nil {
		logger.Error("failed to create elasticsearch client",
			zap.String("url", conf.ElasticURL),
			zap.Error(err),
		)
		return &ConnectionError{Op: "connect", Err: err}
	}
	defer client.Stop()

	recorder := metrics.NewRecorder()
	if conf.MetricsFile != "" {
		defer func() {
			recorder.Finish(err == nil)
			if werr := recorder.WriteTextfile(conf.MetricsFile); werr != nil {
				logger.Warn("failed to write metrics file",
					zap.String("path", conf.MetricsFile),
					zap.Error(werr),
				)
			}
		}()
	}

	opts := []Option{
		WithURL(conf.ElasticURL),
		WithLogger(logger),
		WithMetrics(recorder),
		WithRetryPolicy(retry.Policy{Retries: conf.Retries, Delay: delay}),
	}
	if conf.Progress && req.Outfile != "-" {
		opts = append(opts, WithProgress(os.Stderr))
	}

	start := time.Now()
	res, err := New(client, opts...).Export(ctx, req)
	if err != nil {
		logger.Error("export failed",
			zap.Stringer("state", res.State),
			zap.Int64("total", res.Total),
			zap.Error(err),
		)
		return err
	}

	logger.Info("export finished",
		zap.String("output", res.Output),
		zap.Int64("total", res.Total),
		zap.Int64("written", res.Written),
		zap.Stringer("state", res.State),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
