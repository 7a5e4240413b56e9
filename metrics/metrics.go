// Package metrics records the outcome of an export run in a private Prometheus
// registry. Exports are batch jobs, so the registry is written once to a file that
// the node exporter textfile collector can pick up instead of being scraped.
//
// All methods are safe to call on a nil *Recorder.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "esxport"

type Recorder struct {
	registry *prometheus.Registry
	started  time.Time

	documentsFound prometheus.Gauge
	rowsWritten    prometheus.Counter
	pagesFetched   prometheus.Counter
	retries        *prometheus.CounterVec
	starvations    prometheus.Counter
	duration       prometheus.Gauge
	lastSuccess    prometheus.Gauge
	lastFailure    prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
		documentsFound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents_found",
			Help:      "Number of documents matching the export query.",
		}),
		rowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written to the output file.",
		}),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Non-empty result pages received from the cluster.",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Requests retried after a connection error.",
		}, []string{"op"}),
		starvations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scroll_starvations_total",
			Help:      "Scrolls that ended early because the cursor returned no hits.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Wall time of the export run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last successful export finished.",
		}),
		lastFailure: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_failure_timestamp_seconds",
			Help:      "Unix time the last failed export finished.",
		}),
	}

	r.registry.MustRegister(
		r.documentsFound,
		r.rowsWritten,
		r.pagesFetched,
		r.retries,
		r.starvations,
		r.duration,
		r.lastSuccess,
		r.lastFailure,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) DocumentsFound(n int64) {
	if r == nil {
		return
	}
	r.documentsFound.Set(float64(n))
}

func (r *Recorder) RowsWritten(n int64) {
	if r == nil {
		return
	}
	r.rowsWritten.Add(float64(n))
}

func (r *Recorder) PageFetched() {
	if r == nil {
		return
	}
	r.pagesFetched.Inc()
}

func (r *Recorder) Retry(op string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(op).Inc()
}

func (r *Recorder) Starved() {
	if r == nil {
		return
	}
	r.starvations.Inc()
}

// Finish stamps duration and the success or failure time of the run.
func (r *Recorder) Finish(success bool) {
	if r == nil {
		return
	}
	now := time.Now()
	r.duration.Set(now.Sub(r.started).Seconds())
	if success {
		r.lastSuccess.Set(float64(now.Unix()))
	} else {
		r.lastFailure.Set(float64(now.Unix()))
	}
}

// WriteTextfile writes all metrics in the text exposition format. The file is
// replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
