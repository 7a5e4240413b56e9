package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.DocumentsFound(10)
	r.RowsWritten(4)
	r.RowsWritten(6)
	r.PageFetched()
	r.Retry("search")
	r.Retry("search")
	r.Starved()
	r.Finish(true)

	assert.Equal(t, 10.0, testutil.ToFloat64(r.documentsFound))
	assert.Equal(t, 10.0, testutil.ToFloat64(r.rowsWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.pagesFetched))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.retries.WithLabelValues("search")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.starvations))
	assert.Greater(t, testutil.ToFloat64(r.lastSuccess), 0.0)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.lastFailure))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.RowsWritten(3)
	r.Finish(false)

	path := filepath.Join(t.TempDir(), "esxport.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "esxport_rows_written_total 3")
	assert.Contains(t, string(data), "esxport_last_failure_timestamp_seconds")
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.DocumentsFound(1)
		r.RowsWritten(1)
		r.PageFetched()
		r.Retry("x")
		r.Starved()
		r.Finish(true)
		assert.NoError(t, r.WriteTextfile("ignored"))
	})
}
