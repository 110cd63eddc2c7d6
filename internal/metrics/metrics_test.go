package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSuccess(t *testing.T) {
	m := New()
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	m.ObserveSuccess("3.2", 412)
	m.ObserveSuccess("3.3", 420)

	assert.Equal(t, float64(412), testutil.ToFloat64(m.Entries.WithLabelValues("3.2")))
	assert.Equal(t, float64(420), testutil.ToFloat64(m.Entries.WithLabelValues("3.3")))
	assert.Equal(t, float64(1700000000), testutil.ToFloat64(m.LastSuccess.WithLabelValues("3.2")))
}

func TestObserveFailure(t *testing.T) {
	m := New()
	m.ObserveFailure("3.4")
	m.ObserveFailure("3.4")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Failures.WithLabelValues("3.4")))
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveFailure("3.2")

	assert.Equal(t, 1, testutil.CollectAndCount(a.Failures))
	assert.Equal(t, 0, testutil.CollectAndCount(b.Failures))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.now = func() time.Time { return time.Unix(1700000000, 0) }
	m.ObserveSuccess("3.2", 2)
	m.ObserveFailure("3.3")

	path := filepath.Join(t.TempDir(), "textfile", "classcatalog.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `classcatalog_entries{version="3.2"} 2`)
	assert.Contains(t, out, `classcatalog_version_failures_total{version="3.3"} 1`)
	assert.Contains(t, out, `classcatalog_last_success_timestamp_seconds{version="3.2"} 1.7e+09`)

	err = testutil.GatherAndCompare(m.Gatherer(), strings.NewReader(`
# HELP classcatalog_entries Number of entries in the catalog written for a version
# TYPE classcatalog_entries gauge
classcatalog_entries{version="3.2"} 2
`), "classcatalog_entries")
	assert.NoError(t, err)
}

func TestWriteTextfile_Disabled(t *testing.T) {
	assert.NoError(t, New().WriteTextfile(""))

	var m *Metrics
	assert.NoError(t, m.WriteTextfile("/nonexistent/x.prom"))
	assert.NotPanics(t, func() {
		m.ObserveSuccess("3.2", 1)
		m.ObserveFailure("3.2")
	})
}
