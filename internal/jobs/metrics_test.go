package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerCountsOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("scan").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("scan").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("scan", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("scan", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("scan")))
}

func TestExpiringGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetExpiring(3, 4)
	require.Equal(t, 4.0, testutil.ToFloat64(m.expiring.WithLabelValues("3")))

	m.ResetExpiring()
	require.Equal(t, 0, testutil.CollectAndCount(m.expiring))

	var nilMetrics *Metrics
	nilMetrics.SetExpiring(1, 1)
	require.NoError(t, nilMetrics.Track("noop").End(nil))
}
