package pool

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsPoolActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	p := newTestPool(t, 2, WithMetrics(m), WithPanicHandler(func(int, any) {}))

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Execute(func() {}))
	}
	require.NoError(t, p.Execute(func() { panic("boom") }))
	require.NoError(t, p.Stop())

	require.Equal(t, float64(4), testutil.ToFloat64(m.JobsSubmitted))
	require.Equal(t, float64(4), testutil.ToFloat64(m.JobsStarted))
	require.Equal(t, float64(1), testutil.ToFloat64(m.JobsPanicked))
	require.Equal(t, float64(0), testutil.ToFloat64(m.BusyWorkers))
	require.Equal(t, float64(0), testutil.ToFloat64(m.QueueDepth))
	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 6, count)
}

func TestMetrics_BusyWorkersWhileExecuting(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	p := newTestPool(t, 1, WithMetrics(m))

	release := make(chan struct{})
	require.NoError(t, p.Execute(func() { <-release }))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.BusyWorkers) == 1
	}, time.Second, time.Millisecond)

	close(release)
	require.NoError(t, p.Stop())
	require.Equal(t, float64(0), testutil.ToFloat64(m.BusyWorkers))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.enqueued()
	m.rejected()
	m.submitted()
	m.started()
	m.finished(time.Millisecond)
	m.panicked()
}

func TestMetrics_QueueDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	p := newTestPool(t, 1, WithMetrics(m))

	release := make(chan struct{})
	require.NoError(t, p.Execute(func() { <-release }))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.BusyWorkers) == 1
	}, time.Second, time.Millisecond)

	// the single worker is busy, so these stay queued
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Execute(func() {}))
	}
	require.Equal(t, float64(3), testutil.ToFloat64(m.QueueDepth))

	close(release)
	require.NoError(t, p.Stop())
	require.Equal(t, float64(0), testutil.ToFloat64(m.QueueDepth))
	require.Equal(t, float64(4), testutil.ToFloat64(m.JobsSubmitted))
}

func TestMetrics_RejectedJobIsNotCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	p := newTestPool(t, 1, WithMetrics(m))
	require.NoError(t, p.Stop())

	require.ErrorIs(t, p.Execute(func() {}), ErrWorkerPoolClosed)
	require.Equal(t, float64(0), testutil.ToFloat64(m.QueueDepth))
	require.Equal(t, float64(0), testutil.ToFloat64(m.JobsSubmitted))
}
