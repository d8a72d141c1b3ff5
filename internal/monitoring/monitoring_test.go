package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	attempts  atomic.Int32
	readyFrom int32
}

func (f *fakeHandle) EnsureModelsReady(context.Context) {
	f.attempts.Add(1)
}

func (f *fakeHandle) ModelsReady() bool {
	return f.attempts.Load() >= f.readyFrom
}

func TestMonitorModelHealth_RetriesUntilReady(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle := &fakeHandle{readyFrom: 3}
	m := NewMetrics()

	go MonitorModelHealth(ctx, handle, 5*time.Millisecond, m)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.modelReady) == 1
	}, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, handle.attempts.Load(), int32(3))

	attempts := handle.attempts.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, attempts, handle.attempts.Load(), "ready backend is not re-initialized")
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveAnalysis("sentiment", PathNeural)
	m.ObserveAnalysis("sentiment", PathNeural)
	m.ObserveNeural(10*time.Millisecond, errors.New("timeout"))
	m.ObserveCache(true)
	m.ObserveStored("uploaded", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.analyses.WithLabelValues("sentiment", PathNeural)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.neuralFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.feedbackStored.WithLabelValues("uploaded")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAnalysis("spectrum", PathKeyword)
		m.ObserveNeural(time.Second, nil)
		m.SetModelReady(true)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveAnalysis("spectrum", PathCenter)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `feedbackflow_analyses_total{operation="spectrum",path="center"} 1`)
}
