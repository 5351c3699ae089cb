package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metricLoop:
		for _, metric := range fam.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metricLoop
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	return 0
}

func TestCounters(t *testing.T) {
	m := New()
	m.StreakTransition("extended")
	m.StreakTransition("extended")
	m.Submission("ok")
	m.SetOutboxPending(3)
	m.ObserveHTTP("GET /api/streak", "GET", 200, 10*time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, m, "hanashite_streak_transitions_total", map[string]string{"kind": "extended"}))
	assert.Equal(t, 1.0, counterValue(t, m, "hanashite_practice_submissions_total", map[string]string{"outcome": "ok"}))
	assert.Equal(t, 3.0, counterValue(t, m, "hanashite_outbox_pending_events", nil))
	assert.Equal(t, 1.0, counterValue(t, m, "hanashite_http_requests_total",
		map[string]string{"route": "GET /api/streak", "method": "GET", "status": "200"}))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StreakTransition("created")
		m.Submission("error")
		m.SetOutboxPending(1)
		m.OutboxProcessed("done")
		m.AlertCreated("inactive_student")
		m.ObserveHTTP("x", "GET", 500, time.Second)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.OutboxProcessed("done")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `hanashite_outbox_events_processed_total{status="done"} 1`)
}
