package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Frame("highbid")
		m.Drop("highbid", "invalid_json")
		m.Instruction("highbid", "update_high_bid")
		m.Aggregated("highbid", "high_bid", time.Second, nil)
		m.Delivered("highbid", 1, 1, 1)
		m.Reconnect("highbid")
		m.State("highbid", 2)
		m.QueueDepth("highbid", 3)
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()

	m.Frame("raffle")
	m.Frame("raffle")
	m.Drop("raffle", "failed_tx")
	m.Aggregated("raffle", "ticket_purchase", 10*time.Millisecond, nil)
	m.Aggregated("raffle", "ticket_purchase", 10*time.Millisecond, errors.New("boom"))
	m.Delivered("raffle", 2, 1, 0)
	m.State("raffle", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.frames.WithLabelValues("raffle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.drops.WithLabelValues("raffle", "failed_tx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reports.WithLabelValues("raffle", "ticket_purchase")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("raffle")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("raffle", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("raffle", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connState.WithLabelValues("raffle")))
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New()
	m.Reconnect("highbid")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `burnwatch_stream_reconnects_total{stream="highbid"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
