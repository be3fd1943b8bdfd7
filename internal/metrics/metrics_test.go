package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := New("test")

	m.ObserveCheckout("success", 2)
	m.ObserveCheckout("out_of_stock", 0)
	m.ObserveTransition("NEW", "CONFIRMED")
	m.ObserveRequest("/api/v1/cart", http.MethodGet, http.StatusOK, 12*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SubOrdersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusTransitions.WithLabelValues("NEW", "CONFIRMED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/v1/cart", "GET", "200")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New("test")
	m.ObservePublish("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `autopurch_test_outbox_events_published_total{result="ok"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCheckout("success", 1)
		m.ObserveTransition("NEW", "CANCELLED")
		m.ObservePublish("error")
		m.ObserveRequest("/", "GET", 200, time.Millisecond)
	})
}
