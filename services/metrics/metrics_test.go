package metricsvc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/api/students", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/students", http.StatusOK, 10*time.Millisecond)
	m.EmailDelivered("sent")
	m.EmailDelivered("failed")
	m.EmailDelivered("sent")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/students", "200")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.emails.WithLabelValues("sent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.emails.WithLabelValues("failed")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jjschool_email_deliveries_total")
	assert.Contains(t, rec.Body.String(), "jjschool_http_request_duration_seconds")
}
