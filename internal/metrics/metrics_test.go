package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveAuth(t *testing.T) {
	success := testutil.ToFloat64(AuthEvents.WithLabelValues("login", OutcomeSuccess))
	failure := testutil.ToFloat64(AuthEvents.WithLabelValues("login", OutcomeFailure))

	ObserveAuth("login", nil)
	ObserveAuth("login", errors.New("bad password"))
	ObserveAuth("login", errors.New("bad password"))

	assert.Equal(t, success+1, testutil.ToFloat64(AuthEvents.WithLabelValues("login", OutcomeSuccess)))
	assert.Equal(t, failure+2, testutil.ToFloat64(AuthEvents.WithLabelValues("login", OutcomeFailure)))
}

func TestHandler_ExposesServiceMetrics(t *testing.T) {
	registry := NewRegistry()
	ObserveAuth("refresh", nil)

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "auth_events_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
