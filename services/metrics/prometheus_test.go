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

func TestCollector(t *testing.T) {
	c := NewCollector("somo")

	c.ObserveRequest(http.MethodGet, "/v1/:kinds/:id", http.StatusOK, 20*time.Millisecond)
	c.ObserveRequest(http.MethodGet, "/v1/:kinds/:id", http.StatusOK, 30*time.Millisecond)
	c.ObserveRequest(http.MethodGet, "/v1/:kinds/:id", http.StatusNotFound, time.Millisecond)
	c.ObserveMutation("course", "append_lecture", "ok")
	c.ObserveMutation("course", "append_lecture", "conflict")
	c.ObserveMutation("course", "append_lecture", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequests.WithLabelValues(http.MethodGet, "/v1/:kinds/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues(http.MethodGet, "/v1/:kinds/:id", "404")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.mutations.WithLabelValues("course", "append_lecture", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.mutations.WithLabelValues("course", "append_lecture", "conflict")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `somo_content_mutations_total{kind="course",op="append_lecture",outcome="ok"} 2`)
	assert.Contains(t, rec.Body.String(), "somo_http_request_duration_seconds_bucket")
}

func TestNewCollector_independentRegistries(t *testing.T) {
	// each collector owns its registry: creating several must not panic on duplicate registration
	assert.NotPanics(t, func() {
		NewCollector("somo")
		NewCollector("somo")
	})
}
