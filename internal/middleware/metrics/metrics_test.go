package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/agents/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, p := range []string{"/agents/1", "/agents/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/agents/:id", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))
}

func TestObserveSearch(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveSearch("mongodb", "hybrid", true)
	m.ObserveSearch("elasticsearch", "keyword", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchFallbackTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequestsTotal.WithLabelValues("mongodb", "hybrid")))
}
