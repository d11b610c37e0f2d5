package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTP records request counts and latency per route. A nil *HTTP is valid.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	defaultHTTPOnce sync.Once
	defaultHTTP     *HTTP
)

func DefaultHTTP() *HTTP {
	defaultHTTPOnce.Do(func() {
		defaultHTTP = NewHTTP(prometheus.DefaultRegisterer)
	})
	return defaultHTTP
}

func NewHTTP(reg prometheus.Registerer) *HTTP {
	h := &HTTP{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg != nil {
		reg.MustRegister(h.requests, h.duration)
	}
	return h
}

// GinMiddleware observes every request after the handler chain completes.
func GinMiddleware(h *HTTP) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if h == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		h.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		h.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
