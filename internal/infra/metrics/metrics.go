// Package metrics exports dispatch and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"notifyhub/internal/domain/notification"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ notification.Observer = (*Recorder)(nil)

// Recorder holds the service's collectors.
type Recorder struct {
	registry *prometheus.Registry

	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates a Recorder on a fresh registry with Go and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyhub_dispatch_total",
			Help: "Channel delivery attempts by outcome.",
		}, []string{"channel", "outcome", "code"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notifyhub_dispatch_duration_seconds",
			Help:    "Duration of channel delivery attempts.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"channel"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyhub_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"path", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notifyhub_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.dispatches,
		r.dispatchDuration,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

// ObserveDispatch records one channel attempt.
func (r *Recorder) ObserveDispatch(ch notification.Channel, res notification.Result, elapsed time.Duration) {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	r.dispatches.WithLabelValues(string(ch), outcome, string(res.Code)).Inc()
	r.dispatchDuration.WithLabelValues(string(ch)).Observe(elapsed.Seconds())
}

// Middleware records request counts and latency per route pattern.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		r.httpRequests.WithLabelValues(path, c.Request.Method, status).Inc()
		r.httpDuration.WithLabelValues(path, c.Request.Method, status).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
