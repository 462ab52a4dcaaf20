package backend

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/kadmin/core/logger"
)

type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kadmin",
			Name:      "http_requests_total",
			Help:      "Number of handled requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kadmin",
			Name:      "http_request_duration_seconds",
			Help:      "Request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	registry.MustRegister(m.requests, m.latency)
	return m
}

// middleware records every routed request. Routes are labeled with their path
// template so that entity identities do not create new series.
func (m *metrics) middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		captured := httpsnoop.CaptureMetrics(h, w, r)
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(captured.Code)).Inc()
		m.latency.WithLabelValues(route, r.Method).Observe(captured.Duration.Seconds())
	})
}

func (b *Backend) handleMetrics(router *mux.Router, registry *prometheus.Registry) {
	logger.Default().Debugln("  handle metrics route: /metrics GET")
	router.Use(newMetrics(registry).middleware)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
