package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/datascoop/datascoop/internal/jobs"
)

// Metrics collects the Prometheus metrics served on /metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	purchases       *prometheus.CounterVec
	ouncesIn        prometheus.Counter
	sales           *prometheus.CounterVec
	ouncesOut       prometheus.Counter
	rejected        *prometheus.CounterVec
	jobs            *jobmetrics.Metrics
}

// NewMetrics builds a private registry with HTTP, ledger and job collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datascoop_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datascoop_http_request_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datascoop_purchases_total",
		Help: "Recorded purchases by location.",
	}, []string{"location"})
	ouncesIn := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "datascoop_ounces_purchased_total",
		Help: "Ounces added to the ledger by purchases.",
	})
	sales := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datascoop_sales_total",
		Help: "Recorded sales lines by serving size.",
	}, []string{"size"})
	ouncesOut := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "datascoop_ounces_sold_total",
		Help: "Ounces removed from the ledger by sales.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datascoop_sales_rejected_total",
		Help: "Sales rejected before commit by reason.",
	}, []string{"reason"})
	registry.MustRegister(requests, duration, purchases, ouncesIn, sales, ouncesOut, rejected)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		purchases:       purchases,
		ouncesIn:        ouncesIn,
		sales:           sales,
		ouncesOut:       ouncesOut,
		rejected:        rejected,
		jobs:            jobmetrics.NewMetrics(registry),
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and latency for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObservePurchase counts a committed purchase.
func (m *Metrics) ObservePurchase(locationID, ounces int64) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(strconv.FormatInt(locationID, 10)).Inc()
	m.ouncesIn.Add(float64(ounces))
}

// ObserveSale counts a committed sale line.
func (m *Metrics) ObserveSale(size string, ounces int64) {
	if m == nil {
		return
	}
	m.sales.WithLabelValues(size).Inc()
	m.ouncesOut.Add(float64(ounces))
}

// ObserveRejectedSale counts a sale that did not commit.
func (m *Metrics) ObserveRejectedSale(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// Jobs exposes the background job collectors sharing this registry.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
