package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	validationsTotal       *prometheus.CounterVec
	validationFindings     *prometheus.HistogramVec
	validationDuration     *prometheus.HistogramVec
	semanticDegradedTotal  *prometheus.CounterVec
	batchSize              *prometheus.HistogramVec
	exportedWorkbooksTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inva",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inva",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inva",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	validationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inva",
			Subsystem: "validation",
			Name:      "reports_total",
			Help:      "Total produced validation reports by overall status.",
		},
		[]string{"service", "status"},
	)
	validationFindings := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inva",
			Subsystem: "validation",
			Name:      "findings_per_report",
			Help:      "Distribution of findings per validation report.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	validationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inva",
			Subsystem: "validation",
			Name:      "duration_seconds",
			Help:      "End-to-end validation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	semanticDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inva",
			Subsystem: "validation",
			Name:      "semantic_degraded_total",
			Help:      "Total reports produced without a semantic pass.",
		},
		[]string{"service"},
	)
	batchSize := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inva",
			Subsystem: "validation",
			Name:      "batch_size",
			Help:      "Distribution of invoices per submitted batch.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"service"},
	)
	exportedWorkbooksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inva",
			Subsystem: "export",
			Name:      "workbooks_total",
			Help:      "Total exported result workbooks.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		validationsTotal,
		validationFindings,
		validationDuration,
		semanticDegradedTotal,
		batchSize,
		exportedWorkbooksTotal,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		validationsTotal:       validationsTotal,
		validationFindings:     validationFindings,
		validationDuration:     validationDuration,
		semanticDegradedTotal:  semanticDegradedTotal,
		batchSize:              batchSize,
		exportedWorkbooksTotal: exportedWorkbooksTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case path == "/v1/invoices/validate":
		return path
	case strings.HasPrefix(path, "/v1/invoices/"):
		return "/v1/invoices/{invoice_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordValidation(service, endpoint, status string, findings int, degraded bool, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.validationsTotal.WithLabelValues(service, status).Inc()
	m.validationFindings.WithLabelValues(service).Observe(float64(findings))
	m.validationDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	if degraded {
		m.semanticDegradedTotal.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordBatch(service string, size int) {
	m.batchSize.WithLabelValues(service).Observe(float64(size))
}

func (m *HTTPServerMetrics) RecordExport(service string) {
	m.exportedWorkbooksTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
