package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lustra"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	VideoTasksSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_tasks_submitted_total",
			Help:      "Video tasks accepted by the provider.",
		},
	)

	VideoTaskSubmitFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_task_submit_failures_total",
			Help:      "Video tasks that failed before or during provider submission.",
		},
		[]string{"stage"},
	)

	WebhookCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_callbacks_total",
			Help:      "Provider callbacks received, by reported status and whether they were applied.",
		},
		[]string{"status", "applied"},
	)

	AIAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_attempts_total",
			Help:      "Calls to generative AI providers, by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	AICallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_call_duration_seconds",
			Help:      "Generative AI call duration in seconds, retries included.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"provider"},
	)

	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_total",
			Help:      "Website deployments, by outcome.",
		},
		[]string{"outcome"},
	)
)

func allMetrics() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestsTotal,
		HTTPRequestDuration,
		VideoTasksSubmittedTotal,
		VideoTaskSubmitFailuresTotal,
		WebhookCallbacksTotal,
		AIAttemptsTotal,
		AICallDuration,
		DeploymentsTotal,
	}
}

// RegisterMetrics registers every collector with the default registry. Calling it twice
// is harmless.
func RegisterMetrics() {
	for _, c := range allMetrics() {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

// ObserveAIAttempt counts one provider call. outcome is ok, retry or error.
func ObserveAIAttempt(provider, outcome string) {
	AIAttemptsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveCallback counts one provider callback. Statuses outside the known set are
// reported as "other" so the label stays bounded.
func ObserveCallback(status string, applied bool) {
	WebhookCallbacksTotal.WithLabelValues(CallbackStatusLabel(status), strconv.FormatBool(applied)).Inc()
}

func CallbackStatusLabel(status string) string {
	switch status {
	case "processing", "completed", "failed", "unknown":
		return status
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

// HTTPMetricsMiddleware records basic HTTP request metrics.
func HTTPMetricsMiddleware(routeName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: 200}
			next.ServeHTTP(rec, r)

			route := routeName(r)
			method := r.Method
			status := strconv.Itoa(rec.status)

			HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
			HTTPRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		})
	}
}
