package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timetrack_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	rateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "timetrack_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
	timesheetTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetrack_timesheet_transitions_total",
			Help: "Committed timesheet lifecycle transitions",
		},
		[]string{"transition"},
	)
	notificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetrack_notifications_created_total",
			Help: "Notifications persisted, by type",
		},
		[]string{"type"},
	)
	jobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetrack_job_runs_total",
			Help: "Background job runs by type and outcome",
		},
		[]string{"job_type", "status"},
	)
)

func ObserveRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
	if status == http.StatusTooManyRequests {
		rateLimited.Inc()
	}
}

func TimesheetTransition(transition string) {
	timesheetTransitions.WithLabelValues(transition).Inc()
}

func NotificationCreated(notificationType string) {
	notificationsCreated.WithLabelValues(notificationType).Inc()
}

func JobRun(jobType, status string) {
	jobRuns.WithLabelValues(jobType, status).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
