package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gradebook"

// Metrics holds the Prometheus instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	StudentsSaved   *prometheus.CounterVec
	StudentsDeleted prometheus.Counter
	GradesRejected  prometheus.Counter
	TopQueries      prometheus.Counter
	TopWinners      prometheus.Histogram
	OracleCalls     *prometheus.CounterVec
	EventsHandled   *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	StudentsStored  prometheus.Gauge
	TopAverage      prometheus.Gauge
	JobRuns         *prometheus.CounterVec
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		StudentsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "students_saved_total",
			Help:      "Students written, by whether the record was created or replaced.",
		}, []string{"result"}),
		StudentsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "students_deleted_total",
			Help:      "Students removed, including bulk deletes.",
		}),
		GradesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grades_rejected_total",
			Help:      "Grades refused by validation.",
		}),
		TopQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "top_student_queries_total",
			Help:      "Top-student selections computed.",
		}),
		TopWinners: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "top_student_winners",
			Help:      "Number of students returned by a top-student selection.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 25},
		}),
		OracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grade_service_calls_total",
			Help:      "Remote grade service calls, by operation and outcome.",
		}, []string{"op", "result"}),
		EventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Domain event handler runs, by event type and outcome.",
		}, []string{"event_type", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		StudentsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "students_stored",
			Help:      "Students currently in the store, sampled by the stats job.",
		}),
		TopAverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "top_average",
			Help:      "Highest grade average in the store, 0 when nobody has grades.",
		}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Background job runs, by job and outcome.",
		}, []string{"job", "result"}),
	}

	reg.MustRegister(
		m.StudentsSaved,
		m.StudentsDeleted,
		m.GradesRejected,
		m.TopQueries,
		m.TopWinners,
		m.OracleCalls,
		m.EventsHandled,
		m.HTTPRequests,
		m.HTTPDuration,
		m.StudentsStored,
		m.TopAverage,
		m.JobRuns,
	)

	return m
}

// NewDefaultMetrics creates a fresh registry with Go runtime and process
// collectors plus the gradebook instruments.
func NewDefaultMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetrics(reg)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordSave counts a saved student.
func (m *Metrics) RecordSave(created bool) {
	if m == nil {
		return
	}
	result := "replaced"
	if created {
		result = "created"
	}
	m.StudentsSaved.WithLabelValues(result).Inc()
}

// RecordDeleted counts removed students.
func (m *Metrics) RecordDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StudentsDeleted.Add(float64(n))
}

// RecordGradeRejected counts a refused grade.
func (m *Metrics) RecordGradeRejected() {
	if m == nil {
		return
	}
	m.GradesRejected.Inc()
}

// RecordTopQuery counts a selection and its winner count.
func (m *Metrics) RecordTopQuery(winners int) {
	if m == nil {
		return
	}
	m.TopQueries.Inc()
	m.TopWinners.Observe(float64(winners))
}

// RecordOracleCall counts a grade service call.
func (m *Metrics) RecordOracleCall(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OracleCalls.WithLabelValues(op, result).Inc()
}

// RecordEventHandled counts a domain event handler run.
func (m *Metrics) RecordEventHandled(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsHandled.WithLabelValues(eventType, result).Inc()
}

// RecordHTTPRequest counts a served request and its latency.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// SetStoreStats publishes the sampled store size and top average.
func (m *Metrics) SetStoreStats(count int, topAverage float64) {
	if m == nil {
		return
	}
	m.StudentsStored.Set(float64(count))
	m.TopAverage.Set(topAverage)
}

// RecordJobRun counts a background job run.
func (m *Metrics) RecordJobRun(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JobRuns.WithLabelValues(job, result).Inc()
}
