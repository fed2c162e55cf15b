package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSave(true)
	m.RecordDeleted(1)
	m.RecordGradeRejected()
	m.RecordTopQuery(1)
	m.RecordOracleCall("check_grade", nil)
	m.RecordEventHandled("student.saved", nil)
	m.RecordHTTPRequest("GET", "/topStudent", 200, time.Millisecond)
	m.SetStoreStats(3, 4.5)
	m.RecordJobRun("store_stats", nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"gradebook_students_saved_total",
		"gradebook_students_deleted_total",
		"gradebook_grades_rejected_total",
		"gradebook_top_student_queries_total",
		"gradebook_top_student_winners",
		"gradebook_grade_service_calls_total",
		"gradebook_events_handled_total",
		"gradebook_http_requests_total",
		"gradebook_http_request_duration_seconds",
		"gradebook_students_stored",
		"gradebook_top_average",
		"gradebook_job_runs_total",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestRecordSave_Labels(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSave(true)
	m.RecordSave(true)
	m.RecordSave(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StudentsSaved.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StudentsSaved.WithLabelValues("replaced")))
}

func TestRecordDeleted_IgnoresZero(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDeleted(0)
	m.RecordDeleted(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.StudentsDeleted))
}

func TestRecordOracleCall_Outcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordOracleCall("rating", nil)
	m.RecordOracleCall("rating", errors.New("down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleCalls.WithLabelValues("rating", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleCalls.WithLabelValues("rating", "error")))
}

func TestSetStoreStats_Overwrites(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetStoreStats(5, 4.5)
	m.SetStoreStats(2, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StudentsStored))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TopAverage))
}

func TestRecordJobRun_Outcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordJobRun("store_stats", nil)
	m.RecordJobRun("store_stats", nil)
	m.RecordJobRun("store_stats", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("store_stats", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("store_stats", "error")))
}

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordSave(true)
		m.RecordDeleted(2)
		m.RecordGradeRejected()
		m.RecordTopQuery(0)
		m.RecordOracleCall("x", nil)
		m.RecordEventHandled("x", nil)
		m.RecordHTTPRequest("GET", "/", 200, 0)
		m.SetStoreStats(1, 2)
		m.RecordJobRun("x", nil)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ServesTextFormat(t *testing.T) {
	m := NewDefaultMetrics()
	m.RecordTopQuery(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "gradebook_top_student_queries_total 1"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
