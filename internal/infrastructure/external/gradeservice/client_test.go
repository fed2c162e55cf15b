package gradeservice

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepup/gradebook/internal/domain/shared"
	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/internal/infrastructure/observability"
	"github.com/stepup/gradebook/pkg/circuitbreaker"
	"github.com/stepup/gradebook/pkg/logger"
)

// fakeService mimics the grade service: grades 2..5 are valid and sums
// above 50 rate 9, others 10.
func fakeService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /checkGrade", func(w http.ResponseWriter, r *http.Request) {
		var g int
		if _, err := fmt.Sscan(r.URL.Query().Get("grade"), &g); err != nil {
			http.Error(w, "bad grade", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, g >= 2 && g <= 5)
	})
	mux.HandleFunc("GET /educ", func(w http.ResponseWriter, r *http.Request) {
		var sum int
		if _, err := fmt.Sscan(r.URL.Query().Get("sum"), &sum); err != nil {
			http.Error(w, "bad sum", http.StatusBadRequest)
			return
		}
		if sum > 50 {
			fmt.Fprint(w, 9)
			return
		}
		fmt.Fprint(w, 10)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string, attempts int) *Client {
	cfg := DefaultConfig(baseURL)
	cfg.MaxAttempts = attempts
	cfg.BreakerThreshold = 2
	cfg.BreakerTimeout = time.Minute
	cfg.Logger = logger.Discard()
	return NewClient(cfg)
}

func TestClient_IsValid(t *testing.T) {
	srv := fakeService(t)
	c := newTestClient(srv.URL, 1)
	ctx := context.Background()

	for _, tc := range []struct {
		grade student.Grade
		want  bool
	}{
		{1, false}, {2, true}, {4, true}, {5, true}, {6, false},
	} {
		got, err := c.IsValid(ctx, tc.grade)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "grade %d", tc.grade)
	}
}

func TestClient_RatingFor(t *testing.T) {
	srv := fakeService(t)
	c := newTestClient(srv.URL+"/", 1)
	ctx := context.Background()

	r, err := c.RatingFor(ctx, 51)
	require.NoError(t, err)
	assert.Equal(t, 9, r)

	r, err = c.RatingFor(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, r)
}

func TestClient_ConsultsStudentRating(t *testing.T) {
	srv := fakeService(t)
	c := newTestClient(srv.URL, 1)

	s, err := student.New(1, "Alice", []student.Grade{5, 5, 5})
	require.NoError(t, err)

	rating, err := s.Rating(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 10, rating)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "true")
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)

	ok, err := c.IsValid(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)

	_, err := c.IsValid(context.Background(), 4)
	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))
	assert.False(t, shared.IsValidation(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "maybe")
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1)

	_, err := c.IsValid(context.Background(), 4)
	assert.ErrorIs(t, err, shared.ErrExternalService)

	_, err = c.RatingFor(context.Background(), 10)
	assert.ErrorIs(t, err, shared.ErrExternalService)
}

func TestClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.IsValid(ctx, 4)
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, c.BreakerState())

	_, err := c.IsValid(ctx, 4)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.True(t, shared.IsExternalService(err))
	assert.Equal(t, int32(2), calls.Load(), "open circuit short-circuits the call")
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(url, 1)

	_, err := c.IsValid(context.Background(), 4)
	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))
}

func TestClient_RecordsMetrics(t *testing.T) {
	srv := fakeService(t)
	m := observability.NewMetrics(prometheus.NewRegistry())

	cfg := DefaultConfig(srv.URL)
	cfg.Logger = logger.Discard()
	cfg.Metrics = m
	c := NewClient(cfg)

	_, err := c.IsValid(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleCalls.WithLabelValues("check_grade", "ok")))
}
