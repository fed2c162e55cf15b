package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepup/gradebook/pkg/circuitbreaker"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type breakerState circuitbreaker.State

func (b breakerState) BreakerState() circuitbreaker.State { return circuitbreaker.State(b) }

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("test").Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "test", status.Version)
}

func TestCompositeHealthChecker_AllPass(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("store", NewPingCheck(pingFunc(func(context.Context) error { return nil })))
	c.AddCheck("grade_service", NewBreakerCheck(breakerState(circuitbreaker.StateClosed)))

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "All checks passed", status.Message)
	assert.Len(t, status.Checks, 2)
}

func TestCompositeHealthChecker_Failures(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("store", NewPingCheck(pingFunc(func(context.Context) error { return errors.New("db down") })))
	c.AddCheck("grade_service", NewBreakerCheck(breakerState(circuitbreaker.StateOpen)))
	c.AddCheck("cache", NewPingCheck(pingFunc(func(context.Context) error { return nil })))

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, "Some checks failed: grade_service, store", status.Message)
	assert.Equal(t, "db down", status.Checks["store"].Message)
	assert.True(t, status.Checks["cache"].Healthy)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("slow", NewPingCheck(pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Checks["slow"].Message, "deadline")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "burst exhausted")
	assert.True(t, rl.Allow("b"), "separate bucket per key")

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("a"), "one token refilled")

	now = now.Add(2 * time.Minute)
	rl.evictIdle()
	assert.Equal(t, 0, rl.Len())
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mw("outer"), mw("inner"), SecurityHeadersMiddleware, NoCacheMiddleware)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { order = append(order, "handler") }),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestMaxBodyMiddleware(t *testing.T) {
	var readErr error
	h := MaxBodyMiddleware(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 16)
		_, readErr = r.Body.Read(buf)
		for readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))

	var maxErr *http.MaxBytesError
	require.Error(t, readErr)
	assert.ErrorAs(t, readErr, &maxErr)
}
