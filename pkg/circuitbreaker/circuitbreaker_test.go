package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New("test", WithFailureThreshold(2), WithOpenTimeout(time.Hour))

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errBoom)
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	now := time.Unix(1000, 0)
	var transitions []State

	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithOpenTimeout(time.Second),
		WithOnStateChange(func(_ string, _, to State) { transitions = append(transitions, to) }),
	)
	cb.now = func() time.Time { return now }

	_ = cb.Execute(context.Background(), fail)
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Second)
	require.NoError(t, cb.Execute(context.Background(), succeed))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := New("test", WithFailureThreshold(1), WithOpenTimeout(time.Second))
	cb.now = func() time.Time { return now }

	_ = cb.Execute(context.Background(), fail)
	now = now.Add(2 * time.Second)
	_ = cb.Execute(context.Background(), fail)

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(context.Background(), succeed), ErrCircuitOpen)
}

func TestBreaker_IsFailureFilter(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, errBoom) }),
	)

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Counts().TotalSuccesses)
}

func TestBreaker_Reset(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), fail)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
}

func TestGradeServiceBreaker(t *testing.T) {
	cb := GradeServiceBreaker(3, time.Second, nil)
	assert.Equal(t, "grade-service", cb.Name())
	assert.Equal(t, "closed", cb.State().String())
}
