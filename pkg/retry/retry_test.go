package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fastRetrier(attempts int) *Retrier {
	return New(
		WithMaxAttempts(attempts),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
		WithJitter(0),
	)
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAndUnwraps(t *testing.T) {
	calls := 0
	err := fastRetrier(2).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(errFlaky)
	})

	assert.Equal(t, 2, calls)
	assert.Equal(t, errFlaky, err)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errFlaky)
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, errFlaky, err)
}

func TestDo_UnmarkedErrorNotRetried(t *testing.T) {
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errFlaky
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDo_CustomClassifier(t *testing.T) {
	calls := 0
	r := New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithShouldRetry(func(err error) bool { return errors.Is(err, errFlaky) }),
	)
	_ = r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errFlaky
	})

	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fastRetrier(3).Do(ctx, func(ctx context.Context) error {
		t.Fatal("operation must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_OnRetryHook(t *testing.T) {
	var attempts []int
	r := New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
		}),
	)
	_ = r.Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errFlaky)
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), fastRetrier(3), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(errFlaky)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDelay_Capped(t *testing.T) {
	r := New(
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(300*time.Millisecond),
		WithMultiplier(2),
		WithJitter(0),
	)

	assert.Equal(t, 100*time.Millisecond, r.delay(1))
	assert.Equal(t, 200*time.Millisecond, r.delay(2))
	assert.Equal(t, 300*time.Millisecond, r.delay(3))
	assert.Equal(t, 300*time.Millisecond, r.delay(10))
}

func TestGradeServiceRetrier(t *testing.T) {
	p := GradeServiceRetrier(4).Policy()
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, p.InitialDelay)
}
