// Package gradeservice implements student.GradeOracle on top of the
// remote grade service.
//
// The service exposes two endpoints with plain-text bodies:
//
//	GET /checkGrade?grade=N  ->  true | false
//	GET /educ?sum=N          ->  integer rating
package gradeservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stepup/gradebook/internal/domain/shared"
	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/internal/infrastructure/observability"
	"github.com/stepup/gradebook/pkg/circuitbreaker"
	"github.com/stepup/gradebook/pkg/logger"
	"github.com/stepup/gradebook/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the grade service client.
type Config struct {
	// BaseURL, e.g. http://localhost:5352
	BaseURL string

	// Timeout bounds a single HTTP attempt
	Timeout time.Duration

	// MaxAttempts including the first one
	MaxAttempts int

	// Consecutive failures that open the circuit, and how long it stays open
	BreakerThreshold int
	BreakerTimeout   time.Duration

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	// HTTPClient overrides the default client. Optional.
	HTTPClient *http.Client
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		Timeout:          2 * time.Second,
		MaxAttempts:      3,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the grade service client. Calls are retried with backoff and
// guarded by a circuit breaker; failures surface as external service
// errors, never as invalid grades.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
}

var _ student.GradeOracle = (*Client)(nil)

// NewClient creates a new grade service client.
func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewTracer()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	log := cfg.Logger.With(logger.Component("gradeservice"))

	r := retry.GradeServiceRetrier(cfg.MaxAttempts,
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("grade service call failed, retrying",
				"attempt", attempt,
				"delay", delay,
				logger.Err(err),
			)
		}),
	)

	breaker := circuitbreaker.GradeServiceBreaker(cfg.BreakerThreshold, cfg.BreakerTimeout,
		func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	)

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		retrier:    r,
		breaker:    breaker,
		logger:     log,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
	}
}

// BreakerState returns the circuit breaker state.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// IsValid asks the service whether g is an acceptable grade.
func (c *Client) IsValid(ctx context.Context, g student.Grade) (bool, error) {
	body, err := c.get(ctx, "check_grade", "/checkGrade", url.Values{"grade": {strconv.Itoa(g.Int())}})
	if err != nil {
		return false, err
	}

	switch strings.ToLower(body) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, shared.WrapError("gradeservice", "IsValid", shared.ErrExternalService,
		"invalid response from grade service", fmt.Errorf("unexpected body %q", body))
}

// RatingFor asks the service for the rating of a grade sum.
func (c *Client) RatingFor(ctx context.Context, sum int) (int, error) {
	body, err := c.get(ctx, "rating", "/educ", url.Values{"sum": {strconv.Itoa(sum)}})
	if err != nil {
		return 0, err
	}

	rating, err := strconv.Atoi(body)
	if err != nil {
		return 0, shared.WrapError("gradeservice", "RatingFor", shared.ErrExternalService,
			"invalid response from grade service", err)
	}
	return rating, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSPORT
// ══════════════════════════════════════════════════════════════════════════════

// get performs a guarded, retried GET and returns the trimmed body.
func (c *Client) get(ctx context.Context, op, path string, query url.Values) (string, error) {
	fullURL := c.baseURL + path + "?" + query.Encode()

	ctx, span := c.tracer.StartOracleSpan(ctx, op, fullURL)
	start := time.Now()

	var body string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		body, err = retry.DoWithData(ctx, c.retrier, func(ctx context.Context) (string, error) {
			return c.doSingleRequest(ctx, fullURL)
		})
		return err
	})

	err = classify(op, err)
	c.metrics.RecordOracleCall(op, err)
	observability.EndSpan(span, err)

	if err != nil {
		c.logger.Error("grade service call failed",
			logger.Operation(op),
			logger.Latency(time.Since(start)),
			logger.Err(err),
		)
		return "", err
	}

	c.logger.Debug("grade service call", logger.Operation(op), logger.Latency(time.Since(start)))
	return body, nil
}

// doSingleRequest performs one HTTP attempt. Network errors, 429 and 5xx
// are marked retryable.
func (c *Client) doSingleRequest(ctx context.Context, fullURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", retry.Retryable(&StatusError{Code: resp.StatusCode})
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode}
	}

	return strings.TrimSpace(string(data)), nil
}

// StatusError is a non-200 response from the service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("grade service returned status %d", e.Code)
}

// classify maps transport failures onto domain error kinds.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return shared.WrapError("gradeservice", op, shared.ErrServiceUnavailable, "grade service circuit is open", err)
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("gradeservice", op, shared.ErrTimeout, "grade service request timeout", err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return shared.WrapError("gradeservice", op, shared.ErrExternalService, "grade service request failed", err)
	}
}
