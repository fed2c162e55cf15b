// Package scheduler runs background jobs on fixed intervals.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job.
	// The context is cancelled when the scheduler is stopping.
	Run(ctx context.Context) error
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next time the job should run after the given time.
	Next(t time.Time) time.Time

	String() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName   string
	StartedAt time.Time
	Duration  time.Duration
	Manual    bool
	Err       error
}

// Success reports whether the run finished without error.
func (r JobResult) Success() bool { return r.Err == nil }

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerConfig contains configuration for the Scheduler.
type SchedulerConfig struct {
	Logger *slog.Logger

	// Tick is how often due jobs are checked (default: 1s).
	Tick time.Duration
}

// Scheduler manages and executes scheduled jobs. A job never overlaps
// with itself: a tick that finds it still running skips it.
type Scheduler struct {
	mu sync.Mutex

	logger *slog.Logger
	tick   time.Duration
	now    func() time.Time

	jobs    map[string]*scheduledJob
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	onJobComplete func(result JobResult)
}

type scheduledJob struct {
	job      Job
	schedule Schedule
	nextRun  time.Time
	busy     bool
	runCount int64
}

// NewScheduler creates a new Scheduler with the given configuration.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Tick <= 0 {
		config.Tick = time.Second
	}
	return &Scheduler{
		logger: config.Logger.With("component", "scheduler"),
		tick:   config.Tick,
		now:    time.Now,
		jobs:   make(map[string]*scheduledJob),
	}
}

// Register adds a job to the scheduler with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{job: job, schedule: schedule, nextRun: schedule.Next(s.now())}
	s.jobs[name] = sj

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", sj.nextRun.Format(time.RFC3339),
	)
	return nil
}

// OnJobComplete sets a callback invoked after every run, scheduled or manual.
func (s *Scheduler) OnJobComplete(fn func(result JobResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJobComplete = fn
}

// RunCount returns how many scheduled runs a job has started.
func (s *Scheduler) RunCount(jobName string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sj, ok := s.jobs[jobName]; ok {
		return sj.runCount
	}
	return 0
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.logger.Info("scheduler started", "jobs_count", len(s.jobs))

	s.wg.Add(1)
	go s.runLoop(ctx)
	return nil
}

// Stop cancels the loop and waits for running jobs to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sj := range s.jobs {
		if sj.busy || now.Before(sj.nextRun) {
			continue
		}
		sj.busy = true
		sj.runCount++
		sj.nextRun = sj.schedule.Next(now)

		s.wg.Add(1)
		go func(sj *scheduledJob) {
			defer s.wg.Done()
			s.execute(ctx, sj.job, false)

			s.mu.Lock()
			sj.busy = false
			s.mu.Unlock()
		}(sj)
	}
}

// RunNow executes a job immediately, ignoring its schedule.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (JobResult, error) {
	s.mu.Lock()
	sj, exists := s.jobs[jobName]
	s.mu.Unlock()

	if !exists {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	result := s.execute(ctx, sj.job, true)
	return result, result.Err
}

func (s *Scheduler) execute(ctx context.Context, job Job, manual bool) JobResult {
	started := s.now()
	err := job.Run(ctx)

	result := JobResult{
		JobName:   job.Name(),
		StartedAt: started,
		Duration:  time.Since(started),
		Manual:    manual,
		Err:       err,
	}

	if err != nil {
		s.logger.Error("job failed", "job", result.JobName, "manual", manual, "duration", result.Duration, "error", err)
	} else {
		s.logger.Debug("job completed", "job", result.JobName, "manual", manual, "duration", result.Duration)
	}

	s.mu.Lock()
	hook := s.onJobComplete
	s.mu.Unlock()
	if hook != nil {
		hook(result)
	}

	return result
}
