package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Orchestration policy. Deadlines and intervals follow the platform's
// observed report-run behavior: a healthy job reports progress within
// minutes and completes well under half an hour.
const (
	defaultMaxWaitToStart  = 5 * time.Minute
	defaultMaxWaitToFinish = 30 * time.Minute
	defaultPollInterval    = 5 * time.Second

	submitMaxAttempts    = 3
	submitBackoffInitial = 2 * time.Second
	submitBackoffFactor  = 2
)

// Sentinel errors for job orchestration. The two timeout kinds are distinct
// on purpose: "never started" is cheap to retry immediately, "stalled
// mid-run" risks duplicate remote cost on resubmission.
var (
	// ErrJobStartTimeout matches start-deadline failures (percent still 0).
	ErrJobStartTimeout = errors.New("insights job did not start before deadline")

	// ErrJobFinishTimeout matches finish-deadline failures (job stuck mid-run).
	ErrJobFinishTimeout = errors.New("insights job did not finish before deadline")

	// ErrJobNotStarted is the designated submission failure the Runner
	// retries with backoff. Service implementations wrap transient
	// submission errors with it; anything else propagates unretried.
	ErrJobNotStarted = errors.New("insights job submission did not start a job")

	// ErrJobFailed is returned when the remote scheduler reports the job
	// itself failed.
	ErrJobFailed = errors.New("insights job failed remotely")
)

// StartTimeoutError reports a job whose completion percentage was still
// zero when the start deadline elapsed: the remote scheduler never began
// work. Retryable by resubmitting the same window.
type StartTimeoutError struct {
	Job    JobHandle
	Waited time.Duration
}

func (e *StartTimeoutError) Error() string {
	return fmt.Sprintf("insights job %s did not start after %s", e.Job, e.Waited)
}

func (e *StartTimeoutError) Unwrap() error { return ErrJobStartTimeout }

// FinishTimeoutError reports a job still running when the finish deadline
// elapsed. Retryable with caution: the remote job may still complete, so a
// resubmission can incur duplicate remote cost.
type FinishTimeoutError struct {
	Job    JobHandle
	Status JobStatus
	Waited time.Duration
}

func (e *FinishTimeoutError) Error() string {
	return fmt.Sprintf("insights job %s did not complete after %s (status %s)", e.Job, e.Waited, e.Status)
}

func (e *FinishTimeoutError) Unwrap() error { return ErrJobFinishTimeout }

// Runner submits one report window as a remote async job and polls it to
// completion under a bounded-wait policy.
//
// State machine per window: submitted → polling → completed | start-timeout
// | finish-timeout. Neither timeout is retried in place — resubmitting a
// possibly-live job risks duplicate remote work, so the decision is left to
// the caller.
type Runner struct {
	service Service
	clock   Clock
	budget  *rate.Limiter
	logger  *slog.Logger

	pollInterval    time.Duration
	maxWaitToStart  time.Duration
	maxWaitToFinish time.Duration
}

// RunnerOption configures optional Runner behavior.
type RunnerOption func(*Runner)

// WithClock replaces the system clock, letting tests simulate elapsed time
// without real delay.
func WithClock(clock Clock) RunnerOption {
	return func(r *Runner) { r.clock = clock }
}

// WithBudget installs a submission budget shared across concurrently
// syncing streams. The remote API's rate limits are the binding shared
// resource once streams run in parallel; the limiter gates job submissions
// against them.
func WithBudget(budget *rate.Limiter) RunnerOption {
	return func(r *Runner) { r.budget = budget }
}

// WithDeadlines overrides the start/finish deadlines and poll interval.
func WithDeadlines(start, finish, poll time.Duration) RunnerOption {
	return func(r *Runner) {
		r.maxWaitToStart = start
		r.maxWaitToFinish = finish
		r.pollInterval = poll
	}
}

// NewRunner creates a Runner over the given remote service.
func NewRunner(service Service, logger *slog.Logger, opts ...RunnerOption) *Runner {
	runner := &Runner{
		service:         service,
		clock:           SystemClock{},
		logger:          logger,
		pollInterval:    defaultPollInterval,
		maxWaitToStart:  defaultMaxWaitToStart,
		maxWaitToFinish: defaultMaxWaitToFinish,
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run submits the window and polls the resulting job until it completes or
// a deadline elapses. On completion it returns a pager over the job's
// result pages, fetched lazily by the caller.
func (r *Runner) Run(ctx context.Context, params Params) (ResultPager, error) {
	handle, err := r.submit(ctx, params)
	if err != nil {
		return nil, err
	}

	started := r.clock.Now()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state, err := r.service.PollJob(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("poll insights job %s: %w", handle, err)
		}

		r.logger.Info("Insights job progress",
			slog.String("job_id", string(handle)),
			slog.String("status", string(state.Status)),
			slog.Int("percent_complete", state.PercentComplete),
		)

		switch state.Status {
		case JobCompleted:
			return r.service.JobResults(ctx, handle)
		case JobFailed, JobSkipped:
			return nil, fmt.Errorf("%w: job %s reported %s", ErrJobFailed, handle, state.Status)
		}

		waited := r.clock.Now().Sub(started)

		if waited > r.maxWaitToStart && state.PercentComplete == 0 {
			timeoutErr := &StartTimeoutError{Job: handle, Waited: waited}
			r.logger.Error("Insights job never started",
				slog.String("job_id", string(handle)),
				slog.Duration("waited", waited),
			)

			return nil, timeoutErr
		}

		if waited > r.maxWaitToFinish {
			timeoutErr := &FinishTimeoutError{Job: handle, Status: state.Status, Waited: waited}
			r.logger.Error("Insights job stalled mid-run",
				slog.String("job_id", string(handle)),
				slog.String("status", string(state.Status)),
				slog.Int("percent_complete", state.PercentComplete),
				slog.Duration("waited", waited),
			)

			return nil, timeoutErr
		}

		r.clock.Sleep(r.pollInterval)
	}
}

// submit issues the remote computation request, retrying only the
// designated "job did not start" signal with exponential backoff.
func (r *Runner) submit(ctx context.Context, params Params) (JobHandle, error) {
	backoff := submitBackoffInitial

	var lastErr error

	for attempt := 1; attempt <= submitMaxAttempts; attempt++ {
		if r.budget != nil {
			if err := r.budget.Wait(ctx); err != nil {
				return "", fmt.Errorf("await submission budget: %w", err)
			}
		}

		handle, err := r.service.SubmitJob(ctx, params)
		if err == nil {
			r.logger.Info("Submitted insights job",
				slog.String("job_id", string(handle)),
				slog.Time("since", params.Since),
				slog.Time("until", params.Until),
				slog.Int("attempt", attempt),
			)

			return handle, nil
		}

		if !errors.Is(err, ErrJobNotStarted) {
			return "", fmt.Errorf("submit insights job: %w", err)
		}

		lastErr = err

		r.logger.Warn("Insights job did not start, backing off",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		if attempt < submitMaxAttempts {
			r.clock.Sleep(backoff)
			backoff *= submitBackoffFactor
		}
	}

	return "", fmt.Errorf("submit insights job after %d attempts: %w", submitMaxAttempts, lastErr)
}
