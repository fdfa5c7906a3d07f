package schedule

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/leggilab/normascout/internal/metrics"
	"github.com/leggilab/normascout/internal/scrape"
)

// ScrapeFunc executes one scrape run for a job.
type ScrapeFunc func(ctx context.Context, job Job) (scrape.Summary, error)

// Notifier delivers job outcome notices.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, subject, body string) error
}

// RunnerConfig bounds retries and notification cadence.
type RunnerConfig struct {
	MaxRetries            int
	SuccessNoticeInterval time.Duration
	Recipients            []string
}

// Runner executes due jobs, driving each through the status machine.
type Runner struct {
	registry *Registry
	run      ScrapeFunc
	notifier Notifier
	clock    Clock
	cfg      RunnerConfig
	logger   *zap.Logger
}

// NewRunner wires a Runner.
func NewRunner(
	registry *Registry,
	run ScrapeFunc,
	notifier Notifier,
	clock Clock,
	cfg RunnerConfig,
	logger *zap.Logger,
) *Runner {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.SuccessNoticeInterval <= 0 {
		cfg.SuccessNoticeInterval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		registry: registry,
		run:      run,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunDue executes every due job once, sequentially. It returns the number of
// jobs executed; per-job failures are absorbed into job state, never
// propagated.
func (r *Runner) RunDue(ctx context.Context) int {
	executed := 0
	for _, jobID := range r.registry.due(r.clock.Now()) {
		select {
		case <-ctx.Done():
			return executed
		default:
		}
		r.runJob(ctx, jobID)
		executed++
	}
	return executed
}

// Loop calls RunDue at the tick interval until the context is cancelled.
func (r *Runner) Loop(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunDue(ctx)
		}
	}
}

func (r *Runner) runJob(ctx context.Context, jobID string) {
	if err := r.registry.Transition(jobID, StatusRunning); err != nil {
		r.logger.Warn("job not runnable", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	job, err := r.registry.Get(jobID)
	if err != nil {
		return
	}

	summary, runErr := r.run(ctx, job)
	if runErr != nil {
		r.handleFailure(ctx, jobID, runErr)
		return
	}
	r.handleSuccess(ctx, jobID, summary)
}

// handleSuccess resets the retry counter and recomputes the next run from
// the job's frequency.
func (r *Runner) handleSuccess(ctx context.Context, jobID string, summary scrape.Summary) {
	now := r.clock.Now()
	result := fmt.Sprintf("found=%d processed=%d saved=%d errors=%d",
		summary.DocumentsFound, summary.DocumentsProcessed,
		summary.DocumentsSaved, summary.Errors)

	if err := r.registry.Transition(jobID, StatusCompleted); err != nil {
		r.logger.Warn("completion transition rejected", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	var notifyAllowed bool
	r.registry.update(jobID, func(job *Job) {
		job.RetryCount = 0
		job.LastRunResult = result
		job.NextRun = now.Add(job.Frequency)
		if now.Sub(job.lastSuccessNotice) >= r.cfg.SuccessNoticeInterval {
			job.lastSuccessNotice = now
			notifyAllowed = true
		}
	})
	if err := r.registry.Transition(jobID, StatusScheduled); err != nil {
		r.logger.Warn("reschedule transition rejected", zap.String("job_id", jobID), zap.Error(err))
	}
	metrics.ObserveJobRun("completed")

	r.logger.Info("job completed", zap.String("job_id", jobID), zap.String("result", result))
	if notifyAllowed && r.notifier != nil {
		subject := fmt.Sprintf("scrape job %s completed", jobID)
		if err := r.notifier.Notify(ctx, r.cfg.Recipients, subject, result); err != nil {
			r.logger.Warn("success notice failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}
}

// handleFailure increments the retry counter and, while under the max,
// reschedules with an exponential delay in minutes; otherwise the job stays
// failed. Failure notices are never throttled.
func (r *Runner) handleFailure(ctx context.Context, jobID string, runErr error) {
	now := r.clock.Now()

	if err := r.registry.Transition(jobID, StatusFailed); err != nil {
		r.logger.Warn("failure transition rejected", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	var retryCount int
	r.registry.update(jobID, func(job *Job) {
		job.RetryCount++
		job.LastRunResult = runErr.Error()
		retryCount = job.RetryCount
	})

	if retryCount <= r.cfg.MaxRetries {
		delay := time.Duration(math.Pow(2, float64(retryCount))) * time.Minute
		r.registry.update(jobID, func(job *Job) {
			job.NextRun = now.Add(delay)
		})
		if err := r.registry.Transition(jobID, StatusScheduled); err != nil {
			r.logger.Warn("retry transition rejected", zap.String("job_id", jobID), zap.Error(err))
		}
		r.logger.Warn("job failed, rescheduled",
			zap.String("job_id", jobID),
			zap.Int("retry_count", retryCount),
			zap.Duration("delay", delay),
			zap.Error(runErr),
		)
	} else {
		r.logger.Error("job failed permanently",
			zap.String("job_id", jobID),
			zap.Int("retry_count", retryCount),
			zap.Error(runErr),
		)
	}
	metrics.ObserveJobRun("failed")

	if r.notifier != nil {
		subject := fmt.Sprintf("scrape job %s failed", jobID)
		if err := r.notifier.Notify(ctx, r.cfg.Recipients, subject, runErr.Error()); err != nil {
			r.logger.Warn("failure notice failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}
}
