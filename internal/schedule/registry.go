package schedule

import (
	"fmt"
	"sync"
	"time"
)

// Job is one registered scrape schedule. Fields are guarded by the owning
// Registry's mutex; callers see copies.
type Job struct {
	ID            string
	SourceID      string
	Frequency     time.Duration
	Sections      []string
	DaysBack      int
	Status        Status
	RetryCount    int
	NextRun       time.Time
	LastRunResult string

	lastSuccessNotice time.Time
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Registry holds scheduled jobs in memory. Scheduling state is deliberately
// not durable; jobs are re-registered at startup.
type Registry struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	clock Clock
}

// NewRegistry creates an empty registry.
func NewRegistry(clock Clock) *Registry {
	return &Registry{jobs: make(map[string]*Job), clock: clock}
}

// Register adds a job in scheduled status. The job's first run is its
// NextRun if set, otherwise immediately.
func (r *Registry) Register(job Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if job.Frequency <= 0 {
		return fmt.Errorf("job %s: frequency must be > 0", job.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already registered", job.ID)
	}
	job.Status = StatusScheduled
	job.RetryCount = 0
	if job.NextRun.IsZero() {
		job.NextRun = r.clock.Now()
	}
	stored := job
	r.jobs[job.ID] = &stored
	return nil
}

// Unregister destroys the job.
func (r *Registry) Unregister(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[jobID]; !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	delete(r.jobs, jobID)
	return nil
}

// Get returns a copy of the job.
func (r *Registry) Get(jobID string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return Job{}, fmt.Errorf("job %s not found", jobID)
	}
	return *job, nil
}

// List returns copies of all jobs, in no particular order.
func (r *Registry) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	return out
}

// Transition moves a job to the requested status, rejecting pairs outside
// the allowed table and leaving the status unchanged on rejection.
func (r *Registry) Transition(jobID string, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(jobID, to)
}

func (r *Registry) transitionLocked(jobID string, to Status) error {
	job, ok := r.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	if !canTransition(job.Status, to) {
		return &IllegalTransitionError{JobID: jobID, From: job.Status, To: to}
	}
	job.Status = to
	return nil
}

// Cancel prevents future runs. An in-flight run is not aborted: cancelling
// a running job is an illegal transition and is rejected.
func (r *Registry) Cancel(jobID string) error {
	return r.Transition(jobID, StatusCancelled)
}

// Pause suspends a running job.
func (r *Registry) Pause(jobID string) error {
	return r.Transition(jobID, StatusPaused)
}

// Resume moves a paused job back to running.
func (r *Registry) Resume(jobID string) error {
	return r.Transition(jobID, StatusRunning)
}

// Reactivate puts a cancelled job back on the schedule, running at the next
// frequency boundary.
func (r *Registry) Reactivate(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.transitionLocked(jobID, StatusScheduled); err != nil {
		return err
	}
	job := r.jobs[jobID]
	job.RetryCount = 0
	job.NextRun = r.clock.Now().Add(job.Frequency)
	return nil
}

// due returns the IDs of jobs in scheduled status whose NextRun is not after
// now.
func (r *Registry) due(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, job := range r.jobs {
		if job.Status == StatusScheduled && !job.NextRun.After(now) {
			ids = append(ids, id)
		}
	}
	return ids
}

// update applies fn to the job under the registry lock.
func (r *Registry) update(jobID string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok {
		fn(job)
	}
}
