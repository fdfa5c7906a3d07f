// Package schedule runs registered scrape jobs on a fixed cadence, tracking
// each job through an explicit status state machine with retry backoff.
package schedule

import "fmt"

// Status is the lifecycle state of a scheduled job.
type Status string

// Job lifecycle states.
const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

// allowedTransitions is the complete transition table. Any pair not listed
// here is illegal.
var allowedTransitions = map[Status][]Status{
	StatusScheduled: {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusPaused},
	StatusCompleted: {StatusScheduled},
	StatusFailed:    {StatusScheduled, StatusCancelled},
	StatusPaused:    {StatusRunning, StatusCancelled},
	StatusCancelled: {StatusScheduled},
}

// IllegalTransitionError reports a rejected status change. The job's status
// is left unchanged.
type IllegalTransitionError struct {
	JobID string
	From  Status
	To    Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("job %s: illegal transition %s -> %s", e.JobID, e.From, e.To)
}

// canTransition reports whether from -> to is in the allowed table.
func canTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
