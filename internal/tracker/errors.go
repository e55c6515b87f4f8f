package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrPollLimit ends a job whose server status never settled within the configured attempts.
	ErrPollLimit = errors.New("poll attempt limit reached")
	// ErrUnknownJob is returned for job ids the tracker never saw.
	ErrUnknownJob = errors.New("unknown job")
	// ErrStopped is returned when the tracker shut down before the job settled.
	ErrStopped = errors.New("tracker stopped")
)

// JobFailedError reports a terminal failed status for a job.
type JobFailedError struct {
	JobID    string
	Filename string
	Message  string
	Err      error
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s (%s) failed: %s", e.JobID, e.Filename, e.Message)
}

func (e *JobFailedError) Unwrap() error {
	return e.Err
}
