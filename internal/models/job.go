package models

import "time"

// JobStatus is the lifecycle state of a server-side indexing job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Terminal reports whether no further polling may happen for the status.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// UploadJob tracks one uploaded file until its indexing job settles.
type UploadJob struct {
	JobID      string    `json:"job_id"`
	Filename   string    `json:"filename"`
	Control    string    `json:"control,omitempty"`
	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	Attempts   int       `json:"attempts"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}
