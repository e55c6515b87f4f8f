package models

// UploadResponse mirrors the three disjoint answers of POST /upload.
type UploadResponse struct {
	JobID   string `json:"job_id,omitempty"`
	DocID   DocID  `json:"doc_id,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Queued reports that the server created an indexing job to poll.
func (r UploadResponse) Queued() bool {
	return r.JobID != ""
}

// Indexed reports that the server indexed the file synchronously.
func (r UploadResponse) Indexed() bool {
	return r.JobID == "" && r.DocID != ""
}

// Reason returns the server explanation for a rejected upload.
func (r UploadResponse) Reason() string {
	if r.Message != "" {
		return r.Message
	}
	if r.Error != "" {
		return r.Error
	}
	return "Upload failed"
}

// JobStatusResponse is the body of GET /job/{id}.
type JobStatusResponse struct {
	JobID       string    `json:"job_id,omitempty"`
	Status      JobStatus `json:"status"`
	DocID       DocID     `json:"doc_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	StartedAt   string    `json:"started_at,omitempty"`
	CompletedAt string    `json:"completed_at,omitempty"`
}

// ServerStatus is the body of GET /status.
type ServerStatus struct {
	Documents int `json:"documents"`
	Vectors   int `json:"vectors"`
}
