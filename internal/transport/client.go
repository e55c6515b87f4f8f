package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"docsearch/internal/models"
)

const maxErrorBody = 64 << 10

// Client talks to the indexing/search service. It never retries; callers decide.
type Client struct {
	http *resty.Client
}

// New builds a client for the service rooted at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		rc.SetTimeout(timeout)
	}
	return &Client{http: rc}
}

// SubmitUpload posts the file as multipart field "file". With sync set the
// server indexes inline and answers with a doc id instead of a job id.
func (c *Client) SubmitUpload(ctx context.Context, filename string, body io.Reader, sync bool) (models.UploadResponse, error) {
	const op = "submit upload"
	req := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, body)
	if sync {
		req.SetQueryParam("sync", "true")
	}
	resp, err := req.Post("/upload")
	if err != nil {
		return models.UploadResponse{}, &NetworkError{Op: op, Err: err}
	}
	var out models.UploadResponse
	if err := decodeBody(op, resp, &out); err != nil {
		return models.UploadResponse{}, err
	}
	return out, nil
}

// GetJobStatus reads the current state of an indexing job.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (models.JobStatusResponse, error) {
	const op = "get job status"
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("jobId", jobID).
		Get("/job/{jobId}")
	if err != nil {
		return models.JobStatusResponse{}, &NetworkError{Op: op, Err: err}
	}
	var out models.JobStatusResponse
	if err := decodeBody(op, resp, &out); err != nil {
		return models.JobStatusResponse{}, err
	}
	if out.Status == "" {
		msg := out.Error
		if msg == "" {
			msg = "missing job status"
		}
		return models.JobStatusResponse{}, &ServerError{Op: op, StatusCode: resp.StatusCode(), Message: msg}
	}
	return out, nil
}

// Search runs a query as-is; the minimum length rule belongs to the caller.
func (c *Client) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	const op = "search"
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("query", query).
		Get("/search")
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	var out struct {
		Results []models.SearchResult `json:"results"`
	}
	if err := decodeBody(op, resp, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// ListNotifications returns the server feed in arrival order.
func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	const op = "list notifications"
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/notifications")
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	var out struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := decodeBody(op, resp, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// ServerStatus reports the size of the server index.
func (c *Client) ServerStatus(ctx context.Context) (models.ServerStatus, error) {
	const op = "server status"
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/status")
	if err != nil {
		return models.ServerStatus{}, &NetworkError{Op: op, Err: err}
	}
	var out models.ServerStatus
	if err := decodeBody(op, resp, &out); err != nil {
		return models.ServerStatus{}, err
	}
	return out, nil
}

// FetchFile streams a stored document into w. The server answers a missing
// file with a JSON {"error": ...} body, which becomes a *ServerError.
func (c *Client) FetchFile(ctx context.Context, filename string, w io.Writer) (int64, error) {
	const op = "fetch file"
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "*/*").
		SetQueryParam("filename", filename).
		Get("/download")
	if err != nil {
		return 0, &NetworkError{Op: op, Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		msg := errorMessage(raw)
		if msg == "" {
			msg = "Download failed"
		}
		return 0, &ServerError{Op: op, StatusCode: resp.StatusCode(), Message: msg}
	}

	var src io.Reader = body
	if strings.HasPrefix(strings.ToLower(resp.Header().Get("Content-Type")), "application/json") {
		head, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
		if err != nil {
			return 0, &NetworkError{Op: op, Err: err}
		}
		if msg := errorMessage(head); msg != "" {
			return 0, &ServerError{Op: op, StatusCode: resp.StatusCode(), Message: msg}
		}
		src = io.MultiReader(bytes.NewReader(head), body)
	}

	n, err := io.Copy(w, src)
	if err != nil {
		return n, &NetworkError{Op: op, Err: err}
	}
	return n, nil
}

func decodeBody(op string, resp *resty.Response, out any) error {
	raw := resp.Body()
	if !resp.IsSuccess() {
		msg := errorMessage(raw)
		if msg == "" {
			msg = strings.TrimSpace(resp.Status())
		}
		return &ServerError{Op: op, StatusCode: resp.StatusCode(), Message: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ServerError{Op: op, StatusCode: resp.StatusCode(), Message: "malformed response: " + err.Error()}
	}
	return nil
}

// errorMessage pulls "error", "message" or FastAPI's "detail" out of a body.
func errorMessage(raw []byte) string {
	var payload struct {
		Error   string          `json:"error"`
		Message string          `json:"message"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	switch {
	case payload.Error != "":
		return payload.Error
	case payload.Message != "":
		return payload.Message
	case len(payload.Detail) > 0:
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			return s
		}
		return string(payload.Detail)
	}
	return ""
}
