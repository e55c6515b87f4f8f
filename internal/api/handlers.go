package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docsearch/internal/events"
	"docsearch/internal/models"
	"docsearch/internal/search"
	"docsearch/internal/service/archive"
	"docsearch/internal/transport"
	"docsearch/internal/views"
)

const maxUploadBytes = 64 << 20

// Uploads is the upload/download coordinator behind the console.
type Uploads interface {
	NewControl() string
	Upload(ctx context.Context, control, filename string, body io.Reader, sync bool) (archive.ControlStatus, error)
	Status(control string) (archive.ControlStatus, bool)
	Statuses() []archive.ControlStatus
	DownloadTo(ctx context.Context, name string, w io.Writer) (int64, error)
}

type JobLister interface {
	Jobs() []models.UploadJob
}

type Searcher interface {
	Search(ctx context.Context, query string, showRaw bool) (search.Outcome, error)
}

type Feed interface {
	Snapshot() []views.NotificationView
}

type History interface {
	Since(seq int64) []events.Event
}

type StatusSource interface {
	ServerStatus(ctx context.Context) (models.ServerStatus, error)
}

// Handler wires the console routes to the client coordinators.
type Handler struct {
	uploads  Uploads
	jobs     JobLister
	searcher Searcher
	feed     Feed
	history  History
	upstream StatusSource
}

// NewHandler constructs a Handler instance.
func NewHandler(uploads Uploads, jobs JobLister, searcher Searcher, feed Feed, history History, upstream StatusSource) *Handler {
	return &Handler{
		uploads:  uploads,
		jobs:     jobs,
		searcher: searcher,
		feed:     feed,
		history:  history,
		upstream: upstream,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/uploads", h.createUpload)
	api.GET("/uploads", h.listUploads)
	api.GET("/uploads/:control", h.getUpload)
	api.GET("/jobs", h.listJobs)
	api.GET("/search", h.search)
	api.GET("/download", h.download)
	api.GET("/notifications", h.listNotifications)
	api.GET("/events", h.listEvents)
	api.GET("/status", h.serverStatus)
}

func (h *Handler) createUpload(c *gin.Context) {
	control := c.PostForm("control")
	if control == "" {
		control = h.uploads.NewControl()
	}
	syncIndex, _ := strconv.ParseBool(c.Query("sync"))

	file, err := c.FormFile("file")
	if err != nil {
		st, _ := h.uploads.Upload(c.Request.Context(), control, "", nil, false)
		c.JSON(http.StatusBadRequest, gin.H{"error": st.Text, "control": control})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large", "control": control})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed", "control": control})
		return
	}
	defer f.Close()

	st, err := h.uploads.Upload(c.Request.Context(), control, file.Filename, f, syncIndex)
	if err != nil {
		var rej *archive.RejectedError
		switch {
		case errors.Is(err, archive.ErrNoFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": st.Text, "control": control})
		case errors.As(err, &rej):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": st.Text, "control": control})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": st.Text, "control": control})
		}
		return
	}
	code := http.StatusAccepted
	if st.State == archive.StateDone {
		code = http.StatusCreated
	}
	c.JSON(code, st)
}

func (h *Handler) listUploads(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"uploads": h.uploads.Statuses()})
}

func (h *Handler) getUpload(c *gin.Context) {
	st, ok := h.uploads.Status(c.Param("control"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "control not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.jobs.Jobs()})
}

func (h *Handler) search(c *gin.Context) {
	showRaw, _ := strconv.ParseBool(c.Query("raw"))
	out, err := h.searcher.Search(c.Request.Context(), c.Query("query"), showRaw)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": views.FetchFailed})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) download(c *gin.Context) {
	name := c.Query("filename")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
		return
	}
	w := &attachmentWriter{c: c, name: name}
	if _, err := h.uploads.DownloadTo(c.Request.Context(), name, w); err != nil {
		if w.started {
			c.Abort()
			return
		}
		st, _ := h.uploads.Status(archive.DownloadControl)
		code := http.StatusBadGateway
		var se *transport.ServerError
		if errors.As(err, &se) && se.Message == "File not found" {
			code = http.StatusNotFound
		}
		c.JSON(code, gin.H{"error": st.Text})
		return
	}
	if !w.started {
		w.start()
	}
}

// attachmentWriter delays the response headers until the first byte arrives,
// so a failed fetch can still answer with a JSON error.
type attachmentWriter struct {
	c       *gin.Context
	name    string
	started bool
}

func (w *attachmentWriter) start() {
	w.started = true
	w.c.Header("Content-Type", "application/octet-stream")
	w.c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": w.name}))
	w.c.Status(http.StatusOK)
	w.c.Writer.WriteHeaderNow()
}

func (w *attachmentWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.start()
	}
	return w.c.Writer.Write(p)
}

func (h *Handler) listNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": h.feed.Snapshot()})
}

func (h *Handler) listEvents(c *gin.Context) {
	var since int64
	if raw := c.Query("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
			return
		}
		since = v
	}
	c.JSON(http.StatusOK, gin.H{"events": h.history.Since(since)})
}

func (h *Handler) serverStatus(c *gin.Context) {
	st, err := h.upstream.ServerStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": transport.Message(err)})
		return
	}
	c.JSON(http.StatusOK, st)
}
