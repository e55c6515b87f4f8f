package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docsearch/internal/events"
	"docsearch/internal/models"
	"docsearch/internal/transport"
	"docsearch/internal/views"
)

// DownloadControl is the control that download progress is reported on.
const DownloadControl = "download"

var (
	ErrNoFile      = errors.New("no file selected")
	ErrInvalidName = errors.New("invalid file name")
)

// RejectedError is an upload the server answered without a job or document id.
type RejectedError struct {
	Filename string
	Message  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("upload %s rejected: %s", e.Filename, e.Message)
}

// Transport is the part of the service client used for file transfer.
type Transport interface {
	SubmitUpload(ctx context.Context, filename string, body io.Reader, sync bool) (models.UploadResponse, error)
	FetchFile(ctx context.Context, filename string, w io.Writer) (int64, error)
}

// JobTracker takes over jobs the server indexes asynchronously.
type JobTracker interface {
	Track(jobID, filename, control string) (models.UploadJob, bool)
}

type Bus interface {
	Publish(events.Event) events.Event
	Subscribe(events.Handler) func()
}

// ControlState is the coarse phase of a control.
type ControlState string

const (
	StateIdle        ControlState = "idle"
	StateUploading   ControlState = "uploading"
	StateIndexing    ControlState = "indexing"
	StateDone        ControlState = "done"
	StateFailed      ControlState = "failed"
	StateDownloading ControlState = "downloading"
)

// ControlStatus is the status line owned by one input control. Cleared is set
// once the file behind the control has been indexed and the input may be reset.
type ControlStatus struct {
	Control   string       `json:"control"`
	Filename  string       `json:"filename,omitempty"`
	JobID     string       `json:"job_id,omitempty"`
	State     ControlState `json:"state"`
	Text      string       `json:"text"`
	Cleared   bool         `json:"cleared"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Service runs uploads and downloads and keeps each control's status text in
// step with the jobs it started.
type Service struct {
	transport Transport
	jobs      JobTracker
	bus       Bus
	unsub     func()

	mu       sync.RWMutex
	controls map[string]ControlStatus
}

func New(tr Transport, jobs JobTracker, bus Bus) *Service {
	s := &Service{
		transport: tr,
		jobs:      jobs,
		bus:       bus,
		controls:  make(map[string]ControlStatus),
	}
	s.unsub = bus.Subscribe(s.onEvent)
	return s
}

// Close detaches the service from the bus.
func (s *Service) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

// NewControl returns a fresh control id.
func (s *Service) NewControl() string {
	return uuid.NewString()
}

// Status returns the current status of control.
func (s *Service) Status(control string) (ControlStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.controls[control]
	return st, ok
}

// Statuses returns every known control, most recently updated first.
func (s *Service) Statuses() []ControlStatus {
	s.mu.RLock()
	out := make([]ControlStatus, 0, len(s.controls))
	for _, st := range s.controls {
		out = append(out, st)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// UploadFile opens path and uploads it under its base name.
func (s *Service) UploadFile(ctx context.Context, control, path string, sync bool) (ControlStatus, error) {
	if path == "" {
		return s.Upload(ctx, control, "", nil, sync)
	}
	f, err := os.Open(path)
	if err != nil {
		st := s.set(ControlStatus{Control: control, Filename: filepath.Base(path), State: StateFailed, Text: views.Error(err.Error())})
		return st, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return s.Upload(ctx, control, filepath.Base(path), f, sync)
}

// Upload submits body as filename. A queued job is handed to the tracker and
// the control follows it; a synchronous index completes the control at once.
// Starting a new upload on a control rebinds it; the previous job keeps polling.
func (s *Service) Upload(ctx context.Context, control, filename string, body io.Reader, sync bool) (ControlStatus, error) {
	if control == "" {
		control = s.NewControl()
	}
	if filename == "" || body == nil {
		return s.set(ControlStatus{Control: control, State: StateIdle, Text: views.SelectFile}), ErrNoFile
	}

	s.set(ControlStatus{Control: control, Filename: filename, State: StateUploading, Text: views.Uploading(filename)})

	resp, err := s.transport.SubmitUpload(ctx, filename, body, sync)
	if err != nil {
		log.Printf("upload %s failed: %v", filename, err)
		text := views.Error(transport.Message(err))
		var se *transport.ServerError
		if errors.As(err, &se) && se.Message != "" {
			text = se.Message
		}
		st := s.set(ControlStatus{Control: control, Filename: filename, State: StateFailed, Text: text})
		s.publish(events.KindUploadFailed, st, text)
		return st, err
	}

	switch {
	case resp.Queued():
		st := s.set(ControlStatus{Control: control, Filename: filename, JobID: resp.JobID, State: StateIndexing, Text: views.Queued(filename)})
		s.jobs.Track(resp.JobID, filename, control)
		return st, nil
	case resp.Indexed():
		st := s.set(ControlStatus{Control: control, Filename: filename, State: StateDone, Text: views.Indexed(filename), Cleared: true})
		s.publish(events.KindUploadDone, st, "doc "+string(resp.DocID))
		return st, nil
	default:
		reason := resp.Reason()
		st := s.set(ControlStatus{Control: control, Filename: filename, State: StateFailed, Text: reason})
		s.publish(events.KindUploadFailed, st, reason)
		return st, &RejectedError{Filename: filename, Message: reason}
	}
}

// Download saves name into dir and returns the written path. Only the base
// name is used so a server-supplied name cannot escape dir.
func (s *Service) Download(ctx context.Context, name, dir string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		s.downloadFailed(name, views.Error(ErrInvalidName.Error()))
		return "", ErrInvalidName
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.downloadFailed(base, views.Error(err.Error()))
		return "", fmt.Errorf("create download dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+base+".*.part")
	if err != nil {
		s.downloadFailed(base, views.Error(err.Error()))
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, err = s.DownloadTo(ctx, name, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = cerr
		s.downloadFailed(base, views.Error(cerr.Error()))
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	dest := filepath.Join(dir, base)
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		s.downloadFailed(base, views.Error(err.Error()))
		return "", fmt.Errorf("move download into place: %w", err)
	}
	return dest, nil
}

// DownloadTo streams name into w, reporting progress on DownloadControl.
func (s *Service) DownloadTo(ctx context.Context, name string, w io.Writer) (int64, error) {
	s.set(ControlStatus{Control: DownloadControl, Filename: name, State: StateDownloading, Text: views.Downloading(name)})

	n, err := s.transport.FetchFile(ctx, name, w)
	if err != nil {
		log.Printf("download %s failed: %v", name, err)
		text := views.DownloadFailed
		var se *transport.ServerError
		if errors.As(err, &se) && se.Message != "" {
			text = views.Error(se.Message)
		}
		s.downloadFailed(name, text)
		return n, err
	}

	st := s.set(ControlStatus{Control: DownloadControl, Filename: name, State: StateDone, Text: views.Downloaded(name)})
	s.publish(events.KindDownloadDone, st, fmt.Sprintf("%d bytes", n))
	return n, nil
}

func (s *Service) downloadFailed(name, text string) {
	st := s.set(ControlStatus{Control: DownloadControl, Filename: name, State: StateFailed, Text: text})
	s.publish(events.KindDownloadFailed, st, text)
}

// onEvent moves a control along with the job it is bound to. Events for a job
// the control no longer follows are ignored.
func (s *Service) onEvent(ev events.Event) {
	if ev.Origin != "" || ev.JobID == "" || ev.Control == "" {
		return
	}
	var next ControlStatus
	switch ev.Kind {
	case events.KindJobProgress:
		next = ControlStatus{State: StateIndexing, Text: views.Indexing(ev.Filename)}
	case events.KindJobDone:
		next = ControlStatus{State: StateDone, Text: views.Indexed(ev.Filename), Cleared: true}
	case events.KindJobFailed:
		next = ControlStatus{State: StateFailed, Text: views.Failed(ev.Message)}
	default:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.controls[ev.Control]
	if !ok || cur.JobID != ev.JobID {
		return
	}
	next.Control = cur.Control
	next.Filename = cur.Filename
	next.JobID = cur.JobID
	next.UpdatedAt = time.Now().UTC()
	s.controls[ev.Control] = next
}

func (s *Service) set(st ControlStatus) ControlStatus {
	st.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	s.controls[st.Control] = st
	s.mu.Unlock()
	return st
}

func (s *Service) publish(kind events.Kind, st ControlStatus, msg string) {
	s.bus.Publish(events.Event{
		Kind:     kind,
		Control:  st.Control,
		JobID:    st.JobID,
		Filename: st.Filename,
		Message:  msg,
	})
}
