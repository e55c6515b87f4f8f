package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docsearch/internal/events"
	"docsearch/internal/models"
	"docsearch/internal/transport"
)

const testInterval = 5 * time.Millisecond

type scriptStep struct {
	status models.JobStatus
	errMsg string
	err    error
}

// scriptedSource replays steps per job and repeats the last one.
type scriptedSource struct {
	mu       sync.Mutex
	steps    map[string][]scriptStep
	calls    map[string]int
	inFlight map[string]int
	maxPar   map[string]int
	delay    time.Duration
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{
		steps:    make(map[string][]scriptStep),
		calls:    make(map[string]int),
		inFlight: make(map[string]int),
		maxPar:   make(map[string]int),
	}
}

func (s *scriptedSource) script(jobID string, steps ...scriptStep) {
	s.mu.Lock()
	s.steps[jobID] = steps
	s.mu.Unlock()
}

func (s *scriptedSource) GetJobStatus(ctx context.Context, jobID string) (models.JobStatusResponse, error) {
	s.mu.Lock()
	idx := s.calls[jobID]
	s.calls[jobID]++
	s.inFlight[jobID]++
	if s.inFlight[jobID] > s.maxPar[jobID] {
		s.maxPar[jobID] = s.inFlight[jobID]
	}
	steps := s.steps[jobID]
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.inFlight[jobID]--
	s.mu.Unlock()

	if len(steps) == 0 {
		return models.JobStatusResponse{Status: models.JobPending}, nil
	}
	if idx >= len(steps) {
		idx = len(steps) - 1
	}
	step := steps[idx]
	if step.err != nil {
		return models.JobStatusResponse{}, step.err
	}
	return models.JobStatusResponse{JobID: jobID, Status: step.status, Error: step.errMsg}, nil
}

func (s *scriptedSource) callCount(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[jobID]
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) events.Event {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return ev
}

func (r *recorder) kinds(jobID string) []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Kind
	for _, ev := range r.events {
		if ev.JobID == jobID {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func waitJob(t *testing.T, tr *Tracker, jobID string) (models.UploadJob, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	job, err := tr.Wait(ctx, jobID)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("job %s did not settle, last state %+v", jobID, job)
	}
	return job, err
}

func TestPendingTwiceThenDone(t *testing.T) {
	src := newScriptedSource()
	src.script("J1",
		scriptStep{status: models.JobPending},
		scriptStep{status: models.JobPending},
		scriptStep{status: models.JobDone},
	)
	rec := &recorder{}
	tr := New(src, rec, Config{Interval: testInterval})
	defer tr.Stop()

	if _, started := tr.Track("J1", "report.pdf", "upload"); !started {
		t.Fatal("expected a new poll loop")
	}
	job, err := waitJob(t, tr, "J1")
	if err != nil {
		t.Fatalf("Wait error: %v", err)
	}
	if job.Status != models.JobDone || job.Attempts != 3 {
		t.Fatalf("unexpected job %+v", job)
	}

	time.Sleep(5 * testInterval)
	if got := src.callCount("J1"); got != 3 {
		t.Fatalf("status polled %d times, want 3", got)
	}
	want := []events.Kind{events.KindJobProgress, events.KindJobProgress, events.KindJobDone}
	got := rec.kinds("J1")
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if tr.Active() != 0 {
		t.Fatalf("poll handle not released, active = %d", tr.Active())
	}
}

func TestPollErrorDoesNotEndLoop(t *testing.T) {
	src := newScriptedSource()
	src.script("J2",
		scriptStep{err: &transport.NetworkError{Op: "get job status", Err: errors.New("connection refused")}},
		scriptStep{status: models.JobDone},
	)
	rec := &recorder{}
	tr := New(src, rec, Config{Interval: testInterval})
	defer tr.Stop()

	tr.Track("J2", "notes.docx", "upload")
	job, err := waitJob(t, tr, "J2")
	if err != nil {
		t.Fatalf("Wait error: %v", err)
	}
	if job.Status != models.JobDone {
		t.Fatalf("status = %s, want done", job.Status)
	}
	kinds := rec.kinds("J2")
	if len(kinds) != 1 || kinds[0] != events.KindJobDone {
		t.Fatalf("a failed poll must only be logged, events = %v", kinds)
	}
}

func TestFailedStatusIsTerminal(t *testing.T) {
	src := newScriptedSource()
	src.script("J3", scriptStep{status: models.JobFailed, errMsg: "ocr crashed"})
	src.script("J4", scriptStep{status: models.JobFailed})
	rec := &recorder{}
	tr := New(src, rec, Config{Interval: testInterval})
	defer tr.Stop()

	tr.Track("J3", "scan.png", "a")
	tr.Track("J4", "scan2.png", "b")

	job, err := waitJob(t, tr, "J3")
	var fe *JobFailedError
	if !errors.As(err, &fe) || fe.Message != "ocr crashed" || job.Status != models.JobFailed {
		t.Fatalf("expected JobFailedError with server message, got %v (%+v)", err, job)
	}
	_, err = waitJob(t, tr, "J4")
	if !errors.As(err, &fe) || fe.Message != "Unknown error" {
		t.Fatalf("expected fallback message, got %v", err)
	}

	calls := src.callCount("J3")
	time.Sleep(5 * testInterval)
	if src.callCount("J3") != calls {
		t.Fatalf("polling continued after failed status")
	}
}

func TestPendingForeverNeverSettles(t *testing.T) {
	src := newScriptedSource()
	src.script("J5", scriptStep{status: models.JobRunning})
	rec := &recorder{}
	tr := New(src, rec, Config{Interval: testInterval})

	tr.Track("J5", "big.pdf", "upload")
	time.Sleep(20 * testInterval)

	job, _ := tr.Get("J5")
	if job.Status != models.JobPending {
		t.Fatalf("status = %s, want pending", job.Status)
	}
	if tr.Active() != 1 {
		t.Fatalf("active = %d, want 1", tr.Active())
	}
	if src.callCount("J5") < 5 {
		t.Fatalf("expected repeated polling, got %d calls", src.callCount("J5"))
	}

	tr.Stop()
	job, err := tr.Wait(context.Background(), "J5")
	if !errors.Is(err, ErrStopped) || job.Status != models.JobPending {
		t.Fatalf("stopped job should stay pending, got %v (%+v)", err, job)
	}
	for _, k := range rec.kinds("J5") {
		if k != events.KindJobProgress {
			t.Fatalf("unexpected terminal event %s", k)
		}
	}
}

func TestPollLimitEndsJob(t *testing.T) {
	src := newScriptedSource()
	rec := &recorder{}
	tr := New(src, rec, Config{Interval: testInterval, MaxAttempts: 4})
	defer tr.Stop()

	tr.Track("J6", "stuck.pdf", "upload")
	job, err := waitJob(t, tr, "J6")
	if !errors.Is(err, ErrPollLimit) {
		t.Fatalf("expected ErrPollLimit, got %v", err)
	}
	if job.Status != models.JobFailed || job.Attempts != 4 {
		t.Fatalf("unexpected job %+v", job)
	}
	if got := src.callCount("J6"); got != 4 {
		t.Fatalf("polled %d times, want 4", got)
	}
}

func TestTrackSameJobKeepsSingleLoop(t *testing.T) {
	src := newScriptedSource()
	src.delay = 3 * testInterval
	rec := &recorder{}
	tr := New(src, rec, Config{Interval: testInterval})

	if _, started := tr.Track("J7", "a.pdf", "upload"); !started {
		t.Fatal("first Track should start polling")
	}
	for i := 0; i < 5; i++ {
		if _, started := tr.Track("J7", "a.pdf", "upload"); started {
			t.Fatal("second Track must not start another loop")
		}
	}
	time.Sleep(20 * testInterval)
	tr.Stop()

	src.mu.Lock()
	defer src.mu.Unlock()
	if src.maxPar["J7"] != 1 {
		t.Fatalf("observed %d concurrent polls for one job", src.maxPar["J7"])
	}
	if tr.Active() != 0 {
		t.Fatalf("Stop should release all handles, active = %d", tr.Active())
	}
}

func TestConcurrentJobsAreIndependent(t *testing.T) {
	src := newScriptedSource()
	src.script("A", scriptStep{status: models.JobPending}, scriptStep{status: models.JobPending}, scriptStep{status: models.JobDone})
	src.script("B", scriptStep{status: models.JobDone})
	rec := &recorder{}
	tr := New(src, rec, Config{Interval: testInterval})
	defer tr.Stop()

	tr.Track("A", "a.pdf", "ctl-a")
	tr.Track("B", "b.pdf", "ctl-b")

	if _, err := waitJob(t, tr, "B"); err != nil {
		t.Fatalf("B: %v", err)
	}
	if _, err := waitJob(t, tr, "A"); err != nil {
		t.Fatalf("A: %v", err)
	}
	jobs := tr.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}
	for _, job := range jobs {
		if job.Status != models.JobDone {
			t.Fatalf("job %s status %s", job.JobID, job.Status)
		}
	}
}

func TestWaitUnknownJob(t *testing.T) {
	tr := New(newScriptedSource(), &recorder{}, Config{Interval: testInterval})
	defer tr.Stop()
	if _, err := tr.Wait(context.Background(), "nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}
