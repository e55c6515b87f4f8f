package tracker

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"docsearch/internal/events"
	"docsearch/internal/models"
)

const (
	DefaultInterval = 2 * time.Second
	unknownFailure  = "Unknown error"
)

// StatusSource reads server-side job status.
type StatusSource interface {
	GetJobStatus(ctx context.Context, jobID string) (models.JobStatusResponse, error)
}

// Publisher receives tracker events.
type Publisher interface {
	Publish(events.Event) events.Event
}

// Config tunes the poll loop. MaxAttempts of zero polls until the server
// reports a terminal status.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// Tracker owns one poll loop per tracked job, from creation to a terminal status.
type Tracker struct {
	source      StatusSource
	bus         Publisher
	interval    time.Duration
	maxAttempts int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*jobState
}

type jobState struct {
	job    models.UploadJob
	cancel context.CancelFunc // poll handle; nil once released
	done   chan struct{}      // closed when the loop exits
}

// New creates a tracker. Loops run until their job settles or Stop is called.
func New(source StatusSource, bus Publisher, cfg Config) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		source:      source,
		bus:         bus,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		ctx:         ctx,
		cancel:      cancel,
		jobs:        make(map[string]*jobState),
	}
}

// Track starts polling jobID. Tracking a job id that is already known does
// not start a second loop; the existing job is returned with started=false.
func (t *Tracker) Track(jobID, filename, control string) (models.UploadJob, bool) {
	t.mu.Lock()
	if st, ok := t.jobs[jobID]; ok {
		job := st.job
		t.mu.Unlock()
		debugLog("[tracker] job %s already tracked (%s)", jobID, job.Status)
		return job, false
	}
	ctx, cancel := context.WithCancel(t.ctx)
	st := &jobState{
		job: models.UploadJob{
			JobID:     jobID,
			Filename:  filename,
			Control:   control,
			Status:    models.JobPending,
			StartedAt: time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.jobs[jobID] = st
	job := st.job
	t.wg.Add(1)
	t.mu.Unlock()

	debugLog("[tracker] start polling job %s every %s", jobID, t.interval)
	go t.poll(ctx, st)
	return job, true
}

// Get returns a snapshot of one job.
func (t *Tracker) Get(jobID string) (models.UploadJob, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.jobs[jobID]
	if !ok {
		return models.UploadJob{}, false
	}
	return st.job, true
}

// Jobs returns snapshots of all jobs ordered by start time.
func (t *Tracker) Jobs() []models.UploadJob {
	t.mu.RLock()
	out := make([]models.UploadJob, 0, len(t.jobs))
	for _, st := range t.jobs {
		out = append(out, st.job)
	}
	t.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].JobID < out[j].JobID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Active counts jobs that still hold a poll handle.
func (t *Tracker) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, st := range t.jobs {
		if st.cancel != nil {
			n++
		}
	}
	return n
}

// Wait blocks until jobID settles. A failed job yields *JobFailedError.
func (t *Tracker) Wait(ctx context.Context, jobID string) (models.UploadJob, error) {
	t.mu.RLock()
	st, ok := t.jobs[jobID]
	t.mu.RUnlock()
	if !ok {
		return models.UploadJob{}, ErrUnknownJob
	}

	select {
	case <-ctx.Done():
		job, _ := t.Get(jobID)
		return job, ctx.Err()
	case <-st.done:
	}

	job, _ := t.Get(jobID)
	switch job.Status {
	case models.JobDone:
		return job, nil
	case models.JobFailed:
		return job, failure(job)
	default:
		return job, ErrStopped
	}
}

// Stop cancels every poll loop and waits for them to exit. Jobs that had not
// settled stay pending.
func (t *Tracker) Stop() {
	t.cancel()
	t.wg.Wait()
}

func (t *Tracker) poll(ctx context.Context, st *jobState) {
	defer t.wg.Done()
	defer close(st.done)
	defer t.release(st)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.tick(ctx, st) {
				return
			}
		}
	}
}

// tick performs one status poll and reports whether the loop should end.
func (t *Tracker) tick(ctx context.Context, st *jobState) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("job %s poll tick panic: %v", st.job.JobID, r)
			stop = false
		}
	}()

	t.mu.Lock()
	st.job.Attempts++
	job := st.job
	t.mu.Unlock()

	resp, err := t.source.GetJobStatus(ctx, job.JobID)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		log.Printf("job %s tracking error: %v", job.JobID, err)
		return t.checkLimit(st, job)
	}

	debugLog("[tracker] job %s attempt %d status %s", job.JobID, job.Attempts, resp.Status)
	switch resp.Status {
	case models.JobDone:
		t.finish(st, models.JobDone, "", nil)
		return true
	case models.JobFailed:
		msg := resp.Error
		if msg == "" {
			msg = unknownFailure
		}
		t.finish(st, models.JobFailed, msg, nil)
		return true
	default:
		t.bus.Publish(events.Event{
			Kind:     events.KindJobProgress,
			Control:  job.Control,
			JobID:    job.JobID,
			Filename: job.Filename,
			Message:  string(resp.Status),
		})
		return t.checkLimit(st, job)
	}
}

func (t *Tracker) checkLimit(st *jobState, job models.UploadJob) bool {
	if t.maxAttempts == 0 || job.Attempts < t.maxAttempts {
		return false
	}
	t.finish(st, models.JobFailed, ErrPollLimit.Error(), ErrPollLimit)
	return true
}

// finish applies the single pending -> terminal transition and emits its event.
func (t *Tracker) finish(st *jobState, status models.JobStatus, msg string, cause error) {
	t.mu.Lock()
	if st.job.Status.Terminal() {
		t.mu.Unlock()
		return
	}
	st.job.Status = status
	st.job.Error = msg
	st.job.FinishedAt = time.Now().UTC()
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	job := st.job
	t.mu.Unlock()

	ev := events.Event{
		Control:  job.Control,
		JobID:    job.JobID,
		Filename: job.Filename,
	}
	if status == models.JobDone {
		ev.Kind = events.KindJobDone
	} else {
		ev.Kind = events.KindJobFailed
		ev.Message = msg
		if cause == nil {
			log.Printf("job %s failed: %s", job.JobID, msg)
		} else {
			log.Printf("job %s abandoned after %d attempts: %v", job.JobID, job.Attempts, cause)
		}
	}
	t.bus.Publish(ev)
}

func (t *Tracker) release(st *jobState) {
	t.mu.Lock()
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	t.mu.Unlock()
}

func failure(job models.UploadJob) error {
	fe := &JobFailedError{JobID: job.JobID, Filename: job.Filename, Message: job.Error}
	if job.Error == ErrPollLimit.Error() {
		fe.Err = ErrPollLimit
	}
	return fe
}
