package events

import (
	"slices"
	"sync"
	"time"
)

// Kind classifies what happened in a coordinator.
type Kind string

const (
	KindUploadDone          Kind = "upload.done"
	KindUploadFailed        Kind = "upload.failed"
	KindJobProgress         Kind = "job.progress"
	KindJobDone             Kind = "job.done"
	KindJobFailed           Kind = "job.failed"
	KindDownloadDone        Kind = "download.done"
	KindDownloadFailed      Kind = "download.failed"
	KindSearchDone          Kind = "search.done"
	KindNotificationsSynced Kind = "notifications.synced"
)

// Event is a sequenced record of a completed or progressing operation.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Control   string    `json:"control,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Query     string    `json:"query,omitempty"`
	Message   string    `json:"message,omitempty"`
	// Origin is empty for local events and names the remote instance otherwise.
	Origin string `json:"origin,omitempty"`
}

// Resync reports whether the event should refresh the notification feed.
func (e Event) Resync() bool {
	switch e.Kind {
	case KindUploadDone, KindJobDone, KindDownloadDone, KindSearchDone:
		return true
	default:
		return false
	}
}

// Handler receives published events. It runs on the publisher's goroutine
// and must not block.
type Handler func(Event)

// Bus keeps a bounded event history and fans events out to subscribers.
type Bus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	nextSub   int
	subs      map[int]Handler
}

// NewBus creates a bus that remembers at most maxEvents events.
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &Bus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		subs:      make(map[int]Handler),
	}
}

// Publish assigns sequence and timestamp, records the event and notifies
// subscribers in subscription order.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}
	handlers := b.handlersLocked()
	b.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
	return event
}

// Subscribe registers h and returns a func that removes it.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = h
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Since returns events with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

func (b *Bus) handlersLocked() []Handler {
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Handler, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.subs[id])
	}
	return out
}
