package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"docsearch/internal/events"
	"docsearch/internal/models"
	"docsearch/internal/views"
)

const DefaultInterval = 8 * time.Second

// Lister fetches the server notification feed.
type Lister interface {
	ListNotifications(ctx context.Context) ([]models.Notification, error)
}

// Bus is the event surface the synchronizer needs.
type Bus interface {
	Publish(events.Event) events.Event
	Subscribe(events.Handler) func()
}

// Synchronizer keeps a local copy of the notification feed. The copy is only
// ever replaced whole, and a failed fetch leaves it untouched.
type Synchronizer struct {
	source   Lister
	bus      Bus
	interval time.Duration
	loc      *time.Location

	mu     sync.RWMutex
	list   []models.Notification
	synced time.Time

	refreshMu sync.Mutex

	runMu  sync.Mutex
	cancel context.CancelFunc
	unsub  func()
	wg     sync.WaitGroup
	kick   chan struct{}
}

// New creates a synchronizer. loc controls how timestamps are rendered; nil
// means the local zone.
func New(source Lister, bus Bus, interval time.Duration, loc *time.Location) *Synchronizer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Synchronizer{
		source:   source,
		bus:      bus,
		interval: interval,
		loc:      loc,
		kick:     make(chan struct{}, 1),
	}
}

// Start refreshes once, then on every tick and whenever a resync event is
// published, until ctx is cancelled or Stop is called. Starting twice is a no-op.
func (s *Synchronizer) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.unsub = s.bus.Subscribe(func(ev events.Event) {
		if ev.Resync() {
			s.hint()
		}
	})
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop ends the refresh loop and waits for it.
func (s *Synchronizer) Stop() {
	s.runMu.Lock()
	cancel, unsub := s.cancel, s.unsub
	s.cancel, s.unsub = nil, nil
	s.runMu.Unlock()
	if cancel == nil {
		return
	}
	unsub()
	cancel()
	s.wg.Wait()
}

func (s *Synchronizer) hint() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) run(ctx context.Context) {
	defer s.wg.Done()
	s.safeRefresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeRefresh(ctx)
		case <-s.kick:
			s.safeRefresh(ctx)
		}
	}
}

func (s *Synchronizer) safeRefresh(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("notification refresh panic: %v", r)
		}
	}()
	_ = s.Refresh(ctx)
}

// Refresh fetches the feed and swaps it in. On error the previous list stays.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	list, err := s.source.ListNotifications(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("notification sync failed: %v", err)
		}
		return fmt.Errorf("refresh notifications: %w", err)
	}
	if list == nil {
		list = []models.Notification{}
	}

	s.mu.Lock()
	s.list = list
	s.synced = time.Now().UTC()
	s.mu.Unlock()

	s.bus.Publish(events.Event{
		Kind:    events.KindNotificationsSynced,
		Message: fmt.Sprintf("%d notifications", len(list)),
	})
	return nil
}

// List returns the feed in arrival order.
func (s *Synchronizer) List() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list
}

// LastSynced is the time of the last successful refresh.
func (s *Synchronizer) LastSynced() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

// Snapshot returns the rendered feed, newest first.
func (s *Synchronizer) Snapshot() []views.NotificationView {
	return views.Feed(s.List(), s.loc)
}
