package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"docsearch/internal/service/archive"
)

const DefaultDebounce = 500 * time.Millisecond

// Uploader sends a file on disk to the indexing service.
type Uploader interface {
	UploadFile(ctx context.Context, control, path string, sync bool) (archive.ControlStatus, error)
}

// Control is the control id used for a file dropped into the watched folder.
func Control(name string) string {
	return "watch:" + name
}

// Watcher uploads files that appear or change in a directory. Bursts of
// events for the same file collapse into one upload after the debounce delay.
type Watcher struct {
	dir      string
	debounce time.Duration
	uploader Uploader

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	uploads sync.WaitGroup
	loop    sync.WaitGroup
	fsw     *fsnotify.Watcher
}

func New(dir string, debounce time.Duration, uploader Uploader) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		uploader: uploader,
		pending:  make(map[string]*time.Timer),
	}
}

// Start begins watching. Events are handled until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch dir %s is not a directory", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.fsw = fsw

	log.Printf("watching %s for new documents", w.dir)
	w.loop.Add(1)
	go w.run(ctx)
	return nil
}

// Wait blocks until the watcher has stopped and in-flight uploads returned.
func (w *Watcher) Wait() {
	w.loop.Wait()
	w.uploads.Wait()
}

func (w *Watcher) run(ctx context.Context) {
	defer w.loop.Done()
	defer w.fsw.Close()
	defer w.cancelPending()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watch %s error: %v", w.dir, err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(ctx, ev.Name)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(ev.Name)
	}
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		if w.closed {
			w.mu.Unlock()
			return
		}
		w.uploads.Add(1)
		w.mu.Unlock()
		defer w.uploads.Done()
		w.upload(ctx, path)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) upload(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	name := filepath.Base(path)
	st, err := w.uploader.UploadFile(ctx, Control(name), path, false)
	if err != nil {
		log.Printf("watch upload %s failed: %v", name, err)
		return
	}
	log.Printf("watch upload %s: %s", name, st.Text)
}
