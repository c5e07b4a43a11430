package content

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 250 * time.Millisecond

// Loader serves the current content and, when watching, swaps in a new
// version after the file changes. A broken edit keeps the previous content.
type Loader struct {
	path string

	mu      sync.RWMutex
	site    *Site
	changed []func(*Site)
}

func NewLoader(path string) (*Loader, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Loader{path: path, site: s}, nil
}

func (l *Loader) Site() *Site {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.site
}

// OnChange registers fn to run after each successful reload.
func (l *Loader) OnChange(fn func(*Site)) {
	l.mu.Lock()
	l.changed = append(l.changed, fn)
	l.mu.Unlock()
}

// Reload re-reads the file now.
func (l *Loader) Reload() error {
	s, err := Load(l.path)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.site = s
	fns := append([]func(*Site){}, l.changed...)
	l.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
	return nil
}

// Watch reloads on writes to the file until ctx is done. It watches the
// directory so editors that replace the file on save are seen too.
func (l *Loader) Watch(ctx context.Context) error {
	if l.path == "" {
		return fmt.Errorf("content: nothing to watch, using embedded default")
	}
	abs, err := filepath.Abs(l.path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer w.Close()
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if name, _ := filepath.Abs(ev.Name); name != abs {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					if err := l.Reload(); err != nil {
						log.Printf("[content] reload %s: %v", l.path, err)
						return
					}
					log.Printf("[content] reloaded %s", l.path)
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("[content] watcher: %v", err)
			}
		}
	}()
	log.Printf("[content] watching %s", l.path)
	return nil
}
