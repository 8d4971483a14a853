package tui

import (
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the bursts of events one atomic save produces.
const DefaultDebounce = 150 * time.Millisecond

// Watcher signals on C whenever the database file changes. It watches the
// parent directory since every save replaces the file by rename.
type Watcher struct {
	C <-chan struct{}

	fw       *fsnotify.Watcher
	path     string
	debounce time.Duration
	logger   *log.Logger
	out      chan struct{}
	done     chan struct{}
	once     sync.Once
}

// Watch starts watching path. The parent directory must exist.
func Watch(path string, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	w := &Watcher{
		C:        out,
		fw:       fw,
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   logger,
		out:      out,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		close(w.out)
	}()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op == fsnotify.Chmod {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watch error", "path", w.path, "err", err)
		case <-fire:
			fire = nil
			select {
			case w.out <- struct{}{}:
			default:
			}
		}
	}
}

// Close stops the watcher and closes C.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fw.Close()
	})
	return err
}
