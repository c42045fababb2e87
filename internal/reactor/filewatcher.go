package reactor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period a FileWatcher waits for before it
// reports a change.
const DefaultDebounce = 500 * time.Millisecond

// FileWatcher reports changes of a single file, debounced.
//
// The parent directory is watched rather than the file itself, so editors
// that save by writing a temporary file and renaming it are seen as well.
// The callback runs on the goroutine running Run.
type FileWatcher struct {
	path     string
	debounce time.Duration
	onChange func()
	fsw      *fsnotify.Watcher
	logger   *slog.Logger

	closeOnce sync.Once
}

// NewFileWatcher starts watching path. A debounce of zero means
// DefaultDebounce.
func NewFileWatcher(path string, debounce time.Duration, onChange func(), logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &FileWatcher{
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		fsw:      fsw,
		logger:   logger,
	}, nil
}

// Run reports changes until ctx is cancelled or the watcher is closed. A
// change still waiting out its debounce period when Run returns is dropped.
func (w *FileWatcher) Run(ctx context.Context) error {
	defer w.Close()
	w.logger.Info("watching file", "path", w.path)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("watched file event", "path", w.path, "op", ev.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "path", w.path, "error", err)
		case <-timer.C:
			w.fire()
		}
	}
}

func (w *FileWatcher) fire() {
	defer func() {
		if p := recover(); p != nil {
			w.logger.Warn("file change handler panicked", "path", w.path, "panic", fmt.Sprint(p))
		}
	}()
	w.onChange()
}

// Close stops the watcher. Safe to call more than once.
func (w *FileWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}
