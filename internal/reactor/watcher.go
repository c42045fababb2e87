package reactor

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileHandler receives file events.
type FileHandler interface {
	HandleFileEvent(op Op, path string)
}

// Watcher watches a directory tree and forwards create, modify and delete
// events to a FileHandler. Directories created while watching are added
// to the watch, and the files already inside them are reported as created.
//
// Events are handled one at a time on the goroutine running Run.
type Watcher struct {
	dir     string
	handler FileHandler
	fsw     *fsnotify.Watcher
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewWatcher starts watching dir and every directory below it.
func NewWatcher(dir string, handler FileHandler, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{dir: dir, handler: handler, fsw: fsw, logger: logger}
	if err := w.addTree(dir, false); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run handles events until ctx is cancelled or the watcher is closed. It
// closes the watcher before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	w.logger.Info("watching library directory", "path", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("library watcher error", "error", err)
		}
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) handle(ev fsnotify.Event) {
	op, ok := opOf(ev.Op)
	if !ok {
		return
	}
	if op == OpCreate && isDir(ev.Name) {
		if err := w.addTree(ev.Name, true); err != nil {
			w.logger.Warn("watch new directory failed", "path", ev.Name, "error", err)
		}
		return
	}
	w.handler.HandleFileEvent(op, ev.Name)
}

// addTree watches root and every directory below it. With report set,
// the regular files found are passed to the handler as created.
func (w *Watcher) addTree(root string, report bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			w.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				if path == root {
					return fmt.Errorf("watch %s: %w", root, err)
				}
				w.logger.Warn("watch directory failed", "path", path, "error", err)
			}
			return nil
		}
		if report && d.Type().IsRegular() {
			w.handler.HandleFileEvent(OpCreate, path)
		}
		return nil
	})
}

// opOf maps an fsnotify operation to a file event kind. A rename reports
// the old name, which no longer exists.
func opOf(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete, true
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpModify, true
	default:
		return 0, false
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
