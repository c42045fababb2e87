package reactor

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/ruleforge/internal/filemgr"
	"github.com/roach88/ruleforge/internal/ir"
	"github.com/roach88/ruleforge/internal/synth"
)

// Op is a file event kind.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Rebuild triggers recorded with every rebuild the reactor requests.
const (
	TriggerSource     = "source"
	TriggerActions    = "actions"
	TriggerDevices    = "devices"
	TriggerDataPoints = "data_points"
)

// Builder rebuilds the helper archive and the classpath index.
type Builder interface {
	Rebuild(trigger string) error
	RebuildIndex() error
}

// Generator regenerates the synthesized units. Each method reports whether
// any unit changed.
type Generator interface {
	GenerateDataPoints() (bool, error)
	GenerateDevices() (bool, error)
	GenerateActions() (bool, error)
}

// Options configures a Reactor.
type Options struct {
	// LibDir is the watched library directory.
	LibDir string
	// Staging receives copies of the user sources, keeping their path
	// relative to LibDir.
	Staging   string
	Builder   Builder
	Generator Generator
	Logger    *slog.Logger
}

// Reactor handles file and host events.
//
// Thread-safety: HandleFileEvent and Receive may run concurrently; the
// builder serializes the work they request.
type Reactor struct {
	opts   Options
	logger *slog.Logger
}

// New creates a reactor.
func New(opts Options) *Reactor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reactor{opts: opts, logger: logger}
}

// HandleFileEvent reacts to a change of path inside the library directory.
func (r *Reactor) HandleFileEvent(op Op, path string) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("file event handling panicked", "op", op.String(), "path", path, "panic", fmt.Sprint(p))
		}
	}()

	switch {
	case strings.HasSuffix(path, filemgr.ArchiveSuffix):
		r.logger.Debug("library archive changed", "op", op.String(), "path", path)
		if err := r.opts.Builder.RebuildIndex(); err != nil {
			r.logger.Warn("re-index after archive change failed", "path", path, "error", err)
		}
	case strings.HasSuffix(path, synth.SourceSuffix):
		changed, err := r.stage(op, path)
		if err != nil {
			r.logger.Warn("process source event failed", "op", op.String(), "path", path, "error", err)
			return
		}
		if !changed {
			r.logger.Debug("source event changes nothing", "op", op.String(), "path", path)
			return
		}
		r.rebuild(TriggerSource)
	default:
		r.logger.Debug("ignoring file event", "op", op.String(), "path", path)
	}
}

// stage mirrors one source change into the staging directory and reports
// whether the staged copy changed.
func (r *Reactor) stage(op Op, path string) (bool, error) {
	target, err := r.stagedPath(path)
	if err != nil {
		return false, err
	}

	switch op {
	case OpDelete:
		if err := os.Remove(target); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return false, nil
			}
			return false, fmt.Errorf("remove staged copy: %w", err)
		}
		return true, nil
	case OpModify:
		src, err := os.ReadFile(path)
		if err != nil {
			return false, fmt.Errorf("read source: %w", err)
		}
		if staged, err := os.ReadFile(target); err == nil && bytes.Equal(src, staged) {
			return false, nil
		}
		return true, writeStaged(target, src)
	default:
		src, err := os.ReadFile(path)
		if err != nil {
			return false, fmt.Errorf("read source: %w", err)
		}
		return true, writeStaged(target, src)
	}
}

func (r *Reactor) stagedPath(path string) (string, error) {
	rel, err := filepath.Rel(r.opts.LibDir, path)
	if err != nil {
		return "", fmt.Errorf("relativize %s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", path, r.opts.LibDir)
	}
	return filepath.Join(r.opts.Staging, rel), nil
}

func writeStaged(target string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	if err := os.WriteFile(target, content, 0644); err != nil {
		return fmt.Errorf("write staged copy: %w", err)
	}
	return nil
}

// CopyAll copies every readable user source below the library directory
// into the staging directory. Unreadable files are logged and skipped.
// Returns the number of sources copied.
func (r *Reactor) CopyAll() (int, error) {
	copied := 0
	err := filepath.WalkDir(r.opts.LibDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == r.opts.LibDir {
				return err
			}
			r.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(path, synth.SourceSuffix) {
			return nil
		}
		target, err := r.stagedPath(path)
		if err != nil {
			return err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("skipping unreadable source", "path", path, "error", err)
			return nil
		}
		if err := writeStaged(target, src); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("copy user sources: %w", err)
	}
	r.logger.Debug("copied user sources", "count", copied)
	return copied, nil
}

// SubscribedEventTypes implements events.Subscriber.
func (r *Reactor) SubscribedEventTypes() []ir.EventType {
	return []ir.EventType{ir.EventStatusChanged, ir.EventEntityAdded, ir.EventEntityRemoved}
}

// Receive implements events.Subscriber.
func (r *Reactor) Receive(ev ir.Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("event handling panicked", "event", ev.String(), "panic", fmt.Sprint(p))
		}
	}()

	switch ev.Type {
	case ir.EventStatusChanged:
		if !ir.CrossesInitialized(ev.OldStatus, ev.NewStatus) {
			return
		}
		changed, err := r.opts.Generator.GenerateActions()
		if err != nil {
			r.logger.Warn("regenerate action interfaces failed", "event", ev.String(), "error", err)
			return
		}
		if changed {
			r.rebuild(TriggerActions)
		}
	case ir.EventEntityAdded, ir.EventEntityRemoved:
		r.logger.Debug("entity set changed", "event", ev.String())
		switch ev.Category {
		case ir.CategoryDevice:
			if _, err := r.opts.Generator.GenerateDevices(); err != nil {
				r.logger.Warn("regenerate device constants failed", "event", ev.String(), "error", err)
				return
			}
			r.rebuild(TriggerDevices)
		case ir.CategoryDataPoint:
			if _, err := r.opts.Generator.GenerateDataPoints(); err != nil {
				r.logger.Warn("regenerate data point constants failed", "event", ev.String(), "error", err)
				return
			}
			r.rebuild(TriggerDataPoints)
		}
	}
}

// rebuild requests a rebuild. The builder reports its own failures.
func (r *Reactor) rebuild(trigger string) {
	_ = r.opts.Builder.Rebuild(trigger)
}
