package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/ruleforge/internal/config"
	"github.com/roach88/ruleforge/internal/filemgr"
	"github.com/roach88/ruleforge/internal/loader"
)

// Inspect indexes the library directory the way an activated engine does,
// without building or compiling anything. The returned overlay has no
// staging directory; it lists and resolves what is published right now.
func Inspect(cfg config.Config, logger *slog.Logger) (*filemgr.Overlay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	std := filemgr.NewStandard(cfg.Classpath, "", logger)
	parent := loader.New(nil, 0, parentArchives(cfg, std, fileExists(cfg.DependencyArchivePath())), logger)

	o := filemgr.NewOverlay(filemgr.OverlayOptions{
		Base:              std,
		LibDir:            cfg.LibDir,
		DependencyArchive: cfg.DependencyArchivePath(),
		Parent:            parent,
		Logger:            logger,
	})
	if _, err := o.RebuildIndex(); err != nil {
		return nil, fmt.Errorf("index %s: %w", cfg.LibDir, err)
	}
	return o, nil
}
