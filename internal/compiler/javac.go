package compiler

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/ruleforge/internal/filemgr"
)

// Javac is a Toolchain running an external javac executable.
//
// javac writes into a private temporary directory; every produced class is
// then moved to wherever the file manager's OutputFor puts it, using the
// source unit it was compiled from as sibling.
type Javac struct {
	// Path is the executable, "javac" when empty.
	Path   string
	Logger *slog.Logger
}

// Run implements Toolchain.
func (j *Javac) Run(units []filemgr.FileObject, fm filemgr.FileManager, listener DiagnosticListener, options []string) (bool, error) {
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exe := j.Path
	if exe == "" {
		exe = "javac"
	}

	out, err := os.MkdirTemp("", "ruleforge-javac-")
	if err != nil {
		return false, fmt.Errorf("create javac output dir: %w", err)
	}
	defer os.RemoveAll(out)

	args := []string{"-d", out, "-encoding", "UTF-8"}
	if cp := fm.ClassPath(); len(cp) > 0 {
		args = append(args, "-cp", strings.Join(cp, string(os.PathListSeparator)))
	}
	args = append(args, options...)
	for _, u := range units {
		if u.IsArchived() {
			return false, fmt.Errorf("cannot compile archived unit %s", u)
		}
		args = append(args, u.Path)
	}

	logger.Debug("running javac", "executable", exe, "units", len(units))
	cmd := exec.Command(exe, args...)
	output, runErr := cmd.CombinedOutput()
	for _, d := range ParseOutput(string(output)) {
		listener.Report(d)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return false, nil
		}
		return false, fmt.Errorf("run %s: %w", exe, runErr)
	}

	if err := relocate(out, units, fm); err != nil {
		return false, err
	}
	return true, nil
}

// relocate moves every class below dir to its file manager output.
func relocate(dir string, units []filemgr.FileObject, fm filemgr.FileManager) error {
	byName := make(map[string]*filemgr.FileObject, len(units))
	byPackage := make(map[string]*filemgr.FileObject)
	for i := range units {
		name, err := fm.BinaryNameOf(units[i])
		if err != nil {
			return err
		}
		byName[name] = &units[i]
		if _, ok := byPackage[packageName(name)]; !ok {
			byPackage[packageName(name)] = &units[i]
		}
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, filemgr.KindClass.Extension()) {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := strings.ReplaceAll(strings.TrimSuffix(filepath.ToSlash(rel), filemgr.KindClass.Extension()), "/", ".")
		outer, _, _ := strings.Cut(name, "$")

		sibling := byName[outer]
		if sibling == nil {
			sibling = byPackage[packageName(name)]
		}
		target, err := fm.OutputFor(filemgr.LocationClassOutput, name, filemgr.KindClass, sibling)
		if err != nil {
			return err
		}
		return moveFile(path, target)
	})
}

func moveFile(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}
	if err := os.Rename(from, to); err == nil {
		return nil
	}
	data, err := os.ReadFile(from)
	if err != nil {
		return err
	}
	return os.WriteFile(to, data, 0644)
}

func packageName(binaryName string) string {
	if i := strings.LastIndexByte(binaryName, '.'); i >= 0 {
		return binaryName[:i]
	}
	return ""
}

var (
	fileDiagnostic = regexp.MustCompile(`^(.+?):(\d+): (error|warning|Note|note): (.*)$`)
	bareDiagnostic = regexp.MustCompile(`^(error|warning|Note|note): (.*)$`)
)

// ParseOutput extracts diagnostics from javac's textual output. Source
// excerpts, caret lines and summary lines ("1 error") are dropped.
func ParseOutput(output string) []Diagnostic {
	var diags []Diagnostic
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if m := fileDiagnostic.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[2])
			diags = append(diags, Diagnostic{
				Severity: severity(m[3]),
				Source:   m[1],
				Line:     n,
				Message:  m[4],
			})
			continue
		}
		if m := bareDiagnostic.FindStringSubmatch(line); m != nil {
			diags = append(diags, Diagnostic{Severity: severity(m[1]), Message: m[2]})
		}
	}
	return diags
}

func severity(s string) Severity {
	switch strings.ToLower(s) {
	case "error":
		return SeverityError
	case "warning":
		return SeverityWarning
	default:
		return SeverityNote
	}
}
