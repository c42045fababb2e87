// Package config loads the engine configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultLibDir            = "automation/lib/java"
	DefaultDependencyArchive = "core-dependency.jar"
	DefaultHelperArchive     = "javarule-dependency.jar"
	DefaultHelperPackage     = "org.smarthomej.automation.javarule"
	DefaultActionBase        = "org.openhab.core.thing.binding.ThingActions"
	DefaultJavac             = "javac"
)

// Config is the engine configuration.
type Config struct {
	// LibDir is the watched library directory.
	LibDir string `yaml:"lib_dir"`
	// DependencyArchive and HelperArchive are file names inside LibDir.
	DependencyArchive string `yaml:"dependency_archive"`
	HelperArchive     string `yaml:"helper_archive"`

	HelperPackage string `yaml:"helper_package"`
	ActionBase    string `yaml:"action_base"`

	// ModuleDir holds the host module archives scanned for exported
	// classes. Empty means no host modules.
	ModuleDir string `yaml:"module_dir"`
	// AdditionalModules is a comma separated list appended to the default
	// module allow-list.
	AdditionalModules string `yaml:"additional_modules"`

	// Classpath lists the standard classpath entries.
	Classpath []string `yaml:"classpath"`
	Javac     string   `yaml:"javac"`

	// Registry is the CUE file describing the host state.
	Registry string `yaml:"registry"`
	// Journal is the build journal database. Empty disables the journal.
	Journal string `yaml:"journal"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LibDir:            DefaultLibDir,
		DependencyArchive: DefaultDependencyArchive,
		HelperArchive:     DefaultHelperArchive,
		HelperPackage:     DefaultHelperPackage,
		ActionBase:        DefaultActionBase,
		Javac:             DefaultJavac,
	}
}

// Load reads path, expands environment variables and fills unset keys with
// defaults. Relative paths are resolved against the directory of path.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.fillDefaults()
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	set := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	set(&c.LibDir, d.LibDir)
	set(&c.DependencyArchive, d.DependencyArchive)
	set(&c.HelperArchive, d.HelperArchive)
	set(&c.HelperPackage, d.HelperPackage)
	set(&c.ActionBase, d.ActionBase)
	set(&c.Javac, d.Javac)
}

func (c *Config) resolve(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.LibDir = abs(c.LibDir)
	c.ModuleDir = abs(c.ModuleDir)
	c.Registry = abs(c.Registry)
	c.Journal = abs(c.Journal)
	for i, p := range c.Classpath {
		c.Classpath[i] = abs(p)
	}
	// A javac given as a bare name is looked up on PATH.
	if strings.ContainsRune(c.Javac, filepath.Separator) {
		c.Javac = abs(c.Javac)
	}
}

// DependencyArchivePath is the full path of the dependency archive.
func (c Config) DependencyArchivePath() string {
	return filepath.Join(c.LibDir, c.DependencyArchive)
}

// HelperArchivePath is the full path of the published helper archive.
func (c Config) HelperArchivePath() string {
	return filepath.Join(c.LibDir, c.HelperArchive)
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the configuration. Directories that do not exist yet are
// fine for LibDir, which activation creates; ModuleDir must exist when set.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.LibDir == "" {
		add("lib_dir is required")
	}
	for key, name := range map[string]string{
		"dependency_archive": c.DependencyArchive,
		"helper_archive":     c.HelperArchive,
	} {
		switch {
		case name == "":
			add("%s is required", key)
		case filepath.Base(name) != name:
			add("%s must be a file name, got %q", key, name)
		case !strings.HasSuffix(name, ".jar"):
			add("%s must end in .jar, got %q", key, name)
		}
	}
	if c.DependencyArchive != "" && c.DependencyArchive == c.HelperArchive {
		add("dependency_archive and helper_archive must differ")
	}
	if !isQualifiedName(c.HelperPackage) {
		add("helper_package %q is not a package name", c.HelperPackage)
	}
	if !isQualifiedName(c.ActionBase) {
		add("action_base %q is not a class name", c.ActionBase)
	}
	if c.ModuleDir != "" {
		if info, err := os.Stat(c.ModuleDir); err != nil || !info.IsDir() {
			add("module_dir %q is not a directory", c.ModuleDir)
		}
	}
	if c.Registry != "" {
		if _, err := os.Stat(c.Registry); errors.Is(err, fs.ErrNotExist) {
			add("registry %q does not exist", c.Registry)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return &ValidationError{Problems: problems}
}

// isQualifiedName reports whether s is a dotted sequence of identifiers.
func isQualifiedName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			letter := r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
			digit := r >= '0' && r <= '9'
			if !letter && !(digit && i > 0) {
				return false
			}
		}
	}
	return true
}
