package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dkoosis/conform/internal/runlog"
)

// Constants for default values.
const (
	DefaultExecDir     = "src"
	DefaultFixtureDir  = "project_tests_1M"
	DefaultLogDir      = "logs"
	DefaultServer      = "./server"
	DefaultClient      = "./client"
	DefaultMake        = "make"
	DefaultCleanTarget = "distclean"
	DefaultStart       = 1
	DefaultEnd         = 42
	DefaultTheme       = "default"

	// LocalConfigFile is looked up in the working directory when no
	// explicit --config path is given.
	LocalConfigFile = ".conform.yaml"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the fully resolved, immutable run configuration. It is passed
// by value; the index-set accessors return copies.
type Config struct {
	ExecDir    string
	FixtureDir string
	LogDir     string

	Server string
	Client string

	Make        string
	CleanTarget string
	NoBuild     bool

	Start int // inclusive
	End   int // exclusive

	control  []int
	shutdown []int
	skip     []int

	// ShutdownTimeout bounds the wait for the server to exit after a
	// shutdown-trigger test. Zero waits indefinitely.
	ShutdownTimeout time.Duration

	Theme   string
	NoColor bool
	Debug   bool

	// Source is the config file that was applied, empty for none.
	Source string
}

// Control returns the control-category indices, sorted.
func (c Config) Control() []int { return slices.Clone(c.control) }

// Shutdown returns the shutdown-trigger indices, sorted.
func (c Config) Shutdown() []int { return slices.Clone(c.shutdown) }

// Skip returns the skipped indices, sorted.
func (c Config) Skip() []int { return slices.Clone(c.skip) }

// WithSets returns a copy of c with the three index sets replaced.
// A nil argument keeps the current set.
func (c Config) WithSets(control, shutdown, skip []int) Config {
	if control != nil {
		c.control = normalizeSet(control)
	}
	if shutdown != nil {
		c.shutdown = normalizeSet(shutdown)
	}
	if skip != nil {
		c.skip = normalizeSet(skip)
	}
	return c
}

// Defaults returns the hardcoded configuration.
func Defaults() Config {
	return Config{
		ExecDir:     DefaultExecDir,
		FixtureDir:  DefaultFixtureDir,
		LogDir:      DefaultLogDir,
		Server:      DefaultServer,
		Client:      DefaultClient,
		Make:        DefaultMake,
		CleanTarget: DefaultCleanTarget,
		Start:       DefaultStart,
		End:         DefaultEnd,
		control:     []int{16, 20, 22, 26, 28, 31},
		shutdown:    []int{1, 2, 10, 18, 19, 24, 25, 30},
		skip:        []int{},
		Theme:       DefaultTheme,
	}
}

// Validate reports the first inconsistency in c.
func (c Config) Validate() error {
	switch {
	case c.Start < 1:
		return fmt.Errorf("%w: start must be >= 1, got %d", ErrInvalid, c.Start)
	case c.End <= c.Start:
		return fmt.Errorf("%w: end (%d) must be greater than start (%d)", ErrInvalid, c.End, c.Start)
	case c.Server == "":
		return fmt.Errorf("%w: server binary is empty", ErrInvalid)
	case c.Client == "":
		return fmt.Errorf("%w: client binary is empty", ErrInvalid)
	case c.FixtureDir == "":
		return fmt.Errorf("%w: fixture directory is empty", ErrInvalid)
	case c.LogDir == "":
		return fmt.Errorf("%w: log directory is empty", ErrInvalid)
	case !c.NoBuild && c.Make == "":
		return fmt.Errorf("%w: build command is empty", ErrInvalid)
	case c.ShutdownTimeout < 0:
		return fmt.Errorf("%w: shutdown timeout must not be negative", ErrInvalid)
	}
	for _, set := range [][]int{c.control, c.shutdown, c.skip} {
		for _, i := range set {
			if i < 1 {
				return fmt.Errorf("%w: test index %d is not positive", ErrInvalid, i)
			}
		}
	}
	return c.validateLogDir()
}

// validateLogDir rejects a log directory whose wipe would take the exec
// or fixture directory with it.
func (c Config) validateLogDir() error {
	logs, err := filepath.Abs(c.LogDir)
	if err != nil {
		return fmt.Errorf("%w: log directory: %v", ErrInvalid, err)
	}
	for _, d := range []struct{ name, path string }{
		{"exec", c.ExecDir},
		{"fixture", c.FixtureDir},
	} {
		if d.path == "" {
			continue
		}
		abs, err := filepath.Abs(d.path)
		if err != nil {
			return fmt.Errorf("%w: %s directory: %v", ErrInvalid, d.name, err)
		}
		if runlog.Contains(logs, abs) {
			return fmt.Errorf("%w: log directory %q would wipe the %s directory %q", ErrInvalid, c.LogDir, d.name, d.path)
		}
	}
	return nil
}

// fileConfig mirrors .conform.yaml. Pointer and nil-slice fields
// distinguish "absent" from zero values.
type fileConfig struct {
	ExecDir         *string `yaml:"exec_dir"`
	FixtureDir      *string `yaml:"fixture_dir"`
	LogDir          *string `yaml:"log_dir"`
	Server          *string `yaml:"server"`
	Client          *string `yaml:"client"`
	Make            *string `yaml:"make"`
	CleanTarget     *string `yaml:"clean"`
	NoBuild         *bool   `yaml:"no_build"`
	Start           *int    `yaml:"start"`
	End             *int    `yaml:"end"`
	Control         []int   `yaml:"control"`
	Shutdown        []int   `yaml:"shutdown"`
	Skip            []int   `yaml:"skip"`
	ShutdownTimeout *string `yaml:"shutdown_timeout"`
	Theme           *string `yaml:"theme"`
	NoColor         *bool   `yaml:"no_color"`
	Debug           *bool   `yaml:"debug"`
}

// readFile parses the YAML config at path into a fileConfig.
func readFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%w: parsing config file %s: %w", ErrInvalid, path, err)
	}
	return &fc, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	setString(&cfg.ExecDir, fc.ExecDir)
	setString(&cfg.FixtureDir, fc.FixtureDir)
	setString(&cfg.LogDir, fc.LogDir)
	setString(&cfg.Server, fc.Server)
	setString(&cfg.Client, fc.Client)
	setString(&cfg.Make, fc.Make)
	setString(&cfg.CleanTarget, fc.CleanTarget)
	setString(&cfg.Theme, fc.Theme)
	if fc.NoBuild != nil {
		cfg.NoBuild = *fc.NoBuild
	}
	if fc.Start != nil {
		cfg.Start = *fc.Start
	}
	if fc.End != nil {
		cfg.End = *fc.End
	}
	if fc.NoColor != nil {
		cfg.NoColor = *fc.NoColor
	}
	if fc.Debug != nil {
		cfg.Debug = *fc.Debug
	}
	if fc.ShutdownTimeout != nil {
		d, err := time.ParseDuration(*fc.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("%w: shutdown_timeout: %w", ErrInvalid, err)
		}
		cfg.ShutdownTimeout = d
	}
	*cfg = cfg.WithSets(fc.Control, fc.Shutdown, fc.Skip)
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// normalizeSet sorts and deduplicates a set of indices. The result is
// never nil so that an explicitly empty set stays distinguishable.
func normalizeSet(in []int) []int {
	out := slices.Clone(in)
	if out == nil {
		out = []int{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
