package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Flags holds the values of command-line flags. The *Set fields record
// whether the user passed the flag explicitly, so that unset flags never
// override the environment or the config file.
type Flags struct {
	ConfigPath string

	ExecDir    string
	FixtureDir string
	LogDir     string
	Start      int
	End        int
	Control    string
	Shutdown   string
	Skip       string
	Clean      string
	NoBuild    bool
	Timeout    time.Duration
	Theme      string
	NoColor    bool
	Debug      bool

	ExecDirSet    bool
	FixtureDirSet bool
	LogDirSet     bool
	StartSet      bool
	EndSet        bool
	ControlSet    bool
	ShutdownSet   bool
	SkipSet       bool
	CleanSet      bool
	NoBuildSet    bool
	TimeoutSet    bool
	ThemeSet      bool
	NoColorSet    bool
	DebugSet      bool
}

// Resolve builds the run configuration from defaults, the YAML file, the
// environment and flags, in increasing priority, and validates it.
// Debug traces of the resolution go to debugOut when debugging is on.
func Resolve(flags Flags, debugOut io.Writer) (Config, error) {
	cfg := Defaults()

	path, err := configPath(flags.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		fc, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := fc.apply(&cfg); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
		cfg.Source = path
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := applyFlags(&cfg, flags); err != nil {
		return Config{}, err
	}

	if cfg.Debug && debugOut != nil {
		src := cfg.Source
		if src == "" {
			src = "<defaults>"
		}
		fmt.Fprintf(debugOut, "[DEBUG config] source=%s exec=%s fixtures=%s logs=%s range=[%d,%d) control=%v shutdown=%v skip=%v timeout=%s\n",
			src, cfg.ExecDir, cfg.FixtureDir, cfg.LogDir, cfg.Start, cfg.End,
			cfg.control, cfg.shutdown, cfg.skip, cfg.ShutdownTimeout)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// configPath returns the explicit path if given (it must exist), else the
// local .conform.yaml if present, else "".
func configPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: config file %s: %w", ErrInvalid, explicit, err)
		}
		return explicit, nil
	}
	if _, err := os.Stat(LocalConfigFile); err == nil {
		return LocalConfigFile, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("config file %s: %w", LocalConfigFile, err)
	}
	return "", nil
}

func applyEnv(cfg *Config) error {
	envString(&cfg.ExecDir, "CONFORM_EXEC_DIR")
	envString(&cfg.FixtureDir, "CONFORM_FIXTURE_DIR")
	envString(&cfg.LogDir, "CONFORM_LOG_DIR")
	envString(&cfg.CleanTarget, "CONFORM_CLEAN")
	envString(&cfg.Theme, "CONFORM_THEME")

	for key, dst := range map[string]*int{"CONFORM_START": &cfg.Start, "CONFORM_END": &cfg.End} {
		if raw := os.Getenv(key); raw != "" {
			v, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%w: %s=%q: %w", ErrInvalid, key, raw, err)
			}
			*dst = v
		}
	}

	sets := make([][]int, 3)
	for i, key := range []string{"CONFORM_CONTROL", "CONFORM_SHUTDOWN", "CONFORM_SKIP"} {
		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		set, err := ParseIndexList(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		sets[i] = set
	}
	*cfg = cfg.WithSets(sets[0], sets[1], sets[2])

	if raw := os.Getenv("CONFORM_SHUTDOWN_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%w: CONFORM_SHUTDOWN_TIMEOUT=%q: %w", ErrInvalid, raw, err)
		}
		cfg.ShutdownTimeout = d
	}

	if v := getEnvBool("CONFORM_NO_COLOR", "NO_COLOR"); v != nil {
		cfg.NoColor = *v
	}
	if os.Getenv("CONFORM_DEBUG") != "" {
		cfg.Debug = true
	}
	return nil
}

func applyFlags(cfg *Config, f Flags) error {
	if f.ExecDirSet {
		cfg.ExecDir = f.ExecDir
	}
	if f.FixtureDirSet {
		cfg.FixtureDir = f.FixtureDir
	}
	if f.LogDirSet {
		cfg.LogDir = f.LogDir
	}
	if f.StartSet {
		cfg.Start = f.Start
	}
	if f.EndSet {
		cfg.End = f.End
	}
	if f.CleanSet {
		cfg.CleanTarget = f.Clean
	}
	if f.NoBuildSet {
		cfg.NoBuild = f.NoBuild
	}
	if f.TimeoutSet {
		cfg.ShutdownTimeout = f.Timeout
	}
	if f.ThemeSet {
		cfg.Theme = f.Theme
	}
	if f.NoColorSet {
		cfg.NoColor = f.NoColor
	}
	if f.DebugSet {
		cfg.Debug = f.Debug
	}

	sets := make([][]int, 3)
	for i, s := range []struct {
		set  bool
		raw  string
		name string
	}{
		{f.ControlSet, f.Control, "--control"},
		{f.ShutdownSet, f.Shutdown, "--shutdown"},
		{f.SkipSet, f.Skip, "--skip"},
	} {
		if !s.set {
			continue
		}
		set, err := ParseIndexList(s.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		sets[i] = set
	}
	*cfg = cfg.WithSets(sets[0], sets[1], sets[2])
	return nil
}

// ParseIndexList parses a comma separated list of test indices. Elements
// may be single indices ("7") or inclusive ranges ("18-19"). Blank
// elements are ignored; an empty string yields an empty, non-nil set.
func ParseIndexList(raw string) ([]int, error) {
	out := []int{}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(field, "-")
		if !isRange {
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("%w: bad test index %q", ErrInvalid, field)
			}
			out = append(out, v)
			continue
		}
		from, err1 := strconv.Atoi(strings.TrimSpace(lo))
		to, err2 := strconv.Atoi(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil || to < from {
			return nil, fmt.Errorf("%w: bad test range %q", ErrInvalid, field)
		}
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
	}
	return normalizeSet(out), nil
}

// getEnvBool returns the parsed value of the first set variable among
// keys, or nil if none is set to a parseable boolean.
func getEnvBool(keys ...string) *bool {
	for _, key := range keys {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		if v, err := strconv.ParseBool(raw); err == nil {
			return &v
		}
	}
	return nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
