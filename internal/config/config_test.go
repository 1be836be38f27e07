package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp moves the test into an empty directory so a stray
// .conform.yaml in the package dir cannot leak in.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range []string{
		"CONFORM_EXEC_DIR", "CONFORM_FIXTURE_DIR", "CONFORM_LOG_DIR",
		"CONFORM_START", "CONFORM_END", "CONFORM_CLEAN", "CONFORM_THEME",
		"CONFORM_SHUTDOWN_TIMEOUT", "CONFORM_NO_COLOR", "NO_COLOR", "CONFORM_DEBUG",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestDefaults_MatchOriginalHarness(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "src", cfg.ExecDir)
	assert.Equal(t, "project_tests_1M", cfg.FixtureDir)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, "distclean", cfg.CleanTarget)
	assert.Equal(t, 1, cfg.Start)
	assert.Equal(t, 42, cfg.End)
	assert.Equal(t, []int{16, 20, 22, 26, 28, 31}, cfg.Control())
	assert.Equal(t, []int{1, 2, 10, 18, 19, 24, 25, 30}, cfg.Shutdown())
	assert.Empty(t, cfg.Skip())
	assert.Zero(t, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_SetAccessorsReturnCopies(t *testing.T) {
	cfg := Defaults()
	got := cfg.Shutdown()
	got[0] = 99

	assert.Equal(t, 1, cfg.Shutdown()[0])
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"start zero", func(c *Config) { c.Start = 0 }},
		{"end before start", func(c *Config) { c.Start, c.End = 5, 5 }},
		{"empty server", func(c *Config) { c.Server = "" }},
		{"empty client", func(c *Config) { c.Client = "" }},
		{"empty make", func(c *Config) { c.Make = "" }},
		{"negative timeout", func(c *Config) { c.ShutdownTimeout = -time.Second }},
		{"non-positive index", func(c *Config) { *c = c.WithSets(nil, nil, []int{0}) }},
		{"logs equal exec dir", func(c *Config) { c.LogDir = "./src/" }},
		{"logs contain fixtures", func(c *Config) { c.FixtureDir = "logs/project_tests_1M" }},
		{"logs are parent of exec dir", func(c *Config) { c.LogDir = "src/.." }},
		{"logs equal fixture dir", func(c *Config) { c.LogDir = c.FixtureDir }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestValidate_AllowsLogsInsideExecDir(t *testing.T) {
	cfg := Defaults()
	cfg.LogDir = "src/logs"

	assert.NoError(t, cfg.Validate())
}

func TestValidate_AllowsEmptyMake_When_NoBuild(t *testing.T) {
	cfg := Defaults()
	cfg.Make = ""
	cfg.NoBuild = true

	assert.NoError(t, cfg.Validate())
}

func TestParseIndexList(t *testing.T) {
	tests := []struct {
		raw     string
		want    []int
		wantErr bool
	}{
		{raw: "", want: []int{}},
		{raw: "3", want: []int{3}},
		{raw: " 10, 2 ,1,, 2", want: []int{1, 2, 10}},
		{raw: "18-19,24", want: []int{18, 19, 24}},
		{raw: "x", wantErr: true},
		{raw: "5-3", wantErr: true},
		{raw: "1-a", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseIndexList(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_UsesDefaults_When_NothingConfigured(t *testing.T) {
	chdirTemp(t)

	cfg, err := Resolve(Flags{}, nil)

	require.NoError(t, err)
	assert.Empty(t, cfg.Source)
	assert.Equal(t, Defaults().Shutdown(), cfg.Shutdown())
}

func TestResolve_AppliesLocalYAML(t *testing.T) {
	dir := chdirTemp(t)
	yaml := `exec_dir: build
fixture_dir: fixtures
start: 3
end: 9
shutdown: [4, 8]
skip: []
control: [5]
shutdown_timeout: 30s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, LocalConfigFile), []byte(yaml), 0o600))

	cfg, err := Resolve(Flags{}, nil)

	require.NoError(t, err)
	assert.Equal(t, LocalConfigFile, cfg.Source)
	assert.Equal(t, "build", cfg.ExecDir)
	assert.Equal(t, "fixtures", cfg.FixtureDir)
	assert.Equal(t, 3, cfg.Start)
	assert.Equal(t, 9, cfg.End)
	assert.Equal(t, []int{4, 8}, cfg.Shutdown())
	assert.Equal(t, []int{5}, cfg.Control())
	assert.Empty(t, cfg.Skip())
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "logs", cfg.LogDir, "unset keys keep defaults")
}

func TestResolve_PriorityOrder(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, LocalConfigFile), []byte("start: 2\nend: 10\nskip: [3]\n"), 0o600))
	t.Setenv("CONFORM_START", "4")
	t.Setenv("CONFORM_SKIP", "5,6")

	cfg, err := Resolve(Flags{End: 8, EndSet: true, Skip: "7", SkipSet: true}, nil)

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Start, "env overrides file")
	assert.Equal(t, 8, cfg.End, "flag overrides file")
	assert.Equal(t, []int{7}, cfg.Skip(), "flag overrides env")
}

func TestResolve_UnsetFlagsDoNotOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFORM_CLEAN", "clean")

	cfg, err := Resolve(Flags{Clean: "ignored"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "clean", cfg.CleanTarget)
}

func TestResolve_NoColorFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("NO_COLOR", "1")

	cfg, err := Resolve(Flags{}, nil)

	require.NoError(t, err)
	assert.True(t, cfg.NoColor)
}

func TestResolve_Errors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		dir := chdirTemp(t)
		_, err := Resolve(Flags{ConfigPath: filepath.Join(dir, "nope.yaml")}, nil)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
	t.Run("malformed yaml", func(t *testing.T) {
		dir := chdirTemp(t)
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("start: [oops\n"), 0o600))
		_, err := Resolve(Flags{ConfigPath: path}, nil)
		assert.Error(t, err)
	})
	t.Run("bad timeout", func(t *testing.T) {
		dir := chdirTemp(t)
		path := filepath.Join(dir, "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte("shutdown_timeout: soon\n"), 0o600))
		_, err := Resolve(Flags{ConfigPath: path}, nil)
		assert.ErrorIs(t, err, ErrInvalid)
	})
	t.Run("bad env index", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("CONFORM_END", "many")
		_, err := Resolve(Flags{}, nil)
		assert.ErrorIs(t, err, ErrInvalid)
	})
	t.Run("bad flag set", func(t *testing.T) {
		chdirTemp(t)
		_, err := Resolve(Flags{Shutdown: "1,x", ShutdownSet: true}, nil)
		assert.ErrorIs(t, err, ErrInvalid)
	})
	t.Run("invalid range", func(t *testing.T) {
		chdirTemp(t)
		_, err := Resolve(Flags{Start: 10, StartSet: true, End: 2, EndSet: true}, nil)
		assert.ErrorIs(t, err, ErrInvalid)
	})
}
