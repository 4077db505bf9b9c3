package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, time.Second, cfg.SampleInterval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, PathsConfig{ProcRoot: "/proc", OSReleasePath: "/etc/os-release", PasswdPath: "/etc/passwd"}, cfg.Paths)
	assert.Zero(t, cfg.ClockTicks, "clock ticks are detected by default")
	assert.Equal(t, ProcConfig{MaxPIDs: 5000, Top: 25}, cfg.Proc)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("APP_SAMPLE_INTERVAL", "500ms")
	t.Setenv("APP_ALLOWED_ORIGINS", "https://example.com, https://other.test")
	t.Setenv("APP_ENABLE_PROMETHEUS", "true")
	t.Setenv("APP_ENABLE_PPROF", "true")
	t.Setenv("APP_LOG_LEVEL", "debug")
	t.Setenv("APP_PROC_ROOT", "/tmp/proc")
	t.Setenv("APP_OS_RELEASE_PATH", "/tmp/os-release")
	t.Setenv("APP_PASSWD_PATH", "/tmp/passwd")
	t.Setenv("APP_CLOCK_TICKS", "250")
	t.Setenv("APP_PROC_MAX_PIDS", "128")
	t.Setenv("APP_PROC_TOP", "10")
	t.Setenv("APP_WS_MAX_CLIENTS", "2048")
	t.Setenv("APP_WS_WRITE_TIMEOUT", "10s")
	t.Setenv("APP_WS_READ_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.SampleInterval)
	assert.Equal(t, []string{"https://example.com", "https://other.test"}, cfg.AllowedOrigins)
	assert.True(t, cfg.EnablePrometheus)
	assert.True(t, cfg.EnablePprof)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, PathsConfig{ProcRoot: "/tmp/proc", OSReleasePath: "/tmp/os-release", PasswdPath: "/tmp/passwd"}, cfg.Paths)
	assert.Equal(t, int64(250), cfg.ClockTicks)
	assert.Equal(t, ProcConfig{MaxPIDs: 128, Top: 10}, cfg.Proc)
	assert.Equal(t, 2048, cfg.WS.MaxClients)
	assert.Equal(t, 10*time.Second, cfg.WS.WriteTimeout)
	assert.Equal(t, 45*time.Second, cfg.WS.ReadTimeout)
}

func TestLoadInvalidEnv(t *testing.T) {
	testCases := []struct {
		name string
		key  string
		val  string
	}{
		{"NegativeSampleInterval", "APP_SAMPLE_INTERVAL", "-1s"},
		{"InvalidSampleInterval", "APP_SAMPLE_INTERVAL", "soon"},
		{"InvalidOrigins", "APP_ALLOWED_ORIGINS", ","},
		{"InvalidPrometheusBool", "APP_ENABLE_PROMETHEUS", "maybe"},
		{"InvalidPprofBool", "APP_ENABLE_PPROF", "perhaps"},
		{"InvalidLogLevel", "APP_LOG_LEVEL", "loud"},
		{"InvalidClockTicks", "APP_CLOCK_TICKS", "fast"},
		{"NegativeClockTicks", "APP_CLOCK_TICKS", "-100"},
		{"InvalidProcMaxPIDs", "APP_PROC_MAX_PIDS", "many"},
		{"NonPositiveProcMaxPIDs", "APP_PROC_MAX_PIDS", "0"},
		{"InvalidProcTop", "APP_PROC_TOP", "all"},
		{"NonPositiveProcTop", "APP_PROC_TOP", "-3"},
		{"InvalidWSMaxClients", "APP_WS_MAX_CLIENTS", "zero"},
		{"NonPositiveWSMaxClients", "APP_WS_MAX_CLIENTS", "0"},
		{"InvalidWSWriteTimeout", "APP_WS_WRITE_TIMEOUT", "nope"},
		{"NegativeWSWriteTimeout", "APP_WS_WRITE_TIMEOUT", "-1s"},
		{"NonPositiveWSReadTimeout", "APP_WS_READ_TIMEOUT", "0s"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			assert.Error(t, err, "%s=%q", tc.key, tc.val)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for input, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
	} {
		got, err := parseLogLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := parseLogLevel("verbose")
	assert.Error(t, err)
}
