package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration sourced from environment variables.
type Config struct {
	ListenAddr       string
	SampleInterval   time.Duration
	AllowedOrigins   []string
	EnablePrometheus bool
	EnablePprof      bool
	LogLevel         slog.Level
	Paths            PathsConfig
	ClockTicks       int64
	WS               WebsocketConfig
	Proc             ProcConfig
}

// PathsConfig locates the files the proc reader parses.
type PathsConfig struct {
	ProcRoot      string
	OSReleasePath string
	PasswdPath    string
}

// WebsocketConfig captures tunables for WebSocket handling.
type WebsocketConfig struct {
	MaxClients   int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// ProcConfig bounds the per-tick process listing.
type ProcConfig struct {
	MaxPIDs int
	Top     int
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		ListenAddr:       ":8080",
		SampleInterval:   time.Second,
		AllowedOrigins:   []string{"*"},
		EnablePrometheus: false,
		EnablePprof:      false,
		LogLevel:         slog.LevelInfo,
		Paths: PathsConfig{
			ProcRoot:      "/proc",
			OSReleasePath: "/etc/os-release",
			PasswdPath:    "/etc/passwd",
		},
		ClockTicks: 0,
		WS: WebsocketConfig{
			MaxClients:   1024,
			WriteTimeout: 3 * time.Second,
			ReadTimeout:  30 * time.Second,
		},
		Proc: ProcConfig{
			MaxPIDs: 5000,
			Top:     25,
		},
	}
}

// Load parses configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Default()

	if value := env("APP_LISTEN_ADDR"); value != "" {
		cfg.ListenAddr = value
	}

	if value := env("APP_SAMPLE_INTERVAL"); value != "" {
		duration, err := parsePositiveDuration("APP_SAMPLE_INTERVAL", value)
		if err != nil {
			return Config{}, err
		}
		cfg.SampleInterval = duration
	}

	if value := env("APP_ALLOWED_ORIGINS"); value != "" {
		origins := splitAndTrim(value, ",")
		if len(origins) == 0 {
			return Config{}, fmt.Errorf("APP_ALLOWED_ORIGINS must not be empty")
		}
		cfg.AllowedOrigins = origins
	}

	if value := env("APP_ENABLE_PROMETHEUS"); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_ENABLE_PROMETHEUS: %w", err)
		}
		cfg.EnablePrometheus = enabled
	}

	if value := env("APP_ENABLE_PPROF"); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_ENABLE_PPROF: %w", err)
		}
		cfg.EnablePprof = enabled
	}

	if value := env("APP_LOG_LEVEL"); value != "" {
		level, err := parseLogLevel(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = level
	}

	if value := env("APP_PROC_ROOT"); value != "" {
		cfg.Paths.ProcRoot = value
	}
	if value := env("APP_OS_RELEASE_PATH"); value != "" {
		cfg.Paths.OSReleasePath = value
	}
	if value := env("APP_PASSWD_PATH"); value != "" {
		cfg.Paths.PasswdPath = value
	}

	if value := env("APP_CLOCK_TICKS"); value != "" {
		ticks, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_CLOCK_TICKS: %w", err)
		}
		if ticks < 0 {
			return Config{}, fmt.Errorf("APP_CLOCK_TICKS must be >= 0")
		}
		cfg.ClockTicks = ticks
	}

	if value := env("APP_PROC_MAX_PIDS"); value != "" {
		maxPIDs, err := parsePositiveInt("APP_PROC_MAX_PIDS", value)
		if err != nil {
			return Config{}, err
		}
		cfg.Proc.MaxPIDs = maxPIDs
	}

	if value := env("APP_PROC_TOP"); value != "" {
		top, err := parsePositiveInt("APP_PROC_TOP", value)
		if err != nil {
			return Config{}, err
		}
		cfg.Proc.Top = top
	}

	if value := env("APP_WS_MAX_CLIENTS"); value != "" {
		maxClients, err := parsePositiveInt("APP_WS_MAX_CLIENTS", value)
		if err != nil {
			return Config{}, err
		}
		cfg.WS.MaxClients = maxClients
	}

	if value := env("APP_WS_WRITE_TIMEOUT"); value != "" {
		timeout, err := parsePositiveDuration("APP_WS_WRITE_TIMEOUT", value)
		if err != nil {
			return Config{}, err
		}
		cfg.WS.WriteTimeout = timeout
	}

	if value := env("APP_WS_READ_TIMEOUT"); value != "" {
		timeout, err := parsePositiveDuration("APP_WS_READ_TIMEOUT", value)
		if err != nil {
			return Config{}, err
		}
		cfg.WS.ReadTimeout = timeout
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parsePositiveDuration(key, value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return duration, nil
}

func parsePositiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return n, nil
}

func splitAndTrim(value, sep string) []string {
	raw := strings.Split(value, sep)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(input string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", input)
	}
}
