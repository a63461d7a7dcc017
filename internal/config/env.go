package config

import (
	"log/slog"
	"os"
	"strconv"
)

// env var names recognised by [ApplyEnvOverlay] (spec §6 "Environment
// Variable Overrides").
const (
	envLogLevel            = "MCP_LOG_LEVEL"
	envMaxConcurrentReqs   = "MCP_MAX_CONCURRENT_REQUESTS"
	envRequestTimeoutMs    = "MCP_REQUEST_TIMEOUT_MS"
	envEnforceProjectRoot  = "MCP_ENFORCE_PROJECT_ROOT"
	envAllowDestructiveOps = "MCP_ALLOW_DESTRUCTIVE_OPERATIONS"
)

// ApplyEnvOverlay mutates cfg in place with any recognised environment
// variables present in the process environment. A malformed value (wrong
// type, unrecognised enum, or a numeric value outside the field's own
// [Validate] bounds) is logged and otherwise ignored, leaving the
// file-sourced value in place — the overlay never turns a valid config
// invalid.
func ApplyEnvOverlay(cfg *Config) {
	applyOverlay(cfg, os.LookupEnv)
}

// ApplyManagedEnv applies the same recognised-variable overlay as
// [ApplyEnvOverlay], but sourced from a resolved IDE settings `env` map
// (spec §6 "IDE settings") instead of the process environment. It is the
// core's only consumer of `internal/idesettings`-resolved values: they
// seed the Config Snapshot exactly like a process environment variable
// would, and nothing else.
func ApplyManagedEnv(cfg *Config, managed map[string]string) {
	applyOverlay(cfg, func(key string) (string, bool) {
		v, ok := managed[key]
		return v, ok
	})
}

func applyOverlay(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(envLogLevel); ok {
		lvl := LogLevel(v)
		if lvl.IsValid() {
			cfg.Logging.Level = lvl
		} else {
			slog.Warn("config: ignoring malformed environment override", "var", envLogLevel, "value", v)
		}
	}

	if v, ok := lookup(envMaxConcurrentReqs); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= minConcurrentReqs && n <= maxConcurrentReqs {
			cfg.Server.MaxConcurrentReqs = n
		} else {
			slog.Warn("config: ignoring malformed environment override", "var", envMaxConcurrentReqs, "value", v)
		}
	}

	if v, ok := lookup(envRequestTimeoutMs); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= minRequestTimeoutMs && n <= maxRequestTimeoutMs {
			cfg.Server.RequestTimeoutMs = n
		} else {
			slog.Warn("config: ignoring malformed environment override", "var", envRequestTimeoutMs, "value", v)
		}
	}

	if v, ok := lookup(envEnforceProjectRoot); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Security.EnforceProjectRoot = b
		} else {
			slog.Warn("config: ignoring malformed environment override", "var", envEnforceProjectRoot, "value", v)
		}
	}

	if v, ok := lookup(envAllowDestructiveOps); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Security.AllowDestructiveOperations = b
		} else {
			slog.Warn("config: ignoring malformed environment override", "var", envAllowDestructiveOps, "value", v)
		}
	}
}
