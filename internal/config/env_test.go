package config_test

import (
	"testing"

	"github.com/cursorcli-mcp/workspace-server/internal/config"
)

func TestApplyEnvOverlay_OverridesRecognisedVars(t *testing.T) {
	t.Setenv("MCP_LOG_LEVEL", "debug")
	t.Setenv("MCP_MAX_CONCURRENT_REQUESTS", "42")
	t.Setenv("MCP_REQUEST_TIMEOUT_MS", "9000")
	t.Setenv("MCP_ENFORCE_PROJECT_ROOT", "false")
	t.Setenv("MCP_ALLOW_DESTRUCTIVE_OPERATIONS", "true")

	cfg := config.Default("workspace-server")
	config.ApplyEnvOverlay(cfg)

	if cfg.Logging.Level != config.LogDebug {
		t.Errorf("Logging.Level = %v, want debug", cfg.Logging.Level)
	}
	if cfg.Server.MaxConcurrentReqs != 42 {
		t.Errorf("MaxConcurrentReqs = %d, want 42", cfg.Server.MaxConcurrentReqs)
	}
	if cfg.Server.RequestTimeoutMs != 9000 {
		t.Errorf("RequestTimeoutMs = %d, want 9000", cfg.Server.RequestTimeoutMs)
	}
	if cfg.Security.EnforceProjectRoot {
		t.Errorf("EnforceProjectRoot = true, want false")
	}
	if !cfg.Security.AllowDestructiveOperations {
		t.Errorf("AllowDestructiveOperations = false, want true")
	}
}

func TestApplyEnvOverlay_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("MCP_LOG_LEVEL", "not-a-level")
	t.Setenv("MCP_MAX_CONCURRENT_REQUESTS", "not-a-number")

	cfg := config.Default("workspace-server")
	want := cfg.Logging.Level
	wantConcurrency := cfg.Server.MaxConcurrentReqs

	config.ApplyEnvOverlay(cfg)

	if cfg.Logging.Level != want {
		t.Errorf("Logging.Level changed to %v despite malformed override", cfg.Logging.Level)
	}
	if cfg.Server.MaxConcurrentReqs != wantConcurrency {
		t.Errorf("MaxConcurrentReqs changed to %d despite malformed override", cfg.Server.MaxConcurrentReqs)
	}
}

func TestApplyEnvOverlay_IgnoresOutOfRangeNumericValues(t *testing.T) {
	// 500 is a well-formed integer but outside Validate's
	// [1,100] range for MaxConcurrentReqs, and 500 is likewise outside
	// the [1000,60000] range for RequestTimeoutMs.
	t.Setenv("MCP_MAX_CONCURRENT_REQUESTS", "500")
	t.Setenv("MCP_REQUEST_TIMEOUT_MS", "500")

	cfg := config.Default("workspace-server")
	wantConcurrency := cfg.Server.MaxConcurrentReqs
	wantTimeout := cfg.Server.RequestTimeoutMs

	config.ApplyEnvOverlay(cfg)

	if cfg.Server.MaxConcurrentReqs != wantConcurrency {
		t.Errorf("MaxConcurrentReqs = %d, want unchanged %d", cfg.Server.MaxConcurrentReqs, wantConcurrency)
	}
	if cfg.Server.RequestTimeoutMs != wantTimeout {
		t.Errorf("RequestTimeoutMs = %d, want unchanged %d", cfg.Server.RequestTimeoutMs, wantTimeout)
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("Validate() after overlay = %v, want nil", err)
	}
}

func TestApplyEnvOverlay_NoVarsSetLeavesConfigUnchanged(t *testing.T) {
	cfg := config.Default("workspace-server")
	before := *cfg
	config.ApplyEnvOverlay(cfg)
	if cfg.Logging.Level != before.Logging.Level || cfg.Server.MaxConcurrentReqs != before.Server.MaxConcurrentReqs {
		t.Errorf("config changed with no environment variables set")
	}
}

func TestApplyManagedEnv_AppliesFromResolvedIDESettingsMapNotProcessEnv(t *testing.T) {
	// Deliberately do NOT set the process environment variable — only the
	// resolved IDE settings map should be consulted.
	cfg := config.Default("workspace-server")
	config.ApplyManagedEnv(cfg, map[string]string{"MCP_LOG_LEVEL": "warn"})

	if cfg.Logging.Level != config.LogWarn {
		t.Errorf("Logging.Level = %v, want warn", cfg.Logging.Level)
	}
}
