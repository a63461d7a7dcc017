package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
)

// DefaultRelPath is where a workspace's configuration snapshot lives,
// relative to the project root.
const DefaultRelPath = ".cursorcli-mcp/config.json"

// Load reads the configuration at path, creating it (with [Default]
// contents) if it does not yet exist, per spec §4.6 step 1. The returned
// Config has already passed [Validate].
func Load(path, serverName string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, mcperr.Wrap(mcperr.InternalError, "config: open file", err)
		}
		return writeDefault(path, serverName)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes and validates a Config from r.
func LoadFromReader(r interface{ Read([]byte) (int, error) }) (*Config, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, mcperr.Wrap(mcperr.InvalidArguments, "config: decode json", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, mcperr.Wrap(mcperr.InvalidArguments, "config: validate", err)
	}
	return &cfg, nil
}

// writeDefault materializes the default snapshot at path, creating parent
// directories as needed, and returns the written config.
func writeDefault(path, serverName string) (*Config, error) {
	cfg := Default(serverName)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, mcperr.Wrap(mcperr.InternalError, "config: create directory", err)
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, mcperr.Wrap(mcperr.InternalError, "config: marshal default", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return nil, mcperr.Wrap(mcperr.InternalError, "config: write default", err)
	}
	return cfg, nil
}

// Validate checks every bounded field of cfg against the ranges in spec
// §6, joining every violation into one error so a caller sees the full
// picture in a single report.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Name == "" {
		errs = append(errs, fmt.Errorf("config: server.name must not be empty"))
	}
	if cfg.Server.Version != "" {
		if _, err := semver.NewVersion(cfg.Server.Version); err != nil {
			errs = append(errs, fmt.Errorf("config: server.version %q is not valid semver: %w", cfg.Server.Version, err))
		}
	} else {
		errs = append(errs, fmt.Errorf("config: server.version must not be empty"))
	}
	if cfg.Server.MaxConcurrentReqs < minConcurrentReqs || cfg.Server.MaxConcurrentReqs > maxConcurrentReqs {
		errs = append(errs, clampError("server.maxConcurrentRequests", cfg.Server.MaxConcurrentReqs, minConcurrentReqs, maxConcurrentReqs))
	}
	if cfg.Server.RequestTimeoutMs < minRequestTimeoutMs || cfg.Server.RequestTimeoutMs > maxRequestTimeoutMs {
		errs = append(errs, clampError("server.requestTimeoutMs", cfg.Server.RequestTimeoutMs, minRequestTimeoutMs, maxRequestTimeoutMs))
	}

	if len(cfg.Tools.AllowedTools) == 0 {
		errs = append(errs, fmt.Errorf("config: tools.allowedTools must contain at least one entry"))
	}
	fo := cfg.Tools.FileOperations
	if fo.MaxFileSize < minFileSize || fo.MaxFileSize > maxFileSize {
		errs = append(errs, clampError("tools.fileOperations.maxFileSize", fo.MaxFileSize, minFileSize, maxFileSize))
	}
	for _, pat := range fo.BlockedPatterns {
		if pat == "" {
			errs = append(errs, fmt.Errorf("config: tools.fileOperations.blockedPatterns must not contain empty entries"))
			break
		}
	}

	if !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("config: logging.level %q is not one of debug|info|warn|error", cfg.Logging.Level))
	}
	if len(cfg.Logging.Outputs) == 0 {
		errs = append(errs, fmt.Errorf("config: logging.outputs must contain at least one entry"))
	}
	for _, o := range cfg.Logging.Outputs {
		if !o.IsValid() {
			errs = append(errs, fmt.Errorf("config: logging.outputs contains unrecognised value %q", o))
		}
		if o == OutputFile && cfg.Logging.LogFile == "" {
			errs = append(errs, fmt.Errorf("config: logging.logFile must be set when outputs includes \"file\""))
		}
	}
	if cfg.Logging.MaxLogSizeMB < minLogSizeMB || cfg.Logging.MaxLogSizeMB > maxLogSizeMB {
		errs = append(errs, clampError("logging.maxLogSize", cfg.Logging.MaxLogSizeMB, minLogSizeMB, maxLogSizeMB))
	}
	if cfg.Logging.RotationCount < minRotationCount || cfg.Logging.RotationCount > maxRotationCount {
		errs = append(errs, clampError("logging.rotationCount", cfg.Logging.RotationCount, minRotationCount, maxRotationCount))
	}

	return errors.Join(errs...)
}
