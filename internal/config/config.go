// Package config implements the workspace server's configuration
// lifecycle (spec component C2): load, validate, environment overlay, and
// debounced hot reload of the `.cursorcli-mcp/config.json` file.
package config

import (
	"fmt"
)

// LogLevel is the closed set of supported logging verbosities.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogOutput is one sink logging can be fanned out to.
type LogOutput string

const (
	OutputConsole           LogOutput = "console"
	OutputFile              LogOutput = "file"
	OutputCursorOutputPanel LogOutput = "cursor-output-panel"
)

// IsValid reports whether o is a recognised log output.
func (o LogOutput) IsValid() bool {
	switch o {
	case OutputConsole, OutputFile, OutputCursorOutputPanel:
		return true
	}
	return false
}

// ServerConfig holds the server identity and admission limits (spec §6).
type ServerConfig struct {
	Name               string `json:"name"`
	Version            string `json:"version"`
	MaxConcurrentReqs  int    `json:"maxConcurrentRequests"`
	RequestTimeoutMs   int    `json:"requestTimeoutMs"`
}

// FileOperationsConfig bounds file-tool behavior.
type FileOperationsConfig struct {
	MaxFileSize       int64    `json:"maxFileSize"`
	AllowedDirectories []string `json:"allowedDirectories"`
	BlockedPatterns   []string `json:"blockedPatterns"`
}

// ToolsConfig holds the tool allowlist and file-operations limits.
type ToolsConfig struct {
	AllowedTools    []string              `json:"allowedTools"`
	FileOperations  FileOperationsConfig `json:"fileOperations"`
}

// LoggingConfig controls verbosity and sinks.
type LoggingConfig struct {
	Level         LogLevel    `json:"level"`
	Outputs       []LogOutput `json:"outputs"`
	LogFile       string      `json:"logFile,omitempty"`
	MaxLogSizeMB  int         `json:"maxLogSize"`
	RotationCount int         `json:"rotationCount"`
}

// SecurityConfig holds the security switches from spec §3.
type SecurityConfig struct {
	EnforceProjectRoot        bool `json:"enforceProjectRoot"`
	AllowDestructiveOperations bool `json:"allowDestructiveOperations"`
}

// Config is the root, immutable configuration snapshot (spec §3 "Config
// Snapshot"). Values are replaced atomically by [Manager]; readers always
// observe a fully-formed, already-validated instance.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Tools    ToolsConfig    `json:"tools"`
	Logging  LoggingConfig  `json:"logging"`
	Security SecurityConfig `json:"security"`
}

// bound constants from spec §6.
const (
	minConcurrentReqs = 1
	maxConcurrentReqs = 100

	minRequestTimeoutMs = 1000
	maxRequestTimeoutMs = 60000

	minFileSize = 1 << 10        // 1 KiB
	maxFileSize = 100 << 20      // 100 MiB

	minLogSizeMB = 1
	maxLogSizeMB = 100

	minRotationCount = 1
	maxRotationCount = 30
)

// Default returns the default configuration snapshot written to disk the
// first time the server runs in a workspace (spec §4.6 step 1).
func Default(serverName string) *Config {
	return &Config{
		Server: ServerConfig{
			Name:              serverName,
			Version:           "0.1.0",
			MaxConcurrentReqs: 10,
			RequestTimeoutMs:  5000,
		},
		Tools: ToolsConfig{
			AllowedTools: []string{
				"read_file", "write_file", "list_directory",
				"project_info", "search_files", "workspace_tree",
				"editor_open", "editor_insert", "editor_replace",
				"model_info", "record_usage", "usage_stats",
			},
			FileOperations: FileOperationsConfig{
				MaxFileSize:        10 << 20, // 10 MiB
				AllowedDirectories: nil,
				BlockedPatterns:    []string{"**/.git/**", "**/node_modules/**", "**/*.env"},
			},
		},
		Logging: LoggingConfig{
			Level:         LogInfo,
			Outputs:       []LogOutput{OutputConsole},
			MaxLogSizeMB:  10,
			RotationCount: 3,
		},
		Security: SecurityConfig{
			EnforceProjectRoot:         true,
			AllowDestructiveOperations: false,
		},
	}
}

// clampError formats a bounded-range validation failure.
func clampError(field string, got, lo, hi any) error {
	return fmt.Errorf("config: %s = %v is out of range [%v, %v]", field, got, lo, hi)
}
