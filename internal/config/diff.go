package config

import (
	"reflect"
)

// ConfigDiff summarises the fields that changed between two configuration
// snapshots, for logging at hot-reload time.
type ConfigDiff struct {
	LoggingLevelChanged   bool
	AllowedToolsChanged   bool
	FileLimitsChanged     bool
	SecurityChanged       bool
}

// Diff compares old and new and reports which top-level concerns shifted.
func Diff(old, new *Config) ConfigDiff {
	if old == nil || new == nil {
		return ConfigDiff{}
	}
	return ConfigDiff{
		LoggingLevelChanged: old.Logging.Level != new.Logging.Level,
		AllowedToolsChanged: !reflect.DeepEqual(old.Tools.AllowedTools, new.Tools.AllowedTools),
		FileLimitsChanged:   !reflect.DeepEqual(old.Tools.FileOperations, new.Tools.FileOperations),
		SecurityChanged:     old.Security != new.Security,
	}
}

// Changed reports whether any field differed.
func (d ConfigDiff) Changed() bool {
	return d.LoggingLevelChanged || d.AllowedToolsChanged || d.FileLimitsChanged || d.SecurityChanged
}

// Summary renders a short human-readable list of what changed, for a
// single structured log line.
func (d ConfigDiff) Summary() string {
	if !d.Changed() {
		return "none"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += ","
		}
		s += name
	}
	if d.LoggingLevelChanged {
		add("logging.level")
	}
	if d.AllowedToolsChanged {
		add("tools.allowedTools")
	}
	if d.FileLimitsChanged {
		add("tools.fileOperations")
	}
	if d.SecurityChanged {
		add("security")
	}
	return s
}
