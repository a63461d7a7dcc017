package config

import (
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Manager owns the live configuration snapshot for a workspace: an
// atomically-swapped pointer readers observe without locking, a
// single-flight-guarded loader so concurrent [Manager.Load] callers
// collapse into one file read (spec §8), and an optional hot-reload
// [Watcher].
type Manager struct {
	path       string
	serverName string

	snapshot atomic.Pointer[Config]
	group    singleflight.Group

	watcher   *Watcher
	listeners []func(old, new *Config)
}

// NewManager constructs a Manager and performs the initial [Load].
func NewManager(path, serverName string) (*Manager, error) {
	m := &Manager{path: path, serverName: serverName}
	cfg, err := m.Load()
	if err != nil {
		return nil, err
	}
	m.snapshot.Store(cfg)
	return m, nil
}

// Current returns the most recently loaded, validated snapshot.
func (m *Manager) Current() *Config {
	return m.snapshot.Load()
}

// Load reads and validates the configuration file, applies the
// environment overlay, and returns the result without touching the live
// snapshot. Concurrent calls collapse into a single file read via
// singleflight.
func (m *Manager) Load() (*Config, error) {
	v, err, _ := m.group.Do("load", func() (any, error) {
		cfg, err := Load(m.path, m.serverName)
		if err != nil {
			return nil, err
		}
		ApplyEnvOverlay(cfg)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Config), nil
}

// OnChange registers a callback invoked after every hot reload, with the
// previous and newly-active snapshots. A reload that fails validation
// still invokes it, with the default fallback snapshot as the new one.
func (m *Manager) OnChange(fn func(old, new *Config)) {
	m.listeners = append(m.listeners, fn)
}

// WatchForChanges starts an fsnotify-backed [Watcher] on the configuration
// file and begins applying reloads to the live snapshot. It is a no-op if
// a watcher is already running.
func (m *Manager) WatchForChanges() error {
	if m.watcher != nil {
		return nil
	}

	w, err := NewWatcher(m.path, func() {
		cfg, err := m.Load()
		if err != nil {
			// Spec §4.6 "Hot reload": on validation failure the snapshot
			// falls back to defaults and every registered callback still
			// runs, with the fallback.
			slog.Warn("config: hot reload failed validation, falling back to defaults", "error", err)
			cfg = Default(m.serverName)
		}
		old := m.snapshot.Swap(cfg)
		d := Diff(old, cfg)
		if d.Changed() {
			slog.Info("config: reloaded", "changes", d.Summary())
		}
		for _, fn := range m.listeners {
			fn(old, cfg)
		}
	})
	if err != nil {
		return err
	}
	m.watcher = w
	return w.Start()
}

// Close stops the hot-reload watcher, if running.
func (m *Manager) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Stop()
}
