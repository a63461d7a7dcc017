package logging_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cursorcli-mcp/workspace-server/internal/config"
	"github.com/cursorcli-mcp/workspace-server/internal/logging"
)

func TestNew_ConsoleOutputHonoursLevel(t *testing.T) {
	t.Parallel()
	mgr := logging.New(config.LoggingConfig{
		Level:   config.LogWarn,
		Outputs: []config.LogOutput{config.OutputConsole},
	})
	logger := mgr.Logger()
	if logger.Enabled(nil, slog.LevelInfo) {
		t.Errorf("LevelInfo enabled, want disabled below warn")
	}
	if !logger.Enabled(nil, slog.LevelWarn) {
		t.Errorf("LevelWarn disabled, want enabled")
	}
}

func TestNew_FileOutputWritesToLogFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	mgr := logging.New(config.LoggingConfig{
		Level:         config.LogInfo,
		Outputs:       []config.LogOutput{config.OutputFile},
		LogFile:       path,
		MaxLogSizeMB:  10,
		RotationCount: 3,
	})
	mgr.Logger().Info("hello from the file sink")
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "hello from the file sink") {
		t.Errorf("log file content = %q, want it to contain the logged message", data)
	}
}

func TestNew_CursorOutputPanelWritesToInjectedWriter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	mgr := logging.New(config.LoggingConfig{
		Level:   config.LogInfo,
		Outputs: []config.LogOutput{config.OutputCursorOutputPanel},
	})
	mgr.SetPanelWriter(&buf)
	mgr.Logger().Info("panel message")

	if !strings.Contains(buf.String(), "panel message") {
		t.Errorf("panel buffer = %q, want it to contain the logged message", buf.String())
	}
}

func TestNew_MultipleOutputsFanOutToAll(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")
	var panelBuf bytes.Buffer

	mgr := logging.New(config.LoggingConfig{
		Level:         config.LogInfo,
		Outputs:       []config.LogOutput{config.OutputFile, config.OutputCursorOutputPanel},
		LogFile:       path,
		MaxLogSizeMB:  10,
		RotationCount: 3,
	})
	mgr.SetPanelWriter(&panelBuf)
	mgr.Logger().Info("fan-out message")
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(fileData), "fan-out message") {
		t.Errorf("file content = %q, want it to contain the logged message", fileData)
	}
	if !strings.Contains(panelBuf.String(), "fan-out message") {
		t.Errorf("panel content = %q, want it to contain the logged message", panelBuf.String())
	}
}

func TestReconfigure_LowersLevelAtRuntime(t *testing.T) {
	t.Parallel()
	mgr := logging.New(config.LoggingConfig{
		Level:   config.LogWarn,
		Outputs: []config.LogOutput{config.OutputConsole},
	})
	if mgr.Logger().Enabled(nil, slog.LevelDebug) {
		t.Fatalf("LevelDebug enabled before reconfigure, want disabled")
	}

	mgr.Reconfigure(config.LoggingConfig{
		Level:   config.LogDebug,
		Outputs: []config.LogOutput{config.OutputConsole},
	})
	if !mgr.Logger().Enabled(nil, slog.LevelDebug) {
		t.Errorf("LevelDebug disabled after reconfigure, want enabled")
	}
}

func TestReconfigure_SamePathReusesRotatingFileAcrossReloads(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	mgr := logging.New(config.LoggingConfig{
		Level:         config.LogInfo,
		Outputs:       []config.LogOutput{config.OutputFile},
		LogFile:       path,
		MaxLogSizeMB:  10,
		RotationCount: 3,
	})
	mgr.Logger().Info("before reload")
	mgr.Reconfigure(config.LoggingConfig{
		Level:         config.LogDebug,
		Outputs:       []config.LogOutput{config.OutputFile},
		LogFile:       path,
		MaxLogSizeMB:  10,
		RotationCount: 3,
	})
	mgr.Logger().Info("after reload")
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "before reload") || !strings.Contains(string(data), "after reload") {
		t.Errorf("log file content = %q, want both messages appended to the same file", data)
	}
}

func TestNew_NoOutputsFallsBackToConsole(t *testing.T) {
	t.Parallel()
	mgr := logging.New(config.LoggingConfig{Level: config.LogInfo})
	if mgr.Logger() == nil {
		t.Fatalf("Logger() = nil, want a usable fallback logger")
	}
}

