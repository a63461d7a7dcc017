// Command mcpserver is the entry point for the per-workspace MCP
// workspace server: it speaks framed JSON-RPC 2.0 over stdin/stdout and
// exposes file, project, editor, and model tools sandboxed to one
// project root.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cursorcli-mcp/workspace-server/internal/health"
	"github.com/cursorcli-mcp/workspace-server/internal/idesettings"
	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
	"github.com/cursorcli-mcp/workspace-server/internal/observe"
	"github.com/cursorcli-mcp/workspace-server/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ────────────────────────────────────────────────────
	projectRoot := flag.String("root", ".", "workspace root the server is sandboxed to")
	serverName := flag.String("name", "workspace-server", "server name reported in the MCP handshake")
	serverVersion := flag.String("version", "0.1.0", "server version reported in the MCP handshake")
	mcpSettingsPath := flag.String("mcp-settings", "", "path to this server's own mcpServers entry, for env-reference expansion")
	envMode := flag.String("env-mode", "lenient", "env-reference expansion mode: strict or lenient")
	modelName := flag.String("model-name", "", "model name reported by model_info")
	modelProvider := flag.String("model-provider", "", "initial model provider reported by model_info")
	flag.Parse()

	// Bootstrap logger for the window before the config file (under root)
	// is even found, let alone loaded. server.New replaces this with one
	// built from the loaded logging config, console/file/panel fan-out
	// and all, once it succeeds — MCP_LOG_LEVEL only governs the few lines
	// logged before that point. slog goes exclusively to stderr here:
	// stdout is reserved for framed JSON-RPC responses.
	logger := newLogger(os.Getenv("MCP_LOG_LEVEL"))
	slog.SetDefault(logger)

	root, err := resolveRoot(*projectRoot)
	if err != nil {
		slog.Error("mcpserver: resolve project root", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    *serverName,
		ServiceVersion: *serverVersion,
	})
	if err != nil {
		slog.Warn("mcpserver: telemetry provider init failed, continuing without it", "error", err)
		shutdown = func(context.Context) error { return nil }
	}

	managedEnv, err := loadManagedEnv(*mcpSettingsPath, *envMode)
	if err != nil {
		slog.Error("mcpserver: resolve mcpServers env", "error", err)
		return 1
	}

	health.InstallFaultHandler(func(faultErr error) {
		slog.Error("mcpserver: uncaught fault, shutting down", "error", faultErr)
		stop()
	})

	srv, err := server.New(server.Options{
		ProjectRoot:     root,
		ServerName:      *serverName,
		ServerVersion:   *serverVersion,
		ManagedEnv:      managedEnv,
		ModelDescriptor: mcp.ModelDescriptor{Name: *modelName, Provider: *modelProvider},
	})
	if err != nil {
		slog.Error("mcpserver: construct server", "error", err)
		return 1
	}

	slog.Info("mcpserver: ready", "root", root, "name", *serverName, "version", *serverVersion)

	runErr := srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("mcpserver: shutdown error", "error", err)
		_ = shutdown(shutdownCtx)
		return 1
	}
	_ = shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("mcpserver: run error", "error", runErr)
		return 1
	}

	slog.Info("mcpserver: exited cleanly")
	return 0
}

// resolveRoot turns the -root flag into an absolute path.
func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("mcpserver: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return "", fmt.Errorf("mcpserver: project root %q is not a directory", abs)
	}
	return abs, nil
}

// loadManagedEnv reads this server's own mcpServers entry, if one was
// given, and resolves its `${VAR}` env references per spec §6 "IDE
// settings". Returns a nil map when no settings path was given, which
// leaves [server.Options.ManagedEnv] unset.
func loadManagedEnv(path, modeName string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mcpServers entry: %w", err)
	}

	var entry idesettings.ServerEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode mcpServers entry: %w", err)
	}

	resolved, err := idesettings.ResolveServerEntry(entry, idesettings.ModeFromConfig(modeName))
	if err != nil {
		return nil, fmt.Errorf("resolve mcpServers env: %w", err)
	}
	return resolved.Env, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
