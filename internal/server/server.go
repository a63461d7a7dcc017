// Package server implements the workspace server's core (spec component
// C8): it owns the full lifecycle, wiring the path sandbox, config
// manager, tool registry, executor, transport, and protocol state
// machine into one running process.
//
// Grounded on the teacher's internal/app.App: a struct that owns every
// subsystem's lifetime, a closers slice unwound in Shutdown, a stopOnce
// guarding that unwind, and an Options struct for injecting test
// doubles in place of the real collaborators New would otherwise build.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cursorcli-mcp/workspace-server/internal/config"
	"github.com/cursorcli-mcp/workspace-server/internal/executor"
	"github.com/cursorcli-mcp/workspace-server/internal/health"
	"github.com/cursorcli-mcp/workspace-server/internal/logging"
	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
	"github.com/cursorcli-mcp/workspace-server/internal/observe"
	"github.com/cursorcli-mcp/workspace-server/internal/protocol"
	"github.com/cursorcli-mcp/workspace-server/internal/registry"
	"github.com/cursorcli-mcp/workspace-server/internal/sandbox"
	"github.com/cursorcli-mcp/workspace-server/internal/transport"
	"github.com/cursorcli-mcp/workspace-server/internal/tools/editor"
	"github.com/cursorcli-mcp/workspace-server/internal/tools/fileio"
	"github.com/cursorcli-mcp/workspace-server/internal/tools/model"
	"github.com/cursorcli-mcp/workspace-server/internal/tools/project"
)

// defaultDrainBudget bounds how long Shutdown waits for in-flight
// tools/call handlers before forcibly cancelling them, per spec §4.8.
const defaultDrainBudget = 10 * time.Second

// Options configures a Server. ProjectRoot is required; ServerName
// defaults to "workspace-server", and everything else has a sensible
// default or is read from the config snapshot once it is loaded.
type Options struct {
	// ProjectRoot is the workspace directory the sandbox is rooted at.
	ProjectRoot string
	// ServerName identifies this server in the MCP handshake and is the
	// default `server.name` written to a fresh config file.
	ServerName string
	// ServerVersion is reported to clients during `initialize`.
	ServerVersion string
	// ConfigPath overrides the config file location. Defaults to
	// ProjectRoot/[config.DefaultRelPath].
	ConfigPath string
	// ManagedEnv, when non-nil, is applied once at construction via
	// [config.ApplyManagedEnv] — the resolved `${VAR}` environment of an
	// IDE-managed mcpServers entry (spec §7 "IDE Settings Integration").
	// It is deliberately NOT part of the hot-reload path: only
	// [config.ApplyEnvOverlay] runs again on every reload.
	ManagedEnv map[string]string
	// ModelDescriptor seeds the model_info/usage tools' notion of "the
	// model currently backing the client"; no built-in tool changes it.
	// There is no discovery mechanism for this in spec §6 (ModelPort is
	// entirely push-based), so New requires a caller-supplied seed
	// rather than guessing a default, recorded as an Open Question
	// decision in DESIGN.md.
	ModelDescriptor mcp.ModelDescriptor
	// DrainBudget bounds Shutdown's wait for in-flight calls. Defaults
	// to [defaultDrainBudget].
	DrainBudget time.Duration
	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics
	// Stdin/Stdout are the transport's framed JSON-RPC streams. Default
	// to os.Stdin/os.Stdout; tests inject an [io.Pipe] pair instead.
	Stdin  io.Reader
	Stdout io.Writer
	// PanelWriter is the `cursor-output-panel` log destination (spec §6),
	// supplied by the host IDE process. Defaults to [io.Discard] when the
	// config never selects that output, or when it does but no writer is
	// supplied.
	PanelWriter io.Writer
}

// Server owns every subsystem's lifetime for one workspace session (spec
// §4.8 "Server Core"). Construct with [New], drive with [Server.Run], and
// tear down with [Server.Shutdown].
type Server struct {
	cfgMgr    *config.Manager
	logMgr    *logging.Manager
	sandbox   *sandbox.Sandbox
	registry  *registry.Registry
	executor  *executor.Executor
	transport *transport.Transport
	protocol  *protocol.StateMachine
	metrics   *observe.Metrics
	health    *health.Handler

	drainBudget time.Duration

	baseCtx    context.Context
	cancelBase context.CancelFunc

	wg       sync.WaitGroup
	closers  []func() error
	stopOnce sync.Once
}

// New wires a Server per spec §4.8's construction order: load config,
// build sandbox, build registry (apply allowlist), build executor, build
// transport, bind protocol, start the config watcher. The transport is
// not started yet; call [Server.Run] to begin serving.
func New(opts Options) (*Server, error) {
	if opts.ProjectRoot == "" {
		return nil, fmt.Errorf("server: ProjectRoot is required")
	}
	if opts.ServerName == "" {
		opts.ServerName = "workspace-server"
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = filepath.Join(opts.ProjectRoot, config.DefaultRelPath)
	}
	if opts.DrainBudget <= 0 {
		opts.DrainBudget = defaultDrainBudget
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	// ── 1. Config ─────────────────────────────────────────────────────
	cfgMgr, err := config.NewManager(opts.ConfigPath, opts.ServerName)
	if err != nil {
		return nil, fmt.Errorf("server: load config: %w", err)
	}
	if len(opts.ManagedEnv) > 0 {
		cfg := cfgMgr.Current()
		config.ApplyManagedEnv(cfg, opts.ManagedEnv)
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("server: config invalid after applying managed env: %w", err)
		}
	}
	cfg := cfgMgr.Current()
	if opts.ServerVersion != "" {
		cfg.Server.Version = opts.ServerVersion
	}

	// ── 1.5 Logging ───────────────────────────────────────────────────
	// Built from the loaded config rather than a raw pre-config env var,
	// matching the teacher's own main.go sequencing (load config, then
	// build the logger from it). Installed process-wide via slog.SetDefault
	// since every package here logs through the slog top-level functions.
	logMgr := logging.New(cfg.Logging)
	if opts.PanelWriter != nil {
		logMgr.SetPanelWriter(opts.PanelWriter)
	}
	slog.SetDefault(logMgr.Logger())

	// ── 2. Sandbox ────────────────────────────────────────────────────
	sb, err := sandbox.New(opts.ProjectRoot, cfg.Tools.FileOperations.BlockedPatterns)
	if err != nil {
		return nil, fmt.Errorf("server: build sandbox: %w", err)
	}

	// ── 3. Registry ───────────────────────────────────────────────────
	reg := registry.New()
	fsPort := fileio.New(sb)
	projPort := project.New(sb)
	edPort := editor.New()
	mdPort := model.New(opts.ModelDescriptor)
	if err := registerBuiltinTools(reg, fsPort, projPort, edPort, mdPort, cfg.Tools.FileOperations.MaxFileSize); err != nil {
		return nil, fmt.Errorf("server: register tools: %w", err)
	}
	reg.ApplyAllowlist(cfg.Tools.AllowedTools)

	// ── 4. Executor ───────────────────────────────────────────────────
	exec := executor.New(reg, limitsFrom(cfgMgr), opts.Metrics)

	// ── 5. Transport ──────────────────────────────────────────────────
	tport := transport.New(opts.Stdin, opts.Stdout)

	// ── 6. Protocol ───────────────────────────────────────────────────
	serverInfo := mcp.Implementation{Name: opts.ServerName, Version: cfg.Server.Version}
	proto := protocol.New(serverInfo, []string{protocol.SupportedProtocolVersion}, reg, exec, observe.Tracer())

	healthHandler := health.New(health.Checker{
		Name: "sandboxRoot",
		Check: func(ctx context.Context) error {
			_, err := os.Stat(sb.Root())
			return err
		},
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())

	s := &Server{
		cfgMgr:      cfgMgr,
		logMgr:      logMgr,
		sandbox:     sb,
		registry:    reg,
		executor:    exec,
		transport:   tport,
		protocol:    proto,
		metrics:     opts.Metrics,
		health:      healthHandler,
		drainBudget: opts.DrainBudget,
		baseCtx:     baseCtx,
		cancelBase:  cancelBase,
	}

	cfgMgr.OnChange(func(old, updated *config.Config) {
		reg.ApplyAllowlist(updated.Tools.AllowedTools)
		logMgr.Reconfigure(updated.Logging)
		slog.SetDefault(logMgr.Logger())
		opts.Metrics.RecordConfigReload(context.Background(), true)
		slog.Info("server: applied hot-reloaded config")
	})
	if err := cfgMgr.WatchForChanges(); err != nil {
		return nil, fmt.Errorf("server: start config watcher: %w", err)
	}
	s.closers = append(s.closers, cfgMgr.Close)

	return s, nil
}

// limitsFrom adapts a [config.Manager]'s live snapshot to the executor's
// [executor.Limits] accessor, so a hot-reloaded maxConcurrentRequests or
// requestTimeoutMs takes effect without rebuilding the executor.
func limitsFrom(cfgMgr *config.Manager) func() executor.Limits {
	return func() executor.Limits {
		cfg := cfgMgr.Current()
		return executor.Limits{
			MaxConcurrentRequests: cfg.Server.MaxConcurrentReqs,
			RequestTimeout:        time.Duration(cfg.Server.RequestTimeoutMs) * time.Millisecond,
		}
	}
}

// Health reports the server's readiness, per spec §4.8. It is evaluated
// on demand rather than served over a network endpoint (spec Non-goal).
func (s *Server) Health(ctx context.Context) health.Result {
	return s.health.Evaluate(ctx)
}

// Sandbox returns the path sandbox this server's tools are rooted at.
func (s *Server) Sandbox() *sandbox.Sandbox { return s.sandbox }

// Registry returns the tool registry, for diagnostics and tests that
// want to inspect or mutate enablement without going through the wire
// protocol.
func (s *Server) Registry() *registry.Registry { return s.registry }

// Metrics returns the instrumentation this server reports to.
func (s *Server) Metrics() *observe.Metrics { return s.metrics }

// Executor returns the tool executor backing `tools/call`.
func (s *Server) Executor() *executor.Executor { return s.executor }

// Run starts the transport and drives inbound frames into the protocol
// state machine until ctx is cancelled or the transport observes EOF.
// Each frame is dispatched to its own goroutine as soon as it is read, so
// one slow `tools/call` never blocks the read loop from draining the rest
// of the stream (spec §4.4 "the executor's admission control, not the
// read loop, is what sheds load").
func (s *Server) Run(ctx context.Context) error {
	if err := s.transport.Start(); err != nil {
		return fmt.Errorf("server: start transport: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-s.transport.Messages():
			if !ok {
				return nil
			}
			s.wg.Add(1)
			go func(raw json.RawMessage) {
				defer s.wg.Done()
				s.handle(raw)
			}(msg)

		case ev, ok := <-s.transport.Events():
			if !ok {
				continue
			}
			switch ev.Kind {
			case transport.EventInvalidFrame:
				slog.Warn("server: discarding unparsable frame", "error", ev.Err)
			case transport.EventClose:
				return nil
			}
		}
	}
}

// handle runs one parsed frame through the protocol state machine and
// writes its response, if any, back to the transport. It runs off
// [Server.baseCtx] rather than Run's ctx, so in-flight calls survive
// Run returning and are instead only cut short by Shutdown's drain
// budget.
func (s *Server) handle(raw json.RawMessage) {
	resp, ok := s.protocol.Handle(s.baseCtx, raw)
	if !ok {
		return
	}
	if err := s.transport.Send(resp); err != nil {
		slog.Warn("server: failed to send response", "error", err)
	}
}

// Shutdown implements spec §4.8's drain sequence: stop accepting new
// work by transitioning the protocol state machine to draining (further
// `tools/call` requests fail fast with [mcperr.ServerShuttingDown]),
// await in-flight calls up to ctx's deadline or [Server.drainBudget]
// (whichever is tighter), then close the transport and run closers in
// order. It is safe to call multiple times; only the first call acts.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.stopOnce.Do(func() {
		s.protocol.Drain()

		budgetCtx, cancel := context.WithTimeout(ctx, s.drainBudget)
		defer cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-budgetCtx.Done():
			slog.Warn("server: drain budget exceeded, cancelling in-flight tool calls")
			s.cancelBase()
			<-done
		}

		s.transport.Stop()
		s.protocol.Close()

		for i, closer := range s.closers {
			if err := closer(); err != nil {
				slog.Warn("server: closer error", "index", i, "error", err)
				shutdownErr = mcperr.Wrap(mcperr.InternalError, "server: shutdown closer failed", err)
			}
		}

		slog.Info("server: shutdown complete")

		if s.logMgr != nil {
			if err := s.logMgr.Close(); err != nil && shutdownErr == nil {
				shutdownErr = mcperr.Wrap(mcperr.InternalError, "server: flush logs failed", err)
			}
		}
	})
	return shutdownErr
}
