// Package protocol implements the workspace server's protocol state
// machine (spec component C6): the initialize/list/call handshake, method
// dispatch, and request-id correlation over JSON-RPC 2.0.
//
// Grounded on the method-dispatch-table idiom seen across the retrieved
// MCP server snippets (a `map[string]HandlerFunc` keyed by JSON-RPC
// method), with content-block shapes kept wire-compatible with
// github.com/modelcontextprotocol/go-sdk/mcp's Implementation type, as the
// teacher does in internal/mcp/mcphost/host.go.
package protocol

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/cursorcli-mcp/workspace-server/internal/executor"
	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
	"github.com/cursorcli-mcp/workspace-server/internal/registry"
)

// SupportedProtocolVersion is the minimum MCP protocol version this server
// understands, per spec §6. Additional exact versions can be added to
// [StateMachine]'s accepted set at construction.
const SupportedProtocolVersion = "2024-11-05"

// State is the session lifecycle variant of spec §3 "Session State".
// Transitions are monotonic; once Closed, no further transitions occur.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// initializeParams is the decoded body of an `initialize` request.
type initializeParams struct {
	ProtocolVersion string              `json:"protocolVersion"`
	Capabilities    json.RawMessage     `json:"capabilities"`
	ClientInfo      mcp.Implementation  `json:"clientInfo"`
}

type capabilities struct {
	Tools   map[string]any `json:"tools"`
	Logging map[string]any `json:"logging"`
}

// initializeResult is the reply body of a successful `initialize`.
type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    capabilities       `json:"capabilities"`
	ServerInfo      mcp.Implementation `json:"serverInfo"`
}

// toolListingResult is the reply body of `tools/list`.
type toolListingResult struct {
	Tools []toolListingEntry `json:"tools"`
}

type toolListingEntry struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	InputSchema *registry.Schema `json:"inputSchema"`
}

// callToolParams is the decoded body of a `tools/call` request.
type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// StateMachine drives the MCP handshake and dispatches `tools/list` and
// `tools/call` to the [registry.Registry] and [executor.Executor], per
// spec §4.2.
type StateMachine struct {
	serverInfo         mcp.Implementation
	supportedVersions  map[string]bool
	registry           *registry.Registry
	executor           *executor.Executor
	tracer             trace.Tracer
	includeStack       bool

	mu         sync.Mutex
	state      State
	clientInfo mcp.Implementation
}

// New constructs a StateMachine in [StateUninitialized]. supportedVersions
// must contain at least [SupportedProtocolVersion]; it is the closed,
// ordered set spec §3 calls the "Protocol Version Set".
func New(serverInfo mcp.Implementation, supportedVersions []string, reg *registry.Registry, exec *executor.Executor, tracer trace.Tracer) *StateMachine {
	vset := make(map[string]bool, len(supportedVersions))
	for _, v := range supportedVersions {
		vset[v] = true
	}
	return &StateMachine{
		serverInfo:        serverInfo,
		supportedVersions: vset,
		registry:          reg,
		executor:          exec,
		tracer:            tracer,
		includeStack:      os.Getenv("MCP_ENV") != "production",
		state:             StateUninitialized,
	}
}

// State returns the current session state.
func (s *StateMachine) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Drain transitions to [StateDraining]: in-flight calls continue, but new
// `tools/call` requests are rejected with [mcperr.ServerShuttingDown]
// (spec §4.8 "Shutdown").
func (s *StateMachine) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = StateDraining
	}
}

// Close transitions to the terminal [StateClosed] state, per spec §4.2
// "Any -> close (transport-initiated)".
func (s *StateMachine) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
}

// Handle dispatches one parsed inbound frame and returns the response to
// send, if any. The second return value is false for notifications (spec
// §4.2 "Id handling"), which receive no reply.
func (s *StateMachine) Handle(ctx context.Context, raw json.RawMessage) (*Response, bool) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		// Not a valid JSON-RPC envelope at all; nothing we can correlate
		// a response to. The transport reports lines that are not JSON
		// as invalid-frame events and never delivers them here; a JSON
		// value that is not a request object (a bare number, say) does
		// reach Handle and is dropped without a reply.
		return nil, false
	}

	id := req.ID
	if id == nil {
		id = nullID
	}

	result, callErr := s.dispatch(ctx, req)

	if req.IsNotification() {
		return nil, false
	}

	if callErr != nil {
		payload := mcperr.Map(callErr, s.includeStack)
		return &Response{
			JSONRPC: "2.0",
			ID:      id,
			Error:   &ErrorObject{Code: payload.Code, Message: payload.Message, Data: payload.Data},
		}, true
	}
	return &Response{JSONRPC: "2.0", ID: id, Result: result}, true
}

func (s *StateMachine) dispatch(ctx context.Context, req Request) (any, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if req.Method == "initialize" {
		return s.handleInitialize(req)
	}

	if state == StateUninitialized {
		return nil, mcperr.Newf(mcperr.NotInitialized, "protocol: method %q called before initialize", req.Method)
	}
	if state == StateClosed {
		return nil, mcperr.New(mcperr.InternalError, "protocol: session is closed")
	}

	switch req.Method {
	case "tools/list":
		return s.handleToolsList()
	case "tools/call":
		if state == StateDraining {
			return nil, mcperr.New(mcperr.ServerShuttingDown, "protocol: server is shutting down")
		}
		return s.handleToolsCall(ctx, req)
	default:
		return nil, mcperr.Newf(mcperr.NotFound, "protocol: unknown method %q", req.Method)
	}
}

func (s *StateMachine) handleInitialize(req Request) (any, error) {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, mcperr.Wrap(mcperr.InvalidArguments, "protocol: decode initialize params", err)
		}
	}

	if !s.supportedVersions[params.ProtocolVersion] {
		return nil, mcperr.Newf(mcperr.UnsupportedProtocolVersion, "protocol: unsupported protocolVersion %q", params.ProtocolVersion).
			WithContext("requested", params.ProtocolVersion)
	}

	s.mu.Lock()
	s.clientInfo = params.ClientInfo
	s.state = StateInitialized
	s.mu.Unlock()

	slog.Info("protocol: session initialized", "client", params.ClientInfo.Name, "version", params.ClientInfo.Version, "protocolVersion", params.ProtocolVersion)

	return initializeResult{
		ProtocolVersion: params.ProtocolVersion,
		Capabilities:    capabilities{Tools: map[string]any{}, Logging: map[string]any{}},
		ServerInfo:      s.serverInfo,
	}, nil
}

func (s *StateMachine) handleToolsList() (any, error) {
	listings := s.registry.List()
	entries := make([]toolListingEntry, len(listings))
	for i, l := range listings {
		entries[i] = toolListingEntry{Name: l.Name, Description: l.Description, InputSchema: l.InputSchema}
	}
	return toolListingResult{Tools: entries}, nil
}

func (s *StateMachine) handleToolsCall(ctx context.Context, req Request) (any, error) {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, mcperr.Wrap(mcperr.InvalidArguments, "protocol: decode tools/call params", err)
	}

	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "tools/call "+params.Name)
		defer span.End()
	}

	start := time.Now()
	result, err := s.executor.Execute(ctx, params.Name, params.Arguments)
	slog.Debug("protocol: tool call completed", "tool", params.Name, "duration", time.Since(start), "error", err != nil)
	if err != nil {
		return nil, err
	}
	return result, nil
}
