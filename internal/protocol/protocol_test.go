package protocol_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cursorcli-mcp/workspace-server/internal/executor"
	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
	"github.com/cursorcli-mcp/workspace-server/internal/protocol"
	"github.com/cursorcli-mcp/workspace-server/internal/registry"
)

func newMachine(t *testing.T) (*protocol.StateMachine, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	if err := reg.Register("echo", "echoes back", []registry.Field{{Name: "text", Type: "string"}},
		func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent(args["text"].(string))}}, nil
		}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ex := executor.New(reg, func() executor.Limits {
		return executor.Limits{MaxConcurrentRequests: 4, RequestTimeout: time.Second}
	}, nil)
	sm := protocol.New(mcp.Implementation{Name: "workspace-server", Version: "0.1.0"}, []string{protocol.SupportedProtocolVersion}, reg, ex, nil)
	return sm, reg
}

func mustResponse(t *testing.T, sm *protocol.StateMachine, raw string) *protocol.Response {
	t.Helper()
	resp, ok := sm.Handle(context.Background(), json.RawMessage(raw))
	if !ok {
		t.Fatalf("Handle(%s): expected a response, got none", raw)
	}
	return resp
}

func TestStateMachine_RejectsMethodsBeforeInitialize(t *testing.T) {
	t.Parallel()
	sm, _ := newMachine(t)

	resp := mustResponse(t, sm, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if resp.Error == nil || mcperr.Kind(resp.Error.Data["errorCode"].(string)) != mcperr.NotInitialized {
		t.Fatalf("expected NotInitialized error, got %+v", resp.Error)
	}
}

func TestStateMachine_InitializeRejectsUnsupportedVersion(t *testing.T) {
	t.Parallel()
	sm, _ := newMachine(t)

	resp := mustResponse(t, sm, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"1999-01-01","clientInfo":{"name":"x","version":"1"}}}`)
	if resp.Error == nil || mcperr.Kind(resp.Error.Data["errorCode"].(string)) != mcperr.UnsupportedProtocolVersion {
		t.Fatalf("expected UnsupportedProtocolVersion error, got %+v", resp.Error)
	}
	if sm.State() != protocol.StateUninitialized {
		t.Errorf("state = %v, want Uninitialized after rejected handshake", sm.State())
	}
}

func TestStateMachine_InitializeThenListThenCall(t *testing.T) {
	t.Parallel()
	sm, _ := newMachine(t)

	initReq := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"` + protocol.SupportedProtocolVersion + `","clientInfo":{"name":"x","version":"1"}}}`
	resp := mustResponse(t, sm, initReq)
	if resp.Error != nil {
		t.Fatalf("initialize: unexpected error %+v", resp.Error)
	}
	if sm.State() != protocol.StateInitialized {
		t.Fatalf("state = %v, want Initialized", sm.State())
	}

	listResp := mustResponse(t, sm, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	if listResp.Error != nil {
		t.Fatalf("tools/list: unexpected error %+v", listResp.Error)
	}
	encoded, err := json.Marshal(listResp.Result)
	if err != nil {
		t.Fatalf("marshal tools/list result: %v", err)
	}
	if !strings.Contains(string(encoded), `"echo"`) {
		t.Errorf("tools/list result missing echo tool: %s", encoded)
	}

	callResp := mustResponse(t, sm, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`)
	if callResp.Error != nil {
		t.Fatalf("tools/call: unexpected error %+v", callResp.Error)
	}
	var result mcp.CallToolResult
	b, _ := json.Marshal(callResp.Result)
	if err := json.Unmarshal(b, &result); err != nil {
		t.Fatalf("unmarshal tools/call result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "hi" {
		t.Errorf("tools/call result = %+v, want echo of 'hi'", result)
	}

	if string(callResp.ID) != "3" {
		t.Errorf("response id = %s, want 3 (echoed from request)", callResp.ID)
	}
}

func TestStateMachine_NotificationsReceiveNoResponse(t *testing.T) {
	t.Parallel()
	sm, _ := newMachine(t)

	_, ok := sm.Handle(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","method":"initialized"}`))
	if ok {
		t.Fatal("notification (no id) must not receive a response")
	}
}

func TestStateMachine_ToolNotFoundAfterInit(t *testing.T) {
	t.Parallel()
	sm, _ := newMachine(t)
	mustResponse(t, sm, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"`+protocol.SupportedProtocolVersion+`","clientInfo":{"name":"x","version":"1"}}}`)

	resp := mustResponse(t, sm, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"missing","arguments":{}}}`)
	if resp.Error == nil || mcperr.Kind(resp.Error.Data["errorCode"].(string)) != mcperr.ToolNotFound {
		t.Fatalf("expected ToolNotFound error, got %+v", resp.Error)
	}
}

func TestStateMachine_DrainRejectsNewCalls(t *testing.T) {
	t.Parallel()
	sm, _ := newMachine(t)
	mustResponse(t, sm, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"`+protocol.SupportedProtocolVersion+`","clientInfo":{"name":"x","version":"1"}}}`)

	sm.Drain()
	resp := mustResponse(t, sm, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`)
	if resp.Error == nil || mcperr.Kind(resp.Error.Data["errorCode"].(string)) != mcperr.ServerShuttingDown {
		t.Fatalf("expected ServerShuttingDown error, got %+v", resp.Error)
	}
}

func TestStateMachine_NullIDIsEchoedLiterally(t *testing.T) {
	t.Parallel()
	sm, _ := newMachine(t)

	resp := mustResponse(t, sm, `{"jsonrpc":"2.0","id":null,"method":"tools/list"}`)
	if string(resp.ID) != "null" {
		t.Errorf("response id = %s, want literal null echoed back", resp.ID)
	}
}
