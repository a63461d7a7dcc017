package executor_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cursorcli-mcp/workspace-server/internal/executor"
	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
	"github.com/cursorcli-mcp/workspace-server/internal/registry"
)

func fixedLimits(maxConcurrent int, timeout time.Duration) func() executor.Limits {
	return func() executor.Limits {
		return executor.Limits{MaxConcurrentRequests: maxConcurrent, RequestTimeout: timeout}
	}
}

func TestExecutor_ToolNotFound(t *testing.T) {
	t.Parallel()
	reg := registry.New()
	ex := executor.New(reg, fixedLimits(10, time.Second), nil)

	_, err := ex.Execute(context.Background(), "missing", nil)
	if mcperr.KindOf(err) != mcperr.ToolNotFound {
		t.Fatalf("err kind = %v, want ToolNotFound", mcperr.KindOf(err))
	}
}

func TestExecutor_ToolDisabled(t *testing.T) {
	t.Parallel()
	reg := registry.New()
	reg.Register("t", "", nil, func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{}, nil
	})
	reg.SetEnabled("t", false)
	ex := executor.New(reg, fixedLimits(10, time.Second), nil)

	_, err := ex.Execute(context.Background(), "t", nil)
	if mcperr.KindOf(err) != mcperr.ToolDisabled {
		t.Fatalf("err kind = %v, want ToolDisabled", mcperr.KindOf(err))
	}
}

func TestExecutor_InvalidArguments(t *testing.T) {
	t.Parallel()
	reg := registry.New()
	reg.Register("t", "", []registry.Field{{Name: "path", Type: "string"}},
		func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{}, nil
		})
	ex := executor.New(reg, fixedLimits(10, time.Second), nil)

	_, err := ex.Execute(context.Background(), "t", json.RawMessage(`{}`))
	if mcperr.KindOf(err) != mcperr.InvalidArguments {
		t.Fatalf("err kind = %v, want InvalidArguments", mcperr.KindOf(err))
	}
}

func TestExecutor_Timeout(t *testing.T) {
	t.Parallel()
	reg := registry.New()
	reg.Register("slow", "", nil, func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return &mcp.CallToolResult{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	ex := executor.New(reg, fixedLimits(10, 20*time.Millisecond), nil)

	_, err := ex.Execute(context.Background(), "slow", nil)
	if mcperr.KindOf(err) != mcperr.Timeout {
		t.Fatalf("err kind = %v, want Timeout", mcperr.KindOf(err))
	}
}

func TestExecutor_ConcurrencyLimitExceededWithoutBlocking(t *testing.T) {
	t.Parallel()
	reg := registry.New()
	release := make(chan struct{})
	reg.Register("slow", "", nil, func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		<-release
		return &mcp.CallToolResult{}, nil
	})
	ex := executor.New(reg, fixedLimits(2, time.Second), nil)

	done := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := ex.Execute(context.Background(), "slow", nil)
			done <- err
		}()
	}
	// Give the two slow calls time to be admitted.
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	_, err := ex.Execute(context.Background(), "slow", nil)
	elapsed := time.Since(start)

	if mcperr.KindOf(err) != mcperr.ConcurrencyLimitExceeded {
		t.Fatalf("err kind = %v, want ConcurrencyLimitExceeded", mcperr.KindOf(err))
	}
	if elapsed > 50*time.Millisecond {
		t.Errorf("rejection took %v, want near-immediate (non-blocking)", elapsed)
	}

	close(release)
	<-done
	<-done
}

func TestExecutor_SuccessReleasesPermit(t *testing.T) {
	t.Parallel()
	reg := registry.New()
	reg.Register("ok", "", nil, func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent("done")}}, nil
	})
	ex := executor.New(reg, fixedLimits(1, time.Second), nil)

	for range 3 {
		res, err := ex.Execute(context.Background(), "ok", nil)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if res.Content[0].Text != "done" {
			t.Errorf("content = %q, want done", res.Content[0].Text)
		}
	}
}
