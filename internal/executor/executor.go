// Package executor implements the workspace server's tool executor (spec
// component C5): argument validation, non-blocking semaphore admission,
// deadline racing, and cooperative cancellation around a registered
// tool's handler.
//
// Grounded on the start/duration/tier-update shape of
// MrWong99-glyphoxa/internal/mcp/mcphost.Host.ExecuteTool, generalized
// from latency tiering to this spec's admission-then-timeout pipeline.
package executor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
	"github.com/cursorcli-mcp/workspace-server/internal/registry"
)

// Limits are the executor's admission and timeout knobs, read from the
// live [config.Config] snapshot at call time (spec §3 "Config Snapshot").
type Limits struct {
	MaxConcurrentRequests int
	RequestTimeout        time.Duration
}

// Metrics is the narrow set of instrumentation hooks the executor reports
// to, satisfied by [observe.Metrics]. A nil Metrics is valid: every method
// becomes a no-op, matching the teacher's style of optional instrument
// injection.
type Metrics interface {
	RecordToolCall(ctx context.Context, tool, status string)
	RecordToolDuration(ctx context.Context, tool string, seconds float64)
	SetInFlight(ctx context.Context, delta int64)
}

// noopMetrics satisfies [Metrics] with no observable effect.
type noopMetrics struct{}

func (noopMetrics) RecordToolCall(context.Context, string, string)    {}
func (noopMetrics) RecordToolDuration(context.Context, string, float64) {}
func (noopMetrics) SetInFlight(context.Context, int64)                {}

// Executor races a registered tool's handler against a per-call deadline
// under a counting semaphore, per spec §4.4.
type Executor struct {
	registry *registry.Registry
	limits   func() Limits
	sem      *semaphore.Weighted
	curLimit int64
	metrics  Metrics
}

// New constructs an Executor bound to reg. limits is called once per
// [Executor.Execute] to read the live concurrency/timeout knobs; the
// semaphore is resized lazily whenever the configured limit changes so a
// hot-reloaded `maxConcurrentRequests` takes effect without restarting the
// server.
func New(reg *registry.Registry, limits func() Limits, metrics Metrics) *Executor {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	l := limits()
	if l.MaxConcurrentRequests <= 0 {
		l.MaxConcurrentRequests = 1
	}
	return &Executor{
		registry: reg,
		limits:   limits,
		sem:      semaphore.NewWeighted(int64(l.MaxConcurrentRequests)),
		curLimit: int64(l.MaxConcurrentRequests),
		metrics:  metrics,
	}
}

// resize replaces the semaphore if the configured limit changed. In-flight
// permits held against the old semaphore are unaffected; this only changes
// the capacity new admissions are checked against, matching the spec's
// "known, documented trade-off" that in-flight count may briefly exceed
// the new limit during a transition.
func (e *Executor) resize(limit int64) {
	if limit <= 0 {
		limit = 1
	}
	if limit == e.curLimit {
		return
	}
	e.sem = semaphore.NewWeighted(limit)
	e.curLimit = limit
}

// Execute runs the named tool against rawArgs, following the five steps of
// spec §4.4 in order: lookup, non-blocking admission, schema validation,
// deadline race, and permit release on every path.
func (e *Executor) Execute(ctx context.Context, name string, rawArgs json.RawMessage) (*mcp.CallToolResult, error) {
	entry, ok := e.registry.Lookup(name)
	if !ok {
		e.metrics.RecordToolCall(ctx, name, "not_found")
		return nil, mcperr.Newf(mcperr.ToolNotFound, "executor: tool %q is not registered", name).
			WithContext("tool", name)
	}
	if !entry.Enabled {
		e.metrics.RecordToolCall(ctx, name, "disabled")
		return nil, mcperr.Newf(mcperr.ToolDisabled, "executor: tool %q is disabled", name).
			WithContext("tool", name)
	}

	limits := e.limits()
	e.resize(int64(limits.MaxConcurrentRequests))
	sem := e.sem

	if !sem.TryAcquire(1) {
		e.metrics.RecordToolCall(ctx, name, "rejected")
		return nil, mcperr.Newf(mcperr.ConcurrencyLimitExceeded, "executor: at capacity (%d concurrent requests)", limits.MaxConcurrentRequests).
			WithContext("tool", name).
			WithContext("limit", limits.MaxConcurrentRequests)
	}

	args, violations := decodeAndValidate(entry.Fields, rawArgs)
	if len(violations) > 0 {
		sem.Release(1)
		e.metrics.RecordToolCall(ctx, name, "invalid_arguments")
		return nil, mcperr.Newf(mcperr.InvalidArguments, "executor: invalid arguments for tool %q: %s", name, strings.Join(violations, "; ")).
			WithContext("tool", name).
			WithContext("violations", violations)
	}

	timeout := limits.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.metrics.SetInFlight(ctx, 1)
	start := time.Now()
	result, err := e.race(callCtx, name, entry.Handler, args)
	e.metrics.RecordToolDuration(ctx, name, time.Since(start).Seconds())
	e.metrics.SetInFlight(ctx, -1)
	sem.Release(1)

	if err != nil {
		status := "error"
		if mcperr.KindOf(err) == mcperr.Timeout {
			status = "timeout"
		}
		e.metrics.RecordToolCall(ctx, name, status)
		return nil, err
	}
	e.metrics.RecordToolCall(ctx, name, "ok")
	return result, nil
}

// race awaits the first of the handler's completion or callCtx's deadline,
// per spec §4.4 step 4. On timeout the handler's eventual result is
// discarded by the executor (spec §4.4 "Cancellation semantics") — the
// goroutine running it may continue after Execute returns, but its result
// channel is never read again, so it cannot produce a second response.
func (e *Executor) race(callCtx context.Context, name string, handler registry.Handler, args map[string]any) (*mcp.CallToolResult, error) {
	done := make(chan struct {
		result *mcp.CallToolResult
		err    error
	}, 1)

	go func() {
		result, err := handler(callCtx, args)
		done <- struct {
			result *mcp.CallToolResult
			err    error
		}{result, err}
	}()

	select {
	case <-callCtx.Done():
		return nil, mcperr.Newf(mcperr.Timeout, "executor: tool %q exceeded its deadline", name).
			WithContext("tool", name)
	case r := <-done:
		if r.err != nil {
			if e, ok := mcperr.As(r.err); ok {
				return nil, e
			}
			return nil, mcperr.Wrap(mcperr.InternalError, "executor: handler failed", r.err).WithContext("tool", name)
		}
		return r.result, nil
	}
}

// decodeAndValidate decodes rawArgs into a generic map and validates it
// against fields (spec §4.4 step 3). Malformed JSON is reported as a
// single violation rather than a separate error kind, since it is still,
// semantically, invalid arguments.
func decodeAndValidate(fields []registry.Field, rawArgs json.RawMessage) (map[string]any, []string) {
	args := map[string]any{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, []string{"arguments: must be a JSON object: " + err.Error()}
		}
	}
	return args, registry.Validate(fields, args)
}
