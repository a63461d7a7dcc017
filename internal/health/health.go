// Package health adapts the teacher's liveness/readiness checker
// abstraction to an in-process server with no HTTP surface (spec
// Non-goal: no network-exposed endpoints). Instead of serving /healthz
// and /readyz, [Handler.Evaluate] is called on demand through
// internal/server's Server.Health; the server does not evaluate it
// before serving `initialize`.
package health

import (
	"context"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named health check, unchanged in shape from the teacher's
// HTTP-serving version.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Result is the outcome of evaluating every registered [Checker].
type Result struct {
	OK     bool
	Checks map[string]error
}

// Handler evaluates a fixed set of checkers, in order, on demand.
type Handler struct {
	checkers []Checker
}

// New creates a Handler over the given checkers.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Evaluate runs every checker sequentially against a [checkTimeout]-bounded
// child of ctx and reports the aggregate result.
func (h *Handler) Evaluate(ctx context.Context) Result {
	checks := make(map[string]error, len(h.checkers))
	ok := true

	for _, c := range h.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(checkCtx)
		cancel()

		checks[c.Name] = err
		if err != nil {
			ok = false
		}
	}

	return Result{OK: ok, Checks: checks}
}
