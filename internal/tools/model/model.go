// Package model implements [mcp.ModelPort]: the current model descriptor
// and a process-lifetime aggregation of recorded token usage.
//
// Grounded on the teacher's internal/mcp/mcphost/metrics.go rollingWindow:
// the same mutex-guarded accumulator shape, repurposed from a fixed-size
// ring buffer of latency percentiles into an unbounded running total and
// per-model breakdown, since spec §6 asks for lifetime sums rather than a
// recent-window percentile view.
package model

import (
	"context"
	"sync"
	"time"

	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
)

// Port is the shipped ModelPort implementation, aggregating usage in
// memory for the life of the process.
type Port struct {
	mu      sync.Mutex
	current mcp.ModelDescriptor
	rates   map[string]float64

	sessionCount int64
	totalInput   int64
	totalOutput  int64
	totalCost    float64
	totalDur     time.Duration
	byModel      map[string]*accumulator
}

type accumulator struct {
	calls    int64
	input    int64
	output   int64
	cost     float64
	duration time.Duration
}

// New constructs a Port reporting current as the active model descriptor.
func New(current mcp.ModelDescriptor) *Port {
	p := &Port{
		current: current,
		rates:   make(map[string]float64),
		byModel: make(map[string]*accumulator),
	}
	if current.Name != "" {
		p.rates[current.Name] = current.CostPerToken
	}
	return p
}

var _ mcp.ModelPort = (*Port)(nil)

// Current implements [mcp.ModelPort].
func (p *Port) Current(ctx context.Context) (mcp.ModelDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

// SetCurrent updates the descriptor returned by Current. Not part of
// [mcp.ModelPort], and no built-in tool calls it.
func (p *Port) SetCurrent(desc mcp.ModelDescriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = desc
	if desc.Name != "" {
		p.rates[desc.Name] = desc.CostPerToken
	}
}

// RecordUsage implements [mcp.ModelPort], folding rec into the running
// totals and the per-model breakdown.
func (p *Port) RecordUsage(ctx context.Context, rec mcp.UsageRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cost := float64(rec.InputToks+rec.OutputToks) * p.rateFor(rec.Model, rec.CostPerToken)

	p.sessionCount++
	p.totalInput += rec.InputToks
	p.totalOutput += rec.OutputToks
	p.totalCost += cost
	p.totalDur += rec.Duration

	acc, ok := p.byModel[rec.Model]
	if !ok {
		acc = &accumulator{}
		p.byModel[rec.Model] = acc
	}
	acc.calls++
	acc.input += rec.InputToks
	acc.output += rec.OutputToks
	acc.cost += cost
	acc.duration += rec.Duration
	return nil
}

// rateFor returns the per-token cost to apply to a usage record for
// modelName, per spec §6 ("estimated cost per recorded model's own rate").
// An explicit, nonzero rate both prices this call and is remembered for
// later calls naming the same model that omit one; otherwise the model's
// last-known rate is used, defaulting to 0 for a model never priced.
func (p *Port) rateFor(modelName string, explicit float64) float64 {
	if explicit != 0 {
		p.rates[modelName] = explicit
		return explicit
	}
	return p.rates[modelName]
}

// Stats implements [mcp.ModelPort].
func (p *Port) Stats(ctx context.Context) (mcp.UsageStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := mcp.UsageStats{
		SessionCount:    p.sessionCount,
		TotalInputToks:  p.totalInput,
		TotalOutputToks: p.totalOutput,
		EstimatedCost:   p.totalCost,
		ByModel:         make(map[string]mcp.ModelUsage, len(p.byModel)),
	}
	if p.sessionCount > 0 {
		stats.AverageDuration = p.totalDur / time.Duration(p.sessionCount)
	}
	for name, acc := range p.byModel {
		usage := mcp.ModelUsage{
			Calls:         acc.calls,
			InputToks:     acc.input,
			OutputToks:    acc.output,
			EstimatedCost: acc.cost,
		}
		if acc.calls > 0 {
			usage.AverageDuration = acc.duration / time.Duration(acc.calls)
		}
		stats.ByModel[name] = usage
	}
	return stats, nil
}
