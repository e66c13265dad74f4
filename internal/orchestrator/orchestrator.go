// Package orchestrator executes validated multi-hop plans against a tool
// registry, sequentially and in dependency order.
package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/hoplite-search/hoplite"
	"github.com/hoplite-search/hoplite/internal/eventbus"
)

// Orchestrator runs a plan's hops in topological order, wiring dependency
// outputs and shared state into each invocation.
//
// Execution is strictly sequential: hop N+1 never starts before hop N's tool
// has returned. The dominant latency is network I/O per hop and the plans
// are shallow, so dependency-parallelism is not worth its complexity here.
type Orchestrator struct {
	registry map[string]hoplite.Tool
	logger   *zap.Logger
	bus      eventbus.Bus
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the execution logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventBus attaches an event bus receiving hop lifecycle events.
func WithEventBus(bus eventbus.Bus) Option {
	return func(o *Orchestrator) {
		o.bus = bus
	}
}

// New creates an orchestrator over the given tool registry.
func New(registry map[string]hoplite.Tool, options ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		option(o)
	}
	return o
}

// Execute runs the plan. session is forwarded opaquely to tools that declare
// it; state is a single mutable mapping shared by all hops in this run (an
// empty one is created when nil). A tool error propagates unmodified and
// aborts the remaining hops; results and trace accumulated so far are
// discarded, leaving state as the only record of partial progress.
func (o *Orchestrator) Execute(ctx context.Context, plan *hoplite.Plan, session any, state map[string]any) (*hoplite.OrchestrationResult, error) {
	if state == nil {
		state = make(map[string]any)
	}

	results := make(map[string]*hoplite.HopResult, plan.Len())
	trace := make([]hoplite.TraceEntry, 0, plan.Len())

	o.publish(ctx, eventbus.EventPlanStarted, map[string]any{"hops": plan.Len()})

	for _, hop := range plan.Hops() {
		tool, exists := o.registry[hop.Tool]
		if !exists {
			err := hoplite.NewToolNotFoundError("execution", hop.Tool)
			o.publish(ctx, eventbus.EventPlanFailed, map[string]any{"hop": hop.Name, "error": err.Error()})
			return nil, err
		}

		// Guaranteed present: topological order means every dependency
		// already produced its result.
		dependencyOutputs := make(map[string]any, len(hop.DependsOn))
		for _, dep := range hop.DependsOn {
			dependencyOutputs[dep] = results[dep].Output
		}

		params, err := o.buildInvocationParams(tool, hop, session, dependencyOutputs, state)
		if err != nil {
			return nil, err
		}

		o.logger.Debug("executing hop",
			zap.String("hop", hop.Name),
			zap.String("tool", hop.Tool),
			zap.Strings("depends_on", hop.DependsOn))
		o.publish(ctx, eventbus.EventHopStarted, map[string]any{"hop": hop.Name, "tool": hop.Tool})

		output, err := tool.Execute(ctx, params)
		if err != nil {
			o.logger.Error("hop failed",
				zap.String("hop", hop.Name),
				zap.String("tool", hop.Tool),
				zap.Error(err))
			o.publish(ctx, eventbus.EventHopFailed, map[string]any{"hop": hop.Name, "error": err.Error()})
			return nil, err
		}

		results[hop.Name] = &hoplite.HopResult{
			Hop:    hop,
			Output: output,
			Metadata: hoplite.HopMetadata{
				Dependencies: append([]string(nil), hop.DependsOn...),
				Tool:         hop.Tool,
			},
		}
		trace = append(trace, hoplite.TraceEntry{
			Hop:       hop.Name,
			Tool:      hop.Tool,
			DependsOn: append([]string(nil), hop.DependsOn...),
		})
		o.publish(ctx, eventbus.EventHopCompleted, map[string]any{"hop": hop.Name, "tool": hop.Tool})
	}

	o.publish(ctx, eventbus.EventPlanCompleted, map[string]any{"hops": plan.Len()})

	return &hoplite.OrchestrationResult{Results: results, Trace: trace}, nil
}

// buildInvocationParams merges the hop's declared params (expression strings
// resolved against dependency outputs) with the reserved params the tool
// declared a need for. Declared params always win over injected ones.
func (o *Orchestrator) buildInvocationParams(tool hoplite.Tool, hop hoplite.Hop, session any, dependencyOutputs map[string]any, state map[string]any) (map[string]any, error) {
	params := make(map[string]any, len(hop.Params)+3)
	for name, value := range hop.Params {
		resolved, err := resolveParamValue(value, dependencyOutputs)
		if err != nil {
			return nil, hoplite.NewInternalError("execution",
				"failed to resolve parameter '"+name+"' for hop '"+hop.Name+"'", err)
		}
		params[name] = resolved
	}

	needs := tool.Needs()
	if needs.Session {
		if _, set := params[hoplite.ParamSession]; !set {
			params[hoplite.ParamSession] = session
		}
	}
	if needs.Dependencies {
		if _, set := params[hoplite.ParamDependencies]; !set {
			params[hoplite.ParamDependencies] = dependencyOutputs
		}
	}
	if needs.State {
		if _, set := params[hoplite.ParamState]; !set {
			params[hoplite.ParamState] = state
		}
	}
	return params, nil
}

func (o *Orchestrator) publish(ctx context.Context, eventType eventbus.EventType, metadata map[string]any) {
	if o.bus == nil {
		return
	}
	// Dispatch failures are observability losses, not execution failures.
	_ = o.bus.Publish(ctx, eventbus.NewEvent(eventType, "orchestrator", nil, metadata))
}
