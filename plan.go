package hoplite

import (
	"fmt"
	"strings"
)

// Reserved invocation parameter names. The executor injects these into a
// tool's params only when the tool declares the matching capability, and
// never overwrites a value the hop set explicitly.
const (
	ParamSession      = "session"
	ParamDependencies = "dependencies"
	ParamState        = "state"
)

// Needs declares which reserved parameters a tool wants injected at
// invocation time. Tools that leave a field false never see that parameter.
type Needs struct {
	Session      bool
	Dependencies bool
	State        bool
}

// Hop is a single named tool invocation within a multi-hop plan. Hops are
// immutable once handed to NewPlan.
type Hop struct {
	Name      string
	Tool      string
	Params    map[string]any
	DependsOn []string
}

// Plan is a validated, topologically ordered set of hops. The order is
// computed once at construction and never changes.
type Plan struct {
	hops    []Hop
	ordered []Hop
}

// NewPlan validates the hop set and computes a dependency-respecting
// execution order. It fails with a validation error on an empty set,
// duplicate hop names or unknown dependency references, and with a cycle
// error when no valid order exists.
func NewPlan(hops []Hop) (*Plan, error) {
	if len(hops) == 0 {
		return nil, NewValidationError("planning", "plan requires at least one hop", nil)
	}

	names := make(map[string]struct{}, len(hops))
	for _, hop := range hops {
		if _, exists := names[hop.Name]; exists {
			return nil, NewValidationError("planning", fmt.Sprintf("duplicate hop name '%s'", hop.Name), nil)
		}
		names[hop.Name] = struct{}{}
	}

	for _, hop := range hops {
		var missing []string
		for _, dep := range hop.DependsOn {
			if _, exists := names[dep]; !exists {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			return nil, NewValidationError("planning",
				fmt.Sprintf("hop '%s' depends on unknown hops: %s", hop.Name, strings.Join(missing, ", ")), nil)
		}
	}

	ordered, err := topologicalSort(hops)
	if err != nil {
		return nil, err
	}

	return &Plan{hops: hops, ordered: ordered}, nil
}

// topologicalSort repeatedly scans the pending hops and admits any hop whose
// dependencies are all resolved. Hops eligible in the same round keep their
// declaration order. A round without progress means a cycle.
func topologicalSort(hops []Hop) ([]Hop, error) {
	pending := make([]Hop, len(hops))
	copy(pending, hops)

	resolved := make(map[string]struct{}, len(hops))
	order := make([]Hop, 0, len(hops))

	for len(pending) > 0 {
		progress := false
		remaining := pending[:0]
		for _, hop := range pending {
			if depsResolved(hop, resolved) {
				order = append(order, hop)
				resolved[hop.Name] = struct{}{}
				progress = true
			} else {
				remaining = append(remaining, hop)
			}
		}
		pending = remaining
		if !progress {
			return nil, NewCycleError("planning", "cycle detected in hop dependencies")
		}
	}

	return order, nil
}

func depsResolved(hop Hop, resolved map[string]struct{}) bool {
	for _, dep := range hop.DependsOn {
		if _, ok := resolved[dep]; !ok {
			return false
		}
	}
	return true
}

// Hops returns the hops in execution order. Callers must not mutate the
// returned slice.
func (p *Plan) Hops() []Hop {
	out := make([]Hop, len(p.ordered))
	copy(out, p.ordered)
	return out
}

// Len returns the number of hops in the plan.
func (p *Plan) Len() int { return len(p.hops) }

// HopMetadata records bookkeeping for one executed hop.
type HopMetadata struct {
	Dependencies []string `json:"dependencies"`
	Tool         string   `json:"tool"`
}

// HopResult holds the output of one executed hop. It lives only for the
// duration of the orchestration run that produced it.
type HopResult struct {
	Hop      Hop
	Output   any
	Metadata HopMetadata
}

// TraceEntry is one record in the ordered execution audit trail.
type TraceEntry struct {
	Hop       string   `json:"hop"`
	Tool      string   `json:"tool"`
	DependsOn []string `json:"depends_on"`
}

// OrchestrationResult aggregates the outcome of one plan execution.
type OrchestrationResult struct {
	Results map[string]*HopResult
	Trace   []TraceEntry
}
