package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/hoplite-search/hoplite"
)

// fakeTool records its invocations and returns a canned output or error.
type fakeTool struct {
	name   string
	needs  hoplite.Needs
	output any
	err    error
	calls  []map[string]any
}

func (f *fakeTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func (f *fakeTool) Schema() map[string]any { return map[string]any{"name": f.name} }

func (f *fakeTool) Validate(params map[string]any) error { return nil }

func (f *fakeTool) Name() string { return f.name }

func (f *fakeTool) Needs() hoplite.Needs { return f.needs }

func mustPlan(t *testing.T, hops []hoplite.Hop) *hoplite.Plan {
	t.Helper()
	plan, err := hoplite.NewPlan(hops)
	if err != nil {
		t.Fatalf("NewPlan failed: %v", err)
	}
	return plan
}

func TestOrchestrator_DependencyWiring(t *testing.T) {
	search := &fakeTool{name: "search", output: map[string]any{"total_results": 7.0}}
	details := &fakeTool{
		name:   "details",
		needs:  hoplite.Needs{Dependencies: true},
		output: "done",
	}
	unrelated := &fakeTool{name: "unrelated", output: "x"}

	orch := New(map[string]hoplite.Tool{
		"search": search, "details": details, "unrelated": unrelated,
	})

	plan := mustPlan(t, []hoplite.Hop{
		{Name: "search", Tool: "search"},
		{Name: "unrelated", Tool: "unrelated"},
		{Name: "details", Tool: "details", DependsOn: []string{"search"}},
	})

	result, err := orch.Execute(context.Background(), plan, nil, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(details.calls) != 1 {
		t.Fatalf("expected one details invocation, got %d", len(details.calls))
	}
	deps, ok := details.calls[0][hoplite.ParamDependencies].(map[string]any)
	if !ok {
		t.Fatal("expected dependencies injected")
	}
	if _, present := deps["search"]; !present {
		t.Error("expected search output in dependencies")
	}
	if _, present := deps["unrelated"]; present {
		t.Error("dependencies must only contain declared hops")
	}

	if len(result.Results) != 3 {
		t.Errorf("expected 3 hop results, got %d", len(result.Results))
	}
	if result.Results["details"].Output != "done" {
		t.Errorf("unexpected details output: %v", result.Results["details"].Output)
	}
}

func TestOrchestrator_ParamExpressionsResolve(t *testing.T) {
	search := &fakeTool{name: "search", output: map[string]any{"total_results": 7.0}}
	sink := &fakeTool{name: "sink", output: "ok"}

	orch := New(map[string]hoplite.Tool{"search": search, "sink": sink})

	plan := mustPlan(t, []hoplite.Hop{
		{Name: "search", Tool: "search"},
		{
			Name:      "sink",
			Tool:      "sink",
			Params:    map[string]any{"total": "$search.total_results"},
			DependsOn: []string{"search"},
		},
	})

	if _, err := orch.Execute(context.Background(), plan, nil, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if sink.calls[0]["total"] != 7.0 {
		t.Errorf("expected resolved total 7.0, got %v", sink.calls[0]["total"])
	}
}

func TestOrchestrator_DollarInQueryParamReachesTool(t *testing.T) {
	search := &fakeTool{name: "search", output: map[string]any{"total_results": 0.0}}
	orch := New(map[string]hoplite.Tool{"search": search})

	query := "what is $100 in euros"
	plan := mustPlan(t, []hoplite.Hop{
		{Name: "search", Tool: "search", Params: map[string]any{"query": query}},
	})

	if _, err := orch.Execute(context.Background(), plan, nil, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(search.calls) != 1 {
		t.Fatalf("expected one search invocation, got %d", len(search.calls))
	}
	if search.calls[0]["query"] != query {
		t.Errorf("expected query %q passed through unchanged, got %v", query, search.calls[0]["query"])
	}
}

func TestOrchestrator_TraceFollowsExecutionOrder(t *testing.T) {
	tools := make(map[string]hoplite.Tool)
	for _, name := range []string{"a", "b", "c", "d"} {
		tools[name] = &fakeTool{name: name, output: name}
	}
	orch := New(tools)

	plan := mustPlan(t, []hoplite.Hop{
		{Name: "d", Tool: "d", DependsOn: []string{"b", "c"}},
		{Name: "b", Tool: "b", DependsOn: []string{"a"}},
		{Name: "c", Tool: "c", DependsOn: []string{"a"}},
		{Name: "a", Tool: "a"},
	})

	result, err := orch.Execute(context.Background(), plan, nil, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := []string{"a", "b", "c", "d"}
	if len(result.Trace) != len(want) {
		t.Fatalf("expected %d trace entries, got %d", len(want), len(result.Trace))
	}
	for i, name := range want {
		if result.Trace[i].Hop != name {
			t.Errorf("trace[%d] = %q, want %q", i, result.Trace[i].Hop, name)
		}
	}
	if result.Trace[3].Tool != "d" {
		t.Errorf("trace entry carries tool name, got %q", result.Trace[3].Tool)
	}
}

func TestOrchestrator_ToolErrorPropagatesUnmodified(t *testing.T) {
	sentinel := errors.New("upstream rate limited")
	failing := &fakeTool{name: "failing", err: sentinel}
	after := &fakeTool{name: "after", output: "never"}

	orch := New(map[string]hoplite.Tool{"failing": failing, "after": after})

	plan := mustPlan(t, []hoplite.Hop{
		{Name: "failing", Tool: "failing"},
		{Name: "after", Tool: "after", DependsOn: []string{"failing"}},
	})

	_, err := orch.Execute(context.Background(), plan, nil, nil)
	if err != sentinel {
		t.Errorf("expected the tool's error unchanged, got %v", err)
	}
	if len(after.calls) != 0 {
		t.Error("expected no execution after a failed hop")
	}
}

func TestOrchestrator_UnknownTool(t *testing.T) {
	orch := New(map[string]hoplite.Tool{})

	plan := mustPlan(t, []hoplite.Hop{{Name: "a", Tool: "ghost"}})

	_, err := orch.Execute(context.Background(), plan, nil, nil)
	if err == nil {
		t.Fatal("expected error for unregistered tool")
	}
	hopliteErr, ok := err.(*hoplite.HopliteError)
	if !ok || hopliteErr.Code != hoplite.ErrCodeToolNotFound {
		t.Errorf("expected tool-not-found error, got %v", err)
	}
}

func TestOrchestrator_InjectionRespectsExplicitParams(t *testing.T) {
	tool := &fakeTool{
		name:   "tool",
		needs:  hoplite.Needs{Session: true, State: true},
		output: "ok",
	}
	orch := New(map[string]hoplite.Tool{"tool": tool})

	plan := mustPlan(t, []hoplite.Hop{
		{
			Name:   "hop",
			Tool:   "tool",
			Params: map[string]any{hoplite.ParamSession: "explicit"},
		},
	})

	state := map[string]any{"seed": 1}
	if _, err := orch.Execute(context.Background(), plan, "injected-session", state); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	params := tool.calls[0]
	if params[hoplite.ParamSession] != "explicit" {
		t.Errorf("explicit param must win over injection, got %v", params[hoplite.ParamSession])
	}
	if injected, ok := params[hoplite.ParamState].(map[string]any); !ok || injected["seed"] != 1 {
		t.Errorf("expected shared state injected, got %v", params[hoplite.ParamState])
	}
}

func TestOrchestrator_UndeclaredCapabilitiesNotInjected(t *testing.T) {
	tool := &fakeTool{name: "tool", output: "ok"}
	orch := New(map[string]hoplite.Tool{"tool": tool})

	plan := mustPlan(t, []hoplite.Hop{{Name: "hop", Tool: "tool"}})

	if _, err := orch.Execute(context.Background(), plan, "session", map[string]any{}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	params := tool.calls[0]
	for _, reserved := range []string{hoplite.ParamSession, hoplite.ParamDependencies, hoplite.ParamState} {
		if _, present := params[reserved]; present {
			t.Errorf("reserved param %q injected without a declared need", reserved)
		}
	}
}

func TestOrchestrator_StateSharedAcrossHops(t *testing.T) {
	writer := &writerTool{fakeTool{name: "writer", needs: hoplite.Needs{State: true}, output: "w"}}
	reader := &fakeTool{name: "reader", needs: hoplite.Needs{State: true}, output: "r"}

	orch := New(map[string]hoplite.Tool{"writer": writer, "reader": reader})

	plan := mustPlan(t, []hoplite.Hop{
		{Name: "writer", Tool: "writer"},
		{Name: "reader", Tool: "reader", DependsOn: []string{"writer"}},
	})

	if _, err := orch.Execute(context.Background(), plan, nil, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	state, ok := reader.calls[0][hoplite.ParamState].(map[string]any)
	if !ok {
		t.Fatal("expected state injected into reader")
	}
	if state["written"] != "value" {
		t.Errorf("expected writer's state visible to reader, got %v", state["written"])
	}
}

// writerTool mutates the injected state before delegating to fakeTool.
type writerTool struct {
	fakeTool
}

func (w *writerTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	if state, ok := params[hoplite.ParamState].(map[string]any); ok {
		state["written"] = "value"
	}
	return w.fakeTool.Execute(ctx, params)
}
