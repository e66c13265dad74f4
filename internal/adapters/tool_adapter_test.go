package adapters

import (
	"context"
	"fmt"
	"testing"

	"github.com/hoplite-search/hoplite"
)

func TestFuncToolAdapter_Execute(t *testing.T) {
	adapter := NewFuncToolAdapter("echo", func(ctx context.Context, params map[string]any) (any, error) {
		return params["value"], nil
	})

	got, err := adapter.Execute(context.Background(), map[string]any{"value": "hello"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("expected 'hello', got %v", got)
	}
}

func TestFuncToolAdapter_NilParams(t *testing.T) {
	adapter := NewFuncToolAdapter("noop", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, nil
	})

	if _, err := adapter.Execute(context.Background(), nil); err == nil {
		t.Error("expected default validator to reject nil params")
	}
}

func TestFuncToolAdapter_CustomValidator(t *testing.T) {
	adapter := NewFuncToolAdapter("strict",
		func(ctx context.Context, params map[string]any) (any, error) {
			return "ok", nil
		},
		WithValidator(func(params map[string]any) error {
			if _, ok := params["required"]; !ok {
				return fmt.Errorf("missing required param")
			}
			return nil
		}),
	)

	if _, err := adapter.Execute(context.Background(), map[string]any{}); err == nil {
		t.Error("expected validator rejection")
	}
	if _, err := adapter.Execute(context.Background(), map[string]any{"required": 1}); err != nil {
		t.Errorf("expected valid params to pass, got %v", err)
	}
}

func TestFuncToolAdapter_Schema(t *testing.T) {
	adapter := NewFuncToolAdapter("documented",
		func(ctx context.Context, params map[string]any) (any, error) { return nil, nil },
		WithDescription("does something"),
		WithParameters(map[string]string{"query": "the query"}),
		WithReturns("a result"),
	)

	schema := adapter.Schema()
	if schema["name"] != "documented" {
		t.Errorf("expected name in schema, got %v", schema["name"])
	}
	if schema["description"] != "does something" {
		t.Errorf("expected description in schema, got %v", schema["description"])
	}
	if schema["returns"] != "a result" {
		t.Errorf("expected returns in schema, got %v", schema["returns"])
	}
}

func TestFuncToolAdapter_Needs(t *testing.T) {
	plain := NewFuncToolAdapter("plain", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, nil
	})
	if plain.Needs() != (hoplite.Needs{}) {
		t.Errorf("expected no declared needs by default, got %+v", plain.Needs())
	}

	declared := NewFuncToolAdapter("declared",
		func(ctx context.Context, params map[string]any) (any, error) { return nil, nil },
		NeedsDependencies(),
		NeedsState(),
	)
	want := hoplite.Needs{Dependencies: true, State: true}
	if declared.Needs() != want {
		t.Errorf("expected %+v, got %+v", want, declared.Needs())
	}
}
