package adapters

import (
	"context"
	"fmt"

	"github.com/hoplite-search/hoplite"
)

// FuncToolAdapter adapts a plain Go function to the hoplite.Tool interface.
type FuncToolAdapter struct {
	toolFunc    func(ctx context.Context, params map[string]any) (any, error)
	schema      map[string]any
	name        string
	validator   func(map[string]any) error
	description string
	needs       hoplite.Needs
}

// ToolOption represents an option for configuring a FuncToolAdapter.
type ToolOption func(*FuncToolAdapter)

// WithValidator sets a custom validator function for the tool.
func WithValidator(validator func(map[string]any) error) ToolOption {
	return func(adapter *FuncToolAdapter) {
		adapter.validator = validator
	}
}

// WithDescription sets a detailed description for the tool.
func WithDescription(description string) ToolOption {
	return func(adapter *FuncToolAdapter) {
		adapter.description = description
		if adapter.schema != nil {
			adapter.schema["description"] = description
		}
	}
}

// WithParameters sets the parameters description in the schema.
func WithParameters(parameters map[string]string) ToolOption {
	return func(adapter *FuncToolAdapter) {
		if adapter.schema != nil {
			adapter.schema["parameters"] = parameters
		}
	}
}

// WithReturns sets the return value description in the schema.
func WithReturns(returns string) ToolOption {
	return func(adapter *FuncToolAdapter) {
		if adapter.schema != nil {
			adapter.schema["returns"] = returns
		}
	}
}

// NeedsSession declares that the tool wants the runtime session injected
// under the reserved "session" parameter.
func NeedsSession() ToolOption {
	return func(adapter *FuncToolAdapter) {
		adapter.needs.Session = true
	}
}

// NeedsDependencies declares that the tool wants its dependency hop outputs
// injected under the reserved "dependencies" parameter.
func NeedsDependencies() ToolOption {
	return func(adapter *FuncToolAdapter) {
		adapter.needs.Dependencies = true
	}
}

// NeedsState declares that the tool wants the shared mutable state map
// injected under the reserved "state" parameter.
func NeedsState() ToolOption {
	return func(adapter *FuncToolAdapter) {
		adapter.needs.State = true
	}
}

// NewFuncToolAdapter creates a new adapter for a Go function.
func NewFuncToolAdapter(
	name string,
	toolFunc func(ctx context.Context, params map[string]any) (any, error),
	options ...ToolOption) *FuncToolAdapter {

	schema := map[string]any{
		"name": name,
	}

	adapter := &FuncToolAdapter{
		toolFunc: toolFunc,
		schema:   schema,
		name:     name,
		validator: func(params map[string]any) error {
			if params == nil {
				return fmt.Errorf("params cannot be nil")
			}
			return nil
		},
	}

	for _, option := range options {
		option(adapter)
	}

	return adapter
}

// Execute implements the hoplite.Tool interface.
func (a *FuncToolAdapter) Execute(ctx context.Context, params map[string]any) (any, error) {
	if a.toolFunc == nil {
		return nil, fmt.Errorf("tool function is nil")
	}

	if err := a.Validate(params); err != nil {
		return nil, fmt.Errorf("param validation failed for %s: %w", a.name, err)
	}

	return a.toolFunc(ctx, params)
}

// Schema implements the hoplite.Tool interface.
func (a *FuncToolAdapter) Schema() map[string]any {
	return a.schema
}

// Validate implements the hoplite.Tool interface.
func (a *FuncToolAdapter) Validate(params map[string]any) error {
	if a.validator != nil {
		return a.validator(params)
	}
	return nil
}

// Name implements the hoplite.Tool interface.
func (a *FuncToolAdapter) Name() string {
	return a.name
}

// Needs implements the hoplite.Tool interface.
func (a *FuncToolAdapter) Needs() hoplite.Needs {
	return a.needs
}
