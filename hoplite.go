// Package hoplite provides a cache-backed web search runtime with multi-hop
// research orchestration.
package hoplite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hoplite-search/hoplite/internal/eventbus"
)

// Runtime is the main entry point. It composes the cached searcher, the hop
// tool registry and the plan executor behind one surface.
type Runtime struct {
	searcher Searcher
	executor Executor
	eventBus eventbus.Bus
	logger   *zap.Logger

	tools map[string]Tool

	config Config

	asyncExecutions      map[string]*Execution
	asyncExecutionsMutex sync.RWMutex
}

// Config holds the configuration options for the Runtime.
type Config struct {
	// Per-research execution timeout.
	ExecutionTimeout time.Duration

	// Research plan shape
	DetailCount   int
	SummaryLength int

	// Event bus configuration
	EnableEventBus      bool
	EventBusBufferSize  int
	EventBusWorkerCount int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ExecutionTimeout:    time.Minute * 2,
		DetailCount:         3,
		SummaryLength:       500,
		EnableEventBus:      true,
		EventBusBufferSize:  100,
		EventBusWorkerCount: 5,
	}
}

// ExecutionStatus reflects the lifecycle of an asynchronous research run.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Execution tracks one asynchronous research run. State is populated when
// the run completes or fails, never while it is still running.
type Execution struct {
	ID          string
	Query       string
	Status      ExecutionStatus
	Result      *OrchestrationResult
	State       map[string]any
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time
}

// Option is a function that configures a Runtime instance.
type Option func(*Runtime)

// WithConfig sets the runtime configuration.
func WithConfig(config Config) Option {
	return func(r *Runtime) {
		r.config = config
	}
}

// WithSearcher sets the searcher component.
func WithSearcher(searcher Searcher) Option {
	return func(r *Runtime) {
		r.searcher = searcher
	}
}

// WithExecutor sets the plan executor component.
func WithExecutor(executor Executor) Option {
	return func(r *Runtime) {
		r.executor = executor
	}
}

// WithEventBus sets the event bus component.
func WithEventBus(bus eventbus.Bus) Option {
	return func(r *Runtime) {
		r.eventBus = bus
	}
}

// WithLogger sets the runtime logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTools adds tools to the runtime.
func WithTools(tools map[string]Tool) Option {
	return func(r *Runtime) {
		if r.tools == nil {
			r.tools = make(map[string]Tool)
		}

		for name, tool := range tools {
			r.tools[name] = tool
		}
	}
}

// New creates a new Runtime instance with the provided options.
func New(options ...Option) (*Runtime, error) {
	r := &Runtime{
		config:          DefaultConfig(),
		tools:           make(map[string]Tool),
		logger:          zap.NewNop(),
		asyncExecutions: make(map[string]*Execution),
	}

	for _, option := range options {
		option(r)
	}

	if r.searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}

	if r.executor == nil {
		return nil, fmt.Errorf("executor is required")
	}

	if len(r.tools) == 0 {
		return nil, fmt.Errorf("at least one tool is required")
	}

	if r.config.EnableEventBus && r.eventBus == nil {
		r.eventBus = eventbus.NewChannelBus(
			eventbus.WithBufferSize(r.config.EventBusBufferSize),
			eventbus.WithWorkerCount(r.config.EventBusWorkerCount),
		)
		r.logger.Debug("initialized default channel event bus")
	}

	return r, nil
}

// RegisterTool adds a new tool to the runtime.
func (r *Runtime) RegisterTool(name string, tool Tool) error {
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool with name '%s' already exists", name)
	}

	r.tools[name] = tool
	return nil
}

// GetToolByName returns a tool by its name, or an error if not found.
func (r *Runtime) GetToolByName(name string) (Tool, error) {
	if tool, exists := r.tools[name]; exists {
		return tool, nil
	}
	return nil, fmt.Errorf("tool with name '%s' not found", name)
}

// ListTools returns a list of all registered tool names.
func (r *Runtime) ListTools() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// GetToolSchemas returns a map of tool names to their full schemas.
func (r *Runtime) GetToolSchemas() map[string]map[string]any {
	schemas := make(map[string]map[string]any)

	for name, tool := range r.tools {
		schemas[name] = tool.Schema()
	}

	return schemas
}

// Tools returns the registered tool map for executor construction.
func (r *Runtime) Tools() map[string]Tool {
	tools := make(map[string]Tool, len(r.tools))
	for name, tool := range r.tools {
		tools[name] = tool
	}
	return tools
}

// Search runs a single cached search round through the configured searcher.
func (r *Runtime) Search(ctx context.Context, req SearchRequest) (Payload, error) {
	return r.searcher.Search(ctx, req)
}

// NewResearchPlan composes the standard three-hop research plan: search the
// web, fetch details for the top results, summarize the fetched content.
func NewResearchPlan(query string, count, detailCount, summaryLength int) (*Plan, error) {
	if count <= 0 {
		count = 10
	}
	if detailCount <= 0 {
		detailCount = 3
	}
	if summaryLength <= 0 {
		summaryLength = 500
	}

	return NewPlan([]Hop{
		{
			Name: "search",
			Tool: "search",
			Params: map[string]any{
				"query": query,
				"count": count,
			},
		},
		{
			Name:      "details",
			Tool:      "fetch_details",
			Params:    map[string]any{"detail_count": detailCount},
			DependsOn: []string{"search"},
		},
		{
			Name:      "summary",
			Tool:      "summarize",
			Params:    map[string]any{"max_length": summaryLength},
			DependsOn: []string{"details"},
		},
	})
}

// Research runs the standard research plan for the query and returns its
// orchestration result together with the shared state the hops populated.
func (r *Runtime) Research(ctx context.Context, query string) (*OrchestrationResult, map[string]any, error) {
	plan, err := NewResearchPlan(query, 0, r.config.DetailCount, r.config.SummaryLength)
	if err != nil {
		return nil, nil, err
	}

	if r.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.ExecutionTimeout)
		defer cancel()
	}

	state := make(map[string]any)
	result, err := r.executor.Execute(ctx, plan, nil, state)
	if err != nil {
		return nil, state, err
	}
	return result, state, nil
}

// ResearchAsync starts an asynchronous research run and returns a unique
// execution ID usable with GetExecution.
func (r *Runtime) ResearchAsync(ctx context.Context, query string) (string, error) {
	plan, err := NewResearchPlan(query, 0, r.config.DetailCount, r.config.SummaryLength)
	if err != nil {
		return "", err
	}

	executionID := uuid.New().String()
	execution := &Execution{
		ID:        executionID,
		Query:     query,
		Status:    ExecutionRunning,
		StartedAt: time.Now(),
	}

	r.asyncExecutionsMutex.Lock()
	r.asyncExecutions[executionID] = execution
	r.asyncExecutionsMutex.Unlock()

	// The run outlives the caller's context.
	var asyncCtx context.Context
	var cancel context.CancelFunc
	if r.config.ExecutionTimeout > 0 {
		asyncCtx, cancel = context.WithTimeout(context.Background(), r.config.ExecutionTimeout)
	} else {
		asyncCtx, cancel = context.WithCancel(context.Background())
	}

	if r.eventBus != nil {
		_ = r.eventBus.Publish(ctx, eventbus.NewEvent(
			eventbus.EventPlanStarted,
			"Runtime.ResearchAsync",
			nil,
			map[string]any{
				"execution_id": executionID,
				"query":        query,
			},
		))
	}

	go func() {
		defer cancel()

		// Hops write into this map while running; it is attached to the
		// execution only once they are done, so GetExecution never hands
		// out a map another goroutine is still mutating.
		state := make(map[string]any)
		result, err := r.executor.Execute(asyncCtx, plan, nil, state)

		r.asyncExecutionsMutex.Lock()
		execution.Result = result
		execution.State = state
		execution.CompletedAt = time.Now()
		if err != nil {
			execution.Status = ExecutionFailed
			execution.Err = err
		} else {
			execution.Status = ExecutionCompleted
		}
		r.asyncExecutionsMutex.Unlock()

		if r.eventBus != nil {
			eventType := eventbus.EventPlanCompleted
			metadata := map[string]any{
				"execution_id": executionID,
				"duration_ms":  time.Since(execution.StartedAt).Milliseconds(),
			}
			if err != nil {
				eventType = eventbus.EventPlanFailed
				metadata["error"] = err.Error()
			}
			_ = r.eventBus.Publish(context.Background(), eventbus.NewEvent(
				eventType,
				"Runtime.ResearchAsync",
				nil,
				metadata,
			))
		}
	}()

	return executionID, nil
}

// GetExecution returns a snapshot of an asynchronous research run. State is
// nil until the run leaves ExecutionRunning.
func (r *Runtime) GetExecution(executionID string) (Execution, bool) {
	r.asyncExecutionsMutex.RLock()
	defer r.asyncExecutionsMutex.RUnlock()

	execution, exists := r.asyncExecutions[executionID]
	if !exists {
		return Execution{}, false
	}
	return *execution, true
}

// Close shuts the runtime's event bus down.
func (r *Runtime) Close() error {
	if r.eventBus != nil {
		return r.eventBus.Close()
	}
	return nil
}
