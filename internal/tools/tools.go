// Package tools defines the tools available to the agent and the
// registry that validates and dispatches calls to them.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Handler executes a tool with arguments that already passed schema
// validation. Returning an error is equivalent to returning a failed
// Result carrying the error text.
type Handler func(ctx context.Context, args map[string]any) (Result, error)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     Handler        `json:"-"`

	schema *gojsonschema.Schema
}

// Registry holds available tools. It is populated at startup and
// read-only afterwards.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger.With("component", "tools"),
	}
}

// Register adds a tool to the registry. The parameter schema is
// compiled up front; names must be unique.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", t.Name)
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	if t.Parameters == nil {
		t.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.Parameters))
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", t.Name, err)
	}
	t.schema = schema

	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// MustRegister is Register for startup wiring where a bad definition is
// a programming error.
func (r *Registry) MustRegister(t *Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name, or nil when it is not registered.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string{}, r.order...)
}

// List returns all tools as LLM function declarations, in registration
// order.
func (r *Registry) List() []map[string]any {
	result := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Invoke validates args against the named tool's schema and runs its
// handler. The returned Result is always usable for narration. The
// error is non-nil only for dispatch problems (*ErrToolUnavailable or
// *ValidationError), in which case the handler was not called.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (Result, error) {
	t := r.tools[name]
	if t == nil {
		err := &ErrToolUnavailable{ToolName: name}
		r.logger.Warn("unknown tool requested", "tool", name)
		return Failure("A ação %q não está disponível.", name), err
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := t.validate(args); err != nil {
		r.logger.Warn("tool arguments rejected", "tool", name, "error", err)
		return Failure("Não consegui entender os dados informados para %s.", name), err
	}

	start := time.Now()
	res := r.run(ctx, t, args)
	r.logger.Debug("tool executed",
		"tool", name,
		"success", res.Success,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

func (r *Registry) run(ctx context.Context, t *Tool, args map[string]any) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool handler panicked",
				"tool", t.Name,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			res = Failure("Erro inesperado ao executar %s.", t.Name)
		}
	}()

	out, err := t.Handler(ctx, args)
	if err != nil {
		r.logger.Warn("tool handler failed", "tool", t.Name, "error", err)
		return Result{Success: false, Message: err.Error()}
	}
	return out
}

func (t *Tool) validate(args map[string]any) error {
	result, err := t.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return &ValidationError{ToolName: t.Name, Problems: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &ValidationError{ToolName: t.Name, Problems: problems}
}
