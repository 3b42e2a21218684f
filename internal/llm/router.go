package llm

import (
	"context"
	"errors"
	"fmt"
)

// Router sends each request to the provider its model is routed to.
// Models without a route go to the default provider, so a bare Ollama
// setup needs no routes at all.
type Router struct {
	providers map[string]Client
	order     []string
	routes    map[string]string // model -> provider
	def       string
}

// NewRouter creates a router whose default provider is client, known
// as name.
func NewRouter(name string, client Client) *Router {
	r := &Router{
		providers: make(map[string]Client),
		routes:    make(map[string]string),
		def:       name,
	}
	r.AddProvider(name, client)
	return r
}

// AddProvider registers client under name, replacing any previous one.
func (r *Router) AddProvider(name string, client Client) {
	if _, ok := r.providers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.providers[name] = client
}

// Route sends model to provider. The provider must already be
// registered.
func (r *Router) Route(model, provider string) error {
	if _, ok := r.providers[provider]; !ok {
		return fmt.Errorf("model %q: provider %q not configured", model, provider)
	}
	r.routes[model] = provider
	return nil
}

// Provider returns the provider name that serves model.
func (r *Router) Provider(model string) string {
	if p, ok := r.routes[model]; ok {
		return p
	}
	return r.def
}

// Chat forwards the request to the provider serving model.
func (r *Router) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, opts Options) (*ChatResponse, error) {
	name := r.Provider(model)
	client := r.providers[name]
	if client == nil {
		return nil, fmt.Errorf("no provider configured for model %q", model)
	}
	resp, err := client.Chat(ctx, model, messages, tools, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return resp, nil
}

// Ping checks every registered provider and joins their failures.
func (r *Router) Ping(ctx context.Context) error {
	var errs []error
	for _, name := range r.order {
		client := r.providers[name]
		if client == nil {
			errs = append(errs, fmt.Errorf("%s: not configured", name))
			continue
		}
		if err := client.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
