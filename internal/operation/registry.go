package operation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-queue/internal/task"
)

var validate = validator.New()

// Factory builds an operation from its JSON payload. It returns an error
// when the payload is malformed.
type Factory func(payload json.RawMessage) (task.Operation, error)

// Registry maps operation type names to factories. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// NewDefaultRegistry creates a registry holding the built-in operation
// types. A nil client uses a pooled client from go-cleanhttp.
func NewDefaultRegistry(client *http.Client) *Registry {
	r := NewRegistry()
	r.Register(TypeDelay, NewDelay)
	r.Register(TypeHTTPRequest, HTTPRequestFactory(client))
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Lookup returns the factory registered for name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for name := range r.factories {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Build creates an operation of the named type. Unknown names fail with
// task.ErrUnknownOperationType and bad payloads with task.ErrInvalidRequest.
func (r *Registry) Build(name string, payload json.RawMessage) (task.Operation, error) {
	factory, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", task.ErrUnknownOperationType, name)
	}

	op, err := factory(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", task.ErrInvalidRequest, name, err)
	}
	return op, nil
}

// decodePayload unmarshals and validates a payload. An empty payload
// decodes to the zero value before validation.
func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, v); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
