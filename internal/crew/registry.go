package crew

import (
	"fmt"

	"CrewPublisher/internal/ports"
)

// Registry keeps a mapping from tool names to their implementations.
type Registry struct {
	tools map[string]ports.Tool
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]ports.Tool{}}
}

// Register adds or replaces a tool implementation.
func (r *Registry) Register(tool ports.Tool) {
	if r.tools == nil {
		r.tools = map[string]ports.Tool{}
	}
	r.tools[tool.Name()] = tool
}

// Resolve returns a tool by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.Tool, error) {
	if r != nil {
		if tool, ok := r.tools[name]; ok {
			return tool, nil
		}
	}
	return nil, fmt.Errorf("tool %s is not registered", name)
}
