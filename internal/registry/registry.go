package registry

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zclconf/go-cty/cty"
)

// ErrUnknownNodeType is returned when a type name is not in the registry.
var ErrUnknownNodeType = errors.New("unknown node type")

// Module is the interface every node type module implements to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry maps type names to their definitions. It is immutable once New returns.
type Registry struct {
	types  map[string]*NodeType
	order  []string
	sealed bool
}

// New builds a sealed registry from the given modules.
func New(modules ...Module) *Registry {
	r := &Registry{types: make(map[string]*NodeType)}
	for _, m := range modules {
		m.Register(r)
	}
	r.sealed = true
	return r
}

// Register adds a node type. It panics on duplicates or after the registry
// has been sealed: both are programmer errors in module wiring.
func (r *Registry) Register(t *NodeType) {
	if r.sealed {
		panic(fmt.Sprintf("node type '%s' registered after the registry was sealed", t.Name))
	}
	if _, exists := r.types[t.Name]; exists {
		panic(fmt.Sprintf("node type with name '%s' already registered", t.Name))
	}
	slog.Debug("Registering node type.", "name", t.Name)
	r.types[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Get looks up a node type by name.
func (r *Registry) Get(name string) (*NodeType, error) {
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, name)
	}
	return t, nil
}

// InstantiateDefaults returns the default source values and output cache for
// a new node of the named type.
func (r *Registry) InstantiateDefaults(name string) (sources, outputs map[string]cty.Value, err error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, nil, err
	}
	sources, outputs = t.Defaults()
	return sources, outputs, nil
}

// Names returns the registered type names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
