package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Inputs is the merged set of values handed to a compute function: every
// declared input and source of the node, already validated.
type Inputs map[string]cty.Value

// Number reads a numeric bus.
func (in Inputs) Number(name string) (float64, error) {
	f, err := value.AsFloat(in[name])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

// String reads a string bus.
func (in Inputs) String(name string) (string, error) {
	s, err := value.AsString(in[name])
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// Table reads a table bus.
func (in Inputs) Table(name string) (*value.Table, error) {
	t, err := value.AsTable(in[name])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// Function reads a function bus.
func (in Inputs) Function(name string) (*value.Function, error) {
	f, err := value.AsFunction(in[name])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

// ComputeFunc derives one output from a node's inputs and sources. It must be
// pure with respect to in; it may block, and should honour ctx when it does.
type ComputeFunc func(ctx context.Context, in Inputs) (cty.Value, error)

// Output is a declared output bus.
type Output struct {
	Schema  value.Schema
	Compute ComputeFunc
}

// BusKind says which family a bus name belongs to.
type BusKind int

const (
	BusNone BusKind = iota
	BusInput
	BusSource
	BusOutput
)

// NodeType is the immutable definition shared by all nodes of one kind.
type NodeType struct {
	Name        string
	Description string
	Inputs      map[string]value.Schema
	Sources     map[string]value.Schema
	Outputs     map[string]Output
}

// IsInput reports whether bus is a declared input.
func (t *NodeType) IsInput(bus string) bool {
	_, ok := t.Inputs[bus]
	return ok
}

// IsSource reports whether bus is a declared source.
func (t *NodeType) IsSource(bus string) bool {
	_, ok := t.Sources[bus]
	return ok
}

// IsOutput reports whether bus is a declared output.
func (t *NodeType) IsOutput(bus string) bool {
	_, ok := t.Outputs[bus]
	return ok
}

// Producer resolves the bus an edge may read from. Outputs take precedence
// over sources of the same name; a source is read as a pass-through.
func (t *NodeType) Producer(bus string) BusKind {
	switch {
	case t.IsOutput(bus):
		return BusOutput
	case t.IsSource(bus):
		return BusSource
	}
	return BusNone
}

// OutputNames returns the output bus names in a stable order.
func (t *NodeType) OutputNames() []string {
	return sortedKeys(t.Outputs)
}

// InputNames returns the input bus names in a stable order.
func (t *NodeType) InputNames() []string {
	return sortedKeys(t.Inputs)
}

// SourceNames returns the source bus names in a stable order.
func (t *NodeType) SourceNames() []string {
	return sortedKeys(t.Sources)
}

// Defaults returns fresh source and output maps holding every slot's default.
func (t *NodeType) Defaults() (sources, outputs map[string]cty.Value) {
	sources = make(map[string]cty.Value, len(t.Sources))
	for name, s := range t.Sources {
		sources[name] = s.Default
	}
	outputs = make(map[string]cty.Value, len(t.Outputs))
	for name, o := range t.Outputs {
		outputs[name] = o.Schema.Default
	}
	return sources, outputs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
