package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/store"
	"github.com/zclconf/go-cty/cty"
)

// evalNode computes every output of n. It returns either all of the node's
// new outputs or an error; a failing node never gets a partial update.
func (e *Engine) evalNode(ctx context.Context, snap *store.Snapshot, n *node.Node) (map[string]cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("node", n.ID)

	nt, err := e.reg.Get(n.Type)
	if err != nil {
		return nil, &NodeComputeError{NodeID: n.ID, Type: n.Type, Err: err}
	}

	merged, err := e.gatherInputs(snap, n, nt)
	if err != nil {
		return nil, &NodeComputeError{NodeID: n.ID, Type: n.Type, Err: err}
	}

	outputs := make(map[string]cty.Value, len(nt.Outputs))
	for _, name := range nt.OutputNames() {
		out := nt.Outputs[name]
		raw, err := e.compute(ctx, out.Compute, merged)
		if err != nil {
			return nil, &NodeComputeError{NodeID: n.ID, Type: n.Type, Output: name, Err: err}
		}
		if raw == cty.NilVal {
			return nil, &NodeComputeError{NodeID: n.ID, Type: n.Type, Output: name, Err: errors.New("compute returned no value")}
		}
		v, err := out.Schema.Validate(raw)
		if err != nil {
			return nil, &NodeComputeError{
				NodeID: n.ID,
				Type:   n.Type,
				Output: name,
				Err:    fmt.Errorf("result does not match the output schema: %w", err),
			}
		}
		outputs[name] = v
	}
	logger.Debug("Node evaluated.", "outputs", len(outputs))
	return outputs, nil
}

// gatherInputs builds the merged argument object for a node's compute
// functions. Inputs come from the producing edge's origin, either its output
// cache or, for a source bus, its source values; unconnected inputs get their
// schema default. Source values are merged last and win on a name clash.
func (e *Engine) gatherInputs(snap *store.Snapshot, n *node.Node, nt *registry.NodeType) (registry.Inputs, error) {
	merged := make(registry.Inputs, len(nt.Inputs)+len(nt.Sources))
	var errs []error

	for _, name := range nt.InputNames() {
		schema := nt.Inputs[name]
		raw := cty.NullVal(schema.Type())
		if edge, ok := snap.Feeding(node.Endpoint{NodeID: n.ID, Bus: name}); ok {
			v, err := e.producedValue(snap, edge.From)
			if err != nil {
				errs = append(errs, fmt.Errorf("input %q: %w", name, err))
				continue
			}
			raw = v
		}
		v, err := schema.Validate(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("input %q: %w", name, err))
			continue
		}
		merged[name] = v
	}

	for _, name := range nt.SourceNames() {
		schema := nt.Sources[name]
		raw, ok := n.SourceValues[name]
		if !ok {
			raw = cty.NullVal(schema.Type())
		}
		v, err := schema.Validate(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("source %q: %w", name, err))
			continue
		}
		merged[name] = v
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return merged, nil
}

// producedValue reads the current value of a producer bus.
func (e *Engine) producedValue(snap *store.Snapshot, from node.Endpoint) (cty.Value, error) {
	producer, ok := snap.Node(from.NodeID)
	if !ok {
		return cty.NilVal, fmt.Errorf("producer %q is missing", from.NodeID)
	}
	pt, err := e.reg.Get(producer.Type)
	if err != nil {
		return cty.NilVal, err
	}
	var (
		v     cty.Value
		found bool
	)
	switch pt.Producer(from.Bus) {
	case registry.BusOutput:
		v, found = producer.OutputCache[from.Bus]
	case registry.BusSource:
		v, found = producer.SourceValues[from.Bus]
	}
	if !found || v == cty.NilVal {
		return cty.NilVal, fmt.Errorf("producer %s has no value", from)
	}
	return v, nil
}

// compute invokes fn, turning a panic into an error and, when a node timeout
// is configured, giving up on the call once it expires. A call that is given
// up on keeps running in the background; its result is discarded.
func (e *Engine) compute(ctx context.Context, fn registry.ComputeFunc, in registry.Inputs) (cty.Value, error) {
	if e.nodeTimeout <= 0 {
		return safeCompute(ctx, fn, in)
	}

	ctx, cancel := context.WithTimeout(ctx, e.nodeTimeout)
	defer cancel()

	type result struct {
		v   cty.Value
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := safeCompute(ctx, fn, in)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return cty.NilVal, fmt.Errorf("compute did not finish within %s: %w", e.nodeTimeout, ctx.Err())
	}
}

func safeCompute(ctx context.Context, fn registry.ComputeFunc, in registry.Inputs) (v cty.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("Compute function panicked.", "panic", r, "stack", string(debug.Stack()))
			v, err = cty.NilVal, fmt.Errorf("compute panicked: %v", r)
		}
	}()
	return fn(ctx, in)
}
