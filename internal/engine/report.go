package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrNodeCompute matches every per-node evaluation failure.
var ErrNodeCompute = errors.New("node compute error")

// NodeComputeError wraps the reason a node could not be evaluated: an input
// or source that failed validation, a compute function that returned an
// error, panicked or timed out, or a result that did not match the output's
// schema. Output is empty when the failure is not tied to one output.
type NodeComputeError struct {
	NodeID string
	Type   string
	Output string
	Err    error
}

func (e *NodeComputeError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("node %s (%s), output %q: %v", e.NodeID, e.Type, e.Output, e.Err)
	}
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.Type, e.Err)
}

func (e *NodeComputeError) Unwrap() []error { return []error{ErrNodeCompute, e.Err} }

// Result is the outcome of one node in a run. A nil Err means the node's
// outputs were updated.
type Result struct {
	Err error
}

// OK reports whether the node evaluated successfully.
func (r Result) OK() bool { return r.Err == nil }

// Report describes one evaluation run.
type Report struct {
	RunID    string
	Revision uint64
	Order    []string
	Results  map[string]Result
	Duration time.Duration
}

// Updated returns the ids of nodes whose outputs were updated, in evaluation order.
func (r *Report) Updated() []string {
	return r.filter(true)
}

// Failed returns the ids of nodes that failed, in evaluation order.
func (r *Report) Failed() []string {
	return r.filter(false)
}

// Err joins every node error of the run, or returns nil when all succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, id := range r.Order {
		if err := r.Results[id].Err; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Report) filter(ok bool) []string {
	ids := make([]string, 0, len(r.Order))
	for _, id := range r.Order {
		res, visited := r.Results[id]
		if visited && res.OK() == ok {
			ids = append(ids, id)
		}
	}
	return ids
}
