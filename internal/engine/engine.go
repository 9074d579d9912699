package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/events"
	"github.com/specialistvlad/gridflow/internal/metrics"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/resolver"
	"github.com/specialistvlad/gridflow/internal/store"
)

// Engine evaluates the graph held by a store.
type Engine struct {
	mu sync.Mutex

	reg   *registry.Registry
	store *store.Store

	emitter     events.Emitter
	metrics     *metrics.Metrics
	nodeTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmitter sets the receiver of the per-run ValuesUpdated event.
func WithEmitter(e events.Emitter) Option {
	return func(eng *Engine) {
		if e != nil {
			eng.emitter = e
		}
	}
}

// WithNodeTimeout bounds how long a node's compute functions may run. A node
// that exceeds it fails and keeps its previous outputs. Zero disables the limit.
func WithNodeTimeout(d time.Duration) Option {
	return func(eng *Engine) {
		eng.nodeTimeout = d
	}
}

// WithMetrics records run and node metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(eng *Engine) {
		eng.metrics = m
	}
}

// New creates an engine over st, resolving node types through reg.
func New(reg *registry.Registry, st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		reg:     reg,
		store:   st,
		emitter: events.Discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the nodes named by seeds and everything downstream of them,
// or every node when no seeds are given. A cycle in the visited part of the
// graph fails the whole run with resolver.ErrCyclicDependency and writes
// nothing. Per-node failures do not fail the run; they are reported in the
// returned Report.
func (e *Engine) Evaluate(ctx context.Context, seeds ...string) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	runID := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("run", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	snap := e.store.Snapshot()
	logger.Debug("Evaluation started.", "revision", snap.Revision, "seeds", seeds, "nodes", len(snap.Nodes))

	order, err := resolver.TopologicalOrder(snap.NodeIDs(), snap.Edges, seeds...)
	if err != nil {
		logger.Error("Evaluation aborted.", "error", err)
		e.metrics.ObserveRun(metrics.OutcomeCycle, time.Since(start), len(snap.Nodes))
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	report := &Report{
		RunID:    runID,
		Revision: snap.Revision,
		Order:    order,
		Results:  make(map[string]Result, len(order)),
	}
	commits := make([]store.Commit, 0, len(order))

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			logger.Warn("Evaluation cancelled, discarding results.", "error", err)
			return nil, fmt.Errorf("evaluate: %w", err)
		}

		n, _ := snap.Node(id)
		nodeStart := time.Now()
		outputs, err := e.evalNode(ctx, snap, n)
		e.metrics.ObserveNode(n.Type, time.Since(nodeStart), err != nil)

		commit := store.Commit{NodeID: id}
		if err != nil {
			logger.Warn("Node evaluation failed, keeping previous outputs.", "node", id, "type", n.Type, "error", err)
			commit.Error = err.Error()
		} else {
			// Later nodes in this run read the fresh values from the snapshot.
			for bus, v := range outputs {
				n.OutputCache[bus] = v
			}
			commit.Outputs = outputs
		}
		n.Error = commit.Error
		report.Results[id] = Result{Err: err}
		commits = append(commits, commit)
	}

	written := e.store.CommitOutputs(ctx, snap.Revision, commits)
	report.Duration = time.Since(start)

	outcome := metrics.OutcomeOK
	if len(report.Failed()) > 0 {
		outcome = metrics.OutcomePartial
	}
	e.metrics.ObserveRun(outcome, report.Duration, len(snap.Nodes))

	if len(written) > 0 {
		e.emitter.Emit(ctx, events.Event{Kind: events.ValuesUpdated, NodeIDs: written, Revision: snap.Revision})
	}
	logger.Info("Evaluation finished.",
		"visited", len(order),
		"failed", len(report.Failed()),
		"duration", report.Duration,
	)
	return report, nil
}
