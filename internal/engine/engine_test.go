package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/events"
	"github.com/specialistvlad/gridflow/internal/idgen"
	"github.com/specialistvlad/gridflow/internal/metrics"
	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/resolver"
	"github.com/specialistvlad/gridflow/internal/store"
	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/specialistvlad/gridflow/modules/arith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// testModule registers node types that misbehave on purpose.
type testModule struct {
	release chan struct{}
}

func (m *testModule) Register(r *registry.Registry) {
	r.Register(&registry.NodeType{
		Name:   "explode",
		Inputs: map[string]value.Schema{"in": value.Number(0)},
		Outputs: map[string]registry.Output{
			"out": {Schema: value.Number(0), Compute: func(context.Context, registry.Inputs) (cty.Value, error) {
				panic("kaboom")
			}},
		},
	})
	r.Register(&registry.NodeType{
		Name:   "wrong",
		Inputs: map[string]value.Schema{"in": value.Number(0)},
		Outputs: map[string]registry.Output{
			"out": {Schema: value.Number(0), Compute: func(context.Context, registry.Inputs) (cty.Value, error) {
				return cty.StringVal("not a number"), nil
			}},
		},
	})
	r.Register(&registry.NodeType{
		Name:   "infinite",
		Inputs: map[string]value.Schema{"in": value.Number(0)},
		Outputs: map[string]registry.Output{
			"out": {Schema: value.Number(0), Compute: func(context.Context, registry.Inputs) (cty.Value, error) {
				return cty.PositiveInfinity, nil
			}},
		},
	})
	r.Register(&registry.NodeType{
		Name:   "slow",
		Inputs: map[string]value.Schema{"in": value.Number(0)},
		Outputs: map[string]registry.Output{
			"out": {Schema: value.Number(0), Compute: func(ctx context.Context, in registry.Inputs) (cty.Value, error) {
				select {
				case <-m.release:
				case <-time.After(5 * time.Second):
				}
				return in["in"], nil
			}},
		},
	})
	r.Register(&registry.NodeType{
		Name:    "pair",
		Sources: map[string]value.Schema{"seed": value.Number(1)},
		Outputs: map[string]registry.Output{
			"double": {Schema: value.Number(0), Compute: func(_ context.Context, in registry.Inputs) (cty.Value, error) {
				return in["seed"].Multiply(cty.NumberIntVal(2)), nil
			}},
			"guard": {Schema: value.Number(0), Compute: func(_ context.Context, in registry.Inputs) (cty.Value, error) {
				if in["seed"].Equals(cty.NumberIntVal(0)).True() {
					return cty.NilVal, errors.New("seed must not be zero")
				}
				return in["seed"], nil
			}},
		},
	})
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) byKind(k events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *store.Store
	eng   *Engine
	rec   *recorder
	mod   *testModule
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mod := &testModule{release: make(chan struct{})}
	t.Cleanup(func() { close(mod.release) })

	reg := registry.New(&arith.Module{}, mod)
	rec := &recorder{}
	st := store.New(reg, store.WithEmitter(rec), store.WithIDGenerator(idgen.Sequential()))
	opts = append([]Option{WithEmitter(rec)}, opts...)
	return &fixture{
		t:     t,
		ctx:   ctxlog.WithLogger(context.Background(), slog.New(slog.DiscardHandler)),
		store: st,
		eng:   New(reg, st, opts...),
		rec:   rec,
		mod:   mod,
	}
}

func (f *fixture) add(typeName string, sources map[string]cty.Value) string {
	f.t.Helper()
	id, err := f.store.AddNode(f.ctx, typeName, node.Position{}, sources)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) connect(from, fromBus, to, toBus string) {
	f.t.Helper()
	_, err := f.store.AddEdge(f.ctx, node.Endpoint{NodeID: from, Bus: fromBus}, node.Endpoint{NodeID: to, Bus: toBus})
	require.NoError(f.t, err)
}

func (f *fixture) output(id, bus string) float64 {
	f.t.Helper()
	n, ok := f.store.GetNode(id)
	require.True(f.t, ok)
	v, err := value.AsFloat(n.OutputCache[bus])
	require.NoError(f.t, err)
	return v
}

func (f *fixture) caches() map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, n := range f.store.AllNodes() {
		m := make(map[string]string)
		for bus, v := range n.OutputCache {
			m[bus] = value.Display(v)
		}
		out[n.ID] = m
	}
	return out
}

func num(n int64) map[string]cty.Value {
	return map[string]cty.Value{"number": cty.NumberIntVal(n)}
}

// linearChain builds (A + B) - C -> Out.
func linearChain(f *fixture) (a, b, c, add, sub, out string) {
	a = f.add(registry.TypeNumber, num(10))
	b = f.add(registry.TypeNumber, num(5))
	c = f.add(registry.TypeNumber, num(50))
	add = f.add(registry.TypeAdd, nil)
	sub = f.add(registry.TypeSubtract, nil)
	out = f.add(registry.TypeOutput, nil)
	f.connect(a, "number", add, "left")
	f.connect(b, "number", add, "right")
	f.connect(add, "sum", sub, "left")
	f.connect(c, "number", sub, "right")
	f.connect(sub, "difference", out, "value")
	return
}

func TestEvaluate_LinearChain(t *testing.T) {
	f := newFixture(t)
	_, b, _, _, _, out := linearChain(f)

	report, err := f.eng.Evaluate(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Failed())
	assert.Len(t, report.Order, 6)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, -35.0, f.output(out, "value"))

	require.NoError(t, f.store.UpdateNodeSources(f.ctx, b, num(15)))
	report, err = f.eng.Evaluate(f.ctx, b)
	require.NoError(t, err)
	assert.Equal(t, -25.0, f.output(out, "value"))
	assert.Len(t, report.Order, 4, "B, Add, Subtract and Out are re-run")
}

func TestEvaluate_ComputeErrorKeepsStaleOutputs(t *testing.T) {
	f := newFixture(t)
	a := f.add(registry.TypeNumber, num(10))
	z := f.add(registry.TypeNumber, num(2))
	div := f.add(registry.TypeDivide, nil)
	out := f.add(registry.TypeOutput, nil)
	f.connect(a, "number", div, "left")
	f.connect(z, "number", div, "right")
	f.connect(div, "quotient", out, "value")

	_, err := f.eng.Evaluate(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, f.output(out, "value"))

	require.NoError(t, f.store.UpdateNodeSources(f.ctx, z, num(0)))
	report, err := f.eng.Evaluate(f.ctx, z)
	require.NoError(t, err, "a node failure never fails the run")

	assert.Equal(t, []string{div}, report.Failed())
	divErr := report.Results[div].Err
	require.ErrorIs(t, divErr, ErrNodeCompute)
	require.ErrorIs(t, divErr, arith.ErrDivisionByZero)
	var nce *NodeComputeError
	require.ErrorAs(t, divErr, &nce)
	assert.Equal(t, "quotient", nce.Output)

	assert.True(t, report.Results[out].OK(), "downstream still computes")
	assert.Equal(t, 5.0, f.output(div, "quotient"), "failed node keeps its previous output")
	assert.Equal(t, 5.0, f.output(out, "value"), "downstream reads the stale value")

	n, _ := f.store.GetNode(div)
	assert.Contains(t, n.Error, "division by zero")

	// Fixing the input clears the error.
	require.NoError(t, f.store.UpdateNodeSources(f.ctx, z, num(4)))
	_, err = f.eng.Evaluate(f.ctx, z)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f.output(out, "value"))
	n, _ = f.store.GetNode(div)
	assert.Empty(t, n.Error)
}

func TestEvaluate_OverflowKeepsLastGoodValue(t *testing.T) {
	f := newFixture(t)
	a := f.add(registry.TypeNumber, num(10))
	b := f.add(registry.TypeNumber, num(10))
	mul := f.add(registry.TypeMultiply, nil)
	f.connect(a, "number", mul, "left")
	f.connect(b, "number", mul, "right")

	_, err := f.eng.Evaluate(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.0, f.output(mul, "product"))

	require.NoError(t, f.store.UpdateNodeSources(f.ctx, a, map[string]cty.Value{"number": cty.NumberFloatVal(1e308)}))
	report, err := f.eng.Evaluate(f.ctx, a)
	require.NoError(t, err)

	assert.Equal(t, []string{mul}, report.Failed())
	require.ErrorIs(t, report.Results[mul].Err, arith.ErrOverflow)
	assert.Equal(t, 100.0, f.output(mul, "product"))

	_, err = json.Marshal(f.store.AllNodes())
	assert.NoError(t, err, "node views stay serializable")
}

func TestEvaluate_NonFiniteResultFailsSchema(t *testing.T) {
	f := newFixture(t)
	in := f.add(registry.TypeNumber, num(1))
	inf := f.add("infinite", nil)
	f.connect(in, "number", inf, "in")

	report, err := f.eng.Evaluate(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{inf}, report.Failed())
	require.ErrorIs(t, report.Results[inf].Err, value.ErrNotFinite)
	assert.Equal(t, 0.0, f.output(inf, "out"), "the default output is kept")

	_, err = json.Marshal(f.store.AllNodes())
	assert.NoError(t, err)
}

func TestEvaluate_FailingNodeGetsNoPartialUpdate(t *testing.T) {
	f := newFixture(t)
	p := f.add("pair", map[string]cty.Value{"seed": cty.NumberIntVal(3)})
	_, err := f.eng.Evaluate(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 6.0, f.output(p, "double"))

	require.NoError(t, f.store.UpdateNodeSources(f.ctx, p, map[string]cty.Value{"seed": cty.NumberIntVal(0)}))
	report, err := f.eng.Evaluate(f.ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{p}, report.Failed())
	assert.Equal(t, 6.0, f.output(p, "double"), "sibling output is not updated either")
}

func TestEvaluate_MisbehavingComputeFunctions(t *testing.T) {
	testCases := []struct {
		typeName string
		want     string
	}{
		{"explode", "compute panicked: kaboom"},
		{"wrong", "result does not match the output schema"},
	}
	for _, tc := range testCases {
		t.Run(tc.typeName, func(t *testing.T) {
			f := newFixture(t)
			id := f.add(tc.typeName, nil)
			report, err := f.eng.Evaluate(f.ctx)
			require.NoError(t, err)
			require.ErrorContains(t, report.Results[id].Err, tc.want)
			assert.Equal(t, 0.0, f.output(id, "out"))
		})
	}
}

func TestEvaluate_NodeTimeout(t *testing.T) {
	f := newFixture(t, WithNodeTimeout(20*time.Millisecond))
	src := f.add(registry.TypeNumber, num(3))
	slow := f.add("slow", nil)
	out := f.add(registry.TypeOutput, nil)
	f.connect(src, "number", slow, "in")
	f.connect(slow, "out", out, "value")

	report, err := f.eng.Evaluate(f.ctx)
	require.NoError(t, err)
	require.ErrorIs(t, report.Results[slow].Err, context.DeadlineExceeded)
	assert.True(t, report.Results[out].OK())
	assert.Equal(t, 0.0, f.output(slow, "out"))
}

func TestEvaluate_Idempotent(t *testing.T) {
	f := newFixture(t)
	linearChain(f)

	_, err := f.eng.Evaluate(f.ctx)
	require.NoError(t, err)
	first := f.caches()
	_, err = f.eng.Evaluate(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, first, f.caches())
}

func TestEvaluate_SeededUpdatesOnlyDescendants(t *testing.T) {
	f := newFixture(t)
	a, b, c, add, sub, out := linearChain(f)
	other := f.add(registry.TypeNumber, num(1))
	otherOut := f.add(registry.TypeOutput, nil)
	f.connect(other, "number", otherOut, "value")

	_, err := f.eng.Evaluate(f.ctx)
	require.NoError(t, err)

	// Change sources everywhere but seed only C; nodes outside C's subtree
	// must keep their previous outputs.
	require.NoError(t, f.store.UpdateNodeSources(f.ctx, a, num(100)))
	require.NoError(t, f.store.UpdateNodeSources(f.ctx, other, num(7)))
	require.NoError(t, f.store.UpdateNodeSources(f.ctx, c, num(0)))

	report, err := f.eng.Evaluate(f.ctx, c)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{c, sub, out}, report.Updated())

	assert.Equal(t, 10.0, f.output(a, "number"))
	assert.Equal(t, 5.0, f.output(b, "number"))
	assert.Equal(t, 15.0, f.output(add, "sum"))
	assert.Equal(t, 15.0, f.output(out, "value"))
	assert.Equal(t, 1.0, f.output(otherOut, "value"))
}

func TestEvaluate_CycleWritesNothing(t *testing.T) {
	f := newFixture(t)
	a := f.add(registry.TypeNumber, num(1))
	x := f.add(registry.TypeAdd, nil)
	y := f.add(registry.TypeAdd, nil)
	f.connect(a, "number", x, "left")
	f.connect(x, "sum", y, "left")
	_, err := f.eng.Evaluate(f.ctx)
	require.NoError(t, err)
	before := f.caches()
	updatesBefore := len(f.rec.byKind(events.ValuesUpdated))

	f.connect(y, "sum", x, "right")
	require.NoError(t, f.store.UpdateNodeSources(f.ctx, a, num(9)))
	_, err = f.eng.Evaluate(f.ctx, a)
	require.ErrorIs(t, err, resolver.ErrCyclicDependency)
	assert.Equal(t, before, f.caches())

	// Only the source update emitted an event; the aborted run did not.
	assert.Len(t, f.rec.byKind(events.ValuesUpdated), updatesBefore+1)
}

func TestEvaluate_SourcePassThroughAndDefaults(t *testing.T) {
	f := newFixture(t)
	a := f.add(registry.TypeNumber, num(4))
	add := f.add(registry.TypeAdd, nil)
	div := f.add(registry.TypeDivide, nil)
	f.connect(a, "number", add, "left")
	f.connect(add, "sum", div, "left")

	// The number node has not been evaluated yet, so its output cache still
	// holds the default.
	_, err := f.eng.Evaluate(f.ctx, add)
	require.NoError(t, err)
	assert.Equal(t, 0.0, f.output(add, "sum"), "unevaluated producer output is still the default")

	_, err = f.eng.Evaluate(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 4.0, f.output(add, "sum"))
	assert.Equal(t, 4.0, f.output(div, "quotient"), "unconnected divisor defaults to one")
}

func TestEvaluate_EmitsOneAggregatedEvent(t *testing.T) {
	f := newFixture(t)
	linearChain(f)
	before := len(f.rec.byKind(events.ValuesUpdated))

	report, err := f.eng.Evaluate(f.ctx)
	require.NoError(t, err)

	updates := f.rec.byKind(events.ValuesUpdated)
	require.Len(t, updates, before+1)
	assert.ElementsMatch(t, report.Order, updates[len(updates)-1].NodeIDs)
	assert.Equal(t, report.Revision, updates[len(updates)-1].Revision)
}

func TestEvaluate_SkipsNodesDeletedMidRun(t *testing.T) {
	f := newFixture(t)
	a := f.add(registry.TypeNumber, num(1))
	slow := f.add("slow", nil)
	f.connect(a, "number", slow, "in")

	done := make(chan error, 1)
	go func() {
		_, err := f.eng.Evaluate(f.ctx)
		done <- err
	}()

	// Deleting while the run is parked in the slow node must not resurrect it.
	require.Eventually(t, func() bool {
		return f.store.DeleteNode(f.ctx, a)
	}, time.Second, time.Millisecond)
	f.mod.release <- struct{}{}
	require.NoError(t, <-done)

	_, ok := f.store.GetNode(a)
	assert.False(t, ok)
}

func TestEvaluate_RunsAreSerialized(t *testing.T) {
	f := newFixture(t)
	src := f.add(registry.TypeNumber, num(2))
	slow := f.add("slow", nil)
	f.connect(src, "number", slow, "in")

	first := make(chan struct{})
	go func() {
		defer close(first)
		_, _ = f.eng.Evaluate(f.ctx)
	}()

	// The first run blocks in the slow node while holding the run lock, so a
	// second run cannot start until the slow node is released.
	time.Sleep(20 * time.Millisecond)
	second := make(chan struct{})
	go func() {
		defer close(second)
		_, _ = f.eng.Evaluate(f.ctx, src)
	}()

	select {
	case <-second:
		t.Fatal("second run finished while the first was still in flight")
	case <-time.After(30 * time.Millisecond):
	}

	f.mod.release <- struct{}{}
	<-first
	f.mod.release <- struct{}{}
	<-second
}

func TestEvaluate_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	f := newFixture(t, WithMetrics(m))
	f.add("explode", nil)

	_, err := f.eng.Evaluate(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(metrics.OutcomePartial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeFailuresTotal.WithLabelValues("explode")))
}

func TestEvaluate_CancelledContext(t *testing.T) {
	f := newFixture(t)
	linearChain(f)
	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	_, err := f.eng.Evaluate(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate_SourceBusFeedsConsumersDirectly(t *testing.T) {
	f := newFixture(t)
	p := f.add("pair", map[string]cty.Value{"seed": cty.NumberIntVal(21)})
	out := f.add(registry.TypeOutput, nil)
	f.connect(p, "seed", out, "value")

	_, err := f.eng.Evaluate(f.ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 21.0, f.output(out, "value"))
}
