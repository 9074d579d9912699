package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type moduleFunc func(r *Registry)

func (f moduleFunc) Register(r *Registry) { f(r) }

func identity(bus string) ComputeFunc {
	return func(_ context.Context, in Inputs) (cty.Value, error) {
		return in[bus], nil
	}
}

func numberType() *NodeType {
	return &NodeType{
		Name:    TypeNumber,
		Sources: map[string]value.Schema{"number": value.Number(0)},
		Outputs: map[string]Output{"number": {Schema: value.Number(0), Compute: identity("number")}},
	}
}

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.DiscardHandler))
}

func TestGet(t *testing.T) {
	r := New(moduleFunc(func(r *Registry) { r.Register(numberType()) }))

	nt, err := r.Get(TypeNumber)
	require.NoError(t, err)
	assert.Equal(t, TypeNumber, nt.Name)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownNodeType)
	assert.ErrorContains(t, err, `"nope"`)
}

func TestInstantiateDefaults(t *testing.T) {
	r := New(moduleFunc(func(r *Registry) {
		nt := numberType()
		nt.Sources["number"] = value.Number(7)
		r.Register(nt)
	}))

	sources, outputs, err := r.InstantiateDefaults(TypeNumber)
	require.NoError(t, err)
	require.Contains(t, sources, "number")
	require.Contains(t, outputs, "number")

	f, _ := value.AsFloat(sources["number"])
	assert.Equal(t, 7.0, f)
	f, _ = value.AsFloat(outputs["number"])
	assert.Equal(t, 0.0, f)

	_, _, err = r.InstantiateDefaults("nope")
	assert.ErrorIs(t, err, ErrUnknownNodeType)
}

func TestRegister_Panics(t *testing.T) {
	t.Run("duplicate", func(t *testing.T) {
		assert.Panics(t, func() {
			New(moduleFunc(func(r *Registry) {
				r.Register(numberType())
				r.Register(numberType())
			}))
		})
	})

	t.Run("after seal", func(t *testing.T) {
		r := New()
		assert.Panics(t, func() { r.Register(numberType()) })
	})
}

func TestValidate(t *testing.T) {
	ctx := testContext()

	t.Run("partial registry misses catalog entries", func(t *testing.T) {
		r := New(moduleFunc(func(r *Registry) { r.Register(numberType()) }))
		err := r.Validate(ctx)
		require.Error(t, err)
		assert.ErrorContains(t, err, "node type 'add' is part of the catalog")
	})

	t.Run("foreign types and broken definitions are reported", func(t *testing.T) {
		r := New(moduleFunc(func(r *Registry) {
			r.Register(&NodeType{
				Name:    "custom",
				Inputs:  map[string]value.Schema{"x": value.Number(0)},
				Sources: map[string]value.Schema{"x": value.Number(0)},
				Outputs: map[string]Output{"y": {Schema: value.Number(0)}},
			})
		}))
		err := r.Validate(ctx)
		require.Error(t, err)
		assert.ErrorContains(t, err, "'custom' is registered but not part of the catalog")
		assert.ErrorContains(t, err, "declared as both input and source")
		assert.ErrorContains(t, err, "output 'y' has no compute function")
	})
}

func TestNodeType_Producer(t *testing.T) {
	nt := &NodeType{
		Name:    "mixed",
		Sources: map[string]value.Schema{"a": value.Number(0), "b": value.Number(0)},
		Outputs: map[string]Output{"a": {Schema: value.Number(0), Compute: identity("a")}},
	}
	assert.Equal(t, BusOutput, nt.Producer("a"))
	assert.Equal(t, BusSource, nt.Producer("b"))
	assert.Equal(t, BusNone, nt.Producer("c"))
	assert.Equal(t, []string{"a", "b"}, nt.SourceNames())
}
