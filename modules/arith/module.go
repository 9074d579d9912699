// Package arith provides the numeric node types: number, add, subtract,
// multiply, divide and output.
package arith

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// ErrDivisionByZero is returned by the divide node when its right input is zero.
var ErrDivisionByZero = errors.New("division by zero")

// ErrOverflow is returned when a result does not fit in a float64.
var ErrOverflow = errors.New("result out of range")

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the node types with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.NodeType{
		Name:        registry.TypeNumber,
		Description: "A user-entered number.",
		Sources:     map[string]value.Schema{"number": value.Number(0)},
		Outputs: map[string]registry.Output{
			"number": {Schema: value.Number(0), Compute: passThrough("number")},
		},
	})

	r.Register(binary(registry.TypeAdd, "sum", 0, func(a, b float64) (float64, error) {
		return a + b, nil
	}))
	r.Register(binary(registry.TypeSubtract, "difference", 0, func(a, b float64) (float64, error) {
		return a - b, nil
	}))
	r.Register(binary(registry.TypeMultiply, "product", 0, func(a, b float64) (float64, error) {
		return a * b, nil
	}))
	r.Register(binary(registry.TypeDivide, "quotient", 1, func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	}))

	r.Register(&registry.NodeType{
		Name:        registry.TypeOutput,
		Description: "Displays the number it is fed.",
		Inputs:      map[string]value.Schema{"value": value.Number(0)},
		Outputs: map[string]registry.Output{
			"value": {Schema: value.Number(0), Compute: passThrough("value")},
		},
	})
}

// binary builds a node type with left and right number inputs and one
// number output named out.
func binary(name, out string, rightDefault float64, op func(a, b float64) (float64, error)) *registry.NodeType {
	return &registry.NodeType{
		Name:        name,
		Description: "Computes the " + out + " of left and right.",
		Inputs: map[string]value.Schema{
			"left":  value.Number(0),
			"right": value.Number(rightDefault),
		},
		Outputs: map[string]registry.Output{
			out: {
				Schema: value.Number(0),
				Compute: func(_ context.Context, in registry.Inputs) (cty.Value, error) {
					a, err := in.Number("left")
					if err != nil {
						return cty.NilVal, err
					}
					b, err := in.Number("right")
					if err != nil {
						return cty.NilVal, err
					}
					res, err := op(a, b)
					if err != nil {
						return cty.NilVal, err
					}
					if math.IsInf(res, 0) || math.IsNaN(res) {
						return cty.NilVal, fmt.Errorf("%w: %g %s %g", ErrOverflow, a, name, b)
					}
					return cty.NumberFloatVal(res), nil
				},
			},
		},
	}
}

func passThrough(bus string) registry.ComputeFunc {
	return func(_ context.Context, in registry.Inputs) (cty.Value, error) {
		return in[bus], nil
	}
}
