// Package tables provides the tabular node types: table, filter and join.
package tables

import (
	"context"

	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the node types with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.NodeType{
		Name:        registry.TypeTable,
		Description: "A user-entered table.",
		Sources:     map[string]value.Schema{"table": value.TableOf(nil)},
		Outputs: map[string]registry.Output{
			"table": {
				Schema: value.TableOf(nil),
				Compute: func(_ context.Context, in registry.Inputs) (cty.Value, error) {
					return in["table"], nil
				},
			},
		},
	})

	r.Register(&registry.NodeType{
		Name:        registry.TypeFilter,
		Description: "Keeps the rows whose column compares true against the operand.",
		Inputs:      map[string]value.Schema{"table": value.TableOf(nil)},
		Sources: map[string]value.Schema{
			"column":   value.String(""),
			"operator": value.String(OpEqual),
			"operand":  value.String(""),
		},
		Outputs: map[string]registry.Output{
			"table": {Schema: value.TableOf(nil), Compute: computeFilter},
		},
	})

	r.Register(&registry.NodeType{
		Name:        registry.TypeJoin,
		Description: "Joins two tables on equal key cells.",
		Inputs: map[string]value.Schema{
			"left":  value.TableOf(nil),
			"right": value.TableOf(nil),
		},
		Sources: map[string]value.Schema{
			"left_key":  value.String(""),
			"right_key": value.String(""),
			"kind":      value.String(JoinInner),
		},
		Outputs: map[string]registry.Output{
			"table": {Schema: value.TableOf(nil), Compute: computeJoin},
		},
	})
}

func computeFilter(_ context.Context, in registry.Inputs) (cty.Value, error) {
	t, err := in.Table("table")
	if err != nil {
		return cty.NilVal, err
	}
	column, err := in.String("column")
	if err != nil {
		return cty.NilVal, err
	}
	op, err := in.String("operator")
	if err != nil {
		return cty.NilVal, err
	}
	operand, err := in.String("operand")
	if err != nil {
		return cty.NilVal, err
	}
	out, err := Filter(t, column, op, operand)
	if err != nil {
		return cty.NilVal, err
	}
	return value.TableVal(out), nil
}

func computeJoin(_ context.Context, in registry.Inputs) (cty.Value, error) {
	left, err := in.Table("left")
	if err != nil {
		return cty.NilVal, err
	}
	right, err := in.Table("right")
	if err != nil {
		return cty.NilVal, err
	}
	leftKey, err := in.String("left_key")
	if err != nil {
		return cty.NilVal, err
	}
	rightKey, err := in.String("right_key")
	if err != nil {
		return cty.NilVal, err
	}
	kind, err := in.String("kind")
	if err != nil {
		return cty.NilVal, err
	}
	out, err := Join(left, right, leftKey, rightKey, kind)
	if err != nil {
		return cty.NilVal, err
	}
	return value.TableVal(out), nil
}
