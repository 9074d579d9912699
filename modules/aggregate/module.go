// Package aggregate provides the aggregate node type, which reduces one
// column of a table to a single number.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/zclconf/go-cty/cty"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Operations.
const (
	OpSum    = "sum"
	OpAvg    = "avg"
	OpMin    = "min"
	OpMax    = "max"
	OpCount  = "count"
	OpMedian = "median"
	OpStdDev = "stddev"
)

// ErrNoValues is returned when an operation other than sum or count is
// applied to a column without numeric cells.
var ErrNoValues = errors.New("column has no numeric values")

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the node type with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.NodeType{
		Name:        registry.TypeAggregate,
		Description: "Reduces a table column to a number.",
		Inputs:      map[string]value.Schema{"table": value.TableOf(nil)},
		Sources: map[string]value.Schema{
			"column":    value.String(""),
			"operation": value.String(OpSum),
		},
		Outputs: map[string]registry.Output{
			"value": {Schema: value.Number(0), Compute: compute},
		},
	})
}

func compute(_ context.Context, in registry.Inputs) (cty.Value, error) {
	t, err := in.Table("table")
	if err != nil {
		return cty.NilVal, err
	}
	column, err := in.String("column")
	if err != nil {
		return cty.NilVal, err
	}
	op, err := in.String("operation")
	if err != nil {
		return cty.NilVal, err
	}
	res, err := Column(t, column, op)
	if err != nil {
		return cty.NilVal, err
	}
	return cty.NumberFloatVal(res), nil
}

// Column applies op to the cells of column. Blank cells and cells that
// failed to parse are skipped. count counts the non-blank cells of any
// column type; every other operation needs a numeric column. median is the
// lower median for an even number of cells.
func Column(t *value.Table, column, op string) (float64, error) {
	if column == "" {
		if op == OpCount {
			return float64(len(t.Rows)), nil
		}
		return 0, fmt.Errorf("aggregate: column is not set")
	}
	col, ok := t.Column(column)
	if !ok {
		return 0, fmt.Errorf("aggregate: unknown column %q", column)
	}

	if op == OpCount {
		var n int
		for _, r := range t.Rows {
			cell := r[col.Accessor]
			if cell.Error == "" && cell.UnderlyingValue != nil {
				n++
			}
		}
		return float64(n), nil
	}

	if !col.Type.IsNumeric() {
		return 0, fmt.Errorf("aggregate: column %q is %s, not numeric", column, col.Type)
	}
	xs := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		cell := r[col.Accessor]
		if f, ok := cell.UnderlyingValue.(float64); ok && cell.Error == "" {
			xs = append(xs, f)
		}
	}

	switch op {
	case OpSum:
		return floats.Sum(xs), nil
	case OpAvg, OpMin, OpMax, OpMedian, OpStdDev:
	default:
		return 0, fmt.Errorf("aggregate: unknown operation %q", op)
	}
	if len(xs) == 0 {
		return 0, fmt.Errorf("aggregate: %s of %q: %w", op, column, ErrNoValues)
	}

	switch op {
	case OpAvg:
		return stat.Mean(xs, nil), nil
	case OpMin:
		return floats.Min(xs), nil
	case OpMax:
		return floats.Max(xs), nil
	case OpMedian:
		sort.Float64s(xs)
		return stat.Quantile(0.5, stat.Empirical, xs, nil), nil
	default:
		if len(xs) < 2 {
			return 0, nil
		}
		return stat.StdDev(xs, nil), nil
	}
}
