package tables

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/gridflow/internal/value"
)

// Filter operators.
const (
	OpEqual        = "="
	OpNotEqual     = "!="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpContains     = "contains"
)

// Filter returns the rows of t whose cell in column compares true against
// operand. Numeric columns compare underlying values, with the operand parsed
// through the column's own codec, so "12%" and "0.12" select the same rows.
// Text columns compare the cell's write value; a blank text cell still
// equals an empty operand. Cells that failed to parse or are blank never
// match an ordering operator, and in numeric columns they match nothing.
//
// An empty column leaves the table unchanged.
func Filter(t *value.Table, column, op, operand string) (*value.Table, error) {
	if column == "" {
		return t.Clone(), nil
	}
	col, ok := t.Column(column)
	if !ok {
		return nil, fmt.Errorf("filter: unknown column %q", column)
	}

	match, err := matcher(col, op, operand)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	out := &value.Table{Columns: append([]value.Column(nil), t.Columns...)}
	for _, row := range t.Rows {
		if match(row[col.Accessor]) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out.Clone(), nil
}

func matcher(col value.Column, op, operand string) (func(value.RowValue) bool, error) {
	if op == OpContains {
		return func(cell value.RowValue) bool {
			return strings.Contains(cell.ReadValue, operand)
		}, nil
	}

	if !col.Type.IsNumeric() {
		cmp, err := comparison(op)
		if err != nil {
			return nil, err
		}
		ordering := op != OpEqual && op != "==" && op != OpNotEqual
		return func(cell value.RowValue) bool {
			if ordering && cell.UnderlyingValue == nil {
				return false
			}
			return cmp(strings.Compare(cell.WriteValue, operand))
		}, nil
	}

	want := value.Parse(operand, col.Type)
	if want.Error != "" {
		return nil, fmt.Errorf("operand %q: %s", operand, want.Error)
	}
	target, ok := want.UnderlyingValue.(float64)
	if !ok {
		return nil, fmt.Errorf("operand is required for a %s column", col.Type)
	}
	cmp, err := comparison(op)
	if err != nil {
		return nil, err
	}
	return func(cell value.RowValue) bool {
		f, ok := cell.UnderlyingValue.(float64)
		if !ok || cell.Error != "" {
			return false
		}
		switch {
		case f < target:
			return cmp(-1)
		case f > target:
			return cmp(1)
		}
		return cmp(0)
	}, nil
}

// comparison maps an operator onto the sign of a three-way comparison.
func comparison(op string) (func(int) bool, error) {
	switch op {
	case OpEqual, "==":
		return func(c int) bool { return c == 0 }, nil
	case OpNotEqual:
		return func(c int) bool { return c != 0 }, nil
	case OpLess:
		return func(c int) bool { return c < 0 }, nil
	case OpLessEqual:
		return func(c int) bool { return c <= 0 }, nil
	case OpGreater:
		return func(c int) bool { return c > 0 }, nil
	case OpGreaterEqual:
		return func(c int) bool { return c >= 0 }, nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}
