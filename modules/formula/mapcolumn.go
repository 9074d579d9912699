package formula

import (
	"fmt"

	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// MapColumn applies fn to every cell of column and writes the results into
// target, or back into column when target is empty. A new target column is
// numeric when every result is a number and text otherwise. Blank cells stay
// blank. A cell whose source failed to parse, or for which fn fails, carries
// the error instead of a value.
func MapColumn(t *value.Table, fn *value.Function, column, target string) (*value.Table, error) {
	if column == "" {
		return t.Clone(), nil
	}
	src, ok := t.Column(column)
	if !ok {
		return nil, fmt.Errorf("map_column: unknown column %q", column)
	}
	if len(fn.Params) != 1 {
		return nil, fmt.Errorf("map_column: function must take one parameter, %s takes %d", fn, len(fn.Params))
	}
	if target == "" {
		target = column
	}

	type result struct {
		v     cty.Value
		err   string
		blank bool
	}
	results := make([]result, len(t.Rows))
	allNumbers := true
	for i, row := range t.Rows {
		cell := row[src.Accessor]
		switch {
		case cell.Error != "":
			results[i] = result{err: cell.Error}
			continue
		case cell.UnderlyingValue == nil:
			results[i] = result{blank: true}
			continue
		}
		v, err := fn.Invoke(cellValue(cell))
		if err != nil {
			results[i] = result{err: err.Error()}
			continue
		}
		if k, _ := value.KindOf(v); k != value.KindNumber {
			allNumbers = false
		}
		results[i] = result{v: v}
	}

	out := t.Clone()
	col, exists := out.Column(target)
	if !exists {
		col = value.Column{Header: target, Accessor: target, Type: value.ColumnText}
		if allNumbers {
			col.Type = value.ColumnNumber
		}
		out.Columns = append(out.Columns, col)
	}

	for i, row := range out.Rows {
		r := results[i]
		switch {
		case r.blank:
			row[col.Accessor] = value.Parse("", col.Type)
		case r.err != "":
			row[col.Accessor] = value.RowValue{Error: r.err}
		default:
			row[col.Accessor] = value.Parse(cellText(r.v, col.Type), col.Type)
		}
	}
	return out, nil
}

func cellValue(cell value.RowValue) cty.Value {
	switch v := cell.UnderlyingValue.(type) {
	case float64:
		return cty.NumberFloatVal(v)
	case string:
		return cty.StringVal(v)
	}
	return cty.StringVal(cell.WriteValue)
}

func cellText(v cty.Value, ct value.ColumnType) string {
	if k, ok := value.KindOf(v); ok && k == value.KindNumber && ct.IsNumeric() {
		f, _ := v.AsBigFloat().Float64()
		return value.Format(f, ct)
	}
	if _, ok := value.KindOf(v); !ok {
		if s, err := convert.Convert(v, cty.String); err == nil && !s.IsNull() {
			return s.AsString()
		}
	}
	return value.Display(v)
}
