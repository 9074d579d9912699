package value

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Column describes one column of a Table. Accessor is the stable key rows
// are indexed by; Header is only for display.
type Column struct {
	Header   string     `json:"Header"`
	Accessor string     `json:"accessor"`
	Type     ColumnType `json:"Type"`
}

// Row maps a column accessor to its cell.
type Row map[string]RowValue

// Table is the tabular value kind.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTable builds a table from raw cell text, parsing every cell with its
// column's codec. Short rows are padded with empty cells.
func NewTable(columns []Column, raw [][]string) *Table {
	t := &Table{Columns: append([]Column(nil), columns...)}
	for _, cells := range raw {
		row := make(Row, len(columns))
		for i, col := range columns {
			var text string
			if i < len(cells) {
				text = cells[i]
			}
			row[col.Accessor] = Parse(text, col.Type)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Column looks up a column by accessor.
func (t *Table) Column(accessor string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Accessor == accessor {
			return c, true
		}
	}
	return Column{}, false
}

// Clone returns a copy that shares no rows or columns with t.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]Column(nil), t.Columns...),
		Rows:    make([]Row, 0, len(t.Rows)),
	}
	for _, r := range t.Rows {
		nr := make(Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out.Rows = append(out.Rows, nr)
	}
	return out
}

// Matrix projects the table to a row-major string matrix: a header row
// followed by one row per data row, each cell rendered by its ReadValue.
// This is the contract consumed by CSV and spreadsheet export.
func (t *Table) Matrix() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Header
	}
	out = append(out, header)
	for _, r := range t.Rows {
		line := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			line[i] = r[c.Accessor].ReadValue
		}
		out = append(out, line)
	}
	return out
}

// TableFromCty decodes the document form of a table:
//
//	{
//	  columns = [{ header = "Name", accessor = "name", type = "text" }]
//	  rows    = [["Alice"], ["Bob"]]
//	}
//
// Cells are raw text and go through the column codec.
func TableFromCty(v cty.Value) (*Table, error) {
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("table must be an object, got %s", ty.FriendlyName())
	}
	attrs := v.AsValueMap()

	var columns []Column
	if cols, ok := attrs["columns"]; ok && !cols.IsNull() {
		if !cols.CanIterateElements() {
			return nil, fmt.Errorf("table columns must be a list")
		}
		for it := cols.ElementIterator(); it.Next(); {
			_, cv := it.Element()
			col, err := columnFromCty(cv)
			if err != nil {
				return nil, fmt.Errorf("column %d: %w", len(columns), err)
			}
			columns = append(columns, col)
		}
	}

	var raw [][]string
	if rows, ok := attrs["rows"]; ok && !rows.IsNull() {
		if !rows.CanIterateElements() {
			return nil, fmt.Errorf("table rows must be a list")
		}
		for it := rows.ElementIterator(); it.Next(); {
			_, rv := it.Element()
			if !rv.CanIterateElements() {
				return nil, fmt.Errorf("row %d must be a list of cells", len(raw))
			}
			var cells []string
			for cit := rv.ElementIterator(); cit.Next(); {
				_, cell := cit.Element()
				s, err := cellText(cell)
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", len(raw), err)
				}
				cells = append(cells, s)
			}
			raw = append(raw, cells)
		}
	}

	return NewTable(columns, raw), nil
}

// ToCty is the inverse of TableFromCty; cells are written as their WriteValue.
func (t *Table) ToCty() cty.Value {
	cols := make([]cty.Value, 0, len(t.Columns))
	for _, c := range t.Columns {
		cols = append(cols, cty.ObjectVal(map[string]cty.Value{
			"header":   cty.StringVal(c.Header),
			"accessor": cty.StringVal(c.Accessor),
			"type":     cty.StringVal(string(c.Type)),
		}))
	}
	rows := make([]cty.Value, 0, len(t.Rows))
	for _, r := range t.Rows {
		cells := make([]cty.Value, 0, len(t.Columns))
		for _, c := range t.Columns {
			cells = append(cells, cty.StringVal(r[c.Accessor].WriteValue))
		}
		rows = append(rows, cty.TupleVal(cells))
	}
	return cty.ObjectVal(map[string]cty.Value{
		"columns": cty.TupleVal(cols),
		"rows":    cty.TupleVal(rows),
	})
}

func columnFromCty(v cty.Value) (Column, error) {
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return Column{}, fmt.Errorf("must be an object")
	}
	attrs := v.AsValueMap()
	str := func(name string) (string, error) {
		a, ok := attrs[name]
		if !ok || a.IsNull() {
			return "", nil
		}
		return cellText(a)
	}

	accessor, err := str("accessor")
	if err != nil {
		return Column{}, err
	}
	if accessor == "" {
		return Column{}, fmt.Errorf("accessor is required")
	}
	header, err := str("header")
	if err != nil {
		return Column{}, err
	}
	if header == "" {
		header = accessor
	}
	typeName, err := str("type")
	if err != nil {
		return Column{}, err
	}
	ct, err := ParseColumnType(typeName)
	if err != nil {
		return Column{}, err
	}
	return Column{Header: header, Accessor: accessor, Type: ct}, nil
}

func cellText(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", nil
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("cell must be text: %w", err)
	}
	return s.AsString(), nil
}
