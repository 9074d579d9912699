package tables

import (
	"fmt"

	"github.com/specialistvlad/gridflow/internal/value"
)

// Join kinds.
const (
	JoinInner = "inner"
	JoinLeft  = "left"
)

// Join matches rows of left and right whose key cells have equal write
// values. The result has every left column followed by every right column
// except the right key. A right accessor that collides with a left one is
// renamed with a "right_" prefix. A left join keeps unmatched left rows with
// blank right cells.
//
// When either key is empty the left table is returned unchanged.
func Join(left, right *value.Table, leftKey, rightKey, kind string) (*value.Table, error) {
	if kind != JoinInner && kind != JoinLeft {
		return nil, fmt.Errorf("join: unknown kind %q", kind)
	}
	if leftKey == "" || rightKey == "" {
		return left.Clone(), nil
	}
	if _, ok := left.Column(leftKey); !ok {
		return nil, fmt.Errorf("join: left table has no column %q", leftKey)
	}
	if _, ok := right.Column(rightKey); !ok {
		return nil, fmt.Errorf("join: right table has no column %q", rightKey)
	}

	out := &value.Table{Columns: append([]value.Column(nil), left.Columns...)}
	taken := make(map[string]bool, len(left.Columns))
	for _, c := range left.Columns {
		taken[c.Accessor] = true
	}
	// rename maps a right accessor to its accessor in the result.
	rename := make(map[string]string, len(right.Columns))
	for _, c := range right.Columns {
		if c.Accessor == rightKey {
			continue
		}
		accessor := c.Accessor
		for taken[accessor] {
			accessor = "right_" + accessor
		}
		taken[accessor] = true
		rename[c.Accessor] = accessor
		out.Columns = append(out.Columns, value.Column{Header: c.Header, Accessor: accessor, Type: c.Type})
	}

	index := make(map[string][]value.Row)
	for _, r := range right.Rows {
		k := r[rightKey].WriteValue
		index[k] = append(index[k], r)
	}

	for _, l := range left.Rows {
		matches := index[l[leftKey].WriteValue]
		if len(matches) == 0 {
			if kind == JoinLeft {
				row := copyRow(l, len(out.Columns))
				for _, c := range right.Columns {
					if to, ok := rename[c.Accessor]; ok {
						row[to] = value.Parse("", c.Type)
					}
				}
				out.Rows = append(out.Rows, row)
			}
			continue
		}
		for _, r := range matches {
			row := copyRow(l, len(out.Columns))
			for from, to := range rename {
				row[to] = r[from]
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func copyRow(r value.Row, size int) value.Row {
	out := make(value.Row, size)
	for k, v := range r {
		out[k] = v
	}
	return out
}
