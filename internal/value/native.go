package value

import (
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Native converts v into a plain Go value suitable for JSON encoding:
// string, float64, *Table, a function's description, or nil.
func Native(v cty.Value) any {
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() {
		return nil
	}
	switch k, ok := KindOf(v); {
	case !ok:
		return v.GoString()
	case k == KindString:
		return v.AsString()
	case k == KindNumber:
		f, _ := v.AsBigFloat().Float64()
		return f
	case k == KindTable:
		return v.EncapsulatedValue().(*Table)
	default:
		return v.EncapsulatedValue().(*Function).String()
	}
}

// Display renders v as text for terminals and logs.
func Display(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return "(null)"
	}
	switch k, ok := KindOf(v); {
	case !ok:
		return v.GoString()
	case k == KindString:
		return v.AsString()
	case k == KindNumber:
		f, _ := v.AsBigFloat().Float64()
		return strconv.FormatFloat(f, 'f', -1, 64)
	case k == KindTable:
		var sb strings.Builder
		for i, line := range v.EncapsulatedValue().(*Table).Matrix() {
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(strings.Join(line, " | "))
		}
		return sb.String()
	default:
		return v.EncapsulatedValue().(*Function).String()
	}
}
