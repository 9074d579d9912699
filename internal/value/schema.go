package value

import (
	"errors"
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// ErrNotFinite is returned for numbers that have no float64 representation,
// such as the result of an overflowing computation.
var ErrNotFinite = errors.New("number is not finite")

// Schema describes the values a bus accepts and the value it holds when
// nothing has been supplied.
type Schema struct {
	Kind    Kind
	Default cty.Value
}

// String returns a string schema defaulting to def.
func String(def string) Schema {
	return Schema{Kind: KindString, Default: cty.StringVal(def)}
}

// Number returns a number schema defaulting to def.
func Number(def float64) Schema {
	return Schema{Kind: KindNumber, Default: cty.NumberFloatVal(def)}
}

// TableOf returns a table schema defaulting to def, or to an empty table when def is nil.
func TableOf(def *Table) Schema {
	return Schema{Kind: KindTable, Default: TableVal(def)}
}

// FunctionOf returns a function schema defaulting to def. A nil def leaves
// the default null, which fails validation downstream until a producer is wired.
func FunctionOf(def *Function) Schema {
	if def == nil {
		return Schema{Kind: KindFunction, Default: cty.NullVal(FunctionType)}
	}
	return Schema{Kind: KindFunction, Default: FunctionVal(def)}
}

// Type returns the cty type values of this schema are converted to.
func (s Schema) Type() cty.Type {
	switch s.Kind {
	case KindString:
		return cty.String
	case KindNumber:
		return cty.Number
	case KindTable:
		return TableType
	case KindFunction:
		return FunctionType
	default:
		return cty.DynamicPseudoType
	}
}

// Validate coerces v to the schema's type. A null or absent value yields the default.
func (s Schema) Validate(v cty.Value) (cty.Value, error) {
	if v.IsNull() {
		if s.Kind == KindFunction && s.Default.IsNull() {
			return cty.NilVal, fmt.Errorf("a function value is required")
		}
		return s.Default, nil
	}
	if !v.IsWhollyKnown() {
		return cty.NilVal, fmt.Errorf("value is not known")
	}

	switch s.Kind {
	case KindString, KindNumber:
		out, err := convert.Convert(v, s.Type())
		if err != nil {
			return cty.NilVal, fmt.Errorf("expected %s: %w", s.Kind, err)
		}
		if s.Kind == KindNumber && !finite(out) {
			return cty.NilVal, fmt.Errorf("%w: %s", ErrNotFinite, out.AsBigFloat().Text('g', 10))
		}
		return out, nil

	case KindTable:
		ty := v.Type()
		if ty.Equals(TableType) {
			return v, nil
		}
		if ty.IsObjectType() || ty.IsMapType() {
			t, err := TableFromCty(v)
			if err != nil {
				return cty.NilVal, err
			}
			return TableVal(t), nil
		}
		return cty.NilVal, fmt.Errorf("expected table, got %s", ty.FriendlyName())

	case KindFunction:
		if v.Type().Equals(FunctionType) {
			return v, nil
		}
		return cty.NilVal, fmt.Errorf("expected function, got %s", v.Type().FriendlyName())
	}

	return cty.NilVal, fmt.Errorf("unsupported schema kind %s", s.Kind)
}

// finite reports whether v survives conversion to float64, which is how
// numbers leave the graph.
func finite(v cty.Value) bool {
	bf := v.AsBigFloat()
	if bf.IsInf() {
		return false
	}
	f, _ := bf.Float64()
	return !math.IsInf(f, 0)
}
