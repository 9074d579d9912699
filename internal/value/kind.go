package value

import (
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
)

// Kind enumerates the value kinds a bus can carry.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindTable
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindTable:
		return "table"
	case KindFunction:
		return "function"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TableType is the cty capsule type wrapping a *Table.
var TableType = cty.CapsuleWithOps("table", reflect.TypeOf(Table{}), &cty.CapsuleOps{
	GoString: func(v any) string {
		return fmt.Sprintf("value.TableVal(%#v)", v)
	},
	TypeGoString: func(reflect.Type) string {
		return "value.TableType"
	},
	Equals: func(a, b any) cty.Value {
		return cty.BoolVal(reflect.DeepEqual(a, b))
	},
	RawEquals: func(a, b any) bool {
		return reflect.DeepEqual(a, b)
	},
})

// FunctionType is the cty capsule type wrapping a *Function.
var FunctionType = cty.CapsuleWithOps("function", reflect.TypeOf(Function{}), &cty.CapsuleOps{
	GoString: func(v any) string {
		return fmt.Sprintf("value.FunctionVal(%s)", v.(*Function))
	},
	TypeGoString: func(reflect.Type) string {
		return "value.FunctionType"
	},
	Equals: func(a, b any) cty.Value {
		return cty.BoolVal(a.(*Function).sameAs(b.(*Function)))
	},
	RawEquals: func(a, b any) bool {
		return a.(*Function).sameAs(b.(*Function))
	},
})

// TableVal wraps t. The table must not be mutated after it has been wrapped.
func TableVal(t *Table) cty.Value {
	if t == nil {
		t = &Table{}
	}
	return cty.CapsuleVal(TableType, t)
}

// FunctionVal wraps f.
func FunctionVal(f *Function) cty.Value {
	return cty.CapsuleVal(FunctionType, f)
}

// KindOf reports the kind of v, or false if v is not one of the known kinds.
func KindOf(v cty.Value) (Kind, bool) {
	if v == cty.NilVal {
		return 0, false
	}
	ty := v.Type()
	switch {
	case ty.Equals(cty.String):
		return KindString, true
	case ty.Equals(cty.Number):
		return KindNumber, true
	case ty.Equals(TableType):
		return KindTable, true
	case ty.Equals(FunctionType):
		return KindFunction, true
	}
	return 0, false
}

// AsFloat returns the number held by v. Null numbers read as zero.
func AsFloat(v cty.Value) (float64, error) {
	if v.IsNull() {
		return 0, nil
	}
	if !v.Type().Equals(cty.Number) {
		return 0, fmt.Errorf("expected number, got %s", v.Type().FriendlyName())
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}

// AsString returns the string held by v. Null strings read as "".
func AsString(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", nil
	}
	if !v.Type().Equals(cty.String) {
		return "", fmt.Errorf("expected string, got %s", v.Type().FriendlyName())
	}
	return v.AsString(), nil
}

// AsTable returns the table held by v. Null tables read as an empty table.
func AsTable(v cty.Value) (*Table, error) {
	if v.IsNull() {
		return &Table{}, nil
	}
	if !v.Type().Equals(TableType) {
		return nil, fmt.Errorf("expected table, got %s", v.Type().FriendlyName())
	}
	return v.EncapsulatedValue().(*Table), nil
}

// AsFunction returns the function held by v.
func AsFunction(v cty.Value) (*Function, error) {
	if v.IsNull() {
		return nil, fmt.Errorf("function value is null")
	}
	if !v.Type().Equals(FunctionType) {
		return nil, fmt.Errorf("expected function, got %s", v.Type().FriendlyName())
	}
	return v.EncapsulatedValue().(*Function), nil
}

// Equal reports whether a and b hold the same value, treating two NilVals as equal.
func Equal(a, b cty.Value) bool {
	if a == cty.NilVal || b == cty.NilVal {
		return a == cty.NilVal && b == cty.NilVal
	}
	if !a.Type().Equals(b.Type()) {
		return false
	}
	return a.RawEquals(b)
}
