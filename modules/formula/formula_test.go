package formula

import (
	"context"
	"testing"

	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func number(t *testing.T, v cty.Value) float64 {
	t.Helper()
	f, err := value.AsFloat(v)
	require.NoError(t, err)
	return f
}

func TestParse(t *testing.T) {
	e, err := Parse("max(a, b) * 2 + abs(c)")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, e.Variables())
	assert.NoError(t, e.Check("a", "b", "c"))
	assert.ErrorContains(t, e.Check("a", "b"), `unknown variable "c"`)

	_, err = Parse("a +")
	assert.ErrorContains(t, err, "parsing")

	_, err = Parse("system(a)")
	assert.ErrorContains(t, err, `unknown function "system"`)
}

func TestFormulaNode(t *testing.T) {
	r := registry.New(&Module{})
	nt, err := r.Get(registry.TypeFormula)
	require.NoError(t, err)
	compute := nt.Outputs["result"].Compute

	testCases := []struct {
		expr string
		a, b float64
		want float64
	}{
		{"a + b", 2, 3, 5},
		{"a * b - 1", 4, 5, 19},
		{"pow(a, b)", 2, 10, 1024},
		{"a > b ? a : b", 7, 9, 9},
		{"floor(a / b)", 7, 2, 3},
	}
	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := compute(context.Background(), registry.Inputs{
				"a":          cty.NumberFloatVal(tc.a),
				"b":          cty.NumberFloatVal(tc.b),
				"expression": cty.StringVal(tc.expr),
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, number(t, got))
		})
	}

	_, err = compute(context.Background(), registry.Inputs{
		"a":          cty.NumberIntVal(1),
		"b":          cty.NumberIntVal(1),
		"expression": cty.StringVal("a + c"),
	})
	assert.ErrorContains(t, err, `unknown variable "c"`)
}

func TestLambda(t *testing.T) {
	fn, err := Lambda("x, y", "x * 10 + y")
	require.NoError(t, err)
	assert.Equal(t, "fn(x, y) = x * 10 + y", fn.String())

	got, err := fn.Invoke(cty.NumberIntVal(4), cty.NumberIntVal(2))
	require.NoError(t, err)
	assert.Equal(t, 42.0, number(t, got))

	_, err = Lambda("", "1")
	assert.ErrorContains(t, err, "at least one parameter")

	_, err = Lambda("1x", "1")
	assert.ErrorContains(t, err, "not a valid parameter name")

	_, err = Lambda("x", "x + y")
	assert.ErrorContains(t, err, `unknown variable "y"`)
}

func TestIdentityIsEqualAcrossCalls(t *testing.T) {
	assert.True(t, value.Equal(value.FunctionVal(Identity()), value.FunctionVal(Identity())))
}

func prices() *value.Table {
	return value.NewTable([]value.Column{
		{Header: "Item", Accessor: "item", Type: value.ColumnText},
		{Header: "Price", Accessor: "price", Type: value.ColumnCurrency},
	}, [][]string{
		{"tea", "$2.50"},
		{"cake", "$4"},
		{"water", ""},
		{"gift", "free"},
	})
}

func TestMapColumn(t *testing.T) {
	fn, err := Lambda("p", "p * 2")
	require.NoError(t, err)

	out, err := MapColumn(prices(), fn, "price", "double")
	require.NoError(t, err)

	col, ok := out.Column("double")
	require.True(t, ok)
	assert.Equal(t, value.ColumnNumber, col.Type)
	assert.Equal(t, "5", out.Rows[0]["double"].ReadValue)
	assert.Equal(t, 8.0, out.Rows[1]["double"].UnderlyingValue)
	assert.Nil(t, out.Rows[2]["double"].UnderlyingValue, "blank cells stay blank")
	assert.NotEmpty(t, out.Rows[3]["double"].Error, "parse errors carry over")

	// The source column is untouched.
	assert.Equal(t, "$2.5", out.Rows[0]["price"].ReadValue)
}

func TestMapColumn_InPlaceKeepsColumnType(t *testing.T) {
	fn, err := Lambda("p", "p + 1")
	require.NoError(t, err)

	out, err := MapColumn(prices(), fn, "price", "")
	require.NoError(t, err)
	assert.Len(t, out.Columns, 2)
	assert.Equal(t, "$3.5", out.Rows[0]["price"].ReadValue)
}

func TestMapColumn_TextResults(t *testing.T) {
	fn, err := Lambda("s", "upper(s)")
	require.NoError(t, err)

	out, err := MapColumn(prices(), fn, "item", "shout")
	require.NoError(t, err)
	col, _ := out.Column("shout")
	assert.Equal(t, value.ColumnText, col.Type)
	assert.Equal(t, "TEA", out.Rows[0]["shout"].ReadValue)
}

func TestMapColumn_PerCellErrors(t *testing.T) {
	fn, err := Lambda("s", "s * 2")
	require.NoError(t, err)

	out, err := MapColumn(prices(), fn, "item", "bad")
	require.NoError(t, err)
	assert.NotEmpty(t, out.Rows[0]["bad"].Error)
}

func TestMapColumn_Errors(t *testing.T) {
	_, err := MapColumn(prices(), Identity(), "cost", "")
	assert.ErrorContains(t, err, `unknown column "cost"`)

	two, err := Lambda("a, b", "a + b")
	require.NoError(t, err)
	_, err = MapColumn(prices(), two, "price", "")
	assert.ErrorContains(t, err, "one parameter")
}

func TestNodeDefaults(t *testing.T) {
	r := registry.New(&Module{})
	require.NotPanics(t, func() {
		_, _, err := r.InstantiateDefaults(registry.TypeMapColumn)
		require.NoError(t, err)
	})

	nt, err := r.Get(registry.TypeLambda)
	require.NoError(t, err)
	got, err := nt.Outputs["fn"].Compute(context.Background(), registry.Inputs{
		"param":      cty.StringVal("n"),
		"expression": cty.StringVal("n - 1"),
	})
	require.NoError(t, err)
	fn, err := value.AsFunction(got)
	require.NoError(t, err)
	res, err := fn.Invoke(cty.NumberIntVal(10))
	require.NoError(t, err)
	assert.Equal(t, 9.0, number(t, res))
}
