// Package formula provides the expression node types. formula evaluates an
// HCL expression over its a and b inputs, lambda turns an expression into a
// function value, and map_column applies such a function to every cell of a
// table column.
package formula

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the node types with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.NodeType{
		Name:        registry.TypeFormula,
		Description: "Evaluates an expression over a and b.",
		Inputs: map[string]value.Schema{
			"a": value.Number(0),
			"b": value.Number(0),
		},
		Sources: map[string]value.Schema{"expression": value.String("a + b")},
		Outputs: map[string]registry.Output{
			"result": {Schema: value.Number(0), Compute: computeFormula},
		},
	})

	r.Register(&registry.NodeType{
		Name:        registry.TypeLambda,
		Description: "Defines a function of its parameters.",
		Sources: map[string]value.Schema{
			"param":      value.String("x"),
			"expression": value.String("x"),
		},
		Outputs: map[string]registry.Output{
			"fn": {Schema: value.FunctionOf(Identity()), Compute: computeLambda},
		},
	})

	r.Register(&registry.NodeType{
		Name:        registry.TypeMapColumn,
		Description: "Applies a function to every cell of a column.",
		Inputs: map[string]value.Schema{
			"table": value.TableOf(nil),
			"fn":    value.FunctionOf(Identity()),
		},
		Sources: map[string]value.Schema{
			"column": value.String(""),
			"target": value.String(""),
		},
		Outputs: map[string]registry.Output{
			"table": {Schema: value.TableOf(nil), Compute: computeMapColumn},
		},
	})
}

func computeFormula(_ context.Context, in registry.Inputs) (cty.Value, error) {
	src, err := in.String("expression")
	if err != nil {
		return cty.NilVal, err
	}
	expr, err := Parse(src)
	if err != nil {
		return cty.NilVal, err
	}
	if err := expr.Check("a", "b"); err != nil {
		return cty.NilVal, err
	}
	return expr.Eval(map[string]cty.Value{"a": in["a"], "b": in["b"]})
}

func computeLambda(_ context.Context, in registry.Inputs) (cty.Value, error) {
	param, err := in.String("param")
	if err != nil {
		return cty.NilVal, err
	}
	src, err := in.String("expression")
	if err != nil {
		return cty.NilVal, err
	}
	fn, err := Lambda(param, src)
	if err != nil {
		return cty.NilVal, err
	}
	return value.FunctionVal(fn), nil
}

func computeMapColumn(_ context.Context, in registry.Inputs) (cty.Value, error) {
	t, err := in.Table("table")
	if err != nil {
		return cty.NilVal, err
	}
	fn, err := in.Function("fn")
	if err != nil {
		return cty.NilVal, err
	}
	column, err := in.String("column")
	if err != nil {
		return cty.NilVal, err
	}
	target, err := in.String("target")
	if err != nil {
		return cty.NilVal, err
	}
	out, err := MapColumn(t, fn, column, target)
	if err != nil {
		return cty.NilVal, err
	}
	return value.TableVal(out), nil
}

// Lambda builds a function value from a comma-separated parameter list and
// an expression that may only read those parameters.
func Lambda(params, src string) (*value.Function, error) {
	var names []string
	for _, p := range strings.Split(params, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !hclsyntax.ValidIdentifier(p) {
			return nil, fmt.Errorf("lambda: %q is not a valid parameter name", p)
		}
		names = append(names, p)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("lambda: at least one parameter is required")
	}

	expr, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("lambda: %w", err)
	}
	if err := expr.Check(names...); err != nil {
		return nil, fmt.Errorf("lambda: %w", err)
	}
	return &value.Function{
		Params: names,
		Source: src,
		Call:   expr.Eval,
	}, nil
}

// Identity returns the function fn(x) = x.
func Identity() *value.Function {
	fn, err := Lambda("x", "x")
	if err != nil {
		panic(err)
	}
	return fn
}
