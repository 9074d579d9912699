package formula

import (
	"fmt"
	"slices"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Functions are the functions callable from formula and lambda expressions.
var Functions = map[string]function.Function{
	"abs":       stdlib.AbsoluteFunc,
	"ceil":      stdlib.CeilFunc,
	"floor":     stdlib.FloorFunc,
	"int":       stdlib.IntFunc,
	"log":       stdlib.LogFunc,
	"max":       stdlib.MaxFunc,
	"min":       stdlib.MinFunc,
	"parseint":  stdlib.ParseIntFunc,
	"pow":       stdlib.PowFunc,
	"signum":    stdlib.SignumFunc,
	"format":    stdlib.FormatFunc,
	"lower":     stdlib.LowerFunc,
	"upper":     stdlib.UpperFunc,
	"strlen":    stdlib.StrlenFunc,
	"substr":    stdlib.SubstrFunc,
	"trimspace": stdlib.TrimSpaceFunc,
}

// Expression is a parsed HCL native-syntax expression together with the
// variables and functions it refers to.
type Expression struct {
	Source string

	expr      hclsyntax.Expression
	variables []string
	functions []string
}

// Parse parses src and checks that every function it calls is known.
func Parse(src string) (*Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "formula", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %q: %s", src, diags.Error())
	}
	e := &Expression{Source: src, expr: expr}
	e.variables, e.functions = references(expr)
	for _, name := range e.functions {
		if _, ok := Functions[name]; !ok {
			return nil, fmt.Errorf("%q calls unknown function %q", src, name)
		}
	}
	return e, nil
}

// Variables returns the sorted root names the expression reads.
func (e *Expression) Variables() []string {
	return slices.Clone(e.variables)
}

// Check fails if the expression reads a variable outside allowed.
func (e *Expression) Check(allowed ...string) error {
	for _, v := range e.variables {
		if !slices.Contains(allowed, v) {
			return fmt.Errorf("%q refers to unknown variable %q", e.Source, v)
		}
	}
	return nil
}

// Eval evaluates the expression with vars in scope.
func (e *Expression) Eval(vars map[string]cty.Value) (cty.Value, error) {
	v, diags := e.expr.Value(&hcl.EvalContext{Variables: vars, Functions: Functions})
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("evaluating %q: %s", e.Source, diags.Error())
	}
	if !v.IsWhollyKnown() {
		return cty.NilVal, fmt.Errorf("evaluating %q: result is not known", e.Source)
	}
	return v, nil
}

// references collects the unique root variable names and called function
// names of expr, both sorted.
func references(expr hclsyntax.Expression) ([]string, []string) {
	vars := make(map[string]struct{})
	for _, traversal := range expr.Variables() {
		vars[traversal.RootName()] = struct{}{}
	}

	funcs := make(map[string]struct{})
	hclsyntax.VisitAll(expr, func(n hclsyntax.Node) hcl.Diagnostics {
		if call, ok := n.(*hclsyntax.FunctionCallExpr); ok {
			funcs[call.Name] = struct{}{}
		}
		return nil
	})

	return sortedSet(vars), sortedSet(funcs)
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
