package app

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// Override replaces one source value of a labelled node.
type Override struct {
	Label string
	Slot  string
	Value cty.Value
}

// ParseOverride parses "label.slot=value". The value is read as an HCL
// literal (10, "text", {columns = [...]}); anything that is not a literal is
// taken as a bare string, so label.column=name works without quoting.
func ParseOverride(s string) (Override, error) {
	target, raw, ok := strings.Cut(s, "=")
	if !ok {
		return Override{}, fmt.Errorf("invalid set %q: expected label.slot=value", s)
	}
	label, slot, ok := strings.Cut(strings.TrimSpace(target), ".")
	if !ok || !hclsyntax.ValidIdentifier(label) || slot == "" {
		return Override{}, fmt.Errorf("invalid set %q: expected label.slot=value", s)
	}
	return Override{Label: label, Slot: slot, Value: literal(raw)}, nil
}

func literal(raw string) cty.Value {
	expr, diags := hclsyntax.ParseExpression([]byte(raw), "set", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.StringVal(raw)
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() || v.IsNull() {
		return cty.StringVal(raw)
	}
	return v
}
