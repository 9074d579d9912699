package value

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Function is a first-class value produced by one node and applied by another.
// Source is the human-readable definition and, together with Params, is what
// makes two functions equal.
type Function struct {
	Params []string
	Source string
	Call   func(args map[string]cty.Value) (cty.Value, error)
}

// Invoke calls f with positional arguments bound to its parameters.
func (f *Function) Invoke(args ...cty.Value) (cty.Value, error) {
	if f == nil || f.Call == nil {
		return cty.NilVal, fmt.Errorf("function has no body")
	}
	if len(args) != len(f.Params) {
		return cty.NilVal, fmt.Errorf("function takes %d argument(s), got %d", len(f.Params), len(args))
	}
	bound := make(map[string]cty.Value, len(args))
	for i, p := range f.Params {
		bound[p] = args[i]
	}
	return f.Call(bound)
}

func (f *Function) String() string {
	if f == nil {
		return "fn()"
	}
	return fmt.Sprintf("fn(%s) = %s", strings.Join(f.Params, ", "), f.Source)
}

func (f *Function) sameAs(other *Function) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.Source != other.Source || len(f.Params) != len(other.Params) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != other.Params[i] {
			return false
		}
	}
	return true
}
