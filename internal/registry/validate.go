package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/value"
)

// Names of the node types in the closed catalog.
const (
	TypeNumber    = "number"
	TypeText      = "text"
	TypeAdd       = "add"
	TypeSubtract  = "subtract"
	TypeMultiply  = "multiply"
	TypeDivide    = "divide"
	TypeOutput    = "output"
	TypeTable     = "table"
	TypeFilter    = "filter"
	TypeJoin      = "join"
	TypeAggregate = "aggregate"
	TypeFormula   = "formula"
	TypeLambda    = "lambda"
	TypeMapColumn = "map_column"
)

// KnownTypes is the closed catalog a production registry must match exactly.
var KnownTypes = []string{
	TypeNumber, TypeText,
	TypeAdd, TypeSubtract, TypeMultiply, TypeDivide, TypeOutput,
	TypeTable, TypeFilter, TypeJoin, TypeAggregate,
	TypeFormula, TypeLambda, TypeMapColumn,
}

// Validate performs a strict parity check between the registered node types
// and KnownTypes, and checks each definition for internal consistency.
func (r *Registry) Validate(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	known := make(map[string]struct{}, len(KnownTypes))
	for _, name := range KnownTypes {
		known[name] = struct{}{}
		if _, ok := r.types[name]; !ok {
			errs = append(errs, fmt.Sprintf("node type '%s' is part of the catalog but no module registered it", name))
		}
	}

	for _, name := range r.order {
		t := r.types[name]
		if _, ok := known[name]; !ok {
			errs = append(errs, fmt.Sprintf("node type '%s' is registered but not part of the catalog", name))
		}
		if len(t.Outputs) == 0 {
			logger.Warn("Node type declares no outputs; its nodes can never feed an edge except through sources.", "type", name)
		}
		for bus := range t.Inputs {
			if t.IsSource(bus) {
				errs = append(errs, fmt.Sprintf("node type '%s': bus '%s' is declared as both input and source", name, bus))
			}
		}
		for bus, out := range t.Outputs {
			if out.Compute == nil {
				errs = append(errs, fmt.Sprintf("node type '%s': output '%s' has no compute function", name, bus))
			}
		}
		errs = append(errs, checkDefaults(name, "input", t.Inputs)...)
		errs = append(errs, checkDefaults(name, "source", t.Sources)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validation passed.", "types", len(r.order))
	return nil
}

func checkDefaults(typeName, family string, slots map[string]value.Schema) []string {
	var errs []string
	for bus, s := range slots {
		if s.Kind == value.KindFunction && s.Default.IsNull() {
			continue
		}
		if _, err := s.Validate(s.Default); err != nil {
			errs = append(errs, fmt.Sprintf("node type '%s', %s '%s': default does not satisfy its own schema: %v", typeName, family, bus, err))
		}
	}
	return errs
}
