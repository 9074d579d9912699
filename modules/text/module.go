// Package text provides the text node type.
package text

import (
	"context"

	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the node type with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.NodeType{
		Name:        registry.TypeText,
		Description: "A user-entered string.",
		Sources:     map[string]value.Schema{"text": value.String("")},
		Outputs: map[string]registry.Output{
			"text": {
				Schema: value.String(""),
				Compute: func(_ context.Context, in registry.Inputs) (cty.Value, error) {
					return in["text"], nil
				},
			},
		},
	})
}
