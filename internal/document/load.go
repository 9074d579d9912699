package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/store"
	"github.com/zclconf/go-cty/cty"
)

// ErrInvalidDocument matches every structural problem in a document, as
// opposed to an error returned by the store while replaying it.
var ErrInvalidDocument = errors.New("invalid grid document")

type fileSchema struct {
	Nodes []*nodeBlock `hcl:"node,block"`
	Edges []*edgeBlock `hcl:"edge,block"`
}

type nodeBlock struct {
	Label    string         `hcl:"label,label"`
	Type     string         `hcl:"type"`
	Position []float64      `hcl:"position,optional"`
	Sources  hcl.Expression `hcl:"sources,optional"`
}

type edgeBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// Document is the result of loading grid files into a store.
type Document struct {
	Files []string

	// IDs maps document labels to store node ids.
	IDs map[string]string
	// Edges holds the ids of the edges created, in document order.
	Edges []string
}

// ID returns the store id of the node declared with label.
func (d *Document) ID(label string) (string, bool) {
	id, ok := d.IDs[label]
	return id, ok
}

// Labels returns the inverse of IDs, suitable for Encode.
func (d *Document) Labels() map[string]string {
	out := make(map[string]string, len(d.IDs))
	for label, id := range d.IDs {
		out[id] = label
	}
	return out
}

// Load parses the grid files at path and replays them into st. On any error
// the nodes added so far are removed again, leaving st as it was.
func Load(ctx context.Context, path string, st *store.Store) (*Document, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := ResolvePath(ctx, path)
	if err != nil {
		return nil, err
	}

	parser := hclparse.NewParser()
	var (
		nodes []*nodeBlock
		edges []*edgeBlock
	)
	for _, file := range files {
		f, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: failed to parse %s: %s", ErrInvalidDocument, file, diags.Error())
		}
		var schema fileSchema
		if diags := gohcl.DecodeBody(f.Body, nil, &schema); diags.HasErrors() {
			return nil, fmt.Errorf("%w: failed to decode %s: %s", ErrInvalidDocument, file, diags.Error())
		}
		logger.Debug("Decoded grid file.", "path", file, "nodes", len(schema.Nodes), "edges", len(schema.Edges))
		nodes = append(nodes, schema.Nodes...)
		edges = append(edges, schema.Edges...)
	}

	doc := &Document{Files: files, IDs: make(map[string]string, len(nodes))}
	if err := doc.replay(ctx, st, nodes, edges); err != nil {
		for _, id := range doc.IDs {
			st.DeleteNode(ctx, id)
		}
		return nil, err
	}

	logger.Info("Grid loaded.", "files", len(files), "nodes", len(doc.IDs), "edges", len(doc.Edges))
	return doc, nil
}

func (d *Document) replay(ctx context.Context, st *store.Store, nodes []*nodeBlock, edges []*edgeBlock) error {
	for _, nb := range nodes {
		if !hclsyntax.ValidIdentifier(nb.Label) {
			return fmt.Errorf("%w: node label %q is not a valid identifier", ErrInvalidDocument, nb.Label)
		}
		if _, dup := d.IDs[nb.Label]; dup {
			return fmt.Errorf("%w: duplicate node %q", ErrInvalidDocument, nb.Label)
		}
		pos, err := position(nb)
		if err != nil {
			return err
		}
		sources, err := sourceValues(nb)
		if err != nil {
			return err
		}
		id, err := st.AddNode(ctx, nb.Type, pos, sources)
		if err != nil {
			return fmt.Errorf("node %q: %w", nb.Label, err)
		}
		d.IDs[nb.Label] = id
	}

	for _, eb := range edges {
		from, err := d.endpoint(eb.From)
		if err != nil {
			return err
		}
		to, err := d.endpoint(eb.To)
		if err != nil {
			return err
		}
		id, err := st.AddEdge(ctx, from, to)
		if err != nil {
			return fmt.Errorf("edge %s -> %s: %w", eb.From, eb.To, err)
		}
		d.Edges = append(d.Edges, id)
	}
	return nil
}

// endpoint resolves "label.bus" to a store endpoint.
func (d *Document) endpoint(ref string) (node.Endpoint, error) {
	label, bus, ok := strings.Cut(ref, ".")
	if !ok || label == "" || bus == "" {
		return node.Endpoint{}, fmt.Errorf("%w: endpoint %q must have the form label.bus", ErrInvalidDocument, ref)
	}
	id, ok := d.IDs[label]
	if !ok {
		return node.Endpoint{}, fmt.Errorf("%w: endpoint %q refers to undeclared node %q", ErrInvalidDocument, ref, label)
	}
	return node.Endpoint{NodeID: id, Bus: bus}, nil
}

func position(nb *nodeBlock) (node.Position, error) {
	switch len(nb.Position) {
	case 0:
		return node.Position{}, nil
	case 2:
		return node.Position{X: nb.Position[0], Y: nb.Position[1]}, nil
	}
	return node.Position{}, fmt.Errorf("%w: node %q: position must be [x, y]", ErrInvalidDocument, nb.Label)
}

func sourceValues(nb *nodeBlock) (map[string]cty.Value, error) {
	if nb.Sources == nil {
		return nil, nil
	}
	v, diags := nb.Sources.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: node %q: %s", ErrInvalidDocument, nb.Label, diags.Error())
	}
	if v.IsNull() {
		return nil, nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, fmt.Errorf("%w: node %q: sources must be an object", ErrInvalidDocument, nb.Label)
	}
	return v.AsValueMap(), nil
}
