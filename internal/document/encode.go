package document

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/store"
	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Encode writes snap as a grid document. labels maps node ids to the labels
// to write; nodes without a usable label are named node_1, node_2 and so on.
// Output caches and errors are not persisted.
func Encode(snap *store.Snapshot, labels map[string]string) ([]byte, error) {
	names := assignLabels(snap, labels)

	f := hclwrite.NewEmptyFile()
	body := f.Body()

	for i, n := range snap.Nodes {
		if i > 0 {
			body.AppendNewline()
		}
		blk := body.AppendNewBlock("node", []string{names[n.ID]})
		nb := blk.Body()
		nb.SetAttributeValue("type", cty.StringVal(n.Type))
		nb.SetAttributeValue("position", cty.TupleVal([]cty.Value{
			cty.NumberFloatVal(n.Position.X),
			cty.NumberFloatVal(n.Position.Y),
		}))
		sources, err := encodeSources(n)
		if err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			nb.SetAttributeValue("sources", cty.ObjectVal(sources))
		}
	}

	for _, e := range snap.Edges {
		body.AppendNewline()
		eb := body.AppendNewBlock("edge", nil).Body()
		eb.SetAttributeValue("from", cty.StringVal(ref(names, e.From)))
		eb.SetAttributeValue("to", cty.StringVal(ref(names, e.To)))
	}

	return f.Bytes(), nil
}

// Save encodes snap and writes it to path.
func Save(path string, snap *store.Snapshot, labels map[string]string) error {
	b, err := Encode(snap, labels)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write grid file %s: %w", path, err)
	}
	return nil
}

func assignLabels(snap *store.Snapshot, labels map[string]string) map[string]string {
	names := make(map[string]string, len(snap.Nodes))
	taken := make(map[string]bool, len(snap.Nodes))
	for _, n := range snap.Nodes {
		l, ok := labels[n.ID]
		if ok && hclsyntax.ValidIdentifier(l) && !taken[l] {
			names[n.ID] = l
			taken[l] = true
		}
	}
	next := 1
	for _, n := range snap.Nodes {
		if _, ok := names[n.ID]; ok {
			continue
		}
		for taken["node_"+strconv.Itoa(next)] {
			next++
		}
		l := "node_" + strconv.Itoa(next)
		names[n.ID] = l
		taken[l] = true
	}
	return names
}

func ref(names map[string]string, ep node.Endpoint) string {
	return names[ep.NodeID] + "." + ep.Bus
}

func encodeSources(n *node.Node) (map[string]cty.Value, error) {
	keys := make([]string, 0, len(n.SourceValues))
	for k := range n.SourceValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]cty.Value, len(keys))
	for _, k := range keys {
		v := n.SourceValues[k]
		if v == cty.NilVal || v.IsNull() {
			continue
		}
		kind, ok := value.KindOf(v)
		if !ok {
			return nil, fmt.Errorf("node %s: source %q has unsupported type %s", n.ID, k, v.Type().FriendlyName())
		}
		switch kind {
		case value.KindTable:
			t, err := value.AsTable(v)
			if err != nil {
				return nil, fmt.Errorf("node %s: source %q: %w", n.ID, k, err)
			}
			out[k] = t.ToCty()
		case value.KindFunction:
			return nil, fmt.Errorf("node %s: source %q holds a function, which cannot be saved", n.ID, k)
		default:
			out[k] = v
		}
	}
	return out, nil
}
