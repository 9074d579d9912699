package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/gridflow/internal/engine"
	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/store"
	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/specialistvlad/gridflow/modules/arith"
	"github.com/specialistvlad/gridflow/modules/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const sumGrid = `
node "a" {
  type     = "number"
  position = [10, 20]
  sources  = { number = 10 }
}

node "b" {
  type    = "number"
  sources = { number = 5 }
}

node "sum" {
  type = "add"
}

node "total" {
  type = "output"
}

edge {
  from = "a.number"
  to   = "sum.left"
}

edge {
  from = "b.number"
  to   = "sum.right"
}

edge {
  from = "sum.sum"
  to   = "total.value"
}
`

func newStore() *store.Store {
	return store.New(registry.New(&arith.Module{}, &tables.Module{}))
}

func writeGrid(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolvePath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeGrid(t, dir, "b.hcl", "")
	writeGrid(t, dir, "notes.txt", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	writeGrid(t, filepath.Join(dir, "sub"), "a.hcl", "")

	t.Run("directory is scanned recursively", func(t *testing.T) {
		files, err := ResolvePath(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "b.hcl"), filepath.Join(dir, "sub", "a.hcl")}, files)
	})

	t.Run("single file", func(t *testing.T) {
		files, err := ResolvePath(ctx, filepath.Join(dir, "b.hcl"))
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("wrong extension", func(t *testing.T) {
		_, err := ResolvePath(ctx, filepath.Join(dir, "notes.txt"))
		assert.ErrorContains(t, err, "not an .hcl file")
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := ResolvePath(ctx, filepath.Join(dir, "missing"))
		assert.ErrorContains(t, err, "grid path not found")
	})
}

func TestLoad_EvaluatesLoadedGraph(t *testing.T) {
	ctx := context.Background()
	path := writeGrid(t, t.TempDir(), "sum.hcl", sumGrid)
	st := newStore()

	doc, err := Load(ctx, path, st)
	require.NoError(t, err)
	assert.Len(t, doc.IDs, 4)
	assert.Len(t, doc.Edges, 3)

	aID, ok := doc.ID("a")
	require.True(t, ok)
	a, ok := st.GetNode(aID)
	require.True(t, ok)
	assert.Equal(t, node.Position{X: 10, Y: 20}, a.Position)

	_, err = engine.New(st.Registry(), st).Evaluate(ctx)
	require.NoError(t, err)

	totalID, _ := doc.ID("total")
	total, _ := st.GetNode(totalID)
	f, err := value.AsFloat(total.OutputCache["value"])
	require.NoError(t, err)
	assert.Equal(t, 15.0, f)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr string
		invalid bool
	}{
		{
			name:    "syntax error",
			content: `node "a" {`,
			wantErr: "failed to parse",
			invalid: true,
		},
		{
			name:    "missing type",
			content: `node "a" {}`,
			wantErr: "failed to decode",
			invalid: true,
		},
		{
			name:    "duplicate label",
			content: "node \"a\" {\n type = \"number\"\n}\nnode \"a\" {\n type = \"number\"\n}\n",
			wantErr: `duplicate node "a"`,
			invalid: true,
		},
		{
			name:    "bad position",
			content: "node \"a\" {\n type = \"number\"\n position = [1]\n}\n",
			wantErr: "position must be [x, y]",
			invalid: true,
		},
		{
			name:    "unknown node type",
			content: "node \"a\" {\n type = \"nope\"\n}\n",
			wantErr: `node "a"`,
		},
		{
			name:    "bad source value",
			content: "node \"a\" {\n type = \"number\"\n sources = { number = \"ten\" }\n}\n",
			wantErr: "invalid source value",
		},
		{
			name:    "undeclared endpoint",
			content: "node \"a\" {\n type = \"number\"\n}\nedge {\n from = \"a.number\"\n to = \"b.value\"\n}\n",
			wantErr: `undeclared node "b"`,
			invalid: true,
		},
		{
			name:    "malformed endpoint",
			content: "node \"a\" {\n type = \"number\"\n}\nedge {\n from = \"a\"\n to = \"a.number\"\n}\n",
			wantErr: "must have the form label.bus",
			invalid: true,
		},
		{
			name:    "edge into a producer",
			content: "node \"a\" {\n type = \"number\"\n}\nnode \"b\" {\n type = \"number\"\n}\nedge {\n from = \"a.number\"\n to = \"b.number\"\n}\n",
			wantErr: "edge a.number -> b.number",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			path := writeGrid(t, t.TempDir(), "grid.hcl", tc.content)
			st := newStore()

			doc, err := Load(ctx, path, st)
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.ErrorContains(t, err, tc.wantErr)
			assert.Equal(t, tc.invalid, errors.Is(err, ErrInvalidDocument))
			assert.Empty(t, st.AllNodes(), "a failed load must leave the store empty")
			assert.Empty(t, st.AllEdges())
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := newStore()

	doc, err := Load(ctx, writeGrid(t, dir, "sum.hcl", sumGrid), st)
	require.NoError(t, err)

	people := value.NewTable(
		[]value.Column{
			{Header: "Name", Accessor: "name", Type: value.ColumnText},
			{Header: "Sales", Accessor: "sales", Type: value.ColumnCurrency},
		},
		[][]string{{"Alice", "$1,200.50"}, {"Bob", ""}},
	)
	tableID, err := st.AddNode(ctx, registry.TypeTable, node.Position{X: 3, Y: 4}, map[string]cty.Value{
		"table": value.TableVal(people),
	})
	require.NoError(t, err)

	out := filepath.Join(dir, "saved", "grid.hcl")
	require.NoError(t, os.Mkdir(filepath.Dir(out), 0o755))
	require.NoError(t, Save(out, st.Snapshot(), doc.Labels()))

	reloaded := newStore()
	doc2, err := Load(ctx, out, reloaded)
	require.NoError(t, err)

	for _, label := range []string{"a", "b", "sum", "total", "node_1"} {
		_, ok := doc2.ID(label)
		assert.True(t, ok, "label %q should survive the round trip", label)
	}
	assert.Len(t, reloaded.AllEdges(), 3)

	aID, _ := doc2.ID("a")
	a, _ := reloaded.GetNode(aID)
	n, err := value.AsFloat(a.SourceValues["number"])
	require.NoError(t, err)
	assert.Equal(t, 10.0, n)
	assert.Equal(t, node.Position{X: 10, Y: 20}, a.Position)

	tID, _ := doc2.ID("node_1")
	tn, _ := reloaded.GetNode(tID)
	got, err := value.AsTable(tn.SourceValues["table"])
	require.NoError(t, err)
	original, _ := st.GetNode(tableID)
	want, _ := value.AsTable(original.SourceValues["table"])
	assert.Equal(t, want.Columns, got.Columns)
	assert.Equal(t, want.Matrix(), got.Matrix())
}

func TestEncode_LabelsFallback(t *testing.T) {
	ctx := context.Background()
	st := newStore()
	first, err := st.AddNode(ctx, registry.TypeNumber, node.Position{}, nil)
	require.NoError(t, err)
	second, err := st.AddNode(ctx, registry.TypeNumber, node.Position{}, nil)
	require.NoError(t, err)
	_, err = st.AddNode(ctx, registry.TypeOutput, node.Position{}, nil)
	require.NoError(t, err)

	b, err := Encode(st.Snapshot(), map[string]string{
		first:  "node_1",
		second: "not valid!",
	})
	require.NoError(t, err)

	text := string(b)
	assert.Contains(t, text, `node "node_1"`)
	assert.Contains(t, text, `node "node_2"`)
	assert.Contains(t, text, `node "node_3"`)
	assert.NotContains(t, text, "not valid!")
}
