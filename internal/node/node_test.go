package node

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestEdge_ID(t *testing.T) {
	e := Edge{From: Endpoint{NodeID: "n-a", Bus: "sum"}, To: Endpoint{NodeID: "n-b", Bus: "left"}}
	assert.Equal(t, "n-a.sum->n-b.left", e.ID())
}

func TestNode_CloneIsIndependent(t *testing.T) {
	n := &Node{
		ID:           "n-1",
		Type:         "number",
		SourceValues: map[string]cty.Value{"number": cty.NumberIntVal(1)},
		OutputCache:  map[string]cty.Value{"number": cty.NumberIntVal(1)},
	}
	c := n.Clone()
	c.SourceValues["number"] = cty.NumberIntVal(2)
	c.OutputCache["extra"] = cty.StringVal("x")

	assert.True(t, n.SourceValues["number"].RawEquals(cty.NumberIntVal(1)))
	assert.NotContains(t, n.OutputCache, "extra")
}

func TestNode_MarshalJSON(t *testing.T) {
	n := &Node{
		ID:           "n-1",
		Type:         "number",
		Position:     Position{X: 10, Y: 20},
		SourceValues: map[string]cty.Value{"number": cty.NumberIntVal(10)},
		OutputCache:  map[string]cty.Value{"number": cty.NumberIntVal(10)},
	}
	data, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "n-1",
		"type": "number",
		"position": {"x": 10, "y": 20},
		"sourceValues": {"number": 10},
		"outputCache": {"number": 10}
	}`, string(data))

	e := Edge{From: Endpoint{NodeID: "a", Bus: "x"}, To: Endpoint{NodeID: "b", Bus: "y"}}
	data, err = json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a.x->b.y","from":{"nodeId":"a","busKey":"x"},"to":{"nodeId":"b","busKey":"y"}}`, string(data))
}
