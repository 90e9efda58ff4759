package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/glogue/glogue"
	"github.com/wbrown/glogue/glogue/catalog"
)

func TestRemapInEdgesToOriginalOrders(t *testing.T) {
	s := testSchema(t)
	resolved, info, err := NewResolver(s, nil).Process(flipped())
	require.NoError(t, err)

	node, err := catalog.New(s, catalog.DefaultOptions()).Ensure(resolved)
	require.NoError(t, err)
	in := node.InEdges()
	require.Len(t, in, 2)

	remapped := RemapEdges(in, info, false)
	require.Len(t, remapped, 2)
	for i, e := range remapped {
		orig := in[i]
		assert.NotSame(t, orig, e)
		assert.NotSame(t, orig.Step, e.Step)
		assert.Same(t, orig.Src, e.Src)

		assert.Equal(t, info.SingleToFuzzyOrder[orig.Step.TargetVertexOrder], e.Step.TargetVertexOrder)
		for k, v := range orig.SrcToTargetOrder {
			assert.Equal(t, info.SingleToFuzzyOrder[v], e.SrcToTargetOrder[k])
		}
		for j, ee := range e.Step.Edges {
			assert.Equal(t, info.SingleToFuzzyOrder[orig.Step.Edges[j].SrcVertexOrder], ee.SrcVertexOrder)
		}
	}

	// catalog-owned edges keep resolved orders
	again := node.InEdges()
	for i := range again {
		assert.Equal(t, in[i].Step.TargetVertexOrder, again[i].Step.TargetVertexOrder)
	}
}

func TestRemapOutEdgesRewritesKeys(t *testing.T) {
	info := &Info{SingleToFuzzyOrder: map[int]int{0: 1, 1: 0}}
	edge := &catalog.Edge{
		Step: &catalog.ExtendStep{
			TargetVertexOrder: 2,
			Edges: []catalog.ExtendEdge{
				{SrcVertexOrder: 0, EdgeType: glogue.NewEdgeTypeID(1, 2, 3), Direction: glogue.Out},
			},
		},
		SrcToTargetOrder: map[int]int{0: 0, 1: 1},
	}

	out := RemapEdges([]*catalog.Edge{edge}, info, true)
	require.Len(t, out, 1)
	assert.Equal(t, map[int]int{1: 0, 0: 1}, out[0].SrcToTargetOrder)
	assert.Equal(t, 2, out[0].Step.TargetVertexOrder, "larger pattern orders untouched")
	assert.Equal(t, map[int]int{0: 0, 1: 1}, edge.SrcToTargetOrder)
}
