package fuzzy

import (
	"github.com/wbrown/glogue/glogue/catalog"
)

// RemapEdges re-expresses catalog edges touching the resolved pattern in the
// original pattern's orders.
//
// With isOut false the edges lead into the resolved pattern: the step and the
// values of SrcToTargetOrder are remapped. With isOut true the edges leave it:
// the keys of SrcToTargetOrder are remapped. Copies are returned; catalog
// edges are shared between compilations and never modified.
func RemapEdges(edges []*catalog.Edge, info *Info, isOut bool) []*catalog.Edge {
	result := make([]*catalog.Edge, len(edges))
	for i, e := range edges {
		c := e.Clone()
		mapping := make(map[int]int, len(e.SrcToTargetOrder))
		for from, to := range e.SrcToTargetOrder {
			if isOut {
				mapping[info.ToOriginalOrder(from)] = to
			} else {
				mapping[from] = info.ToOriginalOrder(to)
			}
		}
		c.SrcToTargetOrder = mapping
		if !isOut {
			c.Step = e.Step.Remap(info.ToOriginalOrder)
		}
		result[i] = c
	}
	return result
}
