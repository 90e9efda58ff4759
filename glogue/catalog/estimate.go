package catalog

import (
	"github.com/cockroachdb/errors"

	"github.com/wbrown/glogue/glogue"
	"github.com/wbrown/glogue/glogue/pattern"
)

// extendStep builds the step that adds v to p minus v.
//
// The step weight is card(type(v)) times, for every edge incident to v,
// edgeCard / (card(srcType) * card(dstType)). Multiplying a pattern's
// cardinality by the weight gives the selectivity-chain estimate
//
//	card(P') = card(P) * card(type(v)) * prod_i edgeCard(e_i) / (card(src_i) * card(dst_i))
//
// which reduces to card(P) * edgeCard / card(attaching type) for a single
// edge, and treats the edges of one step as independent.
func (c *Catalog) extendStep(p *pattern.Pattern, v *pattern.Vertex) (*ExtendStep, error) {
	vcard, ok := c.schema.VertexTypeCardinality(v.Type())
	if !ok {
		return nil, errors.Wrapf(ErrUnreachablePattern, "vertex type %s has no statistics", v.Type())
	}

	step := &ExtendStep{
		TargetVertexOrder: v.Order(),
		TargetVertexType:  v.Type(),
		Weight:            vcard,
	}

	for _, e := range p.IncidentEdges(v) {
		ee := ExtendEdge{EdgeType: e.Type()}
		switch {
		case e.IsLoop():
			ee.SrcVertexOrder = v.Order()
			ee.Direction = glogue.Both
		case e.Src() == v:
			ee.SrcVertexOrder = e.Dst().Order()
			ee.Direction = glogue.In
		default:
			ee.SrcVertexOrder = e.Src().Order()
			ee.Direction = glogue.Out
		}

		sel, err := c.selectivity(e)
		if err != nil {
			return nil, err
		}
		ee.Selectivity = sel
		step.Weight *= sel
		step.Edges = append(step.Edges, ee)
	}

	sortExtendEdges(step.Edges)
	return step, nil
}

// selectivity returns edgeCard / (card(src) * card(dst)) for e's edge type.
// A zero denominator yields 0.
func (c *Catalog) selectivity(e *pattern.Edge) (float64, error) {
	et := e.Type()
	srcType, dstType := e.Src().Type(), e.Dst().Type()

	if et.Src != srcType || et.Dst != dstType || !containsEdgeType(c.schema.EdgeTypes(srcType, dstType), et) {
		return 0, errors.Wrapf(ErrUnreachablePattern,
			"edge type %s is not legal between vertex types %s and %s", et, srcType, dstType)
	}

	ecard, ok := c.schema.EdgeTypeCardinality(et)
	if !ok {
		return 0, errors.Wrapf(ErrUnreachablePattern, "edge type %s has no statistics", et)
	}
	srcCard, ok := c.schema.VertexTypeCardinality(srcType)
	if !ok {
		return 0, errors.Wrapf(ErrUnreachablePattern, "vertex type %s has no statistics", srcType)
	}
	dstCard, ok := c.schema.VertexTypeCardinality(dstType)
	if !ok {
		return 0, errors.Wrapf(ErrUnreachablePattern, "vertex type %s has no statistics", dstType)
	}

	denom := srcCard * dstCard
	if denom == 0 {
		return 0, nil
	}
	return ecard / denom, nil
}

func containsEdgeType(types []glogue.EdgeTypeID, et glogue.EdgeTypeID) bool {
	for _, t := range types {
		if t == et {
			return true
		}
	}
	return false
}
