package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wbrown/glogue/glogue"
	"github.com/wbrown/glogue/glogue/pattern"
)

// ExtendEdge attaches a newly introduced vertex to an existing one
type ExtendEdge struct {
	SrcVertexOrder int               // Order of the existing vertex (the new vertex itself for loops)
	EdgeType       glogue.EdgeTypeID // Edge type joining the two
	Direction      glogue.Direction  // Out: existing -> new, In: new -> existing, Both: loop
	Selectivity    float64           // edgeCard / (card(src type) * card(dst type))
}

func (e ExtendEdge) String() string {
	return fmt.Sprintf("%d-%s-%s", e.SrcVertexOrder, e.Direction, e.EdgeType)
}

// ExtendStep introduces one vertex together with every edge joining it to
// the vertices already present. Orders are those of the larger pattern.
type ExtendStep struct {
	TargetVertexOrder int
	TargetVertexType  glogue.TypeID
	Edges             []ExtendEdge
	Weight            float64 // card(target type) * product of edge selectivities
}

// Clone returns a deep copy of the step
func (s *ExtendStep) Clone() *ExtendStep {
	c := *s
	c.Edges = append([]ExtendEdge(nil), s.Edges...)
	return &c
}

// Remap returns a copy whose vertex orders are translated through f
func (s *ExtendStep) Remap(f func(order int) int) *ExtendStep {
	c := s.Clone()
	c.TargetVertexOrder = f(s.TargetVertexOrder)
	for i := range c.Edges {
		c.Edges[i].SrcVertexOrder = f(c.Edges[i].SrcVertexOrder)
	}
	sortExtendEdges(c.Edges)
	return c
}

func (s *ExtendStep) String() string {
	parts := make([]string, len(s.Edges))
	for i, e := range s.Edges {
		parts[i] = e.String()
	}
	return fmt.Sprintf("+v%d:%s [%s] x%.4g", s.TargetVertexOrder, s.TargetVertexType, strings.Join(parts, ", "), s.Weight)
}

func sortExtendEdges(edges []ExtendEdge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.SrcVertexOrder != b.SrcVertexOrder {
			return a.SrcVertexOrder < b.SrcVertexOrder
		}
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		return a.EdgeType.Compare(b.EdgeType) < 0
	})
}

// Node is a catalog entry: one isomorphism class of single-typed patterns.
// A published Node never changes.
type Node struct {
	ID          uint64           // Canonical hash
	Code        string           // Canonical code
	Pattern     *pattern.Pattern // Canonical instance; orders are the class orders
	Cardinality float64          // Estimated number of matches

	seq int
	in  []*Edge
}

// Size returns the number of vertices in the node's pattern
func (n *Node) Size() int {
	return n.Pattern.VertexCount()
}

// InEdges returns the extend edges leading into this node, ordered by the
// order of the vertex each one introduces
func (n *Node) InEdges() []*Edge {
	return append([]*Edge(nil), n.in...)
}

func (n *Node) String() string {
	return fmt.Sprintf("node#%d(%d vertices, card=%.4g)", n.seq, n.Size(), n.Cardinality)
}

// Edge is an extend-intersect edge from a smaller node to a larger one.
type Edge struct {
	Src  *Node
	Dst  *Node
	Step *ExtendStep // in Dst orders

	// SrcToTargetOrder maps every Src order to the Dst order of the same vertex
	SrcToTargetOrder map[int]int
}

// Clone returns a copy sharing the nodes but not the step or mapping
func (e *Edge) Clone() *Edge {
	m := make(map[int]int, len(e.SrcToTargetOrder))
	for k, v := range e.SrcToTargetOrder {
		m[k] = v
	}
	return &Edge{
		Src:              e.Src,
		Dst:              e.Dst,
		Step:             e.Step.Clone(),
		SrcToTargetOrder: m,
	}
}

func (e *Edge) String() string {
	keys := make([]int, 0, len(e.SrcToTargetOrder))
	for k := range e.SrcToTargetOrder {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d->%d", k, e.SrcToTargetOrder[k])
	}
	return fmt.Sprintf("%s => %s {%s} %s", e.Src, e.Dst, strings.Join(parts, " "), e.Step)
}

// Stats reports catalog size and lookup counters
type Stats struct {
	Nodes  int
	Edges  int
	Hits   int64
	Misses int64
}
