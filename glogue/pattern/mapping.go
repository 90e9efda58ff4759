package pattern

// Mapping witnesses an isomorphism between two patterns: every vertex and edge
// id of From corresponds to one id of To with the same types and adjacency.
type Mapping struct {
	From   *Pattern
	To     *Pattern
	Vertex map[int]int // From vertex id -> To vertex id
	Edge   map[int]int // From edge id -> To edge id
}

// NewMapping returns the isomorphism witness from a to b when both share a
// canonical code. Elements at equal canonical positions correspond.
func NewMapping(a, b *Pattern) (*Mapping, bool) {
	if a.VertexCount() != b.VertexCount() || a.EdgeCount() != b.EdgeCount() {
		return nil, false
	}
	if a.Hash() != b.Hash() || a.Code() != b.Code() {
		return nil, false
	}

	m := &Mapping{
		From:   a,
		To:     b,
		Vertex: make(map[int]int, a.VertexCount()),
		Edge:   make(map[int]int, a.EdgeCount()),
	}
	for i, v := range a.byOrder {
		m.Vertex[v.id] = b.byOrder[i].id
	}
	for i, e := range a.edgesByOrder {
		m.Edge[e.id] = b.edgesByOrder[i].id
	}
	return m, true
}

// Inverse returns the mapping from To back to From
func (m *Mapping) Inverse() *Mapping {
	inv := &Mapping{
		From:   m.To,
		To:     m.From,
		Vertex: make(map[int]int, len(m.Vertex)),
		Edge:   make(map[int]int, len(m.Edge)),
	}
	for k, v := range m.Vertex {
		inv.Vertex[v] = k
	}
	for k, v := range m.Edge {
		inv.Edge[v] = k
	}
	return inv
}

// Verify checks that the mapping preserves types and adjacency.
// Catalog lookups run it on the mapping they hand out.
func (m *Mapping) Verify() bool {
	if len(m.Vertex) != m.From.VertexCount() || len(m.Edge) != m.From.EdgeCount() {
		return false
	}
	for fromID, toID := range m.Vertex {
		fv, tv := m.From.VertexByID(fromID), m.To.VertexByID(toID)
		if fv == nil || tv == nil || vertexLabel(fv.types) != vertexLabel(tv.types) {
			return false
		}
	}
	for fromID, toID := range m.Edge {
		fe, te := m.From.EdgeByID(fromID), m.To.EdgeByID(toID)
		if fe == nil || te == nil || edgeLabel(fe.types) != edgeLabel(te.types) {
			return false
		}
		if m.Vertex[fe.src.id] != te.src.id || m.Vertex[fe.dst.id] != te.dst.id {
			return false
		}
	}
	return true
}
