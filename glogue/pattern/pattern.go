// Package pattern is the in-memory model of a graph pattern: vertices and edges
// carrying one (resolved) or several (fuzzy) candidate schema types, plus the
// canonical order used as catalog key and join-order label.
//
// File organization:
//   - pattern.go: Vertex, Edge, Pattern construction and structural helpers
//   - canonical.go: Reordering() and the canonical code
//   - mapping.go: isomorphism witnesses between canonicalized patterns
package pattern

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/wbrown/glogue/glogue"
)

// Vertex is a pattern vertex with its candidate vertex types
type Vertex struct {
	id    int
	types []glogue.TypeID
	order int
}

// ID returns the stable id assigned at construction
func (v *Vertex) ID() int { return v.id }

// Types returns the candidate types in the order they were given.
// The slice must not be modified.
func (v *Vertex) Types() []glogue.TypeID { return v.types }

// Type returns the first candidate type, which is the only one for a distinct vertex
func (v *Vertex) Type() glogue.TypeID { return v.types[0] }

// Distinct reports whether the vertex has exactly one candidate type
func (v *Vertex) Distinct() bool { return len(v.types) == 1 }

// Order returns the canonical position, or -1 before Reordering
func (v *Vertex) Order() int { return v.order }

func (v *Vertex) String() string {
	return fmt.Sprintf("v%d%s", v.id, typeSet(v.types))
}

// Edge is a pattern edge between two vertices of the same pattern
type Edge struct {
	id    int
	src   *Vertex
	dst   *Vertex
	types []glogue.EdgeTypeID
	order int
}

// ID returns the stable id assigned at construction
func (e *Edge) ID() int { return e.id }

// Src returns the source vertex
func (e *Edge) Src() *Vertex { return e.src }

// Dst returns the destination vertex
func (e *Edge) Dst() *Vertex { return e.dst }

// Types returns the candidate edge types. The slice must not be modified.
func (e *Edge) Types() []glogue.EdgeTypeID { return e.types }

// Type returns the first candidate edge type
func (e *Edge) Type() glogue.EdgeTypeID { return e.types[0] }

// Distinct reports whether the edge has exactly one candidate type
func (e *Edge) Distinct() bool { return len(e.types) == 1 }

// Order returns the canonical position, or -1 before Reordering
func (e *Edge) Order() int { return e.order }

// IsLoop reports whether both endpoints are the same vertex
func (e *Edge) IsLoop() bool { return e.src == e.dst }

// Other returns the endpoint opposite to v
func (e *Edge) Other(v *Vertex) *Vertex {
	if e.src == v {
		return e.dst
	}
	return e.src
}

func (e *Edge) String() string {
	labels := make([]string, len(e.types))
	for i, t := range e.types {
		labels[i] = t.Label.String()
	}
	return fmt.Sprintf("v%d-[e%d:%s]->v%d", e.src.id, e.id, strings.Join(labels, "|"), e.dst.id)
}

// Pattern owns a set of vertices and the edges between them.
// A Pattern is not safe for concurrent mutation; once reordered and handed to
// the catalog it is treated as immutable.
type Pattern struct {
	vertices map[int]*Vertex
	edges    map[int]*Edge
	incident map[int][]*Edge // vertex id -> incident edges, each loop listed once

	// valid while ordered is true
	ordered      bool
	byOrder      []*Vertex
	edgesByOrder []*Edge
	code         string
	hash         uint64
}

// New creates an empty pattern
func New() *Pattern {
	return &Pattern{
		vertices: make(map[int]*Vertex),
		edges:    make(map[int]*Edge),
		incident: make(map[int][]*Edge),
	}
}

// AddVertex adds a vertex with the given candidate types.
// Duplicate ids and empty candidate lists are contract violations and panic.
func (p *Pattern) AddVertex(id int, types ...glogue.TypeID) *Vertex {
	if len(types) == 0 {
		panic(errors.AssertionFailedf("vertex %d has no candidate types", id))
	}
	if _, dup := p.vertices[id]; dup {
		panic(errors.AssertionFailedf("duplicate vertex id %d", id))
	}
	v := &Vertex{
		id:    id,
		types: dedupTypes(types),
		order: -1,
	}
	p.vertices[id] = v
	p.invalidate()
	return v
}

// AddEdge adds an edge from src to dst with the given candidate edge types.
// Endpoints that are not members of p, duplicate ids and empty candidate lists
// are contract violations and panic.
func (p *Pattern) AddEdge(id int, src, dst *Vertex, types ...glogue.EdgeTypeID) *Edge {
	if len(types) == 0 {
		panic(errors.AssertionFailedf("edge %d has no candidate types", id))
	}
	if _, dup := p.edges[id]; dup {
		panic(errors.AssertionFailedf("duplicate edge id %d", id))
	}
	if src == nil || p.vertices[src.id] != src {
		panic(errors.AssertionFailedf("edge %d: source vertex is not a member of the pattern", id))
	}
	if dst == nil || p.vertices[dst.id] != dst {
		panic(errors.AssertionFailedf("edge %d: destination vertex is not a member of the pattern", id))
	}
	e := &Edge{
		id:    id,
		src:   src,
		dst:   dst,
		types: dedupEdgeTypes(types),
		order: -1,
	}
	p.edges[id] = e
	p.incident[src.id] = append(p.incident[src.id], e)
	if dst != src {
		p.incident[dst.id] = append(p.incident[dst.id], e)
	}
	p.invalidate()
	return e
}

func (p *Pattern) invalidate() {
	if !p.ordered {
		return
	}
	p.ordered = false
	p.byOrder = nil
	p.edgesByOrder = nil
	p.code = ""
	p.hash = 0
	for _, v := range p.vertices {
		v.order = -1
	}
	for _, e := range p.edges {
		e.order = -1
	}
}

// VertexCount returns the number of vertices
func (p *Pattern) VertexCount() int { return len(p.vertices) }

// EdgeCount returns the number of edges
func (p *Pattern) EdgeCount() int { return len(p.edges) }

// Vertices returns the vertex set, in canonical order once reordered and by id otherwise
func (p *Pattern) Vertices() []*Vertex {
	if p.ordered {
		return append([]*Vertex(nil), p.byOrder...)
	}
	result := make([]*Vertex, 0, len(p.vertices))
	for _, v := range p.vertices {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].id < result[j].id })
	return result
}

// Edges returns the edge set, in canonical order once reordered and by id otherwise
func (p *Pattern) Edges() []*Edge {
	if p.ordered {
		return append([]*Edge(nil), p.edgesByOrder...)
	}
	result := make([]*Edge, 0, len(p.edges))
	for _, e := range p.edges {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].id < result[j].id })
	return result
}

// VertexByID returns the vertex with the given id, or nil
func (p *Pattern) VertexByID(id int) *Vertex { return p.vertices[id] }

// EdgeByID returns the edge with the given id, or nil
func (p *Pattern) EdgeByID(id int) *Edge { return p.edges[id] }

// VertexOrder returns the canonical order of v, reordering the pattern if needed
func (p *Pattern) VertexOrder(v *Vertex) int {
	if v == nil || p.vertices[v.id] != v {
		panic(errors.AssertionFailedf("vertex is not a member of the pattern"))
	}
	p.ensureOrdered()
	return v.order
}

// VertexByOrder returns the vertex at a canonical position, or nil
func (p *Pattern) VertexByOrder(order int) *Vertex {
	p.ensureOrdered()
	if order < 0 || order >= len(p.byOrder) {
		return nil
	}
	return p.byOrder[order]
}

// EdgeByOrder returns the edge at a canonical position, or nil
func (p *Pattern) EdgeByOrder(order int) *Edge {
	p.ensureOrdered()
	if order < 0 || order >= len(p.edgesByOrder) {
		return nil
	}
	return p.edgesByOrder[order]
}

// IncidentEdges returns the edges touching v ordered by id
func (p *Pattern) IncidentEdges(v *Vertex) []*Edge {
	result := append([]*Edge(nil), p.incident[v.id]...)
	sort.Slice(result, func(i, j int) bool { return result[i].id < result[j].id })
	return result
}

// IsFuzzy reports whether any vertex or edge has more than one candidate type
func (p *Pattern) IsFuzzy() bool {
	for _, v := range p.vertices {
		if !v.Distinct() {
			return true
		}
	}
	for _, e := range p.edges {
		if !e.Distinct() {
			return true
		}
	}
	return false
}

// IsConnected reports whether the pattern is weakly connected.
// Empty and single-vertex patterns are connected.
func (p *Pattern) IsConnected() bool {
	if len(p.vertices) <= 1 {
		return true
	}
	var start *Vertex
	for _, v := range p.vertices {
		start = v
		break
	}
	seen := map[int]bool{start.id: true}
	stack := []*Vertex{start}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range p.incident[v.id] {
			if o := e.Other(v); !seen[o.id] {
				seen[o.id] = true
				stack = append(stack, o)
			}
		}
	}
	return len(seen) == len(p.vertices)
}

// Induced returns a new pattern holding the given vertices and every edge
// between them. Ids are preserved; the result is not reordered.
func (p *Pattern) Induced(ids []int) *Pattern {
	keep := make(map[int]bool, len(ids))
	for _, id := range ids {
		if p.vertices[id] == nil {
			panic(errors.AssertionFailedf("vertex %d is not a member of the pattern", id))
		}
		keep[id] = true
	}
	return p.filter(func(v *Vertex) bool { return keep[v.id] })
}

// RemoveVertex returns a copy of p without vertex id and its incident edges
func (p *Pattern) RemoveVertex(id int) *Pattern {
	if p.vertices[id] == nil {
		panic(errors.AssertionFailedf("vertex %d is not a member of the pattern", id))
	}
	return p.filter(func(v *Vertex) bool { return v.id != id })
}

// Clone returns a deep copy that shares no vertices or edges with p
func (p *Pattern) Clone() *Pattern {
	c := p.filter(func(*Vertex) bool { return true })
	if p.ordered {
		c.Reordering()
	}
	return c
}

func (p *Pattern) filter(keep func(*Vertex) bool) *Pattern {
	c := New()
	for _, v := range p.Vertices() {
		if keep(v) {
			c.AddVertex(v.id, v.types...)
		}
	}
	for _, e := range p.Edges() {
		src, dst := c.vertices[e.src.id], c.vertices[e.dst.id]
		if src != nil && dst != nil {
			c.AddEdge(e.id, src, dst, e.types...)
		}
	}
	return c
}

// Code returns the canonical code of the pattern. Two patterns have the same
// code iff they are isomorphic under a type-preserving graph isomorphism.
func (p *Pattern) Code() string {
	p.ensureOrdered()
	return p.code
}

// Hash returns the xxhash of the canonical code
func (p *Pattern) Hash() uint64 {
	p.ensureOrdered()
	return p.hash
}

func (p *Pattern) ensureOrdered() {
	if !p.ordered {
		p.Reordering()
	}
}

// String renders the pattern in canonical order when available
func (p *Pattern) String() string {
	var sb strings.Builder
	sb.WriteString("Pattern(")
	for i, v := range p.Vertices() {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(v.String())
	}
	for _, e := range p.Edges() {
		sb.WriteString(" ")
		sb.WriteString(e.String())
	}
	sb.WriteString(")")
	return sb.String()
}

func typeSet(types []glogue.TypeID) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func dedupTypes(types []glogue.TypeID) []glogue.TypeID {
	seen := make(map[glogue.TypeID]bool, len(types))
	result := make([]glogue.TypeID, 0, len(types))
	for _, t := range types {
		if !seen[t] {
			seen[t] = true
			result = append(result, t)
		}
	}
	return result
}

func dedupEdgeTypes(types []glogue.EdgeTypeID) []glogue.EdgeTypeID {
	seen := make(map[glogue.EdgeTypeID]bool, len(types))
	result := make([]glogue.EdgeTypeID, 0, len(types))
	for _, t := range types {
		if !seen[t] {
			seen[t] = true
			result = append(result, t)
		}
	}
	return result
}

func hashCode(code string) uint64 {
	return xxhash.Sum64String(code)
}
