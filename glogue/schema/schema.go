// Package schema provides the read-only statistics view the planner consumes:
// vertex-type and edge-type cardinalities, and the edge types that are legal
// between a pair of vertex types.
package schema

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/wbrown/glogue/glogue"
)

// ErrUnknownType is returned when a pattern references a type the schema does not know
var ErrUnknownType = errors.New("unknown schema type")

// Schema is the read contract of the statistics snapshot.
// Implementations must be immutable and safe for concurrent readers.
type Schema interface {
	// VertexTypeCardinality returns the row count of a vertex type
	VertexTypeCardinality(t glogue.TypeID) (float64, bool)

	// EdgeTypeCardinality returns the row count of an edge type
	EdgeTypeCardinality(et glogue.EdgeTypeID) (float64, bool)

	// EdgeTypes returns the edge types legal from src to dst, ordered by label
	EdgeTypes(src, dst glogue.TypeID) []glogue.EdgeTypeID

	// VertexTypes returns every vertex type in ascending order
	VertexTypes() []glogue.TypeID
}

type pairKey struct {
	src, dst glogue.TypeID
}

// Statistics is an immutable in-memory Schema snapshot
type Statistics struct {
	vertexCard  map[glogue.TypeID]float64
	edgeCard    map[glogue.EdgeTypeID]float64
	pairs       map[pairKey][]glogue.EdgeTypeID
	vertexNames map[glogue.TypeID]string
	labelNames  map[glogue.TypeID]string
	vertexIDs   map[string]glogue.TypeID
	labelIDs    map[string]glogue.TypeID
	vertexTypes []glogue.TypeID
	edgeTypes   []glogue.EdgeTypeID
}

var _ Schema = (*Statistics)(nil)

// VertexTypeCardinality implements Schema
func (s *Statistics) VertexTypeCardinality(t glogue.TypeID) (float64, bool) {
	c, ok := s.vertexCard[t]
	return c, ok
}

// EdgeTypeCardinality implements Schema
func (s *Statistics) EdgeTypeCardinality(et glogue.EdgeTypeID) (float64, bool) {
	c, ok := s.edgeCard[et]
	return c, ok
}

// EdgeTypes implements Schema. The returned slice must not be modified.
func (s *Statistics) EdgeTypes(src, dst glogue.TypeID) []glogue.EdgeTypeID {
	return s.pairs[pairKey{src: src, dst: dst}]
}

// VertexTypes implements Schema
func (s *Statistics) VertexTypes() []glogue.TypeID {
	return append([]glogue.TypeID(nil), s.vertexTypes...)
}

// AllEdgeTypes returns every edge type ordered by (src, dst, label)
func (s *Statistics) AllEdgeTypes() []glogue.EdgeTypeID {
	return append([]glogue.EdgeTypeID(nil), s.edgeTypes...)
}

// VertexTypeName returns the display name of a vertex type, or its id
func (s *Statistics) VertexTypeName(t glogue.TypeID) string {
	if name, ok := s.vertexNames[t]; ok {
		return name
	}
	return t.String()
}

// LabelName returns the display name of an edge label, or its id
func (s *Statistics) LabelName(l glogue.TypeID) string {
	if name, ok := s.labelNames[l]; ok {
		return name
	}
	return l.String()
}

// VertexTypeByName resolves a vertex type name
func (s *Statistics) VertexTypeByName(name string) (glogue.TypeID, bool) {
	t, ok := s.vertexIDs[name]
	return t, ok
}

// LabelByName resolves an edge label name
func (s *Statistics) LabelByName(name string) (glogue.TypeID, bool) {
	l, ok := s.labelIDs[name]
	return l, ok
}

// Builder accumulates statistics and produces an immutable snapshot.
// A Builder is not safe for concurrent use.
type Builder struct {
	vertexCard  map[glogue.TypeID]float64
	edgeCard    map[glogue.EdgeTypeID]float64
	vertexNames map[glogue.TypeID]string
	labelNames  map[glogue.TypeID]string
}

// NewBuilder creates an empty statistics builder
func NewBuilder() *Builder {
	return &Builder{
		vertexCard:  make(map[glogue.TypeID]float64),
		edgeCard:    make(map[glogue.EdgeTypeID]float64),
		vertexNames: make(map[glogue.TypeID]string),
		labelNames:  make(map[glogue.TypeID]string),
	}
}

// AddVertexType registers a vertex type with its cardinality
func (b *Builder) AddVertexType(t glogue.TypeID, cardinality float64) *Builder {
	b.vertexCard[t] = cardinality
	return b
}

// NameVertexType attaches a display name to a vertex type
func (b *Builder) NameVertexType(t glogue.TypeID, name string) *Builder {
	b.vertexNames[t] = name
	return b
}

// NameLabel attaches a display name to an edge label
func (b *Builder) NameLabel(l glogue.TypeID, name string) *Builder {
	b.labelNames[l] = name
	return b
}

// AddEdgeType registers an edge type with its cardinality
func (b *Builder) AddEdgeType(et glogue.EdgeTypeID, cardinality float64) *Builder {
	b.edgeCard[et] = cardinality
	return b
}

// Build validates the collected statistics and freezes them into a snapshot
func (b *Builder) Build() (*Statistics, error) {
	s := &Statistics{
		vertexCard:  make(map[glogue.TypeID]float64, len(b.vertexCard)),
		edgeCard:    make(map[glogue.EdgeTypeID]float64, len(b.edgeCard)),
		pairs:       make(map[pairKey][]glogue.EdgeTypeID),
		vertexNames: make(map[glogue.TypeID]string, len(b.vertexNames)),
		labelNames:  make(map[glogue.TypeID]string, len(b.labelNames)),
		vertexIDs:   make(map[string]glogue.TypeID, len(b.vertexNames)),
		labelIDs:    make(map[string]glogue.TypeID, len(b.labelNames)),
	}

	for t, c := range b.vertexCard {
		if c < 0 {
			return nil, errors.Newf("vertex type %d has negative cardinality %v", t, c)
		}
		s.vertexCard[t] = c
		s.vertexTypes = append(s.vertexTypes, t)
	}
	sort.Slice(s.vertexTypes, func(i, j int) bool { return s.vertexTypes[i] < s.vertexTypes[j] })

	for et, c := range b.edgeCard {
		if c < 0 {
			return nil, errors.Newf("edge type %s has negative cardinality %v", et, c)
		}
		for _, end := range []glogue.TypeID{et.Src, et.Dst} {
			if _, ok := b.vertexCard[end]; !ok {
				return nil, errors.Wrapf(ErrUnknownType, "edge type %s references vertex type %d", et, end)
			}
		}
		s.edgeCard[et] = c
		s.edgeTypes = append(s.edgeTypes, et)
	}
	sort.Slice(s.edgeTypes, func(i, j int) bool { return s.edgeTypes[i].Compare(s.edgeTypes[j]) < 0 })

	// edgeTypes is sorted by (src, dst, label) so each pair list comes out label-ordered
	for _, et := range s.edgeTypes {
		k := pairKey{src: et.Src, dst: et.Dst}
		s.pairs[k] = append(s.pairs[k], et)
	}

	for t, name := range b.vertexNames {
		if prev, dup := s.vertexIDs[name]; dup {
			return nil, errors.Newf("vertex type name %q used by %d and %d", name, prev, t)
		}
		s.vertexNames[t] = name
		s.vertexIDs[name] = t
	}
	for l, name := range b.labelNames {
		if prev, dup := s.labelIDs[name]; dup {
			return nil, errors.Newf("label name %q used by %d and %d", name, prev, l)
		}
		s.labelNames[l] = name
		s.labelIDs[name] = l
	}

	return s, nil
}
