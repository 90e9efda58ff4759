// Package fuzzy collapses patterns whose vertices or edges carry several
// candidate types into a single-typed pattern the catalog can index, and
// carries the information needed to rescale the catalog's estimate and map
// its orders back onto the caller's pattern.
package fuzzy

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/wbrown/glogue/glogue"
	"github.com/wbrown/glogue/glogue/pattern"
	"github.com/wbrown/glogue/glogue/schema"
)

// ErrUnresolvableFuzzyPattern is returned when the representative vertex
// types leave an edge without any legal candidate type
var ErrUnresolvableFuzzyPattern = errors.New("unresolvable fuzzy pattern")

// UnresolvableEdgeError identifies the edge that could not be resolved
type UnresolvableEdgeError struct {
	EdgeID     int
	SrcType    glogue.TypeID
	DstType    glogue.TypeID
	Candidates []glogue.EdgeTypeID
}

func (e *UnresolvableEdgeError) Error() string {
	return fmt.Sprintf("edge %d: no candidate of %v is legal between vertex types %s and %s",
		e.EdgeID, e.Candidates, e.SrcType, e.DstType)
}

// Unwrap makes errors.Is(err, ErrUnresolvableFuzzyPattern) hold
func (e *UnresolvableEdgeError) Unwrap() error {
	return ErrUnresolvableFuzzyPattern
}

// ChooseRepresentative picks the type a fuzzy vertex is resolved to.
// candidates is never empty and every candidate is known to s.
type ChooseRepresentative func(candidates []glogue.TypeID, s schema.Schema) glogue.TypeID

// FirstCandidate picks the first listed candidate
func FirstCandidate(candidates []glogue.TypeID, _ schema.Schema) glogue.TypeID {
	return candidates[0]
}

// MinCardinality picks the candidate with the fewest rows, the earliest on ties
func MinCardinality(candidates []glogue.TypeID, s schema.Schema) glogue.TypeID {
	best := candidates[0]
	bestCard, _ := s.VertexTypeCardinality(best)
	for _, t := range candidates[1:] {
		if c, _ := s.VertexTypeCardinality(t); c < bestCard {
			best, bestCard = t, c
		}
	}
	return best
}

// Info records how a pattern was resolved. It belongs to one compilation.
type Info struct {
	VerticesWeight float64 // product of per-vertex correction factors
	EdgesWeight    float64 // product of per-edge correction factors

	VertexIDToTypes    map[int][]glogue.TypeID     // fuzzy vertex id -> original candidates
	EdgeIDToTypes      map[int][]glogue.EdgeTypeID // fuzzy edge id -> original candidates
	VertexOrderToTypes map[int][]glogue.TypeID     // fuzzy vertex original order -> original candidates

	FuzzyToSingleOrder map[int]int // original order -> resolved order
	SingleToFuzzyOrder map[int]int // resolved order -> original order

	Original *pattern.Pattern
	Resolved *pattern.Pattern
}

// Fuzzy reports whether any element had to be resolved
func (i *Info) Fuzzy() bool {
	return len(i.VertexIDToTypes) > 0 || len(i.EdgeIDToTypes) > 0
}

// ToOriginalOrder maps a resolved-pattern order to the caller's order.
// Orders without a counterpart are returned unchanged.
func (i *Info) ToOriginalOrder(order int) int {
	if o, ok := i.SingleToFuzzyOrder[order]; ok {
		return o
	}
	return order
}

// IsFuzzyPattern reports whether any vertex or edge has more than one candidate type
func IsFuzzyPattern(p *pattern.Pattern) bool {
	return p.IsFuzzy()
}

// Resolver rewrites fuzzy patterns against one schema snapshot
type Resolver struct {
	schema schema.Schema
	choose ChooseRepresentative
}

// NewResolver creates a resolver. A nil choose means FirstCandidate.
func NewResolver(s schema.Schema, choose ChooseRepresentative) *Resolver {
	if choose == nil {
		choose = FirstCandidate
	}
	return &Resolver{schema: s, choose: choose}
}

// Process resolves p into a single-typed, reordered pattern with the same
// vertex and edge ids. p is reordered as a side effect but otherwise unchanged.
//
// Each fuzzy vertex multiplies VerticesWeight by sum(card(candidates)) /
// card(representative); each fuzzy edge does the same for EdgesWeight with
// edge cardinalities. A zero-cardinality choice leaves its factor at 1.
func (r *Resolver) Process(p *pattern.Pattern) (*pattern.Pattern, *Info, error) {
	info := &Info{
		VerticesWeight:     1.0,
		EdgesWeight:        1.0,
		VertexIDToTypes:    make(map[int][]glogue.TypeID),
		EdgeIDToTypes:      make(map[int][]glogue.EdgeTypeID),
		VertexOrderToTypes: make(map[int][]glogue.TypeID),
		FuzzyToSingleOrder: make(map[int]int, p.VertexCount()),
		SingleToFuzzyOrder: make(map[int]int, p.VertexCount()),
		Original:           p,
	}

	p.Reordering()
	resolved := pattern.New()

	for _, v := range p.Vertices() {
		sum := 0.0
		for _, t := range v.Types() {
			c, ok := r.schema.VertexTypeCardinality(t)
			if !ok {
				return nil, nil, errors.Wrapf(schema.ErrUnknownType, "vertex %d: vertex type %s", v.ID(), t)
			}
			sum += c
		}

		rep := r.choose(v.Types(), r.schema)
		if !v.Distinct() {
			if repCard, _ := r.schema.VertexTypeCardinality(rep); repCard > 0 {
				info.VerticesWeight *= sum / repCard
			}
			candidates := append([]glogue.TypeID(nil), v.Types()...)
			info.VertexIDToTypes[v.ID()] = candidates
			info.VertexOrderToTypes[v.Order()] = candidates
		}
		resolved.AddVertex(v.ID(), rep)
	}

	for _, e := range p.Edges() {
		src := resolved.VertexByID(e.Src().ID())
		dst := resolved.VertexByID(e.Dst().ID())

		if e.Distinct() {
			resolved.AddEdge(e.ID(), src, dst, e.Type())
			continue
		}

		chosen, ok := pickEdgeType(e.Types(), r.schema.EdgeTypes(src.Type(), dst.Type()))
		if !ok {
			return nil, nil, errors.WithStack(&UnresolvableEdgeError{
				EdgeID:     e.ID(),
				SrcType:    src.Type(),
				DstType:    dst.Type(),
				Candidates: append([]glogue.EdgeTypeID(nil), e.Types()...),
			})
		}

		sum := 0.0
		for _, et := range e.Types() {
			c, ok := r.schema.EdgeTypeCardinality(et)
			if !ok {
				return nil, nil, errors.Wrapf(schema.ErrUnknownType, "edge %d: edge type %s", e.ID(), et)
			}
			sum += c
		}
		if chosenCard, _ := r.schema.EdgeTypeCardinality(chosen); chosenCard > 0 {
			info.EdgesWeight *= sum / chosenCard
		}
		info.EdgeIDToTypes[e.ID()] = append([]glogue.EdgeTypeID(nil), e.Types()...)

		resolved.AddEdge(e.ID(), src, dst, chosen)
	}

	resolved.Reordering()
	for _, v := range p.Vertices() {
		single := resolved.VertexByID(v.ID()).Order()
		info.FuzzyToSingleOrder[v.Order()] = single
		info.SingleToFuzzyOrder[single] = v.Order()
	}
	info.Resolved = resolved

	return resolved, info, nil
}

// pickEdgeType returns the first candidate whose label is legal between the
// resolved endpoint types, as the schema's triple for that label.
func pickEdgeType(candidates, legal []glogue.EdgeTypeID) (glogue.EdgeTypeID, bool) {
	for _, c := range candidates {
		for _, l := range legal {
			if l.Label == c.Label {
				return l, true
			}
		}
	}
	return glogue.EdgeTypeID{}, false
}

// EstimateCount rescales an estimate for the resolved pattern to the original one
func EstimateCount(count float64, info *Info) float64 {
	return count * info.VerticesWeight * info.EdgesWeight
}
