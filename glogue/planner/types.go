package planner

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/wbrown/glogue/glogue"
	"github.com/wbrown/glogue/glogue/annotations"
	"github.com/wbrown/glogue/glogue/catalog"
	"github.com/wbrown/glogue/glogue/fuzzy"
)

// CostModel combines the cost of reaching a sub-pattern with its cardinality
type CostModel uint8

const (
	CostSum CostModel = iota // sum of intermediate cardinalities
	CostMax                  // largest intermediate cardinality
)

func (m CostModel) combine(cost, card float64) float64 {
	if m == CostMax {
		if card > cost {
			return card
		}
		return cost
	}
	return cost + card
}

// String returns the model name
func (m CostModel) String() string {
	switch m {
	case CostSum:
		return "sum"
	case CostMax:
		return "max"
	default:
		return "unknown"
	}
}

// ParseCostModel parses "sum" or "max"
func ParseCostModel(s string) (CostModel, error) {
	switch strings.ToLower(s) {
	case "sum", "":
		return CostSum, nil
	case "max":
		return CostMax, nil
	default:
		return 0, errors.Newf("unknown cost model %q", s)
	}
}

// Options configures planning
type Options struct {
	CostModel      CostModel                  // How intermediate cardinalities add up (default: CostSum)
	MaxPatternSize int                        // Largest pattern planned, in vertices (0 = catalog.DefaultMaxPatternSize)
	Cache          *PlanCache                 // Shared plan cache (optional)
	Handler        annotations.Handler        // Receives planning events (optional)
	Representative fuzzy.ChooseRepresentative // Fuzzy vertex resolution strategy (nil = fuzzy.FirstCandidate)
}

// A PlanCache tells representative strategies apart by function pointer, so a
// cached planner's Representative should be a top-level function. Closures
// built from one function literal share a cache key whatever they capture.

// DefaultOptions returns the planner defaults
func DefaultOptions() Options {
	return Options{
		CostModel:      CostSum,
		MaxPatternSize: catalog.DefaultMaxPatternSize,
		Representative: fuzzy.FirstCandidate,
	}
}

// PlanEdge attaches the vertex of a step to one already matched
type PlanEdge struct {
	SrcVertexOrder int
	EdgeType       glogue.EdgeTypeID
	Direction      glogue.Direction
}

// PlanStep introduces one vertex of the caller's pattern
type PlanStep struct {
	VertexOrder int             // Caller's order of the new vertex
	VertexType  glogue.TypeID   // Resolved type
	Candidates  []glogue.TypeID // Original candidates when the vertex was fuzzy
	Edges       []PlanEdge
	Cardinality float64 // Estimated matches after this step, before fuzzy correction
}

// Plan is the extend order for a pattern, expressed in the caller's vertex
// orders. Plans may be shared through a PlanCache and must not be modified.
type Plan struct {
	Steps          []PlanStep
	Cardinality    float64 // Estimate for the caller's pattern
	RawCardinality float64 // Estimate for the resolved pattern
	Cost           float64
	CostModel      CostModel
	Fuzzy          bool
	VerticesWeight float64
	EdgesWeight    float64

	// FinalEdges are the catalog edges completing the pattern, remapped to caller orders
	FinalEdges []*catalog.Edge

	// Trace holds planning events when a Handler is configured
	Trace []annotations.Event
}

// Namer renders schema ids; *schema.Statistics implements it
type Namer interface {
	VertexTypeName(t glogue.TypeID) string
	LabelName(l glogue.TypeID) string
}
