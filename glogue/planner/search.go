package planner

import (
	"sort"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"

	"github.com/wbrown/glogue/glogue/annotations"
	"github.com/wbrown/glogue/glogue/catalog"
	"github.com/wbrown/glogue/glogue/pattern"
)

// SearchResult is the cheapest extend order for a single-typed pattern
type SearchResult struct {
	Target        *catalog.Node
	Steps         []*catalog.ExtendStep // in target orders, first step first
	Cardinalities []float64             // estimate after each step
	Cardinality   float64               // estimate for the whole target
	Cost          float64
	Subsets       int // connected vertex subsets evaluated
}

// subsetPlan is the best way found to match one vertex subset
type subsetPlan struct {
	card float64
	cost float64
	last int // target order of the vertex added last, -1 for the empty set
}

type searcher struct {
	model CostModel
	memo  map[string]*subsetPlan
}

// Search finds the extend order of target minimizing the cost model over the
// cardinalities of the intermediate patterns.
//
// States are connected vertex subsets of target, reached through the catalog's
// extend edges:
//
//	cost(empty) = 0
//	cost(S)     = min over removable v in S of combine(cost(S - v), card(S - v))
//
// Ties go to the lowest target order among the vertices that could be added
// last. A target the catalog cannot build fails with catalog.ErrUnreachablePattern;
// no partial plan is returned.
func Search(cat *catalog.Catalog, target *pattern.Pattern, opts Options) (*SearchResult, error) {
	start := time.Now()

	limit := opts.MaxPatternSize
	if limit <= 0 {
		limit = catalog.DefaultMaxPatternSize
	}
	if target.VertexCount() > limit {
		return nil, errors.Wrapf(catalog.ErrPatternTooLarge, "%d vertices, limit %d", target.VertexCount(), limit)
	}

	node, err := cat.EnsureTraced(target, opts.Handler)
	if err != nil {
		return nil, err
	}

	// node.Pattern and target share a code, so node orders are target orders
	n := node.Size()
	translation := make([]int, n)
	full := bitset.New(uint(n))
	for i := 0; i < n; i++ {
		translation[i] = i
		full.Set(uint(i))
	}

	s := &searcher{
		model: opts.CostModel,
		memo:  make(map[string]*subsetPlan),
	}
	best, err := s.solve(node, translation, full)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		Target:      node,
		Cardinality: node.Cardinality,
		Cost:        best.cost,
		Subsets:     len(s.memo),
	}
	s.reconstruct(result, node, translation, full)

	opts.Handler.Emit(annotations.SearchCompleted, start, map[string]interface{}{
		"subsets":     result.Subsets,
		"steps":       len(result.Steps),
		"cost":        result.Cost,
		"cardinality": result.Cardinality,
	})
	return result, nil
}

// solve returns the best plan for the vertex subset set, matched by node
// whose order k is target order translation[k].
func (s *searcher) solve(node *catalog.Node, translation []int, set *bitset.BitSet) (*subsetPlan, error) {
	key := set.String()
	if sp, ok := s.memo[key]; ok {
		return sp, nil
	}

	if set.None() {
		sp := &subsetPlan{card: node.Cardinality, last: -1}
		s.memo[key] = sp
		return sp, nil
	}

	in := s.candidates(node, translation)
	if len(in) == 0 {
		return nil, errors.Wrapf(catalog.ErrUnreachablePattern, "no extend edge reaches %s", node)
	}

	var best *subsetPlan
	for _, e := range in {
		v := translation[e.Step.TargetVertexOrder]
		rest := set.Clone()
		rest.Clear(uint(v))

		sub, err := s.solve(e.Src, subTranslation(e, translation), rest)
		if err != nil {
			return nil, err
		}
		cost := s.model.combine(sub.cost, sub.card)
		if best == nil || cost < best.cost {
			best = &subsetPlan{card: node.Cardinality, cost: cost, last: v}
		}
	}

	s.memo[key] = best
	return best, nil
}

// reconstruct walks the memoized choices back from the full set
func (s *searcher) reconstruct(result *SearchResult, node *catalog.Node, translation []int, set *bitset.BitSet) {
	set = set.Clone()
	for !set.None() {
		sp := s.memo[set.String()]
		var chosen *catalog.Edge
		for _, e := range node.InEdges() {
			if translation[e.Step.TargetVertexOrder] == sp.last {
				chosen = e
				break
			}
		}

		tr := translation
		result.Steps = append(result.Steps, chosen.Step.Remap(func(order int) int { return tr[order] }))
		result.Cardinalities = append(result.Cardinalities, node.Cardinality)

		translation = subTranslation(chosen, translation)
		node = chosen.Src
		set.Clear(uint(sp.last))
	}

	for i, j := 0, len(result.Steps)-1; i < j; i, j = i+1, j-1 {
		result.Steps[i], result.Steps[j] = result.Steps[j], result.Steps[i]
		result.Cardinalities[i], result.Cardinalities[j] = result.Cardinalities[j], result.Cardinalities[i]
	}
}

// candidates returns node's in-edges by ascending target order of the vertex they add
func (s *searcher) candidates(node *catalog.Node, translation []int) []*catalog.Edge {
	in := node.InEdges()
	sort.Slice(in, func(i, j int) bool {
		return translation[in[i].Step.TargetVertexOrder] < translation[in[j].Step.TargetVertexOrder]
	})
	return in
}

// subTranslation maps the source node's orders to target orders
func subTranslation(e *catalog.Edge, translation []int) []int {
	sub := make([]int, e.Src.Size())
	for from, to := range e.SrcToTargetOrder {
		sub[from] = translation[to]
	}
	return sub
}
