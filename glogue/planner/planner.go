// Package planner turns graph patterns into extend plans: the order in which
// pattern vertices are matched, chosen by cost over catalog cardinalities.
//
// File organization:
//   - planner.go: Planner struct and Plan() entry point
//   - search.go: dynamic programming over connected vertex subsets
//   - types.go: Options, CostModel, Plan and its steps
//   - format.go: String() and markdown Table() rendering of plans
//   - cache.go: PlanCache keyed by the caller pattern's canonical code
//
// Start with Plan() in planner.go to understand the planning flow.
package planner

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/wbrown/glogue/glogue/annotations"
	"github.com/wbrown/glogue/glogue/catalog"
	"github.com/wbrown/glogue/glogue/fuzzy"
	"github.com/wbrown/glogue/glogue/pattern"
)

// Planner plans patterns against one catalog. It is safe for concurrent use.
type Planner struct {
	catalog *catalog.Catalog
	options Options
	cache   *PlanCache
}

// New creates a planner over cat
func New(cat *catalog.Catalog, options Options) *Planner {
	if options.MaxPatternSize <= 0 {
		options.MaxPatternSize = catalog.DefaultMaxPatternSize
	}
	if options.Representative == nil {
		options.Representative = fuzzy.FirstCandidate
	}
	return &Planner{
		catalog: cat,
		options: options,
		cache:   options.Cache,
	}
}

// Options returns the planner options
func (p *Planner) Options() Options {
	return p.options
}

// Catalog returns the catalog the planner estimates with
func (p *Planner) Catalog() *catalog.Catalog {
	return p.catalog
}

// Plan resolves pat, ensures it in the catalog, searches the cheapest extend
// order and expresses the result in pat's own vertex orders.
// pat is reordered as a side effect.
func (p *Planner) Plan(pat *pattern.Pattern) (*Plan, error) {
	start := time.Now()

	// Check cache first (with planner options)
	if p.cache != nil {
		if cached, ok := p.cache.Get(pat, p.catalog, p.options); ok {
			collector := annotations.NewCollector(p.options.Handler)
			collector.AddTiming(annotations.PlanCacheHit, start, map[string]interface{}{
				"cardinality": cached.Cardinality,
			})
			// The cached trace belongs to the call that planned it
			hit := *cached
			hit.Trace = collector.Events()
			return &hit, nil
		}
	}

	collector := annotations.NewCollector(p.options.Handler)
	collector.AddTiming(annotations.PlanInvoked, start, map[string]interface{}{
		"pattern": pat.String(),
	})

	plan, err := p.plan(pat, collector)
	if err != nil {
		collector.AddTiming(annotations.ErrorPlanning, start, map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	collector.AddTiming(annotations.PlanCompleted, start, map[string]interface{}{
		"steps":       len(plan.Steps),
		"cardinality": plan.Cardinality,
		"cost":        plan.Cost,
	})
	plan.Trace = collector.Events()

	// Cache the plan (with planner options)
	if p.cache != nil {
		p.cache.Set(pat, p.catalog, plan, p.options)
	}

	return plan, nil
}

func (p *Planner) plan(pat *pattern.Pattern, collector *annotations.Collector) (*Plan, error) {
	if pat.VertexCount() > p.options.MaxPatternSize {
		return nil, errors.Wrapf(catalog.ErrPatternTooLarge,
			"%d vertices, limit %d", pat.VertexCount(), p.options.MaxPatternSize)
	}

	resolveStart := time.Now()
	resolver := fuzzy.NewResolver(p.catalog.Schema(), p.options.Representative)
	resolved, info, err := resolver.Process(pat)
	if err != nil {
		return nil, errors.Wrap(err, "resolving fuzzy pattern")
	}
	collector.AddTiming(annotations.FuzzyResolved, resolveStart, map[string]interface{}{
		"fuzzy":           info.Fuzzy(),
		"vertices.weight": info.VerticesWeight,
		"edges.weight":    info.EdgesWeight,
	})

	searchOpts := p.options
	searchOpts.Handler = collector.Handler()
	result, err := Search(p.catalog, resolved, searchOpts)
	if err != nil {
		return nil, errors.Wrap(err, "searching extend plan")
	}

	plan := &Plan{
		Cardinality:    fuzzy.EstimateCount(result.Cardinality, info),
		RawCardinality: result.Cardinality,
		Cost:           result.Cost,
		CostModel:      p.options.CostModel,
		Fuzzy:          info.Fuzzy(),
		VerticesWeight: info.VerticesWeight,
		EdgesWeight:    info.EdgesWeight,
		FinalEdges:     fuzzy.RemapEdges(result.Target.InEdges(), info, false),
	}

	for i, step := range result.Steps {
		s := step.Remap(info.ToOriginalOrder)
		ps := PlanStep{
			VertexOrder: s.TargetVertexOrder,
			VertexType:  s.TargetVertexType,
			Candidates:  info.VertexOrderToTypes[s.TargetVertexOrder],
			Cardinality: result.Cardinalities[i],
		}
		for _, e := range s.Edges {
			ps.Edges = append(ps.Edges, PlanEdge{
				SrcVertexOrder: e.SrcVertexOrder,
				EdgeType:       e.EdgeType,
				Direction:      e.Direction,
			})
		}
		plan.Steps = append(plan.Steps, ps)
	}

	return plan, nil
}
