package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/glogue/glogue"
	"github.com/wbrown/glogue/glogue/annotations"
	"github.com/wbrown/glogue/glogue/catalog"
	"github.com/wbrown/glogue/glogue/fuzzy"
	"github.com/wbrown/glogue/glogue/pattern"
)

func TestPlanCacheServesIsomorphicPatterns(t *testing.T) {
	cache := NewPlanCache(10, time.Minute)
	hits := 0
	opts := DefaultOptions()
	opts.Cache = cache
	opts.Handler = func(e annotations.Event) {
		if e.Name == annotations.PlanCacheHit {
			hits++
		}
	}
	pl := New(catalog.New(testSchema(t), catalog.DefaultOptions()), opts)

	first, err := pl.Plan(path3(1))
	require.NoError(t, err)
	second, err := pl.Plan(path3(100))
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, first.Steps, second.Steps)
	assert.Equal(t, first.Cardinality, second.Cardinality)
	assert.Equal(t, 1, hits)

	// The hit carries its own trace, not the planning call's
	require.Len(t, second.Trace, 1)
	assert.Equal(t, annotations.PlanCacheHit, second.Trace[0].Name)
	assert.Equal(t, annotations.PlanInvoked, first.Trace[0].Name)
	h, m, size := cache.Stats()
	assert.Equal(t, int64(1), h)
	assert.Equal(t, int64(1), m)
	assert.Equal(t, 1, size)
}

func TestPlanCacheKeepsCandidateOrder(t *testing.T) {
	fuzzyPattern := func(vertex []glogue.TypeID, edge []glogue.EdgeTypeID) *pattern.Pattern {
		p := pattern.New()
		a := p.AddVertex(1, vertex...)
		b := p.AddVertex(2, typeR)
		p.AddEdge(1, a, b, edge...)
		return p
	}
	pr := glogue.NewEdgeTypeID(typeP, typeR, fuzzyEdge)
	qr := glogue.NewEdgeTypeID(typeQ, typeR, fuzzyEdge)
	pq := func() *pattern.Pattern { return fuzzyPattern([]glogue.TypeID{typeP, typeQ}, []glogue.EdgeTypeID{pr, qr}) }
	qp := func() *pattern.Pattern { return fuzzyPattern([]glogue.TypeID{typeQ, typeP}, []glogue.EdgeTypeID{qr, pr}) }
	require.Equal(t, pq().Code(), qp().Code())

	s := fuzzySchema(t)
	uncached, err := New(catalog.New(s, catalog.DefaultOptions()), DefaultOptions()).Plan(qp())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Cache = NewPlanCache(10, time.Minute)
	pl := New(catalog.New(s, catalog.DefaultOptions()), opts)

	first, err := pl.Plan(pq())
	require.NoError(t, err)
	assert.InDelta(t, 560.0, first.Cardinality, 1e-9)

	second, err := pl.Plan(qp())
	require.NoError(t, err)
	var types []glogue.TypeID
	for _, step := range second.Steps {
		types = append(types, step.VertexType)
	}
	assert.ElementsMatch(t, []glogue.TypeID{typeQ, typeR}, types)
	assert.InDelta(t, uncached.Cardinality, second.Cardinality, 1e-9)
	assert.InDelta(t, 90.0, second.RawCardinality, 1e-9)
	assert.InDelta(t, 4.0/3.0, second.VerticesWeight, 1e-12)
	assert.InDelta(t, 140.0/90.0, second.EdgesWeight, 1e-12)

	h, m, size := opts.Cache.Stats()
	assert.Zero(t, h)
	assert.Equal(t, int64(2), m)
	assert.Equal(t, 2, size)

	third, err := pl.Plan(pq())
	require.NoError(t, err)
	assert.Equal(t, first.Cardinality, third.Cardinality)
}

func TestPlanCacheKeyIncludesOptionsAndCatalog(t *testing.T) {
	cache := NewPlanCache(10, time.Minute)
	cat := catalog.New(testSchema(t), catalog.DefaultOptions())
	p := path3(1)
	plan := &Plan{Cardinality: 1}

	cache.Set(p, cat, plan, DefaultOptions())

	got, ok := cache.Get(p, cat, DefaultOptions())
	require.True(t, ok)
	assert.Same(t, plan, got)

	maxOpts := DefaultOptions()
	maxOpts.CostModel = CostMax
	_, ok = cache.Get(p, cat, maxOpts)
	assert.False(t, ok)

	minOpts := DefaultOptions()
	minOpts.Representative = fuzzy.MinCardinality
	_, ok = cache.Get(p, cat, minOpts)
	assert.False(t, ok)

	_, ok = cache.Get(p, catalog.New(testSchema(t), catalog.DefaultOptions()), DefaultOptions())
	assert.False(t, ok)
}

func TestPlanCacheEviction(t *testing.T) {
	cache := NewPlanCache(2, time.Minute)
	cat := catalog.New(testSchema(t), catalog.DefaultOptions())

	patterns := []*pattern.Pattern{path3(1), employmentOnly(), single()}
	for _, p := range patterns {
		cache.Set(p, cat, &Plan{}, DefaultOptions())
		time.Sleep(time.Millisecond)
	}
	_, _, size := cache.Stats()
	assert.Equal(t, 2, size)

	_, ok := cache.Get(patterns[0], cat, DefaultOptions())
	assert.False(t, ok, "oldest entry evicted")
	_, ok = cache.Get(patterns[2], cat, DefaultOptions())
	assert.True(t, ok)
}

func TestPlanCacheExpiry(t *testing.T) {
	cache := NewPlanCache(10, time.Millisecond)
	cat := catalog.New(testSchema(t), catalog.DefaultOptions())
	p := single()

	cache.Set(p, cat, &Plan{}, DefaultOptions())
	time.Sleep(5 * time.Millisecond)
	_, ok := cache.Get(p, cat, DefaultOptions())
	assert.False(t, ok)
}

func TestNilPlanCacheIsSafe(t *testing.T) {
	var cache *PlanCache
	_, ok := cache.Get(single(), nil, DefaultOptions())
	assert.False(t, ok)
	cache.Set(single(), nil, &Plan{}, DefaultOptions())
	cache.Clear()
	h, m, size := cache.Stats()
	assert.Zero(t, h+m)
	assert.Zero(t, size)
}

func path3(base int) *pattern.Pattern {
	p := pattern.New()
	a := p.AddVertex(base, person)
	b := p.AddVertex(base+1, person)
	c := p.AddVertex(base+2, person)
	p.AddEdge(base, a, b, knowsET)
	p.AddEdge(base+1, b, c, knowsET)
	return p
}

func employmentOnly() *pattern.Pattern {
	p, _ := employment()
	return p
}

func single() *pattern.Pattern {
	p := pattern.New()
	p.AddVertex(1, city)
	return p
}
