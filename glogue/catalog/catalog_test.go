package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/glogue/glogue"
	"github.com/wbrown/glogue/glogue/annotations"
	"github.com/wbrown/glogue/glogue/pattern"
	"github.com/wbrown/glogue/glogue/schema"
)

const (
	person  glogue.TypeID = 1
	company glogue.TypeID = 2
	ghost   glogue.TypeID = 3
	knows   glogue.TypeID = 10
	works   glogue.TypeID = 11
	likes   glogue.TypeID = 12
)

var (
	knowsET = glogue.NewEdgeTypeID(person, person, knows)
	worksET = glogue.NewEdgeTypeID(person, company, works)
)

func testSchema(t *testing.T) *schema.Statistics {
	t.Helper()
	s, err := schema.NewBuilder().
		AddVertexType(person, 100).
		AddVertexType(company, 10).
		AddVertexType(ghost, 0).
		AddEdgeType(knowsET, 1000).
		AddEdgeType(worksET, 200).
		AddEdgeType(glogue.NewEdgeTypeID(person, ghost, likes), 5).
		Build()
	require.NoError(t, err)
	return s
}

// path builds a-knows->b-knows->c with ids offset by base
func path(base int) *pattern.Pattern {
	p := pattern.New()
	a := p.AddVertex(base+1, person)
	b := p.AddVertex(base+2, person)
	c := p.AddVertex(base+3, person)
	p.AddEdge(base+1, a, b, knowsET)
	p.AddEdge(base+2, b, c, knowsET)
	return p
}

type eventRecorder struct {
	mu     sync.Mutex
	events []annotations.Event
}

func (r *eventRecorder) handle(e annotations.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func TestNewSeedsEmptyPattern(t *testing.T) {
	c := New(testSchema(t), DefaultOptions())

	nodes := c.Nodes()
	require.Len(t, nodes, 1)
	assert.Same(t, c.Root(), nodes[0])
	assert.Equal(t, 0, c.Root().Size())
	assert.Equal(t, 1.0, c.Root().Cardinality)
	assert.Empty(t, c.Root().InEdges())
}

func TestPathPopulatesEachSizeOnceUnderConcurrency(t *testing.T) {
	rec := &eventRecorder{}
	c := New(testSchema(t), Options{Handler: rec.handle})

	var wg sync.WaitGroup
	results := make([]*Node, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Ensure(path(i * 10))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Same(t, results[0], results[1])

	nodes := c.Nodes()
	require.Len(t, nodes, 4)
	for i, n := range nodes {
		assert.Equal(t, i, n.Size(), "node %d", i)
	}
	assert.Equal(t, 3, rec.count(annotations.CatalogNodeCreated))

	assert.InDelta(t, 100.0, nodes[1].Cardinality, 1e-9)
	assert.InDelta(t, 1000.0, nodes[2].Cardinality, 1e-9)
	assert.InDelta(t, 10000.0, nodes[3].Cardinality, 1e-9)
}

func TestEnsureHitsExistingNode(t *testing.T) {
	rec := &eventRecorder{}
	c := New(testSchema(t), Options{Handler: rec.handle})

	first, err := c.Ensure(path(0))
	require.NoError(t, err)
	second, err := c.Ensure(path(100))
	require.NoError(t, err)

	assert.Same(t, first, second)
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 4, stats.Nodes)
	assert.Equal(t, 1, rec.count(annotations.CatalogHit))
}

func TestEnsureTracedReportsToBothHandlers(t *testing.T) {
	shared := &eventRecorder{}
	c := New(testSchema(t), Options{Handler: shared.handle})

	call := &eventRecorder{}
	_, err := c.EnsureTraced(path(0), call.handle)
	require.NoError(t, err)
	assert.Equal(t, 3, call.count(annotations.CatalogNodeCreated))
	assert.Equal(t, 3, shared.count(annotations.CatalogNodeCreated))

	again := &eventRecorder{}
	_, err = c.EnsureTraced(path(7), again.handle)
	require.NoError(t, err)
	assert.Equal(t, 1, again.count(annotations.CatalogHit))
	assert.Zero(t, again.count(annotations.CatalogNodeCreated))

	// A catalog without its own handler still reports to the caller
	bare := New(testSchema(t), DefaultOptions())
	traced := &eventRecorder{}
	_, err = bare.EnsureTraced(path(0), traced.handle)
	require.NoError(t, err)
	assert.Equal(t, 3, traced.count(annotations.CatalogNodeCreated))
}

func TestIsomorphicPatternsShareEstimate(t *testing.T) {
	c := New(testSchema(t), DefaultOptions())

	build := func(ids [3]int) *pattern.Pattern {
		p := pattern.New()
		a := p.AddVertex(ids[0], person)
		b := p.AddVertex(ids[1], person)
		co := p.AddVertex(ids[2], company)
		p.AddEdge(1, a, b, knowsET)
		p.AddEdge(2, a, co, worksET)
		p.AddEdge(3, b, co, worksET)
		return p
	}

	n1, err := c.Ensure(build([3]int{1, 2, 3}))
	require.NoError(t, err)
	n2, err := c.Ensure(build([3]int{9, 7, 8}))
	require.NoError(t, err)

	assert.Same(t, n1, n2)
	// 100 * 100 * 0.1 * 10 * 0.2 * 0.2
	assert.InDelta(t, 400.0, n1.Cardinality, 1e-9)
}

func TestCardinalityIsPathIndependent(t *testing.T) {
	c := New(testSchema(t), DefaultOptions())

	p := pattern.New()
	a := p.AddVertex(1, person)
	b := p.AddVertex(2, person)
	d := p.AddVertex(3, person)
	p.AddEdge(1, a, b, knowsET)
	p.AddEdge(2, b, d, knowsET)
	p.AddEdge(3, d, a, knowsET)

	n, err := c.Ensure(p)
	require.NoError(t, err)
	require.Len(t, n.InEdges(), 3)
	for _, e := range n.InEdges() {
		assert.InDelta(t, n.Cardinality, e.Src.Cardinality*e.Step.Weight, 1e-9)
		assert.Len(t, e.Step.Edges, 2)
	}
	assert.InDelta(t, 1000.0, n.Cardinality, 1e-9)
}

func TestInEdgeOrderMapping(t *testing.T) {
	c := New(testSchema(t), DefaultOptions())

	n, err := c.Ensure(path(0))
	require.NoError(t, err)

	// removing the middle vertex disconnects the path
	in := n.InEdges()
	require.Len(t, in, 2)
	for _, e := range in {
		assert.Same(t, n, e.Dst)
		assert.Equal(t, 2, e.Src.Size())
		require.Len(t, e.SrcToTargetOrder, 2)

		covered := map[int]bool{e.Step.TargetVertexOrder: true}
		for _, to := range e.SrcToTargetOrder {
			assert.False(t, covered[to], "order %d mapped twice", to)
			covered[to] = true
		}
		assert.Len(t, covered, 3)

		require.Len(t, e.Step.Edges, 1)
		_, ok := e.SrcToTargetOrder[0]
		assert.True(t, ok)
	}

	single := in[0].Src.InEdges()
	require.Len(t, single, 2)
	for _, e := range single {
		assert.Same(t, c.Root(), e.Src.InEdges()[0].Src)
		assert.Empty(t, e.Src.InEdges()[0].Step.Edges)
	}
}

func TestExtendStepDirections(t *testing.T) {
	c := New(testSchema(t), DefaultOptions())

	p := pattern.New()
	a := p.AddVertex(1, person)
	co := p.AddVertex(2, company)
	p.AddEdge(1, a, co, worksET)
	p.AddEdge(2, a, a, knowsET)

	n, err := c.Ensure(p)
	require.NoError(t, err)

	var sawIn, sawOut bool
	for _, e := range n.InEdges() {
		step := e.Step
		target := n.Pattern.VertexByOrder(step.TargetVertexOrder)
		switch target.Type() {
		case company:
			require.Len(t, step.Edges, 1)
			assert.Equal(t, glogue.Out, step.Edges[0].Direction)
			sawOut = true
		case person:
			require.Len(t, step.Edges, 2)
			dirs := []glogue.Direction{step.Edges[0].Direction, step.Edges[1].Direction}
			assert.ElementsMatch(t, []glogue.Direction{glogue.In, glogue.Both}, dirs)
			sawIn = true
		}
	}
	assert.True(t, sawIn)
	assert.True(t, sawOut)
}

func TestEnsureFailures(t *testing.T) {
	tests := []struct {
		name  string
		build func() *pattern.Pattern
		want  error
	}{
		{
			name: "edge type absent from schema",
			build: func() *pattern.Pattern {
				p := pattern.New()
				a := p.AddVertex(1, person)
				co := p.AddVertex(2, company)
				p.AddEdge(1, a, co, glogue.NewEdgeTypeID(person, company, likes))
				return p
			},
			want: ErrUnreachablePattern,
		},
		{
			name: "edge type inconsistent with endpoint types",
			build: func() *pattern.Pattern {
				p := pattern.New()
				a := p.AddVertex(1, company)
				b := p.AddVertex(2, person)
				p.AddEdge(1, a, b, knowsET)
				return p
			},
			want: ErrUnreachablePattern,
		},
		{
			name: "vertex type absent from schema",
			build: func() *pattern.Pattern {
				p := pattern.New()
				p.AddVertex(1, 99)
				return p
			},
			want: ErrUnreachablePattern,
		},
		{
			name: "disconnected",
			build: func() *pattern.Pattern {
				p := pattern.New()
				p.AddVertex(1, person)
				p.AddVertex(2, person)
				return p
			},
			want: ErrDisconnectedPattern,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(testSchema(t), DefaultOptions())
			n, err := c.Ensure(tt.build())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Nil(t, n)
		})
	}
}

func TestFailedEnsurePublishesNothingForTarget(t *testing.T) {
	c := New(testSchema(t), DefaultOptions())

	p := pattern.New()
	a := p.AddVertex(1, person)
	co := p.AddVertex(2, company)
	p.AddEdge(1, a, co, glogue.NewEdgeTypeID(person, company, likes))

	_, err := c.Ensure(p)
	require.Error(t, err)
	for _, n := range c.Nodes() {
		assert.Less(t, n.Size(), 2)
	}
}

func TestRejectsOversizedAndFuzzyPatterns(t *testing.T) {
	c := New(testSchema(t), Options{MaxPatternSize: 2})
	_, err := c.Ensure(path(0))
	assert.True(t, errors.Is(err, ErrPatternTooLarge))

	fuzzy := pattern.New()
	fuzzy.AddVertex(1, person, company)
	_, err = c.Ensure(fuzzy)
	assert.Error(t, err)
}

func TestZeroCardinalityTypeGivesZeroEstimate(t *testing.T) {
	c := New(testSchema(t), DefaultOptions())

	p := pattern.New()
	a := p.AddVertex(1, person)
	g := p.AddVertex(2, ghost)
	p.AddEdge(1, a, g, glogue.NewEdgeTypeID(person, ghost, likes))

	n, err := c.Ensure(p)
	require.NoError(t, err)
	assert.Equal(t, 0.0, n.Cardinality)
}

func TestLookupReturnsMapping(t *testing.T) {
	c := New(testSchema(t), DefaultOptions())

	_, _, ok := c.Lookup(path(0))
	assert.False(t, ok)

	_, err := c.Ensure(path(0))
	require.NoError(t, err)

	other := path(50)
	n, m, ok := c.Lookup(other)
	require.True(t, ok)
	assert.Same(t, other, m.From)
	assert.Same(t, n.Pattern, m.To)
	assert.True(t, m.Verify())
}

func TestEdgesCoverEveryAncestor(t *testing.T) {
	c := New(testSchema(t), DefaultOptions())

	edges, err := c.Edges(path(0))
	require.NoError(t, err)

	// 1-vertex: 1 edge, 2-vertex path: 2 edges, 3-vertex path: 2 edges
	require.Len(t, edges, 5)
	assert.Same(t, c.Root(), edges[0].Src)
	for i := 1; i < len(edges); i++ {
		assert.LessOrEqual(t, edges[i-1].Dst.Size(), edges[i].Dst.Size())
	}

	out := c.OutEdges(c.Nodes()[1])
	assert.Len(t, out, 2)
}

func TestWarm(t *testing.T) {
	c := New(testSchema(t), DefaultOptions())

	var patterns []*pattern.Pattern
	for i := 0; i < 8; i++ {
		patterns = append(patterns, path(i*10))
	}
	p := pattern.New()
	a := p.AddVertex(1, person)
	co := p.AddVertex(2, company)
	p.AddEdge(1, a, co, worksET)
	patterns = append(patterns, p)

	require.NoError(t, c.Warm(context.Background(), patterns, 4))
	// empty, person, company, person-person, person-company, path
	assert.Equal(t, 6, c.Stats().Nodes)

	bad := pattern.New()
	bad.AddVertex(1, 99)
	err := c.Warm(context.Background(), []*pattern.Pattern{bad}, 2)
	assert.True(t, errors.Is(err, ErrUnreachablePattern))
}

func TestHandleRefresh(t *testing.T) {
	first := New(testSchema(t), Options{MaxPatternSize: 5})
	_, err := first.Ensure(path(0))
	require.NoError(t, err)

	h := NewHandle(first)
	assert.Same(t, first, h.Load())

	next := h.Refresh(testSchema(t))
	assert.Same(t, next, h.Load())
	assert.NotSame(t, first, next)
	assert.Equal(t, 1, next.Stats().Nodes)
	assert.Equal(t, 5, next.Options().MaxPatternSize)
	assert.Equal(t, 4, first.Stats().Nodes, "previous catalog untouched")
}

func TestTreeRendersExtendDAG(t *testing.T) {
	c := New(testSchema(t), DefaultOptions())
	n, err := c.Ensure(path(0))
	require.NoError(t, err)

	out := Tree(n)
	assert.Contains(t, out, "3 vertices")
	assert.Contains(t, out, "2 vertices")
	assert.Contains(t, out, "0 vertices")
}
