// Package catalog implements the pattern catalog: a process-wide cache of
// single-typed patterns keyed by isomorphism class, linked by the extend
// edges that grow each pattern from its one-vertex-smaller sub-patterns.
//
// File organization:
//   - catalog.go: Catalog construction, Ensure/Lookup and node publication
//   - estimate.go: extend steps and the selectivity-chain cardinality model
//   - types.go: Node, Edge, ExtendStep, ExtendEdge
//   - handle.go: copy-on-refresh swapping of catalog instances
//   - tree.go: rendering of a node's extend DAG
package catalog

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wbrown/glogue/glogue/annotations"
	"github.com/wbrown/glogue/glogue/pattern"
	"github.com/wbrown/glogue/glogue/schema"
)

var (
	// ErrUnreachablePattern is returned when no extend path from the empty
	// pattern can produce the requested pattern under the schema
	ErrUnreachablePattern = errors.New("pattern is unreachable under the schema")

	// ErrDisconnectedPattern is returned for patterns that are not weakly connected
	ErrDisconnectedPattern = errors.New("pattern is not connected")

	// ErrPatternTooLarge is returned when a pattern exceeds Options.MaxPatternSize
	ErrPatternTooLarge = errors.New("pattern exceeds maximum size")
)

// DefaultMaxPatternSize bounds the number of vertices the catalog accepts
const DefaultMaxPatternSize = 16

// Options configures a Catalog
type Options struct {
	Handler        annotations.Handler // Receives catalog/node.created and catalog/hit events
	MaxPatternSize int                 // Largest accepted pattern, in vertices
}

// DefaultOptions returns the catalog defaults
func DefaultOptions() Options {
	return Options{MaxPatternSize: DefaultMaxPatternSize}
}

// Catalog is safe for concurrent use. Nodes are published once and never
// modified, so readers only hold the index lock while probing a bucket.
type Catalog struct {
	schema schema.Schema
	opts   Options

	mu        sync.RWMutex
	buckets   map[uint64][]*Node
	nodes     []*Node
	edgeCount int
	root      *Node

	flight singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a catalog over a schema snapshot, seeded with the empty pattern
func New(s schema.Schema, opts Options) *Catalog {
	if opts.MaxPatternSize <= 0 {
		opts.MaxPatternSize = DefaultMaxPatternSize
	}

	empty := pattern.New()
	empty.Reordering()
	root := &Node{
		ID:          empty.Hash(),
		Code:        empty.Code(),
		Pattern:     empty,
		Cardinality: 1,
	}

	return &Catalog{
		schema:  s,
		opts:    opts,
		buckets: map[uint64][]*Node{root.ID: {root}},
		nodes:   []*Node{root},
		root:    root,
	}
}

// Schema returns the snapshot the catalog estimates against
func (c *Catalog) Schema() schema.Schema { return c.schema }

// Options returns the catalog options
func (c *Catalog) Options() Options { return c.opts }

// Root returns the node of the empty pattern
func (c *Catalog) Root() *Node { return c.root }

// Ensure returns the node for p's isomorphism class, constructing it and every
// missing connected sub-pattern obtained by removing single vertices.
// p must be single-typed and connected. p itself is never stored.
func (c *Catalog) Ensure(p *pattern.Pattern) (*Node, error) {
	return c.EnsureTraced(p, nil)
}

// EnsureTraced is Ensure with catalog events also sent to h. A node built
// concurrently by another caller is reported only to that caller.
func (c *Catalog) EnsureTraced(p *pattern.Pattern, h annotations.Handler) (*Node, error) {
	if err := c.validate(p); err != nil {
		return nil, err
	}

	emit := c.handler(h)
	start := time.Now()
	if n := c.lookup(p.Hash(), p.Code()); n != nil {
		c.hits.Add(1)
		emit.Emit(annotations.CatalogHit, start, map[string]interface{}{
			"vertices":    n.Size(),
			"cardinality": n.Cardinality,
		})
		return n, nil
	}
	c.misses.Add(1)

	return c.ensure(p.Clone(), emit)
}

// handler combines the catalog's handler with a per-call one
func (c *Catalog) handler(h annotations.Handler) annotations.Handler {
	base := c.opts.Handler
	switch {
	case h == nil:
		return base
	case base == nil:
		return h
	}
	return func(e annotations.Event) {
		base(e)
		h(e)
	}
}

// Lookup returns the node for p's isomorphism class if it is cataloged, and
// the mapping from p to the node's canonical instance.
func (c *Catalog) Lookup(p *pattern.Pattern) (*Node, *pattern.Mapping, bool) {
	n := c.lookup(p.Hash(), p.Code())
	if n == nil {
		return nil, nil, false
	}
	m, ok := pattern.NewMapping(p, n.Pattern)
	if !ok || !m.Verify() {
		return nil, nil, false
	}
	return n, m, true
}

// Edges returns every extend edge on the way from the empty pattern to p,
// ensuring p first. Edges are ordered by node creation, then by introduced vertex.
func (c *Catalog) Edges(p *pattern.Pattern) ([]*Edge, error) {
	target, err := c.Ensure(p)
	if err != nil {
		return nil, err
	}

	seen := make(map[*Node]bool)
	var result []*Edge
	var walk func(n *Node)
	walk = func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, e := range n.in {
			walk(e.Src)
			result = append(result, e)
		}
	}
	walk(target)

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Dst.seq != result[j].Dst.seq {
			return result[i].Dst.seq < result[j].Dst.seq
		}
		return result[i].Step.TargetVertexOrder < result[j].Step.TargetVertexOrder
	})
	return result, nil
}

// OutEdges returns the cataloged edges leaving n, ordered by destination node
func (c *Catalog) OutEdges(n *Node) []*Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*Edge
	for _, dst := range c.nodes {
		for _, e := range dst.in {
			if e.Src == n {
				result = append(result, e)
			}
		}
	}
	return result
}

// Nodes returns every node in insertion order, the empty pattern first
func (c *Catalog) Nodes() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Node(nil), c.nodes...)
}

// Stats returns catalog size and lookup counters
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Nodes:  len(c.nodes),
		Edges:  c.edgeCount,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Warm ensures every pattern using at most workers goroutines. It stops at
// the first failure.
func (c *Catalog) Warm(ctx context.Context, patterns []*pattern.Pattern, workers int) error {
	if workers <= 0 {
		workers = 1
	}

	// Private copies so concurrent canonicalization never touches caller patterns
	copies := make([]*pattern.Pattern, len(patterns))
	for i, p := range patterns {
		copies[i] = p.Clone()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range copies {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := c.Ensure(p); err != nil {
				return errors.Wrapf(err, "warming pattern %d", i)
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Catalog) validate(p *pattern.Pattern) error {
	if p.VertexCount() > c.opts.MaxPatternSize {
		return errors.Wrapf(ErrPatternTooLarge, "%d vertices, limit %d", p.VertexCount(), c.opts.MaxPatternSize)
	}
	if p.IsFuzzy() {
		return errors.AssertionFailedf("catalog only accepts single-typed patterns: %s", p)
	}
	if !p.IsConnected() {
		return errors.Wrapf(ErrDisconnectedPattern, "%s", p)
	}
	return nil
}

func (c *Catalog) lookup(hash uint64, code string) *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookupLocked(hash, code)
}

func (c *Catalog) lookupLocked(hash uint64, code string) *Node {
	for _, n := range c.buckets[hash] {
		if n.Code == code {
			return n
		}
	}
	return nil
}

// ensure takes ownership of p, which becomes the canonical instance if p's
// class is not yet cataloged.
func (c *Catalog) ensure(p *pattern.Pattern, emit annotations.Handler) (*Node, error) {
	hash, code := p.Hash(), p.Code()
	if n := c.lookup(hash, code); n != nil {
		return n, nil
	}

	v, err, _ := c.flight.Do(code, func() (interface{}, error) {
		// Another builder may have published between the first lookup and Do
		if n := c.lookup(hash, code); n != nil {
			return n, nil
		}
		start := time.Now()
		n, err := c.build(p, emit)
		if err != nil {
			return nil, err
		}
		return c.publish(n, start, emit), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Node), nil
}

// build constructs the node for p with one in-edge per vertex whose removal
// leaves a connected pattern.
func (c *Catalog) build(p *pattern.Pattern, emit annotations.Handler) (*Node, error) {
	n := &Node{
		ID:      p.Hash(),
		Code:    p.Code(),
		Pattern: p,
	}

	for _, v := range p.Vertices() {
		sub := p.RemoveVertex(v.ID())
		if !sub.IsConnected() {
			continue
		}

		step, err := c.extendStep(p, v)
		if err != nil {
			return nil, err
		}
		src, err := c.ensure(sub, emit)
		if err != nil {
			return nil, err
		}

		// sub and src.Pattern share a code, so positions correspond
		mapping := make(map[int]int, sub.VertexCount())
		for k := 0; k < sub.VertexCount(); k++ {
			mapping[k] = p.VertexByID(sub.VertexByOrder(k).ID()).Order()
		}

		n.in = append(n.in, &Edge{
			Src:              src,
			Dst:              n,
			Step:             step,
			SrcToTargetOrder: mapping,
		})
	}

	if len(n.in) == 0 {
		return nil, errors.Wrapf(ErrUnreachablePattern, "no extend edge reaches %s", p)
	}

	// Every in-edge yields the same product of vertex cardinalities and edge
	// selectivities; the first one is used.
	n.Cardinality = n.in[0].Src.Cardinality * n.in[0].Step.Weight
	return n, nil
}

// publish inserts n unless its class is already present, returning the stored node
func (c *Catalog) publish(n *Node, start time.Time, emit annotations.Handler) *Node {
	c.mu.Lock()
	if existing := c.lookupLocked(n.ID, n.Code); existing != nil {
		c.mu.Unlock()
		return existing
	}
	n.seq = len(c.nodes)
	c.buckets[n.ID] = append(c.buckets[n.ID], n)
	c.nodes = append(c.nodes, n)
	c.edgeCount += len(n.in)
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"seq":         n.seq,
		"vertices":    n.Size(),
		"in_edges":    len(n.in),
		"cardinality": n.Cardinality,
	}).Debug("catalog node created")

	emit.Emit(annotations.CatalogNodeCreated, start, map[string]interface{}{
		"vertices":    n.Size(),
		"edges":       n.Pattern.EdgeCount(),
		"cardinality": n.Cardinality,
		"code":        n.Code,
	})
	return n
}
