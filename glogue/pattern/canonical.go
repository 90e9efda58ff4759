package pattern

import (
	"sort"
	"strconv"
	"strings"

	"github.com/wbrown/glogue/glogue"
)

// Reordering assigns canonical orders 0..N-1 to vertices and 0..M-1 to edges.
//
// The order is a deterministic function of the labelled structure (candidate
// type sets, edge type sets, direction and adjacency), so isomorphic patterns
// receive identical order-labelled structures:
//
//  1. Colour refinement: a vertex colour starts as its candidate type set and is
//     refined by the multiset of (direction, edge types, neighbour colour) until
//     the partition stops splitting.
//  2. Individualization: while a colour class holds more than one vertex, each
//     member of the first such class is individualized in turn and the
//     partition refined again. Every discrete partition is a candidate order.
//  3. The candidate with the smallest code wins. Candidates with equal codes
//     differ by an automorphism; the one listing smaller vertex ids first wins.
//
// Edges are ordered by (src order, dst order, edge types, id).
// Calling Reordering again on an unmodified pattern yields the same orders.
func (p *Pattern) Reordering() {
	verts := make([]*Vertex, 0, len(p.vertices))
	for _, v := range p.vertices {
		verts = append(verts, v)
	}
	sort.Slice(verts, func(i, j int) bool { return verts[i].id < verts[j].id })

	c := newCanonizer(p, verts)
	if len(verts) > 0 {
		c.search(c.initialColors())
	} else {
		c.best = &leaf{code: "v:|e:"}
	}

	p.byOrder = make([]*Vertex, len(verts))
	for i, v := range verts {
		v.order = c.best.order[i]
		p.byOrder[v.order] = v
	}

	p.edgesByOrder = make([]*Edge, 0, len(p.edges))
	for _, e := range p.edges {
		p.edgesByOrder = append(p.edgesByOrder, e)
	}
	sort.Slice(p.edgesByOrder, func(i, j int) bool {
		a, b := p.edgesByOrder[i], p.edgesByOrder[j]
		if a.src.order != b.src.order {
			return a.src.order < b.src.order
		}
		if a.dst.order != b.dst.order {
			return a.dst.order < b.dst.order
		}
		if la, lb := c.edgeLabels[a.id], c.edgeLabels[b.id]; la != lb {
			return la < lb
		}
		return a.id < b.id
	})
	for i, e := range p.edgesByOrder {
		e.order = i
	}

	p.code = c.best.code
	p.hash = hashCode(p.code)
	p.ordered = true
}

type incidence struct {
	other int    // index of the opposite endpoint
	tag   string // direction marker plus edge label
}

type leaf struct {
	order []int // vertex index -> position
	ids   []int // position -> vertex id
	code  string
}

type canonizer struct {
	verts      []*Vertex
	index      map[int]int
	labels     []string
	inc        [][]incidence
	edges      []*Edge
	edgeLabels map[int]string
	twins      [][]bool
	best       *leaf
}

func newCanonizer(p *Pattern, verts []*Vertex) *canonizer {
	c := &canonizer{
		verts:      verts,
		index:      make(map[int]int, len(verts)),
		labels:     make([]string, len(verts)),
		inc:        make([][]incidence, len(verts)),
		edgeLabels: make(map[int]string, len(p.edges)),
	}
	for i, v := range verts {
		c.index[v.id] = i
		c.labels[i] = vertexLabel(v.types)
	}
	for _, e := range p.edges {
		label := edgeLabel(e.types)
		c.edgeLabels[e.id] = label
		c.edges = append(c.edges, e)
		s, d := c.index[e.src.id], c.index[e.dst.id]
		if s == d {
			c.inc[s] = append(c.inc[s], incidence{other: s, tag: "l" + label})
			continue
		}
		c.inc[s] = append(c.inc[s], incidence{other: d, tag: "o" + label})
		c.inc[d] = append(c.inc[d], incidence{other: s, tag: "i" + label})
	}
	c.twins = c.computeTwins()
	return c
}

func (c *canonizer) initialColors() []int {
	unique := append([]string(nil), c.labels...)
	sort.Strings(unique)
	rank := make(map[string]int, len(unique))
	for _, l := range unique {
		if _, ok := rank[l]; !ok {
			rank[l] = len(rank)
		}
	}
	colors := make([]int, len(c.verts))
	for i, l := range c.labels {
		colors[i] = rank[l]
	}
	return colors
}

// refine splits colour classes by neighbourhood until stable.
// The relative order of existing classes is preserved and the result is contiguous.
func (c *canonizer) refine(colors []int) []int {
	type signature struct {
		old int
		nb  string
		idx int
	}
	classes := countDistinct(colors)
	for {
		sigs := make([]signature, len(colors))
		for i := range colors {
			parts := make([]string, len(c.inc[i]))
			for j, in := range c.inc[i] {
				parts[j] = in.tag + "@" + strconv.Itoa(colors[in.other])
			}
			sort.Strings(parts)
			sigs[i] = signature{old: colors[i], nb: strings.Join(parts, ";"), idx: i}
		}
		sort.Slice(sigs, func(a, b int) bool {
			if sigs[a].old != sigs[b].old {
				return sigs[a].old < sigs[b].old
			}
			return sigs[a].nb < sigs[b].nb
		})

		next := make([]int, len(colors))
		rank := -1
		for k, s := range sigs {
			if k == 0 || s.old != sigs[k-1].old || s.nb != sigs[k-1].nb {
				rank++
			}
			next[s.idx] = rank
		}
		if rank+1 == classes {
			return next
		}
		classes = rank + 1
		colors = next
	}
}

func (c *canonizer) search(colors []int) {
	colors = c.refine(colors)
	cell := targetCell(colors)
	if cell == nil {
		c.visit(colors)
		return
	}

	var explored []int
	for _, v := range cell {
		if c.twinOfAny(v, explored) {
			// swapping v with an explored twin is an automorphism that maps
			// this subtree onto one already searched with smaller ids first
			continue
		}
		explored = append(explored, v)
		c.search(individualize(colors, v))
	}
}

func (c *canonizer) visit(order []int) {
	n := len(c.verts)
	ids := make([]int, n)
	vparts := make([]string, n)
	for i, pos := range order {
		ids[pos] = c.verts[i].id
		vparts[pos] = c.labels[i]
	}
	eparts := make([]string, len(c.edges))
	for i, e := range c.edges {
		s, d := order[c.index[e.src.id]], order[c.index[e.dst.id]]
		eparts[i] = strconv.Itoa(s) + ">" + strconv.Itoa(d) + ":" + c.edgeLabels[e.id]
	}
	sort.Strings(eparts)
	code := "v:" + strings.Join(vparts, "/") + "|e:" + strings.Join(eparts, "/")

	if c.best == nil || code < c.best.code || (code == c.best.code && lessInts(ids, c.best.ids)) {
		c.best = &leaf{
			order: append([]int(nil), order...),
			ids:   ids,
			code:  code,
		}
	}
}

// computeTwins marks vertex pairs whose transposition is an automorphism:
// same label and same incidences once the pair itself is identified.
func (c *canonizer) computeTwins() [][]bool {
	n := len(c.verts)
	twins := make([][]bool, n)
	for i := range twins {
		twins[i] = make([]bool, n)
	}
	for u := 0; u < n; u++ {
		for w := u + 1; w < n; w++ {
			if c.labels[u] != c.labels[w] {
				continue
			}
			if c.incidenceKey(u, u, w) == c.incidenceKey(w, u, w) {
				twins[u][w] = true
				twins[w][u] = true
			}
		}
	}
	return twins
}

func (c *canonizer) incidenceKey(v, u, w int) string {
	parts := make([]string, len(c.inc[v]))
	for j, in := range c.inc[v] {
		other := strconv.Itoa(in.other)
		if in.other == u || in.other == w {
			other = "*"
		}
		parts[j] = in.tag + "@" + other
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

func (c *canonizer) twinOfAny(v int, explored []int) bool {
	for _, u := range explored {
		if c.twins[u][v] {
			return true
		}
	}
	return false
}

// targetCell returns the members of the lowest colour shared by more than one vertex
func targetCell(colors []int) []int {
	members := make(map[int][]int)
	for i, col := range colors {
		members[col] = append(members[col], i)
	}
	target := -1
	for col, m := range members {
		if len(m) > 1 && (target == -1 || col < target) {
			target = col
		}
	}
	if target == -1 {
		return nil
	}
	return members[target]
}

// individualize gives v a colour of its own placed just before the rest of its class
func individualize(colors []int, v int) []int {
	next := make([]int, len(colors))
	for i, col := range colors {
		next[i] = col*2 + 1
	}
	next[v] = colors[v] * 2
	return next
}

func countDistinct(colors []int) int {
	seen := make(map[int]bool, len(colors))
	for _, col := range colors {
		seen[col] = true
	}
	return len(seen)
}

func lessInts(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func vertexLabel(types []glogue.TypeID) string {
	sorted := append([]glogue.TypeID(nil), types...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, t := range sorted {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

func edgeLabel(types []glogue.EdgeTypeID) string {
	sorted := append([]glogue.EdgeTypeID(nil), types...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Compare(sorted[j]) < 0 })
	parts := make([]string, len(sorted))
	for i, t := range sorted {
		parts[i] = t.Src.String() + "." + t.Dst.String() + "." + t.Label.String()
	}
	return strings.Join(parts, ",")
}
