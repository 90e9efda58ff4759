package main

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/glogue/glogue"
	"github.com/wbrown/glogue/glogue/catalog"
	"github.com/wbrown/glogue/glogue/planner"
	"github.com/wbrown/glogue/glogue/schema"
)

const statsYAML = `
vertex_types:
  - {id: 1, name: person, cardinality: 100}
  - {id: 2, name: company, cardinality: 300}
  - {id: 3, name: city, cardinality: 50}
labels:
  - {id: 10, name: located}
  - {id: 11, name: visits}
edge_types:
  - {src: person, dst: city, label: located, cardinality: 50}
  - {src: company, dst: city, label: located, cardinality: 90}
`

func loadStats(t *testing.T) *schema.Statistics {
	t.Helper()
	s, err := schema.Parse([]byte(statsYAML))
	require.NoError(t, err)
	return s
}

func TestParsePatternExpandsCandidates(t *testing.T) {
	s := loadStats(t)
	p, err := parsePattern([]byte(`
vertices:
  - {id: 1, types: [person, company]}
  - {id: 2, types: [city]}
edges:
  - {id: 1, src: 1, dst: 2, labels: [located]}
`), s)
	require.NoError(t, err)

	assert.Equal(t, []glogue.TypeID{1, 2}, p.VertexByID(1).Types())
	assert.Equal(t, []glogue.EdgeTypeID{
		glogue.NewEdgeTypeID(1, 3, 10),
		glogue.NewEdgeTypeID(2, 3, 10),
	}, p.EdgeByID(1).Types())

	plan, err := planner.New(catalog.New(s, catalog.DefaultOptions()), planner.DefaultOptions()).Plan(p)
	require.NoError(t, err)
	// (P)-[located]->(city) estimates 50; vertex weight 4, edge weight 2.8
	assert.InDelta(t, 560.0, plan.Cardinality, 1e-9)
}

func TestParsePatternKeepsIllegalEdgeForPlanner(t *testing.T) {
	s := loadStats(t)
	p, err := parsePattern([]byte(`
vertices:
  - {id: 1, types: [person]}
  - {id: 2, types: [city]}
edges:
  - {id: 1, src: 1, dst: 2, labels: [visits]}
`), s)
	require.NoError(t, err)
	assert.Equal(t, glogue.NewEdgeTypeID(1, 3, 11), p.EdgeByID(1).Type())

	_, err = planner.New(catalog.New(s, catalog.DefaultOptions()), planner.DefaultOptions()).Plan(p)
	assert.True(t, errors.Is(err, catalog.ErrUnreachablePattern))
}

func TestParsePatternErrors(t *testing.T) {
	s := loadStats(t)
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown vertex type", `vertices: [{id: 1, types: [robot]}]`},
		{"no types", `vertices: [{id: 1, types: []}]`},
		{"duplicate vertex", `vertices: [{id: 1, types: [city]}, {id: 1, types: [city]}]`},
		{"undeclared endpoint", "vertices: [{id: 1, types: [city]}]\nedges: [{id: 1, src: 1, dst: 9, labels: [located]}]"},
		{"unknown label", "vertices: [{id: 1, types: [person]}, {id: 2, types: [city]}]\nedges: [{id: 1, src: 1, dst: 2, labels: [owns]}]"},
		{"no labels", "vertices: [{id: 1, types: [person]}, {id: 2, types: [city]}]\nedges: [{id: 1, src: 1, dst: 2, labels: []}]"},
		{"malformed", `vertices: {`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePattern([]byte(tt.doc), s)
			assert.Error(t, err)
		})
	}
}
