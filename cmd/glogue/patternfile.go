package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/wbrown/glogue/glogue"
	"github.com/wbrown/glogue/glogue/pattern"
	"github.com/wbrown/glogue/glogue/schema"
)

// patternDocument is the YAML form of a pattern. Types and labels are
// referenced by their schema names.
//
//	vertices:
//	  - {id: 1, types: [person]}
//	  - {id: 2, types: [person, company]}
//	edges:
//	  - {id: 1, src: 1, dst: 2, labels: [knows, works]}
type patternDocument struct {
	Vertices []struct {
		ID    int      `yaml:"id"`
		Types []string `yaml:"types"`
	} `yaml:"vertices"`
	Edges []struct {
		ID     int      `yaml:"id"`
		Src    int      `yaml:"src"`
		Dst    int      `yaml:"dst"`
		Labels []string `yaml:"labels"`
	} `yaml:"edges"`
}

func loadPattern(path string, s *schema.Statistics) (*pattern.Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading pattern file %s", path)
	}
	return parsePattern(data, s)
}

// parsePattern builds a pattern from its YAML form. An edge's candidates are
// every schema edge type carrying one of its labels between any candidate
// source type and any candidate destination type, label first. When none
// exists the edge keeps the triple of its first label and first types.
func parsePattern(data []byte, s *schema.Statistics) (*pattern.Pattern, error) {
	var doc patternDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding pattern document")
	}

	p := pattern.New()
	for _, v := range doc.Vertices {
		if len(v.Types) == 0 {
			return nil, errors.Newf("vertex %d has no types", v.ID)
		}
		if p.VertexByID(v.ID) != nil {
			return nil, errors.Newf("duplicate vertex id %d", v.ID)
		}
		types := make([]glogue.TypeID, len(v.Types))
		for i, name := range v.Types {
			t, ok := s.VertexTypeByName(name)
			if !ok {
				return nil, errors.Wrapf(schema.ErrUnknownType, "vertex %d: vertex type %q", v.ID, name)
			}
			types[i] = t
		}
		p.AddVertex(v.ID, types...)
	}

	for _, e := range doc.Edges {
		src, dst := p.VertexByID(e.Src), p.VertexByID(e.Dst)
		if src == nil || dst == nil {
			return nil, errors.Newf("edge %d references an undeclared vertex", e.ID)
		}
		if p.EdgeByID(e.ID) != nil {
			return nil, errors.Newf("duplicate edge id %d", e.ID)
		}

		if len(e.Labels) == 0 {
			return nil, errors.Newf("edge %d has no labels", e.ID)
		}
		var candidates []glogue.EdgeTypeID
		var first glogue.EdgeTypeID
		for i, name := range e.Labels {
			label, ok := s.LabelByName(name)
			if !ok {
				return nil, errors.Wrapf(schema.ErrUnknownType, "edge %d: label %q", e.ID, name)
			}
			if i == 0 {
				first = glogue.NewEdgeTypeID(src.Type(), dst.Type(), label)
			}
			for _, st := range src.Types() {
				for _, dt := range dst.Types() {
					et := glogue.NewEdgeTypeID(st, dt, label)
					if _, ok := s.EdgeTypeCardinality(et); ok {
						candidates = append(candidates, et)
					}
				}
			}
		}
		if len(candidates) == 0 {
			// Keep the edge so planning reports it as unreachable
			candidates = append(candidates, first)
		}
		p.AddEdge(e.ID, src, dst, candidates...)
	}

	return p, nil
}
