package schema

import (
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/wbrown/glogue/glogue"
	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a statistics snapshot.
//
//	vertex_types:
//	  - {id: 1, name: person, cardinality: 100}
//	labels:
//	  - {id: 10, name: knows}
//	edge_types:
//	  - {src: person, dst: person, label: knows, cardinality: 500}
type Document struct {
	VertexTypes []VertexTypeDoc `yaml:"vertex_types"`
	Labels      []LabelDoc      `yaml:"labels"`
	EdgeTypes   []EdgeTypeDoc   `yaml:"edge_types"`
}

// VertexTypeDoc describes one vertex type
type VertexTypeDoc struct {
	ID          glogue.TypeID `yaml:"id"`
	Name        string        `yaml:"name,omitempty"`
	Cardinality float64       `yaml:"cardinality"`
}

// LabelDoc describes one edge label
type LabelDoc struct {
	ID   glogue.TypeID `yaml:"id"`
	Name string        `yaml:"name,omitempty"`
}

// EdgeTypeDoc describes one edge type. Endpoints and label are referenced by name.
type EdgeTypeDoc struct {
	Src         string  `yaml:"src"`
	Dst         string  `yaml:"dst"`
	Label       string  `yaml:"label"`
	Cardinality float64 `yaml:"cardinality"`
}

// Parse decodes a YAML document into a snapshot
func Parse(data []byte) (*Statistics, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding schema document")
	}
	return doc.Statistics()
}

// LoadFile reads and decodes a YAML statistics file
func LoadFile(path string) (*Statistics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading schema file %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "schema file %s", path)
	}
	return s, nil
}

// Statistics builds the snapshot described by the document
func (d *Document) Statistics() (*Statistics, error) {
	b := NewBuilder()
	vertexIDs := make(map[string]glogue.TypeID)
	labelIDs := make(map[string]glogue.TypeID)

	for _, vt := range d.VertexTypes {
		b.AddVertexType(vt.ID, vt.Cardinality)
		if vt.Name != "" {
			b.NameVertexType(vt.ID, vt.Name)
			vertexIDs[vt.Name] = vt.ID
		}
	}
	for _, l := range d.Labels {
		if l.Name != "" {
			b.NameLabel(l.ID, l.Name)
			labelIDs[l.Name] = l.ID
		}
	}

	for i, et := range d.EdgeTypes {
		src, ok := vertexIDs[et.Src]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownType, "edge_types[%d]: vertex type %q", i, et.Src)
		}
		dst, ok := vertexIDs[et.Dst]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownType, "edge_types[%d]: vertex type %q", i, et.Dst)
		}
		label, ok := labelIDs[et.Label]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownType, "edge_types[%d]: label %q", i, et.Label)
		}
		b.AddEdgeType(glogue.NewEdgeTypeID(src, dst, label), et.Cardinality)
	}

	return b.Build()
}

// Document converts the snapshot back to its YAML form
func (s *Statistics) Document() *Document {
	doc := &Document{}
	for _, t := range s.vertexTypes {
		doc.VertexTypes = append(doc.VertexTypes, VertexTypeDoc{
			ID:          t,
			Name:        s.VertexTypeName(t),
			Cardinality: s.vertexCard[t],
		})
	}

	seen := make(map[glogue.TypeID]bool)
	for _, et := range s.edgeTypes {
		if !seen[et.Label] {
			seen[et.Label] = true
			doc.Labels = append(doc.Labels, LabelDoc{ID: et.Label, Name: s.LabelName(et.Label)})
		}
		doc.EdgeTypes = append(doc.EdgeTypes, EdgeTypeDoc{
			Src:         s.VertexTypeName(et.Src),
			Dst:         s.VertexTypeName(et.Dst),
			Label:       s.LabelName(et.Label),
			Cardinality: s.edgeCard[et],
		})
	}

	// Named labels no edge type uses yet
	var unused []glogue.TypeID
	for l := range s.labelNames {
		if !seen[l] {
			unused = append(unused, l)
		}
	}
	sort.Slice(unused, func(i, j int) bool { return unused[i] < unused[j] })
	for _, l := range unused {
		doc.Labels = append(doc.Labels, LabelDoc{ID: l, Name: s.labelNames[l]})
	}
	return doc
}

// Marshal encodes the snapshot as YAML
func (s *Statistics) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s.Document())
	if err != nil {
		return nil, errors.Wrap(err, "encoding schema document")
	}
	return data, nil
}
