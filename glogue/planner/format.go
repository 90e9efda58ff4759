package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/glogue/glogue"
	"github.com/wbrown/glogue/glogue/annotations"
)

// idNamer renders raw ids when no schema names are available
type idNamer struct{}

func (idNamer) VertexTypeName(t glogue.TypeID) string { return t.String() }
func (idNamer) LabelName(l glogue.TypeID) string      { return l.String() }

// String returns a compact multi-line rendering of the plan
func (p *Plan) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan (~%s rows, cost %s=%s", annotations.FormatCardinality(p.Cardinality),
		p.CostModel, annotations.FormatCardinality(p.Cost))
	if p.Fuzzy {
		fmt.Fprintf(&sb, ", fuzzy x%.4g", p.VerticesWeight*p.EdgesWeight)
	}
	sb.WriteString("):\n")
	for i, step := range p.Steps {
		fmt.Fprintf(&sb, "  %d. v%d:%s", i+1, step.VertexOrder, step.VertexType)
		for _, e := range step.Edges {
			fmt.Fprintf(&sb, " %s", describeEdge(e, idNamer{}))
		}
		fmt.Fprintf(&sb, " (~%s)\n", annotations.FormatCardinality(step.Cardinality))
	}
	return sb.String()
}

// Table renders the plan as a markdown table. A nil namer prints raw ids.
func (p *Plan) Table(names Namer) string {
	if names == nil {
		names = idNamer{}
	}
	if len(p.Steps) == 0 {
		return "_Empty plan_\n"
	}

	tableString := &strings.Builder{}

	headers := []string{"Step", "Vertex", "Type", "Attach", "Estimate"}
	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)

	for i, step := range p.Steps {
		typeName := names.VertexTypeName(step.VertexType)
		if len(step.Candidates) > 1 {
			candidates := make([]string, len(step.Candidates))
			for j, t := range step.Candidates {
				candidates[j] = names.VertexTypeName(t)
			}
			typeName = fmt.Sprintf("%s of {%s}", typeName, strings.Join(candidates, ","))
		}

		attach := make([]string, len(step.Edges))
		for j, e := range step.Edges {
			attach[j] = describeEdge(e, names)
		}

		table.Append([]string{
			strconv.Itoa(i + 1),
			"v" + strconv.Itoa(step.VertexOrder),
			typeName,
			strings.Join(attach, " "),
			annotations.FormatCardinality(step.Cardinality),
		})
	}
	table.Render()

	fmt.Fprintf(tableString, "\n_Estimated %s rows (raw %s), cost %s_\n",
		annotations.FormatCardinality(p.Cardinality),
		annotations.FormatCardinality(p.RawCardinality),
		annotations.FormatCardinality(p.Cost))
	return tableString.String()
}

func describeEdge(e PlanEdge, names Namer) string {
	label := names.LabelName(e.EdgeType.Label)
	switch e.Direction {
	case glogue.Out:
		return fmt.Sprintf("v%d-[%s]->", e.SrcVertexOrder, label)
	case glogue.In:
		return fmt.Sprintf("<-[%s]-v%d", label, e.SrcVertexOrder)
	default:
		return fmt.Sprintf("loop[%s]", label)
	}
}
