// Package glogue holds the identifiers shared by the pattern model, the schema
// statistics view and the catalog.
package glogue

import (
	"fmt"
	"strconv"
)

// TypeID identifies a vertex type or an edge label in the graph schema
type TypeID int32

// String returns the decimal form of the id
func (t TypeID) String() string {
	return strconv.Itoa(int(t))
}

// EdgeTypeID is the (source type, destination type, label) triple of an edge.
// It is comparable and safe to use as a map key.
type EdgeTypeID struct {
	Src   TypeID // Source vertex type
	Dst   TypeID // Destination vertex type
	Label TypeID // Edge label
}

// NewEdgeTypeID creates an edge type triple
func NewEdgeTypeID(src, dst, label TypeID) EdgeTypeID {
	return EdgeTypeID{Src: src, Dst: dst, Label: label}
}

// String returns the triple as "src-[label]->dst"
func (e EdgeTypeID) String() string {
	return fmt.Sprintf("%d-[%d]->%d", e.Src, e.Label, e.Dst)
}

// Compare orders edge types by (Src, Dst, Label)
func (e EdgeTypeID) Compare(other EdgeTypeID) int {
	switch {
	case e.Src != other.Src:
		return cmpTypes(e.Src, other.Src)
	case e.Dst != other.Dst:
		return cmpTypes(e.Dst, other.Dst)
	default:
		return cmpTypes(e.Label, other.Label)
	}
}

func cmpTypes(a, b TypeID) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// Direction tells which endpoint of an edge the newly extended vertex occupies
type Direction uint8

const (
	Out  Direction = iota // existing vertex is the source, new vertex the destination
	In                    // new vertex is the source, existing vertex the destination
	Both                  // self loop on the new vertex
)

// String returns the direction name
func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case In:
		return "in"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// Reverse flips Out and In
func (d Direction) Reverse() Direction {
	switch d {
	case Out:
		return In
	case In:
		return Out
	default:
		return d
	}
}
