package editor

import (
	"fmt"

	"github.com/raghurai/raidical-bjj/internal/graph"
)

// Kind names an interaction mode.
type Kind int

const (
	Idle Kind = iota
	PlacingNode
	Connecting
	Dragging
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "Idle"
	case PlacingNode:
		return "PlacingNode"
	case Connecting:
		return "Connecting"
	case Dragging:
		return "Dragging"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Mode is the controller's exclusive interaction state. Node carries the
// connection start for Connecting (empty until chosen) and the target for
// Dragging. It is always empty for Idle and PlacingNode.
type Mode struct {
	Kind Kind
	Node graph.NodeID
}

func (m Mode) String() string {
	switch m.Kind {
	case Connecting:
		if m.Node == "" {
			return "Connecting(None)"
		}
		return fmt.Sprintf("Connecting(%s)", m.Node)
	case Dragging:
		return fmt.Sprintf("Dragging(%s)", m.Node)
	default:
		return m.Kind.String()
	}
}

func idle() Mode                         { return Mode{Kind: Idle} }
func placing() Mode                      { return Mode{Kind: PlacingNode} }
func connecting(start graph.NodeID) Mode { return Mode{Kind: Connecting, Node: start} }
func dragging(n graph.NodeID) Mode       { return Mode{Kind: Dragging, Node: n} }
