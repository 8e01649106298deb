package editor

import (
	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
)

// PointerID distinguishes simultaneous pointers (mouse, touches). Only one
// pointer is tracked at a time.
type PointerID int

// Event is an input the controller consumes. The set is closed.
type Event interface {
	event()
}

// PointerDown is a press at a canvas point.
type PointerDown struct {
	Pointer PointerID
	At      geom.Point
}

// PointerMove is motion of a pointer. Motion without a press is ignored.
type PointerMove struct {
	Pointer PointerID
	At      geom.Point
}

// PointerUp is a release. A release with no move since the press completes
// a click on whatever was pressed.
type PointerUp struct {
	Pointer PointerID
	At      geom.Point
}

// PointerLeave reports that a pointer stopped being tracked.
type PointerLeave struct {
	Pointer PointerID
}

// ToggleAddNode arms placement with a pending title and move, or disarms
// it when already placing.
type ToggleAddNode struct {
	Title  string
	MoveID string
}

// SetPendingTitle edits the title of the node about to be placed.
type SetPendingTitle struct {
	Title string
}

// PlaceDefault creates the pending node at the fallback position.
type PlaceDefault struct{}

// ToggleConnect arms or disarms connecting.
type ToggleConnect struct{}

// Cancel returns to Idle, discarding any pending placement or connection.
type Cancel struct{}

// Delete removes a node and its edges. An empty Node targets the selection.
type Delete struct {
	Node graph.NodeID
}

// Rename retitles a node. An empty Node targets the selection.
type Rename struct {
	Node  graph.NodeID
	Title string
}

// Resize reports the canvas pixel dimensions.
type Resize struct {
	Size geom.Size
}

// Select sets the selection from the keyboard. An empty Node clears it.
type Select struct {
	Node graph.NodeID
}

func (PointerDown) event()     {}
func (PointerMove) event()     {}
func (PointerUp) event()       {}
func (PointerLeave) event()    {}
func (ToggleAddNode) event()   {}
func (SetPendingTitle) event() {}
func (PlaceDefault) event()    {}
func (ToggleConnect) event()   {}
func (Cancel) event()          {}
func (Delete) event()          {}
func (Rename) event()          {}
func (Resize) event()          {}
func (Select) event()          {}
