package editor

import (
	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
)

// NodeView is a node as the canvas draws it.
type NodeView struct {
	graph.Node
	Rect     geom.Rect
	Selected bool
	Start    bool // connection start
	Dragged  bool
}

// Segment is the line drawn for one edge, between node centres.
type Segment struct {
	Edge graph.EdgeID
	geom.Segment
}

// Scene is everything a renderer needs for one frame.
type Scene struct {
	Nodes        []NodeView
	Segments     []Segment
	Mode         Mode
	PendingTitle string
	Canvas       geom.Size
	Stats        graph.Stats
}

// Scene derives the current frame from the map and transient state.
func (c *Controller) Scene() Scene {
	snap := c.mm.Snapshot()
	s := Scene{
		Nodes:        make([]NodeView, 0, len(snap.Nodes)),
		Segments:     Segments(snap, c.opts.NodeSize),
		Mode:         c.mode,
		PendingTitle: c.title,
		Canvas:       c.canvas,
		Stats:        snap.Stats(),
	}
	for _, n := range snap.Nodes {
		s.Nodes = append(s.Nodes, NodeView{
			Node:     n,
			Rect:     geom.RectAt(n.Position, c.opts.NodeSize),
			Selected: n.ID == c.selected,
			Start:    c.mode.Kind == Connecting && n.ID == c.mode.Node,
			Dragged:  c.mode.Kind == Dragging && n.ID == c.mode.Node,
		})
	}
	return s
}

// Segments computes edge geometry for a snapshot. Edges with a missing
// endpoint are skipped.
func Segments(snap graph.Snapshot, size geom.Size) []Segment {
	pos := make(map[graph.NodeID]geom.Point, len(snap.Nodes))
	for _, n := range snap.Nodes {
		pos[n.ID] = n.Position
	}

	segs := make([]Segment, 0, len(snap.Edges))
	for _, e := range snap.Edges {
		from, ok := pos[e.From]
		if !ok {
			continue
		}
		to, ok := pos[e.To]
		if !ok {
			continue
		}
		segs = append(segs, Segment{
			Edge:    e.ID,
			Segment: geom.Centerline(geom.RectAt(from, size), geom.RectAt(to, size)),
		})
	}
	return segs
}

// NodeAt returns the topmost node whose box contains p. Later nodes are
// drawn above earlier ones.
func NodeAt(snap graph.Snapshot, size geom.Size, p geom.Point) (graph.NodeID, bool) {
	for i := len(snap.Nodes) - 1; i >= 0; i-- {
		n := snap.Nodes[i]
		if geom.RectAt(n.Position, size).Contains(p) {
			return n.ID, true
		}
	}
	return "", false
}
