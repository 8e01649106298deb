package editor

import (
	"errors"
	"fmt"

	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
)

// Errors returned by the id-addressed commands.
var (
	ErrSelfLoop      = errors.New("a node cannot be connected to itself")
	ErrDuplicateEdge = errors.New("already connected")
	ErrNonFinite     = errors.New("position must be finite")
)

// The methods below edit the map by id instead of by pointer, for front
// ends without a canvas. They apply the same connection policy and
// position normalisation as Handle, leave the mode alone unless it refers
// to a removed node, and report failures instead of absorbing them.

// AddNode creates a node at at. An empty title gets the default title.
func (c *Controller) AddNode(title string, at geom.Point, moveID string) (graph.NodeID, error) {
	if !at.Finite() {
		return "", fmt.Errorf("add node at %v: %w", at, ErrNonFinite)
	}
	if title == "" {
		title = c.opts.DefaultTitle
	}
	id := c.mm.AddNode(title, c.normalize(at), moveID)
	c.log.Debug("node added", "node", id, "title", title, "at", at)
	return id, nil
}

// Connect adds an edge from one node to another.
func (c *Controller) Connect(from, to graph.NodeID) (graph.EdgeID, error) {
	if from == to && !c.opts.AllowSelfLoops {
		return "", fmt.Errorf("connect %s: %w", from, ErrSelfLoop)
	}
	if c.opts.DedupeEdges && c.mm.HasEdge(from, to) {
		return "", fmt.Errorf("connect %s -> %s: %w", from, to, ErrDuplicateEdge)
	}
	id, err := c.mm.AddEdge(from, to)
	if err != nil {
		return "", err
	}
	c.log.Debug("edge added", "edge", id, "from", from, "to", to)
	return id, nil
}

// MoveNode repositions a node.
func (c *Controller) MoveNode(id graph.NodeID, at geom.Point) error {
	if !at.Finite() {
		return fmt.Errorf("move %s to %v: %w", id, at, ErrNonFinite)
	}
	return c.mm.MoveNode(id, c.normalize(at))
}

// RenameNode changes a node's title.
func (c *Controller) RenameNode(id graph.NodeID, title string) error {
	return c.mm.RenameNode(id, title)
}

// RemoveNode deletes a node and its edges, returning how many edges went
// with it.
func (c *Controller) RemoveNode(id graph.NodeID) (int, error) {
	removed, err := c.mm.RemoveNode(id)
	if err != nil {
		return 0, err
	}
	c.log.Debug("node removed", "node", id, "edges", removed)
	c.forget(id)
	return removed, nil
}

// RemoveEdge deletes one edge.
func (c *Controller) RemoveEdge(id graph.EdgeID) error {
	return c.mm.RemoveEdge(id)
}

// forget drops transient references to a node that no longer exists.
func (c *Controller) forget(id graph.NodeID) {
	if c.selected == id {
		c.selected = ""
	}
	if c.press != nil && c.press.target == id {
		c.press = nil
	}
	if c.mode.Node == id {
		c.transition(idle(), "node removed")
	}
}
