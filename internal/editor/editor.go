// Package editor implements the interaction state machine of the mind map
// canvas. A Controller consumes pointer and keyboard events one at a time
// and turns them into graph mutations, keeping the transient UI state
// (mode, selection, pending placement) to itself.
package editor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
)

// Defaults for Options fields left zero.
var (
	DefaultNodeSize = geom.Size{W: 200, H: 60}
	DefaultFallback = geom.Pt(200, 100)
	DefaultCanvas   = geom.Size{W: 800, H: 600}
)

// Options tunes controller policy.
type Options struct {
	// NodeSize is the box every node occupies for hit testing and edge
	// geometry.
	NodeSize geom.Size
	// Fallback is where PlaceDefault puts a node. Nil means
	// DefaultFallback; any set point, the origin included, is used as is.
	Fallback *geom.Point
	// Grid snaps placed and dragged positions when positive.
	Grid float64
	// DefaultTitle replaces an empty pending title.
	DefaultTitle string
	// AllowSelfLoops lets a connection end on its start node.
	AllowSelfLoops bool
	// DedupeEdges skips a connection that already exists in the same
	// direction.
	DedupeEdges bool
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.NodeSize.Empty() {
		o.NodeSize = DefaultNodeSize
	}
	if o.Fallback == nil {
		fb := DefaultFallback
		o.Fallback = &fb
	}
	if o.DefaultTitle == "" {
		o.DefaultTitle = graph.DefaultTitle
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// press is the pointer currently held down.
type press struct {
	pointer PointerID
	at      geom.Point
	target  graph.NodeID // "" when pressed on empty canvas
	moved   bool
}

// Controller drives one MindMap. It is the map's only writer and is not
// safe for concurrent use.
type Controller struct {
	mm   *graph.MindMap
	opts Options
	log  *slog.Logger

	mode     Mode
	selected graph.NodeID
	press    *press
	title    string
	moveID   string
	canvas   geom.Size
}

// New returns a controller in Idle over mm.
func New(mm *graph.MindMap, opts Options) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		mm:     mm,
		opts:   opts,
		log:    opts.Logger.With("map", mm.ID()),
		mode:   idle(),
		canvas: DefaultCanvas,
	}
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode { return c.mode }

// Selected returns the selected node, or "" when nothing is selected.
func (c *Controller) Selected() graph.NodeID { return c.selected }

// PendingTitle returns the title the next placed node will get.
func (c *Controller) PendingTitle() string { return c.title }

// Canvas returns the last reported canvas size.
func (c *Controller) Canvas() geom.Size { return c.canvas }

// Options returns the effective options.
func (c *Controller) Options() Options { return c.opts }

// MindMap returns the map being edited. Callers must not mutate it.
func (c *Controller) MindMap() *graph.MindMap { return c.mm }

// Snapshot returns a copy of the map for rendering or saving.
func (c *Controller) Snapshot() graph.Snapshot { return c.mm.Snapshot() }

// Handle processes one event to completion and reports whether the map
// was mutated. Stale node references are absorbed: the controller drops
// them and returns to Idle.
func (c *Controller) Handle(ev Event) bool {
	switch ev := ev.(type) {
	case PointerDown:
		return c.pointerDown(ev)
	case PointerMove:
		return c.pointerMove(ev)
	case PointerUp:
		return c.pointerUp(ev)
	case PointerLeave:
		if c.press == nil || c.press.pointer != ev.Pointer {
			return false
		}
		c.press = nil
		if c.mode.Kind == Dragging {
			c.transition(idle(), "pointer left")
		}
		return false
	case ToggleAddNode:
		c.press = nil
		if c.mode.Kind == PlacingNode {
			c.clearPending()
			c.transition(idle(), "add node off")
			return false
		}
		c.title, c.moveID = ev.Title, ev.MoveID
		c.transition(placing(), "add node on")
		return false
	case SetPendingTitle:
		if c.mode.Kind == PlacingNode {
			c.title = ev.Title
		}
		return false
	case PlaceDefault:
		if c.mode.Kind != PlacingNode {
			return false
		}
		c.place(*c.opts.Fallback)
		return true
	case ToggleConnect:
		c.press = nil
		if c.mode.Kind == Connecting {
			c.transition(idle(), "connect off")
			return false
		}
		c.clearPending()
		c.transition(connecting(""), "connect on")
		return false
	case Cancel:
		c.press = nil
		c.clearPending()
		if c.mode.Kind != Idle {
			c.transition(idle(), "cancel")
		}
		return false
	case Delete:
		return c.delete(c.target(ev.Node))
	case Rename:
		return c.rename(c.target(ev.Node), ev.Title)
	case Resize:
		c.canvas = ev.Size
		return false
	case Select:
		if c.mode.Kind != Idle {
			return false
		}
		c.selectNode(ev.Node)
		return false
	default:
		c.log.Warn("unhandled event", "event", fmt.Sprintf("%T", ev))
		return false
	}
}

func (c *Controller) pointerDown(ev PointerDown) bool {
	if !ev.At.Finite() {
		return false
	}
	if c.press != nil {
		if c.press.pointer != ev.Pointer {
			return false
		}
		// The release of the previous press was never delivered.
		c.press = nil
		if c.mode.Kind == Dragging {
			c.transition(idle(), "implicit release")
		}
	}
	target, _ := NodeAt(c.mm.Snapshot(), c.opts.NodeSize, ev.At)
	c.press = &press{pointer: ev.Pointer, at: ev.At, target: target}

	if c.mode.Kind == Idle && target != "" {
		c.transition(dragging(target), "pointer down on node")
	}
	return false
}

func (c *Controller) pointerMove(ev PointerMove) bool {
	if c.press == nil || c.press.pointer != ev.Pointer || !ev.At.Finite() {
		return false
	}
	c.press.moved = true
	if c.mode.Kind != Dragging {
		return false
	}

	n := c.mode.Node
	if err := c.mm.MoveNode(n, c.normalize(ev.At)); err != nil {
		c.stale(n, err)
		return false
	}
	return true
}

func (c *Controller) pointerUp(ev PointerUp) bool {
	if c.press == nil || c.press.pointer != ev.Pointer {
		return false
	}
	// A click lands at the press point, so ev.At is not consulted.
	p := *c.press
	c.press = nil

	if c.mode.Kind == Dragging {
		c.transition(idle(), "pointer up")
	}
	if p.moved {
		return false
	}
	return c.click(p.target, p.at)
}

// click handles a press and release with no motion in between.
func (c *Controller) click(target graph.NodeID, at geom.Point) bool {
	switch c.mode.Kind {
	case Idle:
		c.selectNode(target)
		return false

	case PlacingNode:
		if target != "" {
			return false
		}
		c.place(at)
		return true

	case Connecting:
		if target == "" {
			return false
		}
		start := c.mode.Node
		if start == "" {
			if _, ok := c.mm.Node(target); !ok {
				return false
			}
			c.transition(connecting(target), "connection start")
			return false
		}
		if target == start && !c.opts.AllowSelfLoops {
			c.log.Debug("self-loop suppressed", "node", start)
			return false
		}
		return c.connect(start, target)
	}
	return false
}

func (c *Controller) connect(from, to graph.NodeID) bool {
	if c.opts.DedupeEdges && c.mm.HasEdge(from, to) {
		c.log.Debug("duplicate edge skipped", "from", from, "to", to)
		c.transition(idle(), "connection exists")
		return false
	}
	id, err := c.mm.AddEdge(from, to)
	if err != nil {
		c.stale(from, err)
		return false
	}
	c.log.Debug("edge added", "edge", id, "from", from, "to", to)
	c.transition(idle(), "connection complete")
	return true
}

func (c *Controller) place(at geom.Point) {
	title := c.title
	if title == "" {
		title = c.opts.DefaultTitle
	}
	id := c.mm.AddNode(title, c.normalize(at), c.moveID)
	c.log.Debug("node added", "node", id, "title", title, "at", at)
	c.clearPending()
	c.transition(idle(), "node placed")
}

func (c *Controller) delete(id graph.NodeID) bool {
	if id == "" {
		return false
	}
	c.press = nil
	c.clearPending()

	removed, err := c.mm.RemoveNode(id)
	if err != nil {
		c.stale(id, err)
		return false
	}
	if c.selected == id {
		c.selected = ""
	}
	c.log.Debug("node removed", "node", id, "edges", removed)
	if c.mode.Kind != Idle {
		c.transition(idle(), "node deleted")
	}
	return true
}

func (c *Controller) rename(id graph.NodeID, title string) bool {
	if id == "" {
		return false
	}
	if err := c.mm.RenameNode(id, title); err != nil {
		c.stale(id, err)
		return false
	}
	return true
}

func (c *Controller) selectNode(id graph.NodeID) {
	if id != "" {
		if _, ok := c.mm.Node(id); !ok {
			id = ""
		}
	}
	c.selected = id
}

// target resolves an event's node, defaulting to the selection.
func (c *Controller) target(id graph.NodeID) graph.NodeID {
	if id == "" {
		return c.selected
	}
	return id
}

// stale drops every reference to a node the model no longer knows.
func (c *Controller) stale(id graph.NodeID, err error) {
	if !errors.Is(err, graph.ErrNotFound) && !errors.Is(err, graph.ErrInvalidReference) {
		c.log.Error("unexpected graph error", "node", id, "err", err)
	}
	c.log.Debug("stale reference", "node", id, "err", err)
	if c.selected == id {
		c.selected = ""
	}
	c.press = nil
	c.clearPending()
	if c.mode.Kind != Idle {
		c.transition(idle(), "stale reference")
	}
}

// normalize snaps p to the grid and keeps it on the canvas.
func (c *Controller) normalize(p geom.Point) geom.Point {
	p = geom.Snap(p, c.opts.Grid)
	if !c.canvas.Empty() {
		p.X = min(max(p.X, 0), c.canvas.W)
		p.Y = min(max(p.Y, 0), c.canvas.H)
	}
	return p
}

func (c *Controller) clearPending() {
	c.title, c.moveID = "", ""
}

func (c *Controller) transition(to Mode, reason string) {
	from := c.mode
	c.mode = to
	c.log.Debug("mode transition", "from", from, "to", to, "reason", reason)
}
