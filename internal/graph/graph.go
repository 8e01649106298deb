// Package graph provides the in-memory model of one technique mind map:
// positioned nodes, optionally tagged with a move, joined by directed edges.
//
// The model guarantees that node ids are unique, that every edge
// references nodes present in the same map, and that removing a node
// removes its incident edges in the same call. It is single-writer and
// holds no locks.
package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/idgen"
)

// DefaultTitle labels nodes created with an empty title.
const DefaultTitle = "New Node"

var (
	// ErrNotFound is returned when a mutation targets an absent node or edge.
	ErrNotFound = errors.New("not found")
	// ErrInvalidReference is returned when an edge endpoint is absent.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrDuplicateID is returned when loaded data repeats an id.
	ErrDuplicateID = errors.New("duplicate id")
)

// NodeID identifies a node for its whole lifetime.
type NodeID string

// EdgeID identifies an edge.
type EdgeID string

// Node is a positioned, labelled vertex.
type Node struct {
	ID       NodeID
	Title    string
	Position geom.Point
	MoveID   string // technique reference, never dereferenced; "" when unlinked
}

// Edge is a directed link between two nodes. Direction only matters for
// rendering.
type Edge struct {
	ID   EdgeID
	From NodeID
	To   NodeID
}

// Touches reports whether n is either endpoint of e.
func (e Edge) Touches(n NodeID) bool {
	return e.From == n || e.To == n
}

// IDSource produces a candidate id with the given prefix.
type IDSource func(prefix string) (string, error)

// Option configures a MindMap.
type Option func(*MindMap)

// WithIDSource replaces the nanoid-backed id source.
func WithIDSource(src IDSource) Option {
	return func(m *MindMap) {
		m.ids = src
	}
}

// maxIDAttempts bounds retries against the id source before falling back
// to a sequential id.
const maxIDAttempts = 8

// MindMap is the aggregate of nodes and edges owned by one athlete.
type MindMap struct {
	id        string
	name      string
	athleteID string

	nodes     map[NodeID]*Node
	nodeOrder []NodeID
	edges     map[EdgeID]*Edge
	edgeOrder []EdgeID

	// issued holds every id handed out or loaded in this session, so a
	// deleted id is never reused.
	issued map[string]struct{}
	ids    IDSource
	seq    int
}

// New creates an empty mind map.
func New(id, name, athleteID string, opts ...Option) *MindMap {
	m := &MindMap{
		id:        id,
		name:      name,
		athleteID: athleteID,
		nodes:     make(map[NodeID]*Node),
		edges:     make(map[EdgeID]*Edge),
		issued:    make(map[string]struct{}),
		ids:       idgen.GenerateWithPrefix,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID returns the map's identifier.
func (m *MindMap) ID() string { return m.id }

// Name returns the map's display name.
func (m *MindMap) Name() string { return m.name }

// AthleteID returns the owning athlete's identifier.
func (m *MindMap) AthleteID() string { return m.athleteID }

// AddNode creates a node and returns its fresh id. An empty title is
// replaced with DefaultTitle.
func (m *MindMap) AddNode(title string, pos geom.Point, moveID string) NodeID {
	if title == "" {
		title = DefaultTitle
	}
	id := NodeID(m.newID(idgen.NodePrefix))
	m.nodes[id] = &Node{ID: id, Title: title, Position: pos, MoveID: moveID}
	m.nodeOrder = append(m.nodeOrder, id)
	return id
}

// RemoveNode deletes the node and every edge touching it, returning the
// number of edges removed. Nothing changes if the node is absent.
func (m *MindMap) RemoveNode(id NodeID) (int, error) {
	if _, ok := m.nodes[id]; !ok {
		return 0, fmt.Errorf("remove node %q: %w", id, ErrNotFound)
	}

	removed := 0
	m.edgeOrder = slices.DeleteFunc(m.edgeOrder, func(eid EdgeID) bool {
		if !m.edges[eid].Touches(id) {
			return false
		}
		delete(m.edges, eid)
		removed++
		return true
	})

	delete(m.nodes, id)
	m.nodeOrder = slices.DeleteFunc(m.nodeOrder, func(nid NodeID) bool { return nid == id })
	return removed, nil
}

// MoveNode replaces a node's position.
func (m *MindMap) MoveNode(id NodeID, pos geom.Point) error {
	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("move node %q: %w", id, ErrNotFound)
	}
	n.Position = pos
	return nil
}

// RenameNode replaces a node's title.
func (m *MindMap) RenameNode(id NodeID, title string) error {
	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("rename node %q: %w", id, ErrNotFound)
	}
	n.Title = title
	return nil
}

// AddEdge links from to to. Self-loops and parallel edges are accepted;
// callers decide whether to offer them.
func (m *MindMap) AddEdge(from, to NodeID) (EdgeID, error) {
	if _, ok := m.nodes[from]; !ok {
		return "", fmt.Errorf("add edge from %q: %w", from, ErrInvalidReference)
	}
	if _, ok := m.nodes[to]; !ok {
		return "", fmt.Errorf("add edge to %q: %w", to, ErrInvalidReference)
	}
	id := EdgeID(m.newID(idgen.EdgePrefix))
	m.edges[id] = &Edge{ID: id, From: from, To: to}
	m.edgeOrder = append(m.edgeOrder, id)
	return id, nil
}

// RemoveEdge deletes an edge.
func (m *MindMap) RemoveEdge(id EdgeID) error {
	if _, ok := m.edges[id]; !ok {
		return fmt.Errorf("remove edge %q: %w", id, ErrNotFound)
	}
	delete(m.edges, id)
	m.edgeOrder = slices.DeleteFunc(m.edgeOrder, func(eid EdgeID) bool { return eid == id })
	return nil
}

// Node returns a copy of the node with the given id.
func (m *MindMap) Node(id NodeID) (Node, bool) {
	n, ok := m.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Edge returns a copy of the edge with the given id.
func (m *MindMap) Edge(id EdgeID) (Edge, bool) {
	e, ok := m.edges[id]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// HasEdge reports whether at least one edge runs from from to to.
func (m *MindMap) HasEdge(from, to NodeID) bool {
	for _, eid := range m.edgeOrder {
		if e := m.edges[eid]; e.From == from && e.To == to {
			return true
		}
	}
	return false
}

// IncidentEdges returns copies of the edges touching id, in creation order.
func (m *MindMap) IncidentEdges(id NodeID) []Edge {
	var result []Edge
	for _, eid := range m.edgeOrder {
		if e := m.edges[eid]; e.Touches(id) {
			result = append(result, *e)
		}
	}
	return result
}

// Neighbors returns copies of the nodes that id links to.
func (m *MindMap) Neighbors(id NodeID) []Node {
	var result []Node
	for _, eid := range m.edgeOrder {
		e := m.edges[eid]
		if e.From != id {
			continue
		}
		if n, ok := m.nodes[e.To]; ok {
			result = append(result, *n)
		}
	}
	return result
}

// NodeCount returns the number of nodes.
func (m *MindMap) NodeCount() int {
	return len(m.nodes)
}

// EdgeCount returns the number of edges.
func (m *MindMap) EdgeCount() int {
	return len(m.edges)
}

// newID draws ids from the source until one has never been issued in
// this session. A failing or exhausted source falls back to a sequence.
func (m *MindMap) newID(prefix string) string {
	for range maxIDAttempts {
		id, err := m.ids(prefix)
		if err != nil {
			break
		}
		if m.claim(id) {
			return id
		}
	}
	for {
		m.seq++
		if id := fmt.Sprintf("%s%d", prefix, m.seq); m.claim(id) {
			return id
		}
	}
}

func (m *MindMap) claim(id string) bool {
	if _, taken := m.issued[id]; taken || id == "" {
		return false
	}
	m.issued[id] = struct{}{}
	return true
}
