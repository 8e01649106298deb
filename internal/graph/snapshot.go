package graph

import (
	"cmp"
	"fmt"
	"slices"
)

// Snapshot is a detached copy of a map's nodes and edges, in creation
// order. Mutating a snapshot never affects the map it came from.
type Snapshot struct {
	Nodes []Node
	Edges []Edge
}

// Snapshot copies the current nodes and edges.
func (m *MindMap) Snapshot() Snapshot {
	s := Snapshot{
		Nodes: make([]Node, 0, len(m.nodeOrder)),
		Edges: make([]Edge, 0, len(m.edgeOrder)),
	}
	for _, id := range m.nodeOrder {
		s.Nodes = append(s.Nodes, *m.nodes[id])
	}
	for _, id := range m.edgeOrder {
		s.Edges = append(s.Edges, *m.edges[id])
	}
	return s
}

// FromSnapshot rebuilds a map from persisted nodes and edges. It rejects
// repeated ids and edges whose endpoints are missing. Loaded ids are
// reserved so new nodes and edges never collide with them.
func FromSnapshot(id, name, athleteID string, snap Snapshot, opts ...Option) (*MindMap, error) {
	m := New(id, name, athleteID, opts...)

	for _, n := range snap.Nodes {
		if !m.claim(string(n.ID)) {
			return nil, fmt.Errorf("load node %q: %w", n.ID, ErrDuplicateID)
		}
		node := n
		m.nodes[n.ID] = &node
		m.nodeOrder = append(m.nodeOrder, n.ID)
	}
	for _, e := range snap.Edges {
		if _, ok := m.nodes[e.From]; !ok {
			return nil, fmt.Errorf("load edge %q from %q: %w", e.ID, e.From, ErrInvalidReference)
		}
		if _, ok := m.nodes[e.To]; !ok {
			return nil, fmt.Errorf("load edge %q to %q: %w", e.ID, e.To, ErrInvalidReference)
		}
		if !m.claim(string(e.ID)) {
			return nil, fmt.Errorf("load edge %q: %w", e.ID, ErrDuplicateID)
		}
		edge := e
		m.edges[e.ID] = &edge
		m.edgeOrder = append(m.edgeOrder, e.ID)
	}
	return m, nil
}

// Node returns the snapshot's node with the given id.
func (s Snapshot) Node(id NodeID) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Equal reports whether s and o hold the same nodes and edges, ignoring order.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.Nodes) != len(o.Nodes) || len(s.Edges) != len(o.Edges) {
		return false
	}
	byNode := func(a, b Node) int { return cmp.Compare(a.ID, b.ID) }
	byEdge := func(a, b Edge) int { return cmp.Compare(a.ID, b.ID) }

	sn, on := slices.Clone(s.Nodes), slices.Clone(o.Nodes)
	slices.SortFunc(sn, byNode)
	slices.SortFunc(on, byNode)
	se, oe := slices.Clone(s.Edges), slices.Clone(o.Edges)
	slices.SortFunc(se, byEdge)
	slices.SortFunc(oe, byEdge)

	return slices.Equal(sn, on) && slices.Equal(se, oe)
}

// Stats summarises a map for toolbars and listings.
type Stats struct {
	Nodes       int
	Edges       int
	LinkedMoves int
}

// Stats counts nodes, edges and nodes linked to a move.
func (s Snapshot) Stats() Stats {
	st := Stats{Nodes: len(s.Nodes), Edges: len(s.Edges)}
	for _, n := range s.Nodes {
		if n.MoveID != "" {
			st.LinkedMoves++
		}
	}
	return st
}
