// Package mapdoc defines the persisted form of a mind map.
//
// A document is YAML frontmatter holding the map's nodes and edges,
// followed by a generated markdown outline for humans:
//
//	---
//	id: map-x1
//	name: Guard Game Plan
//	athlete: athlete-1
//	saved: 2026-03-01T10:00:00Z
//	nodes:
//	    - {id: node-a, title: Armbar Setup, x: 100, y: 100}
//	edges:
//	    - {id: edge-b, from: node-a, to: node-c}
//	---
//	# Guard Game Plan
//	...
//
// Only the frontmatter is authoritative; the body is rewritten on every save.
package mapdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
)

var (
	// ErrNotFound is returned by adapters when no document exists.
	ErrNotFound = errors.New("mind map not found")
	// ErrMalformed is returned when a document has no valid frontmatter.
	ErrMalformed = errors.New("malformed document")
)

// Document is one saved mind map.
type Document struct {
	ID        string
	Name      string
	AthleteID string
	Saved     time.Time
	// Version is assigned by adapters that keep history; zero otherwise.
	Version  int
	Snapshot graph.Snapshot
}

type frontmatter struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name,omitempty"`
	Athlete string       `yaml:"athlete"`
	Saved   string       `yaml:"saved,omitempty"`
	Version int          `yaml:"version,omitempty"`
	Nodes   []nodeRecord `yaml:"nodes"`
	Edges   []edgeRecord `yaml:"edges"`
}

type nodeRecord struct {
	ID    string  `yaml:"id"`
	Title string  `yaml:"title"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Move  string  `yaml:"move,omitempty"`
}

type edgeRecord struct {
	ID   string `yaml:"id"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// FromMap captures the current state of mm.
func FromMap(mm *graph.MindMap, saved time.Time) *Document {
	return &Document{
		ID:        mm.ID(),
		Name:      mm.Name(),
		AthleteID: mm.AthleteID(),
		Saved:     saved,
		Snapshot:  mm.Snapshot(),
	}
}

// MindMap rebuilds a live map from the document, validating its
// references.
func (d *Document) MindMap(opts ...graph.Option) (*graph.MindMap, error) {
	mm, err := graph.FromSnapshot(d.ID, d.Name, d.AthleteID, d.Snapshot, opts...)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", d.ID, err)
	}
	return mm, nil
}

// Parse reads a document. The frontmatter is required; the outline body
// is only consulted for a name when the frontmatter has none.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	// Editors on Windows may save with a BOM and CRLF line endings.
	content := strings.TrimPrefix(string(data), "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, "---\n") {
		return nil, fmt.Errorf("%w: missing frontmatter", ErrMalformed)
	}
	rest := content[4:]
	if strings.HasSuffix(rest, "\n---") {
		rest += "\n"
	}
	end := strings.Index(rest, "\n---\n")
	if end == -1 {
		return nil, fmt.Errorf("%w: missing closing ---", ErrMalformed)
	}
	fmData := rest[:end]
	body := rest[end+5:]

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(fmData), &fm); err != nil {
		return nil, fmt.Errorf("%w: parsing frontmatter: %v", ErrMalformed, err)
	}
	if fm.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformed)
	}

	doc := &Document{
		ID:        fm.ID,
		Name:      fm.Name,
		AthleteID: fm.Athlete,
		Version:   fm.Version,
	}
	if doc.Name == "" {
		doc.Name = Title(body)
	}
	if fm.Saved != "" {
		doc.Saved, err = time.Parse(time.RFC3339Nano, fm.Saved)
		if err != nil {
			return nil, fmt.Errorf("%w: saved: %v", ErrMalformed, err)
		}
	}

	doc.Snapshot.Nodes = make([]graph.Node, 0, len(fm.Nodes))
	for _, n := range fm.Nodes {
		pos := geom.Pt(n.X, n.Y)
		if !pos.Finite() {
			return nil, fmt.Errorf("%w: node %s position %v", ErrMalformed, n.ID, pos)
		}
		doc.Snapshot.Nodes = append(doc.Snapshot.Nodes, graph.Node{
			ID:       graph.NodeID(n.ID),
			Title:    n.Title,
			Position: pos,
			MoveID:   n.Move,
		})
	}
	doc.Snapshot.Edges = make([]graph.Edge, 0, len(fm.Edges))
	for _, e := range fm.Edges {
		doc.Snapshot.Edges = append(doc.Snapshot.Edges, graph.Edge{
			ID:   graph.EdgeID(e.ID),
			From: graph.NodeID(e.From),
			To:   graph.NodeID(e.To),
		})
	}
	return doc, nil
}

// WriteTo writes the document with a freshly generated outline body.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	fm := frontmatter{
		ID:      d.ID,
		Name:    d.Name,
		Athlete: d.AthleteID,
		Version: d.Version,
		Nodes:   make([]nodeRecord, 0, len(d.Snapshot.Nodes)),
		Edges:   make([]edgeRecord, 0, len(d.Snapshot.Edges)),
	}
	if !d.Saved.IsZero() {
		fm.Saved = d.Saved.UTC().Format(time.RFC3339Nano)
	}
	for _, n := range d.Snapshot.Nodes {
		fm.Nodes = append(fm.Nodes, nodeRecord{
			ID:    string(n.ID),
			Title: n.Title,
			X:     n.Position.X,
			Y:     n.Position.Y,
			Move:  n.MoveID,
		})
	}
	for _, e := range d.Snapshot.Edges {
		fm.Edges = append(fm.Edges, edgeRecord{ID: string(e.ID), From: string(e.From), To: string(e.To)})
	}

	yamlBytes, err := yaml.Marshal(fm)
	if err != nil {
		return 0, fmt.Errorf("encoding frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(yamlBytes)
	buf.WriteString("---\n")
	buf.WriteString(Outline(d))

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Bytes returns the encoded document.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Summary describes a stored map without its contents.
type Summary struct {
	ID        string
	Name      string
	AthleteID string
	Saved     time.Time
	Version   int
	Stats     graph.Stats
}

// Summary returns the listing entry for d.
func (d *Document) Summary() Summary {
	return Summary{
		ID:        d.ID,
		Name:      d.Name,
		AthleteID: d.AthleteID,
		Saved:     d.Saved,
		Version:   d.Version,
		Stats:     d.Snapshot.Stats(),
	}
}
