package mapdoc

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
)

func sampleDoc() *Document {
	return &Document{
		ID:        "map-1",
		Name:      "Guard Game Plan",
		AthleteID: "athlete-1",
		Saved:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Snapshot: graph.Snapshot{
			Nodes: []graph.Node{
				{ID: "node-a", Title: "Armbar Setup", Position: geom.Pt(100, 100), MoveID: "move-1"},
				{ID: "node-b", Title: "Triangle Transition", Position: geom.Pt(300.5, 100)},
				{ID: "node-c", Title: "Guard Retention", Position: geom.Pt(200, 250)},
			},
			Edges: []graph.Edge{
				{ID: "edge-1", From: "node-a", To: "node-b"},
				{ID: "edge-2", From: "node-c", To: "node-a"},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	doc := sampleDoc()

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	got, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got.ID != doc.ID || got.Name != doc.Name || got.AthleteID != doc.AthleteID {
		t.Errorf("identity = (%q, %q, %q)", got.ID, got.Name, got.AthleteID)
	}
	if !got.Saved.Equal(doc.Saved) {
		t.Errorf("Saved = %v, want %v", got.Saved, doc.Saved)
	}
	if !got.Snapshot.Equal(doc.Snapshot) {
		t.Errorf("snapshot mismatch:\n got %+v\nwant %+v", got.Snapshot, doc.Snapshot)
	}
}

func TestRoundTripEmpty(t *testing.T) {
	doc := &Document{ID: "map-empty", AthleteID: "athlete-1"}
	data, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	got, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got.Snapshot.Nodes) != 0 || len(got.Snapshot.Edges) != 0 {
		t.Errorf("snapshot = %+v, want empty", got.Snapshot)
	}
	if !got.Saved.IsZero() {
		t.Errorf("Saved = %v, want zero", got.Saved)
	}
	// The outline heading falls back to the id, which then names the map.
	if got.Name != "map-empty" {
		t.Errorf("Name = %q, want map-empty", got.Name)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no frontmatter", "# Just markdown\n"},
		{"unclosed frontmatter", "---\nid: map-1\n# No closing\n"},
		{"missing id", "---\nathlete: a\n---\n"},
		{"bad yaml", "---\nnodes: [\n---\n"},
		{"bad saved", "---\nid: m\nsaved: yesterday\n---\n"},
		{"nan position", "---\nid: m\nnodes:\n  - {id: n, title: t, x: .nan, y: 0}\n---\n"},
		{"infinite position", "---\nid: m\nnodes:\n  - {id: n, title: t, x: 0, y: -.inf}\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestParseCRLF(t *testing.T) {
	data, err := sampleDoc().Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	crlf := "\ufeff" + strings.ReplaceAll(string(data), "\n", "\r\n")

	got, err := Parse(strings.NewReader(crlf))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.Snapshot.Equal(sampleDoc().Snapshot) {
		t.Errorf("snapshot mismatch:\n got %+v\nwant %+v", got.Snapshot, sampleDoc().Snapshot)
	}
	for _, n := range got.Snapshot.Nodes {
		if strings.ContainsRune(n.Title, '\r') {
			t.Errorf("title %q kept a carriage return", n.Title)
		}
	}
}

func TestParseClosingAtEOF(t *testing.T) {
	doc, err := Parse(strings.NewReader("---\nid: map-1\nname: Half Guard\n---"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.ID != "map-1" || doc.Name != "Half Guard" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestParseNameFromHeading(t *testing.T) {
	input := "---\nid: map-1\nathlete: a\nnodes: []\nedges: []\n---\n# Half Guard\n"
	doc, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Name != "Half Guard" {
		t.Errorf("Name = %q, want Half Guard", doc.Name)
	}
}

func TestMindMapRejectsDanglingEdge(t *testing.T) {
	doc := sampleDoc()
	doc.Snapshot.Edges = append(doc.Snapshot.Edges, graph.Edge{ID: "edge-x", From: "node-a", To: "node-gone"})

	if _, err := doc.MindMap(); !errors.Is(err, graph.ErrInvalidReference) {
		t.Errorf("error = %v, want ErrInvalidReference", err)
	}
}

func TestFromMapAndBack(t *testing.T) {
	mm, err := sampleDoc().MindMap()
	if err != nil {
		t.Fatalf("MindMap: %v", err)
	}
	saved := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	doc := FromMap(mm, saved)

	if doc.ID != "map-1" || doc.Name != "Guard Game Plan" || !doc.Saved.Equal(saved) {
		t.Errorf("doc = %+v", doc)
	}
	if !doc.Snapshot.Equal(sampleDoc().Snapshot) {
		t.Error("snapshot changed through MindMap/FromMap")
	}
}

func TestOutline(t *testing.T) {
	out := Outline(sampleDoc())

	for _, want := range []string{
		"# Guard Game Plan\n",
		"3 nodes, 2 connections, 1 connected moves\n",
		"- **Armbar Setup** `move-1`\n  - → Triangle Transition\n",
		"- **Guard Retention**\n  - → Armbar Setup\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("outline missing %q:\n%s", want, out)
		}
	}
}

func TestOutlineEscapesTitles(t *testing.T) {
	doc := &Document{ID: "m", Name: "m", Snapshot: graph.Snapshot{Nodes: []graph.Node{{ID: "n", Title: "*star*"}}}}
	if out := Outline(doc); !strings.Contains(out, `- **\*star\***`) {
		t.Errorf("title not escaped:\n%s", out)
	}
}

func TestHTML(t *testing.T) {
	html, err := HTML(sampleDoc())
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	s := string(html)
	if !strings.Contains(s, "<h1>Guard Game Plan</h1>") {
		t.Errorf("missing heading:\n%s", s)
	}
	if !strings.Contains(s, "<strong>Armbar Setup</strong>") {
		t.Errorf("missing node:\n%s", s)
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"# Hello\n\ntext", "Hello"},
		{"## Sub\n# Top\n", "Top"},
		{"no heading", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Title(tt.body); got != tt.want {
			t.Errorf("Title(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
