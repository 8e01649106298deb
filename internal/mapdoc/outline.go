package mapdoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/raghurai/raidical-bjj/internal/graph"
)

// Outline renders the map as a markdown list: one item per node, in
// creation order, with its outgoing connections nested beneath it.
func Outline(d *Document) string {
	var b strings.Builder

	name := d.Name
	if name == "" {
		name = d.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", name)

	st := d.Snapshot.Stats()
	fmt.Fprintf(&b, "%d nodes, %d connections, %d connected moves\n", st.Nodes, st.Edges, st.LinkedMoves)
	if st.Nodes == 0 {
		return b.String()
	}
	b.WriteString("\n")

	titles := make(map[graph.NodeID]string, len(d.Snapshot.Nodes))
	for _, n := range d.Snapshot.Nodes {
		titles[n.ID] = n.Title
	}
	out := make(map[graph.NodeID][]graph.NodeID)
	for _, e := range d.Snapshot.Edges {
		out[e.From] = append(out[e.From], e.To)
	}

	for _, n := range d.Snapshot.Nodes {
		fmt.Fprintf(&b, "- **%s**", escape(n.Title))
		if n.MoveID != "" {
			fmt.Fprintf(&b, " `%s`", n.MoveID)
		}
		b.WriteString("\n")
		for _, to := range out[n.ID] {
			title, ok := titles[to]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "  - → %s\n", escape(title))
		}
	}
	return b.String()
}

// Title returns the text of the first top-level heading in a markdown body,
// or "" when there is none.
func Title(body string) string {
	src := []byte(body)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 1 {
			return ast.WalkContinue, nil
		}
		title = string(heading.Text(src))
		return ast.WalkStop, nil
	})
	return title
}

// HTML renders the outline as an HTML fragment.
func HTML(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(Outline(d)), &buf); err != nil {
		return nil, fmt.Errorf("rendering html: %w", err)
	}
	return buf.Bytes(), nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`_`, `\_`,
	"`", "\\`",
	`[`, `\[`,
	`]`, `\]`,
)

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
