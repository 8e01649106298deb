package main

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/raghurai/raidical-bjj/internal/editor"
	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
	"github.com/raghurai/raidical-bjj/internal/mapdoc"
	"github.com/raghurai/raidical-bjj/internal/store"
)

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		tool         mcp.Tool
		wantName     string
		wantRequired []string
		wantDesc     string
	}{
		{showTool(), "mindmap_show", nil, "Show the technique mind map"},
		{addNodeTool(), "mindmap_add_node", []string{"title"}, "Add a node"},
		{connectTool(), "mindmap_connect", []string{"from", "to"}, "directed edge"},
		{moveNodeTool(), "mindmap_move_node", []string{"id", "x", "y"}, "Move a node"},
		{renameNodeTool(), "mindmap_rename_node", []string{"id", "title"}, "title"},
		{removeNodeTool(), "mindmap_remove_node", []string{"id"}, "every connection"},
		{removeEdgeTool(), "mindmap_remove_edge", []string{"id"}, "single connection"},
		{saveTool(), "mindmap_save", nil, "Save the mind map"},
		{listTool(), "mindmap_list", nil, "List the athlete's"},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if !strings.Contains(tt.tool.Description, tt.wantDesc) {
				t.Errorf("description %q does not contain %q", tt.tool.Description, tt.wantDesc)
			}
			schema := tt.tool.InputSchema
			for _, req := range tt.wantRequired {
				if !slices.Contains(schema.Required, req) {
					t.Errorf("required params %v missing %q", schema.Required, req)
				}
				if _, ok := schema.Properties[req]; !ok {
					t.Errorf("properties missing key %q", req)
				}
			}
		})
	}
}

func TestAddNodeOptionalParams(t *testing.T) {
	schema := addNodeTool().InputSchema
	for _, p := range []string{"x", "y", "move_id"} {
		if _, ok := schema.Properties[p]; !ok {
			t.Errorf("properties missing %q", p)
		}
		if slices.Contains(schema.Required, p) {
			t.Errorf("%q should be optional", p)
		}
	}
}

// newCallToolRequest builds a CallToolRequest with the given arguments.
func newCallToolRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func newTestHandler(t *testing.T, opts editor.Options) (*handler, *store.Store) {
	t.Helper()
	s := store.New(t.TempDir(), nil)
	h, err := newHandler(context.Background(), s, "athlete-1", "guard", "Guard Game Plan", opts, nil)
	if err != nil {
		t.Fatalf("newHandler: %v", err)
	}
	return h, s
}

func call(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := fn(context.Background(), newCallToolRequest(args))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}

// assertIsToolError checks that a CallToolResult is an error containing the given substring.
func assertIsToolError(t *testing.T, result *mcp.CallToolResult, substr string) {
	t.Helper()
	if !result.IsError {
		t.Fatal("expected tool error result")
	}
	if text := resultText(t, result); !strings.Contains(text, substr) {
		t.Errorf("error text %q does not contain %q", text, substr)
	}
}

func assertOK(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	text := resultText(t, result)
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", text)
	}
	return text
}

// addTwo adds two nodes and returns their ids.
func addTwo(t *testing.T, h *handler) (graph.NodeID, graph.NodeID) {
	t.Helper()
	assertOK(t, call(t, h.addNode, map[string]any{"title": "Armbar Setup", "x": float64(100), "y": float64(100), "move_id": "move-1"}))
	assertOK(t, call(t, h.addNode, map[string]any{"title": "Triangle Transition", "x": float64(300), "y": float64(100)}))
	snap := h.mindMap().Snapshot()
	return snap.Nodes[0].ID, snap.Nodes[1].ID
}

func TestAddNode(t *testing.T) {
	h, _ := newTestHandler(t, editor.Options{})
	a, _ := addTwo(t, h)

	n, ok := h.mindMap().Node(a)
	if !ok {
		t.Fatal("node missing")
	}
	if n.Title != "Armbar Setup" || n.Position != geom.Pt(100, 100) || n.MoveID != "move-1" {
		t.Errorf("node = %+v", n)
	}
}

func TestAddNodeDefaults(t *testing.T) {
	h, _ := newTestHandler(t, editor.Options{})
	text := assertOK(t, call(t, h.addNode, map[string]any{"title": "  "}))
	n := h.mindMap().Snapshot().Nodes[0]
	if n.Title != graph.DefaultTitle || n.Position != geom.Pt(200, 100) {
		t.Errorf("node = %+v, want default title at (200,100)", n)
	}
	if !strings.Contains(text, string(n.ID)) {
		t.Errorf("result %q does not mention %s", text, n.ID)
	}
}

func TestAddNodeFollowsEditorOptions(t *testing.T) {
	fallback := geom.Pt(40, 40)
	h, _ := newTestHandler(t, editor.Options{Fallback: &fallback, Grid: 20})

	assertOK(t, call(t, h.addNode, map[string]any{"title": "Hip Escape"}))
	text := assertOK(t, call(t, h.addNode, map[string]any{"title": "Kimura", "x": float64(113), "y": float64(88)}))
	if !strings.Contains(text, "(120,80)") {
		t.Errorf("result %q does not report the snapped position", text)
	}

	snap := h.mindMap().Snapshot()
	if snap.Nodes[0].Position != fallback {
		t.Errorf("default position = %v, want %v", snap.Nodes[0].Position, fallback)
	}
	if snap.Nodes[1].Position != geom.Pt(120, 80) {
		t.Errorf("snapped position = %v, want (120,80)", snap.Nodes[1].Position)
	}
}

func TestRemoveNodeClearsSelection(t *testing.T) {
	h, _ := newTestHandler(t, editor.Options{})
	a, _ := addTwo(t, h)
	h.ctrl.Handle(editor.Select{Node: a})

	assertOK(t, call(t, h.removeNode, map[string]any{"id": string(a)}))
	if got := h.ctrl.Selected(); got != "" {
		t.Errorf("Selected() = %q after remove, want empty", got)
	}
}

func TestHandlersRequireParams(t *testing.T) {
	h, _ := newTestHandler(t, editor.Options{})
	tests := []struct {
		name string
		fn   func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args map[string]any
		want string
	}{
		{"add without title", h.addNode, map[string]any{}, "title is required"},
		{"connect without to", h.connect, map[string]any{"from": "a"}, "to is required"},
		{"move without y", h.moveNode, map[string]any{"id": "a", "x": float64(1)}, "y is required"},
		{"rename without title", h.renameNode, map[string]any{"id": "a"}, "title is required"},
		{"remove node without id", h.removeNode, map[string]any{}, "id is required"},
		{"remove edge without id", h.removeEdge, map[string]any{}, "id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertIsToolError(t, call(t, tt.fn, tt.args), tt.want)
		})
	}
}

func TestConnect(t *testing.T) {
	h, _ := newTestHandler(t, editor.Options{DedupeEdges: true})
	a, b := addTwo(t, h)

	assertOK(t, call(t, h.connect, map[string]any{"from": string(a), "to": string(b)}))
	if !h.mindMap().HasEdge(a, b) {
		t.Fatal("edge not added")
	}

	text := assertOK(t, call(t, h.connect, map[string]any{"from": string(a), "to": string(b)}))
	if !strings.Contains(text, "already connected") || h.mindMap().EdgeCount() != 1 {
		t.Errorf("duplicate connect: %q, %d edges", text, h.mindMap().EdgeCount())
	}

	assertIsToolError(t, call(t, h.connect, map[string]any{"from": string(a), "to": string(a)}), "itself")
	assertIsToolError(t, call(t, h.connect, map[string]any{"from": string(a), "to": "node-gone"}), "invalid reference")
}

func TestConnectSelfLoopAllowed(t *testing.T) {
	h, _ := newTestHandler(t, editor.Options{AllowSelfLoops: true})
	a, _ := addTwo(t, h)
	assertOK(t, call(t, h.connect, map[string]any{"from": string(a), "to": string(a)}))
	if !h.mindMap().HasEdge(a, a) {
		t.Error("self-loop not added")
	}
}

func TestMoveRenameRemove(t *testing.T) {
	h, _ := newTestHandler(t, editor.Options{})
	a, b := addTwo(t, h)
	assertOK(t, call(t, h.connect, map[string]any{"from": string(a), "to": string(b)}))

	assertOK(t, call(t, h.moveNode, map[string]any{"id": string(a), "x": float64(40), "y": float64(60)}))
	if n, _ := h.mindMap().Node(a); n.Position != geom.Pt(40, 60) {
		t.Errorf("position = %v, want (40,60)", n.Position)
	}

	assertOK(t, call(t, h.renameNode, map[string]any{"id": string(a), "title": "Armbar Finish"}))
	if n, _ := h.mindMap().Node(a); n.Title != "Armbar Finish" {
		t.Errorf("title = %q", n.Title)
	}

	text := assertOK(t, call(t, h.removeNode, map[string]any{"id": string(b)}))
	if !strings.Contains(text, "1 connections") {
		t.Errorf("remove result = %q", text)
	}
	if h.mindMap().NodeCount() != 1 || h.mindMap().EdgeCount() != 0 {
		t.Errorf("after remove: %d nodes, %d edges", h.mindMap().NodeCount(), h.mindMap().EdgeCount())
	}

	assertIsToolError(t, call(t, h.moveNode, map[string]any{"id": string(b), "x": float64(1), "y": float64(1)}), "not found")
	assertIsToolError(t, call(t, h.renameNode, map[string]any{"id": string(b), "title": "x"}), "not found")
	assertIsToolError(t, call(t, h.removeNode, map[string]any{"id": string(b)}), "not found")
}

func TestRemoveEdge(t *testing.T) {
	h, _ := newTestHandler(t, editor.Options{})
	a, b := addTwo(t, h)
	assertOK(t, call(t, h.connect, map[string]any{"from": string(a), "to": string(b)}))
	e := h.mindMap().Snapshot().Edges[0].ID

	assertOK(t, call(t, h.removeEdge, map[string]any{"id": string(e)}))
	if h.mindMap().EdgeCount() != 0 || h.mindMap().NodeCount() != 2 {
		t.Errorf("after remove: %d nodes, %d edges", h.mindMap().NodeCount(), h.mindMap().EdgeCount())
	}
	assertIsToolError(t, call(t, h.removeEdge, map[string]any{"id": string(e)}), "not found")
}

func TestShow(t *testing.T) {
	h, _ := newTestHandler(t, editor.Options{})
	a, b := addTwo(t, h)
	assertOK(t, call(t, h.connect, map[string]any{"from": string(a), "to": string(b)}))

	text := assertOK(t, call(t, h.show, nil))
	for _, want := range []string{
		"Guard Game Plan (guard): 2 nodes, 1 connections, 1 connected moves",
		"[unsaved changes]",
		string(a), "Armbar Setup", "move=move-1",
		string(a) + " -> " + string(b),
	} {
		if !strings.Contains(text, want) {
			t.Errorf("show output missing %q:\n%s", want, text)
		}
	}
}

func TestSaveAndReload(t *testing.T) {
	h, s := newTestHandler(t, editor.Options{})
	a, b := addTwo(t, h)
	assertOK(t, call(t, h.connect, map[string]any{"from": string(a), "to": string(b)}))

	text := assertOK(t, call(t, h.save, nil))
	if text != "saved guard v1" {
		t.Errorf("save result = %q", text)
	}
	if show := assertOK(t, call(t, h.show, nil)); strings.Contains(show, "unsaved") {
		t.Errorf("still unsaved after save:\n%s", show)
	}

	doc, err := s.Load(context.Background(), "athlete-1", "guard")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !doc.Snapshot.Equal(h.mindMap().Snapshot()) {
		t.Error("stored snapshot differs from the served map")
	}

	reloaded, err := newHandler(context.Background(), s, "athlete-1", "guard", "", editor.Options{}, nil)
	if err != nil {
		t.Fatalf("newHandler: %v", err)
	}
	if reloaded.mindMap().NodeCount() != 2 || reloaded.mindMap().EdgeCount() != 1 {
		t.Errorf("reloaded %d nodes, %d edges", reloaded.mindMap().NodeCount(), reloaded.mindMap().EdgeCount())
	}
}

func TestList(t *testing.T) {
	h, _ := newTestHandler(t, editor.Options{})
	if text := assertOK(t, call(t, h.list, nil)); text != "no saved maps" {
		t.Errorf("list before save = %q", text)
	}
	addTwo(t, h)
	assertOK(t, call(t, h.save, nil))

	text := assertOK(t, call(t, h.list, nil))
	if !strings.Contains(text, "guard") || !strings.Contains(text, "2 nodes") {
		t.Errorf("list = %q", text)
	}
}

// loadOnly is an adapter that cannot list.
type loadOnly struct{}

func (loadOnly) Load(context.Context, string, string) (*mapdoc.Document, error) {
	return nil, mapdoc.ErrNotFound
}

func (loadOnly) Save(context.Context, *mapdoc.Document) error { return nil }

func TestListUnsupported(t *testing.T) {
	h, err := newHandler(context.Background(), loadOnly{}, "athlete-1", "guard", "", editor.Options{}, nil)
	if err != nil {
		t.Fatalf("newHandler: %v", err)
	}
	assertIsToolError(t, call(t, h.list, nil), "cannot list")
	if h.mindMap().Name() != "guard" {
		t.Errorf("Name = %q, want map id fallback", h.mindMap().Name())
	}
}
