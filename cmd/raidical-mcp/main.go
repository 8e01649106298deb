// Command raidical-mcp is an MCP server that exposes one technique mind
// map to LLM agents over stdio. Agents can inspect the map, add, move,
// rename and remove nodes, connect them, and save.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/raghurai/raidical-bjj/internal/config"
	"github.com/raghurai/raidical-bjj/internal/editor"
	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
	"github.com/raghurai/raidical-bjj/internal/logging"
	"github.com/raghurai/raidical-bjj/internal/session"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "config file (TOML)")
	athlete := flag.String("athlete", "", "athlete id (env: RAIDICAL_ATHLETE)")
	mapID := flag.String("map", "", "map id to serve (required)")
	name := flag.String("name", "", "display name when the map does not exist yet")
	logPath := flag.String("log", "", "write logs to this file (stdout carries the protocol)")
	flag.Parse()

	if *mapID == "" {
		fmt.Fprintf(os.Stderr, "usage: raidical-mcp -map ID [-athlete ID] [-name NAME] [-log FILE]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *athlete != "" {
		cfg.Athlete = *athlete
	}

	logger, closeLog, err := logging.NewFile(cfg.LogFormat, cfg.LogLevel, *logPath)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = closeLog() }()

	adapter, closeStore, err := session.NewAdapter(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = closeStore() }()

	h, err := newHandler(context.Background(), adapter, cfg.Athlete, *mapID, *name, cfg.EditorOptions(logger), logger)
	if err != nil {
		log.Fatal(err)
	}

	s := server.NewMCPServer("raidical-mcp", "0.1.0")
	s.AddTool(showTool(), h.show)
	s.AddTool(addNodeTool(), h.addNode)
	s.AddTool(connectTool(), h.connect)
	s.AddTool(moveNodeTool(), h.moveNode)
	s.AddTool(renameNodeTool(), h.renameNode)
	s.AddTool(removeNodeTool(), h.removeNode)
	s.AddTool(removeEdgeTool(), h.removeEdge)
	s.AddTool(saveTool(), h.save)
	s.AddTool(listTool(), h.list)

	if err := server.ServeStdio(s); err != nil {
		log.Fatal(err)
	}
}

// handler serves one editing session. Tool calls may arrive
// concurrently; mu serialises them onto the controller.
type handler struct {
	sess *session.Session
	ctrl *editor.Controller
	log  *slog.Logger

	mu       sync.Mutex
	rev      int // bumped on every mutation
	savedRev int
}

func newHandler(ctx context.Context, adapter session.Adapter, athleteID, mapID, name string, opts editor.Options, logger *slog.Logger) (*handler, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sess, err := session.Open(ctx, adapter, athleteID, mapID, session.Options{
		Name:   name,
		Editor: opts,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return &handler{sess: sess, ctrl: sess.Editor(), log: logger}, nil
}

// mindMap returns the served map for reading.
func (h *handler) mindMap() *graph.MindMap { return h.ctrl.MindMap() }

// touch records a mutation. Callers hold mu.
func (h *handler) touch() { h.rev++ }

// Tool definitions.

func showTool() mcp.Tool {
	return mcp.NewTool("mindmap_show",
		mcp.WithDescription(
			"Show the technique mind map: every node with its id, title, position and linked move, "+
				"and every connection. Use the ids it returns with the other tools.",
		),
	)
}

func addNodeTool() mcp.Tool {
	return mcp.NewTool("mindmap_add_node",
		mcp.WithDescription("Add a node to the mind map. Returns the new node id."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("node label, e.g. Armbar Setup"),
		),
		mcp.WithNumber("x", mcp.Description("canvas x of the node's top-left corner (default: configured fallback, 200)")),
		mcp.WithNumber("y", mcp.Description("canvas y of the node's top-left corner (default: configured fallback, 100)")),
		mcp.WithString("move_id", mcp.Description("optional id of the technique this node refers to")),
	)
}

func connectTool() mcp.Tool {
	return mcp.NewTool("mindmap_connect",
		mcp.WithDescription("Connect two nodes with a directed edge. Returns the new edge id."),
		mcp.WithString("from", mcp.Required(), mcp.Description("source node id")),
		mcp.WithString("to", mcp.Required(), mcp.Description("target node id")),
	)
}

func moveNodeTool() mcp.Tool {
	return mcp.NewTool("mindmap_move_node",
		mcp.WithDescription("Move a node to a new canvas position. Positions are kept on the canvas (800x600) and snapped to the configured grid."),
		mcp.WithString("id", mcp.Required(), mcp.Description("node id")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("canvas x")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("canvas y")),
	)
}

func renameNodeTool() mcp.Tool {
	return mcp.NewTool("mindmap_rename_node",
		mcp.WithDescription("Change a node's title."),
		mcp.WithString("id", mcp.Required(), mcp.Description("node id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("new title")),
	)
}

func removeNodeTool() mcp.Tool {
	return mcp.NewTool("mindmap_remove_node",
		mcp.WithDescription("Remove a node together with every connection touching it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("node id")),
	)
}

func removeEdgeTool() mcp.Tool {
	return mcp.NewTool("mindmap_remove_edge",
		mcp.WithDescription("Remove a single connection."),
		mcp.WithString("id", mcp.Required(), mcp.Description("edge id")),
	)
}

func saveTool() mcp.Tool {
	return mcp.NewTool("mindmap_save",
		mcp.WithDescription("Save the mind map to the configured store. Unsaved edits are lost when the server stops."),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool("mindmap_list",
		mcp.WithDescription("List the athlete's saved mind maps with their node and connection counts."),
	)
}

// Tool handlers.
// Handler signatures are dictated by mcp-go's ToolHandlerFunc type.

func (h *handler) show(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	h.mu.Lock()
	defer h.mu.Unlock()
	return mcp.NewToolResultText(formatMap(h.mindMap(), h.rev != h.savedRev)), nil
}

func (h *handler) addNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title is required"), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	fallback := *h.ctrl.Options().Fallback
	pos := geom.Pt(req.GetFloat("x", fallback.X), req.GetFloat("y", fallback.Y))
	id, err := h.ctrl.AddNode(strings.TrimSpace(title), pos, req.GetString("move_id", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add failed: %v", err)), nil
	}
	h.touch()
	n, _ := h.mindMap().Node(id)
	return mcp.NewToolResultText(fmt.Sprintf("added %s at %s", id, n.Position)), nil
}

func (h *handler) connect(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError("from is required"), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError("to is required"), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	id, err := h.ctrl.Connect(graph.NodeID(from), graph.NodeID(to))
	if errors.Is(err, editor.ErrDuplicateEdge) {
		return mcp.NewToolResultText(fmt.Sprintf("%s -> %s already connected", from, to)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("connect failed: %v", err)), nil
	}
	h.touch()
	return mcp.NewToolResultText(fmt.Sprintf("added %s: %s -> %s", id, from, to)), nil
}

func (h *handler) moveNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}
	x, err := req.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError("x is required"), nil
	}
	y, err := req.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError("y is required"), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ctrl.MoveNode(graph.NodeID(id), geom.Pt(x, y)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("move failed: %v", err)), nil
	}
	h.touch()
	n, _ := h.mindMap().Node(graph.NodeID(id))
	return mcp.NewToolResultText(fmt.Sprintf("moved %s to %s", id, n.Position)), nil
}

func (h *handler) renameNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title is required"), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ctrl.RenameNode(graph.NodeID(id), title); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rename failed: %v", err)), nil
	}
	h.touch()
	return mcp.NewToolResultText(fmt.Sprintf("renamed %s to %q", id, title)), nil
}

func (h *handler) removeNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	removed, err := h.ctrl.RemoveNode(graph.NodeID(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("remove failed: %v", err)), nil
	}
	h.touch()
	return mcp.NewToolResultText(fmt.Sprintf("removed %s and %d connections", id, removed)), nil
}

func (h *handler) removeEdge(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ctrl.RemoveEdge(graph.EdgeID(id)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("remove failed: %v", err)), nil
	}
	h.touch()
	return mcp.NewToolResultText(fmt.Sprintf("removed %s", id)), nil
}

func (h *handler) save(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	// The snapshot is taken under mu; the write runs without it.
	h.mu.Lock()
	rev := h.rev
	ch := h.sess.SaveAsync(ctx)
	h.mu.Unlock()

	res := <-ch
	if res.Err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", res.Err)), nil
	}
	doc := res.Doc
	h.log.Info("map saved", "map", doc.ID, "version", doc.Version)

	h.mu.Lock()
	h.savedRev = max(h.savedRev, rev)
	h.mu.Unlock()

	msg := fmt.Sprintf("saved %s", doc.ID)
	if doc.Version > 0 {
		msg += fmt.Sprintf(" v%d", doc.Version)
	}
	return mcp.NewToolResultText(msg), nil
}

func (h *handler) list(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	l, ok := h.sess.Adapter().(session.Lister)
	if !ok {
		return mcp.NewToolResultError("the configured store cannot list maps"), nil
	}
	maps, err := l.List(ctx, h.mindMap().AthleteID())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if len(maps) == 0 {
		return mcp.NewToolResultText("no saved maps"), nil
	}

	var b strings.Builder
	for _, m := range maps {
		fmt.Fprintf(&b, "%-24s %q  v%d  %d nodes, %d connections\n",
			m.ID, m.Name, m.Version, m.Stats.Nodes, m.Stats.Edges)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// formatMap renders a map as a plain-text listing for LLM consumption.
func formatMap(mm *graph.MindMap, dirty bool) string {
	snap := mm.Snapshot()
	st := snap.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %d nodes, %d connections, %d connected moves",
		mm.Name(), mm.ID(), st.Nodes, st.Edges, st.LinkedMoves)
	if dirty {
		b.WriteString(" [unsaved changes]")
	}
	b.WriteByte('\n')

	if len(snap.Nodes) > 0 {
		b.WriteString("\nNodes:\n")
		for _, n := range snap.Nodes {
			fmt.Fprintf(&b, "  %-16s %-30q %s", n.ID, n.Title, n.Position)
			if n.MoveID != "" {
				fmt.Fprintf(&b, "  move=%s", n.MoveID)
			}
			b.WriteByte('\n')
		}
	}
	if len(snap.Edges) > 0 {
		b.WriteString("\nConnections:\n")
		for _, e := range snap.Edges {
			fmt.Fprintf(&b, "  %-16s %s -> %s\n", e.ID, e.From, e.To)
		}
	}
	return b.String()
}
