package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/raghurai/raidical-bjj/internal/config"
	"github.com/raghurai/raidical-bjj/internal/editor"
	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
	"github.com/raghurai/raidical-bjj/internal/mapdoc"
	"github.com/raghurai/raidical-bjj/internal/session"
)

var (
	errQuit           = errors.New("quit")
	errUnknownCommand = errors.New("unknown command")
)

const replHelp = `Placement and connection
  add [@MOVE] [TITLE...]   toggle add-node mode with a pending title
  title TITLE...           change the pending title
  place                    place the pending node at the default position
  connect                  toggle connect mode
  cancel                   back to idle
Pointer
  click X Y                press and release at a canvas point
  down X Y | move X Y | up X Y | leave
  drag X1 Y1 X2 Y2         press, move and release
Nodes (NODE is #N, an id or a title)
  select [NODE]            select a node, or clear the selection
  delete [NODE]            delete a node, default the selection
  rename NODE TITLE...     retitle a node
  resize W H               set the canvas size
Session
  nodes | edges | mode | show | save | help | quit`

func replMain(args []string) {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	g := addGlobals(fs)
	name := fs.String("name", "", "display name for a new map")
	var scripts stringList
	fs.Var(&scripts, "script", "run commands from a file before prompting (repeatable)")
	batch := fs.Bool("batch", false, "exit after running scripts")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: raidical repl [-name NAME] [-script FILE] [-batch] <map-id>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	e := g.open()
	defer e.shutdown()
	ctx := context.Background()

	sess, err := session.Open(ctx, e.adapter, e.cfg.Athlete, fs.Arg(0), session.Options{
		Name:   *name,
		Editor: e.cfg.EditorOptions(e.log),
		Logger: e.log,
	})
	if err != nil {
		log.Fatal(err)
	}
	r := newREPL(sess, os.Stdout)

	for _, path := range scripts {
		if err := r.runScriptFile(ctx, path); err != nil && !errors.Is(err, errQuit) {
			log.Printf("script %s: %v", path, err)
		}
	}
	if *batch {
		return
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.prompt(),
		HistoryFile:     filepath.Join(filepath.Dir(config.DefaultPath()), "history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Fatalf("init readline: %v", err)
	}
	defer rl.Close()

	r.out = rl.Stdout()
	r.banner()
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				fmt.Fprintln(r.out, "Use 'exit' or 'quit' to leave.")
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			log.Fatal(err)
		}

		err = r.exec(ctx, line)
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			bad.Fprintf(r.out, "error: %v\n", err)
		}
		rl.SetPrompt(r.prompt())
	}
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// repl executes text commands against one editing session.
type repl struct {
	sess *session.Session
	out  io.Writer

	dirty  bool
	warned bool // unsaved-changes warning already shown for quit
}

func newREPL(sess *session.Session, out io.Writer) *repl {
	return &repl{sess: sess, out: out}
}

func (r *repl) banner() {
	mm := r.sess.Editor().MindMap()
	fmt.Fprintf(r.out, "%s %s (%s)", brand.Sprint("raidical"), mm.Name(), mm.ID())
	if r.sess.Created() {
		fmt.Fprint(r.out, subtle.Sprint(" new"))
	}
	fmt.Fprintln(r.out, subtle.Sprint("  type 'help' for commands"))
}

func (r *repl) prompt() string {
	c := r.sess.Editor()
	p := c.MindMap().Name() + " [" + c.Mode().String() + "]"
	if r.dirty {
		p += "*"
	}
	return p + "> "
}

func (r *repl) runScriptFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return r.runScript(ctx, f)
}

// runScript executes commands line by line, skipping blanks and # comments.
// It stops at the first failing line.
func (r *repl) runScript(ctx context.Context, src io.Reader) error {
	sc := bufio.NewScanner(src)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := r.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return err
			}
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return sc.Err()
}

// exec runs one command line. It returns errQuit when the session should end.
func (r *repl) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprintln(r.out, replHelp)
		return nil
	case "quit", "exit":
		if r.dirty && !r.warned {
			r.warned = true
			warn.Fprintln(r.out, "Unsaved changes. Run 'save', or quit again to discard them.")
			return nil
		}
		return errQuit
	case "nodes":
		r.printNodes()
		return nil
	case "edges":
		r.printEdges()
		return nil
	case "mode":
		r.printMode()
		return nil
	case "show":
		fmt.Fprint(r.out, mapdoc.Outline(r.sess.Document()))
		return nil
	case "save":
		doc, err := r.sess.Save(ctx)
		if err != nil {
			return err
		}
		r.dirty, r.warned = false, false
		good.Fprintf(r.out, "Saved %s", doc.ID)
		if doc.Version > 0 {
			fmt.Fprintf(r.out, " v%d", doc.Version)
		}
		fmt.Fprintln(r.out)
		return nil
	}

	events, err := parseCommand(cmd, args, r.resolve)
	if err != nil {
		return err
	}
	c := r.sess.Editor()
	for _, ev := range events {
		if c.Handle(ev) {
			r.dirty = true
			r.warned = false
		}
	}
	return nil
}

// resolve turns a node reference into an id: "#N" is the Nth node in
// creation order, otherwise an exact id or a unique case-insensitive title.
func (r *repl) resolve(ref string) (graph.NodeID, error) {
	snap := r.sess.Editor().Snapshot()
	if rest, ok := strings.CutPrefix(ref, "#"); ok {
		i, err := strconv.Atoi(rest)
		if err != nil || i < 1 || i > len(snap.Nodes) {
			return "", fmt.Errorf("no node %s (have %d)", ref, len(snap.Nodes))
		}
		return snap.Nodes[i-1].ID, nil
	}
	if n, ok := snap.Node(graph.NodeID(ref)); ok {
		return n.ID, nil
	}

	var match graph.NodeID
	for _, n := range snap.Nodes {
		if !strings.EqualFold(n.Title, ref) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("title %q is ambiguous, use #N or an id", ref)
		}
		match = n.ID
	}
	if match == "" {
		return "", fmt.Errorf("no node %q", ref)
	}
	return match, nil
}

func (r *repl) printNodes() {
	c := r.sess.Editor()
	snap := c.Snapshot()
	if len(snap.Nodes) == 0 {
		subtle.Fprintln(r.out, "No nodes.")
		return
	}
	rows := make([][]string, 0, len(snap.Nodes))
	for i, n := range snap.Nodes {
		mark := ""
		if n.ID == c.Selected() {
			mark = "*"
		}
		rows = append(rows, []string{
			fmt.Sprintf("#%d%s", i+1, mark),
			string(n.ID),
			n.Title,
			n.Position.String(),
			n.MoveID,
		})
	}
	table(r.out, []string{"REF", "ID", "TITLE", "AT", "MOVE"}, rows)
}

func (r *repl) printEdges() {
	snap := r.sess.Editor().Snapshot()
	if len(snap.Edges) == 0 {
		subtle.Fprintln(r.out, "No connections.")
		return
	}
	title := func(id graph.NodeID) string {
		if n, ok := snap.Node(id); ok {
			return n.Title
		}
		return string(id)
	}
	rows := make([][]string, 0, len(snap.Edges))
	for _, e := range snap.Edges {
		rows = append(rows, []string{string(e.ID), title(e.From) + " → " + title(e.To)})
	}
	table(r.out, []string{"ID", "CONNECTION"}, rows)
}

func (r *repl) printMode() {
	c := r.sess.Editor()
	st := c.Snapshot().Stats()
	fmt.Fprintf(r.out, "%s  %d nodes, %d connections, %d connected moves\n",
		info.Sprint(c.Mode()), st.Nodes, st.Edges, st.LinkedMoves)
	if c.Mode().Kind == editor.PlacingNode {
		title := c.PendingTitle()
		if title == "" {
			title = c.Options().DefaultTitle
		}
		fmt.Fprintf(r.out, "  pending: %q\n", title)
	}
	if sel := c.Selected(); sel != "" {
		fmt.Fprintf(r.out, "  selected: %s\n", sel)
	}
}

// parseCommand translates an editing command into controller events.
// Node references in args are resolved through resolve.
func parseCommand(cmd string, args []string, resolve func(string) (graph.NodeID, error)) ([]editor.Event, error) {
	switch cmd {
	case "add":
		ev := editor.ToggleAddNode{}
		if len(args) > 0 && strings.HasPrefix(args[0], "@") {
			ev.MoveID = strings.TrimPrefix(args[0], "@")
			args = args[1:]
		}
		ev.Title = strings.Join(args, " ")
		return []editor.Event{ev}, nil

	case "title":
		return []editor.Event{editor.SetPendingTitle{Title: strings.Join(args, " ")}}, nil

	case "place", "enter":
		return []editor.Event{editor.PlaceDefault{}}, nil

	case "connect":
		return []editor.Event{editor.ToggleConnect{}}, nil

	case "cancel", "esc":
		return []editor.Event{editor.Cancel{}}, nil

	case "click":
		p, err := point(cmd, args)
		if err != nil {
			return nil, err
		}
		return []editor.Event{editor.PointerDown{At: p}, editor.PointerUp{At: p}}, nil

	case "down", "move", "up":
		p, err := point(cmd, args)
		if err != nil {
			return nil, err
		}
		switch cmd {
		case "down":
			return []editor.Event{editor.PointerDown{At: p}}, nil
		case "move":
			return []editor.Event{editor.PointerMove{At: p}}, nil
		default:
			return []editor.Event{editor.PointerUp{At: p}}, nil
		}

	case "leave":
		return []editor.Event{editor.PointerLeave{}}, nil

	case "drag":
		if len(args) != 4 {
			return nil, errors.New("usage: drag X1 Y1 X2 Y2")
		}
		from, err := point(cmd, args[:2])
		if err != nil {
			return nil, err
		}
		to, err := point(cmd, args[2:])
		if err != nil {
			return nil, err
		}
		return []editor.Event{
			editor.PointerDown{At: from},
			editor.PointerMove{At: to},
			editor.PointerUp{At: to},
		}, nil

	case "select":
		if len(args) == 0 {
			return []editor.Event{editor.Select{}}, nil
		}
		id, err := resolve(strings.Join(args, " "))
		if err != nil {
			return nil, err
		}
		return []editor.Event{editor.Select{Node: id}}, nil

	case "delete", "del":
		var id graph.NodeID
		if len(args) > 0 {
			var err error
			if id, err = resolve(strings.Join(args, " ")); err != nil {
				return nil, err
			}
		}
		return []editor.Event{editor.Delete{Node: id}}, nil

	case "rename":
		if len(args) < 2 {
			return nil, errors.New("usage: rename NODE TITLE...")
		}
		id, err := resolve(args[0])
		if err != nil {
			return nil, err
		}
		return []editor.Event{editor.Rename{Node: id, Title: strings.Join(args[1:], " ")}}, nil

	case "resize":
		size, err := point(cmd, args)
		if err != nil {
			return nil, err
		}
		return []editor.Event{editor.Resize{Size: geom.Size{W: size.X, H: size.Y}}}, nil
	}
	return nil, fmt.Errorf("%w: %s (try 'help')", errUnknownCommand, cmd)
}

// point parses the two numeric arguments of a positional command.
func point(cmd string, args []string) (geom.Point, error) {
	if len(args) != 2 {
		return geom.Point{}, fmt.Errorf("usage: %s X Y", cmd)
	}
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return geom.Point{}, fmt.Errorf("%s: bad x %q", cmd, args[0])
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return geom.Point{}, fmt.Errorf("%s: bad y %q", cmd, args[1])
	}
	p := geom.Pt(x, y)
	if !p.Finite() {
		return geom.Point{}, fmt.Errorf("%s: coordinates must be finite, got %s %s", cmd, args[0], args[1])
	}
	return p, nil
}
