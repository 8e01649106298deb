// Command raidical inspects and edits technique mind maps from the terminal.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/glamour"

	"github.com/raghurai/raidical-bjj/internal/config"
	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
	"github.com/raghurai/raidical-bjj/internal/idgen"
	"github.com/raghurai/raidical-bjj/internal/logging"
	"github.com/raghurai/raidical-bjj/internal/mapdoc"
	"github.com/raghurai/raidical-bjj/internal/session"
	"github.com/raghurai/raidical-bjj/internal/store"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "show":
		showMain(args)
	case "export":
		exportMain(args)
	case "list":
		listMain(args)
	case "versions":
		versionsMain(args)
	case "new":
		newMain(args)
	case "edit":
		editMain(args)
	case "repl":
		replMain(args)
	case "config":
		configMain(args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: raidical <command> [flags] [map-id]\n\n")
	fmt.Fprintf(os.Stderr, "commands:\n")
	fmt.Fprintf(os.Stderr, "  show      render a map as an outline\n")
	fmt.Fprintf(os.Stderr, "  export    write a map as markdown or HTML\n")
	fmt.Fprintf(os.Stderr, "  list      list an athlete's maps\n")
	fmt.Fprintf(os.Stderr, "  versions  list a map's saved versions (file store)\n")
	fmt.Fprintf(os.Stderr, "  new       create a map, optionally seeded\n")
	fmt.Fprintf(os.Stderr, "  edit      open a map document in $EDITOR\n")
	fmt.Fprintf(os.Stderr, "  repl      edit a map interactively\n")
	fmt.Fprintf(os.Stderr, "  config    init, show or locate the config file\n")
}

// globals are the flags every subcommand accepts.
type globals struct {
	configPath *string
	athlete    *string
	driver     *string
	dataDir    *string
}

func addGlobals(fs *flag.FlagSet) *globals {
	return &globals{
		configPath: fs.String("config", config.DefaultPath(), "config file (TOML)"),
		athlete:    fs.String("athlete", "", "athlete id (env: RAIDICAL_ATHLETE)"),
		driver:     fs.String("driver", "", "store driver: file or sqlite (env: RAIDICAL_DRIVER)"),
		dataDir:    fs.String("data", "", "map directory for the file driver (env: RAIDICAL_DATA_DIR)"),
	}
}

// env is what an opened subcommand works with.
type env struct {
	cfg     *config.Config
	log     *slog.Logger
	adapter session.Adapter
	close   func() error
}

// loadConfig reads the config file and applies flag overrides.
func (g *globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*g.configPath)
	if err != nil {
		return nil, err
	}
	if *g.athlete != "" {
		cfg.Athlete = *g.athlete
	}
	if *g.driver != "" {
		cfg.Driver = *g.driver
	}
	if *g.dataDir != "" {
		cfg.DataDir = *g.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open loads config and the store adapter, exiting on failure.
func (g *globals) open() *env {
	cfg, err := g.loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	adapter, closeFn, err := session.NewAdapter(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	return &env{cfg: cfg, log: logger, adapter: adapter, close: closeFn}
}

func (e *env) shutdown() {
	if err := e.close(); err != nil {
		e.log.Warn("closing store", "err", err)
	}
}

func showMain(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	g := addGlobals(fs)
	raw := fs.Bool("raw", false, "print the markdown outline without rendering")
	width := fs.Int("width", 80, "wrap rendered output at this width")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: raidical show [-raw] [-width N] <map-id>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	e := g.open()
	defer e.shutdown()
	if err := show(context.Background(), e.adapter, e.cfg.Athlete, fs.Arg(0), *raw, *width, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func show(ctx context.Context, a session.Adapter, athleteID, mapID string, raw bool, width int, w io.Writer) error {
	doc, err := a.Load(ctx, athleteID, mapID)
	if err != nil {
		return err
	}
	out := mapdoc.Outline(doc)
	if !raw {
		if rendered, err := renderMarkdown(out, width); err == nil {
			out = rendered
		}
	}
	_, err = io.WriteString(w, out)
	return err
}

func renderMarkdown(body string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return "", err
	}
	return r.Render(body)
}

func exportMain(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	g := addGlobals(fs)
	html := fs.Bool("html", false, "render the outline as HTML instead of the markdown document")
	out := fs.String("o", "", "output file (default stdout)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: raidical export [-html] [-o FILE] <map-id>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	e := g.open()
	defer e.shutdown()

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("create output: %v", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if err := export(context.Background(), e.adapter, e.cfg.Athlete, fs.Arg(0), *html, w); err != nil {
		log.Fatal(err)
	}
}

func export(ctx context.Context, a session.Adapter, athleteID, mapID string, html bool, w io.Writer) error {
	doc, err := a.Load(ctx, athleteID, mapID)
	if err != nil {
		return err
	}
	var data []byte
	if html {
		data, err = mapdoc.HTML(doc)
	} else {
		data, err = doc.Bytes()
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func listMain(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	g := addGlobals(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: raidical list [-athlete ID]\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	e := g.open()
	defer e.shutdown()
	if err := list(context.Background(), e.adapter, e.cfg.Athlete, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func list(ctx context.Context, a session.Adapter, athleteID string, w io.Writer) error {
	l, ok := a.(session.Lister)
	if !ok {
		return errors.New("store does not support listing")
	}
	maps, err := l.List(ctx, athleteID)
	if err != nil {
		return err
	}
	if len(maps) == 0 {
		subtle.Fprintf(w, "No mind maps for %s.\n", athleteID)
		return nil
	}

	rows := make([][]string, 0, len(maps))
	for _, m := range maps {
		saved := ""
		if !m.Saved.IsZero() {
			saved = m.Saved.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			m.ID,
			m.Name,
			fmt.Sprintf("v%d", m.Version),
			fmt.Sprint(m.Stats.Nodes),
			fmt.Sprint(m.Stats.Edges),
			saved,
		})
	}
	table(w, []string{"ID", "NAME", "VER", "NODES", "EDGES", "SAVED"}, rows)
	return nil
}

// versioner is implemented by stores that keep history.
type versioner interface {
	Versions(athleteID, mapID string) ([]store.VersionInfo, error)
}

func versionsMain(args []string) {
	fs := flag.NewFlagSet("versions", flag.ExitOnError)
	g := addGlobals(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: raidical versions <map-id>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	e := g.open()
	defer e.shutdown()
	if err := versions(e.adapter, e.cfg.Athlete, fs.Arg(0), os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func versions(a session.Adapter, athleteID, mapID string, w io.Writer) error {
	v, ok := a.(versioner)
	if !ok {
		return fmt.Errorf("the %T store keeps no version history", a)
	}
	vs, err := v.Versions(athleteID, mapID)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(vs))
	for _, vi := range vs {
		rows = append(rows, []string{fmt.Sprintf("v%d", vi.Version), vi.Modified.Local().Format(time.DateTime)})
	}
	table(w, []string{"VERSION", "MODIFIED"}, rows)
	return nil
}

func newMain(args []string) {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	g := addGlobals(fs)
	name := fs.String("name", "", "display name")
	seed := fs.Bool("seed", false, "start from the guard game plan sample")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: raidical new [-name NAME] [-seed] [map-id]\n\n")
		fmt.Fprintf(os.Stderr, "Creates and saves a map. A map id is generated when omitted.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	e := g.open()
	defer e.shutdown()

	doc, err := newMap(context.Background(), e.adapter, e.cfg.Athlete, fs.Arg(0), *name, *seed, time.Now().UTC())
	if err != nil {
		log.Fatal(err)
	}
	good.Fprintf(os.Stderr, "Created %s ", doc.ID)
	fmt.Fprintf(os.Stderr, "(%d nodes, v%d)\n", len(doc.Snapshot.Nodes), doc.Version)
	fmt.Println(doc.ID)
}

// Seed positions and move references of the sample map.
var guardGamePlan = []struct {
	title string
	pos   geom.Point
	move  string
}{
	{"Armbar Setup", geom.Pt(100, 100), "move-armbar-from-guard"},
	{"Triangle Transition", geom.Pt(300, 100), "move-triangle-choke"},
	{"Guard Retention", geom.Pt(200, 200), ""},
}

func newMap(ctx context.Context, a session.Adapter, athleteID, mapID, name string, seed bool, now time.Time) (*mapdoc.Document, error) {
	if mapID == "" {
		id, err := idgen.MapID()
		if err != nil {
			return nil, err
		}
		mapID = id
	}
	switch _, err := a.Load(ctx, athleteID, mapID); {
	case err == nil:
		return nil, fmt.Errorf("map %q already exists", mapID)
	case !errors.Is(err, mapdoc.ErrNotFound):
		return nil, err
	}

	if name == "" {
		name = mapID
		if seed {
			name = "Guard Game Plan"
		}
	}
	mm := graph.New(mapID, name, athleteID)
	if seed {
		for _, n := range guardGamePlan {
			mm.AddNode(n.title, n.pos, n.move)
		}
	}

	doc := mapdoc.FromMap(mm, now)
	if err := a.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func editMain(args []string) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	g := addGlobals(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: raidical edit <map-id>\n\n")
		fmt.Fprintf(os.Stderr, "Open a map document in $EDITOR and save the changes.\n")
		fmt.Fprintf(os.Stderr, "Creates a new map if it doesn't exist.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}
	mapID := fs.Arg(0)

	e := g.open()
	defer e.shutdown()
	ctx := context.Background()

	doc, err := e.adapter.Load(ctx, e.cfg.Athlete, mapID)
	switch {
	case errors.Is(err, mapdoc.ErrNotFound):
		fmt.Fprintf(os.Stderr, "Map not found, creating new map.\n")
		doc = mapdoc.FromMap(graph.New(mapID, mapID, e.cfg.Athlete), time.Now().UTC())
	case err != nil:
		log.Fatal(err)
	}
	original, err := doc.Bytes()
	if err != nil {
		log.Fatal(err)
	}

	tmpFile, err := os.CreateTemp("", "raidical-edit-*.md")
	if err != nil {
		log.Fatalf("create temp file: %v", err)
	}
	defer func() { _ = os.Remove(tmpFile.Name()) }()

	if _, err := tmpFile.Write(original); err != nil {
		log.Fatalf("write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		log.Fatalf("close temp file: %v", err)
	}

	editorCmd := os.Getenv("EDITOR")
	if strings.TrimSpace(editorCmd) == "" {
		editorCmd = "vi"
	}
	name, editorArgs := editorCommand(strings.Fields(editorCmd), tmpFile.Name())
	cmd := exec.Command(name, editorArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Fatalf("editor exited with error: %v", err)
	}

	edited, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		log.Fatalf("read temp file: %v", err)
	}

	next, err := applyEdit(doc, original, edited, time.Now().UTC())
	if err != nil {
		log.Fatal(err)
	}
	if next == nil {
		fmt.Fprintln(os.Stderr, "No changes, skipping save.")
		return
	}
	if err := e.adapter.Save(ctx, next); err != nil {
		log.Fatal(err)
	}
	good.Fprintf(os.Stderr, "Saved %s v%d\n", next.ID, next.Version)
}

// editorCommand splits $EDITOR into a program and its arguments, with
// the file to edit last.
func editorCommand(fields []string, file string) (string, []string) {
	args := append(append([]string{}, fields[1:]...), file)
	return fields[0], args
}

// applyEdit validates a hand-edited document. It returns nil when the
// text did not change.
func applyEdit(orig *mapdoc.Document, before, after []byte, now time.Time) (*mapdoc.Document, error) {
	if bytes.Equal(before, after) {
		return nil, nil
	}
	if len(bytes.TrimSpace(after)) == 0 {
		return nil, errors.New("document is empty, skipping save")
	}
	doc, err := mapdoc.Parse(bytes.NewReader(after))
	if err != nil {
		return nil, err
	}
	if doc.ID != orig.ID || doc.AthleteID != orig.AthleteID {
		return nil, fmt.Errorf("edited document changed id or athlete (%s/%s, want %s/%s)",
			doc.AthleteID, doc.ID, orig.AthleteID, orig.ID)
	}
	if _, err := doc.MindMap(); err != nil {
		return nil, err
	}
	doc.Saved = now
	return doc, nil
}

func configMain(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	g := addGlobals(fs)
	force := fs.Bool("force", false, "overwrite an existing file on init")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: raidical config <init|show|path>\n")
		fmt.Fprintf(os.Stderr, "  init  write the default config file\n")
		fmt.Fprintf(os.Stderr, "  show  print the effective config\n")
		fmt.Fprintf(os.Stderr, "  path  print the config file location\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	switch fs.Arg(0) {
	case "init":
		if _, err := os.Stat(*g.configPath); err == nil && !*force {
			log.Fatalf("%s already exists (use -force to overwrite)", *g.configPath)
		}
		if err := config.Default().Save(*g.configPath); err != nil {
			log.Fatal(err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", *g.configPath)
	case "show":
		cfg, err := g.loadConfig()
		if err != nil {
			log.Fatal(err)
		}
		if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
			log.Fatal(err)
		}
	case "path":
		fmt.Println(*g.configPath)
	default:
		log.Fatalf("unknown config command: %s", fs.Arg(0))
	}
}
