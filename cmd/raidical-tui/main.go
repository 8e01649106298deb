// Command raidical-tui is a mouse-driven terminal editor for one mind map.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/raghurai/raidical-bjj/internal/config"
	"github.com/raghurai/raidical-bjj/internal/editor"
	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
	"github.com/raghurai/raidical-bjj/internal/logging"
	"github.com/raghurai/raidical-bjj/internal/session"
)

type inputFor int

const (
	inputNone inputFor = iota
	inputTitle
	inputRename
)

type model struct {
	ctx  context.Context
	sess *session.Session
	ctrl *editor.Controller

	input    textinput.Model
	inputFor inputFor
	renaming graph.NodeID

	vp     geom.Viewport
	width  int
	height int
	ready  bool

	rev       int // bumped on every mutation
	savedRev  int
	saving    bool
	quitArmed bool
	status    string
	err       error
}

// saveDone carries a background save back to Update.
type saveDone struct {
	result session.SaveResult
	rev    int
}

var (
	toolbarStyle = lipgloss.NewStyle().Padding(0, 1)
	badgeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10")).Padding(0, 1)
	hintStyle    = lipgloss.NewStyle().Faint(true)
	statusStyle  = lipgloss.NewStyle().Padding(0, 1)
	errorStyle   = statusStyle.Foreground(lipgloss.Color("9"))
)

func initialModel(ctx context.Context, sess *session.Session) model {
	ti := textinput.New()
	ti.Prompt = "title: "
	ti.CharLimit = 80

	return model{
		ctx:   ctx,
		sess:  sess,
		ctrl:  sess.Editor(),
		input: ti,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		ev, ok := pointerEvent(msg, m.vp, canvasTop)
		if !ok {
			return m, nil
		}
		m.handle(ev)
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp = geom.Viewport{
			Cell: cellSize,
			Cols: max(m.width, 1),
			Rows: max(m.height-canvasTop-1, 1),
		}
		m.ctrl.Handle(editor.Resize{Size: m.vp.Canvas()})
		m.input.Width = max(m.width-len(m.input.Prompt)-4, 10)
		m.ready = true
		return m, nil

	case saveDone:
		m.saving = false
		if msg.result.Err != nil {
			m.err = msg.result.Err
			return m, nil
		}
		m.err = nil
		m.savedRev = msg.rev
		m.status = fmt.Sprintf("saved v%d", msg.result.Doc.Version)
		return m, nil
	}
	return m, nil
}

// handle feeds one event to the controller and keeps the title input in
// step with the mode.
func (m *model) handle(ev editor.Event) {
	if m.ctrl.Handle(ev) {
		m.rev++
		m.quitArmed = false
		m.status = ""
	}
	if m.inputFor == inputTitle && m.ctrl.Mode().Kind != editor.PlacingNode {
		m.closeInput()
	}
	if m.inputFor == inputRename {
		if _, ok := m.ctrl.MindMap().Node(m.renaming); !ok {
			m.closeInput()
		}
	}
}

func (m *model) openInput(kind inputFor, value string) tea.Cmd {
	m.inputFor = kind
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Placeholder = m.ctrl.Options().DefaultTitle
	if kind == inputRename {
		m.input.Prompt = "rename: "
	} else {
		m.input.Prompt = "title: "
	}
	return m.input.Focus()
}

func (m *model) closeInput() {
	m.inputFor = inputNone
	m.renaming = ""
	m.input.Blur()
	m.input.SetValue("")
}

func (m model) dirty() bool {
	return m.rev != m.savedRev
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.inputFor != inputNone {
		return m.handleInputKey(msg)
	}

	switch msg.String() {
	case "q":
		if m.dirty() && !m.quitArmed {
			m.quitArmed = true
			m.status = "unsaved changes: press q again to quit, s to save"
			return m, nil
		}
		return m, tea.Quit
	case "a":
		m.handle(editor.ToggleAddNode{})
		if m.ctrl.Mode().Kind == editor.PlacingNode {
			return m, m.openInput(inputTitle, "")
		}
	case "c":
		m.handle(editor.ToggleConnect{})
	case "x", "delete", "backspace":
		m.handle(editor.Delete{})
	case "r":
		if sel := m.ctrl.Selected(); sel != "" {
			n, _ := m.ctrl.MindMap().Node(sel)
			m.renaming = sel
			return m, m.openInput(inputRename, n.Title)
		}
	case "tab":
		m.handle(editor.Select{Node: nextNode(m.ctrl.Snapshot(), m.ctrl.Selected())})
	case "enter":
		m.handle(editor.PlaceDefault{})
	case "esc":
		m.handle(editor.Cancel{})
	case "s":
		return m.save()
	}
	return m, nil
}

func (m model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		if m.inputFor == inputRename {
			m.handle(editor.Rename{Node: m.renaming, Title: m.input.Value()})
			m.closeInput()
			return m, nil
		}
		m.handle(editor.PlaceDefault{})
		return m, nil
	case tea.KeyEscape:
		if m.inputFor == inputTitle {
			m.handle(editor.Cancel{})
		}
		m.closeInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.inputFor == inputTitle {
		m.handle(editor.SetPendingTitle{Title: m.input.Value()})
	}
	return m, cmd
}

func (m model) save() (tea.Model, tea.Cmd) {
	if m.saving {
		return m, nil
	}
	m.saving = true
	m.status = "saving..."
	rev := m.rev
	ch := m.sess.SaveAsync(m.ctx)
	return m, func() tea.Msg {
		return saveDone{result: <-ch, rev: rev}
	}
}

// nextNode returns the node after current in creation order, wrapping.
func nextNode(snap graph.Snapshot, current graph.NodeID) graph.NodeID {
	if len(snap.Nodes) == 0 {
		return ""
	}
	for i, n := range snap.Nodes {
		if n.ID == current {
			return snap.Nodes[(i+1)%len(snap.Nodes)].ID
		}
	}
	return snap.Nodes[0].ID
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.toolbarView())
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("─", m.width))
	b.WriteByte('\n')
	b.WriteString(renderCanvas(m.ctrl.Scene(), m.vp))
	b.WriteByte('\n')
	b.WriteString(m.statusBarView())
	return b.String()
}

func (m model) toolbarView() string {
	style := toolbarStyle.MaxWidth(m.width)
	if m.inputFor != inputNone {
		return style.Bold(true).Render(m.input.View())
	}
	name := m.ctrl.MindMap().Name()
	hints := hintStyle.Render("[a]dd  [c]onnect  [x] delete  [r]ename  [tab] select  [s]ave  [q]uit")
	return style.Render(badgeStyle.Render(m.ctrl.Mode().String()) + " " + name + "  " + hints)
}

func (m model) statusBarView() string {
	style := statusStyle.MaxWidth(m.width)
	if m.err != nil {
		return errorStyle.MaxWidth(m.width).Render("Error: " + m.err.Error())
	}

	st := m.ctrl.Snapshot().Stats()
	parts := []string{fmt.Sprintf("%d nodes, %d connections, %d connected moves", st.Nodes, st.Edges, st.LinkedMoves)}
	switch m.ctrl.Mode().Kind {
	case editor.PlacingNode:
		parts = append(parts, "click empty canvas to place, enter for default position")
	case editor.Connecting:
		if m.ctrl.Mode().Node == "" {
			parts = append(parts, "click the first node")
		} else {
			parts = append(parts, "click the node to connect to")
		}
	}
	if m.dirty() {
		parts = append(parts, "modified")
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	return style.Render(strings.Join(parts, "  "))
}

func main() {
	configPath := flag.String("config", config.DefaultPath(), "config file (TOML)")
	athlete := flag.String("athlete", "", "athlete id (env: RAIDICAL_ATHLETE)")
	name := flag.String("name", "", "display name for a new map")
	logPath := flag.String("log", "", "write logs to this file (default: discard)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: raidical-tui [-athlete ID] [-name NAME] [-log FILE] <map-id>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
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

	ctx := context.Background()
	sess, err := session.Open(ctx, adapter, cfg.Athlete, flag.Arg(0), session.Options{
		Name:   *name,
		Editor: cfg.EditorOptions(logger),
		Logger: logger,
	})
	if err != nil {
		log.Fatal(err)
	}

	p := tea.NewProgram(
		initialModel(ctx, sess),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
