package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/raghurai/raidical-bjj/internal/editor"
	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Driver != DriverFile {
		t.Errorf("driver: got %q, want %q", cfg.Driver, DriverFile)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log: got %q/%q, want info/text", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Editor.NodeWidth != 200 || cfg.Editor.NodeHeight != 60 {
		t.Errorf("node size: got %gx%g, want 200x60", cfg.Editor.NodeWidth, cfg.Editor.NodeHeight)
	}
	if cfg.Editor.AllowSelfLoops {
		t.Error("self-loops allowed by default")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte(`
driver = "sqlite"
sqlite_path = "/srv/raidical.db"
athlete = "athlete-7"

[editor]
grid = 20
dedupe_edges = true
`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Driver != DriverSQLite || cfg.SQLitePath != "/srv/raidical.db" {
		t.Errorf("driver: got %q at %q", cfg.Driver, cfg.SQLitePath)
	}
	if cfg.Athlete != "athlete-7" {
		t.Errorf("athlete: got %q", cfg.Athlete)
	}
	if cfg.Editor.Grid != 20 || !cfg.Editor.DedupeEdges {
		t.Errorf("editor: got %+v", cfg.Editor)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Editor.NodeWidth != 200 {
		t.Errorf("node width: got %g, want 200", cfg.Editor.NodeWidth)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("driver = \"file\"\nlog_level = \"warn\"\n"), 0o644)

	t.Setenv("RAIDICAL_DRIVER", "sqlite")
	t.Setenv("RAIDICAL_SQLITE_PATH", "/tmp/r.db")
	t.Setenv("RAIDICAL_LOG_LEVEL", "debug")
	t.Setenv("RAIDICAL_ALLOW_SELF_LOOPS", "true")
	t.Setenv("RAIDICAL_GRID", "10")
	t.Setenv("RAIDICAL_DEDUPE_EDGES", "maybe")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Driver != DriverSQLite || cfg.SQLitePath != "/tmp/r.db" {
		t.Errorf("driver: got %q at %q", cfg.Driver, cfg.SQLitePath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level: got %q, want debug", cfg.LogLevel)
	}
	if !cfg.Editor.AllowSelfLoops || cfg.Editor.Grid != 10 {
		t.Errorf("editor: got %+v", cfg.Editor)
	}
	if cfg.Editor.DedupeEdges {
		t.Error("unparseable bool should keep the default")
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("RAIDICAL_DRIVER", "postgres")

	cfg, err := Load("")
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("error = %v, want ErrUnknownDriver", err)
	}
	if cfg == nil {
		t.Fatal("expected config with defaults even when invalid")
	}
}

func TestLoad_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("driver = \n"), 0o644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate_NodeSize(t *testing.T) {
	cfg := Default()
	cfg.Editor.NodeHeight = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero node height")
	}
}

func TestValidate_FallbackFinite(t *testing.T) {
	cfg := Default()
	cfg.Editor.FallbackX = math.NaN()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for NaN fallback")
	}
}

func TestEditorOptions_FallbackAtOrigin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte(`
[editor]
fallback_x = 0
fallback_y = 0
`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opts := cfg.EditorOptions(nil)
	if opts.Fallback == nil || *opts.Fallback != (geom.Point{}) {
		t.Fatalf("Fallback = %v, want the origin", opts.Fallback)
	}

	mm := graph.New("map-1", "Guard Game Plan", "athlete-1")
	c := editor.New(mm, opts)
	c.Handle(editor.ToggleAddNode{})
	c.Handle(editor.PlaceDefault{})
	if n := c.Snapshot().Nodes[0]; n.Position != (geom.Point{}) {
		t.Errorf("placed at %v, want the origin", n.Position)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Athlete = "athlete-3"
	cfg.Editor.Grid = 20

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Athlete != "athlete-3" || got.Editor.Grid != 20 {
		t.Errorf("got %+v", got)
	}
}

func TestEditorOptions(t *testing.T) {
	cfg := Default()
	cfg.Editor.AllowSelfLoops = true
	opts := cfg.EditorOptions(nil)

	if opts.NodeSize != editor.DefaultNodeSize {
		t.Errorf("NodeSize = %v, want %v", opts.NodeSize, editor.DefaultNodeSize)
	}
	if opts.Fallback == nil || *opts.Fallback != geom.Pt(200, 100) {
		t.Errorf("Fallback = %v, want (200,100)", opts.Fallback)
	}
	if !opts.AllowSelfLoops || opts.DefaultTitle != "New Node" {
		t.Errorf("opts = %+v", opts)
	}
}
