// Package config loads raidical settings.
//
// Values are layered: built-in defaults, then the TOML file
// (default ~/.raidical/config.toml), then RAIDICAL_* environment
// variables. Commands apply their flags last.
//
// TOML format:
//
//	driver = "sqlite"
//	data_dir = "/home/me/.raidical/maps"
//	sqlite_path = "/home/me/.raidical/raidical.db"
//	athlete = "athlete-1"
//	log_level = "debug"
//
//	[editor]
//	default_title = "New Node"
//	node_width = 200
//	node_height = 60
//	grid = 20
//	allow_self_loops = false
//	dedupe_edges = true
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/raghurai/raidical-bjj/internal/editor"
	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
)

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ErrUnknownDriver is returned for a driver other than file or sqlite.
var ErrUnknownDriver = errors.New("unknown store driver")

// Editor holds canvas policy settings.
type Editor struct {
	DefaultTitle   string  `toml:"default_title"`
	NodeWidth      float64 `toml:"node_width"`
	NodeHeight     float64 `toml:"node_height"`
	FallbackX      float64 `toml:"fallback_x"`
	FallbackY      float64 `toml:"fallback_y"`
	Grid           float64 `toml:"grid"`
	AllowSelfLoops bool    `toml:"allow_self_loops"`
	DedupeEdges    bool    `toml:"dedupe_edges"`
}

// Config holds the settings shared by every raidical command.
type Config struct {
	Driver     string `toml:"driver"`
	DataDir    string `toml:"data_dir"`
	SQLitePath string `toml:"sqlite_path"`
	Athlete    string `toml:"athlete"`
	LogLevel   string `toml:"log_level"`
	LogFormat  string `toml:"log_format"`
	Editor     Editor `toml:"editor"`
}

// Default returns the built-in settings.
func Default() *Config {
	base := baseDir()
	return &Config{
		Driver:     DriverFile,
		DataDir:    filepath.Join(base, "maps"),
		SQLitePath: filepath.Join(base, "raidical.db"),
		Athlete:    "default",
		LogLevel:   "info",
		LogFormat:  "text",
		Editor: Editor{
			DefaultTitle: graph.DefaultTitle,
			NodeWidth:    editor.DefaultNodeSize.W,
			NodeHeight:   editor.DefaultNodeSize.H,
			FallbackX:    editor.DefaultFallback.X,
			FallbackY:    editor.DefaultFallback.Y,
		},
	}
}

// DefaultPath returns the default config file path (~/.raidical/config.toml).
func DefaultPath() string {
	return filepath.Join(baseDir(), "config.toml")
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".raidical"
	}
	return filepath.Join(home, ".raidical")
}

// Load reads the file at path over the defaults and applies environment
// overrides. A missing file is not an error; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		case len(data) > 0:
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parse config file %q: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Driver = getEnv("RAIDICAL_DRIVER", c.Driver)
	c.DataDir = getEnv("RAIDICAL_DATA_DIR", c.DataDir)
	c.SQLitePath = getEnv("RAIDICAL_SQLITE_PATH", c.SQLitePath)
	c.Athlete = getEnv("RAIDICAL_ATHLETE", c.Athlete)
	c.LogLevel = getEnv("RAIDICAL_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("RAIDICAL_LOG_FORMAT", c.LogFormat)
	c.Editor.DefaultTitle = getEnv("RAIDICAL_DEFAULT_TITLE", c.Editor.DefaultTitle)
	c.Editor.Grid = getEnvAsFloat("RAIDICAL_GRID", c.Editor.Grid)
	c.Editor.AllowSelfLoops = getEnvAsBool("RAIDICAL_ALLOW_SELF_LOOPS", c.Editor.AllowSelfLoops)
	c.Editor.DedupeEdges = getEnvAsBool("RAIDICAL_DEDUPE_EDGES", c.Editor.DedupeEdges)
}

// Validate checks the settings that commands cannot recover from.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverFile:
		if c.DataDir == "" {
			return errors.New("data_dir is required for the file driver")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}
	if c.Editor.NodeWidth <= 0 || c.Editor.NodeHeight <= 0 {
		return fmt.Errorf("node size %gx%g must be positive", c.Editor.NodeWidth, c.Editor.NodeHeight)
	}
	if fb := geom.Pt(c.Editor.FallbackX, c.Editor.FallbackY); !fb.Finite() {
		return fmt.Errorf("fallback position %v must be finite", fb)
	}
	return nil
}

// Save writes the settings as TOML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("encode config file: %w", err)
	}
	return f.Close()
}

// EditorOptions converts the editor section into controller options.
// The fallback position is always set, so a configured origin stays put.
func (c *Config) EditorOptions(logger *slog.Logger) editor.Options {
	fallback := geom.Pt(c.Editor.FallbackX, c.Editor.FallbackY)
	return editor.Options{
		NodeSize:       geom.Size{W: c.Editor.NodeWidth, H: c.Editor.NodeHeight},
		Fallback:       &fallback,
		Grid:           c.Editor.Grid,
		DefaultTitle:   c.Editor.DefaultTitle,
		AllowSelfLoops: c.Editor.AllowSelfLoops,
		DedupeEdges:    c.Editor.DedupeEdges,
		Logger:         logger,
	}
}

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
