// Package session ties an editor to a persistence adapter: it loads the
// initial map, owns the controller for the editing session and hands
// snapshots to the adapter on save.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raghurai/raidical-bjj/internal/config"
	"github.com/raghurai/raidical-bjj/internal/editor"
	"github.com/raghurai/raidical-bjj/internal/graph"
	"github.com/raghurai/raidical-bjj/internal/mapdoc"
	"github.com/raghurai/raidical-bjj/internal/sqlstore"
	"github.com/raghurai/raidical-bjj/internal/store"
)

// Adapter loads and saves whole documents.
type Adapter interface {
	// Load returns mapdoc.ErrNotFound for a map that was never saved.
	Load(ctx context.Context, athleteID, mapID string) (*mapdoc.Document, error)
	Save(ctx context.Context, doc *mapdoc.Document) error
}

// Lister is implemented by adapters that can enumerate an athlete's maps.
type Lister interface {
	List(ctx context.Context, athleteID string) ([]mapdoc.Summary, error)
}

var (
	_ Adapter = (*store.Store)(nil)
	_ Lister  = (*store.Store)(nil)
	_ Adapter = (*sqlstore.Store)(nil)
	_ Lister  = (*sqlstore.Store)(nil)
)

// Options configures Open.
type Options struct {
	// Name is used when the map does not exist yet.
	Name   string
	Editor editor.Options
	Logger *slog.Logger
	// Now stamps saved documents; time.Now when nil.
	Now func() time.Time
}

// Session is one athlete editing one map.
type Session struct {
	adapter Adapter
	ctrl    *editor.Controller
	log     *slog.Logger
	now     func() time.Time
	created bool
}

// Open loads a map through adapter, or starts an empty one when the
// adapter has none.
func Open(ctx context.Context, adapter Adapter, athleteID, mapID string, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Editor.Logger == nil {
		opts.Editor.Logger = logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var (
		mm      *graph.MindMap
		created bool
	)
	doc, err := adapter.Load(ctx, athleteID, mapID)
	switch {
	case errors.Is(err, mapdoc.ErrNotFound):
		name := opts.Name
		if name == "" {
			name = mapID
		}
		mm = graph.New(mapID, name, athleteID)
		created = true
		logger.Info("starting new map", "athlete", athleteID, "map", mapID)
	case err != nil:
		return nil, fmt.Errorf("open %s/%s: %w", athleteID, mapID, err)
	default:
		mm, err = doc.MindMap()
		if err != nil {
			return nil, fmt.Errorf("open %s/%s: %w", athleteID, mapID, err)
		}
		logger.Info("map loaded", "athlete", athleteID, "map", mapID,
			"version", doc.Version, "nodes", mm.NodeCount(), "edges", mm.EdgeCount())
	}

	return &Session{
		adapter: adapter,
		ctrl:    editor.New(mm, opts.Editor),
		log:     logger,
		now:     now,
		created: created,
	}, nil
}

// Editor returns the session's controller.
func (s *Session) Editor() *editor.Controller { return s.ctrl }

// Adapter returns the adapter the session saves through.
func (s *Session) Adapter() Adapter { return s.adapter }

// Created reports whether the map did not exist when the session opened.
func (s *Session) Created() bool { return s.created }

// Document captures the current map as a document ready to save.
func (s *Session) Document() *mapdoc.Document {
	return mapdoc.FromMap(s.ctrl.MindMap(), s.now().UTC())
}

// Save hands the current snapshot to the adapter and waits for it.
func (s *Session) Save(ctx context.Context) (*mapdoc.Document, error) {
	doc := s.Document()
	if err := s.adapter.Save(ctx, doc); err != nil {
		s.log.Error("save failed", "map", doc.ID, "err", err)
		return nil, err
	}
	return doc, nil
}

// SaveAsync snapshots the map now and saves it in the background. The
// editor may keep changing while the save runs; the result arrives on
// the returned channel.
func (s *Session) SaveAsync(ctx context.Context) <-chan SaveResult {
	doc := s.Document()
	ch := make(chan SaveResult, 1)
	go func() {
		err := s.adapter.Save(ctx, doc)
		if err != nil {
			s.log.Error("save failed", "map", doc.ID, "err", err)
		}
		ch <- SaveResult{Doc: doc, Err: err}
	}()
	return ch
}

// SaveResult is the outcome of a background save.
type SaveResult struct {
	Doc *mapdoc.Document
	Err error
}

// NewAdapter opens the adapter selected by cfg. The returned function
// releases it.
func NewAdapter(cfg *config.Config, logger *slog.Logger) (Adapter, func() error, error) {
	switch cfg.Driver {
	case config.DriverFile:
		return store.New(cfg.DataDir, logger), func() error { return nil }, nil
	case config.DriverSQLite:
		s, err := sqlstore.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
	}
}
