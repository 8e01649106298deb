// Package store keeps mind map documents in a versioned directory tree.
//
// Every save writes a new immutable version and replaces the current file:
//
//	root/
//	  athlete-1/
//	    map-x1.md            ← current
//	    versions/
//	      map-x1.md.v1
//	      map-x1.md.v2
//
// A current file with no versions directory is treated as version 1.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raghurai/raidical-bjj/internal/mapdoc"
)

const (
	ext         = ".md"
	versionsDir = "versions"
)

// ErrInvalidName is returned for athlete or map ids that cannot be used
// as a single path element.
var ErrInvalidName = errors.New("invalid name")

// VersionInfo describes a single saved version of a map.
type VersionInfo struct {
	Version  int
	Modified time.Time
}

// Store reads and writes documents under a root directory.
type Store struct {
	root string
	log  *slog.Logger

	// mu serialises version numbering between concurrent saves.
	mu sync.Mutex
}

// New creates a store rooted at the given directory. A nil logger
// discards.
func New(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{root: root, log: logger}
}

// Root returns the content directory path.
func (s *Store) Root() string {
	return s.root
}

// Load returns the current version of a map. It returns
// mapdoc.ErrNotFound when the map has never been saved.
func (s *Store) Load(ctx context.Context, athleteID, mapID string) (*mapdoc.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, err := docPath(athleteID, mapID)
	if err != nil {
		return nil, err
	}
	doc, err := s.read(rel)
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", athleteID, mapID, err)
	}
	doc.Version = s.CurrentVersion(athleteID, mapID)
	return doc, nil
}

// LoadVersion returns a specific saved version of a map.
func (s *Store) LoadVersion(ctx context.Context, athleteID, mapID string, version int) (*mapdoc.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, err := docPath(athleteID, mapID)
	if err != nil {
		return nil, err
	}
	doc, err := s.read(versionPath(rel, version))
	if err != nil {
		return nil, fmt.Errorf("load %s/%s v%d: %w", athleteID, mapID, version, err)
	}
	doc.Version = version
	return doc, nil
}

// Save writes doc as the next version of its map and makes it current.
// It sets doc.Version to the number written.
func (s *Store) Save(ctx context.Context, doc *mapdoc.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, err := docPath(doc.AthleteID, doc.ID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := 1
	if vs := s.findVersions(rel); len(vs) > 0 {
		for _, v := range vs {
			next = max(next, v.Version+1)
		}
	} else if _, err := os.Stat(filepath.Join(s.root, rel)); err == nil {
		next = 2
	}

	vPath, err := s.resolve(versionPath(rel, next))
	if err != nil {
		return fmt.Errorf("save %s: %w", doc.ID, err)
	}
	if err := os.MkdirAll(filepath.Dir(vPath), 0o755); err != nil {
		return fmt.Errorf("save %s: %w", doc.ID, err)
	}
	if doc.Saved.IsZero() {
		doc.Saved = time.Now().UTC()
	}
	doc.Version = next
	data, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("save %s: %w", doc.ID, err)
	}

	f, err := os.OpenFile(vPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("save %s v%d: %w", doc.ID, next, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("save %s v%d: %w", doc.ID, next, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("save %s v%d: %w", doc.ID, next, err)
	}

	if err := s.writeCurrent(rel, data); err != nil {
		return fmt.Errorf("save %s: %w", doc.ID, err)
	}
	s.log.Info("map saved", "athlete", doc.AthleteID, "map", doc.ID, "version", next,
		"nodes", len(doc.Snapshot.Nodes), "edges", len(doc.Snapshot.Edges))
	return nil
}

// writeCurrent replaces the current file through a rename so readers
// never see a partial document.
func (s *Store) writeCurrent(rel string, data []byte) error {
	dst, err := s.resolve(rel)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".save-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// List returns the current version of every map an athlete owns, ordered
// by id. Files that fail to parse are skipped and logged.
func (s *Store) List(ctx context.Context, athleteID string) ([]mapdoc.Summary, error) {
	if err := validName(athleteID); err != nil {
		return nil, err
	}
	dir, err := s.resolve(athleteID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result []mapdoc.Summary
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		mapID := strings.TrimSuffix(name, ext)
		doc, err := s.Load(ctx, athleteID, mapID)
		if err != nil {
			s.log.Warn("skipping unreadable map", "athlete", athleteID, "map", mapID, "err", err)
			continue
		}
		result = append(result, doc.Summary())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Versions returns the version history for a map, newest first.
func (s *Store) Versions(athleteID, mapID string) ([]VersionInfo, error) {
	rel, err := docPath(athleteID, mapID)
	if err != nil {
		return nil, err
	}
	filePath, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("versions %s/%s: %w", athleteID, mapID, mapdoc.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	versions := s.findVersions(rel)
	if len(versions) > 0 {
		sort.Slice(versions, func(i, j int) bool {
			return versions[i].Version > versions[j].Version
		})
		return versions, nil
	}

	return []VersionInfo{{
		Version:  1,
		Modified: info.ModTime().UTC().Truncate(time.Second),
	}}, nil
}

// CurrentVersion returns the latest version number of a map, or 1 for a
// map with no history.
func (s *Store) CurrentVersion(athleteID, mapID string) int {
	rel, err := docPath(athleteID, mapID)
	if err != nil {
		return 0
	}
	latest := 1
	for _, v := range s.findVersions(rel) {
		latest = max(latest, v.Version)
	}
	return latest
}

func (s *Store) read(rel string) (*mapdoc.Document, error) {
	filePath, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, mapdoc.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", rel)
	}

	doc, err := mapdoc.Parse(f)
	if err != nil {
		return nil, err
	}
	if doc.Saved.IsZero() {
		doc.Saved = info.ModTime().UTC().Truncate(time.Second)
	}
	return doc, nil
}

// findVersions looks for versioned files next to rel. Returns nil if no
// versions directory or no matching files exist.
func (s *Store) findVersions(rel string) []VersionInfo {
	base := filepath.Base(rel)
	dir := filepath.Join(s.root, filepath.Dir(rel), versionsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	prefix := base + ".v"
	var versions []VersionInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		num, err := strconv.Atoi(strings.TrimPrefix(e.Name(), prefix))
		if err != nil || num < 1 {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		versions = append(versions, VersionInfo{
			Version:  num,
			Modified: info.ModTime().UTC().Truncate(time.Second),
		})
	}
	return versions
}

// resolve validates and resolves a relative path to an absolute path
// within the root. Returns os.ErrNotExist for paths that escape it.
func (s *Store) resolve(rel string) (string, error) {
	cleaned := strings.TrimLeft(filepath.Clean("/"+rel), "/")
	joined := filepath.Join(s.root, cleaned)

	absRoot, err := resolveExisting(s.root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	absPath, err := resolveExisting(joined)
	if err != nil {
		return "", err
	}

	if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", os.ErrNotExist
	}
	return absPath, nil
}

// resolveExisting evaluates symlinks in the longest existing prefix of p,
// so paths that are about to be created compare correctly with the root.
func resolveExisting(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	dir, rest := abs, ""
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

func docPath(athleteID, mapID string) (string, error) {
	if err := validName(athleteID); err != nil {
		return "", err
	}
	if err := validName(mapID); err != nil {
		return "", err
	}
	return filepath.Join(athleteID, mapID+ext), nil
}

func versionPath(rel string, version int) string {
	return filepath.Join(filepath.Dir(rel), versionsDir, fmt.Sprintf("%s.v%d", filepath.Base(rel), version))
}

func validName(name string) error {
	switch {
	case name == "", name == versionsDir, strings.HasPrefix(name, "."),
		strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
