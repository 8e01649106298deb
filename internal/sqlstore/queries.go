package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/raghurai/raidical-bjj/internal/geom"
	"github.com/raghurai/raidical-bjj/internal/graph"
	"github.com/raghurai/raidical-bjj/internal/mapdoc"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// timeLayout stores timestamps as sortable text.
const timeLayout = time.RFC3339Nano

func queryLoadMap(ctx context.Context, db executor, athleteID, mapID string) (*mapdoc.Document, error) {
	doc := &mapdoc.Document{ID: mapID, AthleteID: athleteID}
	var updated string
	err := db.QueryRowContext(ctx,
		`SELECT name, version, updated_at FROM mind_maps WHERE id = ? AND athlete_id = ?`,
		mapID, athleteID,
	).Scan(&doc.Name, &doc.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mapdoc.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if doc.Saved, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	if doc.Snapshot.Nodes, err = queryNodes(ctx, db, mapID); err != nil {
		return nil, err
	}
	if doc.Snapshot.Edges, err = queryEdges(ctx, db, mapID); err != nil {
		return nil, err
	}
	return doc, nil
}

func queryNodes(ctx context.Context, db executor, mapID string) ([]graph.Node, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, title, x, y, move_id FROM mind_map_nodes WHERE map_id = ? ORDER BY position`, mapID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := []graph.Node{}
	for rows.Next() {
		var (
			n      graph.Node
			x, y   float64
			moveID sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Title, &x, &y, &moveID); err != nil {
			return nil, err
		}
		n.Position = geom.Pt(x, y)
		n.MoveID = moveID.String
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func queryEdges(ctx context.Context, db executor, mapID string) ([]graph.Edge, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, from_node, to_node FROM mind_map_edges WHERE map_id = ? ORDER BY position`, mapID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := []graph.Edge{}
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.ID, &e.From, &e.To); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// querySaveMap upserts the map row and rewrites its nodes and edges,
// returning the new version. It must run inside a transaction.
func querySaveMap(ctx context.Context, db executor, doc *mapdoc.Document) (int, error) {
	saved := doc.Saved
	if saved.IsZero() {
		saved = time.Now()
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO mind_maps (id, athlete_id, name, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			version = mind_maps.version + 1,
			updated_at = excluded.updated_at
		WHERE mind_maps.athlete_id = excluded.athlete_id`,
		doc.ID, doc.AthleteID, doc.Name, saved.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert map: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, ErrConflict
	}

	var version int
	if err := db.QueryRowContext(ctx, `SELECT version FROM mind_maps WHERE id = ?`, doc.ID).Scan(&version); err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM mind_map_edges WHERE map_id = ?`, doc.ID); err != nil {
		return 0, fmt.Errorf("clear edges: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM mind_map_nodes WHERE map_id = ?`, doc.ID); err != nil {
		return 0, fmt.Errorf("clear nodes: %w", err)
	}

	for i, n := range doc.Snapshot.Nodes {
		_, err := db.ExecContext(ctx,
			`INSERT INTO mind_map_nodes (map_id, id, title, x, y, move_id, position) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			doc.ID, string(n.ID), n.Title, n.Position.X, n.Position.Y, nullString(n.MoveID), i,
		)
		if err != nil {
			return 0, fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}
	for i, e := range doc.Snapshot.Edges {
		_, err := db.ExecContext(ctx,
			`INSERT INTO mind_map_edges (map_id, id, from_node, to_node, position) VALUES (?, ?, ?, ?, ?)`,
			doc.ID, string(e.ID), string(e.From), string(e.To), i,
		)
		if err != nil {
			return 0, fmt.Errorf("insert edge %s: %w", e.ID, err)
		}
	}
	return version, nil
}

func queryListMaps(ctx context.Context, db executor, athleteID string) ([]mapdoc.Summary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT m.id, m.name, m.version, m.updated_at,
			(SELECT COUNT(*) FROM mind_map_nodes n WHERE n.map_id = m.id),
			(SELECT COUNT(*) FROM mind_map_edges e WHERE e.map_id = m.id),
			(SELECT COUNT(*) FROM mind_map_nodes n WHERE n.map_id = m.id AND n.move_id IS NOT NULL)
		FROM mind_maps m
		WHERE m.athlete_id = ?
		ORDER BY m.id`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []mapdoc.Summary
	for rows.Next() {
		s := mapdoc.Summary{AthleteID: athleteID}
		var updated string
		if err := rows.Scan(&s.ID, &s.Name, &s.Version, &updated,
			&s.Stats.Nodes, &s.Stats.Edges, &s.Stats.LinkedMoves); err != nil {
			return nil, err
		}
		if s.Saved, err = time.Parse(timeLayout, updated); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
