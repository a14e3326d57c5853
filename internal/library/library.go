// Package library persists the hierarchical session library: a tree of
// named folders holding saved Result Store snapshots.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/philoflow/philoflow/internal/model"
)

var (
	// ErrNotFound is returned for operations on an unknown node.
	ErrNotFound = errors.New("library node not found")
	// ErrNotAFolder is returned when a session save targets a non-folder.
	ErrNotAFolder = errors.New("target node is not a folder")
)

// Library provides data access to the session library database.
type Library struct {
	db *sql.DB
}

// New creates a Library and initialises the schema.
func New(db *sql.DB) (*Library, error) {
	l := &Library{db: db}
	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return l, nil
}

// currentSchemaVersion is bumped whenever the schema changes.
const currentSchemaVersion = 1

func (l *Library) migrate() error {
	if _, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := l.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := l.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	migrations := []func() error{
		l.migrateV1, // v0 → v1: initial schema
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := l.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (l *Library) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id         TEXT PRIMARY KEY,
		parent_id  TEXT REFERENCES nodes(id),
		node_type  TEXT NOT NULL,
		name       TEXT NOT NULL,
		payload    TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id, created_at DESC);
	`
	_, err := l.db.Exec(schema)
	return err
}

// CreateFolder inserts a new top-level folder.
func (l *Library) CreateFolder(ctx context.Context, name string) (model.LibraryNode, error) {
	node := model.LibraryNode{
		ID:        "folder-" + uuid.New().String(),
		Type:      model.NodeFolder,
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO nodes (id, parent_id, node_type, name, payload, created_at) VALUES (?, NULL, ?, ?, NULL, ?)`,
		node.ID, node.Type, node.Name, node.CreatedAt,
	)
	if err != nil {
		return model.LibraryNode{}, err
	}
	return node, nil
}

// SaveSession stores a snapshot as a session node inside the given folder.
func (l *Library) SaveSession(ctx context.Context, folderID, name string, sess model.SavedSession) (model.LibraryNode, error) {
	var nodeType string
	err := l.db.QueryRowContext(ctx, `SELECT node_type FROM nodes WHERE id = ?`, folderID).Scan(&nodeType)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LibraryNode{}, ErrNotFound
	}
	if err != nil {
		return model.LibraryNode{}, err
	}
	if nodeType != model.NodeFolder {
		return model.LibraryNode{}, ErrNotAFolder
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return model.LibraryNode{}, fmt.Errorf("marshal session: %w", err)
	}

	node := model.LibraryNode{
		ID:        "session-" + uuid.New().String(),
		Type:      model.NodeSession,
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO nodes (id, parent_id, node_type, name, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		node.ID, folderID, node.Type, node.Name, string(payload), node.CreatedAt,
	)
	if err != nil {
		return model.LibraryNode{}, err
	}
	return node, nil
}

// GetSession loads the saved snapshot stored in a session node.
func (l *Library) GetSession(ctx context.Context, id string) (*model.SavedSession, error) {
	var payload sql.NullString
	err := l.db.QueryRowContext(ctx,
		`SELECT payload FROM nodes WHERE id = ? AND node_type = ?`, id, model.NodeSession,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess model.SavedSession
	if err := json.Unmarshal([]byte(payload.String), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Rename changes a node's display name.
func (l *Library) Rename(ctx context.Context, id, name string) error {
	res, err := l.db.ExecContext(ctx, `UPDATE nodes SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a node and, for folders, everything beneath it.
func (l *Library) Delete(ctx context.Context, id string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Recursive CTE collects the node plus all descendants.
	res, err := tx.ExecContext(ctx, `
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM nodes WHERE id = ?
			UNION ALL
			SELECT n.id FROM nodes n JOIN subtree s ON n.parent_id = s.id
		)
		DELETE FROM nodes WHERE id IN (SELECT id FROM subtree)`, id)
	if err != nil {
		return fmt.Errorf("delete subtree: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// Tree returns the full library as nested nodes, newest first at every
// level. Session payloads are not inlined; load them via GetSession.
func (l *Library) Tree(ctx context.Context) ([]model.LibraryNode, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, parent_id, node_type, name, created_at FROM nodes ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type flatNode struct {
		node     model.LibraryNode
		parentID sql.NullString
	}
	var flat []flatNode
	for rows.Next() {
		var fn flatNode
		if err := rows.Scan(&fn.node.ID, &fn.parentID, &fn.node.Type, &fn.node.Name, &fn.node.CreatedAt); err != nil {
			return nil, err
		}
		flat = append(flat, fn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	children := make(map[string][]model.LibraryNode)
	var rootIDs []string
	byID := make(map[string]model.LibraryNode, len(flat))
	for _, fn := range flat {
		byID[fn.node.ID] = fn.node
		if fn.parentID.Valid {
			children[fn.parentID.String] = append(children[fn.parentID.String], fn.node)
		} else {
			rootIDs = append(rootIDs, fn.node.ID)
		}
	}

	var build func(n model.LibraryNode) model.LibraryNode
	build = func(n model.LibraryNode) model.LibraryNode {
		for _, child := range children[n.ID] {
			n.Children = append(n.Children, build(child))
		}
		return n
	}

	roots := make([]model.LibraryNode, 0, len(rootIDs))
	for _, id := range rootIDs {
		roots = append(roots, build(byID[id]))
	}
	return roots, nil
}
