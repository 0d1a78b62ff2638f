// Package sqlite provides configuration stores persisted in a single SQLite
// database. Every record is stored as a JSON document keyed by collection
// and id.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agencyhub/core"
)

// DB is an open configuration database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs the schema migration.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open config db: %w", err)
	}
	// WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate config db: %w", err)
	}
	return &DB{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			owner      TEXT NOT NULL DEFAULT '',
			title      TEXT NOT NULL DEFAULT '',
			body       TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)
	`); err != nil {
		return err
	}
	_, err := db.Exec("CREATE INDEX IF NOT EXISTS documents_owner ON documents (collection, owner)")
	return err
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Agencies returns the agency configuration store.
func (d *DB) Agencies() *AgencyStore {
	return &AgencyStore{docs: documents[core.AgencyConfig]{db: d.db, collection: "agency"}}
}

// Tools returns the tool store.
func (d *DB) Tools() *ToolStore {
	return &ToolStore{docs: documents[core.ToolConfig]{db: d.db, collection: "tool"}}
}

// Skills returns the skill store.
func (d *DB) Skills() *SkillStore {
	return &SkillStore{docs: documents[core.SkillConfig]{db: d.db, collection: "skill"}}
}

// Sessions returns the session store.
func (d *DB) Sessions() *SessionStore {
	return &SessionStore{docs: documents[core.SessionConfig]{db: d.db, collection: "session"}}
}

// documents is the typed view of one collection.
type documents[T any] struct {
	db         *sql.DB
	collection string
}

func (d documents[T]) notFound(id string) error {
	return fmt.Errorf("%s %s: %w", d.collection, id, core.ErrConfigurationNotFound)
}

func (d documents[T]) load(ctx context.Context, id string) (*T, error) {
	var body string
	err := d.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND id = ?", d.collection, id,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, d.notFound(id)
		}
		return nil, err
	}

	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s %s: %w", d.collection, id, err)
	}
	return &v, nil
}

// meta holds the indexed columns stored next to a document body.
type meta struct {
	owner string
	title string
}

func (d documents[T]) save(ctx context.Context, id string, m meta, v *T) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", d.collection, id, err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, owner, title, body, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			owner = excluded.owner, title = excluded.title, body = excluded.body, updated_at = excluded.updated_at`,
		d.collection, id, m.owner, m.title, string(body), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (d documents[T]) loadByTitle(ctx context.Context, title string) (*T, error) {
	var id string
	err := d.db.QueryRowContext(ctx,
		"SELECT id FROM documents WHERE collection = ? AND title = ? ORDER BY id LIMIT 1", d.collection, title,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s titled %q: %w", d.collection, title, core.ErrConfigurationNotFound)
		}
		return nil, err
	}
	return d.load(ctx, id)
}

func (d documents[T]) listByOwner(ctx context.Context, owner string) ([]*T, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, body FROM documents WHERE collection = ? AND owner = ? ORDER BY id", d.collection, owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s %s: %w", d.collection, id, err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (d documents[T]) delete(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", d.collection, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return d.notFound(id)
	}
	return nil
}
