package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a durable Store backed by PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a store on an existing connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const projectSchema = `
CREATE TABLE IF NOT EXISTS projects (
	id                TEXT        PRIMARY KEY,
	type              TEXT        NOT NULL,
	title             TEXT        NOT NULL,
	home_workspace_id TEXT        NOT NULL,
	flow_id           TEXT        NOT NULL,
	state             TEXT        NOT NULL,
	archived          BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the projects table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, projectSchema); err != nil {
		return fmt.Errorf("ensuring project schema: %w", err)
	}
	return nil
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, p *Project) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO projects (id, type, title, home_workspace_id, flow_id, state, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Type, p.Title, p.HomeWorkspaceID, p.FlowID, string(p.State), p.Archived, p.CreatedAt, p.UpdatedAt)
	return err
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, type, title, home_workspace_id, flow_id, state, archived, created_at, updated_at
		FROM projects WHERE id = $1`, id)
	return scanProject(row)
}

// Update implements Store.
func (s *PostgresStore) Update(ctx context.Context, p *Project) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE projects
		SET type = $2, title = $3, home_workspace_id = $4, flow_id = $5, state = $6, archived = $7, updated_at = $8
		WHERE id = $1`,
		p.ID, p.Type, p.Title, p.HomeWorkspaceID, p.FlowID, string(p.State), p.Archived, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, type, title, home_workspace_id, flow_id, state, archived, created_at, updated_at
		FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	var state string
	err := row.Scan(&p.ID, &p.Type, &p.Title, &p.HomeWorkspaceID, &p.FlowID, &state, &p.Archived, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.State = State(state)
	return &p, nil
}
