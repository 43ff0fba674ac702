package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry is a durable Registry backed by PostgreSQL. Version
// assignment happens inside a single INSERT so concurrent registrations of
// different artifact ids never contend beyond row-level locks, and the
// unique constraint makes double-writes of the same version impossible.
type PostgresRegistry struct {
	db *pgxpool.Pool
}

// NewPostgresRegistry creates a registry on an existing connection pool.
func NewPostgresRegistry(db *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

const artifactSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
	seq         BIGSERIAL PRIMARY KEY,
	project_id  TEXT        NOT NULL,
	artifact_id TEXT        NOT NULL,
	version     INTEGER     NOT NULL,
	path        TEXT        NOT NULL,
	type_tag    TEXT        NOT NULL,
	produced_by TEXT        NOT NULL,
	depends_on  TEXT[]      NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (project_id, artifact_id, version)
);
CREATE INDEX IF NOT EXISTS artifacts_project_idx ON artifacts (project_id, seq);
`

// EnsureSchema creates the artifacts table if it does not exist.
func (r *PostgresRegistry) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, artifactSchema); err != nil {
		return fmt.Errorf("ensuring artifact schema: %w", err)
	}
	return nil
}

// Register implements Registry.
func (r *PostgresRegistry) Register(ctx context.Context, projectID string, spec Spec) (int, error) {
	var version int
	err := r.db.QueryRow(ctx, `
		INSERT INTO artifacts (project_id, artifact_id, version, path, type_tag, produced_by, depends_on)
		VALUES ($1, $2,
			COALESCE((SELECT MAX(version) FROM artifacts WHERE project_id = $1 AND artifact_id = $2), 0) + 1,
			$3, $4, $5, $6)
		RETURNING version`,
		projectID, spec.ID, spec.Path, spec.TypeTag, spec.ProducedBy, spec.DependsOn,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("registering artifact %q: %w", spec.ID, err)
	}
	return version, nil
}

// Get implements Registry.
func (r *PostgresRegistry) Get(ctx context.Context, projectID, artifactID string) (*Artifact, error) {
	row := r.db.QueryRow(ctx, `
		SELECT project_id, artifact_id, version, path, type_tag, produced_by, depends_on, created_at
		FROM artifacts
		WHERE project_id = $1 AND artifact_id = $2
		ORDER BY version DESC
		LIMIT 1`,
		projectID, artifactID)
	return scanArtifact(row)
}

// GetVersion implements Registry.
func (r *PostgresRegistry) GetVersion(ctx context.Context, projectID, artifactID string, version int) (*Artifact, error) {
	row := r.db.QueryRow(ctx, `
		SELECT project_id, artifact_id, version, path, type_tag, produced_by, depends_on, created_at
		FROM artifacts
		WHERE project_id = $1 AND artifact_id = $2 AND version = $3`,
		projectID, artifactID, version)
	return scanArtifact(row)
}

// ListByProject implements Registry.
func (r *PostgresRegistry) ListByProject(ctx context.Context, projectID string) ([]*Artifact, error) {
	rows, err := r.db.Query(ctx, `
		SELECT project_id, artifact_id, version, path, type_tag, produced_by, depends_on, created_at
		FROM artifacts
		WHERE project_id = $1
		ORDER BY seq`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanArtifact(row pgx.Row) (*Artifact, error) {
	var a Artifact
	err := row.Scan(&a.ProjectID, &a.ID, &a.Version, &a.Path, &a.TypeTag, &a.ProducedBy, &a.DependsOn, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
