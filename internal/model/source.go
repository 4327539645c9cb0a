// internal/model/source.go
package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "loan-sanction/internal/common/errors"
	"loan-sanction/pkg/artifact"
)

// Source fetches the artifact the engine loads at startup.
type Source interface {
	Fetch(ctx context.Context) (*artifact.Artifact, error)
	String() string
}

// FileSource reads an artifact from the local filesystem.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Fetch(ctx context.Context) (*artifact.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := artifact.Load(s.Path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.Path, err)
	}
	return a, nil
}

func (s *FileSource) String() string {
	return "file:" + s.Path
}

const (
	latestArtifactQuery = `SELECT version, encoding_version, artifact FROM model_artifacts WHERE name = $1 ORDER BY created_at DESC LIMIT 1`
	pinnedArtifactQuery = `SELECT version, encoding_version, artifact FROM model_artifacts WHERE name = $1 AND version = $2`
	insertArtifactQuery = `INSERT INTO model_artifacts (name, version, encoding_version, artifact, created_at) VALUES ($1, $2, $3, $4, NOW())`
)

// PostgresSource reads artifacts from the model_artifacts registry table. The newest
// row for Name wins unless Version pins one.
type PostgresSource struct {
	db      *sql.DB
	name    string
	version string
}

func NewPostgresSource(db *sql.DB, name, version string) *PostgresSource {
	return &PostgresSource{db: db, name: name, version: version}
}

func (s *PostgresSource) Fetch(ctx context.Context) (*artifact.Artifact, error) {
	var row *sql.Row
	if s.version != "" {
		row = s.db.QueryRowContext(ctx, pinnedArtifactQuery, s.name, s.version)
	} else {
		row = s.db.QueryRowContext(ctx, latestArtifactQuery, s.name)
	}

	var version, encoding string
	var doc []byte
	if err := row.Scan(&version, &encoding, &doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewResourceNotFoundError("model_artifacts", fmt.Sprintf("no artifact for %s", s))
		}
		return nil, apperrors.NewExternalServiceError("postgres", err)
	}

	a, err := artifact.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("artifact %s@%s: %w", s.name, version, err)
	}
	if a.Version != version || a.EncodingVersion != encoding {
		return nil, fmt.Errorf("artifact %s@%s: row columns disagree with document (%s, %s)", s.name, version, a.Version, a.EncodingVersion)
	}
	return a, nil
}

func (s *PostgresSource) String() string {
	if s.version != "" {
		return fmt.Sprintf("postgres:%s@%s", s.name, s.version)
	}
	return fmt.Sprintf("postgres:%s@latest", s.name)
}

// Publish stores a validated artifact as a new registry row.
func Publish(ctx context.Context, db *sql.DB, a *artifact.Artifact, doc []byte) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, insertArtifactQuery, a.Name, a.Version, a.EncodingVersion, doc); err != nil {
		return apperrors.NewExternalServiceError("postgres", err)
	}
	return nil
}
