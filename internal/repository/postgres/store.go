package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/freeeve/terrainkit/internal/repository"
)

// ArtifactRepo stores analysis artifacts in the map_analysis table.
type ArtifactRepo struct {
	db *sql.DB
}

func NewArtifactRepo(db *sql.DB) *ArtifactRepo {
	return &ArtifactRepo{db: db}
}

func (r *ArtifactRepo) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return repository.ErrEmptyKey
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO map_analysis (key, kind, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		key, kindOf(key), data)
	if err != nil {
		return fmt.Errorf("save artifact %s: %w", key, err)
	}
	return nil
}

func (r *ArtifactRepo) Load(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, repository.ErrEmptyKey
	}
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM map_analysis WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", key, err)
	}
	return data, nil
}

func (r *ArtifactRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM map_analysis WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete artifact %s: %w", key, err)
	}
	return nil
}

// Keys returns the keys of one artifact kind, oldest first.
func (r *ArtifactRepo) Keys(ctx context.Context, kind string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key FROM map_analysis WHERE kind = $1 ORDER BY updated_at, key`, kind)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan artifact key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func kindOf(key string) string {
	kind, _, _ := strings.Cut(key, ":")
	return kind
}

var _ repository.Store = (*ArtifactRepo)(nil)
