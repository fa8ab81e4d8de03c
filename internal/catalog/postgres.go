package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/af-corp/queryrouter/internal/types"
)

// Querier is the subset of pgxpool.Pool used by PostgresSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads collection metadata written by the ingestion pipeline.
type PostgresSource struct {
	db Querier
}

func NewPostgresSource(db Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Name() string { return "postgres" }

const listCollectionsSQL = `
	SELECT name, category, source_type, tags, COALESCE(description, ''), document_count
	FROM collections
	WHERE deleted_at IS NULL
	ORDER BY name`

func (s *PostgresSource) Load(ctx context.Context) ([]types.Collection, error) {
	rows, err := s.db.Query(ctx, listCollectionsSQL)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var out []types.Collection
	for rows.Next() {
		var c types.Collection
		if err := rows.Scan(&c.Name, &c.Category, &c.SourceType, &c.Tags, &c.Description, &c.DocumentCount); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return out, nil
}
