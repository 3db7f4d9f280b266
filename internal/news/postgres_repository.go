package news

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL news repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save stores articles in one batch, skipping IDs that already exist.
func (r *PostgresRepository) Save(ctx context.Context, articles []Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO news_articles (
			id, title, description, content, url, source, keyword, published_at, stored_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, a := range articles {
		batch.Queue(query,
			a.ID,
			a.Title,
			a.Description,
			a.Content,
			a.URL,
			a.Source,
			a.Keyword,
			a.PublishedAt,
			a.StoredAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	stored := 0
	for range articles {
		tag, err := results.Exec()
		if err != nil {
			return stored, fmt.Errorf("insert article: %w", err)
		}
		stored += int(tag.RowsAffected())
	}
	return stored, nil
}

// List returns up to limit articles, newest first.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]Article, error) {
	query := `
		SELECT id, title, description, content, url, source, keyword, published_at, stored_at
		FROM news_articles
		ORDER BY published_at DESC, stored_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(
			&a.ID,
			&a.Title,
			&a.Description,
			&a.Content,
			&a.URL,
			&a.Source,
			&a.Keyword,
			&a.PublishedAt,
			&a.StoredAt,
		); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
