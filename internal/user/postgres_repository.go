package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
// created_at is never modified once a row exists.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL user repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves a user by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Profile, error) {
	query := `
		SELECT id, email, avatar_url, first_name, last_name, preferred_place, created_at, last_updated
		FROM user_records
		WHERE id = $1
	`

	var p Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Email,
		&p.AvatarURL,
		&p.FirstName,
		&p.LastName,
		&p.PreferredPlace,
		&p.CreatedAt,
		&p.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Put creates or replaces a user record.
func (r *PostgresRepository) Put(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO user_records (
			id, email, avatar_url, first_name, last_name, preferred_place, created_at, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			preferred_place = EXCLUDED.preferred_place,
			last_updated = EXCLUDED.last_updated
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Email,
		p.AvatarURL,
		p.FirstName,
		p.LastName,
		p.PreferredPlace,
		p.CreatedAt,
		p.LastUpdated,
	)
	return err
}

// GetFeedback retrieves the latest feedback for a user.
func (r *PostgresRepository) GetFeedback(ctx context.Context, id string) (*Feedback, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT feedback FROM user_feedback WHERE user_id = $1`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFeedbackNotFound
		}
		return nil, err
	}

	var f Feedback
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}
	return &f, nil
}

// PutFeedback replaces the feedback for a user. Feedback lives in its own
// table, so it never creates a user record.
func (r *PostgresRepository) PutFeedback(ctx context.Context, id string, f *Feedback) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}

	query := `
		INSERT INTO user_feedback (user_id, feedback, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			feedback = EXCLUDED.feedback,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query, id, raw)
	return err
}
