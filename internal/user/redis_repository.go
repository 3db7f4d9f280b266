package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis hash fields of a user record.
const (
	fieldID          = "id"
	fieldEmail       = "email"
	fieldAvatar      = "avatar"
	fieldFirstName   = "firstName"
	fieldLastName    = "lastName"
	fieldPlace       = "place"
	fieldCreatedAt   = "createdAt"
	fieldLastUpdated = "lastUpdated"
)

// RedisRepository stores each user as the hash users:{id} and the feedback as a
// JSON string at users:{id}:feedback.
type RedisRepository struct {
	client redis.UniversalClient
}

// NewRedisRepository creates a new Redis user repository.
func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

func userKey(id string) string     { return "users:" + id }
func feedbackKey(id string) string { return "users:" + id + ":feedback" }

// Get retrieves a user by ID.
func (r *RedisRepository) Get(ctx context.Context, id string) (*Profile, error) {
	fields, err := r.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", userKey(id), err)
	}
	if len(fields) == 0 {
		return nil, ErrUserNotFound
	}

	p := &Profile{
		ID:             fields[fieldID],
		Email:          fields[fieldEmail],
		AvatarURL:      fields[fieldAvatar],
		FirstName:      fields[fieldFirstName],
		LastName:       fields[fieldLastName],
		PreferredPlace: fields[fieldPlace],
	}
	if p.ID == "" {
		p.ID = id
	}
	if p.CreatedAt, err = parseTime(fields[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("user %s: %s: %w", id, fieldCreatedAt, err)
	}
	if p.LastUpdated, err = parseTime(fields[fieldLastUpdated]); err != nil {
		return nil, fmt.Errorf("user %s: %s: %w", id, fieldLastUpdated, err)
	}
	return p, nil
}

// Put creates or replaces a user record.
func (r *RedisRepository) Put(ctx context.Context, p *Profile) error {
	err := r.client.HSet(ctx, userKey(p.ID), map[string]any{
		fieldID:          p.ID,
		fieldEmail:       p.Email,
		fieldAvatar:      p.AvatarURL,
		fieldFirstName:   p.FirstName,
		fieldLastName:    p.LastName,
		fieldPlace:       p.PreferredPlace,
		fieldCreatedAt:   formatTime(p.CreatedAt),
		fieldLastUpdated: formatTime(p.LastUpdated),
	}).Err()
	if err != nil {
		return fmt.Errorf("hset %s: %w", userKey(p.ID), err)
	}
	return nil
}

// GetFeedback retrieves the latest feedback for a user.
func (r *RedisRepository) GetFeedback(ctx context.Context, id string) (*Feedback, error) {
	raw, err := r.client.Get(ctx, feedbackKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrFeedbackNotFound
		}
		return nil, fmt.Errorf("get %s: %w", feedbackKey(id), err)
	}

	var f Feedback
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", feedbackKey(id), err)
	}
	return &f, nil
}

// PutFeedback replaces the feedback for a user.
func (r *RedisRepository) PutFeedback(ctx context.Context, id string, f *Feedback) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	if err := r.client.Set(ctx, feedbackKey(id), raw, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", feedbackKey(id), err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
