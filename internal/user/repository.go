package user

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrFeedbackNotFound = errors.New("feedback not found")
)

// Repository stores user profiles and each user's latest traffic feedback.
// Put and PutFeedback replace the stored record whole. Feedback is kept apart
// from the profile: storing it never creates a profile.
type Repository interface {
	Get(ctx context.Context, id string) (*Profile, error)
	Put(ctx context.Context, p *Profile) error
	GetFeedback(ctx context.Context, id string) (*Feedback, error)
	PutFeedback(ctx context.Context, id string, f *Feedback) error
}

// InMemoryRepository keeps records in process memory. It backs the memory
// store backend and the tests; nothing survives a restart.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	latest   map[string]Feedback
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		profiles: map[string]Profile{},
		latest:   map[string]Feedback{},
	}
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (*Profile, error) {
	return lookup(&r.mu, r.profiles, id, ErrUserNotFound)
}

func (r *InMemoryRepository) Put(_ context.Context, p *Profile) error {
	r.mu.Lock()
	r.profiles[p.ID] = *p
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) GetFeedback(_ context.Context, id string) (*Feedback, error) {
	return lookup(&r.mu, r.latest, id, ErrFeedbackNotFound)
}

func (r *InMemoryRepository) PutFeedback(_ context.Context, id string, f *Feedback) error {
	r.mu.Lock()
	r.latest[id] = *f
	r.mu.Unlock()
	return nil
}

// lookup returns a copy so callers cannot mutate stored records.
func lookup[T any](mu *sync.RWMutex, records map[string]T, id string, notFound error) (*T, error) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := records[id]
	if !ok {
		return nil, notFound
	}
	return &v, nil
}
