package news

import (
	"context"
	"slices"
	"sync"
)

// Repository persists articles.
type Repository interface {
	// Save stores articles, skipping IDs that already exist, and returns the
	// number of new articles.
	Save(ctx context.Context, articles []Article) (int, error)

	// List returns up to limit articles, newest first. A limit of zero or less
	// returns all articles.
	List(ctx context.Context, limit int) ([]Article, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for development and testing.
type InMemoryRepository struct {
	mu       sync.RWMutex
	articles map[string]Article
}

// NewInMemoryRepository creates a new in-memory news repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{articles: make(map[string]Article)}
}

// Save stores articles, skipping IDs that already exist.
func (r *InMemoryRepository) Save(_ context.Context, articles []Article) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := 0
	for _, a := range articles {
		if _, ok := r.articles[a.ID]; ok {
			continue
		}
		r.articles[a.ID] = a
		stored++
	}
	return stored, nil
}

// List returns up to limit articles, newest first.
func (r *InMemoryRepository) List(_ context.Context, limit int) ([]Article, error) {
	r.mu.RLock()
	out := make([]Article, 0, len(r.articles))
	for _, a := range r.articles {
		out = append(out, a)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Article) int {
		if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
			return c
		}
		return b.StoredAt.Compare(a.StoredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
