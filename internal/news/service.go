package news

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrAllKeywordsFailed is returned when no keyword could be fetched.
var ErrAllKeywordsFailed = errors.New("news fetch failed for every keyword")

// Searcher looks up articles for a keyword. *Client satisfies this interface.
type Searcher interface {
	Search(ctx context.Context, keyword string, day time.Time) ([]Article, error)
}

// ServiceConfig holds configuration for the news service.
type ServiceConfig struct {
	Searcher   Searcher
	Repository Repository
	Classifier Classifier
	Logger     zerolog.Logger
	// Keywords defaults to Keywords.
	Keywords []string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service fetches, stores and classifies news.
type Service struct {
	searcher   Searcher
	repo       Repository
	classifier Classifier
	logger     zerolog.Logger
	keywords   []string
	now        func() time.Time
}

// NewService creates a new news service.
func NewService(cfg ServiceConfig) *Service {
	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = Keywords
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = NewKeywordClassifier(nil, nil)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		searcher:   cfg.Searcher,
		repo:       cfg.Repository,
		classifier: classifier,
		logger:     cfg.Logger,
		keywords:   keywords,
		now:        now,
	}
}

// FetchAndStore fetches yesterday's articles for every keyword and stores them.
// A failing keyword is logged and skipped; the run only fails when every
// keyword failed or the store rejected the batch.
func (s *Service) FetchAndStore(ctx context.Context) (FetchResult, error) {
	now := s.now().UTC()
	day := now.AddDate(0, 0, -1)

	var result FetchResult
	var articles []Article
	for _, keyword := range s.keywords {
		found, err := s.searcher.Search(ctx, keyword, day)
		if err != nil {
			s.logger.Error().Err(err).Str("keyword", keyword).Msg("failed to fetch news")
			result.Failed = append(result.Failed, keyword)
			continue
		}
		for i := range found {
			found[i].StoredAt = now
			if found[i].PublishedAt.IsZero() {
				found[i].PublishedAt = day
			}
		}
		articles = append(articles, found...)
	}
	result.Fetched = len(articles)

	if len(result.Failed) == len(s.keywords) {
		return result, ErrAllKeywordsFailed
	}

	stored, err := s.repo.Save(ctx, articles)
	result.Stored = stored
	if err != nil {
		return result, fmt.Errorf("store articles: %w", err)
	}

	s.logger.Info().
		Int("fetched", result.Fetched).
		Int("stored", result.Stored).
		Strs("failed_keywords", result.Failed).
		Msg("news fetched")
	return result, nil
}

// Alerts returns up to limit stored articles with their severity, newest first.
func (s *Service) Alerts(ctx context.Context, limit int) ([]Alert, error) {
	articles, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	alerts := make([]Alert, len(articles))
	for i, a := range articles {
		alerts[i] = Alert{Article: a, Severity: s.classifier.Classify(a.Text())}
	}
	return alerts, nil
}
