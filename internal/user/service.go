package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Service errors.
var (
	ErrMissingID       = errors.New("user id is required")
	ErrInvalidFeedback = errors.New("invalid feedback")
	ErrInvalidPlace    = errors.New("place is required")
)

// PersistenceError reports a failed read or write against the user store.
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("user store %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ServiceConfig holds configuration for the user service.
type ServiceConfig struct {
	Repository Repository
	// DefaultPlace is returned for users without a preferred place.
	DefaultPlace string
	Logger       zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service reconciles identity events and user settings with the store.
type Service struct {
	repo         Repository
	defaultPlace string
	logger       zerolog.Logger
	now          func() time.Time
	validate     *validator.Validate
}

// NewService creates a new user service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:         cfg.Repository,
		defaultPlace: cfg.DefaultPlace,
		logger:       cfg.Logger,
		now:          now,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Upsert reconciles an identity event with the stored record. A new record is
// written with CreatedAt = LastUpdated = now. An existing record is rewritten
// only when a field other than LastUpdated changes, and CreatedAt is always kept.
// It reports whether a write happened.
func (s *Service) Upsert(ctx context.Context, in Identity) (*Profile, bool, error) {
	if in.ID == "" {
		return nil, false, ErrMissingID
	}

	existing, err := s.repo.Get(ctx, in.ID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, false, &PersistenceError{Op: "read", ID: in.ID, Err: err}
	}

	now := s.now().UTC()

	if existing == nil {
		p := &Profile{
			ID:          in.ID,
			Email:       in.Email,
			AvatarURL:   in.AvatarURL,
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			CreatedAt:   now,
			LastUpdated: now,
		}
		if err := s.repo.Put(ctx, p); err != nil {
			return nil, false, &PersistenceError{Op: "write", ID: in.ID, Err: err}
		}
		s.logger.Info().Str("user_id", in.ID).Msg("user record created")
		return p, true, nil
	}

	candidate := &Profile{
		ID:             in.ID,
		Email:          in.Email,
		AvatarURL:      in.AvatarURL,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		PreferredPlace: existing.PreferredPlace,
		CreatedAt:      existing.CreatedAt,
		LastUpdated:    existing.LastUpdated,
	}
	if candidate.sameAs(existing) {
		s.logger.Debug().Str("user_id", in.ID).Msg("no changes detected for user")
		return existing, false, nil
	}

	candidate.LastUpdated = now
	if err := s.repo.Put(ctx, candidate); err != nil {
		return nil, false, &PersistenceError{Op: "write", ID: in.ID, Err: err}
	}
	s.logger.Info().Str("user_id", in.ID).Msg("user record updated")
	return candidate, true, nil
}

// Get returns the stored record. ErrUserNotFound is returned as is.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "read", ID: userID, Err: err}
	}
	return p, nil
}

// PreferredPlace returns the user's place or the default place.
func (s *Service) PreferredPlace(ctx context.Context, userID string) (string, error) {
	p, err := s.repo.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return s.defaultPlace, nil
	case err != nil:
		return "", &PersistenceError{Op: "read", ID: userID, Err: err}
	case p.PreferredPlace == "":
		return s.defaultPlace, nil
	default:
		return p.PreferredPlace, nil
	}
}

// SetPreferredPlace stores the user's place and refreshes LastUpdated.
func (s *Service) SetPreferredPlace(ctx context.Context, userID, place string) (*Profile, error) {
	if userID == "" {
		return nil, ErrMissingID
	}
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, ErrInvalidPlace
	}

	now := s.now().UTC()
	p, err := s.repo.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		p = &Profile{ID: userID, CreatedAt: now}
	case err != nil:
		return nil, &PersistenceError{Op: "read", ID: userID, Err: err}
	}

	p.PreferredPlace = place
	p.LastUpdated = now
	if err := s.repo.Put(ctx, p); err != nil {
		return nil, &PersistenceError{Op: "write", ID: userID, Err: err}
	}
	return p, nil
}

// SubmitFeedback validates and stores feedback, replacing any earlier submission.
func (s *Service) SubmitFeedback(ctx context.Context, userID string, in FeedbackInput) (*Feedback, error) {
	if userID == "" {
		return nil, ErrMissingID
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFeedback, err)
	}

	f := &Feedback{
		CongestionLevel:  CongestionLevel(in.CongestionLevel),
		AccidentReported: in.AccidentReported,
		Comments:         in.Comments,
		Timestamp:        s.now().UnixMilli(),
	}
	if err := s.repo.PutFeedback(ctx, userID, f); err != nil {
		return nil, &PersistenceError{Op: "write feedback", ID: userID, Err: err}
	}
	s.logger.Info().
		Str("user_id", userID).
		Str("congestion_level", in.CongestionLevel).
		Bool("accident_reported", in.AccidentReported).
		Msg("feedback submitted")
	return f, nil
}

// Feedback returns the user's latest feedback.
func (s *Service) Feedback(ctx context.Context, userID string) (*Feedback, error) {
	f, err := s.repo.GetFeedback(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrFeedbackNotFound) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "read feedback", ID: userID, Err: err}
	}
	return f, nil
}
