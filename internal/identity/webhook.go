// Package identity verifies and applies identity provider (Clerk) webhooks.
// Webhooks are delivered through Svix and signed with a shared secret.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/syntaxsurfers/smartcity/internal/user"
)

// Event types that carry a user profile.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
)

// Signature headers.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// Webhook errors.
var (
	ErrMissingHeaders        = errors.New("missing svix headers")
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	ErrMalformedEvent        = errors.New("malformed webhook event")
)

// Event is a Clerk webhook envelope.
type Event struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

// userData is the subset of a Clerk user object mirrored into the store.
type userData struct {
	ID             string `json:"id" validate:"required"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	ImageURL  string `json:"image_url"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Upserter reconciles an identity with the user store.
type Upserter interface {
	Upsert(ctx context.Context, in user.Identity) (*user.Profile, bool, error)
}

// Verifier checks Svix signatures.
type Verifier struct {
	wh *svix.Webhook
}

// NewVerifier creates a Verifier for a whsec_ secret.
func NewVerifier(secret string) (*Verifier, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("create webhook verifier: %w", err)
	}
	return &Verifier{wh: wh}, nil
}

// Verify checks the signature headers against payload.
func (v *Verifier) Verify(payload []byte, header http.Header) error {
	for _, h := range []string{HeaderID, HeaderTimestamp, HeaderSignature} {
		if header.Get(h) == "" {
			return ErrMissingHeaders
		}
	}
	if err := v.wh.Verify(payload, header); err != nil {
		return fmt.Errorf("%w: %w", ErrSignatureVerification, err)
	}
	return nil
}

// ProcessorConfig holds configuration for the webhook processor.
type ProcessorConfig struct {
	Verifier *Verifier
	Users    Upserter
	Logger   zerolog.Logger
}

// Processor verifies webhook deliveries and applies user events.
type Processor struct {
	verifier *Verifier
	users    Upserter
	logger   zerolog.Logger
	validate *validator.Validate
}

// NewProcessor creates a new Processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		verifier: cfg.Verifier,
		users:    cfg.Users,
		logger:   cfg.Logger,
		validate: validator.New(),
	}
}

// Process verifies the delivery and, for user.created and user.updated, upserts
// the user record. Other event types are accepted and ignored.
func (p *Processor) Process(ctx context.Context, payload []byte, header http.Header) (*Event, error) {
	if err := p.verifier.Verify(payload, header); err != nil {
		return nil, err
	}

	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	log := p.logger.With().
		Str("event_type", evt.Type).
		Str("svix_id", header.Get(HeaderID)).
		Logger()

	if evt.Type != EventUserCreated && evt.Type != EventUserUpdated {
		log.Debug().Msg("ignoring webhook event")
		return &evt, nil
	}

	in, err := p.identity(evt.Data)
	if err != nil {
		return nil, err
	}

	_, written, err := p.users.Upsert(ctx, in)
	if err != nil {
		log.Error().Err(err).Str("user_id", in.ID).Msg("failed to upsert user from webhook")
		return nil, err
	}

	log.Info().Str("user_id", in.ID).Bool("written", written).Msg("webhook processed")
	return &evt, nil
}

func (p *Processor) identity(raw json.RawMessage) (user.Identity, error) {
	var d userData
	if err := json.Unmarshal(raw, &d); err != nil {
		return user.Identity{}, fmt.Errorf("%w: data: %w", ErrMalformedEvent, err)
	}
	if err := p.validate.Struct(d); err != nil {
		return user.Identity{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	in := user.Identity{
		ID:        d.ID,
		AvatarURL: d.ImageURL,
		FirstName: d.FirstName,
		LastName:  d.LastName,
	}
	if len(d.EmailAddresses) > 0 {
		in.Email = d.EmailAddresses[0].EmailAddress
	}
	return in, nil
}
