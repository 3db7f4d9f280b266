package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/api/response"
	"github.com/syntaxsurfers/smartcity/internal/identity"
)

// Webhook response bodies. The identity provider only looks at the status code.
const (
	webhookMissingHeaders = "Error occured -- no svix headers"
	webhookFailed         = "Error occured"
	webhookProcessed      = "Webhook processed successfully"
)

// maxWebhookBody bounds the payload read from the identity provider.
const maxWebhookBody = 1 << 20

// EventProcessor verifies and applies identity webhook deliveries.
// *identity.Processor satisfies this interface.
type EventProcessor interface {
	Process(ctx context.Context, payload []byte, header http.Header) (*identity.Event, error)
}

// WebhookHandler handles identity provider webhooks.
type WebhookHandler struct {
	processor EventProcessor
	logger    zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(processor EventProcessor, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger,
	}
}

// Clerk handles POST /api/webhook/clerk. Bodies are plain text.
func (h *WebhookHandler) Clerk(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(identity.HeaderID) == "" ||
		r.Header.Get(identity.HeaderTimestamp) == "" ||
		r.Header.Get(identity.HeaderSignature) == "" {
		response.Text(w, r, http.StatusBadRequest, webhookMissingHeaders)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.Text(w, r, http.StatusBadRequest, webhookFailed)
		return
	}

	if _, err := h.processor.Process(r.Context(), payload, r.Header); err != nil {
		switch {
		case errors.Is(err, identity.ErrMissingHeaders):
			response.Text(w, r, http.StatusBadRequest, webhookMissingHeaders)
		case errors.Is(err, identity.ErrSignatureVerification):
			h.logger.Warn().Err(err).Msg("rejected webhook with bad signature")
			response.Text(w, r, http.StatusBadRequest, webhookFailed)
		case errors.Is(err, identity.ErrMalformedEvent):
			h.logger.Warn().Err(err).Msg("rejected malformed webhook event")
			response.Text(w, r, http.StatusBadRequest, webhookFailed)
		default:
			response.Text(w, r, http.StatusInternalServerError, webhookFailed)
		}
		return
	}

	response.Text(w, r, http.StatusOK, webhookProcessed)
}
