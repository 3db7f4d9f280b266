package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/api/middleware"
	"github.com/syntaxsurfers/smartcity/internal/api/models"
	"github.com/syntaxsurfers/smartcity/internal/api/response"
	"github.com/syntaxsurfers/smartcity/internal/user"
)

// UserStore is the user record service. *user.Service satisfies this interface.
type UserStore interface {
	Get(ctx context.Context, userID string) (*user.Profile, error)
	PreferredPlace(ctx context.Context, userID string) (string, error)
	SetPreferredPlace(ctx context.Context, userID, place string) (*user.Profile, error)
	SubmitFeedback(ctx context.Context, userID string, in user.FeedbackInput) (*user.Feedback, error)
	Feedback(ctx context.Context, userID string) (*user.Feedback, error)
}

// MeHandler handles the authenticated user's record.
type MeHandler struct {
	users    UserStore
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(users UserStore, logger zerolog.Logger) *MeHandler {
	return &MeHandler{
		users:    users,
		validate: validator.New(),
		logger:   logger,
	}
}

// GetMe handles GET /v1/me - the stored record with the latest feedback.
func (h *MeHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	p, err := h.users.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	me := toMe(p)
	f, err := h.users.Feedback(r.Context(), userID)
	switch {
	case err == nil:
		me.Feedback = toFeedback(f)
	case !errors.Is(err, user.ErrFeedbackNotFound):
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to read feedback")
	}

	response.JSON(w, r, http.StatusOK, me)
}

// GetPlace handles GET /v1/me/place - the preferred place or the default.
func (h *MeHandler) GetPlace(w http.ResponseWriter, r *http.Request) {
	place, err := h.users.PreferredPlace(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.Place{Place: place})
}

// UpdatePlace handles PUT /v1/me/place - set the preferred place.
func (h *MeHandler) UpdatePlace(w http.ResponseWriter, r *http.Request) {
	var input models.PlaceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	input.Place = strings.TrimSpace(input.Place)
	if err := h.validate.Struct(input); err != nil {
		response.BadRequest(w, r, "validation error", fieldErrors(err))
		return
	}

	p, err := h.users.SetPreferredPlace(r.Context(), middleware.GetUserID(r.Context()), input.Place)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toMe(p))
}

// GetFeedback handles GET /v1/me/feedback - the latest submission.
func (h *MeHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	f, err := h.users.Feedback(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toFeedback(f))
}

// SubmitFeedback handles PUT /v1/me/feedback - replace the latest submission.
func (h *MeHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var input models.FeedbackInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	f, err := h.users.SubmitFeedback(r.Context(), middleware.GetUserID(r.Context()), user.FeedbackInput{
		CongestionLevel:  input.CongestionLevel,
		AccidentReported: input.AccidentReported,
		Comments:         input.Comments,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toFeedback(f))
}

func (h *MeHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *user.PersistenceError
	switch {
	case errors.Is(err, user.ErrMissingID):
		response.Unauthorized(w, r, "authentication required")
	case errors.Is(err, user.ErrUserNotFound):
		response.NotFound(w, r, "user not found")
	case errors.Is(err, user.ErrFeedbackNotFound):
		response.NotFound(w, r, "no feedback submitted")
	case errors.Is(err, user.ErrInvalidFeedback):
		response.BadRequest(w, r, "validation error", fieldErrors(err))
	case errors.Is(err, user.ErrInvalidPlace):
		response.BadRequest(w, r, "validation error", []models.FieldError{
			{Field: "place", Message: "must not be empty", Code: "required"},
		})
	case errors.As(err, &perr):
		h.logger.Error().Err(err).Str("op", perr.Op).Str("user_id", perr.ID).Msg("user store failure")
		response.ServiceUnavailable(w, r, "user store unavailable")
	default:
		h.logger.Error().Err(err).Msg("user request failed")
		response.InternalError(w, r, "internal error")
	}
}

// fieldErrors converts validator failures into problem field errors.
func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]models.FieldError, len(verrs))
	for i, fe := range verrs {
		out[i] = models.FieldError{
			Field:   lowerFirst(fe.Field()),
			Message: "failed " + fe.Tag() + " validation",
			Code:    fe.Tag(),
		}
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func toMe(p *user.Profile) models.Me {
	return models.Me{
		UserID:      p.ID,
		Email:       p.Email,
		AvatarURL:   p.AvatarURL,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Place:       p.PreferredPlace,
		CreatedAt:   models.Timestamp(p.CreatedAt),
		LastUpdated: models.Timestamp(p.LastUpdated),
	}
}

func toFeedback(f *user.Feedback) *models.Feedback {
	return &models.Feedback{
		CongestionLevel:  string(f.CongestionLevel),
		AccidentReported: f.AccidentReported,
		Comments:         f.Comments,
		Timestamp:        f.Timestamp,
	}
}
