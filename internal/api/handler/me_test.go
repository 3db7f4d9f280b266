package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntaxsurfers/smartcity/internal/api/handler"
	"github.com/syntaxsurfers/smartcity/internal/api/middleware"
	"github.com/syntaxsurfers/smartcity/internal/api/models"
	"github.com/syntaxsurfers/smartcity/internal/user"
)

var meNow = time.Date(2024, time.March, 6, 8, 30, 0, 0, time.UTC)

func newMeHandler(t *testing.T, repo user.Repository) (*handler.MeHandler, *user.Service) {
	t.Helper()

	svc := user.NewService(user.ServiceConfig{
		Repository:   repo,
		DefaultPlace: "Palghar",
		Logger:       zerolog.Nop(),
		Now:          func() time.Time { return meNow },
	})
	return handler.NewMeHandler(svc, zerolog.Nop()), svc
}

func asUser(r *http.Request, id string) *http.Request {
	return r.WithContext(middleware.WithUserID(r.Context(), id))
}

func TestMeHandler_GetMe(t *testing.T) {
	h, svc := newMeHandler(t, user.NewInMemoryRepository())
	_, _, err := svc.Upsert(context.Background(), user.Identity{ID: "user_1", Email: "a@example.org", FirstName: "Ada"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.GetMe(rec, asUser(httptest.NewRequest(http.MethodGet, "/v1/me", http.NoBody), "user_1"))

	require.Equal(t, http.StatusOK, rec.Code)
	var me models.Me
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, "user_1", me.UserID)
	assert.Equal(t, "a@example.org", me.Email)
	assert.True(t, meNow.Equal(time.Time(me.CreatedAt)))
	assert.Nil(t, me.Feedback)
}

func TestMeHandler_GetMe_NotFound(t *testing.T) {
	h, _ := newMeHandler(t, user.NewInMemoryRepository())

	rec := httptest.NewRecorder()
	h.GetMe(rec, asUser(httptest.NewRequest(http.MethodGet, "/v1/me", http.NoBody), "user_missing"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMeHandler_Place(t *testing.T) {
	h, _ := newMeHandler(t, user.NewInMemoryRepository())

	rec := httptest.NewRecorder()
	h.GetPlace(rec, asUser(httptest.NewRequest(http.MethodGet, "/v1/me/place", http.NoBody), "user_1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"place":"Palghar"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/me/place", strings.NewReader(`{"place":"  Tokyo "}`))
	h.UpdatePlace(rec, asUser(req, "user_1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.GetPlace(rec, asUser(httptest.NewRequest(http.MethodGet, "/v1/me/place", http.NoBody), "user_1"))
	assert.JSONEq(t, `{"place":"Tokyo"}`, rec.Body.String())
}

func TestMeHandler_UpdatePlace_Invalid(t *testing.T) {
	h, _ := newMeHandler(t, user.NewInMemoryRepository())

	tests := map[string]string{
		"not json":  `{`,
		"empty":     `{"place":"   "}`,
		"too long":  `{"place":"` + strings.Repeat("x", 101) + `"}`,
		"no fields": `{}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/v1/me/place", strings.NewReader(body))
			h.UpdatePlace(rec, asUser(req, "user_1"))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMeHandler_FeedbackOverwrites(t *testing.T) {
	h, _ := newMeHandler(t, user.NewInMemoryRepository())

	for _, body := range []string{
		`{"congestionLevel":"high","accidentReported":true,"comments":"jam on the bridge"}`,
		`{"congestionLevel":"low","accidentReported":false,"comments":""}`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/v1/me/feedback", strings.NewReader(body))
		h.SubmitFeedback(rec, asUser(req, "user_1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.GetFeedback(rec, asUser(httptest.NewRequest(http.MethodGet, "/v1/me/feedback", http.NoBody), "user_1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var f models.Feedback
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&f))
	assert.Equal(t, "low", f.CongestionLevel)
	assert.False(t, f.AccidentReported)
	assert.Equal(t, meNow.UnixMilli(), f.Timestamp)
}

func TestMeHandler_FeedbackValidation(t *testing.T) {
	h, _ := newMeHandler(t, user.NewInMemoryRepository())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/me/feedback", strings.NewReader(`{"congestionLevel":"gridlock"}`))
	h.SubmitFeedback(rec, asUser(req, "user_1"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "congestionLevel", problem.Errors[0].Field)
	assert.Equal(t, "oneof", problem.Errors[0].Code)
}

func TestMeHandler_FeedbackNotFound(t *testing.T) {
	h, _ := newMeHandler(t, user.NewInMemoryRepository())

	rec := httptest.NewRecorder()
	h.GetFeedback(rec, asUser(httptest.NewRequest(http.MethodGet, "/v1/me/feedback", http.NoBody), "user_1"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMeHandler_StoreFailure(t *testing.T) {
	h, _ := newMeHandler(t, failingRepo{})

	rec := httptest.NewRecorder()
	h.GetMe(rec, asUser(httptest.NewRequest(http.MethodGet, "/v1/me", http.NoBody), "user_1"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
