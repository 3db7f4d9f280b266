package identity_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/syntaxsurfers/smartcity/internal/identity"
	"github.com/syntaxsurfers/smartcity/internal/user"
)

var secret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("smartcity-webhook-test-secret"))

type fakeUsers struct {
	calls []user.Identity
	err   error
}

func (f *fakeUsers) Upsert(_ context.Context, in user.Identity) (*user.Profile, bool, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, false, f.err
	}
	return &user.Profile{ID: in.ID}, true, nil
}

func signedHeader(t *testing.T, payload []byte) http.Header {
	t.Helper()

	wh, err := svix.NewWebhook(secret)
	require.NoError(t, err)

	now := time.Now()
	sig, err := wh.Sign("msg_2abc", now, payload)
	require.NoError(t, err)

	h := http.Header{}
	h.Set(identity.HeaderID, "msg_2abc")
	h.Set(identity.HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
	h.Set(identity.HeaderSignature, sig)
	return h
}

func newProcessor(t *testing.T, users identity.Upserter) *identity.Processor {
	t.Helper()

	v, err := identity.NewVerifier(secret)
	require.NoError(t, err)
	return identity.NewProcessor(identity.ProcessorConfig{
		Verifier: v,
		Users:    users,
		Logger:   zerolog.Nop(),
	})
}

const userCreated = `{
  "type": "user.created",
  "object": "event",
  "data": {
    "id": "user_29w83sxmDNGwOuEthce5gg56FcC",
    "email_addresses": [{"email_address": "example@example.org"}, {"email_address": "second@example.org"}],
    "image_url": "https://img.clerk.com/xxxxxx",
    "first_name": "Example",
    "last_name": "Example"
  }
}`

func TestProcess_UserCreated(t *testing.T) {
	users := &fakeUsers{}
	payload := []byte(userCreated)

	evt, err := newProcessor(t, users).Process(context.Background(), payload, signedHeader(t, payload))
	require.NoError(t, err)
	assert.Equal(t, identity.EventUserCreated, evt.Type)

	require.Len(t, users.calls, 1)
	assert.Equal(t, user.Identity{
		ID:        "user_29w83sxmDNGwOuEthce5gg56FcC",
		Email:     "example@example.org",
		AvatarURL: "https://img.clerk.com/xxxxxx",
		FirstName: "Example",
		LastName:  "Example",
	}, users.calls[0])
}

func TestProcess_UserUpdatedWithoutEmail(t *testing.T) {
	users := &fakeUsers{}
	payload := []byte(`{"type":"user.updated","data":{"id":"user_1","email_addresses":[],"first_name":"A"}}`)

	_, err := newProcessor(t, users).Process(context.Background(), payload, signedHeader(t, payload))
	require.NoError(t, err)
	require.Len(t, users.calls, 1)
	assert.Empty(t, users.calls[0].Email)
}

func TestProcess_OtherEventsIgnored(t *testing.T) {
	users := &fakeUsers{}
	payload := []byte(`{"type":"session.created","data":{"id":"sess_1"}}`)

	evt, err := newProcessor(t, users).Process(context.Background(), payload, signedHeader(t, payload))
	require.NoError(t, err)
	assert.Equal(t, "session.created", evt.Type)
	assert.Empty(t, users.calls)
}

func TestProcess_Rejections(t *testing.T) {
	payload := []byte(userCreated)

	tests := []struct {
		name    string
		payload []byte
		header  func() http.Header
		wantErr error
	}{
		{
			name:    "no headers",
			payload: payload,
			header:  func() http.Header { return http.Header{} },
			wantErr: identity.ErrMissingHeaders,
		},
		{
			name:    "missing signature",
			payload: payload,
			header: func() http.Header {
				h := signedHeader(t, payload)
				h.Del(identity.HeaderSignature)
				return h
			},
			wantErr: identity.ErrMissingHeaders,
		},
		{
			name:    "tampered body",
			payload: []byte(`{"type":"user.created","data":{"id":"user_evil"}}`),
			header:  func() http.Header { return signedHeader(t, payload) },
			wantErr: identity.ErrSignatureVerification,
		},
		{
			name:    "wrong signature",
			payload: payload,
			header: func() http.Header {
				h := signedHeader(t, payload)
				h.Set(identity.HeaderSignature, "v1,"+base64.StdEncoding.EncodeToString([]byte("nope")))
				return h
			},
			wantErr: identity.ErrSignatureVerification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUsers{}
			_, err := newProcessor(t, users).Process(context.Background(), tt.payload, tt.header())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, users.calls)
		})
	}
}

func TestProcess_MalformedUserEvent(t *testing.T) {
	users := &fakeUsers{}
	payload := []byte(`{"type":"user.created","data":{"first_name":"no id"}}`)

	_, err := newProcessor(t, users).Process(context.Background(), payload, signedHeader(t, payload))
	assert.ErrorIs(t, err, identity.ErrMalformedEvent)
	assert.Empty(t, users.calls)
}

func TestProcess_PersistenceErrorPropagates(t *testing.T) {
	storeErr := &user.PersistenceError{Op: "write", ID: "user_29w83sxmDNGwOuEthce5gg56FcC", Err: errors.New("timeout")}
	users := &fakeUsers{err: storeErr}
	payload := []byte(userCreated)

	_, err := newProcessor(t, users).Process(context.Background(), payload, signedHeader(t, payload))

	var pe *user.PersistenceError
	assert.ErrorAs(t, err, &pe)
}

func TestNewVerifier_InvalidSecret(t *testing.T) {
	_, err := identity.NewVerifier("whsec_%%%not-base64")
	assert.Error(t, err)
}
