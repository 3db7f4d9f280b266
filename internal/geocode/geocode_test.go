package geocode_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntaxsurfers/smartcity/internal/geocode"
	"github.com/syntaxsurfers/smartcity/internal/panel"
	"github.com/syntaxsurfers/smartcity/internal/provider/resilience"
)

func TestLookup_OK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode/json", r.URL.Path)
		assert.Equal(t, "New York", r.URL.Query().Get("address"))
		assert.Equal(t, "gkey", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"formatted_address":"New York, NY, USA","geometry":{"location":{"lat":40.7127753,"lng":-74.0059728}}},
			{"formatted_address":"elsewhere","geometry":{"location":{"lat":1,"lng":1}}}
		]}`))
	}))
	defer server.Close()

	client := geocode.NewClient(geocode.ClientConfig{
		BaseURL: server.URL,
		APIKey:  "gkey",
		Fetcher: resilience.NewClient(resilience.DefaultClientConfig("google-test")),
		Logger:  zerolog.Nop(),
	})

	loc, err := client.Lookup(context.Background(), " New York ")
	require.NoError(t, err)
	assert.Equal(t, &geocode.Location{
		Query:            "New York",
		FormattedAddress: "New York, NY, USA",
		Latitude:         40.7127753,
		Longitude:        -74.0059728,
	}, loc)
}

func TestLookup_Errors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		body    string
		err     error
		wantErr error
	}{
		{name: "empty query", query: "  ", wantErr: geocode.ErrEmptyQuery},
		{name: "zero results", query: "zzzz", body: `{"status":"ZERO_RESULTS","results":[]}`, wantErr: geocode.ErrNotFound},
		{name: "denied", query: "paris", body: `{"status":"REQUEST_DENIED","error_message":"bad key","results":[]}`, wantErr: geocode.ErrNotFound},
		{name: "ok but empty", query: "paris", body: `{"status":"OK","results":[]}`, wantErr: geocode.ErrNotFound},
		{name: "transport", query: "paris", err: errors.New("reset"), wantErr: geocode.ErrLookupFailed},
		{name: "garbage", query: "paris", body: `<html>`, wantErr: geocode.ErrLookupFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			client := geocode.NewClient(geocode.ClientConfig{
				Fetcher: panel.FetcherFunc(func(context.Context, string, http.Header) ([]byte, error) {
					calls++
					return []byte(tt.body), tt.err
				}),
				Logger: zerolog.Nop(),
			})

			loc, err := client.Lookup(context.Background(), tt.query)
			assert.Nil(t, loc)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantErr == geocode.ErrEmptyQuery {
				assert.Zero(t, calls)
			}
		})
	}
}
