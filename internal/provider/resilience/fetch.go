package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxBodyBytes caps how much of an upstream body is read into memory.
const maxBodyBytes = 8 << 20

// StatusError is returned by Fetch when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get performs a GET and reads the whole body regardless of status.
// Only transport failures and an open circuit are errors.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	resp, err := c.get(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}
	c.record(nil)
	return resp, nil
}

// Fetch performs a GET and returns the body of a 2xx response.
// Any other status is reported as a *StatusError.
func (c *Client) Fetch(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	resp, err := c.get(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &StatusError{StatusCode: resp.StatusCode, URL: redact(rawURL)}
		c.record(err)
		return nil, err
	}
	c.record(nil)
	return resp.Body, nil
}

func (c *Client) get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		// *url.Error repeats the full URL, query string included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		c.record(err)
		return nil, fmt.Errorf("%s: GET %s: %w", c.config.Name, redact(rawURL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.record(err)
		return nil, fmt.Errorf("%s: reading body: %w", c.config.Name, err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) record(err error) {
	if c.config.Registry == nil {
		return
	}
	if err != nil {
		c.config.Registry.RecordFailure(c.config.Name, err)
		return
	}
	c.config.Registry.RecordSuccess(c.config.Name)
}

// redact strips the query string so API keys do not end up in errors or logs.
func redact(rawURL string) string {
	if before, _, ok := strings.Cut(rawURL, "?"); ok {
		return before
	}
	return rawURL
}
