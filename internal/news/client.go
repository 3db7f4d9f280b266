package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syntaxsurfers/smartcity/internal/panel"
)

// DefaultBaseURL is TheNewsAPI root.
const DefaultBaseURL = "https://api.thenewsapi.com/v1"

// ErrFetchFailed is returned when the news API cannot be read.
var ErrFetchFailed = errors.New("news fetch failed")

// ClientConfig holds configuration for the news API client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Fetcher panel.Fetcher
}

// Client queries TheNewsAPI.
type Client struct {
	baseURL string
	apiKey  string
	fetcher panel.Fetcher
}

// NewClient creates a new news API client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  cfg.APIKey,
		fetcher: cfg.Fetcher,
	}
}

// SearchURL returns the URL for English articles matching keyword published on day.
func SearchURL(baseURL, apiKey, keyword string, day time.Time) string {
	q := url.Values{}
	q.Set("api_token", apiKey)
	q.Set("language", "en")
	q.Set("search", keyword)
	q.Set("published_on", day.Format(time.DateOnly))
	return strings.TrimSuffix(baseURL, "/") + "/news/all?" + q.Encode()
}

type searchResponse struct {
	Data []struct {
		UUID        string `json:"uuid"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Snippet     string `json:"snippet"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		Source      string `json:"source"`
		PublishedAt string `json:"published_at"`
	} `json:"data"`
}

// Search returns the articles for keyword published on day.
func (c *Client) Search(ctx context.Context, keyword string, day time.Time) ([]Article, error) {
	body, err := c.fetcher.Fetch(ctx, SearchURL(c.baseURL, c.apiKey, keyword, day), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, keyword, err)
	}
	return ParseSearch(body, keyword)
}

// ParseSearch decodes a search response. Articles without a title are skipped.
func ParseSearch(body []byte, keyword string) ([]Article, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrFetchFailed, keyword, err)
	}

	articles := make([]Article, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.Title == "" {
			continue
		}
		id := d.UUID
		if id == "" {
			id = uuid.NewString()
		}
		content := d.Content
		if content == "" {
			content = d.Snippet
		}
		published, err := time.Parse(time.RFC3339, d.PublishedAt)
		if err != nil {
			published = time.Time{}
		}
		articles = append(articles, Article{
			ID:          id,
			Title:       d.Title,
			Description: d.Description,
			Content:     content,
			URL:         d.URL,
			Source:      d.Source,
			Keyword:     keyword,
			PublishedAt: published.UTC(),
		})
	}
	return articles, nil
}
