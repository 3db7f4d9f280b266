// Package news fetches local incident news, stores it and serves it as alerts
// labelled with a severity.
package news

import "time"

// Keywords are the topics fetched on every run.
var Keywords = []string{"traffic", "flood", "accident", "pollution"}

// Severity labels an alert.
type Severity string

// Severity levels.
const (
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
	SeverityUnknown Severity = "unknown"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityUnknown:
		return true
	}
	return false
}

// Article is a stored news article.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Keyword     string    `json:"keyword"`
	PublishedAt time.Time `json:"publishedAt"`
	StoredAt    time.Time `json:"storedAt"`
}

// Text returns the text used for classification: the content, or the
// description when there is no content.
func (a Article) Text() string {
	if a.Content != "" {
		return a.Content
	}
	return a.Description
}

// Alert is an article with its severity.
type Alert struct {
	Article
	Severity Severity `json:"severity"`
}

// FetchResult summarises one fetch-and-store run.
type FetchResult struct {
	Fetched int      `json:"fetched"`
	Stored  int      `json:"stored"`
	Failed  []string `json:"failedKeywords,omitempty"`
}
