package models

// SearchResult is the answer to a city search.
type SearchResult struct {
	Query string `json:"query"`
	City  string `json:"city"`
	Found bool   `json:"found"`
}

// Alerts is the news alerts listing.
type Alerts struct {
	Items []Alert `json:"items"`
	Count int     `json:"count"`
}

// Alert is one news article with its severity label.
type Alert struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Source      string     `json:"source,omitempty"`
	Keyword     string     `json:"keyword"`
	Severity    string     `json:"severity"`
	PublishedAt *Timestamp `json:"publishedAt,omitempty"`
}

// AlertsRefresh reports the outcome of a news fetch.
type AlertsRefresh struct {
	Fetched        int      `json:"fetched"`
	Stored         int      `json:"stored"`
	FailedKeywords []string `json:"failedKeywords,omitempty"`
}
