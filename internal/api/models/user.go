package models

// Me represents the authenticated user's record.
type Me struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email,omitempty"`
	AvatarURL   string    `json:"avatar,omitempty"`
	FirstName   string    `json:"firstName,omitempty"`
	LastName    string    `json:"lastName,omitempty"`
	Place       string    `json:"place"`
	CreatedAt   Timestamp `json:"createdAt"`
	LastUpdated Timestamp `json:"lastUpdated"`
	Feedback    *Feedback `json:"feedback,omitempty"`
}

// Place is the user's preferred place used by the weather panel.
type Place struct {
	Place string `json:"place"`
}

// PlaceInput is the request body for setting the preferred place.
type PlaceInput struct {
	Place string `json:"place" validate:"required,max=100"`
}

// Feedback is the user's latest traffic feedback.
type Feedback struct {
	CongestionLevel  string `json:"congestionLevel"`
	AccidentReported bool   `json:"accidentReported"`
	Comments         string `json:"comments"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// FeedbackInput is the request body for submitting feedback.
type FeedbackInput struct {
	CongestionLevel  string `json:"congestionLevel"`
	AccidentReported bool   `json:"accidentReported"`
	Comments         string `json:"comments"`
}
