// Package user keeps the per-user record: the identity profile mirrored from the
// identity provider, the preferred place and the latest traffic feedback.
//
// # PII Considerations
//
// Data Stored:
//   - ID: identity provider user id, used as the store key
//   - Email, names and avatar URL as supplied by the identity provider
//   - PreferredPlace: free-text city name chosen by the user
//   - Feedback: the most recent congestion report; earlier reports are overwritten
package user

import (
	"time"
)

// Profile is the stored user record.
type Profile struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	AvatarURL      string    `json:"avatar"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	PreferredPlace string    `json:"place,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// Identity is the profile data carried by an identity provider event.
type Identity struct {
	ID        string
	Email     string
	AvatarURL string
	FirstName string
	LastName  string
}

// sameAs reports whether p and o match on every field except LastUpdated.
func (p *Profile) sameAs(o *Profile) bool {
	return p.ID == o.ID &&
		p.Email == o.Email &&
		p.AvatarURL == o.AvatarURL &&
		p.FirstName == o.FirstName &&
		p.LastName == o.LastName &&
		p.PreferredPlace == o.PreferredPlace &&
		p.CreatedAt.Equal(o.CreatedAt)
}

// CongestionLevel is the congestion reported by a user.
type CongestionLevel string

const (
	CongestionLow      CongestionLevel = "low"
	CongestionModerate CongestionLevel = "moderate"
	CongestionHigh     CongestionLevel = "high"
	CongestionSevere   CongestionLevel = "severe"
)

// Feedback is the latest traffic report submitted by a user.
type Feedback struct {
	CongestionLevel  CongestionLevel `json:"congestionLevel"`
	AccidentReported bool            `json:"accidentReported"`
	Comments         string          `json:"comments"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// FeedbackInput is a feedback submission.
type FeedbackInput struct {
	CongestionLevel  string `json:"congestionLevel" validate:"required,oneof=low moderate high severe"`
	AccidentReported bool   `json:"accidentReported"`
	Comments         string `json:"comments" validate:"max=2000"`
}
