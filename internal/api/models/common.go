// Package models holds the JSON bodies of the smart city API.
package models

import (
	"encoding/json"
	"time"
)

// HealthStatus is the state reported by the ops endpoints.
type HealthStatus string

// Health states. DEGRADED means panels are being served from sample data.
const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp encodes as an RFC 3339 string in UTC with second precision.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil || s == nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}
