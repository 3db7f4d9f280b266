// Package search validates city searches against the supported city list.
package search

import (
	"slices"
	"strings"
)

// Cities lists the supported city names in lower case.
var Cities = []string{"london", "new york", "tokyo", "paris"}

// ValidateCity reports whether city is supported. Matching ignores case and
// surrounding whitespace.
func ValidateCity(city string) bool {
	return slices.Contains(Cities, strings.ToLower(strings.TrimSpace(city)))
}
