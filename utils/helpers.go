package utils

import (
	"html"
	"math"
	"strings"
	"time"
	"unicode"
)

// SanitizeIdentifier strips control characters and escapes markup from
// free-text identifiers before they are persisted. Analytics output is
// rendered by untrusted dashboards, so this is done at the ingestion edge.
func SanitizeIdentifier(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return html.EscapeString(strings.TrimSpace(cleaned))
}

// ExtractQuizID derives a deterministic quiz id from a page URL path:
// "/lead2" -> "lead2", "" or "/" -> "default".
func ExtractQuizID(urlPath string) string {
	path := strings.Trim(urlPath, "/")
	if path == "" {
		return "default"
	}
	return path
}

// RoundPercent computes part/total*100 rounded to 2 decimals, with 0 for a
// zero denominator.
func RoundPercent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round2(float64(part) / float64(total) * 100)
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// HourBucket formats t as the coarse hourly bucket used in analytics cache
// keys.
func HourBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02-15")
}
