package ledger

import (
	"strings"
	"time"
)

// TruncateParty shortens a fully-qualified party identifier for display.
// Canton party IDs have the form "<hint>::<fingerprint>"; the hint is kept
// and the fingerprint cut to its first 12 characters.
func TruncateParty(s string) string {
	if len(s) <= 50 {
		return s
	}
	if idx := strings.Index(s, "::"); idx > 0 && idx < len(s)-10 {
		prefix := s[:idx]
		suffix := s[idx+2:]
		if len(suffix) > 12 {
			return prefix + "::" + suffix[:12] + "..."
		}
	}
	return s[:47] + "..."
}

// TruncateHash shortens a transaction hash or contract ID for display.
func TruncateHash(s string) string {
	if len(s) <= 20 {
		return s
	}
	return s[:17] + "..."
}

// FormatTime renders an effective-at timestamp for the activity report.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "Unknown time"
	}
	return t.Format("2006-01-02 15:04:05 UTC")
}
