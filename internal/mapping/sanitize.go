package mapping

import "strings"

// MaxIdentifierLen is the default cap on sanitized column names, matching
// the tightest backend limit (Postgres, 63 bytes).
const MaxIdentifierLen = 63

// Sanitize turns an arbitrary header into a valid attribute identifier:
// lower-cased, every non-[a-z0-9] run collapsed to a single underscore,
// leading/trailing underscores trimmed, truncated to MaxIdentifierLen.
//
// Sanitize is idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(header string) string {
	return SanitizeMax(header, MaxIdentifierLen)
}

// SanitizeMax is Sanitize with an explicit length cap.
func SanitizeMax(header string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = MaxIdentifierLen
	}

	var b strings.Builder
	b.Grow(len(header))

	pendingSep := false
	for _, r := range strings.ToLower(header) {
		isWord := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isWord {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}

	s := b.String()
	if len(s) > maxLen {
		s = s[:maxLen]
		s = strings.TrimRight(s, "_")
	}
	return s
}
