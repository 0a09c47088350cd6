package normalizer

import "regexp"

// Tracking-key patterns, tried in order.
var trackingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)clave de rastreo:\s*([A-Za-z0-9\-]{6,})`),
	regexp.MustCompile(`(?i)clave de rastreo\s*([A-Za-z0-9\-]{6,})`),
	regexp.MustCompile(`\b([A-Za-z0-9]{12,})\b`),
}

// ExtractTrackingKey finds a SPEI tracking key inside a description. It
// returns "" when none of the patterns match.
func ExtractTrackingKey(description string) string {
	for _, re := range trackingPatterns {
		if m := re.FindStringSubmatch(description); m != nil {
			return m[1]
		}
	}
	return ""
}
