package rotation

import (
	"fmt"
	"regexp"
	"time"
)

var intervalRe = regexp.MustCompile(`(\d+)([smhDWMY])`)

// ParseInterval converts interval strings like "1M", "1W" or "1M3W4h2s" into
// a duration. Units: s seconds, m minutes, h hours, D days, W weeks,
// M months (30 days), Y years (365 days).
func ParseInterval(s string) (time.Duration, error) {
	matches := intervalRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}

	// Reject garbage between or around the matched parts.
	var matchedLen int
	for _, m := range matches {
		matchedLen += len(m[0])
	}
	if matchedLen != len(s) {
		return 0, fmt.Errorf("invalid interval %q", s)
	}

	var total time.Duration
	for _, m := range matches {
		var n int64
		if _, err := fmt.Sscanf(m[1], "%d", &n); err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", s, err)
		}
		switch m[2] {
		case "s":
			total += time.Duration(n) * time.Second
		case "m":
			total += time.Duration(n) * time.Minute
		case "h":
			total += time.Duration(n) * time.Hour
		case "D":
			total += time.Duration(n) * 24 * time.Hour
		case "W":
			total += time.Duration(n) * 7 * 24 * time.Hour
		case "M":
			total += time.Duration(n) * 30 * 24 * time.Hour
		case "Y":
			total += time.Duration(n) * 365 * 24 * time.Hour
		}
	}
	return total, nil
}
