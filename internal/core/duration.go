package core

import (
	"strconv"
	"time"
)

// ParseDuration accepts a non-negative integer followed by a single unit
// suffix s|m|h|d|w (seconds, minutes, hours, days, weeks), generalizing
// time.ParseDuration to the wider units the "since" side of diff needs
// ("2d", "1w") without pulling in a calendar library.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, newError(KindInvalidInput, "duration string is empty")
	}

	unit := s[len(s)-1]
	var scale time.Duration
	switch unit {
	case 's':
		scale = time.Second
	case 'm':
		scale = time.Minute
	case 'h':
		scale = time.Hour
	case 'd':
		scale = 24 * time.Hour
	case 'w':
		scale = 7 * 24 * time.Hour
	default:
		return 0, newError(KindInvalidInput, "duration %q must end in s, m, h, d, or w", s)
	}

	numPart := s[:len(s)-1]
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil || n < 0 {
		return 0, newError(KindInvalidInput, "duration %q must be a non-negative integer followed by a unit", s)
	}

	return time.Duration(n) * scale, nil
}
