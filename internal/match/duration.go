package match

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock converts a "MM:SS" duration string to seconds. Both parts must
// be non-negative integers; minutes may exceed 59.
func ParseClock(v string) (int, error) {
	parts := strings.Split(v, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q (use MM:SS)", ErrInvalidDuration, v)
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || m < 0 {
		return 0, fmt.Errorf("%w: %q (use MM:SS)", ErrInvalidDuration, v)
	}
	s, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || s < 0 {
		return 0, fmt.Errorf("%w: %q (use MM:SS)", ErrInvalidDuration, v)
	}
	return m*60 + s, nil
}
