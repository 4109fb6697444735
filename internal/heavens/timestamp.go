package heavens

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseTimestamp converts an "HH:MM:SS" clock string into elapsed seconds
// since midnight. Fields are decimal and not range-checked, so "25:99:99"
// is accepted.
func ParseTimestamp(s string) (int, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("%w: %q has %d fields, want 3", ErrInvalidFormat, s, len(fields))
	}

	var parts [3]int
	for i, f := range fields {
		if f == "" || strings.TrimLeft(f, "0123456789") != "" {
			return 0, fmt.Errorf("%w: %q field %d is not numeric", ErrInvalidFormat, s, i+1)
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return 0, fmt.Errorf("%w: %q field %d: %v", ErrInvalidFormat, s, i+1, err)
		}
		parts[i] = n
	}

	h, m, sec := parts[0], parts[1], parts[2]
	if m > (math.MaxInt-sec)/60 || h > (math.MaxInt-sec-m*60)/3600 {
		return 0, fmt.Errorf("%w: %q overflows elapsed seconds", ErrInvalidFormat, s)
	}

	return h*3600 + m*60 + sec, nil
}

// ClockField returns the last whitespace-separated field of s, which is
// where heavens-above puts the clock in combined "Oct 15 05:12:34" cells.
func ClockField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
