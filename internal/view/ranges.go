package view

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is an inclusive 1-based interval. Hi == 0 leaves it open-ended.
type Range struct {
	Lo, Hi int
}

// Ranges is a selection. An empty Ranges selects everything.
type Ranges []Range

// ParseRanges reads a comma-separated list of numbers and intervals:
// "3", "1-3", "7-" (7 to the end), "-4" (1 to 4). Spaces are ignored.
func ParseRanges(s string) (Ranges, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var out Ranges
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")

		var r Range
		var err error
		if r.Lo, err = bound(lo, 1); err != nil {
			return nil, fmt.Errorf("invalid range %q: %w", part, err)
		}
		if !isRange {
			r.Hi = r.Lo
		} else if r.Hi, err = bound(hi, 0); err != nil {
			return nil, fmt.Errorf("invalid range %q: %w", part, err)
		}
		if r.Hi != 0 && r.Hi < r.Lo {
			return nil, fmt.Errorf("invalid range %q: end before start", part)
		}
		out = append(out, r)
	}
	return out, nil
}

// bound parses one side of a range; blank yields def.
func bound(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("positions start at 1")
	}
	return n, nil
}

// Contains reports whether position n is selected.
func (rs Ranges) Contains(n int) bool {
	if len(rs) == 0 {
		return true
	}
	for _, r := range rs {
		if n >= r.Lo && (r.Hi == 0 || n <= r.Hi) {
			return true
		}
	}
	return false
}

// Last returns the highest selected position. ok is false when the
// selection is unbounded.
func (rs Ranges) Last() (last int, ok bool) {
	if len(rs) == 0 {
		return 0, false
	}
	for _, r := range rs {
		if r.Hi == 0 {
			return 0, false
		}
		last = max(last, r.Hi)
	}
	return last, true
}
