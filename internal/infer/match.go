package infer

import "strings"

// Shortest and longest text any date/time pattern can consume.
const (
	minTemporalLen = 4
	maxTemporalLen = 64
)

// moment collects the fields a pattern captured.
type moment struct {
	year, month, day     int
	hour, minute, second int
	frac                 string
	hasDate              bool
	hour12, pm           bool
}

// matchVariants tries variants starting at start and wraps around once.
// It returns the matching index and the fractional-second precision.
func matchVariants(variants []string, s string, start int) (int, int, bool) {
	if len(s) < minTemporalLen || len(s) > maxTemporalLen {
		return 0, 0, false
	}
	n := len(variants)
	if start < 0 || start >= n {
		start = 0
	}
	for i := 0; i < n; i++ {
		j := start + i
		if j >= n {
			j -= n
		}
		if prec, ok := matchPattern(variants[j], s); ok {
			return j, prec, true
		}
	}
	return 0, 0, false
}

// matchPattern reports whether s is entirely consumed by pattern p and
// names a real calendar date and clock time.
//
// Matching is greedy and never backtracks: a 1-2 digit field takes two
// digits when two are present.
func matchPattern(p, s string) (int, bool) {
	var (
		m  moment
		i  int
		ok bool
	)

	for j := 0; j < len(p); j++ {
		switch c := p[j]; c {
		case 'Y':
			m.year, i, ok = number(s, i, 4, 4)
			m.hasDate = true
		case 'y':
			m.year, i, ok = number(s, i, 2, 2)
			m.year += 2000
			m.hasDate = true
		case 'm':
			m.month, i, ok = number(s, i, 1, 2)
		case 'M':
			m.month, i, ok = number(s, i, 2, 2)
		case 'd':
			m.day, i, ok = number(s, i, 1, 2)
		case 'D':
			m.day, i, ok = number(s, i, 2, 2)
		case 'B':
			m.month, i, ok = month(s, i)
		case 'S':
			ok = i < len(s) && (s[i] == '-' || s[i] == '/' || s[i] == '.')
			i++
		case ',':
			if i < len(s) && s[i] == ',' {
				i++
			}
			ok = true
		case 'H':
			m.hour, i, ok = number(s, i, 2, 2)
		case 'h':
			m.hour, i, ok = number(s, i, 1, 2)
		case 'I':
			m.hour, i, ok = number(s, i, 1, 2)
			m.hour12 = true
		case 'i':
			m.minute, i, ok = number(s, i, 2, 2)
		case 's':
			if i+2 < len(s) && s[i] == ':' && isDigit(s[i+1]) {
				m.second, i, ok = number(s, i+1, 2, 2)
			} else {
				ok = true
			}
		case 'f':
			if i+1 < len(s) && s[i] == '.' && isDigit(s[i+1]) {
				start := i + 1
				_, i, ok = number(s, start, 1, 9)
				m.frac = s[start:i]
			} else {
				ok = true
			}
		case 'p':
			if i < len(s) && s[i] == ' ' {
				i++
			}
			m.pm, i, ok = period(s, i)
		case 'z':
			if i < len(s) && s[i] == 'Z' {
				i++
			}
			ok = true
		case 'o':
			if i < len(s) && s[i] == ' ' {
				i++
			}
			i, ok = offset(s, i)
		default:
			ok = i < len(s) && s[i] == c
			i++
		}
		if !ok {
			return 0, false
		}
	}

	if i != len(s) || !m.valid() {
		return 0, false
	}
	return fracPrecision(m.frac), true
}

func (m *moment) valid() bool {
	if m.hasDate {
		if m.month < 1 || m.month > 12 {
			return false
		}
		if m.day < 1 || m.day > daysIn(m.year, m.month) {
			return false
		}
	}
	if m.hour12 {
		if m.hour < 1 || m.hour > 12 {
			return false
		}
	} else if m.hour > 23 {
		return false
	}
	return m.minute <= 59 && m.second <= 59
}

func daysIn(year, month int) int {
	switch month {
	case 2:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// fracPrecision is the count of significant fractional-second digits,
// capped at what DATETIME2 can store.
func fracPrecision(frac string) int {
	return min(len(strings.TrimRight(frac, "0")), maxPrecision)
}

// number reads between lo and hi ASCII digits at s[i:].
func number(s string, i, lo, hi int) (int, int, bool) {
	v, n := 0, 0
	for n < hi && i+n < len(s) && isDigit(s[i+n]) {
		v = v*10 + int(s[i+n]-'0')
		n++
	}
	if n < lo {
		return 0, i, false
	}
	return v, i + n, true
}

// month reads a month name at s[i:]. Long names are tried before the
// 3-letter abbreviations.
func month(s string, i int) (int, int, bool) {
	rest := s[i:]
	for k, name := range monthNames {
		if hasPrefixFold(rest, name) {
			return k + 1, i + len(name), true
		}
	}
	for k, name := range monthNames {
		if hasPrefixFold(rest, name[:3]) {
			return k + 1, i + 3, true
		}
	}
	return 0, i, false
}

func period(s string, i int) (bool, int, bool) {
	switch {
	case hasPrefixFold(s[i:], "am"):
		return false, i + 2, true
	case hasPrefixFold(s[i:], "pm"):
		return true, i + 2, true
	}
	return false, i, false
}

// offset reads a signed "HH:MM" UTC offset.
func offset(s string, i int) (int, bool) {
	if i >= len(s) || (s[i] != '+' && s[i] != '-') {
		return i, false
	}
	h, i, ok := number(s, i+1, 2, 2)
	if !ok || h > 23 || i >= len(s) || s[i] != ':' {
		return i, false
	}
	mm, i, ok := number(s, i+1, 2, 2)
	if !ok || mm > 59 {
		return i, false
	}
	return i, true
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
