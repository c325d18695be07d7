package infer

import (
	"math"
	"strconv"
	"strings"
)

// minNormal32 is the smallest positive normal float32.
const minNormal32 = 0x1p-126

// classify runs the classifier for kind k against s. sub is the pattern
// variant to try first for the date/time kinds.
//
// Only the kind-specific statistics are filled in; Infer stamps the rest.
func classify(k Kind, s string, sub int) (SQLType, bool) {
	switch k {
	case Bit:
		return classifyBit(s)
	case Tinyint:
		return classifyInteger(s, 8, false)
	case Smallint:
		return classifyInteger(s, 16, true)
	case Int:
		return classifyInteger(s, 32, true)
	case Bigint:
		return classifyInteger(s, 64, true)
	case Numeric:
		return classifyNumeric(s)
	case Real:
		return classifyFloat(s, true)
	case Float:
		return classifyFloat(s, false)
	case Date:
		return classifyTemporal(datePatterns, s, sub)
	case Time:
		if _, err := strconv.ParseUint(s, 10, 8); err == nil {
			return SQLType{}, false
		}
		return classifyTemporal(timePatterns, s, sub)
	case Datetime2:
		return classifyTemporal(datetime2Variants, s, sub)
	case Datetimeoffset:
		return classifyTemporal(datetimeoffsetVariants, s, sub)
	case Char, Varchar:
		return SQLType{}, len(s) <= maxCharLength
	case Varcharmax:
		return SQLType{}, len(s) > maxCharLength
	}
	return SQLType{}, false
}

// classifyBit accepts 0 and 1 with any number of leading zeros: "00" and
// "01" are bits.
func classifyBit(s string) (SQLType, bool) {
	s = strings.TrimSpace(s)
	if !allDigits(s) {
		return SQLType{}, false
	}
	v, err := strconv.ParseInt(s, 10, 8)
	if err != nil || (v != 0 && v != 1) {
		return SQLType{}, false
	}
	return SQLType{digits: len(s), padded: leadingZero(s)}, true
}

// classifyInteger accepts optionally signed decimal integers that fit in
// bits. Unsigned kinds (TINYINT) reject any sign.
func classifyInteger(s string, bits int, signed bool) (SQLType, bool) {
	s = strings.TrimSpace(s)
	mag := s
	if signed && strings.HasPrefix(s, "-") {
		mag = s[1:]
	}
	if !allDigits(mag) || leadingZero(mag) {
		return SQLType{}, false
	}

	var err error
	if signed {
		_, err = strconv.ParseInt(s, 10, bits)
	} else {
		_, err = strconv.ParseUint(s, 10, bits)
	}
	if err != nil {
		return SQLType{}, false
	}
	return SQLType{digits: len(mag)}, true
}

// classifyNumeric accepts fixed-point decimals with up to 38 digits.
//
// Edge cases:
//   - "5." and ".5" are accepted (a point with digits on one side)
//   - "0.5" is rejected by the leading-zero rule and falls through to REAL
//   - "1e5" is rejected (exponent)
func classifyNumeric(s string) (SQLType, bool) {
	s = strings.TrimSpace(s)
	mag := strings.TrimPrefix(s, "-")
	if mag == "" || leadingZero(mag) {
		return SQLType{}, false
	}

	point, digits := -1, 0
	for i := 0; i < len(mag); i++ {
		c := mag[i]
		switch {
		case c == '.':
			if point >= 0 {
				return SQLType{}, false
			}
			point = i
		case isDigit(c):
			digits++
		default:
			return SQLType{}, false
		}
	}
	if digits == 0 || digits > maxNumericDigits {
		return SQLType{}, false
	}

	var scale int
	if point >= 0 {
		scale = len(mag) - point - 1
	}
	return SQLType{digits: digits - scale, fraction: scale}, true
}

// classifyFloat accepts finite decimal floating-point text. With single set
// the value must also be a normal float32. Zero is not normal, but a zero
// spelled as a fixed-point number ("0", "-0.00") is kept: the narrower kinds
// accept it, so it must not widen a REAL column.
func classifyFloat(s string, single bool) (SQLType, bool) {
	s = strings.TrimSpace(s)
	mag := strings.TrimLeft(s, "+-")
	if mag == "" || looseLeadingZero(mag) || strings.ContainsAny(mag, "xX_") {
		return SQLType{}, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return SQLType{}, false
	}
	if single {
		a := math.Abs(f)
		if a > math.MaxFloat32 || (a < minNormal32 && !fixedZero(a, s)) {
			return SQLType{}, false
		}
	}
	return SQLType{}, true
}

func fixedZero(a float64, s string) bool {
	if a != 0 {
		return false
	}
	_, ok := classifyNumeric(s)
	return ok
}

func classifyTemporal(variants []string, s string, sub int) (SQLType, bool) {
	idx, prec, ok := matchVariants(variants, s, sub)
	if !ok {
		return SQLType{}, false
	}
	return SQLType{Subindex: idx, precision: prec}, true
}

// compactDate reports whether an all-digit value also reads as a date.
func compactDate(s string) bool {
	if len(s) != 6 && len(s) != 8 {
		return false
	}
	for _, p := range compactDatePatterns {
		if _, ok := matchPattern(p, s); ok {
			return true
		}
	}
	return false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// leadingZero reports a zero that pads a non-zero magnitude: "0123" and
// "0.5" do, "0", "00" and "0.00" do not.
func leadingZero(mag string) bool {
	return mag != "" && mag[0] == '0' && strings.Trim(mag, "0.") != ""
}

// looseLeadingZero is leadingZero for floating-point text, where "0.5" is
// the usual spelling: only a zero directly followed by another digit counts.
func looseLeadingZero(mag string) bool {
	return len(mag) > 1 && mag[0] == '0' && isDigit(mag[1]) && strings.Trim(mag, "0.") != ""
}
