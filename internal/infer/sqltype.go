// Package infer classifies raw CSV field values into SQL Server column types
// and folds per-row classifications into one type per column.
//
// The engine is progressive: a column starts empty, every value is classified
// starting at the column's current kind (cheaper kinds are never retried), and
// the result is merged into the running state. The final rendered type does
// not depend on row order.
//
// Typical use:
//
//	var col infer.SQLType
//	for _, v := range values {
//		if c, ok := infer.Infer(v, col.Kind, col.Subindex); ok {
//			col.Merge(c)
//		}
//	}
//	fmt.Println(col) // e.g. NUMERIC(8, 5)
package infer

import (
	"strconv"
	"strings"
)

// Kind is an SQL Server column kind. Kinds are ordered from strictest to
// laxest; the ordinal is the priority used for classification order and
// widening.
type Kind uint8

const (
	Bit Kind = iota
	Tinyint
	Smallint
	Int
	Bigint
	Numeric
	Real // float32; renders as FLOAT(24)
	Float
	Date
	Time
	Datetime2
	Datetimeoffset
	Char
	Varchar
	Varcharmax
)

// NumKinds is the number of defined kinds.
const NumKinds = int(Varcharmax) + 1

const (
	// maxCharLength is the widest CHAR/VARCHAR SQL Server accepts.
	maxCharLength = 8000

	// maxNumericDigits is the NUMERIC precision ceiling.
	maxNumericDigits = 38

	// maxPrecision is the fractional-second ceiling for TIME and DATETIME2.
	maxPrecision = 7

	realBits  = 24
	floatBits = 53
)

var kindNames = [NumKinds]string{
	Bit:            "BIT",
	Tinyint:        "TINYINT",
	Smallint:       "SMALLINT",
	Int:            "INT",
	Bigint:         "BIGINT",
	Numeric:        "NUMERIC",
	Real:           "FLOAT",
	Float:          "FLOAT",
	Date:           "DATE",
	Time:           "TIME",
	Datetime2:      "DATETIME2",
	Datetimeoffset: "DATETIMEOFFSET",
	Char:           "CHAR",
	Varchar:        "VARCHAR",
	Varcharmax:     "VARCHAR(MAX)",
}

// String returns the SQL base name of k.
func (k Kind) String() string {
	if int(k) < NumKinds {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) numeric() bool  { return k <= Float }
func (k Kind) temporal() bool { return k >= Date && k <= Datetimeoffset }

// SQLType is the classification of one value, or the accumulated
// classification of a column after Merge.
//
// The exported fields describe the rendered type:
//   - Size: integer digits for NUMERIC, 24/53 for FLOAT, fractional-second
//     precision for TIME/DATETIME2/DATETIMEOFFSET, byte length for
//     CHAR/VARCHAR, zero otherwise.
//   - Scale: digits after the point for NUMERIC.
//   - Subindex: the date/time pattern variant that last matched. It is a
//     resume hint for the next value of the same column.
//   - ByteLength: the widest non-empty raw value seen.
//   - Fixed: set for CHAR, which requires every value to share one length.
//
// The zero value is an empty column and renders as BIT.
type SQLType struct {
	Kind       Kind
	Size       int
	Scale      int
	Subindex   int
	ByteLength int
	Fixed      bool

	// Statistics over every folded value; Size and Scale are derived from
	// these by settle so that merge order never matters.
	minLength int
	digits    int
	fraction  int
	precision int

	// notDate is set once a folded value cannot be read as a date. Digit-only
	// values such as 20240131 are integers and dates at the same time.
	notDate bool

	// padded marks a zero-padded bit such as "01". Only BIT accepts it, so a
	// padded column that widens to another numeric kind becomes text.
	padded bool
}

// Priority returns the position of t's kind in classification order.
func (t SQLType) Priority() int { return int(t.Kind) }

// Empty reports whether no non-empty value has been folded into t.
func (t SQLType) Empty() bool { return t.ByteLength == 0 }

// String renders t as an SQL Server type, e.g. NUMERIC(8, 5), TIME(0),
// CHAR(7) or VARCHAR(MAX).
//
// A parenthesized argument is appended when Size is positive or the kind is
// one of the TIME family; it carries Size+Scale and, when Scale is positive,
// the scale after a comma.
func (t SQLType) String() string {
	name := t.Kind.String()
	if t.Kind == Varcharmax {
		return name
	}
	if t.Size <= 0 && !strings.Contains(name, "TIME") {
		return name
	}

	var b strings.Builder
	b.Grow(len(name) + 8)
	b.WriteString(name)
	b.WriteByte('(')
	b.WriteString(strconv.Itoa(t.Size + t.Scale))
	if t.Scale > 0 {
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(t.Scale))
	}
	b.WriteByte(')')
	return b.String()
}

// settle recomputes the rendered fields from the accumulated statistics.
func (t *SQLType) settle() {
	t.Size, t.Scale, t.Fixed = 0, 0, false

	switch t.Kind {
	case Numeric:
		if t.digits+t.fraction > maxNumericDigits {
			t.Kind = Float
			t.Size = floatBits
			return
		}
		t.Size, t.Scale = t.digits, t.fraction
	case Real:
		t.Size = realBits
	case Float:
		t.Size = floatBits
	case Time, Datetime2, Datetimeoffset:
		t.Size = t.precision
	case Char:
		if t.minLength != t.ByteLength {
			t.Kind = Varchar
		} else {
			t.Fixed = true
		}
		t.Size = t.ByteLength
	case Varchar:
		t.Size = t.ByteLength
	}
}
