package infer

// Merge folds c, the classification of another value from the same column,
// into t.
//
// Rules, in order:
//  1. An empty candidate changes nothing.
//  2. CHAR values of different lengths make the column VARCHAR.
//  3. Same kind: subindex, size and scale widen to the maximum.
//  4. Wider candidate: the column adopts the candidate's kind and subindex.
//     A CHAR column is as wide as the longest value seen so far.
//  5. Narrower candidate: the kind is kept.
//
// The numeric kinds (BIT through FLOAT) and the temporal kinds (DATE
// through DATETIMEOFFSET) are separate branches of the ordering. A numeric
// value meeting a temporal one widens to CHAR, and DATE meeting TIME
// widens to DATETIME2. Digit-only values that also read as dates
// (20240131) stay compatible with DATE. A zero-padded bit ("01") widened
// to any other numeric kind makes the column CHAR or VARCHAR, like "0123".
//
// Sizes are recomputed from maxima and minima over every folded value. For
// example, a NUMERIC column also counts the digits of integers folded
// before it. Merge is therefore commutative and associative: a column
// renders the same type for every ordering of its values.
func (t *SQLType) Merge(c SQLType) {
	if c.Empty() {
		return
	}
	if t.Empty() {
		*t = c
		return
	}

	k := join(*t, c)
	switch {
	case c.Kind == t.Kind:
		t.Subindex = max(t.Subindex, c.Subindex)
	case k == c.Kind:
		t.Subindex = c.Subindex
	case k != t.Kind:
		t.Subindex = 0
	}
	t.Kind = k

	t.ByteLength = max(t.ByteLength, c.ByteLength)
	t.minLength = min(t.minLength, c.minLength)
	t.digits = max(t.digits, c.digits)
	t.fraction = max(t.fraction, c.fraction)
	t.precision = max(t.precision, c.precision)
	t.notDate = t.notDate || c.notDate
	t.padded = t.padded || c.padded

	t.settle()
}

// Fold merges every candidate into a fresh column state.
func Fold(candidates ...SQLType) SQLType {
	var t SQLType
	for _, c := range candidates {
		t.Merge(c)
	}
	return t
}

// join returns the narrowest kind that holds the values behind a and b.
func join(a, b SQLType) Kind {
	ka, kb := a.Kind, b.Kind
	if ka.numeric() && kb.temporal() && !a.notDate {
		ka = Date
	}
	if kb.numeric() && ka.temporal() && !b.notDate {
		kb = Date
	}
	k := joinKinds(ka, kb)
	if (a.padded || b.padded) && k > Bit && k < Char {
		return Char
	}
	return k
}

func joinKinds(a, b Kind) Kind {
	if a > b {
		a, b = b, a
	}
	switch {
	case a == b:
		return a
	case b >= Char, b.numeric():
		return b
	case a.numeric():
		return Char
	case a == Date && b == Time:
		return Datetime2
	default:
		return b
	}
}
