package infer

import "unsafe"

// Infer classifies one raw field value.
//
// Classifiers are tried in Kind order starting at resume and never below it:
// once a column has widened, the stricter checks are skipped for the rest of
// the column. subindex is the date/time pattern variant to try first for the
// resume kind; later kinds start at their first variant.
//
// Edge cases:
//   - An empty value returns the empty classification (zero SQLType, true)
//     without running any classifier.
//   - Values longer than 8000 bytes are only offered to VARCHAR(MAX).
//   - ok is false only when nothing at or above resume accepts the value,
//     e.g. a short value in a VARCHAR(MAX) column. Callers treat that as
//     "no update".
func Infer(value []byte, resume Kind, subindex int) (SQLType, bool) {
	if len(value) == 0 {
		return SQLType{}, true
	}
	s := bytesString(value)

	start := resume
	if len(s) > maxCharLength && start < Varcharmax {
		start = Varcharmax
	}

	for k := start; k <= Varcharmax; k++ {
		sub := 0
		if k == resume {
			sub = subindex
		}
		t, ok := classify(k, s, sub)
		if !ok {
			continue
		}
		t.Kind = k
		t.ByteLength = len(s)
		t.minLength = len(s)
		t.notDate = k != Date && !(k <= Bigint && compactDate(s))
		t.settle()
		return t, true
	}
	return SQLType{}, false
}

// InferString is Infer for string input.
func InferString(value string, resume Kind, subindex int) (SQLType, bool) {
	return Infer([]byte(value), resume, subindex)
}

// bytesString views b as a string without copying. Classifiers never retain
// their input, so the view does not outlive the caller's buffer.
func bytesString(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}
