// Package probe surveys a delimited file in one pass: column names, row
// count, value lengths and inferred SQL Server types. Schema renders the
// survey as table DDL.
package probe

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bowmanjd/busser/internal/storage/mssql"
)

// maxIdentLen is the SQL Server identifier limit in characters; we apply it
// to bytes, which is stricter.
const maxIdentLen = 128

// CleanColumns turns raw header fields into unique SQL identifiers.
//
// prefix supplies the character put in front of reserved words; callers
// pass the table name or, when there is none, the source file name (see
// KeywordPrefix).
//
// Rules, per name:
//   - every rune that is not a letter or digit becomes '_'
//   - an empty result, or one starting with a digit, gets a leading '_'
//   - a reserved word (any case) gets prefix in front of it
//   - the result is cut to 128 bytes on a UTF-8 boundary
//
// Duplicates then get "_2", "_3", ... in order of occurrence. A suffixed
// name never collides with a name already taken.
func CleanColumns(raw []string, prefix string) []string {
	out := make([]string, len(raw))
	taken := make(map[string]struct{}, len(raw))
	next := make(map[string]int, len(raw))

	for i, r := range raw {
		name := cleanColumn(r, prefix)
		key := strings.ToLower(name)
		if _, dup := taken[key]; dup {
			n := max(next[key], 2)
			for {
				cand := truncateFieldName(name, maxIdentLen-len(strconv.Itoa(n))-1) + "_" + strconv.Itoa(n)
				if _, clash := taken[strings.ToLower(cand)]; !clash {
					next[key] = n + 1
					name = cand
					break
				}
				n++
			}
		}
		taken[strings.ToLower(name)] = struct{}{}
		out[i] = name
	}
	return out
}

// KeywordPrefix returns the first character of table, or of the file name
// of path when table is empty.
func KeywordPrefix(table, path string) string {
	src := table
	if i := strings.LastIndexByte(src, '.'); i >= 0 {
		src = src[i+1:]
	}
	src = strings.Trim(src, "[]\" ")
	if src == "" {
		src = filepath.Base(path)
	}
	r, _ := utf8.DecodeRuneInString(src)
	if r == utf8.RuneError || !(unicode.IsLetter(r) || r == '_') {
		return "_"
	}
	return string(r)
}

func cleanColumn(raw, prefix string) string {
	name := normalizeFieldName(raw)
	if mssql.IsReserved(name) {
		name = prefix + name
	}
	return truncateFieldName(name, maxIdentLen)
}

// normalizeFieldName replaces every rune that is not a letter or digit with
// '_'. Case is preserved.
func normalizeFieldName(s string) string {
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s) + 1)
	for i, r := range s {
		if i == 0 && unicode.IsDigit(r) {
			b.WriteByte('_')
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// truncateFieldName cuts s to at most n bytes without splitting a rune.
func truncateFieldName(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
