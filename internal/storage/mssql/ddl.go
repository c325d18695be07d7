// Package mssql renders SQL Server statements as text: table DDL and
// INSERT ... OPENJSON load scripts. Nothing here connects to a server.
package mssql

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bowmanjd/busser/internal/storage"
)

// maxIdentLen is the SQL Server limit for a regular identifier.
const maxIdentLen = 128

// CreateTableSQL returns a statement pair that replaces table t:
//
//	DROP TABLE IF EXISTS t;
//	CREATE TABLE t (a BIT, b NUMERIC(8, 5));
//
// Names that are regular identifiers are written as they are; anything else
// is bracket-quoted.
func CreateTableSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	defs, err := columnDefs(t.Columns)
	if err != nil {
		return "", err
	}

	table := TableIdent(t.Name)
	var b strings.Builder
	b.Grow(len(table)*2 + len(defs) + 48)
	b.WriteString("DROP TABLE IF EXISTS ")
	b.WriteString(table)
	b.WriteString(";\nCREATE TABLE ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(defs)
	b.WriteString(");")
	return b.String(), nil
}

// columnDefs produces the "a BIT, b INT" list shared by CREATE TABLE and
// the OPENJSON WITH clause.
func columnDefs(cols []storage.ColumnSpec) (string, error) {
	if len(cols) == 0 {
		return "", fmt.Errorf("mssql: no columns")
	}
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		def, err := columnDef(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, def)
	}
	return strings.Join(parts, ", "), nil
}

func columnDef(c storage.ColumnSpec) (string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return "", fmt.Errorf("mssql: column name is empty")
	}
	if strings.TrimSpace(c.Type) == "" {
		return "", fmt.Errorf("mssql: column %s type is empty", c.Name)
	}
	return Ident(c.Name) + " " + c.Type, nil
}

// Ident returns name unchanged when SQL Server accepts it as a regular
// identifier, and bracket-quoted (']' doubled) otherwise.
func Ident(name string) string {
	if regularIdent(name) {
		return name
	}
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// TableIdent applies Ident to each part of a schema-qualified name:
//
//	"dbo.my table" -> dbo.[my table]
func TableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		p := strings.TrimSpace(parts[i])
		if len(p) > 1 && p[0] == '[' && p[len(p)-1] == ']' {
			parts[i] = p
			continue
		}
		parts[i] = Ident(p)
	}
	return strings.Join(parts, ".")
}

// regularIdent reports whether name can go unquoted: a letter, '_' or '#'
// first, then letters, digits and any of "_@#$", at most 128 characters,
// not a reserved word.
func regularIdent(name string) bool {
	if name == "" || utf8.RuneCountInString(name) > maxIdentLen || IsReserved(name) {
		return false
	}
	for i, r := range name {
		switch {
		case unicode.IsLetter(r), r == '_', r == '#':
		case unicode.IsDigit(r), r == '$', r == '@':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
