package mssql

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bowmanjd/busser/internal/metrics"
	"github.com/bowmanjd/busser/internal/parser/csv"
	"github.com/bowmanjd/busser/internal/storage"
)

// Kind is the registry key of the OPENJSON script sink.
const Kind = "json"

// UntypedColumn is the WITH-clause type used when no types were inferred.
const UntypedColumn = "NVARCHAR(MAX)"

func init() {
	storage.Register(Kind, NewScriptWriter)
}

// ScriptWriter writes every page as one T-SQL statement:
//
//	INSERT INTO t (a, b)
//	SELECT a, b
//	FROM OPENJSON('[
//	{"a":"1","b":null}
//	]')
//	WITH (a BIT, b INT);
//
// Each row is a JSON object keyed by column name. Field values are JSON
// strings, and SQL Server converts them to the WITH-clause types. Empty
// fields are null. The JSON text sits inside a T-SQL string literal, so
// single quotes are doubled after JSON escaping.
type ScriptWriter struct {
	pager storage.Pager
	cols  []string

	keys [][]byte // `"name":` per column, already literal-escaped
	buf  bytes.Buffer
	enc  *json.Encoder
}

// NewScriptWriter builds the sink for cfg. Column types come from
// cfg.Table; empty types are written as NVARCHAR(MAX).
func NewScriptWriter(cfg storage.Config) (storage.Sink, error) {
	table := cfg.Table
	if strings.TrimSpace(table.Name) == "" {
		return nil, fmt.Errorf("mssql: table name is empty")
	}

	typed := make([]storage.ColumnSpec, len(table.Columns))
	for i, c := range table.Columns {
		if strings.TrimSpace(c.Type) == "" {
			c.Type = UntypedColumn
		}
		typed[i] = c
	}
	with, err := columnDefs(typed)
	if err != nil {
		return nil, err
	}

	w := &ScriptWriter{cols: make([]string, len(typed))}
	w.enc = json.NewEncoder(&w.buf)
	w.enc.SetEscapeHTML(false)

	idents := make([]string, len(typed))
	for i, c := range typed {
		w.cols[i] = c.Name
		idents[i] = Ident(c.Name)
		key, err := w.literal(c.Name)
		if err != nil {
			return nil, err
		}
		w.keys = append(w.keys, append(append([]byte(nil), key...), ':'))
	}
	list := strings.Join(idents, ", ")
	head := "INSERT INTO " + TableIdent(table.Name) + " (" + list + ")\nSELECT " + list + "\nFROM OPENJSON('["
	tail := "\n]')\nWITH (" + with + ");\n"

	w.pager = storage.Pager{
		Path:     cfg.Path,
		PageSize: cfg.PageSize,
		Header: func(bw *bufio.Writer, _ int) error {
			_, err := bw.WriteString(head)
			return err
		},
		Footer: func(bw *bufio.Writer, _ int) error {
			_, err := bw.WriteString(tail)
			return err
		},
		OnPage: func(string) { metrics.RecordPage(Kind) },
	}
	return w, nil
}

// WriteRow implements storage.Sink. A field that is not valid UTF-8 fails
// with csv.ErrEncoding.
func (w *ScriptWriter) WriteRow(fields [][]byte) error {
	if len(fields) != len(w.cols) {
		return fmt.Errorf("mssql: row has %d fields, table has %d columns", len(fields), len(w.cols))
	}
	for i, f := range fields {
		if !utf8.Valid(f) {
			return fmt.Errorf("column %s: %w", w.cols[i], csv.ErrEncoding)
		}
	}

	bw, pos, err := w.pager.Row()
	if err != nil {
		return err
	}
	if pos > 0 {
		bw.WriteByte(',')
	}
	bw.WriteString("\n{")
	for i, f := range fields {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.Write(w.keys[i])
		if len(f) == 0 {
			bw.WriteString("null")
			continue
		}
		v, err := w.literal(string(f))
		if err != nil {
			return err
		}
		bw.Write(v)
	}
	_, err = bw.WriteString("}")
	return err
}

// literal JSON-encodes s as a string and doubles single quotes. The
// returned slice aliases an internal buffer until the next call.
func (w *ScriptWriter) literal(s string) ([]byte, error) {
	w.buf.Reset()
	if err := w.enc.Encode(s); err != nil {
		return nil, err
	}
	out := bytes.TrimSuffix(w.buf.Bytes(), []byte{'\n'})
	if bytes.IndexByte(out, '\'') >= 0 {
		out = bytes.ReplaceAll(out, []byte{'\''}, []byte("''"))
	}
	return out, nil
}

// Close implements storage.Sink.
func (w *ScriptWriter) Close() error { return w.pager.Close() }

// Files implements storage.Sink.
func (w *ScriptWriter) Files() []string { return w.pager.Files() }
