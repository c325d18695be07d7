// Package bcp writes rows as delimited text for the SQL Server bcp utility
// and BULK INSERT.
//
// Field bytes are copied through unchanged. The default separators are the
// ASCII unit (0x1F) and record (0x1E) separators, which do not occur in
// ordinary text and so need no quoting. Load a page with, for example:
//
//	bcp dbo.t in t_1.txt -c -t 0x1f -r 0x1e -S ... -T
package bcp

import (
	"github.com/bowmanjd/busser/internal/metrics"
	"github.com/bowmanjd/busser/internal/storage"
)

// Kind is the registry key of this sink.
const Kind = "bcp"

var (
	DefaultFieldSeparator = []byte{0x1F}
	DefaultRowSeparator   = []byte{0x1E}
)

func init() {
	storage.Register(Kind, New)
}

// Writer is the bcp sink.
type Writer struct {
	pager    storage.Pager
	fieldSep []byte
	rowSep   []byte
}

// New returns a Writer for cfg. Empty separators select the defaults.
func New(cfg storage.Config) (storage.Sink, error) {
	w := &Writer{
		fieldSep: cfg.FieldSeparator,
		rowSep:   cfg.RowSeparator,
	}
	if len(w.fieldSep) == 0 {
		w.fieldSep = DefaultFieldSeparator
	}
	if len(w.rowSep) == 0 {
		w.rowSep = DefaultRowSeparator
	}
	w.pager = storage.Pager{
		Path:     cfg.Path,
		PageSize: cfg.PageSize,
		OnPage:   func(string) { metrics.RecordPage(Kind) },
	}
	return w, nil
}

// WriteRow implements storage.Sink.
func (w *Writer) WriteRow(fields [][]byte) error {
	bw, _, err := w.pager.Row()
	if err != nil {
		return err
	}
	for i, f := range fields {
		if i > 0 {
			bw.Write(w.fieldSep)
		}
		bw.Write(f)
	}
	_, err = bw.Write(w.rowSep)
	return err
}

// Close implements storage.Sink.
func (w *Writer) Close() error { return w.pager.Close() }

// Files implements storage.Sink.
func (w *Writer) Files() []string { return w.pager.Files() }
