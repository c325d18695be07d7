package probe

import (
	"fmt"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/bowmanjd/busser/internal/infer"
	"github.com/bowmanjd/busser/internal/logging"
	"github.com/bowmanjd/busser/internal/metrics"
	"github.com/bowmanjd/busser/internal/parser/csv"
)

// Options control a survey.
type Options struct {
	// Table is the target table name. Its first character prefixes
	// reserved-word column names; without it the file name is used.
	Table string
	// Infer enables per-column SQL type inference.
	Infer bool
	// Chars makes Schema type every column as VARCHAR instead of inferring.
	Chars bool
	// UTF8 measures character lengths in runes instead of bytes and fails
	// on invalid UTF-8.
	UTF8 bool
	// Scanner is the input dialect.
	Scanner csv.Config
	// Logger receives progress; nil discards.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// Survey is everything learned from one pass over a file.
type Survey struct {
	Path     string
	FileSize int64

	ColumnCount int
	RowCount    int

	Columns    []string // cleaned, unique SQL identifiers
	RawColumns []string // header fields as read

	// Widest value per column. CharLengths counts runes when the survey ran
	// with UTF8, otherwise it equals ByteLengths.
	CharLengths []int
	ByteLengths []int

	// Types is nil unless the survey ran with Infer.
	Types []infer.SQLType
}

// logEvery is the row interval between debug progress lines.
const logEvery = 1_000_000

// SurveyFile reads path once and returns its survey.
//
// Errors:
//   - I/O errors name the path; errors.Is(err, fs.ErrNotExist) holds for a
//     missing file.
//   - Structural problems are *csv.ParseError values carrying the line.
func SurveyFile(path string, opt Options) (sv *Survey, err error) {
	log := opt.logger()
	start := time.Now()
	defer func() { metrics.RecordStep("survey", err, time.Since(start)) }()

	s, err := csv.Open(path, opt.Scanner)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	sv = newSurvey(path, s.Header(), KeywordPrefix(opt.Table, path), opt.Infer)
	if fi, err := os.Stat(path); err == nil {
		sv.FileSize = fi.Size()
	}
	log.Debug("survey started", "path", path, "columns", sv.ColumnCount, "infer", opt.Infer)

	cells := 0
	for s.Scan() {
		rec := s.Record()
		for i, f := range rec {
			n := len(f)
			if n > sv.ByteLengths[i] {
				sv.ByteLengths[i] = n
			}
			if opt.UTF8 {
				if err := s.Valid(i); err != nil {
					return nil, err
				}
				n = utf8.RuneCount(f)
			}
			if n > sv.CharLengths[i] {
				sv.CharLengths[i] = n
			}
			if sv.Types != nil {
				col := &sv.Types[i]
				if c, ok := infer.Infer(f, col.Kind, col.Subindex); ok {
					col.Merge(c)
				}
			}
		}
		cells += len(rec)
		sv.RowCount++
		if sv.RowCount%logEvery == 0 {
			log.Debug("survey progress", "path", path, "rows", sv.RowCount)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	metrics.RecordRows("scanned", sv.RowCount)
	if sv.Types != nil {
		metrics.RecordCells(cells)
	}
	log.Info("survey finished", "path", path, "rows", sv.RowCount, "columns", sv.ColumnCount, "elapsed", time.Since(start).Round(time.Millisecond))
	return sv, nil
}

func newSurvey(path string, header []string, prefix string, withTypes bool) *Survey {
	n := len(header)
	sv := &Survey{
		Path:        path,
		ColumnCount: n,
		RawColumns:  header,
		Columns:     CleanColumns(header, prefix),
		CharLengths: make([]int, n),
		ByteLengths: make([]int, n),
	}
	if withTypes {
		sv.Types = make([]infer.SQLType, n)
	}
	return sv
}

// ColumnType renders the SQL type of column i. With chars, or when the
// survey has no inferred types, every column is VARCHAR sized to its widest
// value (at least 1), or VARCHAR(MAX) beyond 8000 bytes.
func (sv *Survey) ColumnType(i int, chars bool) string {
	if chars || sv.Types == nil {
		n := max(sv.ByteLengths[i], 1)
		if n > 8000 {
			return "VARCHAR(MAX)"
		}
		return fmt.Sprintf("VARCHAR(%d)", n)
	}
	return sv.Types[i].String()
}
