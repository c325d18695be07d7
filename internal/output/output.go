// Package output converts a delimited file into load artifacts for SQL
// Server: bcp data files or INSERT ... OPENJSON scripts, optionally split
// into pages.
package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/bowmanjd/busser/internal/logging"
	"github.com/bowmanjd/busser/internal/metrics"
	"github.com/bowmanjd/busser/internal/parser/csv"
	"github.com/bowmanjd/busser/internal/probe"
	"github.com/bowmanjd/busser/internal/storage"
	"github.com/bowmanjd/busser/internal/storage/bcp"
	"github.com/bowmanjd/busser/internal/storage/mssql"
)

// Options control a conversion.
type Options struct {
	// Table is the target table; it names the default output file and the
	// INSERT target.
	Table string
	// Output is a file path, an existing directory, or empty for
	// "<table>.<ext>" in the working directory.
	Output string
	// JSON selects the OPENJSON script format instead of bcp text.
	JSON bool
	// Infer surveys the file first and produces DDL; JSON scripts then use
	// the inferred column types.
	Infer bool
	// PageSize is rows per output file; 0 writes a single file.
	PageSize int

	Scanner        csv.Config
	FieldSeparator []byte
	RowSeparator   []byte

	// Progress, when set, receives a row progress bar.
	Progress io.Writer
	Logger   *slog.Logger
}

// Result describes what Write produced.
type Result struct {
	Files []string
	Rows  int
	// DDL is the CREATE TABLE script; empty unless Options.Infer.
	DDL string
}

// Extension returns the file extension for the selected format.
func (o Options) Extension() string {
	if o.JSON {
		return "sql"
	}
	return "txt"
}

func (o Options) kind() string {
	if o.JSON {
		return mssql.Kind
	}
	return bcp.Kind
}

// ResolvePath picks the output file:
//   - empty output: "<table>.<ext>"
//   - an existing directory: "<output>/<table>.<ext>"
//   - anything else is the file itself
func ResolvePath(output, table, ext string) (string, error) {
	name := table + "." + ext
	if output == "" {
		return name, nil
	}
	fi, err := os.Stat(output)
	switch {
	case err == nil && fi.IsDir():
		return filepath.Join(output, name), nil
	case err == nil || os.IsNotExist(err):
		return output, nil
	default:
		return "", fmt.Errorf("output path %q: %w", output, err)
	}
}

// Write converts path according to opt. ctx is checked between the survey
// and the conversion and every 64k rows.
func Write(ctx context.Context, path string, opt Options) (res *Result, err error) {
	log := opt.Logger
	if log == nil {
		log = logging.Discard()
	}
	if opt.Table == "" {
		return nil, fmt.Errorf("output: table name is required")
	}
	if opt.PageSize < 0 {
		return nil, fmt.Errorf("output: page size must not be negative")
	}

	dest, err := ResolvePath(opt.Output, opt.Table, opt.Extension())
	if err != nil {
		return nil, err
	}

	res = &Result{}
	spec, total, err := prepare(path, opt, res)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.RecordStep("output", err, time.Since(start)) }()

	s, err := csv.Open(path, opt.Scanner)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	sink, err := storage.New(storage.Config{
		Kind:           opt.kind(),
		Path:           dest,
		Table:          spec,
		PageSize:       opt.PageSize,
		FieldSeparator: opt.FieldSeparator,
		RowSeparator:   opt.RowSeparator,
	})
	if err != nil {
		return nil, err
	}

	bar := newBar(opt.Progress, total, filepath.Base(path))
	log.Debug("output started", "path", path, "dest", dest, "format", opt.kind(), "page_size", opt.PageSize)

	for s.Scan() {
		if err := sink.WriteRow(s.Record()); err != nil {
			sink.Close()
			return nil, fmt.Errorf("%s:%d: %w", path, s.Line(), err)
		}
		res.Rows++
		if bar != nil {
			bar.Add(1)
		}
		if res.Rows%65536 == 0 {
			if err := ctx.Err(); err != nil {
				sink.Close()
				return nil, err
			}
		}
	}
	if err := s.Err(); err != nil {
		sink.Close()
		return nil, err
	}
	if err := sink.Close(); err != nil {
		return nil, err
	}
	if bar != nil {
		bar.Finish()
	}

	res.Files = sink.Files()
	metrics.RecordRows("written", res.Rows)
	log.Info("output finished", "path", path, "rows", res.Rows, "files", len(res.Files), "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// prepare works out the target table. With Infer it surveys the file and
// fills res.DDL; otherwise only the header is read and column types are
// left empty. total is the row count when known, else -1.
func prepare(path string, opt Options, res *Result) (spec storage.TableSpec, total int64, err error) {
	if opt.Infer {
		sv, err := probe.SurveyFile(path, probe.Options{
			Table:   opt.Table,
			Infer:   true,
			Scanner: opt.Scanner,
			Logger:  opt.Logger,
		})
		if err != nil {
			return spec, 0, err
		}
		if res.DDL, err = sv.Schema(opt.Table, false); err != nil {
			return spec, 0, err
		}
		return sv.TableSpec(opt.Table, false), int64(sv.RowCount), nil
	}

	s, err := csv.Open(path, opt.Scanner)
	if err != nil {
		return spec, 0, err
	}
	defer s.Close()

	spec.Name = opt.Table
	for _, name := range probe.CleanColumns(s.Header(), probe.KeywordPrefix(opt.Table, path)) {
		spec.Columns = append(spec.Columns, storage.ColumnSpec{Name: name})
	}
	return spec, -1, nil
}

func newBar(w io.Writer, total int64, name string) *progressbar.ProgressBar {
	if w == nil {
		return nil
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("writing "+name),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}
