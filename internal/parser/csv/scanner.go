// Package csv reads delimited text as raw byte records.
//
// It exists next to encoding/csv because busser inputs are not limited to
// RFC 4180: the record terminator may be any single byte (0x1E for
// ASCII-delimited files) and field values are handed out as raw bytes so the
// type classifiers can inspect them without allocating.
package csv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const (
	// UnitSeparator is the ASCII-delimited field delimiter.
	UnitSeparator byte = 0x1F
	// RecordSeparator is the ASCII-delimited record terminator.
	RecordSeparator byte = 0x1E
)

const bom = "\xEF\xBB\xBF"

var (
	ErrFieldCount = errors.New("wrong number of fields")
	ErrQuote      = errors.New("unterminated quoted field")
	ErrEncoding   = errors.New("invalid UTF-8")
)

// Config describes the input dialect.
type Config struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter byte
	// Quote wraps fields containing delimiters or terminators; a doubled
	// quote inside a quoted field is a literal quote. Zero means '"'.
	Quote byte
	// Terminator ends a record. Zero selects CRLF mode, where "\n", "\r\n"
	// and "\r" all end a record.
	Terminator byte
	// Encoding names the input character set (WHATWG labels such as
	// "latin1", "windows-1252", "utf-16le"). Empty or "utf-8" reads bytes
	// as they are.
	Encoding string
}

// ASCIIDelimited returns the 0x1F/0x1E dialect.
func ASCIIDelimited() Config {
	return Config{Delimiter: UnitSeparator, Terminator: RecordSeparator}
}

func (c Config) withDefaults() Config {
	if c.Delimiter == 0 {
		c.Delimiter = ','
	}
	if c.Quote == 0 {
		c.Quote = '"'
	}
	return c
}

// ParseError reports a structural problem with one record.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Scanner reads one record at a time. The header is consumed when the
// scanner is created.
//
// Usage mirrors bufio.Scanner:
//
//	s, err := csv.Open(path, cfg)
//	if err != nil { ... }
//	defer s.Close()
//	for s.Scan() {
//		rec := s.Record() // valid until the next Scan
//	}
//	if err := s.Err(); err != nil { ... }
type Scanner struct {
	cfg    Config
	path   string
	r      *bufio.Reader
	closer io.Closer

	header []string
	line   int // line of the record most recently read
	next   int // line the next record starts on

	buf    []byte
	ends   []int
	fields [][]byte

	err  error
	done bool
}

// Open opens path and reads its header row.
//
// Errors:
//   - I/O failures are wrapped with the path; errors.Is(err, fs.ErrNotExist)
//     holds for a missing file.
//   - A malformed header is a *ParseError.
func Open(path string, cfg Config) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read csv from %q: %w", path, err)
	}
	s, err := newScanner(f, path, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewScanner reads the header row from r.
func NewScanner(r io.Reader, cfg Config) (*Scanner, error) {
	return newScanner(r, "", cfg)
}

func newScanner(r io.Reader, path string, cfg Config) (*Scanner, error) {
	cfg = cfg.withDefaults()

	if name := strings.ToLower(strings.TrimSpace(cfg.Encoding)); name != "" && name != "utf-8" && name != "utf8" {
		enc, err := htmlindex.Get(name)
		if err != nil {
			return nil, fmt.Errorf("input encoding %q: %w", cfg.Encoding, err)
		}
		r = transform.NewReader(r, enc.NewDecoder())
	}

	s := &Scanner{
		cfg:  cfg,
		path: path,
		r:    bufio.NewReaderSize(r, 64*1024),
		next: 1,
	}
	if p, _ := s.r.Peek(len(bom)); string(p) == bom {
		s.r.Discard(len(bom))
	}

	ok, err := s.read()
	if err != nil {
		return nil, err
	}
	if !ok {
		s.done = true
		return s, nil
	}

	s.header = make([]string, len(s.fields))
	for i, f := range s.fields {
		if !utf8.Valid(f) {
			return nil, s.parseError(fmt.Errorf("header field %d: %w", i+1, ErrEncoding))
		}
		s.header[i] = string(f)
	}
	return s, nil
}

// Header returns the header fields. An empty input has no header.
func (s *Scanner) Header() []string { return s.header }

// Path returns the file name given to Open, if any.
func (s *Scanner) Path() string { return s.path }

// Scan advances to the next data record. It returns false at the end of the
// input or on the first error.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	ok, err := s.read()
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	if !ok {
		s.done = true
		return false
	}
	if len(s.fields) != len(s.header) {
		s.err = s.parseError(fmt.Errorf("%w: expected %d, got %d", ErrFieldCount, len(s.header), len(s.fields)))
		s.done = true
		return false
	}
	return true
}

// Record returns the fields of the current record. The slices alias an
// internal buffer that the next call to Scan overwrites.
func (s *Scanner) Record() [][]byte { return s.fields }

// Text returns field i of the current record as a string. It fails with
// ErrEncoding when the field is not valid UTF-8.
func (s *Scanner) Text(i int) (string, error) {
	if err := s.Valid(i); err != nil {
		return "", err
	}
	return string(s.fields[i]), nil
}

// Valid checks that field i of the current record is valid UTF-8.
func (s *Scanner) Valid(i int) error {
	if !utf8.Valid(s.fields[i]) {
		return s.parseError(fmt.Errorf("field %d: %w", i+1, ErrEncoding))
	}
	return nil
}

// Line returns the line on which the current record starts. The header is
// line 1. In single-byte terminator mode lines count records.
func (s *Scanner) Line() int { return s.line }

// Err returns the first error encountered by Scan.
func (s *Scanner) Err() error { return s.err }

// Close releases the file opened by Open.
func (s *Scanner) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

func (s *Scanner) parseError(err error) error {
	return &ParseError{Path: s.path, Line: s.line, Err: err}
}

func (s *Scanner) ioError(err error) error {
	if s.path == "" {
		return fmt.Errorf("read csv: %w", err)
	}
	return fmt.Errorf("read csv from %q: %w", s.path, err)
}

// read parses the next non-empty record into s.fields. It returns false at
// a clean end of input.
func (s *Scanner) read() (bool, error) {
	var (
		quote    = s.cfg.Quote
		delim    = s.cfg.Delimiter
		term     = s.cfg.Terminator
		crlf     = term == 0
		inQuote  bool
		quoted   bool // current field opened with a quote
		consumed int  // bytes of the current record, terminator excluded
	)

	s.buf = s.buf[:0]
	s.ends = s.ends[:0]
	s.line = s.next
	fieldStart := 0

	endField := func() {
		s.ends = append(s.ends, len(s.buf))
		fieldStart = len(s.buf)
		quoted = false
	}

	for {
		c, err := s.r.ReadByte()
		if err == io.EOF {
			if inQuote {
				return false, s.parseError(ErrQuote)
			}
			if consumed == 0 {
				return false, nil
			}
			endField()
			s.finish()
			return true, nil
		}
		if err != nil {
			return false, s.ioError(err)
		}

		if inQuote {
			if c == quote {
				if p, err := s.r.Peek(1); err == nil && p[0] == quote {
					s.r.ReadByte()
					consumed++
					s.buf = append(s.buf, quote)
				} else {
					inQuote = false
				}
				consumed++
				continue
			}
			if c == '\n' && crlf {
				s.next++
			}
			s.buf = append(s.buf, c)
			consumed++
			continue
		}

		isTerm := (crlf && (c == '\n' || c == '\r')) || (!crlf && c == term)
		if isTerm {
			if crlf && c == '\r' {
				if p, err := s.r.Peek(1); err == nil && p[0] == '\n' {
					s.r.ReadByte()
				}
			}
			s.next++
			if consumed == 0 {
				s.line = s.next
				continue
			}
			endField()
			s.finish()
			return true, nil
		}

		consumed++
		switch {
		case c == delim:
			endField()
		case c == quote && len(s.buf) == fieldStart && !quoted:
			inQuote, quoted = true, true
		default:
			s.buf = append(s.buf, c)
		}
	}
}

// finish slices s.buf into s.fields along s.ends.
func (s *Scanner) finish() {
	s.fields = s.fields[:0]
	start := 0
	for _, end := range s.ends {
		s.fields = append(s.fields, s.buf[start:end:end])
		start = end
	}
}
