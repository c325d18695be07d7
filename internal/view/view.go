// Package view prints part of a delimited file as a box-drawn table.
package view

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/bowmanjd/busser/internal/parser/csv"
)

// Options select what Render shows.
type Options struct {
	// Rows and Columns are 1-based range lists such as "1-3,5" or "10-".
	// Empty selects everything.
	Rows    string
	Columns string
	// Numbered adds a leading "#" column with row numbers and prefixes each
	// header with its column number ("2: name").
	Numbered bool
	Scanner  csv.Config
}

// Render streams path and writes the selected cells to w. Reading stops
// after the last selected row.
func Render(w io.Writer, path string, opt Options) error {
	rows, err := ParseRanges(opt.Rows)
	if err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	cols, err := ParseRanges(opt.Columns)
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}

	s, err := csv.Open(path, opt.Scanner)
	if err != nil {
		return err
	}
	defer s.Close()

	var picked []int
	for i := range s.Header() {
		if cols.Contains(i + 1) {
			picked = append(picked, i)
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	t.SetStyle(style)

	header := make(table.Row, 0, len(picked)+1)
	if opt.Numbered {
		header = append(header, "#")
	}
	for _, i := range picked {
		name := s.Header()[i]
		if opt.Numbered {
			name = strconv.Itoa(i+1) + ": " + name
		}
		header = append(header, name)
	}
	t.AppendHeader(header)

	last, bounded := rows.Last()
	shown := 0
	for n := 1; s.Scan(); n++ {
		if !rows.Contains(n) {
			if bounded && n >= last {
				break
			}
			continue
		}
		rec := s.Record()
		row := make(table.Row, 0, len(header))
		if opt.Numbered {
			row = append(row, n)
		}
		for _, i := range picked {
			row = append(row, strings.ToValidUTF8(string(rec[i]), "�"))
		}
		t.AppendRow(row)
		shown++
		if bounded && n >= last {
			break
		}
	}
	if err := s.Err(); err != nil {
		return err
	}

	t.Render()
	_, err = fmt.Fprintf(w, "(%d rows)\n", shown)
	return err
}
