package view

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/bowmanjd/busser/internal/probe"
)

// RenderStats writes a survey summary: file, size and counts, then one line
// per column with its lengths and, when inferred, its SQL type.
func RenderStats(w io.Writer, sv *probe.Survey) error {
	_, err := fmt.Fprintf(w, "file:    %s\nsize:    %s (%s bytes)\nrows:    %s\ncolumns: %d\n",
		sv.Path,
		humanize.IBytes(uint64(sv.FileSize)),
		humanize.Comma(sv.FileSize),
		humanize.Comma(int64(sv.RowCount)),
		sv.ColumnCount,
	)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	t.SetStyle(style)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	header := table.Row{"#", "column", "raw", "chars", "bytes"}
	if sv.Types != nil {
		header = append(header, "type")
	}
	t.AppendHeader(header)

	for i := 0; i < sv.ColumnCount; i++ {
		row := table.Row{i + 1, sv.Columns[i], sv.RawColumns[i], sv.CharLengths[i], sv.ByteLengths[i]}
		if sv.Types != nil {
			row = append(row, sv.Types[i].String())
		}
		t.AppendRow(row)
	}
	t.Render()
	return nil
}
