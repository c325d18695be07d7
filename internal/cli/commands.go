package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bowmanjd/busser/internal/output"
	"github.com/bowmanjd/busser/internal/parser/csv"
	"github.com/bowmanjd/busser/internal/probe"
	"github.com/bowmanjd/busser/internal/view"
)

func newColumnsCmd(a *app) *cobra.Command {
	var (
		table string
		raw   bool
		ascii bool
	)
	cmd := &cobra.Command{
		Use:   "columns <csv>",
		Short: "Show CSV columns",
		Long: `Print the header of a delimited file as SQL column names, separated by
", ". Names are cleaned the same way schema cleans them unless --raw is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := a.scanner(ascii)
			if err != nil {
				return err
			}
			s, err := csv.Open(args[0], sc)
			if err != nil {
				return err
			}
			defer s.Close()

			cols := s.Header()
			if !raw {
				cols = probe.CleanColumns(cols, probe.KeywordPrefix(table, args[0]))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(cols, ", "))
			return err
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "SQL table name (supplies the reserved-word prefix)")
	cmd.Flags().BoolVarP(&raw, "raw", "r", false, "print the header verbatim")
	cmd.Flags().BoolVarP(&ascii, "ascii", "a", false, "input is ASCII-delimited (0x1F/0x1E)")
	return cmd
}

func newSchemaCmd(a *app) *cobra.Command {
	var (
		table string
		ascii bool
		chars bool
	)
	cmd := &cobra.Command{
		Use:   "schema <csv>",
		Short: "Print a suggested SQL table schema",
		Long: `Scan the whole file once, infer the narrowest SQL Server type that holds
every value of each column, and print DROP TABLE / CREATE TABLE statements.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := a.scanner(ascii)
			if err != nil {
				return err
			}
			ddl, err := probe.Schema(args[0], table, probe.Options{
				Chars:   chars,
				Scanner: sc,
				Logger:  a.log,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ddl)
			return err
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "SQL table name")
	cmd.Flags().BoolVarP(&ascii, "ascii", "a", false, "input is ASCII-delimited (0x1F/0x1E)")
	cmd.Flags().BoolVarP(&chars, "chars", "c", false, "type every column as VARCHAR")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func newViewCmd(a *app) *cobra.Command {
	var (
		rows     string
		columns  string
		numbered bool
		ascii    bool
	)
	cmd := &cobra.Command{
		Use:   "view <csv>",
		Short: "View a CSV file as a table",
		Long: `Print selected rows and columns in a box table. Selections are
comma-separated positions and ranges counted from 1: "1-3,5", "10-".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := a.scanner(ascii)
			if err != nil {
				return err
			}
			return view.Render(cmd.OutOrStdout(), args[0], view.Options{
				Rows:     rows,
				Columns:  columns,
				Numbered: numbered,
				Scanner:  sc,
			})
		},
	}
	cmd.Flags().StringVarP(&rows, "rows", "r", "", "rows to show (e.g. 1-3,5)")
	cmd.Flags().StringVarP(&columns, "columns", "c", "", "columns to show (e.g. 2,4-)")
	cmd.Flags().BoolVarP(&numbered, "numbered", "n", false, "number rows and columns")
	cmd.Flags().BoolVarP(&ascii, "ascii", "a", false, "input is ASCII-delimited (0x1F/0x1E)")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var (
		infer bool
		utf8  bool
		ascii bool
	)
	cmd := &cobra.Command{
		Use:   "stats <csv>",
		Short: "Show statistics for a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := a.scanner(ascii)
			if err != nil {
				return err
			}
			sv, err := probe.SurveyFile(args[0], probe.Options{
				Infer:   infer,
				UTF8:    utf8,
				Scanner: sc,
				Logger:  a.log,
			})
			if err != nil {
				return err
			}
			return view.RenderStats(cmd.OutOrStdout(), sv)
		},
	}
	cmd.Flags().BoolVarP(&infer, "infer", "i", false, "infer SQL types")
	cmd.Flags().BoolVarP(&utf8, "utf8", "u", false, "measure lengths in UTF-8 characters")
	cmd.Flags().BoolVarP(&ascii, "ascii", "a", false, "input is ASCII-delimited (0x1F/0x1E)")
	return cmd
}

func newOutputCmd(a *app) *cobra.Command {
	var (
		table    string
		dest     string
		json     bool
		infer    bool
		ascii    bool
		progress bool
	)
	cmd := &cobra.Command{
		Use:   "output <csv>",
		Short: "Write bcp data files or OPENJSON scripts",
		Long: `Convert a delimited file for loading into SQL Server.

By default rows are written as bcp text (<table>.txt) with 0x1F between
fields and 0x1E after each row. With --json an INSERT ... OPENJSON script
(<table>.sql) is written instead. --pagesize splits the output into
numbered files. With --infer the CREATE TABLE statement is printed to
stdout and the script columns get the inferred types.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := a.scanner(ascii)
			if err != nil {
				return err
			}
			fieldSep, rowSep, err := a.cfg.Separators()
			if err != nil {
				return err
			}

			opt := output.Options{
				Table:          table,
				Output:         dest,
				JSON:           json,
				Infer:          infer,
				PageSize:       a.cfg.PageSize,
				Scanner:        sc,
				FieldSeparator: fieldSep,
				RowSeparator:   rowSep,
				Logger:         a.log,
			}
			if progress {
				opt.Progress = cmd.ErrOrStderr()
			}

			res, err := output.Write(cmd.Context(), args[0], opt)
			if err != nil {
				return err
			}
			if res.DDL != "" {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), res.DDL); err != nil {
					return err
				}
			}
			a.log.Info("output written", "rows", res.Rows, "files", strings.Join(res.Files, ","))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&table, "table", "t", "", "SQL table name")
	f.StringVarP(&dest, "output", "o", "", "output file or directory")
	f.BoolVarP(&json, "json", "j", false, "write an INSERT ... OPENJSON script")
	f.BoolVarP(&infer, "infer", "i", false, "infer SQL types and print the schema")
	f.IntP("pagesize", "p", 0, "rows per file (0 for no paging)")
	f.String("field-sep", "", "bcp field separator (default 0x1f)")
	f.String("row-sep", "", "bcp row separator (default 0x1e)")
	f.BoolVarP(&ascii, "ascii", "a", false, "input is ASCII-delimited (0x1F/0x1E)")
	f.BoolVar(&progress, "progress", false, "show a progress bar on stderr")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}
