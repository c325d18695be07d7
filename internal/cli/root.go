// Package cli provides the busser command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bowmanjd/busser/internal/config"
	"github.com/bowmanjd/busser/internal/logging"
	"github.com/bowmanjd/busser/internal/metrics"
	"github.com/bowmanjd/busser/internal/metrics/datadog"
	"github.com/bowmanjd/busser/internal/parser/csv"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// app is the state shared by the subcommands of one invocation.
type app struct {
	cfgFile string
	cfg     *config.Config
	log     *slog.Logger

	// shutdown releases the metrics backend; nil when metrics are off.
	shutdown func() error
}

// NewRootCmd creates the root command and its subcommands.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "busser",
		Short: "Prepare delimited files for SQL Server",
		Long: `busser reads CSV and ASCII-delimited files and prepares them for SQL Server:
it infers column types, prints CREATE TABLE statements, and writes bcp data
files or INSERT ... OPENJSON scripts.`,
		Version: Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
			return errors.New("a command is required")
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./busser.yaml)")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-format", "", "log format (text|json)")
	pf.String("metrics", "", "metrics backend (none|datadog)")
	pf.String("metrics-tags", "", "extra metric tags, comma separated (team:data,host:etl1)")
	pf.String("delimiter", "", `input field delimiter (",", "tab", "0x1f")`)
	pf.String("quote", "", "input quote character")
	pf.String("terminator", "", `input record terminator ("crlf" for any line ending, "0x1e")`)
	pf.String("encoding", "", "input encoding (utf-8, latin1, windows-1252, utf-16le, ...)")

	root.AddCommand(
		newColumnsCmd(a),
		newSchemaCmd(a),
		newViewCmd(a),
		newStatsCmd(a),
		newOutputCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and starts logging and metrics.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, used, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if used != "" {
		a.log.Debug("config loaded", "file", used)
	}

	switch strings.ToLower(cfg.Metrics) {
	case "datadog":
		tags := datadog.ParseTagsCSV(cfg.MetricsTags)
		b, err := datadog.NewBackend(context.WithoutCancel(cmd.Context()), datadog.Options{
			JobName: "busser_" + cmd.Name(),
			Tags:    tags,
		})
		if err != nil {
			a.log.Warn("metrics disabled", "backend", cfg.Metrics, "err", err)
			return nil
		}
		a.log.Debug("metrics enabled", "backend", cfg.Metrics, "tags", tags)
		metrics.SetBackend(b)
		a.shutdown = func() error {
			defer metrics.SetBackend(nil)
			return b.Close()
		}
	default:
		a.log.Debug("metrics disabled", "backend", cfg.Metrics)
	}
	return nil
}

// close flushes metrics. Failures are logged, never returned, so they do
// not change the exit status of a command that worked.
func (a *app) close() {
	if a.shutdown == nil {
		return
	}
	if err := a.shutdown(); err != nil {
		a.log.Warn("metrics flush failed", "err", err)
	}
	a.shutdown = nil
}

// scanner returns the input dialect for a command; ascii overrides the
// configured delimiter and terminator.
func (a *app) scanner(ascii bool) (csv.Config, error) {
	return a.cfg.Scanner(ascii)
}

// Execute runs busser with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "busser %s (%s)\n", Version, GitCommit)
		},
	}
}
