// Command sheetintake reviews spreadsheets before they are handed to the
// storage service.
//
// It reads a workbook (.xlsx, .csv/.tsv, or an HTML table export), detects
// each sheet's header row, sanitizes column names, infers column types and
// scores the result. From there the plan can be printed, turned into
// ingestion payloads, loaded into a local database, or submitted to the
// storage service together with the file.
//
// # Configuration
//
// Settings come from built-in defaults, then the YAML file named by --config,
// then environment variables (SHEETINTAKE_API_URL, SHEETINTAKE_API_TOKEN,
// SHEETINTAKE_BACKEND, DSN, METRICS_BACKEND, DD_TAGS), then flags.
//
// # Metrics
//
// With --metrics datadog (or METRICS_BACKEND=datadog) counters and histograms
// are buffered and submitted to Datadog periodically and once more at exit.
// DD_API_KEY and DD_SITE are read by the Datadog client.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"sheetintake/internal/config"
	"sheetintake/internal/metrics"
	"sheetintake/internal/metrics/datadog"

	// Register every storage backend; --backend picks one at runtime.
	_ "sheetintake/internal/storage/mssql"
	_ "sheetintake/internal/storage/postgres"
	_ "sheetintake/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries the state shared by all subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer
	log    *log.Logger

	cfgPath        string
	metricsBackend string
	ddTags         string
	verbose        bool

	cfg          config.Config
	closeMetrics func()
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		log:    log.New(stderr, "sheetintake: ", 0),
	}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.closeMetrics != nil {
		a.closeMetrics()
	}
	if err != nil {
		a.log.Printf("%v", err)
		return 1
	}
	return 0
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sheetintake",
		Short:         "Infer, review and submit spreadsheet import plans",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "YAML config file")
	pf.StringVar(&a.metricsBackend, "metrics", "", "metrics backend: none|datadog (overrides METRICS_BACKEND)")
	pf.StringVar(&a.ddTags, "dd-tags", "", "extra Datadog tags, comma-separated (overrides DD_TAGS)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(
		a.inferCmd(),
		a.payloadCmd(),
		a.loadCmd(),
		a.submitCmd(),
		a.previewCmd(),
		a.configCmd(),
	)
	return root
}

// setup resolves configuration (defaults < file < env < flags) and starts
// the metrics backend.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("metrics") {
		cfg.Metrics.Backend = a.metricsBackend
	}
	if flags.Changed("dd-tags") {
		cfg.Metrics.DatadogTags = a.ddTags
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	a.startMetrics(cmd.Context())
	return nil
}

func (a *app) startMetrics(ctx context.Context) {
	switch a.cfg.Metrics.Backend {
	case "datadog":
		tags := datadog.ParseTagsCSV(a.cfg.Metrics.DatadogTags)
		b, err := datadog.NewBackend(context.WithoutCancel(ctx), datadog.Options{
			JobName:    "sheetintake",
			Tags:       tags,
			FlushEvery: 30 * time.Second,
		})
		if err != nil {
			a.log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		a.debugf("metrics: backend=datadog tags=%v", tags)
		metrics.SetBackend(b)
		a.closeMetrics = func() {
			if err := b.Close(); err != nil {
				a.log.Printf("metrics: datadog close/flush error: %v", err)
			}
			metrics.SetBackend(nil)
		}
	default:
		// metrics disabled; nop backend remains
	}
}

// printfLogger matches the Logger interfaces of the library packages.
type printfLogger interface {
	Printf(format string, v ...any)
}

// libLogger is handed to library packages; nil (silent) unless --verbose.
func (a *app) libLogger() printfLogger {
	if !a.verbose {
		return nil
	}
	return a.log
}

func (a *app) debugf(format string, v ...any) {
	if a.verbose {
		a.log.Printf(format, v...)
	}
}
