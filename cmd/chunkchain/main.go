// chunkchain splits payloads into checksum-linked chunk lists and echoes
// them to a local sink.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kk-code-lab/chunkchain/internal/config"
	"github.com/kk-code-lab/chunkchain/internal/meta"
	"github.com/kk-code-lab/chunkchain/internal/metrics"
	"github.com/kk-code-lab/chunkchain/internal/session"
	"github.com/kk-code-lab/chunkchain/internal/sink"
	"github.com/kk-code-lab/chunkchain/pkg/bytesize"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

// app holds state shared by all subcommands of one invocation.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfgFile    string
	logLevel   string
	chunkSize  bytesize.Size
	sinkPath   string
	ledgerPath string
	jsonOut    bool

	cfg     *config.Config
	sink    *sink.FileSink
	ledger  *meta.Store
	metrics *metrics.SessionMetrics
	session *session.Session
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	err := a.rootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	var ece *exitCodeError
	if !errors.As(err, &ece) || !ece.Quiet() {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	stop()
	os.Exit(exitCode(err))
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chunkchain",
		Short: "Chunked, checksum-linked payload lists",
		Long: `chunkchain splits a file into fixed-size chunks held in a singly-linked list.
Every chunk carries the SHA-256 of the chunk that follows it, so the list can
verify itself. The reduced payload can be "sent" to a local sink file.

Examples:
  chunkchain split example.bin --chunk-size 2MiB
  chunkchain send example.bin --sink received_file.bin
  chunkchain delete notes.txt --chunk-size 1 a b
  chunkchain word cat
  chunkchain verify example.bin --against received_file.bin
  chunkchain shell`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitCodeError{code: exitUsage, msg: err.Error()}
	})
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file path")
	flags.StringVarP(&a.logLevel, "log-level", "l", "", "log level (overrides config)")
	flags.Var(&a.chunkSize, "chunk-size", "chunk size, e.g. 2MiB or 1 (overrides config)")
	flags.StringVar(&a.sinkPath, "sink", "", "sink file path (overrides config)")
	flags.StringVar(&a.ledgerPath, "ledger", "", `send ledger database path, "off" or empty disables (overrides config)`)
	flags.BoolVar(&a.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		a.splitCmd(),
		a.sendCmd(),
		a.receiveCmd(),
		a.deleteCmd(),
		a.wordCmd(),
		a.verifyCmd(),
		a.statusCmd(),
		a.historyCmd(),
		a.shellCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		// version needs no config or session
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chunkchain %s (commit %s)\n", Version, Commit)
		},
	}
}

// setup loads configuration, applies flag overrides, configures logging
// and builds the session used by the subcommand.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("chunk-size") {
		cfg.ChunkSize = a.chunkSize
	}
	if a.sinkPath != "" {
		cfg.SinkPath = a.sinkPath
	}
	if flags.Changed("ledger") {
		cfg.LedgerPath = a.ledgerPath
		if cfg.LedgerPath == config.LedgerOff {
			cfg.LedgerPath = ""
		}
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return &exitCodeError{code: exitUsage, msg: err.Error()}
	}
	a.cfg = cfg
	a.setupLogging()

	a.sink = sink.NewFileSink(cfg.SinkPath, log.Logger)
	if cfg.LedgerPath != "" {
		store, err := meta.Open(cfg.LedgerPath)
		if err != nil {
			return fmt.Errorf("ledger open: %w", err)
		}
		a.ledger = store
	}
	a.metrics = metrics.New()
	a.session, err = session.New(session.Options{
		ChunkSize:    int(cfg.ChunkSize.Bytes()),
		Sink:         a.sink,
		Ledger:       a.ledger,
		Metrics:      a.metrics,
		Logger:       log.Logger,
		VerifyOnLoad: cfg.ShouldVerifyOnLoad(),
	})
	if err != nil {
		_ = a.close()
		return err
	}
	log.Debug().
		Str("sink", cfg.SinkPath).
		Str("ledger", cfg.LedgerPath).
		Str("chunk_size", cfg.ChunkSize.String()).
		Msg("session ready")
	return nil
}

func (a *app) setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(a.cfg.Level())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: a.errOut})
}

func (a *app) close() error {
	if a.ledger == nil {
		return nil
	}
	err := errors.Join(a.ledger.Flush(), a.ledger.Close())
	a.ledger = nil
	return err
}

// emit prints v as JSON when --json is set, otherwise calls text.
func (a *app) emit(w io.Writer, v any, text func(io.Writer) error) error {
	if a.jsonOut {
		return writeJSON(w, v)
	}
	return text(w)
}
