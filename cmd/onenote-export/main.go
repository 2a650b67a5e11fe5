package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/romanzh1/onenote-export/internal/config"
)

// Set via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func buildVersion() string {
	if commit == "none" {
		return version
	}
	short := commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s)", version, short)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := newApp()
	err := fang.Execute(ctx, newRootCmd(a), fang.WithVersion(buildVersion()))
	a.finish(err)
	stop()

	if err != nil {
		os.Exit(1)
	}
}

// app carries what the persistent pre-run assembled to the subcommands.
type app struct {
	flags    rootFlags
	cfg      *config.Config
	logger   *zap.Logger
	closeLog func()
}

func newApp() *app {
	return &app{closeLog: func() {}}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onenote-export",
		Short: "Export OneNote notebooks to Markdown",
		Long: `Export every OneNote notebook, section and page of a Microsoft account to
Markdown files, downloading embedded images next to the pages.

Authentication uses the device code flow: the command prints a code to enter
at the Microsoft sign-in page and waits until the sign-in completes.`,
		Version:       buildVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runExport(cmd)
		},
	}

	a.flags.register(cmd)

	cmd.AddCommand(newCheckCmd(a), newHistoryCmd(a))

	return cmd
}

// finish records a failed command in the log and closes the log file. It runs
// after Execute returns, whether or not the command failed.
func (a *app) finish(err error) {
	if err != nil && a.logger != nil {
		a.logger.Error("command failed", zap.Error(err))
	}
	a.closeLog()
	a.closeLog = func() {}
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.flags.apply(cmd, cfg)

	logger, closeLog, err := newLogger(cfg.LogLevel, cfg.LogFile, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	zap.ReplaceGlobals(logger)
	a.cfg = cfg
	a.logger = logger
	a.closeLog = closeLog

	return nil
}
