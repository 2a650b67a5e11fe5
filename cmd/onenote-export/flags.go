package main

import (
	"github.com/spf13/cobra"

	"github.com/romanzh1/onenote-export/internal/config"
)

type rootFlags struct {
	configPath string
	clientID   string
	tenant     string
	outputDir  string
	maxRetries int
	baseDelay  config.Seconds
	logLevel   string
	logFile    string
	journalDSN string
}

func (f *rootFlags) register(cmd *cobra.Command) {
	defaults := config.Default()
	f.baseDelay = defaults.BaseDelay

	flags := cmd.PersistentFlags()
	flags.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file (default "+config.DefaultFile+" if present)")
	flags.StringVar(&f.clientID, "client-id", "", "Azure AD application (client) ID")
	flags.StringVar(&f.tenant, "tenant", defaults.Tenant, "Azure AD tenant or authority")
	flags.StringVarP(&f.outputDir, "output", "o", defaults.OutputDir, "output directory")
	flags.IntVar(&f.maxRetries, "max-retries", defaults.MaxRetries, "retries per Graph request")
	flags.Var(&f.baseDelay, "base-delay", "initial backoff delay, seconds or a duration")
	flags.StringVar(&f.logLevel, "log-level", defaults.LogLevel, "log level: debug, info, warn or error")
	flags.StringVar(&f.logFile, "log-file", defaults.LogFile, "log file path, empty to disable")
	flags.StringVar(&f.journalDSN, "journal-dsn", "", "Postgres DSN of the export journal")
}

// apply overrides cfg with the flags the user actually set.
func (f *rootFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		flag := cmd.Flags().Lookup(name)
		return flag != nil && flag.Changed
	}

	if changed("client-id") {
		cfg.ClientID = f.clientID
	}
	if changed("tenant") {
		cfg.Tenant = f.tenant
	}
	if changed("output") {
		cfg.OutputDir = f.outputDir
	}
	if changed("max-retries") {
		cfg.MaxRetries = f.maxRetries
	}
	if changed("base-delay") {
		cfg.BaseDelay = f.baseDelay
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if changed("journal-dsn") {
		cfg.JournalDSN = f.journalDSN
	}
}
