// Package config assembles the exporter configuration from defaults, an
// optional YAML file, the environment (including a .env file) and flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/romanzh1/onenote-export/pkg/onenote"
)

const (
	DefaultFile       = "onenote-export.yaml"
	DefaultEnvFile    = ".env"
	ClientIDHolder    = "YOUR_CLIENT_ID_HERE"
	envPrefix         = "ONENOTE_"
	defaultMediaBytes = 10 << 20
)

var ErrMissingClientID = errors.New(`client id is not configured

To get a client id:
  1. Go to https://portal.azure.com
  2. Navigate to Azure Active Directory > App registrations
  3. Create a new registration or use an existing one
  4. Copy the Application (client) ID
  5. Add the API permission Microsoft Graph > Delegated > Notes.Read
  6. Set ONENOTE_CLIENT_ID, client_id in the config file or --client-id`)

type Config struct {
	ClientID       string   `yaml:"client_id"`
	Tenant         string   `yaml:"tenant"`
	Scopes         []string `yaml:"scopes"`
	OutputDir      string   `yaml:"output_dir"`
	MaxRetries     int      `yaml:"max_retries"`
	BaseDelay      Seconds  `yaml:"base_delay"`
	GraphURL       string   `yaml:"graph_url"`
	LogLevel       string   `yaml:"log_level"`
	LogFile        string   `yaml:"log_file"`
	MediaMaxBytes  int64    `yaml:"media_max_bytes"`
	MediaTimeout   Seconds  `yaml:"media_timeout"`
	JournalDSN     string   `yaml:"journal_dsn"`
	TelegramToken  string   `yaml:"telegram_token"`
	TelegramChatID int64    `yaml:"telegram_chat_id"`
}

func Default() *Config {
	return &Config{
		ClientID:      ClientIDHolder,
		Tenant:        "consumers",
		Scopes:        []string{"Notes.Read", "User.Read"},
		OutputDir:     "output",
		MaxRetries:    3,
		BaseDelay:     Seconds(time.Second),
		GraphURL:      "https://graph.microsoft.com/v1.0",
		LogLevel:      "info",
		LogFile:       "onenote_export.log",
		MediaMaxBytes: defaultMediaBytes,
		MediaTimeout:  Seconds(30 * time.Second),
	}
}

// Load layers the YAML file at path and the environment over the defaults.
// An empty path falls back to DefaultFile when it exists. envFiles default
// to DefaultEnvFile; missing env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file (path: %s): %w", f, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file (path: %s): %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file (path: %s): %w", path, err)
	}

	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	str("CLIENT_ID", &c.ClientID)
	str("TENANT", &c.Tenant)
	str("OUTPUT_DIR", &c.OutputDir)
	str("GRAPH_URL", &c.GraphURL)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)
	str("JOURNAL_DSN", &c.JournalDSN)
	str("TELEGRAM_TOKEN", &c.TelegramToken)

	if v, ok := lookup(envPrefix + "SCOPES"); ok && v != "" {
		c.Scopes = SplitScopes(v)
	}

	var errs []error
	if v, ok := lookup(envPrefix + "MAX_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %sMAX_RETRIES: %w", envPrefix, err))
		}
		c.MaxRetries = n
	}
	if v, ok := lookup(envPrefix + "MEDIA_MAX_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %sMEDIA_MAX_BYTES: %w", envPrefix, err))
		}
		c.MediaMaxBytes = n
	}
	if v, ok := lookup(envPrefix + "TELEGRAM_CHAT_ID"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %sTELEGRAM_CHAT_ID: %w", envPrefix, err))
		}
		c.TelegramChatID = n
	}
	if v, ok := lookup(envPrefix + "BASE_DELAY"); ok && v != "" {
		if err := c.BaseDelay.Set(v); err != nil {
			errs = append(errs, fmt.Errorf("parse %sBASE_DELAY: %w", envPrefix, err))
		}
	}
	if v, ok := lookup(envPrefix + "MEDIA_TIMEOUT"); ok && v != "" {
		if err := c.MediaTimeout.Set(v); err != nil {
			errs = append(errs, fmt.Errorf("parse %sMEDIA_TIMEOUT: %w", envPrefix, err))
		}
	}

	return errors.Join(errs...)
}

// SplitScopes accepts scopes separated by commas and/or whitespace.
func SplitScopes(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

func (c *Config) Validate() error {
	var errs []error

	if id := strings.TrimSpace(c.ClientID); id == "" || id == ClientIDHolder {
		errs = append(errs, ErrMissingClientID)
	}
	if len(c.Scopes) == 0 {
		errs = append(errs, errors.New("at least one scope is required"))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if c.MaxRetries < 0 || c.MaxRetries > onenote.MaxRetriesLimit {
		errs = append(errs, fmt.Errorf("max_retries must be between 0 and %d, got %d", onenote.MaxRetriesLimit, c.MaxRetries))
	}
	if c.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("base_delay must be >= 0, got %s", c.BaseDelay))
	}
	if c.MediaMaxBytes < 0 {
		errs = append(errs, fmt.Errorf("media_max_bytes must be >= 0, got %d", c.MediaMaxBytes))
	}
	if c.MediaTimeout < 0 {
		errs = append(errs, fmt.Errorf("media_timeout must be >= 0, got %s", c.MediaTimeout))
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == 0) {
		errs = append(errs, errors.New("telegram_token and telegram_chat_id must be set together"))
	}

	return errors.Join(errs...)
}

func (c *Config) NotifyEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func (c *Config) JournalEnabled() bool {
	return c.JournalDSN != ""
}
