package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultTemplate is the notification body used when no template is
// configured. Placeholders are text/template fields on the call map.
const DefaultTemplate = `*** Logged by Out of Hours Support - {{.status}} ***
User: {{.user}}

{{.problem}}

Initial Contact Time : {{.time}}
Watchman call reference number : {{.reference}}`

// Template error policies.
const (
	PolicySkip  = "skip"
	PolicyAbort = "abort"
)

// IMAPConfig holds the inbound mailbox settings.
type IMAPConfig struct {
	Host    string `mapstructure:"host" yaml:"host"`
	Port    string `mapstructure:"port" yaml:"port"`
	TLS     bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`

	// SinceDays bounds the search window; 0 fetches the whole mailbox.
	SinceDays int `mapstructure:"since_days" yaml:"since_days"`
}

// SMTPConfig holds the outbound relay settings.
type SMTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`

	// TLS selects implicit TLS. When false the session is upgraded with
	// STARTTLS if the server advertises it.
	TLS bool `mapstructure:"tls" yaml:"tls"`
}

// AccountConfig holds the shared mailbox credentials.
type AccountConfig struct {
	// Username is the login for both IMAP and SMTP.
	Username string `mapstructure:"username" yaml:"username"`

	// Address is the envelope sender of relayed calls.
	Address string `mapstructure:"address" yaml:"address"`

	// Password may be left empty, in which case it is read from the
	// system keyring.
	Password string `mapstructure:"password" yaml:"password"`
}

// TimeoutConfig bounds each blocking stage of a run, in seconds.
type TimeoutConfig struct {
	FetchSec int `mapstructure:"fetch_sec" yaml:"fetch_sec"`
	SendSec  int `mapstructure:"send_sec" yaml:"send_sec"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP    IMAPConfig    `mapstructure:"imap" yaml:"imap"`
	SMTP    SMTPConfig    `mapstructure:"smtp" yaml:"smtp"`
	Account AccountConfig `mapstructure:"account" yaml:"account"`

	Recipient      string `mapstructure:"recipient" yaml:"recipient"`
	DebugRecipient string `mapstructure:"debug_recipient" yaml:"debug_recipient"`
	Debug          bool   `mapstructure:"debug" yaml:"debug"`

	WorkDir       string `mapstructure:"work_dir" yaml:"work_dir"`
	AttachmentDir string `mapstructure:"attachment_dir" yaml:"attachment_dir"`
	MarkerDir     string `mapstructure:"marker_dir" yaml:"marker_dir"`
	MarkerPrefix  string `mapstructure:"marker_prefix" yaml:"marker_prefix"`
	StatsFile     string `mapstructure:"stats_file" yaml:"stats_file"`
	LedgerDB      string `mapstructure:"ledger_db" yaml:"ledger_db"`

	AttachmentExtensions []string `mapstructure:"attachment_extensions" yaml:"attachment_extensions"`

	Template            string `mapstructure:"template" yaml:"template"`
	TemplateErrorPolicy string `mapstructure:"template_error_policy" yaml:"template_error_policy"`

	Timeouts TimeoutConfig `mapstructure:"timeouts" yaml:"timeouts"`
	Log      LogConfig     `mapstructure:"log" yaml:"log"`
}

// Target returns the address relayed calls are delivered to. Debug runs
// divert everything to the debug recipient.
func (c *AppConfig) Target() string {
	if c.Debug {
		return c.DebugRecipient
	}
	return c.Recipient
}

// Validate reports configuration that would make a run impossible.
func (c *AppConfig) Validate() error {
	var missing []string
	if c.IMAP.Host == "" {
		missing = append(missing, "imap.host")
	}
	if c.SMTP.Host == "" {
		missing = append(missing, "smtp.host")
	}
	if c.Account.Username == "" {
		missing = append(missing, "account.username")
	}
	if c.Account.Address == "" {
		missing = append(missing, "account.address")
	}
	if c.Recipient == "" {
		missing = append(missing, "recipient")
	}
	if c.Debug && c.DebugRecipient == "" {
		missing = append(missing, "debug_recipient")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config keys: %s", strings.Join(missing, ", "))
	}

	switch c.TemplateErrorPolicy {
	case PolicySkip, PolicyAbort:
	default:
		return fmt.Errorf(
			"template_error_policy must be %q or %q, got %q",
			PolicySkip, PolicyAbort, c.TemplateErrorPolicy,
		)
	}
	return nil
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/oohrelay/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "oohrelay", "config.yaml")
}

func defaultWorkDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "oohrelay")
}

func setDefaults(v *viper.Viper) {
	// Keys without a useful default are still registered so that
	// environment overrides reach Unmarshal.
	for _, key := range []string{
		"imap.host", "smtp.host",
		"account.username", "account.address", "account.password",
		"recipient", "debug_recipient",
		"attachment_dir", "marker_dir", "stats_file", "ledger_db", "log.file",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("imap.port", "993")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("imap.since_days", 7)
	v.SetDefault("smtp.port", "587")
	v.SetDefault("smtp.tls", false)
	v.SetDefault("debug", false)
	v.SetDefault("work_dir", defaultWorkDir())
	v.SetDefault("marker_prefix", "NoohAberdeen")
	v.SetDefault("attachment_extensions", []string{".xml"})
	v.SetDefault("template", DefaultTemplate)
	v.SetDefault("template_error_policy", PolicySkip)
	v.SetDefault("timeouts.fetch_sec", 120)
	v.SetDefault("timeouts.send_sec", 300)
	v.SetDefault("log.max_size_mb", 1)
	v.SetDefault("log.max_backups", 3)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed OOHRELAY_ override file values. A missing
// file is not an error; defaults and environment still apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("oohrelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.resolvePaths()
	return cfg, nil
}

// resolvePaths fills the file locations derived from WorkDir.
func (c *AppConfig) resolvePaths() {
	if c.AttachmentDir == "" {
		c.AttachmentDir = filepath.Join(c.WorkDir, "xml")
	}
	if c.MarkerDir == "" {
		c.MarkerDir = filepath.Join(c.WorkDir, "markers")
	}
	if c.StatsFile == "" {
		c.StatsFile = filepath.Join(c.WorkDir, "stats.csv")
	}
	if c.LedgerDB == "" {
		c.LedgerDB = filepath.Join(c.WorkDir, "ledger.db")
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(c.WorkDir, "auto.log")
	}
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. The password is never written.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	account := cfg.Account
	account.Password = ""

	v.Set("imap", cfg.IMAP)
	v.Set("smtp", cfg.SMTP)
	v.Set("account", account)
	v.Set("recipient", cfg.Recipient)
	v.Set("debug_recipient", cfg.DebugRecipient)
	v.Set("debug", cfg.Debug)
	v.Set("work_dir", cfg.WorkDir)
	v.Set("marker_prefix", cfg.MarkerPrefix)
	v.Set("attachment_extensions", cfg.AttachmentExtensions)
	v.Set("template", cfg.Template)
	v.Set("template_error_policy", cfg.TemplateErrorPolicy)
	v.Set("timeouts", cfg.Timeouts)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
