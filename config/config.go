// Package config loads mailsched settings and the message filter rules.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "MAILSCHED"

type UserConfig struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

type MailboxConfig struct {
	// Backend is "gmail" or "imap".
	Backend string `mapstructure:"backend"`
}

type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	// TokenStore is "file" or "keyring".
	TokenStore string `mapstructure:"token_store"`
}

type IMAPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSL      bool   `mapstructure:"ssl"`
	// Insecure submits without TLS, for a relay on localhost.
	Insecure bool `mapstructure:"insecure"`
}

type OutboundConfig struct {
	// Provider is "smtp" or "ses". Only used with the imap backend.
	Provider string `mapstructure:"provider"`
}

type SESConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Sender          string `mapstructure:"sender"`
}

type LLMConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type CalendarConfig struct {
	ID                     string `mapstructure:"id"`
	DefaultTimezone        string `mapstructure:"default_timezone"`
	DefaultDurationMinutes int    `mapstructure:"default_duration_minutes"`
}

type WorkflowConfig struct {
	MarkReadOnFailure bool          `mapstructure:"mark_read_on_failure"`
	DryRun            bool          `mapstructure:"dry_run"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
}

type LedgerConfig struct {
	// Path of the sqlite file. Empty disables the ledger.
	Path string `mapstructure:"path"`
}

type FiltersConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

// Config is the top-level application configuration.
type Config struct {
	User     UserConfig     `mapstructure:"user"`
	Mailbox  MailboxConfig  `mapstructure:"mailbox"`
	Gmail    GmailConfig    `mapstructure:"gmail"`
	IMAP     IMAPConfig     `mapstructure:"imap"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Outbound OutboundConfig `mapstructure:"outbound"`
	SES      SESConfig      `mapstructure:"ses"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Filters  FiltersConfig  `mapstructure:"filters"`
	Log      LogConfig      `mapstructure:"log"`
}

// Every key gets a default so AutomaticEnv can override it during Unmarshal.
var defaults = map[string]any{
	"user.name":                         "Alan Test",
	"user.email":                        "",
	"mailbox.backend":                   "gmail",
	"gmail.credentials_file":            "credentials.json",
	"gmail.token_file":                  "token.json",
	"gmail.token_store":                 "file",
	"imap.host":                         "",
	"imap.port":                         993,
	"imap.username":                     "",
	"imap.password":                     "",
	"imap.tls":                          true,
	"smtp.host":                         "",
	"smtp.port":                         587,
	"smtp.username":                     "",
	"smtp.password":                     "",
	"smtp.ssl":                          false,
	"smtp.insecure":                     false,
	"outbound.provider":                 "smtp",
	"ses.region":                        "us-east-1",
	"ses.access_key_id":                 "",
	"ses.secret_access_key":             "",
	"ses.sender":                        "",
	"llm.api_key":                       "",
	"llm.model":                         "gpt-4o-mini",
	"llm.base_url":                      "",
	"calendar.id":                       "primary",
	"calendar.default_timezone":         "America/New_York",
	"calendar.default_duration_minutes": 60,
	"workflow.mark_read_on_failure":     true,
	"workflow.dry_run":                  false,
	"workflow.poll_interval":            "30s",
	"ledger.path":                       "mailsched.db",
	"filters.path":                      "filters.yaml",
	"log.level":                         "info",
	"log.file":                          "mailsched.log",
	"log.console":                       false,
}

// DefaultPath returns ~/.config/mailsched/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailsched", "config.yaml")
}

// Load reads the YAML file at path, applying defaults and MAILSCHED_*
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Mailbox.Backend {
	case "gmail":
		if c.Gmail.TokenStore != "file" && c.Gmail.TokenStore != "keyring" {
			return fmt.Errorf("gmail.token_store must be file or keyring, got %q", c.Gmail.TokenStore)
		}
	case "imap":
		if c.IMAP.Host == "" {
			return errors.New("imap.host is required for the imap backend")
		}
		if c.Outbound.Provider != "smtp" && c.Outbound.Provider != "ses" {
			return fmt.Errorf("outbound.provider must be smtp or ses, got %q", c.Outbound.Provider)
		}
		if c.SMTP.SSL && c.SMTP.Insecure {
			return errors.New("smtp.ssl and smtp.insecure cannot both be set")
		}
	default:
		return fmt.Errorf("mailbox.backend must be gmail or imap, got %q", c.Mailbox.Backend)
	}
	if c.Calendar.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("calendar.default_duration_minutes must be positive, got %d", c.Calendar.DefaultDurationMinutes)
	}
	if c.Workflow.PollInterval <= 0 {
		return fmt.Errorf("workflow.poll_interval must be positive, got %s", c.Workflow.PollInterval)
	}
	return nil
}

// DefaultDuration is the configured default meeting length.
func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.Calendar.DefaultDurationMinutes) * time.Minute
}
