package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nalgeon/be"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	be.Err(t, os.WriteFile(path, []byte(content), 0o644), nil)
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	be.Err(t, err, nil)
	be.Equal(t, cfg.User.Name, "Alan Test")
	be.Equal(t, cfg.Mailbox.Backend, "gmail")
	be.Equal(t, cfg.Gmail.TokenStore, "file")
	be.Equal(t, cfg.LLM.Model, "gpt-4o-mini")
	be.Equal(t, cfg.Calendar.ID, "primary")
	be.Equal(t, cfg.Calendar.DefaultTimezone, "America/New_York")
	be.Equal(t, cfg.DefaultDuration(), time.Hour)
	be.True(t, cfg.Workflow.MarkReadOnFailure)
	be.True(t, !cfg.Workflow.DryRun)
	be.Equal(t, cfg.Workflow.PollInterval, 30*time.Second)
	be.Equal(t, cfg.Ledger.Path, "mailsched.db")
	be.Equal(t, cfg.Filters.Path, "filters.yaml")
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "config.yaml", `
user:
  name: Dana Scheduler
mailbox:
  backend: imap
imap:
  host: imap.example.com
smtp:
  host: localhost
  port: 2525
  insecure: true
outbound:
  provider: ses
ses:
  region: eu-west-1
calendar:
  default_timezone: Europe/Berlin
  default_duration_minutes: 30
workflow:
  mark_read_on_failure: false
  poll_interval: 2m
`)
	cfg, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, cfg.User.Name, "Dana Scheduler")
	be.Equal(t, cfg.Mailbox.Backend, "imap")
	be.Equal(t, cfg.IMAP.Host, "imap.example.com")
	be.Equal(t, cfg.IMAP.Port, 993)
	be.Equal(t, cfg.SMTP.Port, 2525)
	be.True(t, cfg.SMTP.Insecure)
	be.True(t, !cfg.SMTP.SSL)
	be.Equal(t, cfg.Outbound.Provider, "ses")
	be.Equal(t, cfg.SES.Region, "eu-west-1")
	be.Equal(t, cfg.Calendar.DefaultTimezone, "Europe/Berlin")
	be.Equal(t, cfg.DefaultDuration(), 30*time.Minute)
	be.True(t, !cfg.Workflow.MarkReadOnFailure)
	be.Equal(t, cfg.Workflow.PollInterval, 2*time.Minute)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MAILSCHED_USER_NAME", "Env User")
	t.Setenv("MAILSCHED_WORKFLOW_DRY_RUN", "true")
	t.Setenv("MAILSCHED_LLM_API_KEY", "sk-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	be.Err(t, err, nil)
	be.Equal(t, cfg.User.Name, "Env User")
	be.True(t, cfg.Workflow.DryRun)
	be.Equal(t, cfg.LLM.APIKey, "sk-env")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"backend", "mailbox:\n  backend: pop3\n", "mailbox.backend"},
		{"imap host", "mailbox:\n  backend: imap\n", "imap.host"},
		{"provider", "mailbox:\n  backend: imap\nimap:\n  host: h\noutbound:\n  provider: carrier-pigeon\n", "outbound.provider"},
		{"token store", "gmail:\n  token_store: vault\n", "gmail.token_store"},
		{"smtp tls", "mailbox:\n  backend: imap\nimap:\n  host: h\nsmtp:\n  ssl: true\n  insecure: true\n", "smtp.ssl and smtp.insecure"},
		{"duration", "calendar:\n  default_duration_minutes: 0\n", "default_duration_minutes"},
		{"yaml", "user: [unclosed\n", "reading config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.content))
			be.Err(t, err, tt.want)
		})
	}
}
