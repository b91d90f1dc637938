package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/option"

	"github.com/bassamadnan/mailsched/auth"
	"github.com/bassamadnan/mailsched/config"
	"github.com/bassamadnan/mailsched/gcal"
	"github.com/bassamadnan/mailsched/gmail"
	"github.com/bassamadnan/mailsched/imapbox"
	"github.com/bassamadnan/mailsched/ledger"
	"github.com/bassamadnan/mailsched/llm"
	"github.com/bassamadnan/mailsched/meeting"
	"github.com/bassamadnan/mailsched/workflow"
)

// app holds everything one command needs. close releases what was opened.
type app struct {
	orchestrator *workflow.Orchestrator
	ledger       *ledger.Store
	closers      []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadConfig reads the config file and sets up logging from it.
func loadConfig(path string) (*config.Config, func(), error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLog, nil
}

// oauthScopes are the Google scopes the configured backends need.
func oauthScopes(cfg *config.Config) []string {
	scopes := append([]string(nil), gcal.Scopes...)
	if cfg.Mailbox.Backend == "gmail" {
		scopes = append(scopes, gmail.Scopes...)
	}
	return scopes
}

func tokenStore(cfg *config.Config) (auth.TokenStore, error) {
	if cfg.Gmail.TokenStore == "keyring" {
		ring, err := auth.OpenKeyring()
		if err != nil {
			return nil, err
		}
		return auth.KeyringStore{Ring: ring}, nil
	}
	return auth.FileStore{Path: cfg.Gmail.TokenFile}, nil
}

func googleHTTPClient(ctx context.Context, cfg *config.Config) (*http.Client, error) {
	oauthCfg, err := auth.OAuthConfig(cfg.Gmail.CredentialsFile, oauthScopes(cfg)...)
	if err != nil {
		return nil, err
	}
	store, err := tokenStore(cfg)
	if err != nil {
		return nil, err
	}
	return auth.HTTPClient(ctx, oauthCfg, store)
}

func buildMailbox(ctx context.Context, cfg *config.Config, httpClient *http.Client) (workflow.Mailbox, error) {
	if cfg.Mailbox.Backend == "gmail" {
		return gmail.NewClient(ctx, option.WithHTTPClient(httpClient))
	}

	var sender imapbox.Sender
	switch cfg.Outbound.Provider {
	case "ses":
		s, err := imapbox.NewSESSender(ctx, imapbox.SESConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
		})
		if err != nil {
			return nil, err
		}
		sender = s
	default:
		sender = imapbox.NewSMTPSender(smtpConfig(cfg))
	}
	return imapbox.NewMailbox(imapbox.Config{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Username: cfg.IMAP.Username,
		Password: cfg.IMAP.Password,
		TLS:      cfg.IMAP.TLS,
	}, sender), nil
}

func smtpConfig(cfg *config.Config) imapbox.SMTPConfig {
	return imapbox.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		SSL:      cfg.SMTP.SSL,
		Insecure: cfg.SMTP.Insecure,
	}
}

// newApp builds the orchestrator and its services from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	httpClient, err := googleHTTPClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mailbox, err := buildMailbox(ctx, cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("creating mailbox: %w", err)
	}
	calendar, err := gcal.NewClient(ctx, cfg.Calendar.ID, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	apiKey, err := auth.APIKey(cfg.LLM.APIKey, auth.OpenKeyring)
	if err != nil {
		return nil, err
	}
	assistant := llm.New(llm.Config{APIKey: apiKey, Model: cfg.LLM.Model, BaseURL: cfg.LLM.BaseURL})

	filters, err := config.NewFilterManager(cfg.Filters.Path)
	if err != nil {
		return nil, fmt.Errorf("loading filters: %w", err)
	}

	svc := workflow.Services{
		Mailbox:   mailbox,
		Calendar:  calendar,
		Assistant: assistant,
		Filter:    filters,
	}
	if cfg.Ledger.Path != "" {
		store, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		a.ledger = store
		a.closers = append(a.closers, func() { store.Close() })
		svc.Ledger = store
	}

	a.orchestrator = workflow.New(svc, workflow.Options{
		ActorName:         cfg.User.Name,
		Builder:           meeting.NewBuilder(cfg.Calendar.DefaultTimezone, cfg.DefaultDuration()),
		MarkReadOnFailure: cfg.Workflow.MarkReadOnFailure,
		DryRun:            cfg.Workflow.DryRun,
	})
	ok = true
	return a, nil
}

func openLedger(cfg *config.Config) (*ledger.Store, error) {
	if cfg.Ledger.Path == "" {
		return nil, errors.New("ledger is disabled: ledger.path is empty")
	}
	return ledger.Open(cfg.Ledger.Path)
}
