package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/99designs/keyring"
	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const apiKeyItem = "openai_api_key"

var (
	// ErrNoToken means no token has been stored yet; run the auth command.
	ErrNoToken = errors.New("no oauth token stored, run `mailsched auth` first")
	// ErrNoAPIKey means no language model API key was found anywhere.
	ErrNoAPIKey = errors.New("no language model API key configured")
)

// CodePrompt shows authURL to the user and returns the authorization code they paste back.
type CodePrompt func(authURL string) (string, error)

// OAuthConfig reads the OAuth client credentials file downloaded from the
// Google Cloud console.
func OAuthConfig(credentialsFile string, scopes ...string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	return cfg, nil
}

// HTTPClient returns a client authorized with the stored token. Refreshed
// tokens are written back to store.
func HTTPClient(ctx context.Context, cfg *oauth2.Config, store TokenStore) (*http.Client, error) {
	tok, err := store.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, err
	}
	src := &savingTokenSource{
		base:  oauth2.ReuseTokenSource(tok, cfg.TokenSource(ctx, tok)),
		store: store,
		last:  tok.AccessToken,
	}
	return oauth2.NewClient(ctx, src), nil
}

// savingTokenSource saves every token whose access token differs from the
// last one seen.
type savingTokenSource struct {
	base  oauth2.TokenSource
	store TokenStore

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := s.store.Save(tok); err != nil {
			log.Warn().Err(err).Msg("Auth: could not save refreshed token")
		} else {
			log.Debug().Msg("Auth: refreshed token saved")
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

// Authorize runs the offline authorization code flow and stores the token.
func Authorize(ctx context.Context, cfg *oauth2.Config, store TokenStore, prompt CodePrompt) error {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	code, err := prompt(authURL)
	if err != nil {
		return fmt.Errorf("unable to read authorization code: %w", err)
	}
	tok, err := cfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	if err := store.Save(tok); err != nil {
		return err
	}
	log.Info().Msg("Auth: token saved")
	return nil
}

// PromptCode asks for the authorization code in the terminal.
func PromptCode(authURL string) (string, error) {
	var code string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Authorize mailsched").
				Description("Open this link in your browser and grant access:\n\n"+authURL),
			huh.NewInput().
				Title("Authorization code").
				Value(&code).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("code is required")
					}
					return nil
				}),
		),
	).Run()
	return code, err
}

// APIKey resolves the language model key: the configured value, then the
// OPENAI_API_KEY environment variable, then the keyring. openRing is only
// called when the first two are empty and may be nil.
func APIKey(configured string, openRing func() (keyring.Keyring, error)) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key, nil
	}
	if openRing == nil {
		return "", ErrNoAPIKey
	}
	ring, err := openRing()
	if err != nil {
		log.Debug().Err(err).Msg("Auth: keyring unavailable")
		return "", ErrNoAPIKey
	}
	item, err := ring.Get(apiKeyItem)
	switch {
	case errors.Is(err, keyring.ErrKeyNotFound):
		return "", ErrNoAPIKey
	case err != nil:
		return "", fmt.Errorf("getting credential %q: %w", apiKeyItem, err)
	case len(item.Data) == 0:
		return "", ErrNoAPIKey
	}
	return string(item.Data), nil
}

// SaveAPIKey stores the language model key in the keyring.
func SaveAPIKey(ring keyring.Keyring, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("empty API key")
	}
	if err := ring.Set(keyring.Item{Key: apiKeyItem, Data: []byte(key), Label: "mailsched language model key"}); err != nil {
		return fmt.Errorf("setting credential %q: %w", apiKeyItem, err)
	}
	return nil
}

// PromptSecret asks for a value without echoing it.
func PromptSecret(title string) (string, error) {
	var value string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&value).
		Run()
	return value, err
}
