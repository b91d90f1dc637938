// Package auth handles the Google OAuth handshake and where its token and the
// language model API key are kept.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

const (
	serviceName = "mailsched"
	tokenKey    = "google_oauth_token"
)

// TokenStore persists an OAuth token between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
}

// FileStore keeps the token as JSON in a file.
type FileStore struct {
	Path string
}

func (s FileStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token file %s: %w", s.Path, err)
	}
	return tok, nil
}

func (s FileStore) Save(tok *oauth2.Token) error {
	f, err := os.OpenFile(s.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to save oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// KeyringStore keeps the token in the system keyring.
type KeyringStore struct {
	Ring keyring.Keyring
}

// OpenKeyring returns the mailsched keyring.
func OpenKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailsched/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailsched-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

func (s KeyringStore) Load() (*oauth2.Token, error) {
	item, err := s.Ring.Get(tokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("getting credential %q: %w", tokenKey, err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(item.Data, tok); err != nil {
		return nil, fmt.Errorf("decoding keyring token: %w", err)
	}
	return tok, nil
}

func (s KeyringStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := s.Ring.Set(keyring.Item{Key: tokenKey, Data: data, Label: "mailsched Google token"}); err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey, err)
	}
	return nil
}
