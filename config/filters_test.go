package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nalgeon/be"
)

func TestNewFilterManager_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	m, err := NewFilterManager(path)
	be.Err(t, err, nil)

	_, err = os.Stat(path)
	be.Err(t, err, nil)
	be.Equal(t, len(m.Filters().IgnoreSenders), 0)
}

func TestFilterManager_AddAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	m, err := NewFilterManager(path)
	be.Err(t, err, nil)

	be.Err(t, m.AddIgnoreSender("newsletter@example.com"), nil)
	be.Err(t, m.AddIgnoreSender("NEWSLETTER@example.com"), nil)
	be.Err(t, m.AddIgnoreKeywordInSubject("unsubscribe"), nil)
	be.Err(t, m.AddIgnoreSender("  "), "empty filter value")

	data, err := os.ReadFile(path)
	be.Err(t, err, nil)
	be.True(t, strings.Contains(string(data), "ignore_senders:"))

	reloaded, err := NewFilterManager(path)
	be.Err(t, err, nil)
	f := reloaded.Filters()
	be.Equal(t, f.IgnoreSenders, []string{"newsletter@example.com"})
	be.Equal(t, f.IgnoreKeywordsInSubject, []string{"unsubscribe"})
}

func TestFilterManager_AddDuringLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	m, err := NewFilterManager(path)
	be.Err(t, err, nil)

	senders := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com"}
	var wg sync.WaitGroup
	for _, s := range senders {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := m.AddIgnoreSender(s); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := m.Load(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	be.Equal(t, len(m.Filters().IgnoreSenders), len(senders))
	reloaded, err := NewFilterManager(path)
	be.Err(t, err, nil)
	be.Equal(t, len(reloaded.Filters().IgnoreSenders), len(senders))
}

func TestFilterManager_Match(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	be.Err(t, os.WriteFile(path, []byte("ignore_senders:\n  - noreply@\nignore_keywords_in_subject:\n  - Digest\n"), 0o644), nil)
	m, err := NewFilterManager(path)
	be.Err(t, err, nil)

	rule, ok := m.Match("Shop <NoReply@shop.example>", "Your order")
	be.True(t, ok)
	be.Equal(t, rule, "sender:noreply@")

	rule, ok = m.Match("bob@example.com", "Weekly digest #12")
	be.True(t, ok)
	be.Equal(t, rule, "subject:Digest")

	_, ok = m.Match("bob@example.com", "Lunch on Friday?")
	be.True(t, !ok)
}

func TestFilterManager_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	be.Err(t, os.WriteFile(path, []byte("ignore_senders: {"), 0o644), nil)
	_, err := NewFilterManager(path)
	be.True(t, err != nil)
}
