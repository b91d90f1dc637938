package config

import (
	"errors"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Filters defines the rules for messages the workflow should leave alone.
type Filters struct {
	IgnoreSenders           []string `yaml:"ignore_senders"`
	IgnoreKeywordsInSubject []string `yaml:"ignore_keywords_in_subject"`
}

// FilterManager handles loading, saving, and matching filter rules.
type FilterManager struct {
	filePath string
	filters  *Filters
	mu       sync.RWMutex
}

// NewFilterManager loads the rules at filePath, creating an empty file if none exists.
func NewFilterManager(filePath string) (*FilterManager, error) {
	m := &FilterManager{
		filePath: filePath,
		filters:  &Filters{},
	}
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads the filter rules from the YAML file.
func (m *FilterManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.filters = &Filters{IgnoreSenders: []string{}, IgnoreKeywordsInSubject: []string{}}
			return m.save()
		}
		return err
	}

	var filters Filters
	if err := yaml.Unmarshal(data, &filters); err != nil {
		return err
	}
	m.filters = &filters
	return nil
}

// save writes the current rules. Callers hold the lock.
func (m *FilterManager) save() error {
	data, err := yaml.Marshal(m.filters)
	if err != nil {
		return err
	}
	return os.WriteFile(m.filePath, data, 0644)
}

// Filters returns a copy of the current rules.
func (m *FilterManager) Filters() Filters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Filters{
		IgnoreSenders:           append([]string(nil), m.filters.IgnoreSenders...),
		IgnoreKeywordsInSubject: append([]string(nil), m.filters.IgnoreKeywordsInSubject...),
	}
}

// AddIgnoreSender adds a sender to the ignore list and saves.
func (m *FilterManager) AddIgnoreSender(sender string) error {
	return m.add(func(f *Filters) *[]string { return &f.IgnoreSenders }, sender)
}

// AddIgnoreKeywordInSubject adds a subject keyword to the ignore list and saves.
func (m *FilterManager) AddIgnoreKeywordInSubject(keyword string) error {
	return m.add(func(f *Filters) *[]string { return &f.IgnoreKeywordsInSubject }, keyword)
}

// add appends value to the list picked by field. The list is resolved under
// the lock since Load replaces m.filters.
func (m *FilterManager) add(field func(*Filters) *[]string, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("empty filter value")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := field(m.filters)
	for _, existing := range *list {
		if strings.EqualFold(existing, value) {
			return nil
		}
	}
	*list = append(*list, value)
	return m.save()
}

// Match reports whether a message with the given From and Subject headers is
// filtered, and which rule matched. Matching is a case-insensitive substring test.
func (m *FilterManager) Match(from, subject string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sender := range m.filters.IgnoreSenders {
		if strings.Contains(strings.ToLower(from), strings.ToLower(sender)) {
			return "sender:" + sender, true
		}
	}
	for _, keyword := range m.filters.IgnoreKeywordsInSubject {
		if strings.Contains(strings.ToLower(subject), strings.ToLower(keyword)) {
			return "subject:" + keyword, true
		}
	}
	return "", false
}
