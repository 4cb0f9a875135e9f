// Package mock serves canned responses for profiles in a mock status.
package mock

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"modelproxy-http/internal/model"
)

// Rule is the content of a rule file. JSON rule files parse as well, being valid YAML.
type Rule struct {
	Response      any `yaml:"response"`
	ResponseError any `yaml:"responseError"`
}

// Error carries the canned error body of a profile in the mockerr status.
type Error struct {
	InterfaceID string
	Body        any
}

func (e *Error) Error() string {
	return fmt.Sprintf("mock error response: interface %s", e.InterfaceID)
}

// Source reads rule files and answers calls for mock profiles. Rules of
// profiles marked static are read once and cached until Reset.
type Source struct {
	mu     sync.Mutex
	cache  map[string]*Rule
	logger *slog.Logger
}

// NewSource creates a Source.
func NewSource(logger *slog.Logger) *Source {
	return &Source{
		cache:  make(map[string]*Rule),
		logger: logger.With("component", "mock"),
	}
}

// Respond returns the canned result for p. A profile in the mockerr status
// yields an *Error holding the rule's error body.
func (s *Source) Respond(p *model.Profile) (*model.Result, error) {
	rule, err := s.rule(p)
	if err != nil {
		return nil, err
	}
	if p.Status == model.StatusMockErr {
		return nil, &Error{InterfaceID: p.ID, Body: rule.ResponseError}
	}
	return &model.Result{Body: rule.Response}, nil
}

// Reset drops cached rules.
func (s *Source) Reset() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

func (s *Source) rule(p *model.Profile) (*Rule, error) {
	if p.RuleFile == "" {
		return nil, model.NewConfigError(p.ID, "no rule file configured for status %q", p.Status)
	}

	if p.RuleStatic {
		s.mu.Lock()
		r, ok := s.cache[p.RuleFile]
		s.mu.Unlock()
		if ok {
			return r, nil
		}
	}

	r, err := readRule(p.RuleFile)
	if err != nil {
		return nil, model.NewConfigError(p.ID, "%v", err)
	}
	s.logger.Debug("rule file loaded", "interface_id", p.ID, "path", p.RuleFile)

	if p.RuleStatic {
		s.mu.Lock()
		s.cache[p.RuleFile] = r
		s.mu.Unlock()
	}
	return r, nil
}

func readRule(path string) (*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	var r Rule
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}
	return &r, nil
}
