package visualization

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

// RuleEngine picks a visualization from a YAML rule pack when neither the
// user nor the model settled on one.
type RuleEngine struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	rules []Rule
}

// Rule maps a match clause to a visualization type.
type Rule struct {
	ID            string    `yaml:"id"`
	Visualization string    `yaml:"visualization"`
	Match         RuleMatch `yaml:"match"`
}

// RuleMatch holds optional conditions; every set condition must hold.
type RuleMatch struct {
	PromptContains []string `yaml:"prompt_contains"`
	MinColumns     int      `yaml:"min_columns"`
	MaxRows        int      `yaml:"max_rows"`
	NumericColumn  *int     `yaml:"numeric_column"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads rules from path. A blank path or missing file yields a
// nil engine, which matches nothing.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	rules, err := loadRules(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{path: path, rules: rules, logger: logger}, nil
}

// Reload rereads the rule file. On error the current rules stay in place.
func (e *RuleEngine) Reload() error {
	rules, err := loadRules(e.path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
	return nil
}

// Len reports the number of loaded rules.
func (e *RuleEngine) Len() int {
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

func loadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	for _, rule := range cfg.Rules {
		if _, ok := models.ParseVisualization(rule.Visualization); !ok {
			return nil, fmt.Errorf("rule %q: unknown visualization %q", rule.ID, rule.Visualization)
		}
	}
	return cfg.Rules, nil
}

// Match returns the visualization of the first rule that applies.
func (e *RuleEngine) Match(prompt string, rows []models.Row) (models.VisualizationType, string, bool) {
	if e == nil {
		return "", "", false
	}
	var first models.Row
	if len(rows) > 0 {
		first = rows[0]
	}
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()
	for _, rule := range rules {
		m := rule.Match
		if len(m.PromptContains) > 0 && !containsAny(prompt, m.PromptContains) {
			continue
		}
		if m.MinColumns > 0 && len(first) < m.MinColumns {
			continue
		}
		if m.MaxRows > 0 && len(rows) > m.MaxRows {
			continue
		}
		if m.NumericColumn != nil && !columnIsNumeric(first, *m.NumericColumn) {
			continue
		}
		vt, _ := models.ParseVisualization(rule.Visualization)
		e.logger.Debug("visualization rule matched", slog.String("rule", rule.ID), slog.String("visualization", string(vt)))
		return vt, rule.ID, true
	}
	return "", "", false
}

func containsAny(prompt string, keywords []string) bool {
	prompt = strings.ToLower(prompt)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(prompt, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func columnIsNumeric(row models.Row, idx int) bool {
	if idx < 0 || idx >= len(row) {
		return false
	}
	switch row[idx].Value.(type) {
	case string, bool, nil:
		return false
	}
	_, err := models.AsFloat(row[idx].Value)
	return err == nil
}
