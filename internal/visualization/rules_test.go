package visualization

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestRuleEngineMatch(t *testing.T) {
	path := writeRules(t, `rules:
  - id: trend
    visualization: graph
    match:
      prompt_contains: ["trend", "over time"]
      min_columns: 2
      numeric_column: 1
  - id: share
    visualization: pie
    match:
      prompt_contains: ["share"]
      max_rows: 5
`)
	engine, err := NewRuleEngine(path, nil)
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}

	rows := salesRows()
	vt, id, ok := engine.Match("Sales TREND by month", rows)
	if !ok || vt != models.VisualizationGraph || id != "trend" {
		t.Fatalf("expected trend rule, got %q %q %v", vt, id, ok)
	}

	textual := []models.Row{models.NewRow([]string{"month", "label"}, []any{"jan", "x"})}
	if _, _, ok := engine.Match("trend", textual); ok {
		t.Fatalf("numeric_column should reject a string column")
	}

	if vt, _, ok := engine.Match("market share", rows); !ok || vt != models.VisualizationPie {
		t.Fatalf("expected share rule, got %q %v", vt, ok)
	}
	if _, _, ok := engine.Match("list everything", rows); ok {
		t.Fatalf("expected no match")
	}
}

func TestRuleEngineNoFile(t *testing.T) {
	engine, err := NewRuleEngine(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if engine != nil {
		t.Fatalf("expected nil engine when file missing")
	}
	if _, _, ok := engine.Match("anything", nil); ok {
		t.Fatalf("nil engine must not match")
	}
}

func TestRuleEngineRejectsUnknownVisualization(t *testing.T) {
	path := writeRules(t, "rules:\n  - id: bad\n    visualization: bar\n")
	if _, err := NewRuleEngine(path, nil); err == nil {
		t.Fatalf("expected error for unknown visualization")
	}
}
