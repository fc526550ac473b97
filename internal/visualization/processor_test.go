package visualization

import (
	"context"
	"errors"
	"testing"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

type stubAdvisor struct {
	suggestion    string
	suggestErr    error
	summary       string
	summaryErr    error
	suggestSample int
	summarySample int
	summaryType   models.VisualizationType
	suggestCalls  int
}

func (s *stubAdvisor) SuggestVisualization(_ context.Context, _ string, sample []models.Row, _ string) (string, error) {
	s.suggestCalls++
	s.suggestSample = len(sample)
	return s.suggestion, s.suggestErr
}

func (s *stubAdvisor) Summarize(_ context.Context, _ string, sample []models.Row, vt models.VisualizationType) (string, error) {
	s.summarySample = len(sample)
	s.summaryType = vt
	return s.summary, s.summaryErr
}

func manyRows(n int) []models.Row {
	rows := make([]models.Row, n)
	for i := range rows {
		rows[i] = models.NewRow([]string{"region", "total"}, []any{"r", i})
	}
	return rows
}

func TestChoosePreferenceWins(t *testing.T) {
	advisor := &stubAdvisor{suggestion: "pie"}
	p := NewProcessor(advisor, nil, nil)

	vt, source := p.Choose(context.Background(), "q", manyRows(3), "GRAPH")
	if vt != models.VisualizationGraph || source != SourcePreference {
		t.Fatalf("expected preference, got %q %q", vt, source)
	}
	if advisor.suggestCalls != 0 {
		t.Fatalf("model should not be asked when preference is valid")
	}
}

func TestChooseInvalidPreferenceAsksModel(t *testing.T) {
	advisor := &stubAdvisor{suggestion: " Pie.\n"}
	p := NewProcessor(advisor, nil, nil)

	vt, source := p.Choose(context.Background(), "q", manyRows(5), "bar")
	if vt != models.VisualizationPie || source != SourceModel {
		t.Fatalf("expected model suggestion, got %q %q", vt, source)
	}
	if advisor.suggestSample != 2 {
		t.Fatalf("expected 2 sample rows, got %d", advisor.suggestSample)
	}
}

func TestChooseFallsBackToRulesThenTable(t *testing.T) {
	path := writeRules(t, "rules:\n  - id: share\n    visualization: pie\n    match:\n      prompt_contains: [share]\n")
	rules, err := NewRuleEngine(path, nil)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	p := NewProcessor(&stubAdvisor{suggestErr: errors.New("offline")}, rules, nil)

	if vt, source := p.Choose(context.Background(), "share by region", manyRows(2), ""); vt != models.VisualizationPie || source != SourceRule {
		t.Fatalf("expected rule match, got %q %q", vt, source)
	}
	if vt, source := p.Choose(context.Background(), "list", manyRows(2), ""); vt != models.VisualizationTable || source != SourceDefault {
		t.Fatalf("expected default table, got %q %q", vt, source)
	}

	p = NewProcessor(&stubAdvisor{suggestion: "scatter"}, nil, nil)
	if vt, _ := p.Choose(context.Background(), "q", nil, ""); vt != models.VisualizationTable {
		t.Fatalf("invalid suggestion should fall back to table, got %q", vt)
	}
}

func TestProcessSummarises(t *testing.T) {
	advisor := &stubAdvisor{suggestion: "table", summary: "  **Total** rows: 5 "}
	p := NewProcessor(advisor, nil, nil)

	res := p.Process(context.Background(), "q", manyRows(5), "")
	if !res.Success || res.Type != models.VisualizationTable {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.HumanReadable != "**Total** rows: 5" {
		t.Fatalf("unexpected summary: %q", res.HumanReadable)
	}
	if advisor.summarySample != 3 || advisor.summaryType != models.VisualizationTable {
		t.Fatalf("unexpected summary inputs: %d %q", advisor.summarySample, advisor.summaryType)
	}
}

func TestProcessSummaryFailureUsesPlaceholder(t *testing.T) {
	p := NewProcessor(&stubAdvisor{suggestion: "graph", summaryErr: errors.New("timeout")}, nil, nil)
	res := p.Process(context.Background(), "q", manyRows(2), "")
	if !res.Success || res.HumanReadable != SummaryUnavailable {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestProcessConversionFailureFallsBackToTable(t *testing.T) {
	rows := []models.Row{models.NewRow([]string{"region", "total"}, []any{"north", "many"})}
	p := NewProcessor(&stubAdvisor{summary: "unused"}, nil, nil)

	res := p.Process(context.Background(), "q", rows, "pie")
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.Type != models.VisualizationTable {
		t.Fatalf("expected table fallback, got %q", res.Type)
	}
	if _, ok := res.Data.(models.TableData); !ok {
		t.Fatalf("expected table payload, got %T", res.Data)
	}
	if len(res.HumanReadable) < 7 || res.HumanReadable[:7] != "Error: " {
		t.Fatalf("unexpected human readable: %q", res.HumanReadable)
	}
}
