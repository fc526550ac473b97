package visualization

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

func TestRuleEngineReload(t *testing.T) {
	path := writeRules(t, `rules:
  - id: share
    visualization: pie
    match:
      prompt_contains: ["share"]
`)
	engine, err := NewRuleEngine(path, nil)
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}

	if err := os.WriteFile(path, []byte("rules: [{id: broken, visualization: bar}]\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := engine.Reload(); err == nil {
		t.Fatalf("expected invalid rules to be rejected")
	}
	if vt, _, ok := engine.Match("share by region", salesRows()); !ok || vt != models.VisualizationPie {
		t.Fatalf("previous rules should survive a failed reload, got %q %v", vt, ok)
	}
}

func TestRuleEngineWatchPicksUpChanges(t *testing.T) {
	path := writeRules(t, `rules:
  - id: share
    visualization: pie
    match:
      prompt_contains: ["share"]
`)
	engine, err := NewRuleEngine(path, nil)
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Watch(ctx, 20*time.Millisecond) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("watch: %v", err)
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		// Rewrite until the watcher has registered and reloaded.
		if err := os.WriteFile(path, []byte(`rules:
  - id: share
    visualization: graph
    match:
      prompt_contains: ["share"]
`), 0o644); err != nil {
			t.Fatalf("rewrite: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
		if vt, _, _ := engine.Match("share by region", salesRows()); vt == models.VisualizationGraph {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("rules were not reloaded after the file changed")
		}
	}
}

func TestNilRuleEngineWatchReturns(t *testing.T) {
	var engine *RuleEngine
	if err := engine.Watch(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("nil engine watch: %v", err)
	}
	if engine.Len() != 0 {
		t.Fatalf("nil engine should have no rules")
	}
}
