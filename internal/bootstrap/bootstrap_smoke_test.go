package bootstrap

import (
	"context"
	"testing"

	platformconfig "cipher-server-go/internal/platform/config"
)

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init-provider",
		"storage:open-database",
		"eventbus:init",
		"session:init-manager",
		"analysis:init-backend",
		"wake:init-session",
		"assistant:init-service",
	}
	if len(steps) != len(want) {
		t.Fatalf("unexpected step count: got %d want %d", len(steps), len(want))
	}
	for i, step := range steps {
		if step.ID != want[i] {
			t.Fatalf("step %d mismatch: got %s want %s", i, step.ID, want[i])
		}
	}
}

func TestInitGraphDependenciesSatisfied(t *testing.T) {
	completed := map[string]struct{}{}
	for _, step := range InitGraph() {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				t.Fatalf("step %s depends on %s which runs later or not at all", step.ID, dep)
			}
		}
		completed[step.ID] = struct{}{}
	}
}

func TestExecuteInitGraph(t *testing.T) {
	cfg := platformconfig.Default()
	cfg.Log.Level = "error"
	cfg.Log.Dir = t.TempDir()
	cfg.Storage.DataDir = ":memory:"

	state := &appState{config: cfg}
	if err := executeInitSteps(context.Background(), InitGraph(), state); err != nil {
		t.Fatalf("executeInitSteps failed: %v", err)
	}
	t.Cleanup(func() {
		state.assistant.Close()
		_ = state.sessions.Close()
		state.bus.Close()
		_ = state.db.Close()
		_ = state.logger.Close()
	})

	if state.logger == nil {
		t.Fatal("logger is nil after init")
	}
	if state.db == nil {
		t.Fatal("database is nil after init")
	}
	if state.sessions == nil {
		t.Fatal("session manager is nil after init")
	}
	if state.wakeSession == nil {
		t.Fatal("wake session is nil after init")
	}
	if state.assistant == nil {
		t.Fatal("assistant is nil after init")
	}
	if state.analysisSvc != nil {
		t.Fatal("analysis backend should stay disabled without an API key")
	}

	status := state.assistant.Status()
	if !status.Enabled {
		t.Fatal("wake detection should default to enabled")
	}
}

func TestExecuteInitStepsRejectsUnsatisfiedDependency(t *testing.T) {
	steps := []initStep{
		{
			ID:        "b",
			DependsOn: []string{"a"},
			Execute:   func(context.Context, *appState) error { return nil },
		},
	}
	if err := executeInitSteps(context.Background(), steps, &appState{}); err == nil {
		t.Fatal("expected dependency error")
	}
}
