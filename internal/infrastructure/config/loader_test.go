package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/doeshing/opsagent/internal/domain"
)

func TestLoadWritesEmbeddedDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	loader := NewFileLoader(path)

	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.Preferences.DefaultModel != "gpt-4" || !cfg.HasModel("offline") {
		t.Fatalf("unexpected default config %+v", cfg.Preferences)
	}
	if cfg.GetCommandTimeout() != domain.DefaultCommandTimeout {
		t.Fatalf("command timeout = %v", cfg.GetCommandTimeout())
	}
	if cfg.GetInstructionTimeout() != 0 {
		t.Fatalf("instruction timeout should be unbounded, got %v", cfg.GetInstructionTimeout())
	}
	if cfg.Server.Listen != ":3000" {
		t.Fatalf("listen = %q", cfg.Server.Listen)
	}
}

func TestLoadHydratesSparseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	sparse := "models:\n  - name: local\n    provider: ollama\n    model_id: llama3\n"
	if err := os.WriteFile(path, []byte(sparse), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewFileLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Preferences.DefaultModel != "local" {
		t.Fatalf("default model not hydrated: %q", cfg.Preferences.DefaultModel)
	}
	if cfg.Models[0].MaxTokens != domain.DefaultPlanMaxTokens {
		t.Fatalf("max tokens not hydrated: %d", cfg.Models[0].MaxTokens)
	}
	if cfg.GetGraceWindow() != domain.DefaultGraceWindow || cfg.GetRecentInteractions() != domain.DefaultRecentInteractions {
		t.Fatalf("history defaults not hydrated: %+v", cfg.History)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	loader := NewFileLoader(path)
	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetActiveModel("offline"); err != nil {
		t.Fatal(err)
	}
	if err := loader.Save(context.Background(), cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := loader.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again.CurrentModelName() != "offline" {
		t.Fatalf("active model not persisted: %q", again.CurrentModelName())
	}
}

func TestPathHonorsEnvironment(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(EnvConfigPath, custom)
	if got := NewFileLoader("").Path(); got != custom {
		t.Fatalf("Path = %q, want %q", got, custom)
	}
	explicit := filepath.Join(t.TempDir(), "explicit.yaml")
	if got := NewFileLoader(explicit).Path(); got != explicit {
		t.Fatalf("explicit path should win, got %q", got)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("models: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileLoader(path).Load(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}
