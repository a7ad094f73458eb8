package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFilesLoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nBAR=\"beta\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadEnvFiles(envPath); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta" {
		t.Fatalf("BAR=%q, want beta (quotes stripped)", got)
	}
}

func TestLoadEnvFilesOverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestLoadEnvFilesIgnoresMissing(t *testing.T) {
	if err := LoadEnvFiles(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing dotenv should not error: %v", err)
	}
}

func TestApplyEnvToConfigFillsUnsetFields(t *testing.T) {
	t.Setenv("LLM_BASE_URL", "http://llm.example/v1")
	t.Setenv("LLM_MODEL", "structure-classifier")
	t.Setenv("CACHE_DIR", "/tmp/gorestruct-cache")
	t.Setenv("CLASSIFIER_THRESHOLD", "0.7")
	t.Setenv("BATCH_PARALLEL", "4")
	t.Setenv("CLASSIFIER_ENABLED", "true")

	var cfg Config
	ApplyEnvToConfig(&cfg)
	if cfg.LLMBaseURL != "http://llm.example/v1" {
		t.Fatalf("LLMBaseURL=%q", cfg.LLMBaseURL)
	}
	if cfg.ClassifierModel != "structure-classifier" {
		t.Fatalf("ClassifierModel=%q", cfg.ClassifierModel)
	}
	if cfg.CacheDir != "/tmp/gorestruct-cache" {
		t.Fatalf("CacheDir=%q", cfg.CacheDir)
	}
	if cfg.ClassifierThreshold != 0.7 {
		t.Fatalf("ClassifierThreshold=%v", cfg.ClassifierThreshold)
	}
	if cfg.BatchParallel != 4 {
		t.Fatalf("BatchParallel=%d", cfg.BatchParallel)
	}
	if !cfg.ClassifierEnabled {
		t.Fatal("CLASSIFIER_ENABLED=true not applied")
	}
}

func TestApplyEnvToConfigKeepsExplicitValues(t *testing.T) {
	t.Setenv("LLM_MODEL", "from-env")
	cfg := Config{ClassifierModel: "from-flag"}
	ApplyEnvToConfig(&cfg)
	if cfg.ClassifierModel != "from-flag" {
		t.Fatalf("explicit value clobbered by env: %q", cfg.ClassifierModel)
	}
}

func TestApplyEnvOverridesWinsOverFileValues(t *testing.T) {
	t.Setenv("LLM_MODEL", "env-wins")
	t.Setenv("CLASSIFIER_ENABLED", "false")
	cfg := Config{ClassifierModel: "from-file", ClassifierEnabled: true}
	ApplyEnvOverrides(&cfg)
	if cfg.ClassifierModel != "env-wins" {
		t.Fatalf("env override lost: %q", cfg.ClassifierModel)
	}
	if cfg.ClassifierEnabled {
		t.Fatal("CLASSIFIER_ENABLED=false should switch the classifier off")
	}
}
