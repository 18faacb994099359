package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Chunker.MaxChunkLength != 300 || cfg.Retrieval.TopK != 10 || cfg.Retrieval.SimilarityThreshold != 0.01 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Index.MaxFeatures != 5000 || cfg.Index.MinDF != 2 || cfg.Index.MaxDF != 0.8 || cfg.Index.NGramMax != 3 {
		t.Errorf("unexpected index defaults: %+v", cfg.Index)
	}
	if cfg.Generator.OpenAI == nil || cfg.Generator.OpenAI.APIKeyEnv != "DEEPSEEK_API_KEY" || cfg.Generator.OpenAI.MaxTokens != 1000 {
		t.Errorf("unexpected generator defaults: %+v", cfg.Generator.OpenAI)
	}
}

func TestLoad_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
corpus:
  dir: /srv/corpus
retrieval:
  top_k: 5
generator:
  type: openai
  openai:
    model: custom-model
    temperature: 0.2
log:
  level: debug
  format: json
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Corpus.Dir != "/srv/corpus" || cfg.Retrieval.TopK != 5 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Cache.Dir != "cache" || cfg.Chunker.MaxChunkLength != 300 {
		t.Errorf("defaults not filled: %+v", cfg)
	}
	o := cfg.Generator.OpenAI
	if o.Model != "custom-model" || o.Temperature != 0.2 || o.BaseURL != "https://api.siliconflow.cn/v1" {
		t.Errorf("generator config = %+v", o)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug || cfg.Log.Format != "json" {
		t.Errorf("log config = %+v", cfg.Log)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("corpus: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Server.Addr = "127.0.0.1:9000"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Server.Addr != "127.0.0.1:9000" || got.Generator.OpenAI.Model != cfg.Generator.OpenAI.Model {
		t.Errorf("round trip lost values: %+v", got)
	}
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	cfg, path, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	if want := filepath.Join(home, ".config", "ragqa", "config.yaml"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config not written: %v", err)
	}
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("TopK = %d", cfg.Retrieval.TopK)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (LogConfig{Level: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
