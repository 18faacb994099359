package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CorpusConfig locates the documents and the stop-word list.
type CorpusConfig struct {
	Dir       string `yaml:"dir"`
	StopWords string `yaml:"stop_words"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type           string `yaml:"type"`
	MaxChunkLength int    `yaml:"max_chunk_length"`
}

// IndexConfig configures the TF-IDF vocabulary.
type IndexConfig struct {
	MaxFeatures int     `yaml:"max_features"`
	MinDF       int     `yaml:"min_df"`
	MaxDF       float64 `yaml:"max_df"`
	NGramMin    int     `yaml:"ngram_min"`
	NGramMax    int     `yaml:"ngram_max"`
}

// CacheConfig locates the persisted chunk and index artifacts.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// RetrievalConfig holds the default search parameters.
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// OpenAIGeneratorConfig holds configuration for the OpenAI-compatible chat endpoint.
type OpenAIGeneratorConfig struct {
	BaseURL      string  `yaml:"base_url"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float32 `yaml:"temperature"`
	TimeoutSecs  int     `yaml:"timeout_secs"`
	MaxRetries   int     `yaml:"max_retries"`
	SystemPrompt string  `yaml:"system_prompt,omitempty"`
}

// GeneratorConfig selects and configures the answer generator.
type GeneratorConfig struct {
	Type   string                 `yaml:"type"`
	OpenAI *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
}

// SummarizerConfig selects and configures the corpus summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// ServerConfig configures the JSON API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus     CorpusConfig     `yaml:"corpus"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Index      IndexConfig      `yaml:"index"`
	Cache      CacheConfig      `yaml:"cache"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// SlogLevel maps the configured level name to a slog.Level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Corpus:     CorpusConfig{Dir: "data", StopWords: "stop_words.txt"},
		Chunker:    ChunkerConfig{Type: "sentence"},
		Cache:      CacheConfig{Dir: "cache"},
		Retrieval:  RetrievalConfig{SimilarityThreshold: 0.01},
		Generator:  GeneratorConfig{Type: "openai"},
		Summarizer: SummarizerConfig{Type: "frequency"},
		Log:        LogConfig{Level: "info", Format: "text"},
		Server:     ServerConfig{Addr: ":8080"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = "data"
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "sentence"
	}
	if cfg.Chunker.MaxChunkLength == 0 {
		cfg.Chunker.MaxChunkLength = 300
	}
	if cfg.Index.MaxFeatures == 0 {
		cfg.Index.MaxFeatures = 5000
	}
	if cfg.Index.MinDF == 0 {
		cfg.Index.MinDF = 2
	}
	if cfg.Index.MaxDF == 0 {
		cfg.Index.MaxDF = 0.8
	}
	if cfg.Index.NGramMin == 0 {
		cfg.Index.NGramMin = 1
	}
	if cfg.Index.NGramMax == 0 {
		cfg.Index.NGramMax = 3
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "cache"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 10
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "openai"
	}
	if cfg.Generator.Type == "openai" {
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		o := cfg.Generator.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.siliconflow.cn/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "DEEPSEEK_API_KEY"
		}
		if o.Model == "" {
			o.Model = "deepseek-ai/DeepSeek-V2.5"
		}
		if o.MaxTokens == 0 {
			o.MaxTokens = 1000
		}
		if o.Temperature == 0 {
			o.Temperature = 0.7
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 60
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 3
		}
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}
