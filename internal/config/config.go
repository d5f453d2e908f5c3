package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LLMConfig configures the OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string                `yaml:"type"`
	Concurrency int                   `yaml:"concurrency"`
	OpenAI      *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type    string `yaml:"type"`
	Size    int    `yaml:"size"`
	Overlap int    `yaml:"overlap"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SummarizerConfig selects and configures the corpus summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// RetrievalConfig controls document search.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// DocsConfig points at the local text corpus.
type DocsConfig struct {
	Dir string `yaml:"dir"`
}

// SessionConfig bounds conversation history.
type SessionConfig struct {
	// HistoryPairs is k: history is cut to the last 2k turns.
	HistoryPairs int `yaml:"history_pairs"`
}

// AgentConfig configures the tool-using reasoning loop.
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// WeatherToolConfig configures the forecast lookup.
type WeatherToolConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// WikipediaToolConfig configures the encyclopedia lookup.
type WikipediaToolConfig struct {
	Enabled bool `yaml:"enabled"`
	// APIURL is the MediaWiki api.php endpoint; %s is replaced by the language.
	APIURL      string `yaml:"api_url"`
	Lang        string `yaml:"lang"`
	Sentences   int    `yaml:"sentences"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// CodeToolConfig configures the sandboxed code evaluator.
type CodeToolConfig struct {
	Enabled       bool `yaml:"enabled"`
	TimeoutSecs   int  `yaml:"timeout_secs"`
	MemoryLimitMB int  `yaml:"memory_limit_mb"`
}

// ToolsConfig groups the tool settings and the shared outbound rate limit.
type ToolsConfig struct {
	RequestsPerSecond float64             `yaml:"requests_per_second"`
	Burst             int                 `yaml:"burst"`
	Weather           WeatherToolConfig   `yaml:"weather"`
	Wikipedia         WikipediaToolConfig `yaml:"wikipedia"`
	Code              CodeToolConfig      `yaml:"code"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM         LLMConfig         `yaml:"llm"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Docs        DocsConfig        `yaml:"docs"`
	Session     SessionConfig     `yaml:"session"`
	Agent       AgentConfig       `yaml:"agent"`
	Tools       ToolsConfig       `yaml:"tools"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/chat-agent/config.yaml.
// If neither exists, it writes defaults to ~/.config/chat-agent/config.yaml and returns them.
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
	cfg := Default()
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

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "chat-agent", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "gpt-4",
			TimeoutSecs: 60,
		},
		Embedder:    EmbedderConfig{Type: "tfidf", Concurrency: 4},
		Chunker:     ChunkerConfig{Type: "recursive", Size: 1000, Overlap: 200},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 3},
		Retrieval:   RetrievalConfig{TopK: 3},
		Docs:        DocsConfig{Dir: "./docs"},
		Session:     SessionConfig{HistoryPairs: 5},
		Agent:       AgentConfig{MaxIterations: 15},
		Tools: ToolsConfig{
			RequestsPerSecond: 5,
			Burst:             5,
			Weather: WeatherToolConfig{
				Enabled:     true,
				BaseURL:     "https://api.open-meteo.com",
				TimeoutSecs: 15,
			},
			Wikipedia: WikipediaToolConfig{
				Enabled:     true,
				APIURL:      "https://%s.wikipedia.org/w/api.php",
				Lang:        "en",
				Sentences:   5,
				TimeoutSecs: 15,
			},
			Code: CodeToolConfig{Enabled: true, TimeoutSecs: 5, MemoryLimitMB: 512},
		},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = def.LLM.APIKeyEnv
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = def.LLM.TimeoutSecs
	}
	if cfg.Embedder.Concurrency <= 0 {
		cfg.Embedder.Concurrency = def.Embedder.Concurrency
	}
	if cfg.Chunker.Size <= 0 {
		cfg.Chunker.Size = def.Chunker.Size
	}
	if cfg.Chunker.Overlap < 0 || cfg.Chunker.Overlap >= cfg.Chunker.Size {
		cfg.Chunker.Overlap = cfg.Chunker.Size / 5
	}
	if cfg.Summarizer.MaxSentences <= 0 {
		cfg.Summarizer.MaxSentences = def.Summarizer.MaxSentences
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Docs.Dir == "" {
		cfg.Docs.Dir = def.Docs.Dir
	}
	if cfg.Session.HistoryPairs <= 0 {
		cfg.Session.HistoryPairs = def.Session.HistoryPairs
	}
	if cfg.Agent.MaxIterations <= 0 {
		cfg.Agent.MaxIterations = def.Agent.MaxIterations
	}
	if cfg.Tools.Wikipedia.Lang == "" {
		cfg.Tools.Wikipedia.Lang = def.Tools.Wikipedia.Lang
	}
	if cfg.Tools.Wikipedia.Sentences <= 0 {
		cfg.Tools.Wikipedia.Sentences = def.Tools.Wikipedia.Sentences
	}
	if cfg.Tools.Code.MemoryLimitMB <= 0 {
		cfg.Tools.Code.MemoryLimitMB = def.Tools.Code.MemoryLimitMB
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "chat-agent"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
}
