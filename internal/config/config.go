// Package config loads the supervisor configuration and runtime defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig selects the chat-completion backend.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // "ollama" or "genai"
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "ollama" or "genai"
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// OversightConfig holds the Supervisor's editorial thresholds. The pipeline
// invariants (confidence floor, overlap reject) are fixed constants in
// internal/types; these knobs shape tone and cadence, not correctness.
type OversightConfig struct {
	Personality        string `yaml:"personality"`
	MaxJudgmentsPerRun int    `yaml:"max_judgments_per_run"`
	BriefingWordTarget int    `yaml:"briefing_word_target"`
}

// SupervisorConfig is <data>/supervisor_config.yaml.
type SupervisorConfig struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Oversight OversightConfig `yaml:"oversight"`
	SearchURL string          `yaml:"search_url"` // SearXNG-compatible endpoint
	UserAgent string          `yaml:"user_agent"`
	// EdgarUserAgent is required by the regulator's fair-access policy and
	// must identify the operator (name + contact).
	EdgarUserAgent string `yaml:"edgar_user_agent"`
}

// Default returns the built-in configuration.
func Default() SupervisorConfig {
	return SupervisorConfig{
		LLM: LLMConfig{
			Provider:    "ollama",
			Endpoint:    "http://localhost:11434",
			Model:       "qwen2.5:14b",
			Temperature: 0.3,
			Timeout:     60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Endpoint: "http://localhost:11434",
			Model:    "mxbai-embed-large",
		},
		Oversight: OversightConfig{
			Personality:        "a meticulous research editor",
			MaxJudgmentsPerRun: 50,
			BriefingWordTarget: 300,
		},
		UserAgent:      "dossier-research-assistant/1.0 (+https://github.com/dossier)",
		EdgarUserAgent: "dossier research assistant admin@example.com",
	}
}

// Load reads <data>/supervisor_config.yaml, applying defaults for any field
// left unset. A missing file returns defaults without error.
func Load(dataDir string) (SupervisorConfig, error) {
	cfg := Default()
	path := filepath.Join(dataDir, "supervisor_config.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read supervisor config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse supervisor config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// Save writes the config atomically (temp file + rename).
func Save(dataDir string, cfg SupervisorConfig) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal supervisor config: %w", err)
	}
	path := filepath.Join(dataDir, "supervisor_config.yaml")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write supervisor config: %w", err)
	}
	return os.Rename(tmp, path)
}

func applyDefaults(cfg *SupervisorConfig) {
	def := Default()
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = def.LLM.Provider
	}
	if cfg.LLM.Endpoint == "" {
		cfg.LLM.Endpoint = def.LLM.Endpoint
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = def.LLM.Timeout
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = def.Embedding.Provider
	}
	if cfg.Embedding.Endpoint == "" {
		cfg.Embedding.Endpoint = def.Embedding.Endpoint
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Oversight.Personality == "" {
		cfg.Oversight.Personality = def.Oversight.Personality
	}
	if cfg.Oversight.MaxJudgmentsPerRun == 0 {
		cfg.Oversight.MaxJudgmentsPerRun = def.Oversight.MaxJudgmentsPerRun
	}
	if cfg.Oversight.BriefingWordTarget == 0 {
		cfg.Oversight.BriefingWordTarget = def.Oversight.BriefingWordTarget
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.EdgarUserAgent == "" {
		cfg.EdgarUserAgent = def.EdgarUserAgent
	}
}
