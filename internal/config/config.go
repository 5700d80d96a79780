// Package config loads the librarian CLI configuration from defaults, an
// optional YAML file, LIBRARIAN_* environment variables and flag overrides,
// in increasing order of precedence.
package config

import (
	"time"

	"github.com/smhanov/librarian/llm"
)

// Config is the complete CLI configuration.
type Config struct {
	LLM     LLM     `koanf:"llm"`
	Corpus  Corpus  `koanf:"corpus"`
	Agent   Agent   `koanf:"agent"`
	Log     Log     `koanf:"log"`
	Metrics Metrics `koanf:"metrics"`
}

// LLM selects the generation backend.
type LLM struct {
	Provider    string        `koanf:"provider"    validate:"oneof=googleai openai anthropic ollama"`
	Model       string        `koanf:"model"       validate:"required"`
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"    validate:"omitempty,url"`
	Temperature float64       `koanf:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `koanf:"timeout"     validate:"gte=0"`
}

// Corpus locates the documents.
type Corpus struct {
	Dir     string   `koanf:"dir"     validate:"required"`
	Include []string `koanf:"include" validate:"min=1"`
	Exclude []string `koanf:"exclude"`
}

// Agent tunes the question-answering loop.
type Agent struct {
	MaxRounds     int           `koanf:"max_rounds"     validate:"min=1"`
	RetryAttempts int           `koanf:"retry_attempts" validate:"min=1"`
	RetryBackoff  time.Duration `koanf:"retry_backoff"  validate:"gte=0"`
	Concurrency   int           `koanf:"concurrency"    validate:"min=1,max=64"`
	Debug         bool          `koanf:"debug"`
}

// Log configures the logger.
type Log struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error disabled"`
	JSON  bool   `koanf:"json"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `koanf:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		LLM: LLM{
			Provider: llm.DefaultProvider,
			Model:    llm.DefaultModel,
			Timeout:  llm.DefaultTimeout,
		},
		Corpus: Corpus{
			Dir:     "data_files",
			Include: []string{"**"},
		},
		Agent: Agent{
			MaxRounds:     10,
			RetryAttempts: 3,
			RetryBackoff:  250 * time.Millisecond,
			Concurrency:   4,
		},
		Log: Log{Level: "info"},
	}
}

// LLMConfig converts the LLM section for package llm.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		Temperature: c.LLM.Temperature,
		Timeout:     c.LLM.Timeout,
	}
}
