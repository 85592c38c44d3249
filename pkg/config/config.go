package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Analysis struct {
		TaskTimeout     time.Duration `yaml:"task_timeout"`
		DecisionTimeout time.Duration `yaml:"decision_timeout"`
		StreamGrace     time.Duration `yaml:"stream_grace"`
		CacheTTL        struct {
			Macro time.Duration `yaml:"macro"`
			News  time.Duration `yaml:"news"`
			Quote time.Duration `yaml:"quote"`
		} `yaml:"cache_ttl"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"analysis"`
	Finnhub struct {
		APIKey  string        `yaml:"api_key"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"finnhub"`
	Fred struct {
		APIKey  string        `yaml:"api_key"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"fred"`
	LLM struct {
		Provider  string        `yaml:"provider"` // "ollama" or "claude"
		Model     string        `yaml:"model"`
		Timeout   time.Duration `yaml:"timeout"`
		MaxTokens int           `yaml:"max_tokens"`
		Ollama    struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"ollama"`
		Claude struct {
			APIKey string `yaml:"api_key"`
		} `yaml:"claude"`
	} `yaml:"llm"`
	Archive struct {
		Backend      string        `yaml:"backend"` // "kafka", "clickhouse", or "none"
		BufferSize   int           `yaml:"buffer_size"`
		FlushBackoff time.Duration `yaml:"flush_backoff"`
	} `yaml:"archive"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host        string        `yaml:"host"`
		Port        int           `yaml:"port"`
		Database    string        `yaml:"database"`
		User        string        `yaml:"user"`
		Password    string        `yaml:"password"`
		DialTimeout time.Duration `yaml:"dial_timeout"`
		ReadTimeout time.Duration `yaml:"read_timeout"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		c.Fred.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.Claude.APIKey = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.LLM.Ollama.BaseURL = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("ARCHIVE_BACKEND"); v != "" {
		c.Archive.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Analysis.TaskTimeout <= 0 {
		c.Analysis.TaskTimeout = 60 * time.Second
	}
	if c.Analysis.DecisionTimeout <= 0 {
		c.Analysis.DecisionTimeout = 120 * time.Second
	}
	if c.Analysis.StreamGrace <= 0 {
		c.Analysis.StreamGrace = 500 * time.Millisecond
	}
	if c.Analysis.CacheTTL.Macro <= 0 {
		c.Analysis.CacheTTL.Macro = 72 * time.Hour
	}
	if c.Analysis.CacheTTL.News <= 0 {
		c.Analysis.CacheTTL.News = 15 * time.Minute
	}
	if c.Analysis.CacheTTL.Quote <= 0 {
		c.Analysis.CacheTTL.Quote = 30 * time.Second
	}
	if c.Finnhub.BaseURL == "" {
		c.Finnhub.BaseURL = "https://finnhub.io/api/v1"
	}
	if c.Finnhub.Timeout <= 0 {
		c.Finnhub.Timeout = 10 * time.Second
	}
	if c.Fred.BaseURL == "" {
		c.Fred.BaseURL = "https://api.stlouisfed.org/fred"
	}
	if c.Fred.Timeout <= 0 {
		c.Fred.Timeout = 10 * time.Second
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama"
	}
	if c.LLM.Ollama.BaseURL == "" {
		c.LLM.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 120 * time.Second
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.Archive.Backend == "" {
		c.Archive.Backend = "none"
	}
	if c.Archive.BufferSize <= 0 {
		c.Archive.BufferSize = 64
	}
	if c.Archive.FlushBackoff <= 0 {
		c.Archive.FlushBackoff = 50 * time.Millisecond
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Archive.Backend {
	case "kafka", "clickhouse", "none":
	default:
		return fmt.Errorf("archive.backend must be 'kafka', 'clickhouse' or 'none', got '%s'", c.Archive.Backend)
	}
	switch c.LLM.Provider {
	case "ollama", "claude":
	default:
		return fmt.Errorf("llm.provider must be 'ollama' or 'claude', got '%s'", c.LLM.Provider)
	}
	if c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required")
	}
	if c.LLM.Provider == "claude" && c.LLM.Claude.APIKey == "" {
		return fmt.Errorf("llm.claude.api_key is required for the claude provider")
	}
	return nil
}
