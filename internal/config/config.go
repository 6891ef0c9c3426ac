package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	WebSocket  WebSocketConfig  `yaml:"websocket" envconfig:"WEBSOCKET"`
	Generation GenerationConfig `yaml:"generation" envconfig:"GENERATION"`
	Providers  ProvidersConfig  `yaml:"providers" envconfig:"PROVIDERS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// GenerationConfig contains the generation pipeline configuration
type GenerationConfig struct {
	MaxConcurrentJobs      int           `yaml:"max_concurrent_jobs" envconfig:"MAX_CONCURRENT_JOBS"`
	CleanupInterval        time.Duration `yaml:"cleanup_interval" envconfig:"CLEANUP_INTERVAL"`
	JobTTL                 time.Duration `yaml:"job_ttl" envconfig:"JOB_TTL"`
	AnalysisTimeout        time.Duration `yaml:"analysis_timeout" envconfig:"ANALYSIS_TIMEOUT"`
	ImageTimeout           time.Duration `yaml:"image_timeout" envconfig:"IMAGE_TIMEOUT"`
	TextTimeout            time.Duration `yaml:"text_timeout" envconfig:"TEXT_TIMEOUT"`
	Retry                  RetryConfig   `yaml:"retry" envconfig:"RETRY"`
	IntraBranchConcurrency int           `yaml:"intra_branch_concurrency" envconfig:"INTRA_BRANCH_CONCURRENCY"`
	PacingDelay            time.Duration `yaml:"pacing_delay" envconfig:"PACING_DELAY"`
	DownloadBasePath       string        `yaml:"download_base_path" envconfig:"DOWNLOAD_BASE_PATH"`
}

// RetryConfig contains retry policy for provider calls
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	InitialDelay time.Duration `yaml:"initial_delay" envconfig:"INITIAL_DELAY"`
	MaxDelay     time.Duration `yaml:"max_delay" envconfig:"MAX_DELAY"`
	Multiplier   float64       `yaml:"multiplier" envconfig:"MULTIPLIER"`
}

// ProvidersConfig contains generative provider selection and credentials
type ProvidersConfig struct {
	Analysis string `yaml:"analysis" envconfig:"ANALYSIS"`
	Image    string `yaml:"image" envconfig:"IMAGE"`
	Text     string `yaml:"text" envconfig:"TEXT"`

	ClaudeAPIKey string `yaml:"claude_api_key" envconfig:"CLAUDE_API_KEY"`
	ClaudeModel  string `yaml:"claude_model" envconfig:"CLAUDE_MODEL"`

	OpenAIAPIKey  string `yaml:"openai_api_key" envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `yaml:"openai_base_url" envconfig:"OPENAI_BASE_URL"`
	OpenAIModel   string `yaml:"openai_model" envconfig:"OPENAI_MODEL"`

	GeminiAPIKey     string `yaml:"gemini_api_key" envconfig:"GEMINI_API_KEY"`
	GeminiModel      string `yaml:"gemini_model" envconfig:"GEMINI_MODEL"`
	GeminiImageModel string `yaml:"gemini_image_model" envconfig:"GEMINI_IMAGE_MODEL"`
}

// Load loads configuration from defaults, an optional YAML file and
// environment variables, in increasing precedence.
func Load() (*Config, error) {
	return load(getConfigFilePath())
}

// LoadFromFile is Load with an explicit config file path. The file must
// exist; environment variables still take precedence over its values.
func LoadFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return load(path)
}

func load(configFile string) (*Config, error) {
	cfg := Default()

	// YAML overlays defaults; only keys present in the file overwrite.
	if configFile != "" {
		if err := applyFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Environment variables win over both.
	if err := envconfig.Process("PROMOGEN", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyFile unmarshals a YAML file over the given config
func applyFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration and repairs repairable fields
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.RPS <= 0 {
			return fmt.Errorf("rate limit rps must be positive")
		}
		if c.Security.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate limit burst must be positive")
		}
	}

	// Log output stays machine-parseable
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "both"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if c.Generation.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("max concurrent jobs must be positive")
	}

	if c.Generation.JobTTL <= 0 {
		return fmt.Errorf("job ttl must be positive")
	}

	if c.Generation.IntraBranchConcurrency <= 0 {
		c.Generation.IntraBranchConcurrency = 2
	}

	switch c.Providers.Analysis {
	case "claude", "gemini":
	default:
		return fmt.Errorf("unknown analysis provider %q", c.Providers.Analysis)
	}

	switch c.Providers.Image {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown image provider %q", c.Providers.Image)
	}

	switch c.Providers.Text {
	case "claude", "gemini":
	default:
		return fmt.Errorf("unknown text provider %q", c.Providers.Text)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	// Check for config file in common locations
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
		"../../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "both",
			FilePath:    "logs/app.log",
			Development: true,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
		Generation: GenerationConfig{
			MaxConcurrentJobs:      5,
			CleanupInterval:        10 * time.Minute,
			JobTTL:                 time.Hour,
			AnalysisTimeout:        30 * time.Second,
			ImageTimeout:           60 * time.Second,
			TextTimeout:            30 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 1 * time.Second,
				MaxDelay:     30 * time.Second,
				Multiplier:   2.0,
			},
			IntraBranchConcurrency: 2,
			PacingDelay:            time.Second,
			DownloadBasePath:       "/api/downloads",
		},
		Providers: ProvidersConfig{
			Analysis: "claude",
			Image:    "openai",
			Text:     "claude",
		},
	}
}
