package generation

import (
	"time"
)

// Defaults for the orchestrator configuration.
const (
	DefaultMaxConcurrentJobs      = 5
	DefaultCleanupInterval        = 10 * time.Minute
	DefaultJobTTL                 = time.Hour
	DefaultAnalysisTimeout        = 30 * time.Second
	DefaultImageTimeout           = 60 * time.Second
	DefaultTextsTimeout           = 30 * time.Second
	DefaultIntraBranchConcurrency = 2
	DefaultPacingDelay            = time.Second
	DefaultPackageVariations      = 3
	DefaultDownloadBasePath       = "/api/downloads"
	DefaultTone                   = "professional"
	DefaultLanguage               = "en"
)

// Hard bounds on submission options.
const (
	MaxImageBytes        = 10 * 1024 * 1024
	MaxBrandNameLen      = 100
	MaxProductNameLen    = 200
	MaxToneLen           = 50
	MaxLanguageLen       = 50
	MinPackageVariations = 1
	MaxPackageVariations = 10
)

// Capability providers selectable per concern.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// RetryConfig defines retry behavior for external capability calls.
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration.
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// CredentialSet holds the provider API keys checked at submission time.
type CredentialSet struct {
	ClaudeAPIKey string `json:"-"`
	OpenAIAPIKey string `json:"-"`
	GeminiAPIKey string `json:"-"`
}

// ProviderSelection names the provider backing each capability.
type ProviderSelection struct {
	Analysis string `json:"analysis"`
	Image    string `json:"image"`
	Text     string `json:"text"`
}

// Config is the orchestrator configuration.
type Config struct {
	// Admission cap on concurrently active jobs.
	MaxConcurrentJobs int `json:"max_concurrent_jobs"`

	// Reaper tick period. Zero disables the reaper.
	CleanupInterval time.Duration `json:"cleanup_interval"`

	// Age past which terminal jobs are evicted.
	JobTTL time.Duration `json:"job_ttl"`

	// Per-stage timeouts applied to each external call.
	StageTimeouts map[StageName]time.Duration `json:"stage_timeouts"`

	// Retry policy for retryable capability failures.
	Retry RetryConfig `json:"retry"`

	// Concurrency cap inside the packages and ads branches.
	IntraBranchConcurrency int `json:"intra_branch_concurrency"`

	// Pause between generation waves inside a branch.
	PacingDelay time.Duration `json:"pacing_delay"`

	// Base path prefixed to the per-job download URL.
	DownloadBasePath string `json:"download_base_path"`

	// Provider selection and credentials for submission validation.
	Providers   ProviderSelection `json:"providers"`
	Credentials CredentialSet     `json:"-"`
}

// NewConfig returns the default orchestrator configuration.
func NewConfig() *Config {
	return &Config{
		MaxConcurrentJobs: DefaultMaxConcurrentJobs,
		CleanupInterval:   DefaultCleanupInterval,
		JobTTL:            DefaultJobTTL,
		StageTimeouts: map[StageName]time.Duration{
			StageAnalysis: DefaultAnalysisTimeout,
			StagePackages: DefaultImageTimeout,
			StageAds:      DefaultImageTimeout,
			StageTexts:    DefaultTextsTimeout,
		},
		Retry:                  NewRetryConfig(),
		IntraBranchConcurrency: DefaultIntraBranchConcurrency,
		PacingDelay:            DefaultPacingDelay,
		DownloadBasePath:       DefaultDownloadBasePath,
		Providers: ProviderSelection{
			Analysis: ProviderClaude,
			Image:    ProviderOpenAI,
			Text:     ProviderClaude,
		},
	}
}

// StageTimeout returns the timeout for a specific stage.
func (c *Config) StageTimeout(stage StageName) time.Duration {
	if timeout, ok := c.StageTimeouts[stage]; ok && timeout > 0 {
		return timeout
	}
	if stage == StagePackages || stage == StageAds {
		return DefaultImageTimeout
	}
	return DefaultAnalysisTimeout
}

// normalize fills zero values with defaults so a partially populated config
// is safe to run with.
func (c *Config) normalize() {
	def := NewConfig()
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = def.MaxConcurrentJobs
	}
	if c.JobTTL <= 0 {
		c.JobTTL = def.JobTTL
	}
	if c.StageTimeouts == nil {
		c.StageTimeouts = def.StageTimeouts
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = def.Retry.InitialDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = def.Retry.MaxDelay
	}
	if c.Retry.Multiplier <= 0 {
		c.Retry.Multiplier = def.Retry.Multiplier
	}
	if c.IntraBranchConcurrency <= 0 {
		c.IntraBranchConcurrency = def.IntraBranchConcurrency
	}
	if c.PacingDelay < 0 {
		c.PacingDelay = def.PacingDelay
	}
	if c.DownloadBasePath == "" {
		c.DownloadBasePath = def.DownloadBasePath
	}
	if c.Providers.Analysis == "" {
		c.Providers.Analysis = def.Providers.Analysis
	}
	if c.Providers.Image == "" {
		c.Providers.Image = def.Providers.Image
	}
	if c.Providers.Text == "" {
		c.Providers.Text = def.Providers.Text
	}
}

// ConfigBuilder provides a fluent interface for building configurations,
// mainly for tests.
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder seeded with defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: NewConfig(),
	}
}

// WithMaxConcurrentJobs sets the admission cap.
func (b *ConfigBuilder) WithMaxConcurrentJobs(n int) *ConfigBuilder {
	b.config.MaxConcurrentJobs = n
	return b
}

// WithCleanupInterval sets the reaper tick period. Zero disables the reaper.
func (b *ConfigBuilder) WithCleanupInterval(d time.Duration) *ConfigBuilder {
	b.config.CleanupInterval = d
	return b
}

// WithJobTTL sets the terminal-job retention age.
func (b *ConfigBuilder) WithJobTTL(d time.Duration) *ConfigBuilder {
	b.config.JobTTL = d
	return b
}

// WithStageTimeout sets the timeout for a stage.
func (b *ConfigBuilder) WithStageTimeout(stage StageName, timeout time.Duration) *ConfigBuilder {
	if b.config.StageTimeouts == nil {
		b.config.StageTimeouts = make(map[StageName]time.Duration)
	}
	b.config.StageTimeouts[stage] = timeout
	return b
}

// WithRetry sets the retry configuration.
func (b *ConfigBuilder) WithRetry(rc RetryConfig) *ConfigBuilder {
	b.config.Retry = rc
	return b
}

// WithIntraBranchConcurrency sets the in-branch concurrency cap.
func (b *ConfigBuilder) WithIntraBranchConcurrency(n int) *ConfigBuilder {
	b.config.IntraBranchConcurrency = n
	return b
}

// WithPacingDelay sets the pause between generation waves.
func (b *ConfigBuilder) WithPacingDelay(d time.Duration) *ConfigBuilder {
	b.config.PacingDelay = d
	return b
}

// WithCredentials sets the provider API keys.
func (b *ConfigBuilder) WithCredentials(creds CredentialSet) *ConfigBuilder {
	b.config.Credentials = creds
	return b
}

// WithProviders sets the provider selection.
func (b *ConfigBuilder) WithProviders(sel ProviderSelection) *ConfigBuilder {
	b.config.Providers = sel
	return b
}

// Build returns the built configuration.
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
