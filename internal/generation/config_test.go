package generation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, DefaultMaxConcurrentJobs, cfg.MaxConcurrentJobs)
	assert.Equal(t, DefaultCleanupInterval, cfg.CleanupInterval)
	assert.Equal(t, DefaultJobTTL, cfg.JobTTL)
	assert.Equal(t, DefaultAnalysisTimeout, cfg.StageTimeouts[StageAnalysis])
	assert.Equal(t, DefaultImageTimeout, cfg.StageTimeouts[StagePackages])
	assert.Equal(t, DefaultImageTimeout, cfg.StageTimeouts[StageAds])
	assert.Equal(t, DefaultTextsTimeout, cfg.StageTimeouts[StageTexts])
	assert.Equal(t, DefaultIntraBranchConcurrency, cfg.IntraBranchConcurrency)
	assert.Equal(t, DefaultPacingDelay, cfg.PacingDelay)
	assert.Equal(t, DefaultDownloadBasePath, cfg.DownloadBasePath)
	assert.Equal(t, ProviderClaude, cfg.Providers.Analysis)
	assert.Equal(t, ProviderOpenAI, cfg.Providers.Image)
	assert.Equal(t, ProviderClaude, cfg.Providers.Text)
}

func TestNewRetryConfig(t *testing.T) {
	rc := NewRetryConfig()

	assert.Equal(t, 3, rc.MaxAttempts)
	assert.Equal(t, time.Second, rc.InitialDelay)
	assert.Equal(t, 30*time.Second, rc.MaxDelay)
	assert.Equal(t, 2.0, rc.Multiplier)
}

func TestConfig_StageTimeout(t *testing.T) {
	tests := []struct {
		name     string
		timeouts map[StageName]time.Duration
		stage    StageName
		want     time.Duration
	}{
		{
			name:     "configured value wins",
			timeouts: map[StageName]time.Duration{StageAnalysis: 5 * time.Second},
			stage:    StageAnalysis,
			want:     5 * time.Second,
		},
		{
			name:     "zero entry falls back",
			timeouts: map[StageName]time.Duration{StageTexts: 0},
			stage:    StageTexts,
			want:     DefaultAnalysisTimeout,
		},
		{
			name:     "missing image stage uses image default",
			timeouts: map[StageName]time.Duration{},
			stage:    StageAds,
			want:     DefaultImageTimeout,
		},
		{
			name:     "missing packages stage uses image default",
			timeouts: map[StageName]time.Duration{},
			stage:    StagePackages,
			want:     DefaultImageTimeout,
		},
		{
			name:     "missing analysis stage uses analysis default",
			timeouts: nil,
			stage:    StageAnalysis,
			want:     DefaultAnalysisTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{StageTimeouts: tt.timeouts}
			assert.Equal(t, tt.want, cfg.StageTimeout(tt.stage))
		})
	}
}

func TestConfig_Normalize(t *testing.T) {
	t.Run("zero config gets all defaults", func(t *testing.T) {
		cfg := &Config{}
		cfg.normalize()

		def := NewConfig()
		assert.Equal(t, def.MaxConcurrentJobs, cfg.MaxConcurrentJobs)
		assert.Equal(t, def.JobTTL, cfg.JobTTL)
		assert.Equal(t, def.StageTimeouts, cfg.StageTimeouts)
		assert.Equal(t, def.Retry, cfg.Retry)
		assert.Equal(t, def.IntraBranchConcurrency, cfg.IntraBranchConcurrency)
		assert.Equal(t, def.DownloadBasePath, cfg.DownloadBasePath)
		assert.Equal(t, def.Providers, cfg.Providers)
	})

	t.Run("explicit values survive", func(t *testing.T) {
		cfg := &Config{
			MaxConcurrentJobs: 2,
			JobTTL:            10 * time.Minute,
			Providers:         ProviderSelection{Analysis: ProviderGemini},
		}
		cfg.normalize()

		assert.Equal(t, 2, cfg.MaxConcurrentJobs)
		assert.Equal(t, 10*time.Minute, cfg.JobTTL)
		assert.Equal(t, ProviderGemini, cfg.Providers.Analysis)
		assert.Equal(t, ProviderOpenAI, cfg.Providers.Image)
	})

	t.Run("zero pacing delay is kept", func(t *testing.T) {
		cfg := &Config{PacingDelay: 0}
		cfg.normalize()
		assert.Equal(t, time.Duration(0), cfg.PacingDelay)

		cfg = &Config{PacingDelay: -time.Second}
		cfg.normalize()
		assert.Equal(t, DefaultPacingDelay, cfg.PacingDelay)
	})

	t.Run("zero cleanup interval is kept", func(t *testing.T) {
		cfg := &Config{}
		cfg.normalize()
		assert.Equal(t, time.Duration(0), cfg.CleanupInterval)
	})
}

func TestConfigBuilder(t *testing.T) {
	creds := CredentialSet{ClaudeAPIKey: "sk-ant-test"}
	cfg := NewConfigBuilder().
		WithMaxConcurrentJobs(3).
		WithCleanupInterval(time.Minute).
		WithJobTTL(30 * time.Minute).
		WithStageTimeout(StageAds, 90*time.Second).
		WithRetry(RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}).
		WithIntraBranchConcurrency(4).
		WithPacingDelay(0).
		WithCredentials(creds).
		WithProviders(ProviderSelection{Analysis: ProviderClaude, Image: ProviderGemini, Text: ProviderClaude}).
		Build()

	require.NotNil(t, cfg)
	assert.Equal(t, 3, cfg.MaxConcurrentJobs)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 30*time.Minute, cfg.JobTTL)
	assert.Equal(t, 90*time.Second, cfg.StageTimeouts[StageAds])
	assert.Equal(t, 1, cfg.Retry.MaxAttempts)
	assert.Equal(t, 4, cfg.IntraBranchConcurrency)
	assert.Equal(t, time.Duration(0), cfg.PacingDelay)
	assert.Equal(t, "sk-ant-test", cfg.Credentials.ClaudeAPIKey)
	assert.Equal(t, ProviderGemini, cfg.Providers.Image)

	// Builder starts from defaults, so untouched fields keep them.
	assert.Equal(t, DefaultDownloadBasePath, cfg.DownloadBasePath)
}
