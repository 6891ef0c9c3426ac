package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad tests the Load function with various scenarios
func TestLoad(t *testing.T) {
	// Save original environment to restore later
	originalEnv := make(map[string]string)
	envVars := []string{
		"PROMOGEN_SERVER_PORT", "PROMOGEN_SERVER_READ_TIMEOUT", "PROMOGEN_SERVER_WRITE_TIMEOUT",
		"PROMOGEN_SECURITY_ALLOWED_ORIGINS", "PROMOGEN_SECURITY_ENABLE_CORS",
		"PROMOGEN_LOGGING_LEVEL", "PROMOGEN_LOGGING_FORMAT", "PROMOGEN_LOGGING_OUTPUT",
		"PROMOGEN_WEBSOCKET_READ_BUFFER_SIZE", "PROMOGEN_WEBSOCKET_WRITE_BUFFER_SIZE",
		"PROMOGEN_GENERATION_MAX_CONCURRENT_JOBS", "PROMOGEN_GENERATION_JOB_TTL",
		"PROMOGEN_GENERATION_PACING_DELAY",
		"PROMOGEN_PROVIDERS_ANALYSIS", "PROMOGEN_PROVIDERS_IMAGE", "PROMOGEN_PROVIDERS_TEXT",
		"PROMOGEN_PROVIDERS_CLAUDE_API_KEY", "PROMOGEN_PROVIDERS_OPENAI_API_KEY",
	}

	for _, envVar := range envVars {
		originalEnv[envVar] = os.Getenv(envVar)
	}

	defer func() {
		for _, envVar := range envVars {
			if val, exists := originalEnv[envVar]; exists && val != "" {
				os.Setenv(envVar, val)
			} else {
				os.Unsetenv(envVar)
			}
		}
	}()

	clearEnv := func() {
		for _, envVar := range envVars {
			os.Unsetenv(envVar)
		}
	}

	tests := []struct {
		name        string
		setupEnv    func()
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name:     "default configuration with no env vars",
			setupEnv: clearEnv,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

				assert.Equal(t, []string{"http://localhost:8080"}, cfg.Security.AllowedOrigins)
				assert.True(t, cfg.Security.EnableCORS)
				assert.True(t, cfg.Security.RateLimit.Enabled)
				assert.Equal(t, 100.0, cfg.Security.RateLimit.RPS)
				assert.Equal(t, 50, cfg.Security.RateLimit.Burst)

				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "both", cfg.Logging.Output)

				assert.Equal(t, 5, cfg.Generation.MaxConcurrentJobs)
				assert.Equal(t, 10*time.Minute, cfg.Generation.CleanupInterval)
				assert.Equal(t, time.Hour, cfg.Generation.JobTTL)
				assert.Equal(t, 30*time.Second, cfg.Generation.AnalysisTimeout)
				assert.Equal(t, 60*time.Second, cfg.Generation.ImageTimeout)
				assert.Equal(t, 30*time.Second, cfg.Generation.TextTimeout)
				assert.Equal(t, 3, cfg.Generation.Retry.MaxAttempts)
				assert.Equal(t, 2, cfg.Generation.IntraBranchConcurrency)
				assert.Equal(t, "/api/downloads", cfg.Generation.DownloadBasePath)

				assert.Equal(t, "claude", cfg.Providers.Analysis)
				assert.Equal(t, "openai", cfg.Providers.Image)
				assert.Equal(t, "claude", cfg.Providers.Text)
			},
		},
		{
			name: "custom environment variables",
			setupEnv: func() {
				clearEnv()
				os.Setenv("PROMOGEN_SERVER_PORT", "9090")
				os.Setenv("PROMOGEN_SERVER_READ_TIMEOUT", "30s")
				os.Setenv("PROMOGEN_SECURITY_ALLOWED_ORIGINS", "http://example.com,https://example.com")
				os.Setenv("PROMOGEN_LOGGING_LEVEL", "debug")
				os.Setenv("PROMOGEN_GENERATION_MAX_CONCURRENT_JOBS", "10")
				os.Setenv("PROMOGEN_GENERATION_JOB_TTL", "500ms")
				os.Setenv("PROMOGEN_PROVIDERS_ANALYSIS", "gemini")
				os.Setenv("PROMOGEN_PROVIDERS_CLAUDE_API_KEY", "sk-ant-test")
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, []string{"http://example.com", "https://example.com"}, cfg.Security.AllowedOrigins)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, 10, cfg.Generation.MaxConcurrentJobs)
				assert.Equal(t, 500*time.Millisecond, cfg.Generation.JobTTL)
				assert.Equal(t, "gemini", cfg.Providers.Analysis)
				assert.Equal(t, "sk-ant-test", cfg.Providers.ClaudeAPIKey)
			},
		},
		{
			name: "non-json log format is repaired",
			setupEnv: func() {
				clearEnv()
				os.Setenv("PROMOGEN_LOGGING_FORMAT", "text")
				os.Setenv("PROMOGEN_LOGGING_OUTPUT", "syslog")
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "both", cfg.Logging.Output)
			},
		},
		{
			name: "invalid port number",
			setupEnv: func() {
				clearEnv()
				os.Setenv("PROMOGEN_SERVER_PORT", "99999")
			},
			wantErr: true,
		},
		{
			name: "unknown analysis provider",
			setupEnv: func() {
				clearEnv()
				os.Setenv("PROMOGEN_PROVIDERS_ANALYSIS", "llama")
			},
			wantErr: true,
		},
		{
			name: "unknown image provider",
			setupEnv: func() {
				clearEnv()
				os.Setenv("PROMOGEN_PROVIDERS_IMAGE", "claude")
			},
			wantErr: true,
		},
		{
			name: "zero max concurrent jobs",
			setupEnv: func() {
				clearEnv()
				os.Setenv("PROMOGEN_GENERATION_MAX_CONCURRENT_JOBS", "0")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupEnv()

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

// TestLoadFromFile tests YAML file loading and precedence
func TestLoadFromFile(t *testing.T) {
	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	t.Run("file values overlay defaults", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 9191
generation:
  max_concurrent_jobs: 7
  download_base_path: /downloads
providers:
  image: gemini
  gemini_api_key: gm-test
`)

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)

		assert.Equal(t, 9191, cfg.Server.Port)
		assert.Equal(t, 7, cfg.Generation.MaxConcurrentJobs)
		assert.Equal(t, "/downloads", cfg.Generation.DownloadBasePath)
		assert.Equal(t, "gemini", cfg.Providers.Image)
		assert.Equal(t, "gm-test", cfg.Providers.GeminiAPIKey)

		// Untouched sections keep their defaults
		assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, "claude", cfg.Providers.Analysis)
	})

	t.Run("environment wins over file", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 9191
`)

		os.Setenv("PROMOGEN_SERVER_PORT", "9999")
		defer os.Unsetenv("PROMOGEN_SERVER_PORT")

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Server.Port)
	})

	t.Run("missing file returns error", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml returns error", func(t *testing.T) {
		path := writeConfig(t, "server: [not a map")
		_, err := LoadFromFile(path)
		assert.Error(t, err)
	})

	t.Run("invalid file values fail validation", func(t *testing.T) {
		path := writeConfig(t, `
generation:
  max_concurrent_jobs: -3
`)
		_, err := LoadFromFile(path)
		assert.Error(t, err)
	})
}

// TestDefault verifies the default configuration is valid on its own
func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.validate())
}

// TestRateLimitValidation verifies enabled rate limiting requires sane values
func TestRateLimitValidation(t *testing.T) {
	cfg := Default()
	cfg.Security.RateLimit.RPS = 0
	assert.Error(t, cfg.validate())

	cfg = Default()
	cfg.Security.RateLimit.Burst = 0
	assert.Error(t, cfg.validate())

	// Disabled rate limiting skips the checks
	cfg = Default()
	cfg.Security.RateLimit = RateLimitConfig{Enabled: false}
	assert.NoError(t, cfg.validate())
}
