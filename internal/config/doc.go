// Package config provides centralized configuration management for the
// promogen service. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration
// values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern PROMOGEN_* for namespacing:
//
//	PROMOGEN_SERVER_PORT=8080
//	PROMOGEN_LOGGING_LEVEL=info
//	PROMOGEN_GENERATION_MAX_CONCURRENT_JOBS=5
//	PROMOGEN_PROVIDERS_CLAUDE_API_KEY=sk-ant-...
//	PROMOGEN_PROVIDERS_OPENAI_API_KEY=sk-...
//
// # Validation
//
// All configuration is validated at load time to ensure:
//
//	- Required fields are present
//	- Values are within acceptable ranges
//	- Provider selections name a known provider
//
// Repairable fields (log format, output mode) are normalized instead of
// rejected.
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
