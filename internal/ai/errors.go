package ai

import (
	"fmt"
	"strings"

	"promogen/internal/generation"
)

// classifyStatus maps an HTTP status from a provider API to a generation
// error. Auth failures and other 4xx responses are permanent; throttling
// and server-side failures are retryable.
func classifyStatus(stage generation.StageName, status int, body string) *generation.Error {
	msg := fmt.Sprintf("provider returned status %d", status)
	if detail := compactBody(body); detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}

	switch {
	case status == 401 || status == 403:
		return generation.NewAuthError(stage, msg, nil)
	case status == 429:
		return generation.NewRateLimitError(stage, msg, nil)
	case status == 408:
		return generation.NewTransientError(stage, msg, nil)
	case status >= 500:
		return generation.NewTransientError(stage, msg, nil)
	default:
		return generation.NewFatalError(stage, msg, nil)
	}
}

// classifyProviderError normalizes an SDK or transport error into a
// generation error. Provider SDKs flatten API failures into strings, so
// rate-limit and auth detection matches on the markers the APIs are known
// to emit; anything unmatched falls through to the generic classifier.
func classifyProviderError(stage generation.StageName, err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "429"),
		strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "resource_exhausted"),
		strings.Contains(lower, "quota"),
		strings.Contains(lower, "overloaded"):
		return generation.NewRateLimitError(stage, msg, err)
	case strings.Contains(lower, "401"),
		strings.Contains(lower, "403"),
		strings.Contains(lower, "api key"),
		strings.Contains(lower, "authentication"),
		strings.Contains(lower, "permission denied"):
		return generation.NewAuthError(stage, msg, err)
	case strings.Contains(lower, "500"),
		strings.Contains(lower, "502"),
		strings.Contains(lower, "503"),
		strings.Contains(lower, "internal error"),
		strings.Contains(lower, "unavailable"):
		return generation.NewTransientError(stage, msg, err)
	default:
		return generation.Classify(err, stage)
	}
}

// compactBody trims a response body to a single short line for error
// messages.
func compactBody(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	const max = 200
	if len(body) > max {
		body = body[:max] + "..."
	}
	return body
}
