package llm

import (
	"fmt"
	"net/url"
	"time"
)

// Valid ranges for request parameters.
const (
	MinTemperature = 0.0
	// MaxTemperature is 2.0 to accommodate OpenAI and Gemini.
	MaxTemperature = 2.0
	MinMaxTokens   = 1
	MaxMaxTokens   = 1_000_000

	// DefaultTimeout bounds a self-check request when none is configured.
	DefaultTimeout = 45 * time.Second
	MinTimeout     = 1 * time.Second
	MaxTimeout     = 10 * time.Minute
)

// IsValidTemperature checks if the temperature is within [0.0, 2.0].
func IsValidTemperature(val float64) bool {
	return val >= MinTemperature && val <= MaxTemperature
}

// IsPositiveInt checks if the integer value is positive.
func IsPositiveInt(val int) bool { return val > 0 }

// IsNonEmptyString checks if the string is non-empty.
func IsNonEmptyString(val string) bool { return val != "" }

// ValidateBaseURL validates and normalizes a URL. It requires an http or
// https scheme and a host. An empty string is valid and means "use the
// default".
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme == "" {
		return "", fmt.Errorf("URL must include a scheme (e.g., http:// or https://)")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, but got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}

	return parsedURL.String(), nil
}

// ValidateTimeout clamps timeout to [MinTimeout, MaxTimeout]. Zero or
// negative values yield DefaultTimeout.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	if timeout < MinTimeout {
		return MinTimeout
	}
	if timeout > MaxTimeout {
		return MaxTimeout
	}
	return timeout
}

// SafeInt converts a numeric value to an int. JSON and YAML decoders hand
// numbers over as float64, so whole floats are accepted.
func SafeInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		if int64(int(v)) != v {
			return 0, false
		}
		return int(v), true
	case float64:
		// NaN and fractional values are rejected.
		if v != v || v != float64(int64(v)) {
			return 0, false
		}
		const maxInt = int(^uint(0) >> 1)
		const minInt = -maxInt - 1
		if v > float64(maxInt) || v < float64(minInt) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// ClampFloat64 clamps val to [min, max].
func ClampFloat64(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
