package llm

// options.go parses the generic option maps accepted by DoRequest.

// DefaultMaxTokens is used when a request does not set max_tokens.
const DefaultMaxTokens = 1024

// RequestOptions is the standardized view of a DoRequest option map.
type RequestOptions struct {
	MaxTokens int
	Model     string
	// Temperature is nil when the backend default should be used.
	Temperature *float64
	// System is sent as a system instruction where the backend supports one.
	System string
	// Extra holds options not covered by the fields above.
	Extra map[string]any
}

// ParseRequestOptions extracts request parameters from opts, falling back
// to defaults for missing or invalid entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, "max_tokens", DefaultMaxTokens, IsPositiveInt),
		Model:     ExtractOptionalString(opts, "model", defaultModel, IsNonEmptyString),
		System:    ExtractOptionalString(opts, "system", "", nil),
		Extra:     make(map[string]any),
	}

	if temp := ExtractOptionalFloat64(opts, "temperature", -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature":
		default:
			options.Extra[k] = v
		}
	}

	return options
}

// ExtractOptionalInt returns opts[key] as an int, or defaultVal when the key
// is missing, has another type, or fails validator.
func ExtractOptionalInt(opts map[string]any, key string, defaultVal int, validator func(int) bool) int {
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}

	intVal, ok := SafeInt(val)
	if !ok {
		return defaultVal
	}

	if validator != nil && !validator(intVal) {
		return defaultVal
	}

	return intVal
}

// ExtractOptionalString returns opts[key] as a string, or defaultVal.
func ExtractOptionalString(opts map[string]any, key string, defaultVal string, validator func(string) bool) string {
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}

	strVal, ok := val.(string)
	if !ok {
		return defaultVal
	}

	if validator != nil && !validator(strVal) {
		return defaultVal
	}

	return strVal
}

// ExtractOptionalFloat64 returns opts[key] as a float64, or defaultVal.
func ExtractOptionalFloat64(opts map[string]any, key string, defaultVal float64, validator func(float64) bool) float64 {
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}

	var floatVal float64
	switch v := val.(type) {
	case float64:
		floatVal = v
	case float32:
		floatVal = float64(v)
	case int:
		floatVal = float64(v)
	default:
		return defaultVal
	}

	if validator != nil && !validator(floatVal) {
		return defaultVal
	}

	return floatVal
}
