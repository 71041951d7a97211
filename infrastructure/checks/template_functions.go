package checks

import (
	"encoding/json"
	"strings"
	"text/template"
	"unicode/utf8"
)

// GetTemplateFuncMap returns the helper functions available to self-check
// prompt templates in addition to the content, metadata and
// executionContext placeholders.
//
// Usage in a gate definition:
//
//	prompt_template: |
//	  Judge this draft: {{truncate content 2000}}
//	  Context: {{metadata}}
func GetTemplateFuncMap() template.FuncMap {
	return template.FuncMap{
		// contains reports whether substr is within s.
		"contains": strings.Contains,

		// truncate limits s to length runes, adding "..." when it cuts.
		"truncate": func(s string, length int) string {
			if length <= 0 {
				return ""
			}
			if utf8.RuneCountInString(s) <= length {
				return s
			}
			r := []rune(s)
			if length > 3 {
				return string(r[:length-3]) + "..."
			}
			return string(r[:length])
		},

		"lower": strings.ToLower,
		"upper": strings.ToUpper,
		"trim":  strings.TrimSpace,

		// replace returns s with all instances of old replaced by new.
		"replace": func(s, old, new string) string {
			return strings.ReplaceAll(s, old, new)
		},

		"join": func(elems []string, sep string) string {
			return strings.Join(elems, sep)
		},

		// toJSON renders v as JSON, or "{}" when it cannot be encoded.
		"toJSON": toJSON,
	}
}

// toJSON serializes a prompt value. Nil maps render as "{}" so templates
// never show "null" to the model.
func toJSON(v any) string {
	if v == nil {
		return "{}"
	}
	if m, ok := v.(map[string]any); ok && m == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
