package checks

import (
	"bytes"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTemplateFuncMap(t *testing.T) {
	funcMap := GetTemplateFuncMap()
	require.NotNil(t, funcMap)

	expected := []string{"contains", "truncate", "lower", "upper", "trim", "replace", "join", "toJSON"}
	assert.Len(t, funcMap, len(expected))
	for _, name := range expected {
		assert.Contains(t, funcMap, name)
	}
}

func TestTruncate(t *testing.T) {
	truncate := GetTemplateFuncMap()["truncate"].(func(string, int) string)

	tests := []struct {
		name     string
		input    string
		length   int
		expected string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exact limit", "hello", 5, "hello"},
		{"cut with ellipsis", "hello world", 8, "hello..."},
		{"tiny limit has no ellipsis", "hello", 2, "he"},
		{"zero limit", "hello", 0, ""},
		{"negative limit", "hello", -1, ""},
		{"multibyte runes stay whole", "héllo wörld", 6, "hél..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncate(tt.input, tt.length))
		})
	}
}

func TestToJSON(t *testing.T) {
	var nilMap map[string]any

	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"nil", nil, "{}"},
		{"nil map", nilMap, "{}"},
		{"empty map", map[string]any{}, "{}"},
		{"populated map", map[string]any{"a": 1, "b": "x"}, `{"a":1,"b":"x"}`},
		{"unencodable", map[string]any{"ch": make(chan int)}, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, toJSON(tt.input))
		})
	}
}

func TestTemplateFuncsInTemplate(t *testing.T) {
	tmpl, err := template.New("t").Funcs(GetTemplateFuncMap()).Parse(
		`{{if contains .S "draft"}}{{upper (trim .S)}}{{end}}|{{join .L ", "}}|{{replace .S "draft" "final"}}`)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, map[string]any{"S": " draft ", "L": []string{"a", "b"}}))
	assert.Equal(t, "DRAFT|a, b| final ", buf.String())
}
