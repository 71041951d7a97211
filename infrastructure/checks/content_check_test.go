package checks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gatekeeper/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestEvaluateContentCheck(t *testing.T) {
	tests := []struct {
		name        string
		check       domain.ContentCheck
		content     string
		wantPassed  bool
		wantMessage string
	}{
		{
			name:        "too short",
			check:       domain.ContentCheck{MinLength: intPtr(50)},
			content:     strings.Repeat("a", 30),
			wantMessage: "Content too short: 30 < 50 characters",
		},
		{
			name:        "too long",
			check:       domain.ContentCheck{MaxLength: intPtr(5)},
			content:     "abcdefgh",
			wantMessage: "Content too long: 8 > 5 characters",
		},
		{
			name: "within bounds with patterns satisfied",
			check: domain.ContentCheck{
				MinLength:         intPtr(5),
				MaxLength:         intPtr(100),
				RequiredPatterns:  []string{`(?i)title`},
				ForbiddenPatterns: []string{`lorem ipsum`},
			},
			content:     "Title: a real heading",
			wantPassed:  true,
			wantMessage: "Content check passed",
		},
		{
			name: "every violation is reported",
			check: domain.ContentCheck{
				MinLength:         intPtr(100),
				RequiredPatterns:  []string{`^#`, `conclusion`},
				ForbiddenPatterns: []string{`TODO`},
			},
			content: "draft TODO",
			wantMessage: "Content too short: 10 < 100 characters; " +
				"Missing required pattern: ^#; " +
				"Missing required pattern: conclusion; " +
				"Contains forbidden pattern: TODO",
		},
		{
			name:        "length counts code points",
			check:       domain.ContentCheck{MinLength: intPtr(4), MaxLength: intPtr(4)},
			content:     "日本語!",
			wantPassed:  true,
			wantMessage: "Content check passed",
		},
		{
			name:        "empty criterion passes",
			check:       domain.ContentCheck{},
			content:     "",
			wantPassed:  true,
			wantMessage: "Content check passed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check, err := EvaluateContentCheck(tt.check, tt.content)
			require.NoError(t, err)

			assert.Equal(t, domain.CheckContentCheck, check.Type)
			assert.Equal(t, tt.wantPassed, check.Passed)
			assert.Equal(t, tt.wantMessage, check.Message)
			require.NotNil(t, check.Score)
			if tt.wantPassed {
				assert.Equal(t, 1.0, *check.Score)
				assert.Equal(t, domain.CheckStatusPassed, check.Status)
			} else {
				assert.Equal(t, 0.0, *check.Score)
				assert.Equal(t, domain.CheckStatusFailed, check.Status)
			}
		})
	}
}

func TestEvaluateContentCheck_InvalidPattern(t *testing.T) {
	_, err := EvaluateContentCheck(domain.ContentCheck{RequiredPatterns: []string{"("}}, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestEvaluatePatternCheck(t *testing.T) {
	tests := []struct {
		name        string
		check       domain.PatternCheck
		content     string
		wantPassed  bool
		wantMessage string
	}{
		{
			name:        "regex and keywords satisfied",
			check:       domain.PatternCheck{RegexPatterns: []string{`\d{4}`}, KeywordCount: map[string]int{"go": 2}},
			content:     "Go 1.24 shipped in 2025 and go is great",
			wantPassed:  true,
			wantMessage: "Pattern check passed",
		},
		{
			name:        "case folding beyond ASCII",
			check:       domain.PatternCheck{KeywordCount: map[string]int{"straße": 2}},
			content:     "STRASSE and Straße",
			wantPassed:  true,
			wantMessage: "Pattern check passed",
		},
		{
			name:    "all failures are joined",
			check:   domain.PatternCheck{RegexPatterns: []string{`^Summary`}, KeywordCount: map[string]int{"risk": 3, "action": 1}},
			content: "Risk noted. risk again.",
			wantMessage: "Pattern not found: ^Summary; " +
				"Keyword 'action' appears 0 times, expected at least 1; " +
				"Keyword 'risk' appears 2 times, expected at least 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check, err := EvaluatePatternCheck(tt.check, tt.content)
			require.NoError(t, err)
			assert.Equal(t, domain.CheckPatternCheck, check.Type)
			assert.Equal(t, tt.wantPassed, check.Passed)
			assert.Equal(t, tt.wantMessage, check.Message)
		})
	}

	_, err := EvaluatePatternCheck(domain.PatternCheck{RegexPatterns: []string{"[a-"}}, "x")
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestEvaluateNonBlockingCriteria(t *testing.T) {
	m := EvaluateMethodologyCompliance(domain.MethodologyCompliance{Framework: "CAGEERF"})
	assert.True(t, m.Passed)
	assert.Equal(t, 1.0, *m.Score)
	assert.Equal(t, domain.CheckStatusDeferred, m.Status)
	assert.Contains(t, m.Message, "deferred")

	u := EvaluateUnknown(domain.UnknownCriterion{Tag: "sentiment_check"})
	assert.True(t, u.Passed)
	assert.Equal(t, domain.CheckStatusSkipped, u.Status)
	assert.Equal(t, "Unknown check type 'sentiment_check' skipped", u.Message)
}
