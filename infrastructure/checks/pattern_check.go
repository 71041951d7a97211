package checks

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ahrav/go-gatekeeper/internal/domain"
)

// EvaluatePatternCheck requires every regex to match and every keyword to
// occur at least its minimum number of times. Keyword matching uses full
// Unicode case folding, so "STRASSE" counts as an occurrence of "straße".
func EvaluatePatternCheck(c domain.PatternCheck, content string) (domain.ValidationCheck, error) {
	var violations []string

	for _, p := range c.RegexPatterns {
		re, err := compile(p)
		if err != nil {
			return domain.ValidationCheck{}, err
		}
		if !re.MatchString(content) {
			violations = append(violations, "Pattern not found: "+p)
		}
	}

	counts := make(map[string]int, len(c.KeywordCount))
	if len(c.KeywordCount) > 0 {
		// Folders are stateful; one per call keeps this safe for concurrent use.
		caser := cases.Fold()
		folded := caser.String(content)

		// Sorted for stable messages.
		keywords := make([]string, 0, len(c.KeywordCount))
		for k := range c.KeywordCount {
			keywords = append(keywords, k)
		}
		sort.Strings(keywords)

		for _, k := range keywords {
			needle := caser.String(k)
			n := 0
			if needle != "" {
				n = strings.Count(folded, needle)
			}
			counts[k] = n
			if want := c.KeywordCount[k]; n < want {
				violations = append(violations, fmt.Sprintf("Keyword '%s' appears %d times, expected at least %d", k, n, want))
			}
		}
	}

	return buildCheck(domain.CheckPatternCheck, violations, "Pattern check passed", map[string]any{
		"keyword_counts": counts,
	}), nil
}
