// Package explanation decides whether an author's explanation meets the configured quality bars.
// All matching is plain substring, prefix and suffix comparison; user content and configuration
// are never compiled into regular expressions.
package explanation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/config"
)

// Result is the outcome of validating one candidate text.
type Result struct {
	Valid               bool   `json:"valid"`
	ShouldFlagForReview bool   `json:"should_flag_for_review"`
	Reason              string `json:"reason,omitempty"`
}

// Validate checks text against the rules. Every configured check must pass. A text that passes
// but is shorter than FlagForReviewLength is valid and flagged for review.
func Validate(text string, rules config.ExplanationRules) Result {
	trimmed := strings.TrimSpace(text)
	length := utf8.RuneCountInString(trimmed)

	if length == 0 {
		return Result{Reason: "no explanation was provided"}
	}
	if length < rules.MinLength {
		return Result{Reason: fmt.Sprintf("explanation is too short (%d characters, at least %d required)", length, rules.MinLength)}
	}

	lower := strings.ToLower(trimmed)

	if words := normalize(rules.ContainsOne); len(words) > 0 && !containsAny(lower, words) {
		return Result{Reason: fmt.Sprintf("explanation must contain at least one of: %s", strings.Join(words, ", "))}
	}
	if words := normalize(rules.ContainsAll); len(words) > 0 {
		for _, w := range words {
			if !strings.Contains(lower, w) {
				return Result{Reason: fmt.Sprintf("explanation must contain %q", w)}
			}
		}
	}
	if words := normalize(rules.StartsWith); len(words) > 0 && !hasAnyPrefix(lower, words) {
		return Result{Reason: fmt.Sprintf("explanation must start with one of: %s", strings.Join(words, ", "))}
	}
	if words := normalize(rules.EndsWith); len(words) > 0 && !hasAnySuffix(lower, words) {
		return Result{Reason: fmt.Sprintf("explanation must end with one of: %s", strings.Join(words, ", "))}
	}

	res := Result{Valid: true}
	if rules.FlagForReviewLength > 0 && length < rules.FlagForReviewLength {
		res.ShouldFlagForReview = true
		res.Reason = fmt.Sprintf("explanation is short (%d characters)", length)
	}
	return res
}

// normalize lowercases the keywords and drops blank entries, so a list of blanks disables its check.
func normalize(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, words []string) bool {
	for _, w := range words {
		if strings.HasPrefix(s, w) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, words []string) bool {
	for _, w := range words {
		if strings.HasSuffix(s, w) {
			return true
		}
	}
	return false
}
