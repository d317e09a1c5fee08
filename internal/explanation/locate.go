package explanation

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/config"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
)

// Source says where an explanation was found.
type Source string

const (
	SourceNone    Source = ""
	SourceBody    Source = "body"
	SourceComment Source = "comment"
)

// Candidate is the explanation chosen for an item.
type Candidate struct {
	Text      string
	Source    Source
	CommentID string
	Result    Result
}

// Locate finds the item's explanation in the places the rules allow: the item body, and
// top-level comments written by the item's author. Removed comments and comments by botUsername
// are ignored. The first valid candidate wins. Otherwise the result of the longest candidate is
// returned so the author is told about their best attempt.
func Locate(item *models.ContentItem, comments []models.Comment, rules config.ExplanationRules, botUsername string) Candidate {
	var candidates []Candidate

	if rules.Location != config.LocationAnnotation && strings.TrimSpace(item.Body) != "" {
		candidates = append(candidates, Candidate{Text: item.Body, Source: SourceBody})
	}

	if rules.Location != config.LocationBody {
		for _, c := range authorComments(item, comments, botUsername) {
			candidates = append(candidates, Candidate{Text: c.Body, Source: SourceComment, CommentID: c.ID})
		}
	}

	if len(candidates) == 0 {
		return Candidate{Result: Validate("", rules)}
	}

	best := -1
	bestLen := -1
	for i := range candidates {
		candidates[i].Result = Validate(candidates[i].Text, rules)
		if candidates[i].Result.Valid {
			return candidates[i]
		}
		if n := utf8.RuneCountInString(strings.TrimSpace(candidates[i].Text)); n > bestLen {
			best, bestLen = i, n
		}
	}
	return candidates[best]
}

// authorComments returns the qualifying comments in the order they were written.
func authorComments(item *models.ContentItem, comments []models.Comment, botUsername string) []models.Comment {
	var out []models.Comment
	for _, c := range comments {
		if !c.TopLevel || c.Removed {
			continue
		}
		if botUsername != "" && strings.EqualFold(c.Author, botUsername) {
			continue
		}
		if !item.IsAuthor(c.Author) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
