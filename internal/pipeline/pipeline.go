// Package pipeline decides whether an item needs an explanation. Rules are evaluated in a fixed
// priority order and the first rule that matches decides.
package pipeline

import (
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/config"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
)

// ApprovalShield is how long an approved record suppresses re-enforcement. Not configurable.
const ApprovalShield = 24 * time.Hour

// Stage names the rule that produced a decision.
type Stage string

const (
	StageAuthor    Stage = "author"
	StageApproved  Stage = "approved"
	StageSkip      Stage = "skip_keyword"
	StageExclusion Stage = "exclusion"
	StageLabel     Stage = "label"
	StageType      Stage = "type"
)

// Snapshot is the external state a decision is made on.
type Snapshot struct {
	Item     *models.ContentItem
	Comments []models.Comment
	// ApprovedAt is the time of the engine's own approved record, if any.
	ApprovedAt *time.Time
	// RemovedByEngine is true when the item carries the engine's removed record.
	RemovedByEngine bool
}

// Decision is the result of Evaluate.
type Decision struct {
	Enforce bool   `json:"enforce"`
	Reason  string `json:"reason"`
	Stage   Stage  `json:"stage"`
}

func skip(stage Stage, format string, args ...any) Decision {
	return Decision{Enforce: false, Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// Evaluate runs the rules against the snapshot. It has no side effects and never fails: a rule
// that cannot be evaluated on malformed input does not match.
func Evaluate(snap Snapshot, rules config.Rules, now time.Time) Decision {
	item := snap.Item
	if item == nil || item.Author == nil {
		return skip(StageAuthor, "author account deleted")
	}

	if snap.ApprovedAt != nil && now.Sub(*snap.ApprovedAt) < ApprovalShield {
		return skip(StageApproved, "approved %s ago", now.Sub(*snap.ApprovedAt).Round(time.Minute))
	}

	body := strings.ToLower(item.Body)
	if kw, ok := firstContained(body, rules.SkipKeywords); ok {
		return skip(StageSkip, "body contains skip keyword %q", kw)
	}

	if d, excluded := exclusion(snap, rules, now); excluded {
		return d
	}

	if label := strings.TrimSpace(item.Flair); label != "" {
		if matchesFold(label, rules.ExcludedLabels) {
			return skip(StageLabel, "label %q is excluded", label)
		}
		if matchesFold(label, rules.EnforcedLabels) {
			return Decision{Enforce: true, Stage: StageLabel, Reason: fmt.Sprintf("label %q is enforced", label)}
		}
	}

	kind := Classify(item, rules)
	if matchesFold(string(kind), rules.EnforcedTypes) || matchesFold(string(item.Type), rules.EnforcedTypes) {
		return Decision{Enforce: true, Stage: StageType, Reason: fmt.Sprintf("type %q requires an explanation", kind)}
	}
	return skip(StageType, "type %q does not require an explanation", kind)
}

func exclusion(snap Snapshot, rules config.Rules, now time.Time) (Decision, bool) {
	item := snap.Item

	if matchesFold(item.AuthorName(), rules.AllowlistedAuthors) {
		return skip(StageExclusion, "author %s is allowlisted", item.AuthorName()), true
	}

	if rules.MaxItemAgeHours > 0 && !item.CreatedAt.IsZero() {
		ceiling := time.Duration(rules.MaxItemAgeHours * float64(time.Hour))
		if age := now.Sub(item.CreatedAt); age > ceiling {
			return skip(StageExclusion, "item is older than %v hours", rules.MaxItemAgeHours), true
		}
	}

	if rules.MaxPopularityScore > 0 && item.Score > rules.MaxPopularityScore {
		return skip(StageExclusion, "score %d exceeds %d", item.Score, rules.MaxPopularityScore), true
	}

	title := strings.ToLower(strings.TrimSpace(item.Title))
	body := strings.ToLower(strings.TrimSpace(item.Body))
	for _, p := range lowered(rules.TextExclusionPrefixes) {
		if strings.HasPrefix(title, p) || strings.HasPrefix(body, p) {
			return skip(StageExclusion, "text starts with %q", p), true
		}
	}
	for _, p := range lowered(rules.TextExclusionContains) {
		if strings.Contains(title, p) || strings.Contains(body, p) {
			return skip(StageExclusion, "text contains %q", p), true
		}
	}

	if host, ok := Host(item.URL); ok {
		if d, ok := matchDomain(host, rules.ExcludedDomains); ok {
			return skip(StageExclusion, "link domain %s is excluded", d), true
		}
	}

	if rules.RespectModeratorApproval && item.Approved {
		return skip(StageExclusion, "approved by a moderator"), true
	}

	if rules.RespectModeratorRemoval && item.Removed && !snap.RemovedByEngine {
		return skip(StageExclusion, "removed by a moderator"), true
	}

	// Removed moderator comments still count.
	phrases := lowered(rules.ModeratorOverridePhrases)
	if len(phrases) > 0 {
		for _, c := range snap.Comments {
			if !c.IsModerator {
				continue
			}
			if p, ok := firstContained(strings.ToLower(c.Body), phrases); ok {
				return skip(StageExclusion, "moderator override %q", p), true
			}
		}
	}

	return Decision{}, false
}

var (
	imageSuffixes = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}
	videoSuffixes = []string{".mp4", ".webm", ".gifv", ".mov", ".mkv"}
)

// Classify refines the platform's type discriminator. Links pointing at a configured image or
// video domain, or at a media file, are treated as that media type. Text items mentioning a
// media keyword or media domain become text-with-media.
func Classify(item *models.ContentItem, rules config.Rules) models.ItemType {
	switch item.Type {
	case models.ItemTypeLink:
		host, ok := Host(item.URL)
		if !ok {
			return models.ItemTypeLink
		}
		if _, ok := matchDomain(host, rules.ImageDomains); ok {
			return models.ItemTypeImage
		}
		if _, ok := matchDomain(host, rules.VideoDomains); ok {
			return models.ItemTypeVideo
		}
		if u, err := url.Parse(item.URL); err == nil {
			ext := strings.ToLower(path.Ext(u.Path))
			if slices.Contains(imageSuffixes, ext) {
				return models.ItemTypeImage
			}
			if slices.Contains(videoSuffixes, ext) {
				return models.ItemTypeVideo
			}
		}
		return models.ItemTypeLink
	case models.ItemTypeText:
		body := strings.ToLower(item.Body)
		if _, ok := firstContained(body, rules.TextMediaKeywords); ok {
			return models.ItemTypeTextMedia
		}
		if _, ok := firstContained(body, rules.ImageDomains); ok {
			return models.ItemTypeTextMedia
		}
		if _, ok := firstContained(body, rules.VideoDomains); ok {
			return models.ItemTypeTextMedia
		}
		return models.ItemTypeText
	default:
		return item.Type
	}
}

// Host returns the lowercased host of a link without any "www." prefix. Malformed or relative
// links report false.
func Host(link string) (string, bool) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", false
	}
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), true
}

// matchDomain matches host against domains, including their subdomains.
func matchDomain(host string, domains []string) (string, bool) {
	for _, d := range lowered(domains) {
		d = strings.TrimPrefix(d, "www.")
		if host == d || strings.HasSuffix(host, "."+d) {
			return d, true
		}
	}
	return "", false
}

func firstContained(s string, words []string) (string, bool) {
	for _, w := range lowered(words) {
		if strings.Contains(s, w) {
			return w, true
		}
	}
	return "", false
}

func matchesFold(s string, set []string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, v := range set {
		if strings.EqualFold(s, strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

func lowered(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
