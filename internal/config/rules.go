package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Action is what happens to an item that is still unexplained after the warning period.
type Action string

const (
	ActionRemove Action = "remove"
	ActionReport Action = "report"
	ActionBoth   Action = "both"
)

// Removes reports whether the action takes the item down.
func (a Action) Removes() bool { return a == ActionRemove || a == ActionBoth }

// Reports reports whether the action files a report.
func (a Action) Reports() bool { return a == ActionReport || a == ActionBoth }

// Location is where an explanation may be given.
type Location string

const (
	LocationBody       Location = "body"
	LocationAnnotation Location = "annotation"
	LocationEither     Location = "either"
)

// Rules is the enforcement configuration, resolved once per invocation and passed explicitly.
type Rules struct {
	EnforcedTypes     []string `yaml:"enforced_types"`
	ImageDomains      []string `yaml:"image_domains"`
	VideoDomains      []string `yaml:"video_domains"`
	TextMediaKeywords []string `yaml:"text_media_keywords"`
	SkipKeywords      []string `yaml:"skip_keywords"`

	AllowlistedAuthors       []string `yaml:"allowlisted_authors"`
	MaxItemAgeHours          float64  `yaml:"max_item_age_hours"`
	MaxPopularityScore       int      `yaml:"max_popularity_score"`
	TextExclusionPrefixes    []string `yaml:"text_exclusion_prefixes"`
	TextExclusionContains    []string `yaml:"text_exclusion_contains"`
	ExcludedDomains          []string `yaml:"excluded_domains"`
	RespectModeratorApproval bool     `yaml:"respect_moderator_approval"`
	RespectModeratorRemoval  bool     `yaml:"respect_moderator_removal"`
	ModeratorOverridePhrases []string `yaml:"moderator_override_phrases"`

	EnforcedLabels []string `yaml:"enforced_labels"`
	ExcludedLabels []string `yaml:"excluded_labels"`

	Explanation ExplanationRules `yaml:"explanation"`

	GracePeriodMinutes   int    `yaml:"grace_period_minutes"`
	WarningPeriodMinutes int    `yaml:"warning_period_minutes"`
	EnforcementAction    Action `yaml:"enforcement_action"`

	CommentOnWarning       bool `yaml:"comment_on_warning"`
	CommentOnRemoval       bool `yaml:"comment_on_removal"`
	CommentOnReinstatement bool `yaml:"comment_on_reinstatement"`

	Messages Messages `yaml:"messages"`
}

// ExplanationRules are the quality bars a candidate explanation must meet.
type ExplanationRules struct {
	MinLength           int      `yaml:"min_length"`
	FlagForReviewLength int      `yaml:"flag_for_review_length"`
	ContainsOne         []string `yaml:"contains_one"`
	ContainsAll         []string `yaml:"contains_all"`
	StartsWith          []string `yaml:"starts_with"`
	EndsWith            []string `yaml:"ends_with"`
	Location            Location `yaml:"location"`
}

// Messages are the templates posted as comments.
type Messages struct {
	Warning       string `yaml:"warning"`
	Removal       string `yaml:"removal"`
	Reinstatement string `yaml:"reinstatement"`
	ReportReason  string `yaml:"report_reason"`
	AppealSubject string `yaml:"appeal_subject"`
	AppealBody    string `yaml:"appeal_body"`
}

// DefaultRules returns the rules used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		EnforcedTypes:            []string{"image", "gallery", "video"},
		ImageDomains:             []string{"i.redd.it", "i.imgur.com", "imgur.com"},
		VideoDomains:             []string{"v.redd.it", "youtube.com", "youtu.be", "streamable.com"},
		RespectModeratorApproval: true,
		RespectModeratorRemoval:  true,
		Explanation: ExplanationRules{
			MinLength: 50,
			Location:  LocationEither,
		},
		GracePeriodMinutes:   5,
		WarningPeriodMinutes: 60,
		EnforcementAction:    ActionRemove,
		CommentOnWarning:     true,
		CommentOnRemoval:     true,
		Messages: Messages{
			Warning: "Hi {{author}}, your post needs an explanation. Please add a comment of at least " +
				"the required length explaining it. If none is added within {{warningMinutes}} minutes, the post will be removed.",
			Removal: "Hi {{author}}, your post has been removed because no explanation was provided. " +
				"Add an explanation and [message the moderators]({{appealLink}}) to have it reinstated.",
			Reinstatement: "Thanks {{author}}, your explanation was found and the post has been reinstated.",
			ReportReason:  "No explanation provided for {{itemUrl}}",
			AppealSubject: "Reinstatement request",
			AppealBody:    "I have added an explanation to my post: {{itemUrl}}",
		},
	}
}

// Validate rejects values the engine cannot act on.
func (r Rules) Validate() error {
	switch r.EnforcementAction {
	case ActionRemove, ActionReport, ActionBoth:
	default:
		return fmt.Errorf("unknown enforcement action %q", r.EnforcementAction)
	}
	switch r.Explanation.Location {
	case LocationBody, LocationAnnotation, LocationEither:
	default:
		return fmt.Errorf("unknown explanation location %q", r.Explanation.Location)
	}
	if r.GracePeriodMinutes < 0 || r.WarningPeriodMinutes < 0 {
		return fmt.Errorf("grace and warning periods must not be negative")
	}
	return nil
}

// RulesFromSettings resolves rules from an opaque settings bag, as handed over by the host
// platform's settings UI. Unknown keys are ignored and malformed values keep their default.
func RulesFromSettings(settings map[string]string) Rules {
	r := DefaultRules()

	list := func(key string, dst *[]string) {
		if v, ok := settings[key]; ok {
			*dst = SplitList(v)
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := settings[key]; ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}
	number := func(key string, dst *int) {
		if v, ok := settings[key]; ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
				*dst = n
			}
		}
	}
	text := func(key string, dst *string) {
		if v, ok := settings[key]; ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}

	list("enforcedTypes", &r.EnforcedTypes)
	list("imageDomains", &r.ImageDomains)
	list("videoDomains", &r.VideoDomains)
	list("textMediaKeywords", &r.TextMediaKeywords)
	list("skipKeywords", &r.SkipKeywords)
	list("allowlistedAuthors", &r.AllowlistedAuthors)
	if v, ok := settings["maxItemAgeHours"]; ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 {
			r.MaxItemAgeHours = f
		}
	}
	number("maxPopularityScore", &r.MaxPopularityScore)
	list("textExclusionPrefixes", &r.TextExclusionPrefixes)
	list("textExclusionContains", &r.TextExclusionContains)
	list("excludedDomains", &r.ExcludedDomains)
	flag("respectModeratorApproval", &r.RespectModeratorApproval)
	flag("respectModeratorRemoval", &r.RespectModeratorRemoval)
	list("moderatorOverridePhrases", &r.ModeratorOverridePhrases)
	list("enforcedLabels", &r.EnforcedLabels)
	list("excludedLabels", &r.ExcludedLabels)

	number("minExplanationLength", &r.Explanation.MinLength)
	number("flagForReviewLength", &r.Explanation.FlagForReviewLength)
	list("requiredContainsOne", &r.Explanation.ContainsOne)
	list("requiredContainsAll", &r.Explanation.ContainsAll)
	list("requiredStartsWith", &r.Explanation.StartsWith)
	list("requiredEndsWith", &r.Explanation.EndsWith)
	if v, ok := settings["explanationLocation"]; ok {
		switch loc := Location(strings.ToLower(strings.TrimSpace(v))); loc {
		case LocationBody, LocationAnnotation, LocationEither:
			r.Explanation.Location = loc
		}
	}

	number("gracePeriodMinutes", &r.GracePeriodMinutes)
	number("warningPeriodMinutes", &r.WarningPeriodMinutes)
	if v, ok := settings["enforcementAction"]; ok {
		switch a := Action(strings.ToLower(strings.TrimSpace(v))); a {
		case ActionRemove, ActionReport, ActionBoth:
			r.EnforcementAction = a
		}
	}
	flag("commentOnWarning", &r.CommentOnWarning)
	flag("commentOnRemoval", &r.CommentOnRemoval)
	flag("commentOnReinstatement", &r.CommentOnReinstatement)

	text("warningMessage", &r.Messages.Warning)
	text("removalMessage", &r.Messages.Removal)
	text("reinstatementMessage", &r.Messages.Reinstatement)
	text("reportReason", &r.Messages.ReportReason)

	return r
}

// SplitList splits a comma or newline separated setting, dropping blanks.
func SplitList(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
