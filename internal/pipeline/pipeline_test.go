package pipeline

import (
	"testing"
	"time"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/config"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func imageItem() *models.ContentItem {
	return &models.ContentItem{
		ID:        "abc",
		Author:    strPtr("alice"),
		Title:     "The Ottomans in 1600",
		CreatedAt: testNow.Add(-10 * time.Minute),
		Type:      models.ItemTypeImage,
		URL:       "https://i.redd.it/abc.png",
		Score:     10,
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestEvaluate(t *testing.T) {
	defaults := config.DefaultRules()

	tests := []struct {
		name    string
		snap    func() Snapshot
		rules   func(r *config.Rules)
		enforce bool
		stage   Stage
	}{
		{
			name:    "image is enforced",
			snap:    func() Snapshot { return Snapshot{Item: imageItem()} },
			enforce: true,
			stage:   StageType,
		},
		{
			name: "deleted author",
			snap: func() Snapshot {
				it := imageItem()
				it.Author = nil
				return Snapshot{Item: it}
			},
			stage: StageAuthor,
		},
		{
			name:  "approved one hour ago",
			snap:  func() Snapshot { return Snapshot{Item: imageItem(), ApprovedAt: timePtr(testNow.Add(-time.Hour))} },
			stage: StageApproved,
		},
		{
			name:    "approved 25 hours ago",
			snap:    func() Snapshot { return Snapshot{Item: imageItem(), ApprovedAt: timePtr(testNow.Add(-25 * time.Hour))} },
			enforce: true,
			stage:   StageType,
		},
		{
			name:    "approved exactly 24 hours ago",
			snap:    func() Snapshot { return Snapshot{Item: imageItem(), ApprovedAt: timePtr(testNow.Add(-24 * time.Hour))} },
			enforce: true,
			stage:   StageType,
		},
		{
			name: "skip keyword beats enforced type",
			snap: func() Snapshot {
				it := imageItem()
				it.Body = "Please [NoExplain] this one"
				return Snapshot{Item: it}
			},
			rules: func(r *config.Rules) { r.SkipKeywords = []string{"[noexplain]"} },
			stage: StageSkip,
		},
		{
			name: "skip keyword beats enforced label",
			snap: func() Snapshot {
				it := imageItem()
				it.Body = "[noexplain]"
				it.Flair = "Screenshot"
				return Snapshot{Item: it}
			},
			rules: func(r *config.Rules) {
				r.SkipKeywords = []string{"[noexplain]"}
				r.EnforcedLabels = []string{"screenshot"}
			},
			stage: StageSkip,
		},
		{
			name:  "allowlisted author",
			snap:  func() Snapshot { return Snapshot{Item: imageItem()} },
			rules: func(r *config.Rules) { r.AllowlistedAuthors = []string{"ALICE"} },
			stage: StageExclusion,
		},
		{
			name: "too old",
			snap: func() Snapshot {
				it := imageItem()
				it.CreatedAt = testNow.Add(-3 * time.Hour)
				return Snapshot{Item: it}
			},
			rules: func(r *config.Rules) { r.MaxItemAgeHours = 2 },
			stage: StageExclusion,
		},
		{
			name: "too popular",
			snap: func() Snapshot {
				it := imageItem()
				it.Score = 5000
				return Snapshot{Item: it}
			},
			rules: func(r *config.Rules) { r.MaxPopularityScore = 1000 },
			stage: StageExclusion,
		},
		{
			name:  "title prefix exclusion",
			snap:  func() Snapshot { return Snapshot{Item: imageItem()} },
			rules: func(r *config.Rules) { r.TextExclusionPrefixes = []string{"the ottomans"} },
			stage: StageExclusion,
		},
		{
			name:  "text contains exclusion",
			snap:  func() Snapshot { return Snapshot{Item: imageItem()} },
			rules: func(r *config.Rules) { r.TextExclusionContains = []string{"1600"} },
			stage: StageExclusion,
		},
		{
			name:  "excluded domain",
			snap:  func() Snapshot { return Snapshot{Item: imageItem()} },
			rules: func(r *config.Rules) { r.ExcludedDomains = []string{"redd.it"} },
			stage: StageExclusion,
		},
		{
			name: "malformed link never matches an excluded domain",
			snap: func() Snapshot {
				it := imageItem()
				it.URL = "http://%zz"
				return Snapshot{Item: it}
			},
			rules:   func(r *config.Rules) { r.ExcludedDomains = []string{"redd.it"} },
			enforce: true,
			stage:   StageType,
		},
		{
			name: "moderator approval respected",
			snap: func() Snapshot {
				it := imageItem()
				it.Approved = true
				return Snapshot{Item: it}
			},
			stage: StageExclusion,
		},
		{
			name: "moderator approval ignored when disabled",
			snap: func() Snapshot {
				it := imageItem()
				it.Approved = true
				return Snapshot{Item: it}
			},
			rules:   func(r *config.Rules) { r.RespectModeratorApproval = false },
			enforce: true,
			stage:   StageType,
		},
		{
			name: "moderator removal respected",
			snap: func() Snapshot {
				it := imageItem()
				it.Removed = true
				return Snapshot{Item: it}
			},
			stage: StageExclusion,
		},
		{
			name: "own removal is not a moderator removal",
			snap: func() Snapshot {
				it := imageItem()
				it.Removed = true
				return Snapshot{Item: it, RemovedByEngine: true}
			},
			enforce: true,
			stage:   StageType,
		},
		{
			name: "moderator override phrase in a removed comment",
			snap: func() Snapshot {
				return Snapshot{Item: imageItem(), Comments: []models.Comment{
					{ID: "c1", Author: "mod", Body: "Mod note: NO EXPLANATION NEEDED", IsModerator: true, Removed: true},
				}}
			},
			rules: func(r *config.Rules) { r.ModeratorOverridePhrases = []string{"no explanation needed"} },
			stage: StageExclusion,
		},
		{
			name: "override phrase from a regular user is ignored",
			snap: func() Snapshot {
				return Snapshot{Item: imageItem(), Comments: []models.Comment{
					{ID: "c1", Author: "alice", Body: "no explanation needed"},
				}}
			},
			rules:   func(r *config.Rules) { r.ModeratorOverridePhrases = []string{"no explanation needed"} },
			enforce: true,
			stage:   StageType,
		},
		{
			name: "exclusion label beats enforcement label",
			snap: func() Snapshot {
				it := imageItem()
				it.Flair = "Meta"
				return Snapshot{Item: it}
			},
			rules: func(r *config.Rules) {
				r.ExcludedLabels = []string{"meta"}
				r.EnforcedLabels = []string{"Meta"}
			},
			stage: StageLabel,
		},
		{
			name: "enforcement label beats type rule",
			snap: func() Snapshot {
				it := imageItem()
				it.Type = models.ItemTypeText
				it.URL = ""
				it.Flair = "Screenshot"
				return Snapshot{Item: it}
			},
			rules:   func(r *config.Rules) { r.EnforcedLabels = []string{"screenshot"} },
			enforce: true,
			stage:   StageLabel,
		},
		{
			name: "plain text is not enforced",
			snap: func() Snapshot {
				it := imageItem()
				it.Type = models.ItemTypeText
				it.URL = ""
				it.Body = "Just a question about trade"
				return Snapshot{Item: it}
			},
			stage: StageType,
		},
		{
			name: "empty enforced types disables the type rule",
			snap: func() Snapshot { return Snapshot{Item: imageItem()} },
			rules: func(r *config.Rules) {
				r.EnforcedTypes = nil
			},
			stage: StageType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := defaults
			if tt.rules != nil {
				tt.rules(&rules)
			}
			d := Evaluate(tt.snap(), rules, testNow)
			assert.Equal(t, tt.enforce, d.Enforce, d.Reason)
			assert.Equal(t, tt.stage, d.Stage, d.Reason)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestClassify(t *testing.T) {
	rules := config.DefaultRules()
	rules.TextMediaKeywords = []string{"[img]"}

	tests := []struct {
		name string
		item models.ContentItem
		want models.ItemType
	}{
		{name: "image stays", item: models.ContentItem{Type: models.ItemTypeImage}, want: models.ItemTypeImage},
		{name: "link to image host", item: models.ContentItem{Type: models.ItemTypeLink, URL: "https://www.imgur.com/a/xyz"}, want: models.ItemTypeImage},
		{name: "link to video host subdomain", item: models.ContentItem{Type: models.ItemTypeLink, URL: "https://m.youtube.com/watch?v=1"}, want: models.ItemTypeVideo},
		{name: "link to image file", item: models.ContentItem{Type: models.ItemTypeLink, URL: "https://example.com/map.JPG?x=1"}, want: models.ItemTypeImage},
		{name: "link to video file", item: models.ContentItem{Type: models.ItemTypeLink, URL: "https://example.com/clip.mp4"}, want: models.ItemTypeVideo},
		{name: "plain link", item: models.ContentItem{Type: models.ItemTypeLink, URL: "https://example.com/article"}, want: models.ItemTypeLink},
		{name: "malformed link", item: models.ContentItem{Type: models.ItemTypeLink, URL: "::not a url"}, want: models.ItemTypeLink},
		{name: "lookalike domain", item: models.ContentItem{Type: models.ItemTypeLink, URL: "https://notimgur.com/a"}, want: models.ItemTypeLink},
		{name: "text with keyword", item: models.ContentItem{Type: models.ItemTypeText, Body: "see [IMG] below"}, want: models.ItemTypeTextMedia},
		{name: "text with media domain", item: models.ContentItem{Type: models.ItemTypeText, Body: "https://i.imgur.com/x.png"}, want: models.ItemTypeTextMedia},
		{name: "plain text", item: models.ContentItem{Type: models.ItemTypeText, Body: "hello"}, want: models.ItemTypeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(&tt.item, rules))
		})
	}
}

func TestEvaluate_EnforcedTextWithMedia(t *testing.T) {
	rules := config.DefaultRules()
	rules.EnforcedTypes = []string{"text-with-media"}
	rules.TextMediaKeywords = []string{"screenshot"}

	it := imageItem()
	it.Type = models.ItemTypeText
	it.Body = "Screenshot attached"

	d := Evaluate(Snapshot{Item: it}, rules, testNow)
	assert.True(t, d.Enforce)
}
