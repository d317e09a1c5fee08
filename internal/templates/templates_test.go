package templates

import (
	"net/url"
	"strings"
	"testing"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/config"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRender(t *testing.T) {
	out := Render("Hi {{author}}: {{itemTitle}} at {{itemUrl}}, {{graceMinutes}}/{{warningMinutes}} {{reason}} {{unknown}}", Vars{
		Author:         "alice",
		ItemTitle:      "Map",
		ItemURL:        "https://x/comments/abc",
		GraceMinutes:   5,
		WarningMinutes: 60,
		Reason:         "too short",
	})
	assert.Equal(t, "Hi alice: Map at https://x/comments/abc, 5/60 too short {{unknown}}", out)
}

func TestItemURL(t *testing.T) {
	host := "https://www.reddit.com/"
	assert.Equal(t, "https://www.reddit.com/r/eu4/comments/abc/map/", ItemURL(host, &models.ContentItem{ID: "abc", Permalink: "/r/eu4/comments/abc/map/"}))
	assert.Equal(t, "https://old.reddit.com/x", ItemURL(host, &models.ContentItem{ID: "abc", Permalink: "https://old.reddit.com/x"}))
	assert.Equal(t, "https://www.reddit.com/comments/abc", ItemURL(host, &models.ContentItem{ID: "abc"}))
	assert.Empty(t, ItemURL(host, nil))
}

func TestAppealLink(t *testing.T) {
	rules := config.DefaultRules()
	item := &models.ContentItem{ID: "abc", Author: strPtr("alice"), Permalink: "/r/eu4/comments/abc/map/"}

	assert.Empty(t, AppealLink(config.AppealConfig{Host: "https://www.reddit.com"}, rules, item))

	link := AppealLink(config.AppealConfig{Host: "https://www.reddit.com", Channel: "/r/eu4"}, rules, item)
	require.True(t, strings.HasPrefix(link, "https://www.reddit.com/message/compose?"))

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/r/eu4", u.Query().Get("to"))
	assert.Equal(t, rules.Messages.AppealSubject, u.Query().Get("subject"))
	assert.Contains(t, u.Query().Get("message"), "https://www.reddit.com/r/eu4/comments/abc/map/")
}

func TestMessages(t *testing.T) {
	rules := config.DefaultRules()
	rules.WarningPeriodMinutes = 15
	m := Messages{Appeals: config.AppealConfig{Host: "https://www.reddit.com", Channel: "/r/eu4"}, Rules: rules}
	item := &models.ContentItem{ID: "abc", Author: strPtr("alice")}

	assert.Contains(t, m.Warning(item), "alice")
	assert.Contains(t, m.Warning(item), "15 minutes")
	assert.Contains(t, m.Removal(item), "/message/compose?")
	assert.Equal(t, "No explanation provided for https://www.reddit.com/comments/abc", m.ReportReason(item))
	assert.Equal(t, "because: too short", m.Reply("because: {{reason}}", item, "too short"))
}
