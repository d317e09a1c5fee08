// Package templates renders the messages posted to authors.
package templates

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/config"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
)

// Vars are the values substituted into a template.
type Vars struct {
	Author         string
	ItemTitle      string
	ItemURL        string
	GraceMinutes   int
	WarningMinutes int
	AppealLink     string
	Reason         string
}

// Render substitutes the {{...}} placeholders in tpl. Unknown placeholders are left as is.
func Render(tpl string, v Vars) string {
	r := strings.NewReplacer(
		"{{author}}", v.Author,
		"{{itemTitle}}", v.ItemTitle,
		"{{itemUrl}}", v.ItemURL,
		"{{graceMinutes}}", strconv.Itoa(v.GraceMinutes),
		"{{warningMinutes}}", strconv.Itoa(v.WarningMinutes),
		"{{appealLink}}", v.AppealLink,
		"{{reason}}", v.Reason,
	)
	return r.Replace(tpl)
}

// ItemURL returns the absolute link to an item.
func ItemURL(host string, item *models.ContentItem) string {
	if item == nil {
		return ""
	}
	if strings.HasPrefix(item.Permalink, "http://") || strings.HasPrefix(item.Permalink, "https://") {
		return item.Permalink
	}
	if item.Permalink == "" {
		return strings.TrimSuffix(host, "/") + "/comments/" + item.ID
	}
	return strings.TrimSuffix(host, "/") + "/" + strings.TrimPrefix(item.Permalink, "/")
}

// AppealLink builds a compose link to the appeal channel with the subject and body prefilled.
// It is empty when no channel is configured.
func AppealLink(appeals config.AppealConfig, rules config.Rules, item *models.ContentItem) string {
	if appeals.Channel == "" {
		return ""
	}
	vars := ForItem(appeals.Host, rules, item)
	q := url.Values{}
	q.Set("to", appeals.Channel)
	q.Set("subject", Render(rules.Messages.AppealSubject, vars))
	q.Set("message", Render(rules.Messages.AppealBody, vars))
	return strings.TrimSuffix(appeals.Host, "/") + "/message/compose?" + q.Encode()
}

// ForItem fills the item related variables.
func ForItem(host string, rules config.Rules, item *models.ContentItem) Vars {
	v := Vars{
		ItemURL:        ItemURL(host, item),
		GraceMinutes:   rules.GracePeriodMinutes,
		WarningMinutes: rules.WarningPeriodMinutes,
	}
	if item != nil {
		v.Author = item.AuthorName()
		v.ItemTitle = item.Title
	}
	return v
}

// Messages renders the author-facing comments for one item.
type Messages struct {
	Appeals config.AppealConfig
	Rules   config.Rules
}

func (m Messages) vars(item *models.ContentItem) Vars {
	v := ForItem(m.Appeals.Host, m.Rules, item)
	v.AppealLink = AppealLink(m.Appeals, m.Rules, item)
	return v
}

func (m Messages) Warning(item *models.ContentItem) string {
	return Render(m.Rules.Messages.Warning, m.vars(item))
}

func (m Messages) Removal(item *models.ContentItem) string {
	return Render(m.Rules.Messages.Removal, m.vars(item))
}

func (m Messages) Reinstatement(item *models.ContentItem) string {
	return Render(m.Rules.Messages.Reinstatement, m.vars(item))
}

func (m Messages) ReportReason(item *models.ContentItem) string {
	return Render(m.Rules.Messages.ReportReason, m.vars(item))
}

// Reply renders an appeal reply template.
func (m Messages) Reply(tpl string, item *models.ContentItem, reason string) string {
	v := m.vars(item)
	v.Reason = reason
	return Render(tpl, v)
}
