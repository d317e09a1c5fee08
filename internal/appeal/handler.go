// Package appeal handles reinstatement requests sent over the approval channel.
package appeal

import (
	"context"
	"errors"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/config"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/explanation"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/metrics"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/platform"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/repository"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/templates"
	"go.uber.org/zap"
)

// Outcome is the result of an appeal.
type Outcome string

const (
	OutcomeInvalidReference   Outcome = "invalid_reference"
	OutcomeNotFound           Outcome = "not_found"
	OutcomeAlreadyApproved    Outcome = "already_approved"
	OutcomeNotRemovedByBot    Outcome = "not_removed_by_bot"
	OutcomeNotAuthor          Outcome = "not_author"
	OutcomeInvalidExplanation Outcome = "invalid_explanation"
	OutcomeReinstated         Outcome = "reinstated"
	OutcomeError              Outcome = "error"
)

// Reinstater reverses the engine's own actions on an item.
type Reinstater interface {
	Reinstate(ctx context.Context, item *models.ContentItem, cand explanation.Candidate) error
}

// Handler processes appeal messages. Every appeal gets a reply naming the check that failed.
type Handler struct {
	platform   platform.Client
	records    repository.RecordRepository
	reinstater Reinstater
	rules      config.Rules
	appeals    config.AppealConfig
	messages   templates.Messages
	bot        string
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewHandler creates a new appeal handler.
func NewHandler(
	client platform.Client,
	records repository.RecordRepository,
	reinstater Reinstater,
	rules config.Rules,
	appeals config.AppealConfig,
	botUsername string,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		platform:   client,
		records:    records,
		reinstater: reinstater,
		rules:      rules,
		appeals:    appeals,
		messages:   templates.Messages{Appeals: appeals, Rules: rules},
		bot:        botUsername,
		metrics:    m,
		logger:     logger.With(zap.String("module", "appeal")),
	}
}

// Handle runs the checks in order and replies to the sender. The engine's removed record is
// checked before the explanation, so a valid explanation can never undo a moderator's removal.
func (h *Handler) Handle(ctx context.Context, msg models.AppealMessage) Outcome {
	outcome, item, reason := h.evaluate(ctx, msg)

	h.metrics.Appeal(string(outcome))
	h.logger.Info("Appeal processed",
		zap.String("thread_id", msg.ThreadID),
		zap.String("sender", msg.Sender),
		zap.String("outcome", string(outcome)),
	)

	if err := h.platform.ReplyToAppeal(ctx, msg.ThreadID, h.reply(outcome, item, reason)); err != nil {
		h.logger.Error("Failed to reply to appeal", zap.String("thread_id", msg.ThreadID), zap.Error(err))
	}
	if outcome == OutcomeReinstated && h.appeals.ArchiveOnSuccess {
		if err := h.platform.ArchiveAppeal(ctx, msg.ThreadID); err != nil {
			h.logger.Warn("Failed to archive appeal", zap.String("thread_id", msg.ThreadID), zap.Error(err))
		}
	}
	return outcome
}

func (h *Handler) evaluate(ctx context.Context, msg models.AppealMessage) (Outcome, *models.ContentItem, string) {
	rawID, ok := ExtractItemID(msg.Subject+"\n"+msg.Body, h.appeals.ShortLinkHosts)
	if !ok {
		return OutcomeInvalidReference, nil, ""
	}
	id, err := repository.SanitizeItemID(rawID)
	if err != nil {
		return OutcomeInvalidReference, nil, ""
	}
	ref := &models.ContentItem{ID: id}
	log := h.logger.With(zap.String("item_id", id))

	item, err := h.platform.GetItem(ctx, id)
	if errors.Is(err, platform.ErrNotFound) {
		return OutcomeNotFound, ref, ""
	}
	if err != nil {
		log.Error("Failed to fetch appealed item", zap.Error(err))
		return OutcomeError, ref, ""
	}
	item.ID = id

	if !item.Removed {
		return OutcomeAlreadyApproved, item, ""
	}

	removed, err := h.records.GetRemoved(ctx, id)
	if err != nil {
		log.Error("Failed to read removed record", zap.Error(err))
		return OutcomeError, item, ""
	}
	if removed == nil {
		return OutcomeNotRemovedByBot, item, ""
	}

	if !item.IsAuthor(msg.Sender) {
		return OutcomeNotAuthor, item, ""
	}

	comments, err := h.platform.ListComments(ctx, id)
	if err != nil {
		log.Error("Failed to list comments of appealed item", zap.Error(err))
		return OutcomeError, item, ""
	}
	cand := explanation.Locate(item, comments, h.rules.Explanation, h.bot)
	if !cand.Result.Valid {
		return OutcomeInvalidExplanation, item, cand.Result.Reason
	}

	if err := h.reinstater.Reinstate(ctx, item, cand); err != nil {
		log.Error("Failed to reinstate appealed item", zap.Error(err))
		return OutcomeError, item, ""
	}
	return OutcomeReinstated, item, ""
}

func (h *Handler) reply(outcome Outcome, item *models.ContentItem, reason string) string {
	r := h.appeals.Replies
	tpl := r.Failure
	switch outcome {
	case OutcomeInvalidReference:
		tpl = r.InvalidReference
	case OutcomeNotFound:
		tpl = r.NotFound
	case OutcomeAlreadyApproved:
		tpl = r.AlreadyApproved
	case OutcomeNotRemovedByBot:
		tpl = r.NotRemovedByBot
	case OutcomeNotAuthor:
		tpl = r.NotAuthor
	case OutcomeInvalidExplanation:
		tpl = r.InvalidExplanation
	case OutcomeReinstated:
		tpl = r.Success
	}
	return h.messages.Reply(tpl, item, reason)
}
