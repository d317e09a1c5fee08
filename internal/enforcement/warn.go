package enforcement

import (
	"context"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/notify"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/scheduler"
	"go.uber.org/zap"
)

// Warn marks the item warned, posts the warning comment and, when the action removes, schedules
// the warning timer. A report-only action files the report right away. Warning an item that is
// already warned or removed does nothing.
func (e *Engine) Warn(ctx context.Context, item *models.ContentItem, reason string) error {
	return e.surface(item, e.warn(ctx, item, reason))
}

func (e *Engine) warn(ctx context.Context, item *models.ContentItem, reason string) error {
	log := e.logger.With(zap.String("item_id", item.ID))

	snap, ok := failOpen(e, "snapshot", item.ID, func() (*models.RecordSnapshot, error) {
		return e.records.Snapshot(ctx, item.ID)
	})
	if !ok {
		return ErrStateUnavailable
	}
	if snap.Touched() {
		log.Debug("Item already warned, skipping")
		return nil
	}

	rec := models.ActionRecord{At: e.now()}
	if err := e.records.SetWarned(ctx, item.ID, rec); err != nil {
		log.Error("Failed to set warned record", zap.Error(err))
		return err
	}
	e.metrics.Transition("warned")

	var denied error
	if e.rules.CommentOnWarning {
		var commentID string
		err := e.bestEffort(&denied, "post_warning", item, func() (err error) {
			commentID, err = e.platform.PostComment(ctx, item.ID, e.messages.Warning(item), e.commentOptions())
			return err
		})
		if err == nil && commentID != "" {
			rec.CommentID = commentID
			if err := e.records.SetWarned(ctx, item.ID, rec); err != nil {
				log.Error("Failed to store warning comment id", zap.String("comment_id", commentID), zap.Error(err))
			}
		}
	}

	e.emit(notify.EventWarningIssued, item, reason)

	action := e.rules.EnforcementAction
	if action.Reports() && !action.Removes() {
		_ = e.bestEffort(&denied, "report", item, func() error {
			return e.platform.Report(ctx, item.ID, e.messages.ReportReason(item))
		})
	}
	if action.Removes() {
		at := rec.At.Add(e.warningPeriod())
		if err := e.timers.Schedule(ctx, scheduler.Job{Kind: scheduler.KindWarning, ItemID: item.ID}, at); err != nil {
			// The sweep picks up overdue warnings.
			log.Error("Failed to schedule warning timer", zap.Error(err))
		}
	}

	log.Info("Warning issued", zap.String("reason", reason), zap.String("comment_id", rec.CommentID))
	return denied
}
