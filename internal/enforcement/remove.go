package enforcement

import (
	"context"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/explanation"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/notify"
	"go.uber.org/zap"
)

func (e *Engine) handleWarningExpired(ctx context.Context, itemID string) error {
	st, err := e.load(ctx, itemID)
	if err != nil {
		return err
	}
	return e.expireWarning(ctx, st)
}

// expireWarning is the decision taken once the warning period is over.
func (e *Engine) expireWarning(ctx context.Context, st *itemState) error {
	log := e.logger.With(zap.String("item_id", st.item.ID))

	if !st.decision.Enforce {
		log.Info("Warning period over, item no longer needs an explanation", zap.String("reason", st.decision.Reason))
		return nil
	}

	cand := explanation.Locate(st.item, st.comments, e.rules.Explanation, e.bot)
	if cand.Result.Valid {
		return e.reinstate(ctx, st.item, cand)
	}

	if st.records.Warned == nil {
		log.Info("No warning on record, not removing")
		return nil
	}
	return e.remove(ctx, st.item, cand.Result.Reason)
}

// Remove marks the item removed, then takes it down and/or reports it, posts the removal comment
// and deletes the warning comment. Removing an item that is already marked removed does nothing.
func (e *Engine) Remove(ctx context.Context, item *models.ContentItem, reason string) error {
	return e.surface(item, e.remove(ctx, item, reason))
}

// remove writes the removed record before touching the platform. An engine removal that was not
// recorded could never be reversed, while a record without a removal is rolled back here.
func (e *Engine) remove(ctx context.Context, item *models.ContentItem, reason string) error {
	log := e.logger.With(zap.String("item_id", item.ID))

	snap, ok := failOpen(e, "snapshot", item.ID, func() (*models.RecordSnapshot, error) {
		return e.records.Snapshot(ctx, item.ID)
	})
	if !ok {
		return ErrStateUnavailable
	}
	if snap.Removed != nil {
		log.Debug("Item already removed, skipping")
		return nil
	}

	rec := models.ActionRecord{At: e.now()}
	if err := e.records.SetRemoved(ctx, item.ID, rec); err != nil {
		// Nothing was done yet. The sweep retries overdue warnings.
		log.Error("Failed to set removed record", zap.Error(err))
		return err
	}

	action := e.rules.EnforcementAction
	if action.Removes() {
		if err := e.attempt("remove", item, func() error {
			return e.platform.Remove(ctx, item.ID)
		}); err != nil {
			if cerr := e.records.ClearRemoved(ctx, item.ID); cerr != nil {
				log.Error("Failed to roll back removed record", zap.Error(cerr))
			}
			return err
		}
	}

	var denied error
	if action.Reports() {
		_ = e.bestEffort(&denied, "report", item, func() error {
			return e.platform.Report(ctx, item.ID, e.messages.ReportReason(item))
		})
	}
	e.metrics.Transition("removed")

	if e.rules.CommentOnRemoval {
		var commentID string
		err := e.bestEffort(&denied, "post_removal", item, func() (err error) {
			commentID, err = e.platform.PostComment(ctx, item.ID, e.messages.Removal(item), e.commentOptions())
			return err
		})
		if err == nil && commentID != "" {
			rec.CommentID = commentID
			if err := e.records.SetRemoved(ctx, item.ID, rec); err != nil {
				log.Error("Failed to store removal comment id", zap.String("comment_id", commentID), zap.Error(err))
			}
		}
	}

	if snap.Warned != nil && snap.Warned.CommentID != "" {
		_ = e.bestEffort(&denied, "delete_warning", item, func() error {
			return e.platform.DeleteComment(ctx, snap.Warned.CommentID)
		})
	}

	e.emit(notify.EventItemRemoved, item, reason)
	log.Info("Item removed", zap.String("action", string(action)), zap.String("reason", reason))
	return denied
}
