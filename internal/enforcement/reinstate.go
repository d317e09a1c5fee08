package enforcement

import (
	"context"
	"time"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/explanation"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/notify"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/pipeline"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/scheduler"
	"go.uber.org/zap"
)

// Reinstate reverses the engine's own actions on an item whose explanation is now valid. Only
// items carrying a warned or removed record are touched, and visibility is restored only when the
// removal was the engine's. Comment cleanup is best effort.
func (e *Engine) Reinstate(ctx context.Context, item *models.ContentItem, cand explanation.Candidate) error {
	return e.surface(item, e.reinstate(ctx, item, cand))
}

func (e *Engine) reinstate(ctx context.Context, item *models.ContentItem, cand explanation.Candidate) error {
	log := e.logger.With(zap.String("item_id", item.ID))

	snap, ok := failOpen(e, "snapshot", item.ID, func() (*models.RecordSnapshot, error) {
		return e.records.Snapshot(ctx, item.ID)
	})
	if !ok {
		return ErrStateUnavailable
	}
	if !snap.Touched() {
		log.Warn("Refusing to reinstate an item without warned or removed record")
		return ErrNotTracked
	}

	if snap.Removed != nil {
		if err := e.attempt("approve", item, func() error {
			return e.platform.Approve(ctx, item.ID)
		}); err != nil {
			return err
		}
	}

	var denied error
	if snap.Warned != nil && snap.Warned.CommentID != "" {
		_ = e.bestEffort(&denied, "delete_warning", item, func() error {
			return e.platform.DeleteComment(ctx, snap.Warned.CommentID)
		})
	}
	if snap.Removed != nil && snap.Removed.CommentID != "" {
		_ = e.bestEffort(&denied, "delete_removal", item, func() error {
			return e.platform.DeleteComment(ctx, snap.Removed.CommentID)
		})
	}

	if err := e.records.ClearWarned(ctx, item.ID); err != nil {
		log.Error("Failed to clear warned record", zap.Error(err))
	}
	if err := e.records.ClearRemoved(ctx, item.ID); err != nil {
		log.Error("Failed to clear removed record", zap.Error(err))
	}
	approvedAt := e.now()
	if err := e.records.SetApproved(ctx, item.ID, approvedAt); err != nil {
		log.Error("Failed to set approved record", zap.Error(err))
	}
	e.scheduleRecheck(ctx, item.ID, approvedAt)
	e.metrics.Transition("reinstated")

	if e.rules.CommentOnReinstatement {
		_ = e.bestEffort(&denied, "post_reinstatement", item, func() error {
			_, err := e.platform.PostComment(ctx, item.ID, e.messages.Reinstatement(item), e.commentOptions())
			return err
		})
	}

	e.emit(notify.EventItemReinstated, item, "explanation provided")
	if cand.Result.ShouldFlagForReview {
		e.emit(notify.EventFlaggedForReview, item, cand.Result.Reason)
	}
	log.Info("Item reinstated", zap.Bool("was_removed", snap.Removed != nil), zap.String("source", string(cand.Source)))
	return denied
}

// scheduleRecheck arms a timer for the moment the approved record stops shielding the item, so an
// explanation deleted after approval is still caught.
func (e *Engine) scheduleRecheck(ctx context.Context, itemID string, approvedAt time.Time) {
	at := approvedAt.Add(pipeline.ApprovalShield)
	if err := e.timers.Schedule(ctx, scheduler.Job{Kind: scheduler.KindRecheck, ItemID: itemID}, at); err != nil {
		e.logger.Error("Failed to schedule recheck timer", zap.String("item_id", itemID), zap.Error(err))
	}
}

// handleRecheck looks at an approved item again once its shield is over. A missing explanation
// starts the warning again. A still valid one ends the check without a new timer.
func (e *Engine) handleRecheck(ctx context.Context, itemID string) error {
	st, err := e.load(ctx, itemID)
	if err != nil {
		return err
	}
	log := e.logger.With(zap.String("item_id", st.item.ID))

	if !st.decision.Enforce {
		log.Info("Recheck skipped, item does not need an explanation", zap.String("reason", st.decision.Reason))
		return nil
	}
	if st.records.Touched() {
		log.Debug("Recheck skipped, item is already under escalation")
		return nil
	}

	cand := explanation.Locate(st.item, st.comments, e.rules.Explanation, e.bot)
	if cand.Result.Valid {
		log.Info("Explanation still present after approval")
		return nil
	}
	e.metrics.Transition("recheck_failed")
	return e.warn(ctx, st.item, cand.Result.Reason)
}
