package enforcement

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/explanation"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/notify"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/platform"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/repository"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/scheduler"
	"go.uber.org/zap"
)

// OnItemSubmitted is the intake entry point. If the item needs an explanation a grace timer is
// scheduled. Repeated submissions of the same item are ignored.
func (e *Engine) OnItemSubmitted(ctx context.Context, itemID string) error {
	id, err := repository.SanitizeItemID(itemID)
	if err != nil {
		return err
	}
	return e.surface(&models.ContentItem{ID: id}, e.intake(ctx, id))
}

func (e *Engine) intake(ctx context.Context, id string) error {
	log := e.logger.With(zap.String("item_id", id))

	first, ok := failOpen(e, "mark_processed", id, func() (bool, error) {
		return e.records.MarkProcessed(ctx, id)
	})
	if !ok {
		return ErrStateUnavailable
	}
	if !first {
		log.Debug("Item already processed")
		return nil
	}

	st, err := e.load(ctx, id)
	if err != nil {
		// A deleted item never comes back. Anything else may pass on redelivery.
		if !errors.Is(err, platform.ErrNotFound) {
			if cerr := e.records.ClearProcessed(ctx, id); cerr != nil {
				log.Error("Failed to clear processed marker", zap.Error(cerr))
			}
		}
		return err
	}
	if !st.decision.Enforce {
		log.Info("Item does not need an explanation", zap.String("stage", string(st.decision.Stage)), zap.String("reason", st.decision.Reason))
		return nil
	}

	at := e.now().Add(e.gracePeriod())
	if err := e.timers.Schedule(ctx, scheduler.Job{Kind: scheduler.KindGrace, ItemID: id}, at); err != nil {
		log.Error("Failed to schedule grace timer", zap.Error(err))
		return fmt.Errorf("failed to schedule grace timer: %w", err)
	}
	e.metrics.Transition("grace_started")
	log.Info("Grace period started", zap.String("reason", st.decision.Reason), zap.Time("until", at))
	return nil
}

// HandleTimer runs a due timer.
func (e *Engine) HandleTimer(ctx context.Context, job scheduler.Job) error {
	var err error
	switch job.Kind {
	case scheduler.KindGrace:
		err = e.handleGraceExpired(ctx, job.ItemID)
	case scheduler.KindWarning:
		err = e.handleWarningExpired(ctx, job.ItemID)
	case scheduler.KindRecheck:
		err = e.handleRecheck(ctx, job.ItemID)
	default:
		return fmt.Errorf("unknown timer kind %q", job.Kind)
	}
	return e.surface(&models.ContentItem{ID: job.ItemID}, err)
}

func (e *Engine) handleGraceExpired(ctx context.Context, itemID string) error {
	st, err := e.load(ctx, itemID)
	if err != nil {
		return err
	}
	log := e.logger.With(zap.String("item_id", st.item.ID))

	if !st.decision.Enforce {
		log.Info("Grace period over, item no longer needs an explanation", zap.String("reason", st.decision.Reason))
		return nil
	}

	cand := explanation.Locate(st.item, st.comments, e.rules.Explanation, e.bot)
	if cand.Result.Valid {
		if st.records.Touched() {
			return e.reinstate(ctx, st.item, cand)
		}
		return e.markCompliant(ctx, st.item, cand)
	}

	return e.warn(ctx, st.item, cand.Result.Reason)
}

// markCompliant records compliance for an item that was never warned. There is nothing to undo.
func (e *Engine) markCompliant(ctx context.Context, item *models.ContentItem, cand explanation.Candidate) error {
	approvedAt := e.now()
	if err := e.records.SetApproved(ctx, item.ID, approvedAt); err != nil {
		e.logger.Error("Failed to set approved record", zap.String("item_id", item.ID), zap.Error(err))
		return err
	}
	e.metrics.Transition("compliant")
	e.scheduleRecheck(ctx, item.ID, approvedAt)
	if cand.Result.ShouldFlagForReview {
		e.emit(notify.EventFlaggedForReview, item, cand.Result.Reason)
	}
	e.logger.Info("Explanation found during grace period", zap.String("item_id", item.ID), zap.String("source", string(cand.Source)))
	return nil
}
