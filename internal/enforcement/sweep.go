package enforcement

import (
	"context"
	"errors"
	"time"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/explanation"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"go.uber.org/zap"
)

// overdueSlack gives the warning timer a head start before the sweep takes over.
const overdueSlack = time.Minute

// Sweep re-checks the most recently acted-on items. Items that now carry a valid explanation are
// reinstated, and warnings whose timer was lost are expired. It returns the number of items checked.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	ids, ok := failOpen(e, "list_tracked", "", func() ([]string, error) {
		return e.records.ListTracked(ctx, e.limit)
	})
	if !ok {
		return 0, ErrStateUnavailable
	}

	checked := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := e.checkCompliance(ctx, id); err != nil && !errors.Is(err, ErrNotTracked) {
			e.logger.Debug("Sweep check failed", zap.String("item_id", id), zap.Error(err))
			_ = e.surface(&models.ContentItem{ID: id}, err)
		}
		checked++
	}
	e.metrics.Swept(checked)
	e.logger.Info("Sweep finished", zap.Int("tracked", len(ids)), zap.Int("checked", checked))
	return checked, nil
}

// CheckCompliance re-checks one tracked item. Untracked items are left to their timers.
func (e *Engine) CheckCompliance(ctx context.Context, itemID string) error {
	return e.surface(&models.ContentItem{ID: itemID}, e.checkCompliance(ctx, itemID))
}

func (e *Engine) checkCompliance(ctx context.Context, itemID string) error {
	st, err := e.load(ctx, itemID)
	if err != nil {
		return err
	}
	if !st.records.Touched() {
		return nil
	}

	cand := explanation.Locate(st.item, st.comments, e.rules.Explanation, e.bot)
	if cand.Result.Valid {
		return e.reinstate(ctx, st.item, cand)
	}

	warned := st.records.Warned
	if warned != nil && st.records.Removed == nil && e.rules.EnforcementAction.Removes() &&
		!e.now().Before(warned.At.Add(e.warningPeriod()+overdueSlack)) {
		e.logger.Info("Warning overdue, expiring it", zap.String("item_id", st.item.ID))
		return e.expireWarning(ctx, st)
	}
	return nil
}
