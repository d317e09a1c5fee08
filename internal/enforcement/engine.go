// Package enforcement drives an item through grace period, warning, removal and reinstatement.
//
// Every routine first checks whether its target state already exists and does nothing if so,
// which makes timer firings, sweeps and appeals safe to overlap without locking. State writes
// happen before the comment that announces them.
package enforcement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/config"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/metrics"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/notify"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/pipeline"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/platform"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/repository"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/scheduler"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/templates"
	"go.uber.org/zap"
)

var (
	// ErrNotTracked is returned when reinstatement is requested for an item the engine never acted on.
	ErrNotTracked = errors.New("item has no warned or removed record")
	// ErrStateUnavailable is returned when a decision could not be made because the store failed.
	ErrStateUnavailable = errors.New("state store unavailable")
)

// Error classes of failed collaborator calls.
const (
	classNotFound   = "not_found"
	classPermission = "permission_denied"
	classTransient  = "transient"
	classStore      = "store"
)

// Options configure an Engine.
type Options struct {
	Rules       config.Rules
	Appeals     config.AppealConfig
	BotUsername string
	SweepLimit  int
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

// Engine is the escalation orchestrator.
type Engine struct {
	records  repository.RecordRepository
	platform platform.Client
	events   notify.Emitter
	timers   scheduler.Scheduler
	rules    config.Rules
	messages templates.Messages
	bot      string
	limit    int
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates a new engine.
func NewEngine(
	records repository.RecordRepository,
	client platform.Client,
	events notify.Emitter,
	timers scheduler.Scheduler,
	opts Options,
	logger *zap.Logger,
) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SweepLimit <= 0 {
		opts.SweepLimit = 100
	}
	return &Engine{
		records:  records,
		platform: client,
		events:   events,
		timers:   timers,
		rules:    opts.Rules,
		messages: templates.Messages{Appeals: opts.Appeals, Rules: opts.Rules},
		bot:      opts.BotUsername,
		limit:    opts.SweepLimit,
		metrics:  opts.Metrics,
		logger:   logger.With(zap.String("module", "enforcement")),
		now:      opts.Now,
	}
}

// Rules returns the rules the engine enforces.
func (e *Engine) Rules() config.Rules {
	return e.rules
}

// BotUsername returns the account whose comments are never taken as explanations.
func (e *Engine) BotUsername() string {
	return e.bot
}

func classify(err error) string {
	switch {
	case errors.Is(err, platform.ErrNotFound):
		return classNotFound
	case errors.Is(err, platform.ErrPermissionDenied):
		return classPermission
	default:
		return classTransient
	}
}

// attempt runs one collaborator call. Failures are logged and counted, and returned tagged with
// the operation so the caller can decide whether the surrounding transition can continue.
func (e *Engine) attempt(op string, item *models.ContentItem, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	class := classify(err)
	e.metrics.CollaboratorError(op, class)
	log := e.logger.With(zap.String("op", op), zap.String("item_id", item.ID), zap.String("class", class))

	switch class {
	case classNotFound:
		log.Info("Platform object no longer exists", zap.Error(err))
	case classPermission:
		log.Error("Permission denied by platform", zap.Error(err))
	default:
		log.Warn("Platform call failed", zap.Error(err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// bestEffort runs a call whose failure does not stop the routine. A lost permission is kept in
// denied so the routine can still return it once its other steps are done.
func (e *Engine) bestEffort(denied *error, op string, item *models.ContentItem, fn func() error) error {
	err := e.attempt(op, item, fn)
	if errors.Is(err, platform.ErrPermissionDenied) && *denied == nil {
		*denied = err
	}
	return err
}

// surface turns a lost permission into a single core_error event. Only entry points call it;
// routines nested inside them just return the error.
func (e *Engine) surface(item *models.ContentItem, err error) error {
	if errors.Is(err, platform.ErrPermissionDenied) {
		e.emit(notify.EventCoreError, item, err.Error())
	}
	return err
}

// failOpen runs a state read. When the store fails the error is logged and ok is false; callers
// then neither enforce nor reinstate.
func failOpen[T any](e *Engine, op, itemID string, fn func() (T, error)) (T, bool) {
	v, err := fn()
	if err != nil {
		e.metrics.CollaboratorError(op, classStore)
		e.logger.Warn("State store unavailable, failing open", zap.String("op", op), zap.String("item_id", itemID), zap.Error(err))
		var zero T
		return zero, false
	}
	return v, true
}

func (e *Engine) emit(t notify.EventType, item *models.ContentItem, reason string) {
	if e.events == nil {
		return
	}
	e.events.Emit(notify.NewEvent(t, item.ID, item.AuthorName(), reason, e.now()))
}

// itemState is everything a decision about one item is made on.
type itemState struct {
	item     *models.ContentItem
	comments []models.Comment
	records  *models.RecordSnapshot
	decision pipeline.Decision
}

// load fetches the item, its comments and its records, and evaluates the pipeline.
func (e *Engine) load(ctx context.Context, itemID string) (*itemState, error) {
	id, err := repository.SanitizeItemID(itemID)
	if err != nil {
		return nil, err
	}
	ref := &models.ContentItem{ID: id}

	var item *models.ContentItem
	if err := e.attempt("get_item", ref, func() (err error) {
		item, err = e.platform.GetItem(ctx, id)
		return err
	}); err != nil {
		return nil, err
	}
	item.ID = id

	var comments []models.Comment
	if err := e.attempt("list_comments", item, func() (err error) {
		comments, err = e.platform.ListComments(ctx, id)
		return err
	}); err != nil {
		return nil, err
	}

	records, ok := failOpen(e, "snapshot", id, func() (*models.RecordSnapshot, error) {
		return e.records.Snapshot(ctx, id)
	})
	if !ok {
		return nil, ErrStateUnavailable
	}

	st := &itemState{item: item, comments: comments, records: records}
	st.decision = pipeline.Evaluate(pipeline.Snapshot{
		Item:            item,
		Comments:        comments,
		ApprovedAt:      records.ApprovedAt,
		RemovedByEngine: records.Removed != nil,
	}, e.rules, e.now())
	return st, nil
}

func (e *Engine) gracePeriod() time.Duration {
	return time.Duration(e.rules.GracePeriodMinutes) * time.Minute
}

func (e *Engine) warningPeriod() time.Duration {
	return time.Duration(e.rules.WarningPeriodMinutes) * time.Minute
}

func (e *Engine) commentOptions() platform.CommentOptions {
	return platform.CommentOptions{Distinguish: true, Sticky: true}
}
