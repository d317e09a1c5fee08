package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/store"
	"go.uber.org/zap"
)

// ErrInvalidItemID is returned for ids that cannot be used as part of a store key.
var ErrInvalidItemID = errors.New("invalid item id")

const (
	prefixProcessed = "processed:"
	prefixWarned    = "warned:"
	prefixRemoved   = "removed:"
	prefixApproved  = "approved:"

	maxItemIDLength = 32
)

// TTLs are the expiration windows of the record entries.
type TTLs struct {
	Processed time.Duration
	Warned    time.Duration
	Removed   time.Duration
	Approved  time.Duration
}

// RecordRepository defines the operations on an item's enforcement record. The record is a set of
// independently expiring entries so partial state survives partial failures.
type RecordRepository interface {
	MarkProcessed(ctx context.Context, itemID string) (bool, error)
	ClearProcessed(ctx context.Context, itemID string) error
	GetWarned(ctx context.Context, itemID string) (*models.ActionRecord, error)
	SetWarned(ctx context.Context, itemID string, rec models.ActionRecord) error
	ClearWarned(ctx context.Context, itemID string) error
	GetRemoved(ctx context.Context, itemID string) (*models.ActionRecord, error)
	SetRemoved(ctx context.Context, itemID string, rec models.ActionRecord) error
	ClearRemoved(ctx context.Context, itemID string) error
	GetApproved(ctx context.Context, itemID string) (*time.Time, error)
	SetApproved(ctx context.Context, itemID string, at time.Time) error
	Snapshot(ctx context.Context, itemID string) (*models.RecordSnapshot, error)
	ListTracked(ctx context.Context, limit int) ([]string, error)
}

type recordRepository struct {
	store  store.Store
	ttl    TTLs
	logger *zap.Logger
}

// NewRecordRepository creates a new record repository over the given store.
func NewRecordRepository(s store.Store, ttl TTLs, logger *zap.Logger) RecordRepository {
	return &recordRepository{
		store:  s,
		ttl:    ttl,
		logger: logger,
	}
}

// SanitizeItemID normalizes an item id for use in a key. Only lowercase letters, digits and
// underscores are accepted.
func SanitizeItemID(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" || len(id) > maxItemIDLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidItemID, id)
	}
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return "", fmt.Errorf("%w: %q", ErrInvalidItemID, id)
		}
	}
	return id, nil
}

func key(prefix, itemID string) (string, error) {
	id, err := SanitizeItemID(itemID)
	if err != nil {
		return "", err
	}
	return prefix + id, nil
}

func (r *recordRepository) MarkProcessed(ctx context.Context, itemID string) (bool, error) {
	k, err := key(prefixProcessed, itemID)
	if err != nil {
		return false, err
	}
	_, ok, err := r.store.Get(ctx, k)
	if err != nil {
		return false, fmt.Errorf("failed to check processed marker: %w", err)
	}
	if ok {
		return false, nil
	}
	if err := r.store.Set(ctx, k, "1", r.ttl.Processed); err != nil {
		return false, fmt.Errorf("failed to set processed marker: %w", err)
	}
	return true, nil
}

// ClearProcessed lets a later submission of the item through intake again.
func (r *recordRepository) ClearProcessed(ctx context.Context, itemID string) error {
	return r.delete(ctx, prefixProcessed, itemID)
}

func (r *recordRepository) GetWarned(ctx context.Context, itemID string) (*models.ActionRecord, error) {
	return r.getAction(ctx, prefixWarned, itemID)
}

func (r *recordRepository) SetWarned(ctx context.Context, itemID string, rec models.ActionRecord) error {
	return r.setAction(ctx, prefixWarned, itemID, rec, r.ttl.Warned)
}

func (r *recordRepository) ClearWarned(ctx context.Context, itemID string) error {
	return r.delete(ctx, prefixWarned, itemID)
}

func (r *recordRepository) GetRemoved(ctx context.Context, itemID string) (*models.ActionRecord, error) {
	return r.getAction(ctx, prefixRemoved, itemID)
}

func (r *recordRepository) SetRemoved(ctx context.Context, itemID string, rec models.ActionRecord) error {
	return r.setAction(ctx, prefixRemoved, itemID, rec, r.ttl.Removed)
}

func (r *recordRepository) ClearRemoved(ctx context.Context, itemID string) error {
	return r.delete(ctx, prefixRemoved, itemID)
}

func (r *recordRepository) GetApproved(ctx context.Context, itemID string) (*time.Time, error) {
	k, err := key(prefixApproved, itemID)
	if err != nil {
		return nil, err
	}
	v, ok, err := r.store.Get(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("failed to get approved record: %w", err)
	}
	if !ok {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339, v)
	if err != nil {
		// An unreadable timestamp counts as absent.
		r.logger.Warn("Discarding malformed approved record", zap.String("key", k), zap.Error(err))
		return nil, nil
	}
	return &at, nil
}

func (r *recordRepository) SetApproved(ctx context.Context, itemID string, at time.Time) error {
	k, err := key(prefixApproved, itemID)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, k, at.UTC().Format(time.RFC3339), r.ttl.Approved); err != nil {
		return fmt.Errorf("failed to set approved record: %w", err)
	}
	return nil
}

func (r *recordRepository) Snapshot(ctx context.Context, itemID string) (*models.RecordSnapshot, error) {
	id, err := SanitizeItemID(itemID)
	if err != nil {
		return nil, err
	}
	snap := &models.RecordSnapshot{ItemID: id}
	if snap.Warned, err = r.GetWarned(ctx, id); err != nil {
		return nil, err
	}
	if snap.Removed, err = r.GetRemoved(ctx, id); err != nil {
		return nil, err
	}
	if snap.ApprovedAt, err = r.GetApproved(ctx, id); err != nil {
		return nil, err
	}
	return snap, nil
}

// ListTracked returns the ids of items carrying a warned or removed record, most recent action
// first, at most limit of them.
func (r *recordRepository) ListTracked(ctx context.Context, limit int) ([]string, error) {
	latest := make(map[string]time.Time)
	for _, prefix := range []string{prefixWarned, prefixRemoved} {
		keys, err := r.store.ScanPrefix(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s records: %w", strings.TrimSuffix(prefix, ":"), err)
		}
		for _, k := range keys {
			id := strings.TrimPrefix(k, prefix)
			rec, err := r.getAction(ctx, prefix, id)
			if err != nil {
				r.logger.Warn("Failed to read tracked record", zap.String("key", k), zap.Error(err))
				continue
			}
			if rec == nil {
				continue
			}
			if rec.At.After(latest[id]) || latest[id].IsZero() {
				latest[id] = rec.At
			}
		}
	}

	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if !latest[ids[i]].Equal(latest[ids[j]]) {
			return latest[ids[i]].After(latest[ids[j]])
		}
		return ids[i] < ids[j]
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *recordRepository) getAction(ctx context.Context, prefix, itemID string) (*models.ActionRecord, error) {
	k, err := key(prefix, itemID)
	if err != nil {
		return nil, err
	}
	v, ok, err := r.store.Get(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", k, err)
	}
	if !ok {
		return nil, nil
	}
	var rec models.ActionRecord
	if err := json.Unmarshal([]byte(v), &rec); err != nil {
		// The key exists, so the item is still attributed to us even if the payload is damaged.
		r.logger.Warn("Malformed record payload", zap.String("key", k), zap.Error(err))
		return &models.ActionRecord{}, nil
	}
	return &rec, nil
}

func (r *recordRepository) setAction(ctx context.Context, prefix, itemID string, rec models.ActionRecord, ttl time.Duration) error {
	k, err := key(prefix, itemID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", k, err)
	}
	if err := r.store.Set(ctx, k, string(payload), ttl); err != nil {
		return fmt.Errorf("failed to set %s: %w", k, err)
	}
	return nil
}

func (r *recordRepository) delete(ctx context.Context, prefix, itemID string) error {
	k, err := key(prefix, itemID)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, k); err != nil {
		return fmt.Errorf("failed to delete %s: %w", k, err)
	}
	return nil
}
