package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgetpro/internal/amqp"
	"budgetpro/internal/cache"
	"budgetpro/internal/core"
	"budgetpro/internal/log"
	"budgetpro/internal/services"
)

const (
	recentSyncCapacity = 1024
	recentSyncTTL      = 15 * time.Minute
)

// SyncWorker runs item syncs requested over AMQP.
type SyncWorker struct {
	items      services.ItemSyncer
	staleAfter time.Duration
	now        func() time.Time
	logger     *log.Logger

	// recent maps item id to the start time of its last successful sync.
	recent *cache.LRU[time.Time]
}

// NewSyncWorker builds a worker. Items not synced for staleAfter are picked
// up by StartupSyncCheck; zero disables that check.
func NewSyncWorker(items services.ItemSyncer, staleAfter time.Duration) *SyncWorker {
	return &SyncWorker{
		items:      items,
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     log.Default(log.ComponentWorker),
		recent:     cache.NewLRU[time.Time](recentSyncCapacity, recentSyncTTL),
	}
}

// HandleSyncRequest processes a single sync request message. Requests for
// items that no longer exist are dropped so they are not redelivered, and so
// are requests already covered by a sync that started after they were made.
func (w *SyncWorker) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	if last, ok := w.recent.Get(msg.ItemID); ok && msg.RequestedAt.Before(last) {
		w.logger.DebugContext(ctx, "Skipping sync request covered by a later sync",
			log.FieldItemID, msg.ItemID,
			"requested_at", msg.RequestedAt,
			"last_sync", last)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing sync request",
		log.FieldItemID, msg.ItemID,
		"requested_at", msg.RequestedAt)

	start := w.now()
	result, err := w.items.Sync(ctx, msg.ItemID)
	if errors.Is(err, core.ErrItemNotFound) {
		w.logger.WarnContext(ctx, "Dropping sync request for unknown item", log.FieldItemID, msg.ItemID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync item %s: %w", msg.ItemID, err)
	}
	w.recent.Set(msg.ItemID, start)

	w.logger.InfoContext(ctx, "Sync request completed",
		log.FieldItemID, msg.ItemID,
		log.FieldAdded, result.Added,
		log.FieldModified, result.Modified,
		log.FieldRemoved, result.Removed,
		log.FieldDuration, w.now().Sub(start).Milliseconds())
	return nil
}

// StartupSyncCheck syncs items that were never synced or whose last sync is
// older than staleAfter. It recovers from requests lost while the worker was
// down and returns the number of items synced.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) (int, error) {
	if w.staleAfter <= 0 {
		return 0, nil
	}

	items, err := w.items.ListItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("list items for startup check: %w", err)
	}

	cutoff := w.now().Add(-w.staleAfter)
	synced, failed := 0, 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if item.LastSyncedAt != nil && item.LastSyncedAt.After(cutoff) {
			continue
		}
		if _, err := w.items.Sync(ctx, item.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync stale item",
				log.FieldItemID, item.ID,
				log.FieldError, err)
			failed++
			continue
		}
		w.recent.Set(item.ID, w.now())
		synced++
	}

	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", len(items),
		"synced", synced,
		"errors", failed)
	return synced, nil
}
