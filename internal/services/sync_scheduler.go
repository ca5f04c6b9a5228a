package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetpro/internal/core"
	"budgetpro/internal/log"
)

// SyncSchedulerConfig holds configuration for the periodic sync
type SyncSchedulerConfig struct {
	// Interval between runs (default: 24h)
	Interval time.Duration

	// Concurrency bounds how many items sync in parallel (default: 4)
	Concurrency int

	// RunOnStart triggers a run as soon as the scheduler starts
	RunOnStart bool
}

func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Interval:    24 * time.Hour,
		Concurrency: 4,
		RunOnStart:  false,
	}
}

// ItemSyncer is the subset of ItemService the scheduler drives.
type ItemSyncer interface {
	ListItems(ctx context.Context) ([]core.Item, error)
	Sync(ctx context.Context, itemID string) (core.SyncResult, error)
}

// SyncScheduler periodically syncs every linked item.
type SyncScheduler struct {
	items  ItemSyncer
	config SyncSchedulerConfig
	logger *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncScheduler(items ItemSyncer, config SyncSchedulerConfig) *SyncScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSyncSchedulerConfig().Interval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &SyncScheduler{
		items:  items,
		config: config,
		logger: log.Default(log.ComponentScheduler),
	}
}

// Start begins the schedule loop. Returns an error if already running.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sync scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	s.logger.InfoContext(ctx, "Sync scheduler started",
		"interval", s.config.Interval,
		"concurrency", s.config.Concurrency)
	return nil
}

// Stop signals the loop and waits for the current run to finish. When ctx
// ends first the scheduler stays marked running and a later Stop waits again.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	doneCh := s.doneCh
	s.mu.Unlock()

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Sync scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Sync scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *SyncScheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.runLogged(ctx)
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *SyncScheduler) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled sync run failed", log.FieldError, err)
	}
}

// RunOnce syncs every item with bounded parallelism. A failing item is
// recorded in the report and does not stop the others.
func (s *SyncScheduler) RunOnce(ctx context.Context) (core.SyncReport, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return core.SyncReport{}, fmt.Errorf("list items: %w", err)
	}

	outcomes := make([]core.ItemSyncOutcome, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i, item := range items {
		g.Go(func() error {
			result, err := s.items.Sync(gctx, item.ID)
			outcomes[i] = core.ItemSyncOutcome{ItemID: item.ID, Result: result, Err: err}
			if err != nil {
				s.logger.WarnContext(gctx, "Item sync failed",
					log.FieldItemID, item.ID,
					log.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := core.SyncReport{Items: outcomes}
	for _, o := range outcomes {
		if o.Err != nil {
			report.Failed++
		}
	}

	s.logger.InfoContext(ctx, "Scheduled sync run finished",
		"items", len(items),
		"failed", report.Failed)
	return report, nil
}
