// Package jobs runs the periodic maintenance work: refreshing stale
// external-link extracts and sweeping expired document-cache rows.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"coursemind/internal/logging"
	"coursemind/internal/models"
)

// LinkLister enumerates every stored link record.
type LinkLister interface {
	All(ctx context.Context) ([]models.LinkRecord, error)
}

// LinkRefresher refetches a record when its extract is stale.
type LinkRefresher interface {
	EnsureFresh(ctx context.Context, record *models.LinkRecord) error
}

// CacheSweeper deletes expired document-cache rows.
type CacheSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Scheduler owns the gocron scheduler and the registered jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
	lister    LinkLister
	refresher LinkRefresher
	sweeper   CacheSweeper
}

// NewScheduler creates the scheduler with both jobs registered: hourly link
// refresh, daily cache sweep.
func NewScheduler(lister LinkLister, refresher LinkRefresher, sweeper CacheSweeper) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		scheduler: scheduler,
		lister:    lister,
		refresher: refresher,
		sweeper:   sweeper,
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() { s.RefreshLinks(context.Background()) }),
		gocron.WithName("link-refresh"),
	); err != nil {
		return nil, fmt.Errorf("failed to register link refresh job: %w", err)
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() { s.SweepCache(context.Background()) }),
		gocron.WithName("cache-sweep"),
	); err != nil {
		return nil, fmt.Errorf("failed to register cache sweep job: %w", err)
	}

	return s, nil
}

// Start begins running the jobs on their schedules.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	log.Println("✅ [JOBS] Scheduler started")
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error {
	log.Println("⏹️  [JOBS] Stopping scheduler")
	return s.scheduler.Shutdown()
}

// RefreshLinks walks every stored link and refetches the stale ones.
// Per-link failures are logged and skipped.
func (s *Scheduler) RefreshLinks(ctx context.Context) {
	logger := logging.WithJob("link-refresh")
	start := time.Now()
	records, err := s.lister.All(ctx)
	if err != nil {
		logger.Error("failed to list records", "error", err)
		return
	}

	refreshed := 0
	failed := 0
	for i := range records {
		record := &records[i]
		before := record.LastFetch
		if err := s.refresher.EnsureFresh(ctx, record); err != nil {
			failed++
			logger.Warn("refresh failed", "url", record.URL, "error", err)
			continue
		}
		if !record.LastFetch.Equal(before) {
			refreshed++
		}
	}

	logger.Info("link refresh done",
		"records", len(records), "refreshed", refreshed, "failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond))
}

// SweepCache deletes expired document-cache rows.
func (s *Scheduler) SweepCache(ctx context.Context) {
	logger := logging.WithJob("cache-sweep")
	swept, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		logger.Error("cache sweep failed", "error", err)
		return
	}
	if swept > 0 {
		logger.Info("cache sweep removed expired rows", "swept", swept)
	}
}
