// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package services

import (
	"context"
	"time"

	"github.com/tomtom215/excubitor/internal/logging"
)

// Pruner deletes stored events older than a cutoff, returning the number
// of rows removed. *history.Store implements it.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// SweeperService enforces the history retention window. It prunes once on
// startup and then at every interval until its context is canceled. Prune
// failures are logged and retried on the next tick rather than crashing
// the service.
type SweeperService struct {
	store     Pruner
	retention time.Duration
	interval  time.Duration
	log       *logging.EventLogger
}

// NewSweeperService builds a sweeper keeping retentionDays of history.
// A zero interval defaults to one hour.
func NewSweeperService(store Pruner, retentionDays int, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SweeperService{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		log:       logging.NewEventLogger(),
	}
}

// Serve implements suture.Service.
func (s *SweeperService) Serve(ctx context.Context) error {
	if s.store == nil || s.retention <= 0 {
		// Retention disabled; sleep until shutdown so the supervisor
		// does not restart-loop.
		<-ctx.Done()
		return ctx.Err()
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SweeperService) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)

	pruned, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		s.log.Error("history prune failed", "error", err, "cutoff", cutoff.Format(time.RFC3339))
		return
	}
	if pruned > 0 {
		s.log.Info("history pruned", "removed", pruned, "cutoff", cutoff.Format(time.RFC3339))
	}
}

func (s *SweeperService) String() string {
	return "retention-sweeper"
}
