package registry

import (
	"fmt"
	"time"

	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/scheduler"
)

// AutoRefreshJob is the scheduler job name of the recurring refresh.
const AutoRefreshJob = "registry.auto_refresh"

func (r *Registry) registerAutoRefresh() error {
	err := r.scheduler.RegisterJob(
		AutoRefreshJob,
		scheduler.EverySchedule(r.config.RefreshInterval),
		"Refresh the document list",
		false,
		r.autoRefreshTick,
	)
	if err != nil {
		return fmt.Errorf("register auto-refresh: %w", err)
	}
	return nil
}

func (r *Registry) autoRefreshTick() error {
	ctx, cancel := r.requestContext()
	defer cancel()
	return r.Refresh(ctx)
}

// SetAutoRefresh arms or disarms the recurring refresh.
func (r *Registry) SetAutoRefresh(enabled bool) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		if enabled {
			return fmt.Errorf("registry is closed")
		}
		return nil
	}
	if r.scheduler == nil {
		r.mu.Unlock()
		if enabled {
			return fmt.Errorf("auto-refresh requires a scheduler")
		}
		return nil
	}
	if r.autoRefresh == enabled {
		r.mu.Unlock()
		return nil
	}
	r.autoRefresh = enabled
	r.mu.Unlock()

	var err error
	if enabled {
		err = r.scheduler.EnableJob(AutoRefreshJob)
	} else {
		err = r.scheduler.DisableJob(AutoRefreshJob)
	}
	if err != nil {
		r.mu.Lock()
		r.autoRefresh = !enabled
		r.mu.Unlock()
		return fmt.Errorf("set auto-refresh: %w", err)
	}

	r.logger.Info().
		Bool("enabled", enabled).
		Str("interval", r.config.RefreshInterval.String()).
		Msg("Auto-refresh updated")
	return nil
}

// scheduleDelayedRefreshes arms one refresh per configured delay. The id
// leaves the processing set before the last one unless a snapshot showed
// progress earlier.
func (r *Registry) scheduleDelayedRefreshes(id models.DocumentID) {
	delays := r.config.RefreshDelays

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || len(delays) == 0 {
		delete(r.processing, id)
		return
	}

	for i, delay := range delays {
		last := i == len(delays)-1
		var timer *time.Timer
		timer = time.AfterFunc(delay, func() {
			defer common.RecoverPanic(r.logger, "registry.delayed_refresh")

			r.mu.Lock()
			delete(r.timers, timer)
			closed := r.closed
			r.mu.Unlock()
			if closed {
				return
			}

			// The last snapshot is applied as-is, so the id leaves the processing set first
			if last {
				r.clearProcessing(id)
			}

			ctx, cancel := r.requestContext()
			defer cancel()
			if err := r.Refresh(ctx); err != nil {
				r.logger.Debug().Err(err).Str("document_id", id.String()).Msg("Delayed refresh failed")
				if last {
					r.releaseStale(id)
				}
			}
		})
		r.timers[timer] = struct{}{}
	}
}

// releaseStale rolls a record that is still marked processing locally, with
// nothing in flight, back to uploaded so it can be processed again.
func (r *Registry) releaseStale(id models.DocumentID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, inFlight := r.processing[id]; inFlight {
		return
	}
	if idx := r.indexOf(id); idx >= 0 && r.documents[idx].Status == models.StatusProcessing {
		r.updateLocked(id, models.StatusUploaded, nil)
		r.logger.Warn().Str("document_id", id.String()).Msg("No snapshot after processing request, status restored")
	}
}

// PendingTimers returns the number of armed delayed refreshes.
func (r *Registry) PendingTimers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.timers)
}

// Close disarms the recurring refresh, stops every delayed refresh and
// cancels in-flight background requests. It is safe to call more than once.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	wasArmed := r.autoRefresh
	r.autoRefresh = false
	for t := range r.timers {
		t.Stop()
	}
	r.timers = make(map[*time.Timer]struct{})
	r.mu.Unlock()

	r.cancel()

	if r.scheduler != nil {
		if wasArmed {
			if err := r.scheduler.DisableJob(AutoRefreshJob); err != nil {
				r.logger.Warn().Err(err).Msg("Failed to disarm auto-refresh")
			}
		}
		if err := r.scheduler.UnregisterJob(AutoRefreshJob); err != nil {
			r.logger.Debug().Err(err).Msg("Auto-refresh job already removed")
		}
	}

	r.logger.Debug().Msg("Registry closed")
	return nil
}
