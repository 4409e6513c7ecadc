package gateway

import (
	"context"
	"time"

	"github.com/fieldgrid/fieldgrid-core/internal/device"
	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/logging"
	"github.com/fieldgrid/fieldgrid-core/internal/session"
)

// Reaper demotes devices whose heartbeats have gone quiet.
//
// A WebSocket connection can die without a close frame (power loss, NAT
// timeout); the read deadline usually catches that, but the reaper is the
// backstop that guarantees no device stays online forever on a dead session.
// Each sweep issues one conditional update to the store and one offline
// broadcast per demoted device.
type Reaper struct {
	repo     device.Repository
	registry *session.Registry
	hub      Broadcaster
	logger   *logging.Logger

	interval  time.Duration
	threshold time.Duration

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewReaper creates a stale-session reaper.
//
// interval is how often to sweep; threshold is how long a device may go
// without being seen before it is demoted.
func NewReaper(repo device.Repository, registry *session.Registry, hub Broadcaster, logger *logging.Logger, interval, threshold time.Duration) *Reaper {
	return &Reaper{
		repo:      repo,
		registry:  registry,
		hub:       hub,
		logger:    logger.With("component", "reaper"),
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started",
		"interval", r.interval.String(),
		"threshold", r.threshold.String(),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep demotes every online device last seen before the threshold.
//
// The store performs the conditional demotion and returns the demoted set in
// one statement, so a device that heartbeats mid-sweep is never caught.
// Registry cleanup uses compare-and-remove keyed on the stale connection; a
// device that re-registered after the demotion query keeps its fresh session
// and gets no offline broadcast (its registration already announced it
// online again).
func (r *Reaper) Sweep(ctx context.Context) error {
	sweepStart := r.now().UTC()
	cutoff := sweepStart.Add(-r.threshold)

	demoted, err := r.repo.DemoteStale(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(demoted) == 0 {
		return nil
	}

	announced := 0
	for _, d := range demoted {
		if s, ok := r.registry.Find(d.ID); ok {
			if s.CreatedAt.After(sweepStart) {
				// Reconnected between the demotion query and now. Its
				// registration has already upserted it back online;
				// announcing the stale demotion would flap the dashboard.
				continue
			}
			r.registry.Remove(d.ID, s.ConnID)
		}

		r.hub.Broadcast(EventDeviceStatus, StatusPayload{
			DeviceID:   d.ID,
			IsOnline:   false,
			LastSeenAt: d.LastSeenAt,
		})
		announced++
	}

	r.logger.Info("stale devices demoted",
		"demoted", len(demoted),
		"announced", announced,
	)

	return nil
}
