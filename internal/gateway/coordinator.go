package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/fieldgrid/fieldgrid-core/internal/device"
	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/logging"
	"github.com/fieldgrid/fieldgrid-core/internal/session"
	"github.com/fieldgrid/fieldgrid-core/internal/telemetry"
)

// Sender delivers events back to the connection that triggered an operation.
// Client implements it over WebSocket; the MQTT bridge implements it over the
// device events topic.
type Sender interface {
	Send(event string, payload any)
}

// Ingestor is the slice of the telemetry pipeline the coordinator needs.
type Ingestor interface {
	Ingest(ctx context.Context, batch telemetry.Batch) ([]telemetry.Record, time.Time, error)
}

// MetricMirror receives accepted telemetry and heartbeats for time-series
// mirroring. Implementations must be non-blocking; the influxdb client
// qualifies. A nil mirror disables mirroring.
type MetricMirror interface {
	WriteTelemetry(deviceID, metric string, value float64, unit string, ts time.Time)
	WriteHeartbeat(deviceID string, ts time.Time)
}

// Coordinator owns the session lifecycle: register, heartbeat, telemetry
// ingest, and disconnect.
//
// It is transport-agnostic. The WebSocket gateway and the MQTT bridge both
// call into it, and all replies flow back through the caller's Sender. State
// changes visible to dashboards go out through the Broadcaster.
type Coordinator struct {
	registry *session.Registry
	repo     device.Repository
	pipeline Ingestor
	hub      Broadcaster
	closer   ConnCloser
	mirror   MetricMirror
	logger   *logging.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

// CoordinatorDeps carries the coordinator's dependencies.
// Mirror may be nil; everything else is required.
type CoordinatorDeps struct {
	Registry *session.Registry
	Repo     device.Repository
	Pipeline Ingestor
	Hub      Broadcaster
	Closer   ConnCloser
	Mirror   MetricMirror
	Logger   *logging.Logger
}

// NewCoordinator creates a session lifecycle coordinator.
func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	return &Coordinator{
		registry: deps.Registry,
		repo:     deps.Repo,
		pipeline: deps.Pipeline,
		hub:      deps.Hub,
		closer:   deps.Closer,
		mirror:   deps.Mirror,
		logger:   deps.Logger.With("component", "coordinator"),
		now:      time.Now,
	}
}

// Register handles device:register.
//
// The device record is upserted (created, or refreshed with the new identity
// fields), the session is installed in the registry with last-write-wins
// semantics, and an online status is broadcast. If the device already had a
// live session, the superseded connection is closed; its eventual disconnect
// is a no-op because compare-and-remove no longer matches.
func (c *Coordinator) Register(ctx context.Context, sender Sender, connID string, payload RegisterPayload) error {
	reg, err := device.ValidateRegistration(device.Registration{
		DeviceID: payload.DeviceID,
		Name:     payload.Name,
		Location: payload.Location,
		Type:     payload.Type,
	})
	if err != nil {
		sender.Send(EventDeviceError, ErrorPayload{Error: err.Error()})
		return err
	}

	now := c.now().UTC()

	d, err := c.repo.Upsert(ctx, reg, now)
	if err != nil {
		c.logger.Error("device registration failed",
			"device_id", reg.DeviceID,
			"error", err,
		)
		sender.Send(EventDeviceError, ErrorPayload{Error: "registration failed"})
		return err
	}

	prev, superseded := c.registry.Put(session.Session{
		DeviceID:  reg.DeviceID,
		ConnID:    connID,
		CreatedAt: now,
	})
	if superseded {
		c.logger.Info("device session superseded",
			"device_id", reg.DeviceID,
			"old_conn", prev.ConnID,
			"new_conn", connID,
		)
		c.closer.CloseConn(prev.ConnID)
	}

	c.logger.Info("device registered",
		"device_id", d.ID,
		"conn_id", connID,
		"location", reg.Location,
		"type", reg.Type,
	)

	sender.Send(EventDeviceRegistered, RegisteredPayload{Success: true, Device: d})
	c.hub.Broadcast(EventDeviceStatus, StatusPayload{
		DeviceID:   d.ID,
		IsOnline:   true,
		LastSeenAt: d.LastSeenAt,
	})

	return nil
}

// Heartbeat handles device:heartbeat.
//
// The ack always goes out, known device or not: devices treat a missing ack
// as a dead connection, and punishing an unknown device (cleared database,
// mid-reregistration) buys nothing. Unknown devices get no record created
// and no other side effect.
func (c *Coordinator) Heartbeat(ctx context.Context, sender Sender, payload HeartbeatPayload) {
	now := c.now().UTC()

	if payload.DeviceID != "" {
		if err := c.repo.Touch(ctx, payload.DeviceID, now); err != nil {
			// Liveness refresh is best-effort; the ack still goes out.
			c.logger.Warn("heartbeat touch failed",
				"device_id", payload.DeviceID,
				"error", err,
			)
		} else if c.mirror != nil {
			c.mirror.WriteHeartbeat(payload.DeviceID, now)
		}
	}

	sender.Send(EventHeartbeatAck, HeartbeatAckPayload{Timestamp: now})
}

// Ingest handles telemetry:data.
//
// The batch goes through the pipeline (validate, stamp, persist atomically);
// accepted records are broadcast to dashboards exactly as stored. Failures
// are reported to the submitting device and nothing is broadcast.
func (c *Coordinator) Ingest(ctx context.Context, sender Sender, payload TelemetryPayload) error {
	records, stamp, err := c.pipeline.Ingest(ctx, telemetry.Batch{
		DeviceID: payload.DeviceID,
		Samples:  payload.Metrics,
	})
	if err != nil {
		msg := "telemetry rejected"
		if errors.Is(err, telemetry.ErrStorageUnavailable) {
			msg = "storage unavailable"
		}
		sender.Send(EventTelemetryError, ErrorPayload{Error: msg})
		return err
	}

	c.hub.Broadcast(EventTelemetryUpdate, UpdatePayload{
		DeviceID:  payload.DeviceID,
		Data:      records,
		Timestamp: stamp,
	})

	if c.mirror != nil {
		for _, rec := range records {
			unit := ""
			if rec.Unit != nil {
				unit = *rec.Unit
			}
			c.mirror.WriteTelemetry(rec.DeviceID, rec.Metric, rec.Value, unit, stamp)
		}
	}

	return nil
}

// Disconnect handles a connection closing, for whatever reason.
//
// Compare-and-remove decides whether this disconnect still matters: if the
// device re-registered on a newer connection, the registry binding no longer
// matches and nothing happens. Otherwise the device is marked offline and a
// status broadcast goes out with its stored last-seen time.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) {
	s, ok := c.registry.FindByConn(connID)
	if !ok {
		return // Dashboard client or never-registered device connection.
	}

	if !c.registry.Remove(s.DeviceID, connID) {
		// Superseded between lookup and removal; the new session owns the
		// device now.
		return
	}

	if err := c.repo.MarkOffline(ctx, s.DeviceID); err != nil {
		c.logger.Error("marking device offline failed",
			"device_id", s.DeviceID,
			"error", err,
		)
		return
	}

	var lastSeen *time.Time
	if d, err := c.repo.GetByID(ctx, s.DeviceID); err == nil {
		lastSeen = d.LastSeenAt
	}

	c.logger.Info("device disconnected", "device_id", s.DeviceID, "conn_id", connID)

	c.hub.Broadcast(EventDeviceStatus, StatusPayload{
		DeviceID:   s.DeviceID,
		IsOnline:   false,
		LastSeenAt: lastSeen,
	})
}
