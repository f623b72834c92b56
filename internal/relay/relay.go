// Package relay bridges the HTTP API to the device controllers over
// MQTT. Outbound, it turns an authorized open request into a publish on
// the device's command topic and records the dispatch in the audit
// trail. Inbound, it subscribes to the shared status topic and keeps
// the registry's last-known status current.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LGEEEEEE/GateOS/internal/audit"
	"github.com/LGEEEEEE/GateOS/internal/device"
	"github.com/LGEEEEEE/GateOS/internal/infrastructure/logging"
	"github.com/LGEEEEEE/GateOS/internal/infrastructure/mqtt"
)

// openCommand is the verb suffix a controller expects on its command
// topic. The full payload is "{securityCode}:{openCommand}"; the colon
// is the delimiter, so security codes containing a colon will confuse
// the controller-side split. Codes are operator-chosen and short, this
// is documented rather than validated.
const openCommand = "OPEN_COMMAND"

// Publisher is the outbound half of the broker connection the relay
// needs. Satisfied by *mqtt.Client.
type Publisher interface {
	PublishString(topic, payload string) error
}

// Subscriber is the inbound half. Satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// StatusSink receives every accepted inbound status change. Implemented
// by the WebSocket hub and the telemetry recorder; both are optional.
type StatusSink interface {
	StatusChanged(tenantID, serial, status string, at time.Time)
}

// Relay wires the registry, the audit log and the broker together.
type Relay struct {
	registry *device.Registry
	auditLog *audit.Log
	pub      Publisher
	sub      Subscriber
	topics   mqtt.Topics
	logger   *logging.Logger
	sinks    []StatusSink
}

// New creates a relay. Sinks may be nil entries; those are skipped.
func New(registry *device.Registry, auditLog *audit.Log, pub Publisher, sub Subscriber, logger *logging.Logger, sinks ...StatusSink) *Relay {
	r := &Relay{
		registry: registry,
		auditLog: auditLog,
		pub:      pub,
		sub:      sub,
		logger:   logger,
	}
	for _, s := range sinks {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
	return r
}

// AttachSink adds a status sink. Must be called before Start; the sink
// slice is read without locking from the broker callback.
func (r *Relay) AttachSink(sink StatusSink) {
	if sink != nil {
		r.sinks = append(r.sinks, sink)
	}
}

// Open dispatches an open command to a device on behalf of a principal.
//
// The device must belong to the principal's tenant; otherwise the
// request fails with device.ErrAccessDenied before anything reaches
// the broker. The audit entry is written only after the publish
// succeeded, so an entry in the trail always corresponds to a command
// that was actually handed to the broker. A failed audit write after a
// successful publish is returned as an error; the command is already
// in flight at that point.
func (r *Relay) Open(ctx context.Context, tenantID, principalID, serial string) (*audit.Entry, error) {
	d, err := r.registry.FindForTenant(ctx, tenantID, serial)
	if err != nil {
		return nil, err
	}

	topic := r.topics.DeviceCommand(d.SerialNumber)
	payload := d.SecurityCode + ":" + openCommand

	if err := r.pub.PublishString(topic, payload); err != nil {
		return nil, fmt.Errorf("dispatching open command to %s: %w", d.SerialNumber, err)
	}

	entry, err := r.auditLog.Append(ctx, principalID, d.SerialNumber, audit.ActionTriggeredOpen)
	if err != nil {
		return nil, fmt.Errorf("recording dispatch for %s: %w", d.SerialNumber, err)
	}

	r.logger.Info("open command dispatched",
		"device", d.SerialNumber,
		"principal", principalID,
		"topic", topic)

	return entry, nil
}

// Start subscribes to the shared status topic. Inbound handling never
// propagates errors to the broker loop: a malformed topic or an
// unregistered serial is logged and dropped so one misbehaving
// controller cannot stall the subscription.
func (r *Relay) Start(ctx context.Context) error {
	topic := r.topics.AllDeviceStatus()

	err := r.sub.Subscribe(topic, 1, func(msgTopic string, payload []byte) error {
		r.handleStatus(ctx, msgTopic, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to device status: %w", err)
	}

	r.logger.Info("status subscription active", "topic", topic)
	return nil
}

func (r *Relay) handleStatus(ctx context.Context, msgTopic string, payload []byte) {
	serial, ok := r.topics.SerialFromStatusTopic(msgTopic)
	if !ok {
		r.logger.Warn("ignoring status on malformed topic", "topic", msgTopic)
		return
	}

	status := string(payload)
	if status == "" {
		r.logger.Warn("ignoring empty status", "device", serial)
		return
	}

	if err := r.registry.UpdateStatus(ctx, serial, status); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			r.logger.Warn("status from unregistered device", "device", serial)
		} else {
			r.logger.Error("storing device status", "device", serial, "error", err)
		}
		return
	}

	r.logger.Debug("device status updated", "device", serial, "status", status)

	r.notifySinks(ctx, serial, status)
}

func (r *Relay) notifySinks(ctx context.Context, serial, status string) {
	if len(r.sinks) == 0 {
		return
	}

	// Sinks are tenant-scoped, so resolve the owning tenant once.
	d, err := r.lookupSerial(ctx, serial)
	if err != nil {
		r.logger.Warn("skipping status fan-out", "device", serial, "error", err)
		return
	}

	now := time.Now().UTC()
	for _, s := range r.sinks {
		s.StatusChanged(d.TenantID, serial, status, now)
	}
}

func (r *Relay) lookupSerial(ctx context.Context, serial string) (*device.Device, error) {
	return r.registry.Lookup(ctx, serial)
}
