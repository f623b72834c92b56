package relay

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/LGEEEEEE/GateOS/internal/audit"
	"github.com/LGEEEEEE/GateOS/internal/device"
	"github.com/LGEEEEEE/GateOS/internal/infrastructure/config"
	"github.com/LGEEEEEE/GateOS/internal/infrastructure/logging"
	"github.com/LGEEEEEE/GateOS/internal/infrastructure/mqtt"
)

// fakeBroker captures publishes and hands subscriptions back to the test
// so inbound messages can be injected directly.
type fakeBroker struct {
	published  []publishedMsg
	publishErr error
	handlers   map[string]mqtt.MessageHandler
}

type publishedMsg struct {
	topic   string
	payload string
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeBroker) PublishString(topic, payload string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMsg{topic: topic, payload: payload})
	return nil
}

func (f *fakeBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.handlers[topic] = handler
	return nil
}

// inject delivers an inbound message to the status subscription.
func (f *fakeBroker) inject(t *testing.T, topic string, payload string) {
	t.Helper()
	handler, ok := f.handlers["gate/+/status"]
	if !ok {
		t.Fatal("status subscription not established")
	}
	if err := handler(topic, []byte(payload)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

// recordingSink captures status fan-out calls.
type recordingSink struct {
	events []sinkEvent
}

type sinkEvent struct {
	tenantID string
	serial   string
	status   string
}

func (s *recordingSink) StatusChanged(tenantID, serial, status string, _ time.Time) {
	s.events = append(s.events, sinkEvent{tenantID: tenantID, serial: serial, status: status})
}

func setupRelayDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE tenants (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			access_code TEXT NOT NULL UNIQUE,
			created_at  TEXT NOT NULL
		) STRICT;

		CREATE TABLE principals (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL COLLATE NOCASE UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'resident',
			tenant_id     TEXT NOT NULL,
			unit_kind     TEXT,
			unit_number   TEXT,
			unit_block    TEXT,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		) STRICT;

		CREATE TABLE devices (
			serial_number TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			status        TEXT NOT NULL DEFAULT 'OFFLINE',
			security_code TEXT NOT NULL DEFAULT '1234',
			tenant_id     TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		) STRICT;

		CREATE TABLE audit_logs (
			id            TEXT PRIMARY KEY,
			principal_id  TEXT,
			device_serial TEXT NOT NULL,
			action        TEXT NOT NULL,
			created_at    TEXT NOT NULL
		) STRICT;

		INSERT INTO tenants VALUES ('ten-aaa', 'Tenant A', 'AAAAAA', '2026-01-01T00:00:00Z');
		INSERT INTO tenants VALUES ('ten-bbb', 'Tenant B', 'BBBBBB', '2026-01-01T00:00:00Z');
		INSERT INTO devices VALUES
			('GATE-001', 'Front Gate', 'OFFLINE', '9876', 'ten-aaa',
			 '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z');
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func setupRelay(t *testing.T, sinks ...StatusSink) (*Relay, *fakeBroker, *audit.Log, *device.Registry) {
	t.Helper()

	db := setupRelayDB(t)
	registry := device.NewRegistry(device.NewSQLiteRepository(db))
	auditLog := audit.NewLog(db)
	broker := newFakeBroker()
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	r := New(registry, auditLog, broker, broker, log, sinks...)
	return r, broker, auditLog, registry
}

func TestOpenDispatchesAndAudits(t *testing.T) {
	r, broker, auditLog, _ := setupRelay(t)
	ctx := context.Background()

	entry, err := r.Open(ctx, "ten-aaa", "prn-alice", "GATE-001")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	if len(broker.published) != 1 {
		t.Fatalf("publish count = %d, want 1", len(broker.published))
	}
	msg := broker.published[0]
	if msg.topic != "gate/GATE-001/cmd" {
		t.Errorf("topic = %q, want gate/GATE-001/cmd", msg.topic)
	}
	if msg.payload != "9876:OPEN_COMMAND" {
		t.Errorf("payload = %q, want 9876:OPEN_COMMAND", msg.payload)
	}

	if entry.Action != audit.ActionTriggeredOpen {
		t.Errorf("action = %q, want %q", entry.Action, audit.ActionTriggeredOpen)
	}

	entries, err := auditLog.ListForDevice(ctx, "ten-aaa", "GATE-001", 0)
	if err != nil {
		t.Fatalf("ListForDevice error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("audit count = %d, want 1", len(entries))
	}
}

func TestOpenCrossTenantDenied(t *testing.T) {
	r, broker, auditLog, _ := setupRelay(t)
	ctx := context.Background()

	_, err := r.Open(ctx, "ten-bbb", "prn-bob", "GATE-001")
	if !errors.Is(err, device.ErrAccessDenied) {
		t.Fatalf("error = %v, want ErrAccessDenied", err)
	}

	// Nothing left the building and nothing was recorded.
	if len(broker.published) != 0 {
		t.Errorf("publish count = %d, want 0", len(broker.published))
	}
	entries, err := auditLog.ListForDevice(ctx, "ten-aaa", "GATE-001", 0)
	if err != nil {
		t.Fatalf("ListForDevice error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("audit count = %d, want 0", len(entries))
	}
}

func TestOpenPublishFailureNotAudited(t *testing.T) {
	r, broker, auditLog, _ := setupRelay(t)
	broker.publishErr = mqtt.ErrNotConnected
	ctx := context.Background()

	_, err := r.Open(ctx, "ten-aaa", "prn-alice", "GATE-001")
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Fatalf("error = %v, want ErrNotConnected", err)
	}

	// A failed dispatch must never appear in the trail.
	entries, listErr := auditLog.ListForDevice(ctx, "ten-aaa", "GATE-001", 0)
	if listErr != nil {
		t.Fatalf("ListForDevice error: %v", listErr)
	}
	if len(entries) != 0 {
		t.Errorf("audit count = %d, want 0 after failed publish", len(entries))
	}
}

func TestInboundStatusUpdate(t *testing.T) {
	sink := &recordingSink{}
	r, broker, _, registry := setupRelay(t, sink)
	ctx := context.Background()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	broker.inject(t, "gate/GATE-001/status", "ONLINE")

	d, err := registry.FindForTenant(ctx, "ten-aaa", "GATE-001")
	if err != nil {
		t.Fatalf("FindForTenant error: %v", err)
	}
	if d.Status != "ONLINE" {
		t.Errorf("status = %q, want ONLINE", d.Status)
	}

	if len(sink.events) != 1 {
		t.Fatalf("sink events = %d, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.tenantID != "ten-aaa" || ev.serial != "GATE-001" || ev.status != "ONLINE" {
		t.Errorf("sink event = %+v, want ten-aaa/GATE-001/ONLINE", ev)
	}
}

func TestInboundStatusIgnoresBadInput(t *testing.T) {
	sink := &recordingSink{}
	r, broker, _, registry := setupRelay(t, sink)
	ctx := context.Background()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	// Malformed topic, unknown serial, and empty payload are all dropped
	// without error.
	broker.inject(t, "gate/status", "ONLINE")
	broker.inject(t, "gate/GATE-404/status", "ONLINE")
	broker.inject(t, "gate/GATE-001/status", "")

	d, err := registry.FindForTenant(ctx, "ten-aaa", "GATE-001")
	if err != nil {
		t.Fatalf("FindForTenant error: %v", err)
	}
	if d.Status != "OFFLINE" {
		t.Errorf("status = %q, want untouched OFFLINE", d.Status)
	}
	if len(sink.events) != 0 {
		t.Errorf("sink events = %d, want 0", len(sink.events))
	}
}
