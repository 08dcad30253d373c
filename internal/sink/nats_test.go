package sink

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

func startJetStream(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		t.Fatalf("failed to create NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("NATS server not ready for connections")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func TestNATSSinkPublishesWithDedupID(t *testing.T) {
	ns := startJetStream(t)

	cfg := DefaultNATSConfig()
	cfg.URL = ns.ClientURL()
	s, err := NewNATSSink(cfg, nil)
	if err != nil {
		t.Fatalf("NewNATSSink: %v", err)
	}
	defer s.Close()

	if err := s.Send(context.Background(), "people", testSet()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := s.Send(context.Background(), "people", testSet()); err != nil {
		t.Fatalf("second Send: %v", err)
	}

	info, err := s.js.StreamInfo(cfg.Stream)
	if err != nil {
		t.Fatalf("StreamInfo: %v", err)
	}
	// Distinct message ids, so both batches are kept.
	if info.State.Msgs != 2 {
		t.Fatalf("stream holds %d messages, want 2", info.State.Msgs)
	}

	msg, err := s.js.GetLastMsg(cfg.Stream, s.Subject("people"))
	if err != nil {
		t.Fatalf("GetLastMsg: %v", err)
	}
	if msg.Header.Get(nats.MsgIdHdr) == "" {
		t.Fatalf("message missing %s header", nats.MsgIdHdr)
	}
	var set model.EntitySet
	if err := json.Unmarshal(msg.Data, &set); err != nil {
		t.Fatalf("payload is not an entity set: %v", err)
	}
	if len(set.Entities) != 2 {
		t.Fatalf("payload has %d entities, want 2", len(set.Entities))
	}
}

func TestNATSSinkReusesExistingStream(t *testing.T) {
	ns := startJetStream(t)

	cfg := DefaultNATSConfig()
	cfg.URL = ns.ClientURL()
	first, err := NewNATSSink(cfg, nil)
	if err != nil {
		t.Fatalf("first NewNATSSink: %v", err)
	}
	defer first.Close()

	second, err := NewNATSSink(cfg, nil)
	if err != nil {
		t.Fatalf("second NewNATSSink: %v", err)
	}
	defer second.Close()

	if err := second.Send(context.Background(), "impacts", model.EntitySet{}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestNewNATSSinkRequiresSubject(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.SubjectPrefix = ""
	if _, err := NewNATSSink(cfg, nil); err == nil {
		t.Fatalf("expected error without subject prefix")
	}
}
