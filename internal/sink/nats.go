package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/logging"
	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

// NATSConfig describes the JetStream destination.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Stream        string

	MaxAge          time.Duration
	DuplicateWindow time.Duration
}

// DefaultNATSConfig publishes to venue.telemetry.<dataset> on a local server.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:             nats.DefaultURL,
		SubjectPrefix:   "venue.telemetry",
		Stream:          "VENUE_TELEMETRY",
		MaxAge:          24 * time.Hour,
		DuplicateWindow: 2 * time.Minute,
	}
}

// NATSSink publishes each batch as one JetStream message.
type NATSSink struct {
	cfg NATSConfig
	nc  *nats.Conn
	js  nats.JetStreamContext
	log logging.Logger
}

// NewNATSSink connects to cfg.URL and creates or updates the stream that
// captures cfg.SubjectPrefix.>.
func NewNATSSink(cfg NATSConfig, log logging.Logger) (*NATSSink, error) {
	if cfg.SubjectPrefix == "" || cfg.Stream == "" {
		return nil, fmt.Errorf("NATS subject prefix and stream are required")
	}
	if log == nil {
		log = logging.Noop()
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("venue-telemetry-generator"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(context.Background(), "NATS disconnected", logging.Err(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info(context.Background(), "NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	s := &NATSSink{cfg: cfg, nc: nc, js: js, log: log}
	if err := s.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return s, nil
}

func (s *NATSSink) ensureStream() error {
	config := &nats.StreamConfig{
		Name:       s.cfg.Stream,
		Subjects:   []string{s.cfg.SubjectPrefix + ".>"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     s.cfg.MaxAge,
		Duplicates: s.cfg.DuplicateWindow,
		Discard:    nats.DiscardOld,
	}

	// Try to update stream if it exists, otherwise create it
	if _, err := s.js.StreamInfo(s.cfg.Stream); err == nil {
		if _, err := s.js.UpdateStream(config); err != nil {
			return fmt.Errorf("failed to update stream %s: %w", s.cfg.Stream, err)
		}
		return nil
	}
	if _, err := s.js.AddStream(config); err != nil {
		return fmt.Errorf("failed to add stream %s: %w", s.cfg.Stream, err)
	}
	s.log.Info(context.Background(), "created NATS stream",
		logging.String("stream", s.cfg.Stream),
		logging.String("subjects", s.cfg.SubjectPrefix+".>"),
	)
	return nil
}

func (s *NATSSink) Name() string { return "nats" }

// Subject returns the subject batches for dataset are published on.
func (s *NATSSink) Subject(dataset string) string {
	return s.cfg.SubjectPrefix + "." + dataset
}

// Send publishes the compact JSON batch with a unique Nats-Msg-Id so
// JetStream drops redelivered duplicates.
func (s *NATSSink) Send(ctx context.Context, dataset string, set model.EntitySet) error {
	payload, err := set.Encode(false)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(s.Subject(dataset))
	msg.Data = payload
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())

	if _, err := s.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (s *NATSSink) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}
