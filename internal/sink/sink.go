// Package sink delivers encoded entity batches to their destinations: the
// ingestion HTTP API, a message broker, local files, or a SQLite archive.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

// Sink receives one batch per call. Implementations are used from the
// single simulation goroutine and need not be safe for concurrent use.
type Sink interface {
	// Name is a short label used in logs and metrics.
	Name() string
	// Send delivers set to the named dataset.
	Send(ctx context.Context, dataset string, set model.EntitySet) error
	Close() error
}

// UploadError is returned when the ingestion API answers with a non-2xx
// status, either to the upload itself or to a job poll.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload rejected with status %d: %s", e.Status, e.Body)
}

// ErrJobTimeout is returned when an ingestion job does not report completion
// within the configured poll budget.
var ErrJobTimeout = errors.New("ingestion job did not complete in time")

// Tee fans each batch out to several sinks in order and stops at the first
// error.
type Tee struct {
	sinks []Sink
}

// NewTee returns a sink writing to every non-nil sink in order.
func NewTee(sinks ...Sink) *Tee {
	t := &Tee{}
	for _, s := range sinks {
		if s != nil {
			t.sinks = append(t.sinks, s)
		}
	}
	return t
}

func (t *Tee) Name() string {
	if len(t.sinks) == 1 {
		return t.sinks[0].Name()
	}
	return "tee"
}

func (t *Tee) Send(ctx context.Context, dataset string, set model.EntitySet) error {
	for _, s := range t.sinks {
		if err := s.Send(ctx, dataset, set); err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (t *Tee) Close() error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
