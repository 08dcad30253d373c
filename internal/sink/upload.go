package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/signalsfoundry/venue-telemetry-sim/internal/logging"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/observability"
	"github.com/signalsfoundry/venue-telemetry-sim/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxErrorBody caps how much of a rejected response is kept in UploadError.
const maxErrorBody = 4096

// UploadConfig describes the ingestion API.
type UploadConfig struct {
	// BaseURL is the API root, e.g. https://host/conduce/api. Job locations
	// returned by the API are resolved against it.
	BaseURL string
	APIKey  string

	PollInterval time.Duration
	MaxPolls     int
	MaxWait      time.Duration
	Timeout      time.Duration
}

// DefaultUploadConfig returns the polling defaults: one poll per second, at
// most 600 polls or ten minutes.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PollInterval: time.Second,
		MaxPolls:     600,
		MaxWait:      10 * time.Minute,
		Timeout:      30 * time.Second,
	}
}

// Uploader posts batches to the ingestion API and waits for the resulting
// job to complete.
type Uploader struct {
	cfg     UploadConfig
	client  *http.Client
	log     logging.Logger
	metrics *observability.EmitterCollector

	sleep func(ctx context.Context, d time.Duration) error
}

// NewUploader validates cfg and returns an uploader. metrics may be nil.
func NewUploader(cfg UploadConfig, log logging.Logger, metrics *observability.EmitterCollector) (*Uploader, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upload base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("upload API key is required")
	}
	if cfg.PollInterval <= 0 || cfg.MaxPolls <= 0 || cfg.MaxWait <= 0 {
		return nil, fmt.Errorf("job polling needs a positive interval, attempt count and wait")
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Uploader{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log,
		metrics: metrics,
		sleep:   sleepContext,
	}, nil
}

func (u *Uploader) Name() string { return "upload" }

// Close releases idle connections.
func (u *Uploader) Close() error {
	u.client.CloseIdleConnections()
	return nil
}

// Send posts the batch to {base}/datasets/add_datav2/{dataset}. A 2xx answer
// carrying a Location header is followed by job polling; one without is
// treated as a synchronous success.
func (u *Uploader) Send(ctx context.Context, dataset string, set model.EntitySet) error {
	ctx, span := observability.StartSpan(ctx, "sink.upload", dataset,
		attribute.Int("telemetry.records", len(set.Entities)))
	defer span.End()

	payload, err := set.Encode(false)
	if err != nil {
		return err
	}

	start := time.Now()
	location, err := u.post(ctx, dataset, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if location == "" {
		u.log.Warn(ctx, "upload accepted without a job location",
			logging.String("dataset", dataset))
		return nil
	}

	polls, err := u.waitForJob(ctx, dataset, location)
	span.SetAttributes(attribute.Int("telemetry.job_polls", polls))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	u.log.Info(ctx, "upload job completed",
		logging.String("dataset", dataset),
		logging.Int("records", len(set.Entities)),
		logging.Int("polls", polls),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (u *Uploader) post(ctx context.Context, dataset string, payload []byte) (string, error) {
	url := strings.TrimRight(u.cfg.BaseURL, "/") + "/datasets/add_datav2/" + dataset
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload to %s: %w", dataset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", &UploadError{Status: resp.StatusCode, Body: errorBody(resp)}
	}
	u.log.Debug(ctx, "upload accepted",
		logging.String("dataset", dataset),
		logging.Int("status", resp.StatusCode),
	)
	return resp.Header.Get("Location"), nil
}

// waitForJob polls the job location until its JSON body carries a
// "response" key. Malformed bodies keep polling; non-2xx answers abort.
func (u *Uploader) waitForJob(ctx context.Context, dataset, location string) (int, error) {
	url := strings.TrimRight(u.cfg.BaseURL, "/") + location
	deadline := time.Now().Add(u.cfg.MaxWait)

	for attempt := 1; attempt <= u.cfg.MaxPolls; attempt++ {
		if err := u.sleep(ctx, u.cfg.PollInterval); err != nil {
			return attempt - 1, err
		}
		u.metrics.IncJobPolls(dataset)

		done, err := u.poll(ctx, url)
		if err != nil {
			return attempt, err
		}
		if done {
			return attempt, nil
		}
		if time.Now().After(deadline) {
			return attempt, fmt.Errorf("%w: %s after %s", ErrJobTimeout, location, u.cfg.MaxWait)
		}
	}
	return u.cfg.MaxPolls, fmt.Errorf("%w: %s after %d polls", ErrJobTimeout, location, u.cfg.MaxPolls)
}

func (u *Uploader) poll(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build job poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.cfg.APIKey)

	resp, err := u.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("poll job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return false, &UploadError{Status: resp.StatusCode, Body: errorBody(resp)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read job status: %w", err)
	}

	var status map[string]json.RawMessage
	if err := json.Unmarshal(body, &status); err != nil {
		u.log.Debug(ctx, "job status not JSON yet", logging.Err(err))
		return false, nil
	}
	_, done := status["response"]
	return done, nil
}

// errorBody returns the head of a rejected response. A body that cannot be
// read is reported by the status line and the read error instead.
func errorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Sprintf("%s (body unreadable: %v)", resp.Status, err)
	}
	return string(body)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
