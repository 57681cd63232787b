// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fetch retrieves person and family records from the remote record
// store over HTTP.
//
// # Description
//
// Client issues one GET per call against {BaseURL}/person/{id} or
// {BaseURL}/family/{id}. It is safe for unbounded concurrent use: a counting
// permit caps how many requests are outstanding at once, independently of
// how many goroutines call it, and an optional token bucket caps the request
// rate. Client does not de-duplicate or retry; see package flight.
//
// # Errors
//
// Every failure is classified as ErrNotFound, ErrMalformed or ErrTransport
// (see errors.go). Transport failures are logged at Warn, absences at Debug.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/kinship/services/kinship/model"
	"github.com/AleutianAI/kinship/services/kinship/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Record kinds, also used as path segments and metric labels.
const (
	KindPerson = "person"
	KindFamily = "family"
)

// maxPayloadBytes bounds how much of a response body is read.
const maxPayloadBytes = 1 << 20

var tracer = otel.Tracer("kinship.fetch")

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config controls the outbound behavior of a Client.
type Config struct {
	// BaseURL is the record store root, e.g. "http://127.0.0.1:8123".
	BaseURL string

	// MaxInFlight caps concurrent outstanding requests. Default 50.
	MaxInFlight int64

	// RequestsPerSecond caps the request rate. Zero disables the limiter.
	RequestsPerSecond float64

	// Burst is the limiter bucket size. Defaults to MaxInFlight when zero.
	Burst int

	// Timeout is the per-request timeout of the default HTTP client.
	Timeout time.Duration

	// MaxConnsPerHost caps pooled connections to the store.
	MaxConnsPerHost int

	// IdleConnTimeout closes pooled connections idle for this long.
	IdleConnTimeout time.Duration

	// EnableHTTP2 negotiates HTTP/2 on TLS connections.
	EnableHTTP2 bool
}

// DefaultConfig returns the settings the record store was tuned for.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://127.0.0.1:8123",
		MaxInFlight:     50,
		Timeout:         180 * time.Second,
		MaxConnsPerHost: 256,
		IdleConnTimeout: 5 * time.Minute,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from Config.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client fetches records from the remote store.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	baseURL string
	http    HTTPClient
	permits *semaphore.Weighted
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a Client.
//
// # Inputs
//
//   - cfg: Outbound settings. Zero MaxInFlight and Timeout fall back to
//     DefaultConfig values.
//   - opts: Optional overrides.
//
// # Outputs
//
//   - *Client: Ready to use.
//   - error: ErrNoBaseURL if cfg.BaseURL is empty, or a transport setup error.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNoBaseURL
	}
	defaults := DefaultConfig()
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaults.MaxInFlight
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		permits: semaphore.NewWeighted(cfg.MaxInFlight),
		logger:  slog.Default(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.MaxInFlight)
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		transport, err := NewTransport(cfg)
		if err != nil {
			return nil, err
		}
		c.http = &http.Client{Transport: transport, Timeout: cfg.Timeout}
	}
	return c, nil
}

// FetchPerson retrieves one person.
func (c *Client) FetchPerson(ctx context.Context, id uint64) (*model.Person, error) {
	body, err := c.get(ctx, KindPerson, id)
	if err != nil {
		return nil, err
	}
	p, err := model.DecodePerson(body)
	if err != nil {
		return nil, c.decodeFailure(KindPerson, id, err)
	}
	requestsTotal.WithLabelValues(KindPerson, outcomeOK).Inc()
	return p, nil
}

// FetchFamily retrieves one family.
func (c *Client) FetchFamily(ctx context.Context, id uint64) (*model.Family, error) {
	body, err := c.get(ctx, KindFamily, id)
	if err != nil {
		return nil, err
	}
	f, err := model.DecodeFamily(body)
	if err != nil {
		return nil, c.decodeFailure(KindFamily, id, err)
	}
	requestsTotal.WithLabelValues(KindFamily, outcomeOK).Inc()
	return f, nil
}

// BaseURL returns the normalized store root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get performs one GET and returns the 2xx body.
func (c *Client) get(ctx context.Context, kind string, id uint64) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fetch.Get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("record.kind", kind),
			attribute.String("record.id", strconv.FormatUint(id, 10)),
		),
	)
	defer span.End()

	if id == 0 {
		return nil, c.notFound(kind, id, "zero id")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			telemetry.RecordError(span, err)
			return nil, c.transportFailure(kind, id, fmt.Errorf("rate limiter: %w", err))
		}
	}

	waitStart := time.Now()
	if err := c.permits.Acquire(ctx, 1); err != nil {
		telemetry.RecordError(span, err)
		return nil, c.transportFailure(kind, id, fmt.Errorf("acquire permit: %w", err))
	}
	permitWait.Observe(time.Since(waitStart).Seconds())
	inFlight.Inc()
	defer func() {
		inFlight.Dec()
		c.permits.Release(1)
	}()

	url := c.baseURL + "/" + kind + "/" + strconv.FormatUint(id, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, c.transportFailure(kind, id, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	telemetry.InjectContext(ctx, req.Header)

	start := time.Now()
	resp, err := c.http.Do(req)
	requestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, c.transportFailure(kind, id, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))
		return nil, c.notFound(kind, id, "status 404")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		telemetry.RecordError(span, err)
		return nil, c.transportFailure(kind, id, err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, c.transportFailure(kind, id, fmt.Errorf("read body: %w", err))
	}
	telemetry.SetSpanOK(span)
	return body, nil
}

func (c *Client) notFound(kind string, id uint64, reason string) error {
	requestsTotal.WithLabelValues(kind, outcomeNotFound).Inc()
	c.logger.Debug("record absent",
		slog.String("kind", kind),
		slog.Uint64("id", id),
		slog.String("reason", reason),
	)
	return fmt.Errorf("%w: %s %d: %s", ErrNotFound, kind, id, reason)
}

func (c *Client) transportFailure(kind string, id uint64, err error) error {
	requestsTotal.WithLabelValues(kind, outcomeTransport).Inc()
	c.logger.Warn("record fetch failed",
		slog.String("kind", kind),
		slog.Uint64("id", id),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%w: %s %d: %w", ErrTransport, kind, id, err)
}

func (c *Client) decodeFailure(kind string, id uint64, err error) error {
	if errors.Is(err, model.ErrEmptyPayload) {
		return c.notFound(kind, id, "empty payload")
	}
	requestsTotal.WithLabelValues(kind, outcomeMalformed).Inc()
	c.logger.Debug("record malformed",
		slog.String("kind", kind),
		slog.Uint64("id", id),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%w: %s %d: %w", ErrMalformed, kind, id, err)
}
