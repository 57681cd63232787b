// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recordstore serves person and family records over HTTP.
//
// # Description
//
// Server answers GET /person/:id and GET /family/:id from an in-memory
// Dataset, with an optional artificial latency per request. It counts every
// request per id so a crawl can be checked for duplicate fetches through
// GET /stats, and POST /reset clears the counters between runs.
//
// # Thread Safety
//
// Server is safe for concurrent use.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/AleutianAI/kinship/pkg/validation"
	"github.com/AleutianAI/kinship/services/kinship/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	kindPerson = "person"
	kindFamily = "family"
)

var servedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kinship_recordstore_requests_total",
	Help: "Record requests served by kind and HTTP status",
}, []string{"kind", "status"})

// Stats reports request counts since start or the last reset.
type Stats struct {
	PersonRequests int `json:"person_requests"`
	FamilyRequests int `json:"family_requests"`

	// DistinctPeople and DistinctFamilies count ids requested at least once.
	DistinctPeople   int `json:"distinct_people"`
	DistinctFamilies int `json:"distinct_families"`

	// Duplicates counts requests beyond the first for any id.
	Duplicates int `json:"duplicates"`

	// MaxPerID is the highest request count seen for one id.
	MaxPerID int `json:"max_per_id"`

	// DatasetPeople and DatasetFamilies are the dataset sizes.
	DatasetPeople   int    `json:"dataset_people"`
	DatasetFamilies int    `json:"dataset_families"`
	Root            uint64 `json:"root"`
}

// Option configures a Server.
type Option func(*Server)

// WithLatency delays every record response by d.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithServiceName sets the otelgin service name.
func WithServiceName(name string) Option {
	return func(s *Server) { s.serviceName = name }
}

// Server is the HTTP record store.
type Server struct {
	ds          *Dataset
	latency     time.Duration
	logger      *slog.Logger
	serviceName string
	router      *gin.Engine

	mu     sync.Mutex
	counts map[string]map[uint64]int
}

// NewServer creates a Server for ds.
func NewServer(ds *Dataset, opts ...Option) (*Server, error) {
	if ds == nil {
		return nil, ErrNilDataset
	}
	s := &Server{
		ds:          ds,
		logger:      slog.Default(),
		serviceName: "kinship-recordstore",
		counts: map[string]map[uint64]int{
			kindPerson: {},
			kindFamily: {},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.initRouter()
	return s, nil
}

func (s *Server) initRouter() {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(s.serviceName))

	r.GET("/person/:id", s.handlePerson)
	r.GET("/family/:id", s.handleFamily)
	r.GET("/stats", s.handleStats)
	r.POST("/reset", s.handleReset)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
	s.router = r
}

// Handler returns the HTTP handler of the store.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("record store listening",
			slog.String("addr", addr),
			slog.Uint64("root", s.ds.Root),
			slog.Int("families", s.ds.FamilyCount()),
			slog.Int("people", s.ds.PersonCount()),
			slog.Duration("latency", s.latency),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("record store stopped")
	return nil
}

func (s *Server) handlePerson(c *gin.Context) {
	s.serve(c, kindPerson, func(id uint64) (any, bool) {
		p, ok := s.ds.Person(id)
		return p, ok
	})
}

func (s *Server) handleFamily(c *gin.Context) {
	s.serve(c, kindFamily, func(id uint64) (any, bool) {
		f, ok := s.ds.Family(id)
		return f, ok
	})
}

func (s *Server) serve(c *gin.Context, kind string, lookup func(uint64) (any, bool)) {
	id, err := validation.ParseNonZeroID(c.Param("id"))
	if err != nil {
		servedTotal.WithLabelValues(kind, strconv.Itoa(http.StatusBadRequest)).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.count(kind, id)

	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-c.Request.Context().Done():
			return
		}
	}

	rec, ok := lookup(id)
	if !ok {
		servedTotal.WithLabelValues(kind, strconv.Itoa(http.StatusNotFound)).Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": kind + " not found"})
		return
	}
	servedTotal.WithLabelValues(kind, strconv.Itoa(http.StatusOK)).Inc()
	c.JSON(http.StatusOK, rec)
}

func (s *Server) count(kind string, id uint64) {
	s.mu.Lock()
	s.counts[kind][id]++
	s.mu.Unlock()
}

// RequestCount returns how many times kind ("person" or "family") id was
// requested since the last reset.
func (s *Server) RequestCount(kind string, id uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind][id]
}

// Stats returns the current request statistics.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		DistinctPeople:   len(s.counts[kindPerson]),
		DistinctFamilies: len(s.counts[kindFamily]),
		DatasetPeople:    s.ds.PersonCount(),
		DatasetFamilies:  s.ds.FamilyCount(),
		Root:             s.ds.Root,
	}
	for kind, byID := range s.counts {
		for _, n := range byID {
			if kind == kindPerson {
				st.PersonRequests += n
			} else {
				st.FamilyRequests += n
			}
			st.Duplicates += n - 1
			st.MaxPerID = max(st.MaxPerID, n)
		}
	}
	return st
}

// Reset clears the request counters.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[kindPerson] = map[uint64]int{}
	s.counts[kindFamily] = map[uint64]int{}
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Stats())
}

func (s *Server) handleReset(c *gin.Context) {
	s.Reset()
	s.logger.Info("request counters reset")
	c.Status(http.StatusNoContent)
}
