// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fetch

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// NewTransport builds the pooled transport used by the default HTTP client.
//
// The pool is sized so that MaxInFlight requests never queue on connection
// setup. When EnableHTTP2 is set, TLS connections negotiate h2 and share a
// single multiplexed connection per host.
func NewTransport(cfg Config) (*http.Transport, error) {
	maxConns := cfg.MaxConnsPerHost
	if maxConns <= 0 {
		maxConns = DefaultConfig().MaxConnsPerHost
	}
	idle := cfg.IdleConnTimeout
	if idle <= 0 {
		idle = DefaultConfig().IdleConnTimeout
	}

	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          maxConns,
		MaxIdleConnsPerHost:   maxConns,
		MaxConnsPerHost:       maxConns,
		IdleConnTimeout:       idle,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(t); err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
	}
	return t, nil
}
