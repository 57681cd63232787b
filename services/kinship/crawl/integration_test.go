// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package crawl

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/kinship/services/kinship/fetch"
	"github.com/AleutianAI/kinship/services/kinship/frontier"
	"github.com/AleutianAI/kinship/services/kinship/recordstore"
	"github.com/AleutianAI/kinship/services/kinship/tree"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCrawl_AgainstRecordStore runs both orders over HTTP against a generated
// pedigree and checks the store saw each record requested exactly once.
func TestCrawl_AgainstRecordStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	const generations = 6
	ds, err := recordstore.Generate(generations, 2025)
	require.NoError(t, err)
	srv, err := recordstore.NewServer(ds, recordstore.WithLatency(2*time.Millisecond))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	cfg := fetch.DefaultConfig()
	cfg.BaseURL = ts.URL
	cfg.MaxInFlight = 16
	cfg.Timeout = 10 * time.Second
	client, err := fetch.NewClient(cfg)
	require.NoError(t, err)

	e := NewEngine(client, WithWorkers(24))
	var trees []*tree.Tree
	for _, order := range []frontier.Order{frontier.LIFO, frontier.FIFO} {
		srv.Reset()
		res, err := e.Crawl(context.Background(), ds.Root, order)
		require.NoError(t, err)

		assert.False(t, res.Truncated, order.String())
		assert.Equal(t, ds.FamilyCount(), res.Tree.FamilyCount(), order.String())
		assert.Equal(t, ds.PersonCount(), res.Tree.PersonCount(), order.String())

		st := srv.Stats()
		assert.Equal(t, 0, st.Duplicates, "%s: duplicate requests reached the store", order)
		assert.Equal(t, 1, st.MaxPerID, order.String())
		assert.Equal(t, ds.FamilyCount(), st.FamilyRequests, order.String())
		assert.Equal(t, ds.PersonCount(), st.PersonRequests, order.String())
		trees = append(trees, res.Tree)
	}
	assert.True(t, tree.SameEntities(trees[0], trees[1]))
}

func TestCrawl_StoreDownIsTruncated(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	client, err := fetch.NewClient(fetch.Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	tr, ok := NewEngine(client, WithWorkers(2)).RunBreadthFirst(context.Background(), 123)
	assert.True(t, ok, "only a zero root reports !ok")
	assert.Equal(t, 0, tr.FamilyCount())

	res, err := NewEngine(client, WithWorkers(2)).Crawl(context.Background(), 123, frontier.FIFO)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, int64(1), res.Stats.TransportFailures)
}
