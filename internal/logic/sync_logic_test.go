package logic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoek1/web-1/internal/chain"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/ipfs"
	"github.com/zoek1/web-1/internal/model"
)

type fakeReader struct {
	mu        sync.Mutex
	snapshots map[int64]*chain.Snapshot
	failures  map[int64]error
	byURL     map[string]int64
	reads     int
}

func (r *fakeReader) GetBounty(_ context.Context, id int64, _ string) (*chain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if err, ok := r.failures[id]; ok {
		return nil, err
	}
	snap, ok := r.snapshots[id]
	if !ok {
		return nil, chain.ErrBountyNotFound
	}
	return snap, nil
}

func (r *fakeReader) FindBountyID(_ context.Context, _, githubURL string, _ int64) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byURL[githubURL]
	return id, ok, nil
}

type fakeMined map[string]bool

func (m fakeMined) HasTxMined(_ context.Context, _, txid string) bool { return m[txid] }

func newSyncLogic(f *fixture, reader *fakeReader) *SyncLogic {
	return NewSyncLogic(f.db, f.reconciler, reader, fakeMined{"0xmined": true}, config.SyncConfig{
		RetryCount: 1,
		BatchSize:  10,
		PoolSize:   2,
		MaxAttempt: 2,
	})
}

func TestSyncWeb3(t *testing.T) {
	f := newFixture(t)
	f.profile("funder")
	reader := &fakeReader{
		snapshots: map[int64]*chain.Snapshot{5: snapshot(5, 1e18)},
		byURL:     map[string]int64{testIssueURL: 5},
	}
	s := newSyncLogic(f, reader)

	res, err := s.SyncWeb3(f.ctx, testIssueURL, "", testNetwork)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Status: 400, Msg: "bad request"}, *res)

	res, err = s.SyncWeb3(f.ctx, testIssueURL, "0xpending", testNetwork)
	require.NoError(t, err)
	assert.Equal(t, "tx has not mined yet", res.Msg)

	res, err = s.SyncWeb3(f.ctx, "https://github.com/gitcoinco/web/issues/9", "0xmined", testNetwork)
	require.NoError(t, err)
	assert.Equal(t, "could not find bounty id", res.Msg)

	res, err = s.SyncWeb3(f.ctx, testIssueURL, "0xmined", testNetwork)
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.True(t, res.DidChange)
	assert.Equal(t, "https://gitcoin.co/issue/gitcoinco/web/42/5", res.URL)

	// 无变化时按 RetryCount 重读
	reader.reads = 0
	res, err = s.SyncWeb3(f.ctx, testIssueURL, "0xmined", testNetwork)
	require.NoError(t, err)
	assert.False(t, res.DidChange)
	assert.Equal(t, 2, reader.reads)
}

func TestSyncWeb3ReadFailures(t *testing.T) {
	f := newFixture(t)
	f.profile("funder")
	missingURL := "https://github.com/gitcoinco/web/issues/11"
	offlineURL := "https://github.com/gitcoinco/web/issues/12"
	brokenURL := "https://github.com/gitcoinco/web/issues/13"
	reader := &fakeReader{
		snapshots: map[int64]*chain.Snapshot{5: snapshot(5, 1e18)},
		failures: map[int64]error{
			12: fmt.Errorf("%w: QmHash: timeout", ipfs.ErrCantConnect),
			13: errors.New("connection refused"),
		},
		byURL: map[string]int64{testIssueURL: 5, missingURL: 11, offlineURL: 12, brokenURL: 13},
	}
	s := newSyncLogic(f, reader)

	res, err := s.SyncWeb3(f.ctx, missingURL, "0xmined", testNetwork)
	require.NoError(t, err)
	assert.Equal(t, 404, res.Status)
	assert.Equal(t, 1, reader.reads)

	res, err = s.SyncWeb3(f.ctx, offlineURL, "0xmined", testNetwork)
	require.NoError(t, err)
	assert.Equal(t, 503, res.Status)
	assert.False(t, res.DidChange)

	_, err = s.SyncWeb3(f.ctx, brokenURL, "0xmined", testNetwork)
	assert.EqualError(t, err, "connection refused")
}

func TestSyncWeb3NegativeRetryCountReadsOnce(t *testing.T) {
	f := newFixture(t)
	f.profile("funder")
	reader := &fakeReader{
		snapshots: map[int64]*chain.Snapshot{5: snapshot(5, 1e18)},
		byURL:     map[string]int64{testIssueURL: 5},
	}
	s := NewSyncLogic(f.db, f.reconciler, reader, fakeMined{"0xmined": true}, config.SyncConfig{RetryCount: -1})

	var res *SyncResult
	var err error
	require.NotPanics(t, func() {
		res, err = s.SyncWeb3(f.ctx, testIssueURL, "0xmined", testNetwork)
	})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.True(t, res.DidChange)
	assert.Equal(t, 1, reader.reads)
}

func TestProcessQueue(t *testing.T) {
	f := newFixture(t)
	reader := &fakeReader{
		snapshots: map[int64]*chain.Snapshot{5: snapshot(5, 1e18)},
		failures:  map[int64]error{7: errors.New("connection refused")},
		byURL:     map[string]int64{},
	}
	s := newSyncLogic(f, reader)

	for _, id := range []int64{5, 6, 7} {
		added, err := s.Enqueue(f.ctx, &model.BountySyncRequest{Network: testNetwork, StandardBountiesId: id})
		require.NoError(t, err)
		assert.True(t, added)
	}
	added, err := s.Enqueue(f.ctx, &model.BountySyncRequest{Network: testNetwork, StandardBountiesId: 5})
	require.NoError(t, err)
	assert.False(t, added)
	_, err = s.Enqueue(f.ctx, &model.BountySyncRequest{StandardBountiesId: 8})
	assert.Error(t, err)

	n, err := s.ProcessQueue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var found, missing, failing model.BountySyncRequest
	require.NoError(t, f.db.Where("standard_bounties_id = ?", 5).First(&found).Error)
	assert.True(t, found.Processed)
	assert.Empty(t, found.LastError)
	require.NoError(t, f.db.Where("standard_bounties_id = ?", 6).First(&missing).Error)
	assert.True(t, missing.Processed)
	assert.NotEmpty(t, missing.LastError)
	require.NoError(t, f.db.Where("standard_bounties_id = ?", 7).First(&failing).Error)
	assert.False(t, failing.Processed)
	assert.Equal(t, 1, failing.Attempts)
	assert.Equal(t, "connection refused", failing.LastError)

	assert.Equal(t, int64(1), f.count(&model.Bounty{}, "standard_bounties_id = ?", 5))

	// 第二次失败后达到上限，不再取出
	n, err = s.ProcessQueue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.ProcessQueue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
