package chain_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoek1/web-1/internal/chain"
	"github.com/zoek1/web-1/internal/chain/chaintest"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/ipfs"
	"github.com/zoek1/web-1/internal/model"
)

const issueURL = "https://github.com/gitcoinco/web/issues/42"

func setup(t *testing.T) (*chain.Manager, *chaintest.Backend, *chaintest.IPFS) {
	t.Helper()
	backend := chaintest.NewBackend()
	store := chaintest.NewIPFS()
	m := &chain.Manager{}
	m.Register("rinkeby", backend, common.HexToAddress("0xf209d2b723b6417cbf04c07e733bee776105a073"))
	m.Register("mainnet", backend, common.HexToAddress("0x2af47a65da8cd66729b4209c22017d6a5c2d2400"))
	return m, backend, store
}

func TestGetBountyAssemblesSnapshot(t *testing.T) {
	m, backend, store := setup(t)
	store.Put("QmBounty", `{"payload":{"title":"Fix","webReferenceURL":"`+issueURL+`","expire_date":1700000000},"review":{"rating":5}}`)
	store.Put("QmF0", `{"payload":{"fulfiller":{"githubUsername":"alice"}}}`)
	store.Put("QmF1", `not json`)
	id := backend.AddBounty(&chaintest.Bounty{
		Issuer:   common.HexToAddress("0x1"),
		Deadline: 1800000000,
		Amount:   big.NewInt(5e17),
		Stage:    chain.StageActive,
		Data:     "QmBounty",
		Fulfillments: []chaintest.Fulfillment{
			{Accepted: true, Fulfiller: common.HexToAddress("0x2"), Data: "QmF0"},
			{Data: "QmF1"},
		},
	})

	r := chain.NewReader(m, store, config.Environment{NetworkGuard: true})
	snap, err := r.GetBounty(context.Background(), id, "rinkeby")
	require.NoError(t, err)

	assert.Equal(t, int64(1800000000), snap.ContractDeadline)
	assert.Equal(t, int64(1700000000), snap.IPFSDeadline)
	assert.Equal(t, int64(1700000000), snap.Deadline)
	assert.Equal(t, int64(chain.StageActive), snap.BountyStage)
	assert.Equal(t, 0, snap.FulfillmentAmount.Cmp(big.NewInt(5e17)))
	assert.Equal(t, "Fix", snap.Payload()["title"])
	assert.EqualValues(t, 5, snap.Review["rating"])
	require.Len(t, snap.Fulfillments, 1, "undecodable fulfillment payloads are skipped")
	assert.True(t, snap.Fulfillments[0].Accepted)

	raw := snap.ToMap()
	assert.EqualValues(t, 1700000000, raw["ipfs_deadline"])
}

func TestGetBountyWithoutIPFSDeadlineUsesContract(t *testing.T) {
	m, backend, store := setup(t)
	store.Put("QmB", `{"payload":{}}`)
	id := backend.AddBounty(&chaintest.Bounty{Deadline: 1234, Data: "QmB"})

	snap, err := chain.NewReader(m, store, config.Environment{}).GetBounty(context.Background(), id, "rinkeby")
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.IPFSDeadline)
	assert.Equal(t, int64(1234), snap.Deadline)
}

func TestGetBountyErrors(t *testing.T) {
	m, backend, store := setup(t)
	r := chain.NewReader(m, store, config.Environment{NetworkGuard: true})
	ctx := context.Background()

	_, err := r.GetBounty(ctx, 99, "rinkeby")
	assert.ErrorIs(t, err, chain.ErrBountyNotFound)

	_, err = r.GetBounty(ctx, 0, "ropsten")
	assert.ErrorIs(t, err, chain.ErrUnsupportedNetwork)

	id := backend.AddBounty(&chaintest.Bounty{Data: "QmMissing"})
	store.Down = true
	_, err = r.GetBounty(ctx, id, "rinkeby")
	assert.ErrorIs(t, err, ipfs.ErrCantConnect)

	snap, err := r.GetBounty(ctx, id, "mainnet")
	assert.NoError(t, err)
	assert.Nil(t, snap, "mainnet reads are suppressed outside production")
}

func TestFindBountyID(t *testing.T) {
	m, backend, store := setup(t)
	store.Put("QmA", `{"payload":{"webReferenceURL":"https://github.com/a/b/issues/1"}}`)
	store.Put("QmB", `{"payload":{"webReferenceURL":"`+issueURL+`"}}`)
	backend.AddBounty(&chaintest.Bounty{Data: "QmA"})
	want := backend.AddBounty(&chaintest.Bounty{Data: "QmB"})
	backend.AddBounty(&chaintest.Bounty{Data: "QmA"})

	r := chain.NewReader(m, store, config.Environment{})
	id, ok, err := r.FindBountyID(context.Background(), "rinkeby", issueURL, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, id)

	_, ok, err = r.FindBountyID(context.Background(), "rinkeby", "https://github.com/x/y/issues/9", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTxChecks(t *testing.T) {
	m, backend, _ := setup(t)
	mined := common.HexToHash("0xaa")
	pending := common.HexToHash("0xbb")
	failed := common.HexToHash("0xcc")
	backend.Pending[mined] = false
	backend.Pending[pending] = true
	backend.Receipts[mined] = &types.Receipt{Status: types.ReceiptStatusSuccessful}
	backend.Receipts[failed] = &types.Receipt{Status: types.ReceiptStatusFailed}

	c := chain.NewTxChecker(m)
	ctx := context.Background()
	assert.True(t, c.HasTxMined(ctx, "rinkeby", mined.Hex()))
	assert.False(t, c.HasTxMined(ctx, "rinkeby", pending.Hex()))
	assert.False(t, c.HasTxMined(ctx, "rinkeby", "0xdd"))
	assert.False(t, c.HasTxMined(ctx, "kovan", mined.Hex()))

	now := time.Now()
	status := func(txid string, created time.Time) string {
		s, _ := c.TxStatus(ctx, "rinkeby", txid, created, now)
		return s
	}
	assert.Equal(t, model.TxStatusSuccess, status(chain.OverrideTxID, now))
	assert.Equal(t, model.TxStatusSuccess, status(mined.Hex(), now))
	assert.Equal(t, model.TxStatusError, status(failed.Hex(), now))
	assert.Equal(t, model.TxStatusPending, status("0xdd", now.Add(-time.Hour)))
	assert.Equal(t, model.TxStatusDropped, status("0xdd", now.Add(-5*24*time.Hour)))
}

func TestParseRegistryEvent(t *testing.T) {
	contractABI := chain.StandardBountiesABI()
	ev := contractABI.Events["FulfillmentAccepted"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(17))
	require.NoError(t, err)

	parsed, err := chain.ParseRegistryEvent(types.Log{
		Topics:      []common.Hash{ev.ID, common.HexToHash("0x2"), common.HexToHash("0x0")},
		Data:        data,
		BlockNumber: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "FulfillmentAccepted", parsed.Name)
	assert.Equal(t, int64(17), parsed.BountyID)

	_, err = chain.ParseRegistryEvent(types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}})
	assert.Error(t, err)
}
