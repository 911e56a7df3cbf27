package logic

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/event"
	"github.com/zoek1/web-1/internal/model"
)

func TestRecordIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.profile("funder")
	alice := f.profile("alice", func(p *model.Profile) { p.DontAutofollowEarnings = true })
	b := f.bounty()
	now := testNow
	fulfillment := &model.BountyFulfillment{BountyId: b.Id, ProfileId: &alice.Id, Accepted: true, AcceptedOn: &now}
	require.NoError(t, f.db.Create(fulfillment).Error)

	ref := SourceRef{Kind: SourceFulfillment, ID: fulfillment.Id}
	first, created, err := f.payouts.Record(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, fmt.Sprintf("https://gitcoin.co/issue/gitcoinco/web/42/%d", b.StandardBountiesId), first.URL)

	second, created, err := f.payouts.Record(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Id, second.Id)
	assert.Equal(t, int64(1), f.count(&model.Earning{}, ""))

	// alice 选择不自动关注，只剩 funder -> alice
	assert.Equal(t, int64(1), f.count(&model.TribeMember{}, ""))
	assert.Equal(t, int64(0), f.count(&model.TribeMember{}, "profile_id = ?", alice.Id))
}

func TestRecordSkipsUnacceptedFulfillments(t *testing.T) {
	f := newFixture(t)
	b := f.bounty()
	fulfillment := &model.BountyFulfillment{BountyId: b.Id}
	require.NoError(t, f.db.Create(fulfillment).Error)

	earning, created, err := f.payouts.Record(f.ctx, SourceRef{Kind: SourceFulfillment, ID: fulfillment.Id})
	require.NoError(t, err)
	assert.Nil(t, earning)
	assert.False(t, created)

	_, _, err = f.payouts.Record(f.ctx, SourceRef{Kind: SourceFulfillment, ID: 9999})
	assert.ErrorIs(t, err, ErrFulfillmentNotFound)
}

func TestRecordTip(t *testing.T) {
	f := newFixture(t)
	alice := f.profile("alice")
	bob := f.profile("bob")
	require.NoError(t, f.conv.AddRate(f.ctx, "ETH", "USDT", 1, 250, testNow.Add(-time.Hour), "test"))

	earning, err := f.payouts.RecordTip(f.ctx, &model.Tip{
		Username:     "al ice",
		FromUsername: "bob",
		TokenName:    "ETH",
		Amount:       2,
		Network:      testNetwork,
		Txid:         "0xabc",
		GithubURL:    testIssueURL,
	})
	require.NoError(t, err)
	require.NotNil(t, earning)
	assert.Equal(t, bob.Id, *earning.FromProfileId)
	assert.Equal(t, alice.Id, *earning.ToProfileId)
	assert.Equal(t, "https://gitcoin.co/tips", earning.URL)
	require.NotNil(t, earning.ValueUsd)
	assert.Equal(t, 500.0, *earning.ValueUsd)

	selfTip, err := f.payouts.RecordTip(f.ctx, &model.Tip{Username: "bob", FromUsername: "bob", Txid: "0xdef", TokenName: "ETH"})
	require.NoError(t, err)
	assert.Nil(t, selfTip)
}

type fakeTxStatus struct {
	status string
	err    error
}

func (f *fakeTxStatus) TxStatus(context.Context, string, string, time.Time, time.Time) (string, error) {
	return f.status, f.err
}

func TestPayoutSync(t *testing.T) {
	f := newFixture(t)
	f.profile("funder")
	alice := f.profile("alice")
	b := f.bounty()
	txs := &fakeTxStatus{status: model.TxStatusPending}
	payouts := NewPayoutSyncLogic(f.bounties, f.payouts, txs, f.bus, config.PayoutSyncConfig{QRExpiry: 20 * time.Minute})

	web3 := &model.BountyFulfillment{
		BountyId: b.Id, ProfileId: &alice.Id, PayoutType: model.PayoutTypeWeb3Modal,
		PayoutStatus: model.PayoutStatusPending, PayoutTxId: "0x01",
	}
	require.NoError(t, f.db.Create(web3).Error)
	qr := &model.BountyFulfillment{BountyId: b.Id, PayoutType: model.PayoutTypeQR, PayoutStatus: model.PayoutStatusPending}
	require.NoError(t, f.db.Create(qr).Error)
	require.NoError(t, f.db.Model(qr).UpdateColumn("updated_at", testNow.Add(-time.Hour)).Error)

	changed, err := payouts.SyncPending(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed, "only the stale qr payout expires while the tx is pending")

	txs.status = model.TxStatusSuccess
	changed, err = payouts.SyncPending(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	var stored model.BountyFulfillment
	require.NoError(t, f.db.First(&stored, web3.Id).Error)
	assert.Equal(t, model.PayoutStatusDone, stored.PayoutStatus)
	assert.True(t, stored.Accepted)
	assert.NotNil(t, stored.AcceptedOn)
	var expired model.BountyFulfillment
	require.NoError(t, f.db.First(&expired, qr.Id).Error)
	assert.Equal(t, model.PayoutStatusExpired, expired.PayoutStatus)

	assert.Equal(t, int64(1), f.count(&model.Earning{}, ""))
	assert.Equal(t, int64(1), f.count(&model.Activity{}, "activity_type = ?", model.ActivityPaymentReceived))
	assert.Equal(t, 1, f.events.count(event.TypeFulfillmentAccepted))
}
