package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/event"
	"github.com/zoek1/web-1/internal/model"
)

func assertCode(t *testing.T, err error, code int) {
	t.Helper()
	var be *BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, code, be.Code, be.Message)
}

func newV1Logic(f *fixture, txs *fakeTxStatus) *V1Logic {
	sync := NewPayoutSyncLogic(f.bounties, f.payouts, txs, f.bus, config.PayoutSyncConfig{})
	return NewV1Logic(f.db, f.bounties, sync, f.bus)
}

func TestV1CreateAndCancel(t *testing.T) {
	f := newFixture(t)
	v1 := newV1Logic(f, &fakeTxStatus{})
	funder := f.profile("funder")
	req := &CreateBountyRequest{
		GithubURL:    testIssueURL + "?utm=1",
		Title:        "Fix the build",
		TokenName:    "ETH",
		ValueInToken: 1e18,
		Network:      testNetwork,
	}

	_, err := v1.Create(f.ctx, nil, req)
	assertCode(t, err, CodeUnauthorized)

	res, err := v1.Create(f.ctx, funder, req)
	require.NoError(t, err)
	assert.Equal(t, "bounty successfully created", res.Message)
	assert.Equal(t, 1, f.events.count(event.TypeBountyCreated))

	var b model.Bounty
	require.NoError(t, f.db.Where("github_url = ?", testIssueURL).First(&b).Error)
	assert.Equal(t, model.Web3TypeWeb3Modal, b.Web3Type)
	assert.Equal(t, "funder", b.BountyOwnerGithubUsername)
	assert.Equal(t, DefaultV1Expiry, b.ExpiresDate.Unix())

	_, err = v1.Create(f.ctx, funder, req)
	assertCode(t, err, CodeDuplicate)

	_, err = v1.Cancel(f.ctx, f.profile("mallory"), b.Id, "spam")
	assertCode(t, err, CodeUnauthorized)
	_, err = v1.Cancel(f.ctx, funder, b.Id, "")
	assertCode(t, err, CodeBadRequest)
	_, err = v1.Cancel(f.ctx, funder, 9999, "gone")
	assertCode(t, err, CodeNotFound)

	res, err = v1.Cancel(f.ctx, funder, b.Id, "no longer needed")
	require.NoError(t, err)
	assert.Equal(t, CodeSuccess, res.Status)
	stored := f.reload(b.Id)
	assert.Equal(t, model.StateCancelled, stored.BountyState)
	assert.Equal(t, model.StatusCancelled, f.bounties.Status(f.ctx, stored))
	assert.Equal(t, 1, f.events.count(event.TypeBountyCancelled))

	_, err = v1.Cancel(f.ctx, funder, b.Id, "again")
	assertCode(t, err, CodeIllegalState)
}

func TestV1FulfillPayoutAndClose(t *testing.T) {
	f := newFixture(t)
	txs := &fakeTxStatus{status: model.TxStatusSuccess}
	v1 := newV1Logic(f, txs)
	funder := f.profile("funder")
	alice := f.profile("alice")
	b := f.bounty()

	submit := &FulfillBountyRequest{
		IssueURL:         testIssueURL,
		FulfillerAddress: "0x00000000000000000000000000000000000000bb",
		Email:            "alice@example.com",
		HoursWorked:      "three",
		GithubPRLink:     "https://github.com/gitcoinco/web/pull/43",
	}
	_, err := v1.Fulfill(f.ctx, alice, submit)
	assertCode(t, err, CodeBadRequest)

	submit.HoursWorked = "3"
	res, err := v1.Fulfill(f.ctx, alice, submit)
	require.NoError(t, err)
	assert.Equal(t, "bounty successfully fulfilled", res.Message)
	stored := f.reload(b.Id)
	assert.Equal(t, model.StateWorkSubmitted, stored.BountyState)
	assert.Equal(t, 1, stored.NumFulfillments)

	_, err = v1.Fulfill(f.ctx, alice, submit)
	assertCode(t, err, CodeBadRequest)

	_, err = v1.Close(f.ctx, funder, b.Id)
	assertCode(t, err, CodeBadRequest)

	var fulfillment model.BountyFulfillment
	require.NoError(t, f.db.Where("bounty_id = ?", b.Id).First(&fulfillment).Error)

	_, err = v1.Payout(f.ctx, alice, &PayoutRequest{FulfillmentID: fulfillment.Id, Amount: "1", TokenName: "ETH"})
	assertCode(t, err, CodeUnauthorized)

	res, err = v1.Payout(f.ctx, funder, &PayoutRequest{
		FulfillmentID:      fulfillment.Id,
		Amount:             "1",
		TokenName:          "ETH",
		BountyOwnerAddress: "0x00000000000000000000000000000000000000aa",
		PayoutTxId:         "0xpaid",
	})
	require.NoError(t, err)
	assert.Equal(t, "bounty payment recorded. verification pending", res.Message)
	assert.Equal(t, fulfillment.Id, res.FulfillmentID)
	assert.Equal(t, 1, f.events.count(event.TypeFulfillmentAccepted))

	res, err = v1.Close(f.ctx, funder, b.Id)
	require.NoError(t, err)
	assert.Equal(t, "bounty successfully closed", res.Message)
	closed := f.reload(b.Id)
	assert.Equal(t, model.StateDone, closed.BountyState)
	assert.Equal(t, model.StatusDone, f.bounties.Status(f.ctx, closed))

	_, err = v1.Close(f.ctx, funder, b.Id)
	assertCode(t, err, CodeIllegalState)
}

func TestV1HiddenBountyIsGone(t *testing.T) {
	f := newFixture(t)
	v1 := newV1Logic(f, &fakeTxStatus{})
	funder := f.profile("funder")
	b := f.bounty(func(b *model.Bounty) { b.AdminOverrideAndHide = true })

	_, err := v1.Cancel(f.ctx, funder, b.Id, "hidden")
	assertCode(t, err, CodeGone)
}
