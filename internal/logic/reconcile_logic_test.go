package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/event"
	"github.com/zoek1/web-1/internal/lifecycle"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
)

func TestReconcileCreatesFirstRevision(t *testing.T) {
	f := newFixture(t)
	funder := f.profile("funder")

	res, err := f.reconciler.Reconcile(f.ctx, snapshot(5, 1e18))
	require.NoError(t, err)
	require.True(t, res.DidChange)
	assert.Nil(t, res.Old)

	b := res.New
	assert.True(t, b.CurrentBounty)
	assert.Equal(t, int64(5), b.StandardBountiesId)
	assert.Equal(t, "Fix the build", b.Title)
	assert.Equal(t, "funder", b.BountyOwnerGithubUsername)
	require.NotNil(t, b.BountyOwnerProfileId)
	assert.Equal(t, funder.Id, *b.BountyOwnerProfileId)
	assert.Equal(t, model.StatusOpen, b.IdxStatus)
	assert.Equal(t, lifecycle.ExperienceLevelIndex("Beginner"), b.IdxExperienceLevel)

	assert.Equal(t, int64(1), f.count(&model.Activity{}, "activity_type = ?", model.ActivityNewBounty))
	assert.Equal(t, 1, f.events.count(event.TypeBountyCreated))
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	snap := snapshot(5, 1e18, submission(0, true, "alice"))
	f.profile("alice")

	first, err := f.reconciler.Reconcile(f.ctx, snap)
	require.NoError(t, err)
	require.True(t, first.DidChange)

	second, err := f.reconciler.Reconcile(f.ctx, snap)
	require.NoError(t, err)
	assert.False(t, second.DidChange)
	assert.Equal(t, first.New.Id, second.New.Id)

	assert.Equal(t, int64(1), f.count(&model.Bounty{}, "standard_bounties_id = ?", 5))
	assert.Equal(t, int64(1), f.count(&model.BountyFulfillment{}, ""))
	assert.Equal(t, int64(1), f.count(&model.Earning{}, ""))
}

func TestReconcileNewAmountRetiresPreviousRevision(t *testing.T) {
	f := newFixture(t)
	alice := f.profile("alice")

	first, err := f.reconciler.Reconcile(f.ctx, snapshot(5, 1e18))
	require.NoError(t, err)
	_, err = f.interests.Claim(f.ctx, first.New.Id, alice, "")
	require.NoError(t, err)

	second, err := f.reconciler.Reconcile(f.ctx, snapshot(5, 2e18))
	require.NoError(t, err)
	require.True(t, second.DidChange)
	assert.NotEqual(t, first.New.Id, second.New.Id)
	assert.Equal(t, 2e18, second.New.ValueInToken)

	assert.Equal(t, int64(2), f.count(&model.Bounty{}, "standard_bounties_id = ?", 5))
	assert.Equal(t, int64(1), f.count(&model.Bounty{}, "standard_bounties_id = ? AND current_bounty = ?", 5, true))

	old, err := repository.NewBountyRepository(f.db).Get(f.ctx, first.New.Id)
	require.NoError(t, err)
	assert.False(t, old.CurrentBounty)

	// 申请与本地状态随新修订保留
	assert.Equal(t, model.StateWorkStarted, second.New.BountyState)
	assert.Equal(t, int64(1), f.count(&model.BountyInterest{}, "bounty_id = ?", second.New.Id))
	assert.Equal(t, model.StatusStarted, f.bounties.Status(f.ctx, second.New))

	assert.Equal(t, int64(1), f.count(&model.Activity{}, "activity_type = ?", model.ActivityIncreasedBounty))

	history, err := f.bounties.History(f.ctx, second.New.Id)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestReconcileAcceptedFulfillmentRecordsEarning(t *testing.T) {
	f := newFixture(t)
	funder := f.profile("funder")
	alice := f.profile("alice")
	org := f.profile("gitcoinco")

	_, err := f.reconciler.Reconcile(f.ctx, snapshot(9, 1e18, submission(0, false, "alice")))
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.count(&model.Earning{}, ""))

	res, err := f.reconciler.Reconcile(f.ctx, snapshot(9, 1e18, submission(0, true, "alice")))
	require.NoError(t, err)
	require.True(t, res.DidChange)
	require.Len(t, res.New.Fulfillments, 1)
	accepted := res.New.Fulfillments[0]
	assert.True(t, accepted.Accepted)
	assert.NotNil(t, accepted.AcceptedOn)
	require.NotNil(t, accepted.ProfileId)
	assert.Equal(t, alice.Id, *accepted.ProfileId)

	var earning model.Earning
	require.NoError(t, f.db.First(&earning).Error)
	assert.Equal(t, string(SourceFulfillment), earning.SourceType)
	assert.Equal(t, accepted.Id, earning.SourceId)
	assert.Equal(t, funder.Id, *earning.FromProfileId)
	assert.Equal(t, alice.Id, *earning.ToProfileId)
	assert.Equal(t, org.Id, *earning.OrgProfileId)

	// 三方两两自动关注
	assert.Equal(t, int64(6), f.count(&model.TribeMember{}, "why = ?", TribeWhyAuto))
	assert.Equal(t, 1, f.events.count(event.TypeFulfillmentAccepted))
	assert.Equal(t, int64(1), f.count(&model.Activity{}, "activity_type = ?", model.ActivityWorkDone))
}

func TestReconcileSkipsSuppressedNetwork(t *testing.T) {
	f := newFixture(t)
	guarded := NewBountyReconciler(f.db, f.bounties, f.payouts, f.bus, config.Environment{NetworkGuard: true}, 0)

	snap := snapshot(1, 1e18)
	snap.Network = "mainnet"
	res, err := guarded.Reconcile(f.ctx, snap)
	require.NoError(t, err)
	assert.False(t, res.DidChange)
	assert.Equal(t, int64(0), f.count(&model.Bounty{}, ""))

	res, err = guarded.Reconcile(f.ctx, nil)
	require.NoError(t, err)
	assert.False(t, res.DidChange)
}
