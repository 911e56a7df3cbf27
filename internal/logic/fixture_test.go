package logic

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zoek1/web-1/internal/chain"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/event"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
	"gorm.io/gorm"
)

const (
	testBaseURL  = "https://gitcoin.co/"
	testIssueURL = "https://github.com/gitcoinco/web/issues/42"
	testNetwork  = "rinkeby"
)

var testNow = time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)

// recorder 记录发布过的事件
type recorder struct {
	events []event.Event
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) EventTypes() []string {
	return []string{
		event.TypeBountyCreated, event.TypeBountyRevised, event.TypeBountyCancelled, event.TypeBountyClosed,
		event.TypeInterestClaimed, event.TypeInterestApproved, event.TypeInterestRemoved, event.TypeFulfillmentAccepted,
	}
}

func (r *recorder) Handle(_ context.Context, e event.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count(eventType string) int {
	n := 0
	for _, e := range r.events {
		if e.Type() == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	t          *testing.T
	ctx        context.Context
	db         *gorm.DB
	events     *recorder
	bus        *event.Bus
	conv       *ConversionLogic
	bounties   *BountyLogic
	payouts    *PayoutLogic
	interests  *InterestLogic
	moderation *ModerationLogic
	reconciler *BountyReconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.Init(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "bounties.db")})
	require.NoError(t, err)

	events := &recorder{}
	bus := event.NewBus(events)
	conv := NewConversionLogic(db)
	valuer := NewValuer(conv)
	bounties := NewBountyLogic(db, valuer, bus, testBaseURL)
	bounties.now = func() time.Time { return testNow }
	payouts := NewPayoutLogic(db, valuer, testBaseURL)

	return &fixture{
		t:          t,
		ctx:        context.Background(),
		db:         db,
		events:     events,
		bus:        bus,
		conv:       conv,
		bounties:   bounties,
		payouts:    payouts,
		interests:  NewInterestLogic(db, bounties, bus),
		moderation: NewModerationLogic(bounties, config.RemarketConfig{Limit: 2, MinutesBetween: 60}),
		reconciler: NewBountyReconciler(db, bounties, payouts, bus, config.Environment{}, time.Minute),
	}
}

func (f *fixture) profile(handle string, mutators ...func(*model.Profile)) *model.Profile {
	f.t.Helper()
	p, err := repository.NewProfileRepository(f.db).Ensure(f.ctx, handle)
	require.NoError(f.t, err)
	if len(mutators) > 0 {
		for _, m := range mutators {
			m(p)
		}
		require.NoError(f.t, f.db.Save(p).Error)
	}
	return p
}

func staff(p *model.Profile) { p.IsStaff = true }

// bounty 创建一个链下悬赏
func (f *fixture) bounty(mutators ...func(*model.Bounty)) *model.Bounty {
	f.t.Helper()
	b := &model.Bounty{
		Web3Type:                  model.Web3TypeWeb3Modal,
		Network:                   testNetwork,
		CurrentBounty:             true,
		Title:                     "Fix the build",
		GithubURL:                 testIssueURL,
		TokenName:                 "ETH",
		ValueInToken:              1e18,
		BountyOwnerGithubUsername: "funder",
		ProjectType:               model.ProjectTypeTraditional,
		PermissionType:            model.PermissionTypePermissionless,
		BountyState:               model.StateOpen,
		IsOpen:                    true,
		Web3Created:               testNow.Add(-time.Hour),
		ExpiresDate:               testNow.Add(30 * 24 * time.Hour),
	}
	for _, m := range mutators {
		m(b)
	}
	require.NoError(f.t, f.bounties.Save(f.ctx, b))
	return b
}

func (f *fixture) reload(id int64) *model.Bounty {
	f.t.Helper()
	b, err := f.bounties.Load(f.ctx, id)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) count(m interface{}, query string, args ...interface{}) int64 {
	f.t.Helper()
	var n int64
	q := f.db.Model(m)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(f.t, q.Count(&n).Error)
	return n
}

// snapshot 构造链上快照，amount 以 wei 计
func snapshot(id int64, amount int64, fulfillments ...chain.SnapshotFulfillment) *chain.Snapshot {
	return &chain.Snapshot{
		ID:                id,
		Network:           testNetwork,
		Issuer:            "0x00000000000000000000000000000000000000aa",
		Token:             "0x0000000000000000000000000000000000000000",
		FulfillmentAmount: big.NewInt(amount),
		Balance:           big.NewInt(amount),
		BountyStage:       chain.StageActive,
		Deadline:          testNow.Add(30 * 24 * time.Hour).Unix(),
		ContractDeadline:  testNow.Add(30 * 24 * time.Hour).Unix(),
		Fulfillments:      fulfillments,
		Data: map[string]interface{}{
			"payload": map[string]interface{}{
				"title":           "Fix the build",
				"description":     "It is red",
				"webReferenceURL": testIssueURL,
				"tokenName":       "ETH",
				"issuer":          map[string]interface{}{"githubUsername": "funder", "name": "Fun Der"},
				"metadata":        map[string]interface{}{"experienceLevel": "Beginner", "projectLength": "Hours"},
				"created":         float64(testNow.Add(-time.Hour).Unix()),
			},
		},
	}
}

func submission(id int64, accepted bool, handle string) chain.SnapshotFulfillment {
	return chain.SnapshotFulfillment{
		ID:        id,
		Accepted:  accepted,
		Fulfiller: "0x00000000000000000000000000000000000000bb",
		Data: map[string]interface{}{
			"payload": map[string]interface{}{
				"fulfiller": map[string]interface{}{"githubUsername": handle, "email": handle + "@example.com"},
			},
		},
	}
}
