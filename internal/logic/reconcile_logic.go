package logic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/zoek1/web-1/internal/chain"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/event"
	"github.com/zoek1/web-1/internal/lifecycle"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
	"gorm.io/gorm"
)

// ReconcileResult 一次同步的结果
type ReconcileResult struct {
	DidChange bool
	Old       *model.Bounty
	New       *model.Bounty
}

// BountyReconciler 将链上快照落为新的当前修订
type BountyReconciler struct {
	db        *gorm.DB
	bounties  *BountyLogic
	repo      *repository.BountyRepository
	interests *repository.InterestRepository
	profiles  *repository.ProfileRepository
	payouts   *PayoutLogic
	sem       *repository.Semaphore
	bus       *event.Bus
	env       config.Environment
	lockTTL   time.Duration
}

// NewBountyReconciler 创建同步器
func NewBountyReconciler(db *gorm.DB, bounties *BountyLogic, payouts *PayoutLogic, bus *event.Bus, env config.Environment, lockTTL time.Duration) *BountyReconciler {
	return &BountyReconciler{
		db:        db,
		bounties:  bounties,
		repo:      repository.NewBountyRepository(db),
		interests: repository.NewInterestRepository(db),
		profiles:  repository.NewProfileRepository(db),
		payouts:   payouts,
		sem:       repository.NewSemaphore(db),
		bus:       bus,
		env:       env,
		lockTTL:   lockTTL,
	}
}

func weiToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func intPtr(v int64) *int {
	if v == 0 {
		return nil
	}
	n := int(v)
	return &n
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// candidate 由快照构造候选修订，只包含链上与 IPFS 派生的字段
func (r *BountyReconciler) candidate(snap *chain.Snapshot) *model.Bounty {
	payload := snap.Payload()
	issuer := chain.SubMap(payload, "issuer")
	meta := chain.SubMap(payload, "metadata")
	schemes := chain.SubMap(payload, "schemes")
	hiring := chain.SubMap(payload, "hiring")

	accepted := false
	for _, f := range snap.Fulfillments {
		if f.Accepted {
			accepted = true
			break
		}
	}

	b := &model.Bounty{
		Web3Type:                  model.Web3TypeBountiesNetwork,
		Network:                   snap.Network,
		StandardBountiesId:        snap.ID,
		CurrentBounty:             true,
		BountyState:               model.StateOpen,
		Title:                     chain.String(payload, "title"),
		IssueDescription:          chain.String(payload, "description"),
		GithubURL:                 lifecycle.NormalizeGithubURL(chain.String(payload, "webReferenceURL")),
		TokenName:                 chain.String(payload, "tokenName"),
		TokenAddress:              strings.ToLower(snap.Token),
		ValueInToken:              weiToFloat(snap.FulfillmentAmount),
		Balance:                   weiToFloat(snap.Balance),
		BountyOwnerAddress:        strings.ToLower(snap.Issuer),
		BountyOwnerName:           chain.String(issuer, "name"),
		BountyOwnerEmail:          chain.String(issuer, "email"),
		BountyOwnerGithubUsername: strings.TrimPrefix(chain.String(issuer, "githubUsername"), "@"),
		ExperienceLevel:           chain.String(meta, "experienceLevel"),
		ProjectLength:             chain.String(meta, "projectLength"),
		BountyType:                chain.String(meta, "bountyType"),
		EstimatedHours:            intPtr(chain.Int(meta, "estimatedHours")),
		ProjectType:               chain.String(schemes, "project_type"),
		PermissionType:            chain.String(schemes, "permission_type"),
		BountyCategories:          stringList(payload["categories"]),
		AttachedJobDescription:    chain.String(hiring, "jobDescription"),
		IsOpen:                    snap.BountyStage == chain.StageActive && !accepted,
		Accepted:                  accepted,
		ExpiresDate:               time.Unix(snap.Deadline, 0).UTC(),
		NumFulfillments:           len(snap.Fulfillments),
		RawData:                   snap.ToMap(),
		Metadata:                  meta,
		PrivacyPreferences:        chain.SubMap(payload, "privacy_preferences"),
	}
	if b.TokenName == "" {
		if t, ok := lifecycle.Tokens().Lookup(b.TokenAddress, ""); ok {
			b.TokenName = t.Symbol
		}
	}
	if b.ProjectType == "" {
		b.ProjectType = model.ProjectTypeTraditional
	}
	if b.PermissionType == "" {
		b.PermissionType = model.PermissionTypePermissionless
	}
	if created := chain.Int(payload, "created"); created > 0 {
		b.Web3Created = time.Unix(created, 0).UTC()
	}
	return b
}

type fulfillmentPrint struct {
	ID        int64  `json:"id"`
	Accepted  bool   `json:"accepted"`
	Fulfiller string `json:"fulfiller"`
}

// fingerprint 链上与 IPFS 派生列加提交列表
func fingerprint(b *model.Bounty, fulfillments []fulfillmentPrint) string {
	doc := map[string]interface{}{
		"title":              b.Title,
		"description":        b.IssueDescription,
		"github_url":         b.GithubURL,
		"token_name":         b.TokenName,
		"token_address":      strings.ToLower(b.TokenAddress),
		"value_in_token":     b.ValueInToken,
		"balance":            b.Balance,
		"owner_address":      strings.ToLower(b.BountyOwnerAddress),
		"owner_name":         b.BountyOwnerName,
		"owner_email":        b.BountyOwnerEmail,
		"owner_github":       strings.ToLower(b.BountyOwnerGithubUsername),
		"experience_level":   b.ExperienceLevel,
		"project_length":     b.ProjectLength,
		"bounty_type":        b.BountyType,
		"estimated_hours":    b.EstimatedHours,
		"project_type":       b.ProjectType,
		"permission_type":    b.PermissionType,
		"categories":         b.BountyCategories,
		"job_description":    b.AttachedJobDescription,
		"is_open":            b.IsOpen,
		"accepted":           b.Accepted,
		"expires":            b.ExpiresDate.Unix(),
		"fulfillments":       fulfillments,
		"privacy_preference": b.PrivacyPreferences,
	}
	raw, _ := json.Marshal(doc)
	return string(raw)
}

func snapshotPrints(snap *chain.Snapshot) []fulfillmentPrint {
	out := make([]fulfillmentPrint, 0, len(snap.Fulfillments))
	for _, f := range snap.Fulfillments {
		out = append(out, fulfillmentPrint{ID: f.ID, Accepted: f.Accepted, Fulfiller: strings.ToLower(f.Fulfiller)})
	}
	sortPrints(out)
	return out
}

func sortPrints(prints []fulfillmentPrint) {
	sort.Slice(prints, func(i, j int) bool { return prints[i].ID < prints[j].ID })
}

func storedPrints(b *model.Bounty) []fulfillmentPrint {
	out := make([]fulfillmentPrint, 0, len(b.Fulfillments))
	for _, f := range b.Fulfillments {
		if f.FulfillmentId == nil {
			continue
		}
		out = append(out, fulfillmentPrint{ID: int64(*f.FulfillmentId), Accepted: f.Accepted, Fulfiller: strings.ToLower(f.FulfillerAddress)})
	}
	sortPrints(out)
	return out
}

// carryForward 复制只存在于本地的字段
func carryForward(next, prev *model.Bounty) {
	if next.Web3Created.IsZero() {
		next.Web3Created = prev.Web3Created
	}
	next.BountyState = prev.BountyState
	next.OverrideStatus = prev.OverrideStatus
	next.CanceledOn = prev.CanceledOn
	next.CanceledBountyReason = prev.CanceledBountyReason
	next.FeeAmount = prev.FeeAmount
	next.FeeTxId = prev.FeeTxId
	next.RepoType = prev.RepoType
	next.BountyOwnerProfileId = prev.BountyOwnerProfileId
	if !strings.EqualFold(next.BountyOwnerGithubUsername, prev.BountyOwnerGithubUsername) {
		next.BountyOwnerProfileId = nil
	}
	next.BountyReservedForUserId = prev.BountyReservedForUserId
	next.ReservedForUserFrom = prev.ReservedForUserFrom
	next.ReservedForUserExpiration = prev.ReservedForUserExpiration
	next.IsFeatured = prev.IsFeatured
	next.FeaturingDate = prev.FeaturingDate
	next.LastRemarketed = prev.LastRemarketed
	next.RemarketedCount = prev.RemarketedCount
	next.AdminOverrideAndHide = prev.AdminOverrideAndHide
	next.AdminOverrideSuspendAutoApproval = prev.AdminOverrideSuspendAutoApproval
	next.AdminMarkAsRemarketReady = prev.AdminMarkAsRemarketReady
	if prev.NumFulfillments > next.NumFulfillments {
		next.NumFulfillments = prev.NumFulfillments
	}
}

// Reconcile 对比快照与当前修订，有变化时在一个事务内生成新修订
func (r *BountyReconciler) Reconcile(ctx context.Context, snap *chain.Snapshot) (*ReconcileResult, error) {
	if snap == nil || r.env.Suppresses(snap.Network) {
		return &ReconcileResult{}, nil
	}
	log := logger.ForBounty(snap.Network, snap.ID)

	release, err := r.sem.Acquire(ctx, repository.BountyLockNamespace(snap.ID, snap.Network), r.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	next := r.candidate(snap)
	prev, err := r.repo.FindCurrent(ctx, snap.Network, snap.ID)
	if errors.Is(err, repository.ErrNotFound) && next.GithubURL != "" {
		prev, err = r.repo.FindCurrentByURL(ctx, next.GithubURL, snap.Network)
		if err == nil && prev.StandardBountiesId != snap.ID && prev.IsBountiesNetwork() {
			// 同一 issue 的另一个链上悬赏
			prev, err = nil, repository.ErrNotFound
		}
	}
	if errors.Is(err, repository.ErrNotFound) {
		prev, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("获取当前修订失败: %w", err)
	}

	if prev != nil {
		carryForward(next, prev)
		if fingerprint(prev, storedPrints(prev)) == fingerprint(next, snapshotPrints(snap)) {
			log.Debug("snapshot unchanged")
			return &ReconcileResult{DidChange: false, Old: prev, New: prev}, nil
		}
	}
	if next.Web3Created.IsZero() {
		next.Web3Created = r.bounties.now()
	}

	var newlyAccepted []model.BountyFulfillment
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		if prev != nil {
			if _, err := repo.LockCurrent(ctx, prev.Network, prev.StandardBountiesId); err != nil {
				return err
			}
			if err := repo.RetireCurrent(ctx, prev.Network, prev.StandardBountiesId); err != nil {
				return err
			}
		}
		if err := repo.RetireCurrent(ctx, snap.Network, snap.ID); err != nil {
			return err
		}
		if prev == nil {
			r.applyReservation(ctx, tx, next)
		}
		if err := r.bounties.SaveTx(ctx, tx, next); err != nil {
			return err
		}
		if prev != nil {
			if err := r.interests.WithTx(tx).CopyLinks(ctx, prev.Id, next.Id); err != nil {
				return fmt.Errorf("copy interests: %w", err)
			}
		}
		accepted, err := r.reconcileFulfillments(ctx, tx, prev, next, snap)
		if err != nil {
			return fmt.Errorf("reconcile fulfillments: %w", err)
		}
		newlyAccepted = accepted
		return r.bounties.SaveTx(ctx, tx, next)
	})
	if err != nil {
		return nil, err
	}
	log.Info("materialized revision %d (previous %v)", next.Id, revisionID(prev))

	r.afterCommit(ctx, prev, next, snap, newlyAccepted)
	return &ReconcileResult{DidChange: true, Old: prev, New: next}, nil
}

func revisionID(b *model.Bounty) interface{} {
	if b == nil {
		return nil
	}
	return b.Id
}

// applyReservation 新悬赏按 IPFS 中的 reservedFor 设置预留
func (r *BountyReconciler) applyReservation(ctx context.Context, tx *gorm.DB, b *model.Bounty) {
	handle := chain.String(b.Metadata, "reservedFor")
	if handle == "" {
		return
	}
	profile, err := r.profiles.WithTx(tx).ByHandle(ctx, handle)
	if err != nil {
		logger.Debug("reserved profile %s not found: %v", handle, err)
		return
	}
	from := b.Web3Created
	b.BountyReservedForUserId = &profile.Id
	b.ReservedForUserFrom = &from
}

// reconcileFulfillments 按链上编号一一对应，保留本地的档案与打款字段
func (r *BountyReconciler) reconcileFulfillments(ctx context.Context, tx *gorm.DB, prev, next *model.Bounty, snap *chain.Snapshot) ([]model.BountyFulfillment, error) {
	repo := r.repo.WithTx(tx)
	profiles := r.profiles.WithTx(tx)
	usedProfiles := map[int64]bool{}
	now := r.bounties.now()
	var newlyAccepted []model.BountyFulfillment
	next.Fulfillments = nil

	prior := map[int]model.BountyFulfillment{}
	if prev != nil {
		for _, f := range prev.Fulfillments {
			if f.FulfillmentId != nil {
				prior[*f.FulfillmentId] = f
				continue
			}
			// 链下提交原样带到新修订
			offChain := f
			offChain.Id = 0
			offChain.BountyId = next.Id
			if offChain.ProfileId != nil {
				usedProfiles[*offChain.ProfileId] = true
			}
			if err := repo.SaveFulfillment(ctx, &offChain); err != nil {
				return nil, err
			}
			next.Fulfillments = append(next.Fulfillments, offChain)
		}
	}

	for _, sf := range snap.Fulfillments {
		fid := int(sf.ID)
		payload := chain.SubMap(sf.Data, "payload")
		fulfiller := chain.SubMap(payload, "fulfiller")

		f := model.BountyFulfillment{
			BountyId:                next.Id,
			FulfillmentId:           &fid,
			FulfillerAddress:        strings.ToLower(sf.Fulfiller),
			FulfillerEmail:          chain.String(fulfiller, "email"),
			FulfillerGithubUsername: strings.TrimPrefix(chain.String(fulfiller, "githubUsername"), "@"),
			FulfillerName:           chain.String(fulfiller, "name"),
			FulfillerMetadata:       chain.SubMap(payload, "metadata"),
			FulfillerGithubURL:      chain.String(fulfiller, "githubPRLink"),
			Accepted:                sf.Accepted,
		}

		old, existed := prior[fid]
		if existed {
			f.ProfileId = old.ProfileId
			f.AcceptedOn = old.AcceptedOn
			f.HoursWorked = old.HoursWorked
			f.PayoutStatus = old.PayoutStatus
			f.PayoutTxId = old.PayoutTxId
			f.PayoutAmount = old.PayoutAmount
			f.PayoutType = old.PayoutType
			f.TokenName = old.TokenName
			f.FunderLastNotifiedOn = old.FunderLastNotifiedOn
		}
		if f.ProfileId == nil && f.FulfillerGithubUsername != "" {
			if p, err := profiles.ByHandle(ctx, f.FulfillerGithubUsername); err == nil {
				f.ProfileId = &p.Id
			}
		}
		if f.ProfileId != nil {
			if usedProfiles[*f.ProfileId] {
				f.ProfileId = nil
			} else {
				usedProfiles[*f.ProfileId] = true
			}
		}
		if f.TokenName == "" {
			f.TokenName = next.TokenName
		}
		if f.Accepted && f.AcceptedOn == nil {
			f.AcceptedOn = &now
		}
		if err := repo.SaveFulfillment(ctx, &f); err != nil {
			return nil, err
		}
		if f.Accepted && (!existed || !old.Accepted) {
			newlyAccepted = append(newlyAccepted, f)
		}
		next.Fulfillments = append(next.Fulfillments, f)
	}
	return newlyAccepted, nil
}

// afterCommit 提交后记录动态、收入并发布事件
func (r *BountyReconciler) afterCommit(ctx context.Context, prev, next *model.Bounty, snap *chain.Snapshot, newlyAccepted []model.BountyFulfillment) {
	var owner *model.Profile
	if next.BountyOwnerProfileId != nil {
		owner, _ = r.profiles.Get(ctx, *next.BountyOwnerProfileId)
	}

	if prev == nil {
		r.bounties.RecordActivity(ctx, next, owner, model.ActivityNewBounty, nil)
	} else {
		if len(snap.Fulfillments) > len(storedPrints(prev)) {
			var fulfiller *model.Profile
			if last := next.Fulfillments; len(last) > 0 && last[len(last)-1].ProfileId != nil {
				fulfiller, _ = r.profiles.Get(ctx, *last[len(last)-1].ProfileId)
			}
			r.bounties.RecordActivity(ctx, next, fulfiller, model.ActivityWorkSubmitted, nil)
		}
		if len(newlyAccepted) > 0 {
			r.bounties.RecordActivity(ctx, next, owner, model.ActivityWorkDone, nil)
		}
		if prev.IsOpen && !next.IsOpen && !next.Accepted {
			r.bounties.RecordActivity(ctx, next, owner, model.ActivityKilledBounty, nil)
		}
		if next.ValueInToken > prev.ValueInToken {
			r.bounties.RecordActivity(ctx, next, owner, model.ActivityIncreasedBounty, nil)
		}
		if next.ExpiresDate.After(prev.ExpiresDate) {
			r.bounties.RecordActivity(ctx, next, owner, model.ActivityExtendExpiration, nil)
		}
	}

	for i := range newlyAccepted {
		f := newlyAccepted[i]
		if _, _, err := r.payouts.Record(ctx, SourceRef{Kind: SourceFulfillment, ID: f.Id}); err != nil {
			logger.Warn("record earning for fulfillment %d: %v", f.Id, err)
		}
	}

	r.bus.Publish(ctx, event.BountyRevised{Bounty: next, Previous: prev})
	if prev == nil {
		r.bus.Publish(ctx, event.BountyCreated{Bounty: next})
	}
	for i := range newlyAccepted {
		r.bus.Publish(ctx, event.FulfillmentAccepted{Bounty: next, Fulfillment: &newlyAccepted[i]})
	}
}
