package logic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zoek1/web-1/internal/event"
	"github.com/zoek1/web-1/internal/lifecycle"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
	"gorm.io/gorm"
)

// BountyLogic 悬赏业务逻辑：派生字段、状态机与动态
type BountyLogic struct {
	db        *gorm.DB
	bounties  *repository.BountyRepository
	interests *repository.InterestRepository
	profiles  *repository.ProfileRepository
	valuer    *Valuer
	bus       *event.Bus
	baseURL   string
	now       func() time.Time
}

// NewBountyLogic 创建悬赏业务逻辑
func NewBountyLogic(db *gorm.DB, valuer *Valuer, bus *event.Bus, baseURL string) *BountyLogic {
	return &BountyLogic{
		db:        db,
		bounties:  repository.NewBountyRepository(db),
		interests: repository.NewInterestRepository(db),
		profiles:  repository.NewProfileRepository(db),
		valuer:    valuer,
		bus:       bus,
		baseURL:   baseURL,
		now:       time.Now,
	}
}

// BaseURL 站点根地址
func (l *BountyLogic) BaseURL() string {
	return l.baseURL
}

// URL 悬赏详情完整地址
func (l *BountyLogic) URL(b *model.Bounty) string {
	return lifecycle.AbsoluteURL(l.baseURL, b)
}

// Facts 读取状态计算所需的关联数据
func (l *BountyLogic) Facts(ctx context.Context, b *model.Bounty) (lifecycle.Facts, error) {
	return l.facts(ctx, l.db, b)
}

func (l *BountyLogic) facts(ctx context.Context, db *gorm.DB, b *model.Bounty) (lifecycle.Facts, error) {
	f := lifecycle.Facts{Bounty: b}
	if b.Persisted() {
		active, err := l.interests.WithTx(db).HasActive(ctx, b.Id)
		if err != nil {
			return f, err
		}
		f.HasActiveInterest = active
	}
	tips, err := l.bounties.WithTx(db).HasQualifyingTips(ctx, b.GithubURL, b.Network)
	if err != nil {
		return f, err
	}
	f.HasTips = tips
	return f, nil
}

// Status 读时计算展示状态
func (l *BountyLogic) Status(ctx context.Context, b *model.Bounty) string {
	f, err := l.Facts(ctx, b)
	if err != nil {
		logger.Warn("load status facts for bounty %d: %v", b.Id, err)
		return model.StatusUnknown
	}
	return lifecycle.Status(f, l.now())
}

// prepare 保存前重新计算派生字段
func (l *BountyLogic) prepare(ctx context.Context, db *gorm.DB, b *model.Bounty) error {
	now := l.now()

	b.BountyOwnerGithubUsername = strings.TrimPrefix(strings.TrimSpace(b.BountyOwnerGithubUsername), "@")
	b.GithubURL = lifecycle.NormalizeGithubURL(b.GithubURL)
	if b.BountyOwnerProfileId == nil && b.BountyOwnerGithubUsername != "" {
		owner, err := l.profiles.WithTx(db).ByHandle(ctx, b.BountyOwnerGithubUsername)
		switch {
		case err == nil:
			b.BountyOwnerProfileId = &owner.Id
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
	}
	b.StandardBountiesId = lifecycle.SyntheticStandardBountiesID(b)

	facts, err := l.facts(ctx, db, b)
	if err != nil {
		return err
	}
	status := lifecycle.Status(facts, now)
	b.IdxStatus = status

	b.FulfillmentAcceptedOn, b.FulfillmentSubmittedOn, b.FulfillmentStartedOn = nil, nil, nil
	if b.Persisted() {
		fulfillments, err := l.bounties.WithTx(db).Fulfillments(ctx, b.Id)
		if err != nil {
			return err
		}
		for i := range fulfillments {
			f := fulfillments[i]
			if b.FulfillmentSubmittedOn == nil {
				b.FulfillmentSubmittedOn = &f.CreatedAt
			}
			if f.Accepted && b.FulfillmentAcceptedOn == nil {
				b.FulfillmentAcceptedOn = f.AcceptedOn
			}
		}
		interests, err := l.interests.WithTx(db).ForBounty(ctx, b.Id)
		if err != nil {
			return err
		}
		if len(interests) > 0 {
			started := interests[0].CreatedAt
			b.FulfillmentStartedOn = &started
		}
	}

	b.IdxExperienceLevel = lifecycle.ExperienceLevelIndex(b.ExperienceLevel)
	b.IdxProjectLength = lifecycle.ProjectLengthIndex(b.ProjectLength)
	l.valuer.WithTx(db).Apply(ctx, b, status, now)
	return nil
}

// SaveTx 在事务中保存，不发布事件
func (l *BountyLogic) SaveTx(ctx context.Context, tx *gorm.DB, b *model.Bounty) error {
	if err := l.prepare(ctx, tx, b); err != nil {
		return fmt.Errorf("prepare bounty: %w", err)
	}
	repo := l.bounties.WithTx(tx)
	if !b.Persisted() {
		if err := repo.Create(ctx, b); err != nil {
			return fmt.Errorf("create bounty: %w", err)
		}
		// 入库后才有合成编号与完整的关联
		if err := l.prepare(ctx, tx, b); err != nil {
			return fmt.Errorf("prepare bounty: %w", err)
		}
	}
	return repo.Save(ctx, b)
}

// Save 保存并发布 BountyRevised
func (l *BountyLogic) Save(ctx context.Context, b *model.Bounty) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.SaveTx(ctx, tx, b)
	})
	if err != nil {
		return err
	}
	l.bus.Publish(ctx, event.BountyRevised{Bounty: b})
	return nil
}

// HandleEvent 按状态机流转并保存，未定义的流转不做任何事
func (l *BountyLogic) HandleEvent(ctx context.Context, b *model.Bounty, eventType string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handle event %s on bounty %d panicked: %v", eventType, b.Id, r)
		}
	}()

	next, ok := lifecycle.Next(b.ProjectType, b.BountyState, eventType)
	if !ok {
		logger.Debug("no transition for %s/%s/%s", b.ProjectType, b.BountyState, eventType)
		return
	}
	prev := b.BountyState
	b.BountyState = next
	err := l.Save(ctx, b)
	if errors.Is(err, repository.ErrStaleRevision) {
		// 并发修改后重读一次
		fresh, getErr := l.bounties.Get(ctx, b.Id)
		if getErr != nil {
			logger.Warn("reload bounty %d: %v", b.Id, getErr)
			b.BountyState = prev
			return
		}
		next, ok = lifecycle.Next(fresh.ProjectType, fresh.BountyState, eventType)
		if !ok {
			*b = *fresh
			return
		}
		fresh.BountyState = next
		err = l.Save(ctx, fresh)
		*b = *fresh
	}
	if err != nil {
		logger.Warn("apply %s to bounty %d: %v", eventType, b.Id, err)
		return
	}
	logger.Info("bounty %d moved %s -> %s on %s", b.Id, prev, b.BountyState, eventType)
}

func profileID(p *model.Profile) *int64 {
	if p == nil {
		return nil
	}
	id := p.Id
	return &id
}

func (l *BountyLogic) workerHandle(ctx context.Context, interest *model.Interest) string {
	if interest.Profile != nil {
		return interest.Profile.Handle
	}
	p, err := l.profiles.Get(ctx, interest.ProfileId)
	if err != nil {
		return ""
	}
	return p.Handle
}

// RecordActivity 记录动态，并通过适配表驱动状态机；失败只记录日志
func (l *BountyLogic) RecordActivity(ctx context.Context, b *model.Bounty, actor *model.Profile, activityType string, interest *model.Interest) {
	metadata := map[string]interface{}{}
	if interest != nil {
		handle := l.workerHandle(ctx, interest)
		switch activityType {
		case model.ActivityWorkerApplied:
			url := l.URL(b)
			metadata["approve_worker_url"] = fmt.Sprintf("%s?mutate_worker_action=approve&worker=%s", url, handle)
			metadata["reject_worker_url"] = fmt.Sprintf("%s?mutate_worker_action=reject&worker=%s", url, handle)
		case model.ActivityWorkerApproved, model.ActivityWorkerRejected:
			metadata["worker_handle"] = handle
		}
	}

	bountyID := b.Id
	activity := model.Activity{
		ActivityType: activityType,
		BountyId:     &bountyID,
		ProfileId:    profileID(actor),
		Metadata:     metadata,
	}
	if err := l.db.WithContext(ctx).Create(&activity).Error; err != nil {
		logger.Warn("record activity %s for bounty %d: %v", activityType, b.Id, err)
		return
	}

	eventType, ok := lifecycle.EventForActivity(activityType)
	if !ok {
		return
	}
	ev := model.BountyEvent{BountyId: b.Id, CreatedById: profileID(actor), EventType: eventType}
	if err := l.bounties.CreateEvent(ctx, &ev); err != nil {
		logger.Warn("record event %s for bounty %d: %v", eventType, b.Id, err)
		return
	}
	l.HandleEvent(ctx, b, eventType)
}

// RecordUserAction 记录用户行为
func (l *BountyLogic) RecordUserAction(ctx context.Context, action string, profile *model.Profile, metadata map[string]interface{}) {
	ua := model.UserAction{Action: action, ProfileId: profileID(profile), Metadata: metadata}
	if err := l.db.WithContext(ctx).Create(&ua).Error; err != nil {
		logger.Warn("record user action %s: %v", action, err)
	}
}

// BountyView 对外展示的悬赏
type BountyView struct {
	*model.Bounty
	Status                       string            `json:"status"`
	URL                          string            `json:"url"`
	ActionURLs                   map[string]string `json:"action_urls"`
	CanSubmitAfterExpirationDate bool              `json:"can_submit_after_expiration_date"`
	DisplayValueInUsdt           *float64          `json:"display_value_in_usdt"`
}

// View 读时重新计算状态，不依赖 idx_status 缓存
func (l *BountyLogic) View(ctx context.Context, b *model.Bounty) (*BountyView, error) {
	interests, err := l.interests.ForBounty(ctx, b.Id)
	if err != nil {
		return nil, fmt.Errorf("获取申请失败: %w", err)
	}
	b.Interests = interests

	v := &BountyView{
		Bounty:     b,
		Status:     l.Status(ctx, b),
		URL:        l.URL(b),
		ActionURLs: lifecycle.ActionURLs(b),
	}
	if ok, err := lifecycle.CanSubmitAfterExpirationDate(b); err == nil {
		v.CanSubmitAfterExpirationDate = ok
	}
	if lifecycle.IsOpenStatus(v.Status) {
		v.DisplayValueInUsdt = b.ValueInUsdtNow
	} else {
		v.DisplayValueInUsdt = b.ValueInUsdt
	}
	return v, nil
}

// Load 按主键读取悬赏
func (l *BountyLogic) Load(ctx context.Context, id int64) (*model.Bounty, error) {
	b, err := l.bounties.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBountyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("获取悬赏失败: %w", err)
	}
	return b, nil
}

// Get 悬赏详情
func (l *BountyLogic) Get(ctx context.Context, id int64) (*BountyView, error) {
	b, err := l.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.View(ctx, b)
}

// List 悬赏列表
func (l *BountyLogic) List(ctx context.Context, filter repository.ListFilter) ([]*BountyView, int64, error) {
	bounties, total, err := l.bounties.List(ctx, filter, l.now())
	if err != nil {
		return nil, 0, fmt.Errorf("获取悬赏列表失败: %w", err)
	}
	out := make([]*BountyView, 0, len(bounties))
	for i := range bounties {
		v, err := l.View(ctx, &bounties[i])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, nil
}

// History 同一链上悬赏的全部修订
func (l *BountyLogic) History(ctx context.Context, id int64) ([]model.Bounty, error) {
	b, err := l.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	revisions, err := l.bounties.History(ctx, b.Network, b.StandardBountiesId)
	if err != nil {
		return nil, fmt.Errorf("获取悬赏历史失败: %w", err)
	}
	return revisions, nil
}
