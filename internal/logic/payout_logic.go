package logic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zoek1/web-1/internal/lifecycle"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SourceKind 收入来源类型
type SourceKind string

const (
	SourceTip         SourceKind = "tip"
	SourceFulfillment SourceKind = "bounty_fulfillment"
)

// SourceRef 收入来源
type SourceRef struct {
	Kind SourceKind
	ID   int64
}

func (r SourceRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// earningSource 由来源构造收入，返回 nil 表示该来源不产生收入
type earningSource func(ctx context.Context, id int64) (*model.Earning, error)

// TribeWhyAuto 自动关注
const TribeWhyAuto = "auto"

// PayoutLogic 收入记录与自动关注
type PayoutLogic struct {
	db       *gorm.DB
	bounties *repository.BountyRepository
	profiles *repository.ProfileRepository
	valuer   *Valuer
	baseURL  string
	sources  map[SourceKind]earningSource
}

// NewPayoutLogic 创建收入记录逻辑
func NewPayoutLogic(db *gorm.DB, valuer *Valuer, baseURL string) *PayoutLogic {
	p := &PayoutLogic{
		db:       db,
		bounties: repository.NewBountyRepository(db),
		profiles: repository.NewProfileRepository(db),
		valuer:   valuer,
		baseURL:  baseURL,
	}
	p.sources = map[SourceKind]earningSource{
		SourceTip:         p.tipEarning,
		SourceFulfillment: p.fulfillmentEarning,
	}
	return p
}

var earningColumns = []string{
	"from_profile_id", "to_profile_id", "org_profile_id", "value_usd", "network",
	"url", "txid", "token_name", "token_value", "updated_at",
}

// Record 按 (source_type, source_id) 幂等写入收入，created 表示首次写入
func (p *PayoutLogic) Record(ctx context.Context, ref SourceRef) (*model.Earning, bool, error) {
	build, ok := p.sources[ref.Kind]
	if !ok {
		return nil, false, fmt.Errorf("unknown earning source %q", ref.Kind)
	}
	earning, err := build(ctx, ref.ID)
	if err != nil {
		return nil, false, err
	}
	if earning == nil {
		logger.Debug("source %s does not produce an earning", ref)
		return nil, false, nil
	}
	earning.SourceType = string(ref.Kind)
	earning.SourceId = ref.ID

	db := p.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(earning)
	if res.Error != nil {
		return nil, false, fmt.Errorf("写入收入失败: %w", res.Error)
	}
	created := res.RowsAffected > 0

	if !created {
		var existing model.Earning
		if err := db.Where("source_type = ? AND source_id = ?", earning.SourceType, earning.SourceId).
			First(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("获取收入失败: %w", err)
		}
		earning.Id = existing.Id
		earning.CreatedAt = existing.CreatedAt
		if err := db.Model(&model.Earning{Id: existing.Id}).Select(earningColumns).Updates(earning).Error; err != nil {
			return nil, false, fmt.Errorf("更新收入失败: %w", err)
		}
		return earning, false, nil
	}

	n, err := p.createAutoFollow(ctx, earning)
	if err != nil {
		logger.Warn("auto follow for earning %d: %v", earning.Id, err)
	} else if n > 0 {
		logger.Debug("created %d auto follows for earning %d", n, earning.Id)
	}
	return earning, true, nil
}

func (p *PayoutLogic) orgProfileID(ctx context.Context, org string) *int64 {
	if org == "" {
		return nil
	}
	profile, err := p.profiles.ByHandle(ctx, org)
	if err != nil {
		return nil
	}
	return &profile.Id
}

func (p *PayoutLogic) fulfillmentEarning(ctx context.Context, id int64) (*model.Earning, error) {
	f, err := p.bounties.GetFulfillment(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrFulfillmentNotFound
	}
	if err != nil {
		return nil, err
	}
	if !f.Accepted {
		return nil, nil
	}
	b, err := p.bounties.Get(ctx, f.BountyId)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBountyNotFound
	}
	if err != nil {
		return nil, err
	}

	created := b.Web3Created
	return &model.Earning{
		FromProfileId: b.BountyOwnerProfileId,
		ToProfileId:   f.ProfileId,
		OrgProfileId:  p.orgProfileID(ctx, b.OrgName()),
		ValueUsd:      p.valuer.BountyUSDTAt(ctx, b, &created),
		Network:       b.Network,
		URL:           lifecycle.AbsoluteURL(p.baseURL, b),
		TokenName:     b.TokenName,
		TokenValue:    b.ValueInToken,
	}, nil
}

func sameProfile(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (p *PayoutLogic) tipEarning(ctx context.Context, id int64) (*model.Earning, error) {
	var tip model.Tip
	if err := p.db.WithContext(ctx).First(&tip, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tip %d not found", id)
		}
		return nil, err
	}
	if sameProfile(tip.SenderProfileId, tip.RecipientProfileId) || tip.Txid == "" {
		return nil, nil
	}

	created := tip.CreatedAt
	value, err := p.valuer.AmountUSDTAt(ctx, tip.TokenName, tip.Amount, &created)
	if err != nil {
		logger.Debug("no usdt valuation for tip %d: %v", tip.Id, err)
		value = nil
	}
	return &model.Earning{
		FromProfileId: tip.SenderProfileId,
		ToProfileId:   tip.RecipientProfileId,
		OrgProfileId:  tip.OrgProfileId,
		ValueUsd:      value,
		Network:       tip.Network,
		URL:           p.baseURL + "tips",
		Txid:          tip.Txid,
		TokenName:     tip.TokenName,
		TokenValue:    tip.ValueTrue,
	}, nil
}

// createAutoFollow 收入三方之间两两互相关注，跳过选择退出的用户
func (p *PayoutLogic) createAutoFollow(ctx context.Context, e *model.Earning) (int, error) {
	parties := []*int64{e.ToProfileId, e.FromProfileId, e.OrgProfileId}
	optedOut := map[int64]bool{}
	loaded := map[int64]bool{}
	count := 0

	for _, p1 := range parties {
		if p1 == nil {
			continue
		}
		if !loaded[*p1] {
			profile, err := p.profiles.Get(ctx, *p1)
			if err != nil {
				return count, err
			}
			loaded[*p1] = true
			optedOut[*p1] = profile.DontAutofollowEarnings
		}
		if optedOut[*p1] {
			continue
		}
		for _, p2 := range parties {
			if p2 == nil || *p1 == *p2 {
				continue
			}
			member := model.TribeMember{ProfileId: *p1, OrgId: *p2, Why: TribeWhyAuto}
			if err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "profile_id"}, {Name: "org_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"why"}),
			}).Create(&member).Error; err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// RecordTip 保存打赏并记录收入
func (p *PayoutLogic) RecordTip(ctx context.Context, tip *model.Tip) (*model.Earning, error) {
	tip.Username = strings.ReplaceAll(tip.Username, " ", "")
	tip.FromUsername = strings.ReplaceAll(tip.FromUsername, " ", "")
	if tip.RecipientProfileId == nil && tip.Username != "" {
		if profile, err := p.profiles.ByHandle(ctx, tip.Username); err == nil {
			tip.RecipientProfileId = &profile.Id
		}
	}
	if tip.SenderProfileId == nil && tip.FromUsername != "" {
		if profile, err := p.profiles.ByHandle(ctx, tip.FromUsername); err == nil {
			tip.SenderProfileId = &profile.Id
		}
	}
	if tip.OrgProfileId == nil {
		tip.OrgProfileId = p.orgProfileID(ctx, (&model.Bounty{GithubURL: tip.GithubURL}).OrgName())
	}
	if tip.TxStatus == "" {
		tip.TxStatus = model.TxStatusPending
	}
	tip.ValueTrue = tip.Amount

	if err := p.db.WithContext(ctx).Create(tip).Error; err != nil {
		return nil, fmt.Errorf("保存打赏失败: %w", err)
	}
	created := tip.CreatedAt
	if value, err := p.valuer.AmountUSDTAt(ctx, tip.TokenName, tip.Amount, &created); err == nil {
		tip.ValueInUsdtThen = value
		if err := p.db.WithContext(ctx).Model(tip).Update("value_in_usdt_then", value).Error; err != nil {
			logger.Warn("store usdt value for tip %d: %v", tip.Id, err)
		}
	}

	earning, _, err := p.Record(ctx, SourceRef{Kind: SourceTip, ID: tip.Id})
	if err != nil {
		return nil, err
	}
	return earning, nil
}
