package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zoek1/web-1/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrStaleRevision = errors.New("bounty revision was modified concurrently")
)

// BountyRepository 悬赏存取
type BountyRepository struct {
	db *gorm.DB
}

// NewBountyRepository 创建悬赏仓储
func NewBountyRepository(db *gorm.DB) *BountyRepository {
	return &BountyRepository{db: db}
}

// WithTx 在事务中使用
func (r *BountyRepository) WithTx(tx *gorm.DB) *BountyRepository {
	return &BountyRepository{db: tx}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Get 按主键读取，包含提交记录
func (r *BountyRepository) Get(ctx context.Context, id int64) (*model.Bounty, error) {
	var b model.Bounty
	if err := r.db.WithContext(ctx).Preload("Fulfillments", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).First(&b, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// FindCurrent 链上悬赏的当前修订
func (r *BountyRepository) FindCurrent(ctx context.Context, network string, standardBountiesID int64) (*model.Bounty, error) {
	var b model.Bounty
	err := r.db.WithContext(ctx).Preload("Fulfillments").
		Where("network = ? AND standard_bounties_id = ? AND current_bounty = ?", network, standardBountiesID, true).
		Order("id DESC").
		First(&b).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// FindCurrentByURL 按 github 地址查找当前修订
func (r *BountyRepository) FindCurrentByURL(ctx context.Context, githubURL, network string) (*model.Bounty, error) {
	var b model.Bounty
	err := r.db.WithContext(ctx).Preload("Fulfillments").
		Where("github_url = ? AND network = ? AND current_bounty = ?", githubURL, network, true).
		Order("id DESC").
		First(&b).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// AnyCurrentByURL 不区分网络，按 github 地址查找最新的当前修订
func (r *BountyRepository) AnyCurrentByURL(ctx context.Context, githubURL string) (*model.Bounty, error) {
	var b model.Bounty
	err := r.db.WithContext(ctx).
		Where("github_url = ? AND current_bounty = ?", githubURL, true).
		Order("id DESC").
		First(&b).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// ExistsForURL 是否已有该 github 地址的当前悬赏
func (r *BountyRepository) ExistsForURL(ctx context.Context, githubURL string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Bounty{}).
		Where("github_url = ? AND current_bounty = ?", githubURL, true).
		Count(&count).Error
	return count > 0, err
}

// LatestStandardBountiesID 该地址在 bounties_network 上最大的链上编号
func (r *BountyRepository) LatestStandardBountiesID(ctx context.Context, githubURL, network string) (int64, bool, error) {
	var b model.Bounty
	err := r.db.WithContext(ctx).
		Where("github_url = ? AND network = ? AND web3_type = ?", githubURL, network, model.Web3TypeBountiesNetwork).
		Order("standard_bounties_id DESC").
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return b.StandardBountiesId, true, nil
}

// MaxStandardBountiesID 网络上已知的最大编号
func (r *BountyRepository) MaxStandardBountiesID(ctx context.Context, network string) (int64, error) {
	var max *int64
	err := r.db.WithContext(ctx).Model(&model.Bounty{}).
		Where("network = ? AND web3_type = ?", network, model.Web3TypeBountiesNetwork).
		Select("MAX(standard_bounties_id)").
		Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max, nil
}

// History 同一链上悬赏的全部修订，旧的在前
func (r *BountyRepository) History(ctx context.Context, network string, standardBountiesID int64) ([]model.Bounty, error) {
	var out []model.Bounty
	err := r.db.WithContext(ctx).
		Where("network = ? AND standard_bounties_id = ?", network, standardBountiesID).
		Order("id").
		Find(&out).Error
	return out, err
}

// LockCurrent 行锁当前修订 (SELECT ... FOR UPDATE)
func (r *BountyRepository) LockCurrent(ctx context.Context, network string, standardBountiesID int64) ([]model.Bounty, error) {
	var out []model.Bounty
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("network = ? AND standard_bounties_id = ? AND current_bounty = ?", network, standardBountiesID, true).
		Find(&out).Error
	return out, err
}

// RetireCurrent 将当前修订全部标记为历史
func (r *BountyRepository) RetireCurrent(ctx context.Context, network string, standardBountiesID int64) error {
	return r.db.WithContext(ctx).Model(&model.Bounty{}).
		Where("network = ? AND standard_bounties_id = ? AND current_bounty = ?", network, standardBountiesID, true).
		Updates(map[string]interface{}{
			"current_bounty": false,
			"version":        gorm.Expr("version + 1"),
		}).Error
}

// Create 新建修订
func (r *BountyRepository) Create(ctx context.Context, b *model.Bounty) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(b).Error
}

// Save 按版本号做比较交换写入
func (r *BountyRepository) Save(ctx context.Context, b *model.Bounty) error {
	if !b.Persisted() {
		return r.Create(ctx, b)
	}
	old := b.Version
	b.Version = old + 1
	res := r.db.WithContext(ctx).Model(b).
		Where("version = ?", old).
		Select("*").
		Omit("Id", "CreatedAt", clause.Associations).
		Updates(b)
	if res.Error != nil {
		b.Version = old
		return res.Error
	}
	if res.RowsAffected == 0 {
		b.Version = old
		return ErrStaleRevision
	}
	return nil
}

// UpdateFields 局部更新，不校验版本
func (r *BountyRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	fields["version"] = gorm.Expr("version + 1")
	return r.db.WithContext(ctx).Model(&model.Bounty{}).Where("id = ?", id).Updates(fields).Error
}

// ListFilter REST 列表过滤条件
type ListFilter struct {
	PkGt                      int64
	GithubURLs                []string
	Started                   []string
	FulfillerGithubUsername   string
	InterestedGithubUsername  string
	IsOpen                    *bool
	OrderBy                   string
	ExperienceLevel           string
	ProjectLength             string
	BountyType                string
	BountyOwnerAddress        string
	IdxStatus                 string
	Network                   string
	BountyOwnerGithubUsername string
	Limit                     int
	Offset                    int
}

var orderableColumns = map[string]bool{
	"id": true, "web3_created": true, "expires_date": true, "value_in_usdt_now": true,
	"value_in_token": true, "standard_bounties_id": true, "idx_status": true,
	"idx_experience_level": true, "idx_project_length": true, "num_fulfillments": true,
}

// List 列表查询，仅当前且未隐藏的修订
func (r *BountyRepository) List(ctx context.Context, f ListFilter, now time.Time) ([]model.Bounty, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Bounty{}).
		Where("current_bounty = ? AND admin_override_and_hide = ?", true, false)

	if f.PkGt > 0 {
		q = q.Where("id > ?", f.PkGt)
	}
	if len(f.GithubURLs) > 0 {
		q = q.Where("github_url IN ?", f.GithubURLs)
	}
	if len(f.Started) > 0 {
		lowered := make([]string, len(f.Started))
		for i, h := range f.Started {
			lowered[i] = strings.ToLower(h)
		}
		q = q.Where(`id IN (SELECT bi.bounty_id FROM bounty_interest bi
			JOIN profile p ON p.id = bi.profile_id WHERE LOWER(p.handle) IN ?)`, lowered)
	}
	if f.FulfillerGithubUsername != "" {
		q = q.Where(`id IN (SELECT bounty_id FROM bounty_fulfillment WHERE LOWER(fulfiller_github_username) = ?)`,
			strings.ToLower(f.FulfillerGithubUsername))
	}
	if f.InterestedGithubUsername != "" {
		q = q.Where(`id IN (SELECT bi.bounty_id FROM bounty_interest bi
			JOIN profile p ON p.id = bi.profile_id WHERE LOWER(p.handle) = ?)`,
			strings.ToLower(f.InterestedGithubUsername))
	}
	if f.IsOpen != nil {
		q = q.Where("is_open = ? AND expires_date > ?", *f.IsOpen, now)
	}
	for col, val := range map[string]string{
		"experience_level":             f.ExperienceLevel,
		"project_length":               f.ProjectLength,
		"bounty_type":                  f.BountyType,
		"bounty_owner_address":         f.BountyOwnerAddress,
		"idx_status":                   f.IdxStatus,
		"network":                      f.Network,
		"bounty_owner_github_username": f.BountyOwnerGithubUsername,
	} {
		if val != "" {
			q = q.Where("LOWER("+col+") LIKE ?", "%"+strings.ToLower(val)+"%")
		}
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Order(orderClause(f.OrderBy)).Preload("Fulfillments")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var out []model.Bounty
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func orderClause(orderBy string) string {
	desc := strings.HasPrefix(orderBy, "-")
	col := strings.TrimPrefix(orderBy, "-")
	if !orderableColumns[col] {
		return "web3_created DESC"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}

// HasQualifyingTips 同一 issue 与网络下存在已广播的非赏金打赏
func (r *BountyRepository) HasQualifyingTips(ctx context.Context, githubURL, network string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Tip{}).
		Where("LOWER(github_url) = ? AND network = ? AND is_for_bounty_fulfiller = ?", strings.ToLower(githubURL), network, false).
		Where("tx_status IN ? AND txid <> ''", []string{model.TxStatusPending, model.TxStatusSuccess}).
		Count(&count).Error
	return count > 0, err
}

// Fulfillments 悬赏的全部提交
func (r *BountyRepository) Fulfillments(ctx context.Context, bountyID int64) ([]model.BountyFulfillment, error) {
	var out []model.BountyFulfillment
	err := r.db.WithContext(ctx).Where("bounty_id = ?", bountyID).Order("id").Find(&out).Error
	return out, err
}

// GetFulfillment 按主键读取提交
func (r *BountyRepository) GetFulfillment(ctx context.Context, id int64) (*model.BountyFulfillment, error) {
	var f model.BountyFulfillment
	if err := r.db.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// FulfillmentByProfile 用户在该悬赏下的提交
func (r *BountyRepository) FulfillmentByProfile(ctx context.Context, bountyID, profileID int64) (*model.BountyFulfillment, error) {
	var f model.BountyFulfillment
	err := r.db.WithContext(ctx).Where("bounty_id = ? AND profile_id = ?", bountyID, profileID).First(&f).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// HasPaidAcceptedFulfillment 是否存在已接受且已打款的提交
func (r *BountyRepository) HasPaidAcceptedFulfillment(ctx context.Context, bountyID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.BountyFulfillment{}).
		Where("bounty_id = ? AND accepted = ? AND payout_status = ?", bountyID, true, model.PayoutStatusDone).
		Count(&count).Error
	return count > 0, err
}

// PendingPayouts 待确认的打款
func (r *BountyRepository) PendingPayouts(ctx context.Context, payoutTypes []string) ([]model.BountyFulfillment, error) {
	var out []model.BountyFulfillment
	err := r.db.WithContext(ctx).
		Where("payout_status = ? AND payout_type IN ?", model.PayoutStatusPending, payoutTypes).
		Order("id").
		Find(&out).Error
	return out, err
}

// SaveFulfillment 写入提交
func (r *BountyRepository) SaveFulfillment(ctx context.Context, f *model.BountyFulfillment) error {
	return r.db.WithContext(ctx).Save(f).Error
}

// CreateEvent 记录事件
func (r *BountyRepository) CreateEvent(ctx context.Context, e *model.BountyEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// Events 悬赏事件
func (r *BountyRepository) Events(ctx context.Context, bountyID int64) ([]model.BountyEvent, error) {
	var out []model.BountyEvent
	err := r.db.WithContext(ctx).Where("bounty_id = ?", bountyID).Order("id").Find(&out).Error
	return out, err
}
