package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/zoek1/web-1/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateInterest 同一修订下用户已存在申请
var ErrDuplicateInterest = errors.New("interest already exists for this profile")

// InterestRepository 申请存取
type InterestRepository struct {
	db *gorm.DB
}

// NewInterestRepository 创建申请仓储
func NewInterestRepository(db *gorm.DB) *InterestRepository {
	return &InterestRepository{db: db}
}

// WithTx 在事务中使用
func (r *InterestRepository) WithTx(tx *gorm.DB) *InterestRepository {
	return &InterestRepository{db: tx}
}

// ForBounty 悬赏下全部申请，包含用户信息
func (r *InterestRepository) ForBounty(ctx context.Context, bountyID int64) ([]model.Interest, error) {
	var out []model.Interest
	err := r.db.WithContext(ctx).Preload("Profile").
		Joins("JOIN bounty_interest bi ON bi.interest_id = interest.id").
		Where("bi.bounty_id = ?", bountyID).
		Order("interest.created_at, interest.id").
		Find(&out).Error
	return out, err
}

// ForBountyAndProfile 用户在悬赏下的申请，新的在前
func (r *InterestRepository) ForBountyAndProfile(ctx context.Context, bountyID, profileID int64) ([]model.Interest, error) {
	var out []model.Interest
	err := r.db.WithContext(ctx).
		Joins("JOIN bounty_interest bi ON bi.interest_id = interest.id").
		Where("bi.bounty_id = ? AND interest.profile_id = ?", bountyID, profileID).
		Order("interest.created_at DESC, interest.id DESC").
		Find(&out).Error
	return out, err
}

// PendingForHandle 某用户待审批的申请
func (r *InterestRepository) PendingForHandle(ctx context.Context, bountyID int64, handle string) ([]model.Interest, error) {
	var out []model.Interest
	err := r.db.WithContext(ctx).Preload("Profile").
		Joins("JOIN bounty_interest bi ON bi.interest_id = interest.id").
		Joins("JOIN profile p ON p.id = interest.profile_id").
		Where("bi.bounty_id = ? AND interest.pending = ? AND LOWER(p.handle) = ?", bountyID, true, strings.ToLower(handle)).
		Order("interest.id").
		Find(&out).Error
	return out, err
}

// HasActive 是否存在已通过的申请
func (r *InterestRepository) HasActive(ctx context.Context, bountyID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Interest{}).
		Joins("JOIN bounty_interest bi ON bi.interest_id = interest.id").
		Where("bi.bounty_id = ? AND interest.pending = ?", bountyID, false).
		Count(&count).Error
	return count > 0, err
}

// Count 悬赏下的申请数
func (r *InterestRepository) Count(ctx context.Context, bountyID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.BountyInterest{}).Where("bounty_id = ?", bountyID).Count(&count).Error
	return count, err
}

// ActiveBountyCount 用户正在进行中的当前悬赏数
func (r *InterestRepository) ActiveBountyCount(ctx context.Context, profileID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.BountyInterest{}).
		Joins("JOIN bounty b ON b.id = bounty_interest.bounty_id").
		Where("bounty_interest.profile_id = ? AND b.current_bounty = ? AND b.bounty_state = ?",
			profileID, true, model.StateWorkStarted).
		Count(&count).Error
	return count, err
}

// Create 新建申请并关联到悬赏，唯一键冲突返回 ErrDuplicateInterest
func (r *InterestRepository) Create(ctx context.Context, bountyID int64, interest *model.Interest) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(interest).Error; err != nil {
		return err
	}
	link := model.BountyInterest{BountyId: bountyID, ProfileId: interest.ProfileId, InterestId: interest.Id}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateInterest
	}
	return nil
}

// Save 更新申请
func (r *InterestRepository) Save(ctx context.Context, interest *model.Interest) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(interest).Error
}

// Delete 删除申请及其全部关联
func (r *InterestRepository) Delete(ctx context.Context, interestID int64) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("interest_id = ?", interestID).Delete(&model.BountyInterest{}).Error; err != nil {
		return err
	}
	return db.Delete(&model.Interest{}, interestID).Error
}

// CopyLinks 将旧修订的申请关联复制到新修订
func (r *InterestRepository) CopyLinks(ctx context.Context, fromBountyID, toBountyID int64) error {
	var links []model.BountyInterest
	db := r.db.WithContext(ctx)
	if err := db.Where("bounty_id = ?", fromBountyID).Find(&links).Error; err != nil {
		return err
	}
	for _, l := range links {
		copied := model.BountyInterest{BountyId: toBountyID, ProfileId: l.ProfileId, InterestId: l.InterestId}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&copied).Error; err != nil {
			return err
		}
	}
	return nil
}

// LinkedCurrentBountyIDs 申请关联的当前修订
func (r *InterestRepository) LinkedCurrentBountyIDs(ctx context.Context, interestID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&model.BountyInterest{}).
		Joins("JOIN bounty b ON b.id = bounty_interest.bounty_id").
		Where("bounty_interest.interest_id = ? AND b.current_bounty = ?", interestID, true).
		Pluck("bounty_interest.bounty_id", &ids).Error
	return ids, err
}

// SlashCount 被管理员移除并处罚的次数
func (r *InterestRepository) SlashCount(ctx context.Context, profileID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserAction{}).
		Where("profile_id = ? AND action = ?", profileID, model.ActionBountyRemovedSlashedByStaff).
		Count(&count).Error
	return count, err
}
