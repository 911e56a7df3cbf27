package repository

import (
	"context"
	"strings"

	"github.com/zoek1/web-1/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository 用户档案存取
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建档案仓储
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// WithTx 在事务中使用
func (r *ProfileRepository) WithTx(tx *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: tx}
}

// Get 按主键读取
func (r *ProfileRepository) Get(ctx context.Context, id int64) (*model.Profile, error) {
	var p model.Profile
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ByHandle 按 handle 读取，忽略大小写与 @
func (r *ProfileRepository) ByHandle(ctx context.Context, handle string) (*model.Profile, error) {
	handle = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
	if handle == "" {
		return nil, ErrNotFound
	}
	var p model.Profile
	if err := r.db.WithContext(ctx).Where("LOWER(handle) = ?", handle).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Ensure 按 handle 获取，不存在则创建
func (r *ProfileRepository) Ensure(ctx context.Context, handle string) (*model.Profile, error) {
	handle = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
	p := model.Profile{Handle: handle, MaxNumIssuesStartWork: 3}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "handle"}},
		DoNothing: true,
	}).Create(&p).Error; err != nil {
		return nil, err
	}
	return r.ByHandle(ctx, handle)
}
