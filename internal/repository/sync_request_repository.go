package repository

import (
	"context"

	"github.com/zoek1/web-1/internal/model"
	"gorm.io/gorm"
)

// SyncRequestRepository 同步队列
type SyncRequestRepository struct {
	db *gorm.DB
}

// NewSyncRequestRepository 创建同步队列仓储
func NewSyncRequestRepository(db *gorm.DB) *SyncRequestRepository {
	return &SyncRequestRepository{db: db}
}

// Enqueue 入队，同一编号未处理的请求只保留一条
func (r *SyncRequestRepository) Enqueue(ctx context.Context, req *model.BountySyncRequest) (bool, error) {
	var existing int64
	db := r.db.WithContext(ctx)
	if req.StandardBountiesId != 0 {
		if err := db.Model(&model.BountySyncRequest{}).
			Where("network = ? AND standard_bounties_id = ? AND processed = ?", req.Network, req.StandardBountiesId, false).
			Count(&existing).Error; err != nil {
			return false, err
		}
		if existing > 0 {
			return false, nil
		}
	}
	if err := db.Create(req).Error; err != nil {
		return false, err
	}
	return true, nil
}

// Unprocessed 待处理请求
func (r *SyncRequestRepository) Unprocessed(ctx context.Context, limit, maxAttempts int) ([]model.BountySyncRequest, error) {
	var out []model.BountySyncRequest
	err := r.db.WithContext(ctx).
		Where("processed = ? AND attempts < ?", false, maxAttempts).
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkProcessed 标记完成，lastError 为空表示成功
func (r *SyncRequestRepository) MarkProcessed(ctx context.Context, id int64, lastError string) error {
	return r.db.WithContext(ctx).Model(&model.BountySyncRequest{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "last_error": lastError}).Error
}

// MarkRetry 记录失败，下个周期重试
func (r *SyncRequestRepository) MarkRetry(ctx context.Context, id int64, lastError string) error {
	return r.db.WithContext(ctx).Model(&model.BountySyncRequest{}).Where("id = ?", id).
		Updates(map[string]interface{}{"attempts": gorm.Expr("attempts + 1"), "last_error": lastError}).Error
}
