package repository

import (
	"context"

	"github.com/zoek1/web-1/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegistryLogRepository 合约日志游标
type RegistryLogRepository struct {
	db *gorm.DB
}

// NewRegistryLogRepository 创建合约日志仓储
func NewRegistryLogRepository(db *gorm.DB) *RegistryLogRepository {
	return &RegistryLogRepository{db: db}
}

// LastBlock 网络上已处理的最大区块号，没有记录时为 0
func (r *RegistryLogRepository) LastBlock(ctx context.Context, network string) (uint64, error) {
	var maxBlock int64
	err := r.db.WithContext(ctx).Model(&model.RegistryLog{}).
		Where("network = ?", network).
		Select("COALESCE(MAX(block_num), 0)").
		Scan(&maxBlock).Error
	if err != nil {
		return 0, err
	}
	return uint64(maxBlock), nil
}

// Record 保存日志，同一位置的日志只记录一次，返回是否新增
func (r *RegistryLogRepository) Record(ctx context.Context, log *model.RegistryLog) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(log)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
