package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrLockTimeout 等待锁超时
var ErrLockTimeout = errors.New("timed out waiting for lock")

// Semaphore 基于数据库的命名锁，跨进程有效
type Semaphore struct {
	db       *gorm.DB
	interval time.Duration
}

// NewSemaphore 创建命名锁
func NewSemaphore(db *gorm.DB) *Semaphore {
	return &Semaphore{db: db, interval: 100 * time.Millisecond}
}

// BountyLockNamespace 链上悬赏的锁名
func BountyLockNamespace(standardBountiesID int64, salt string) string {
	return fmt.Sprintf("bounty_%d_%s", standardBountiesID, salt)
}

// TryAcquire 尝试获取一次，过期的持有者会被清除
func (s *Semaphore) TryAcquire(ctx context.Context, namespace string, ttl time.Duration) (func(), bool, error) {
	db := s.db.WithContext(ctx)
	now := time.Now()

	if err := db.Where("namespace = ? AND expires_at < ?", namespace, now).Delete(&model.Semaphore{}).Error; err != nil {
		return nil, false, err
	}

	owner := uuid.NewString()
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Semaphore{
		Namespace: namespace,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
	})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}

	release := func() {
		// 只释放自己持有的锁，失败时等待过期
		if err := s.db.Where("namespace = ? AND owner = ?", namespace, owner).Delete(&model.Semaphore{}).Error; err != nil {
			logger.Warn("Failed to release semaphore %s: %v", namespace, err)
		}
	}
	return release, true, nil
}

// Acquire 阻塞直到获取锁或 ctx 结束
func (s *Semaphore) Acquire(ctx context.Context, namespace string, ttl time.Duration) (func(), error) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		release, ok, err := s.TryAcquire(ctx, namespace, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, namespace)
		case <-ticker.C:
		}
	}
}
