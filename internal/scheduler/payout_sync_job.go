package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/zoek1/web-1/internal/logger"
)

// PendingPayoutSyncer 待确认的打款
type PendingPayoutSyncer interface {
	SyncPending(ctx context.Context) (int, error)
}

// PayoutSyncJob 检查待确认打款的交易状态
type PayoutSyncJob struct {
	payouts  PendingPayoutSyncer
	interval time.Duration
}

// NewPayoutSyncJob 创建打款同步任务
func NewPayoutSyncJob(payouts PendingPayoutSyncer, interval time.Duration) *PayoutSyncJob {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &PayoutSyncJob{payouts: payouts, interval: interval}
}

// GetName 获取任务名称
func (j *PayoutSyncJob) GetName() string {
	return "payout_sync_job"
}

// GetSchedule 获取调度配置
func (j *PayoutSyncJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *PayoutSyncJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	synced, err := j.payouts.SyncPending(ctx)
	if err != nil {
		logger.Error("Payout sync job failed: %v", err)
		return
	}
	if synced > 0 {
		logger.Info("Payout sync job synced %d fulfillments", synced)
	}
}
