package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/zoek1/web-1/internal/logger"
)

const defaultInterval = time.Minute

// QueueProcessor 同步队列消费
type QueueProcessor interface {
	ProcessQueue(ctx context.Context) (int, error)
}

// BountySyncJob 消费悬赏同步队列
type BountySyncJob struct {
	queue    QueueProcessor
	interval time.Duration
}

// NewBountySyncJob 创建悬赏同步任务
func NewBountySyncJob(queue QueueProcessor, interval time.Duration) *BountySyncJob {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &BountySyncJob{queue: queue, interval: interval}
}

// GetName 获取任务名称
func (j *BountySyncJob) GetName() string {
	return "bounty_sync_job"
}

// GetSchedule 获取调度配置
func (j *BountySyncJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *BountySyncJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	processed, err := j.queue.ProcessQueue(ctx)
	if err != nil {
		logger.Error("Bounty sync job failed: %v", err)
		return
	}
	if processed > 0 {
		logger.Info("Bounty sync job processed %d requests", processed)
	}
}
