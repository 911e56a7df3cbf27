package scheduler

import (
	"github.com/go-co-op/gocron/v2"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/logic"
)

// Job 周期任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	jobs      []Job
}

// NewManager 创建新的任务管理器
func NewManager() (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Manager{scheduler: s}, nil
}

// Start 创建任务管理器，注册任务并启动
func Start(svc *logic.Services, cfg *config.Config) (*Manager, error) {
	manager, err := NewManager()
	if err != nil {
		return nil, err
	}

	// 注册所有任务
	manager.RegisterJobs(svc, cfg)

	// 启动调度器
	manager.scheduler.Start()

	logger.Info("Task manager started with %d jobs", len(manager.jobs))
	return manager, nil
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs(svc *logic.Services, cfg *config.Config) {
	m.Register(NewBountySyncJob(svc.Sync, cfg.Sync.Interval))
	m.Register(NewPayoutSyncJob(svc.PayoutSync, cfg.PayoutSync.Interval))
}

// Register 注册单个任务，同名任务运行中时顺延
func (m *Manager) Register(job Job) {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
		return
	}
	m.jobs = append(m.jobs, job)
}

// Jobs 已注册的任务名
func (m *Manager) Jobs() []string {
	names := make([]string, 0, len(m.jobs))
	for _, j := range m.jobs {
		names = append(names, j.GetName())
	}
	return names
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
