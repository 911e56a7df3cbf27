package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/panjf2000/ants/v2"
	"github.com/zoek1/web-1/internal/chain"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
	"gorm.io/gorm"
)

// batchPause 两个区块批次之间的间隔，避免触发节点限流
const batchPause = 500 * time.Millisecond

// NetworkSource 已连接的网络
type NetworkSource interface {
	Networks() []string
	Backend(name string) (chain.Backend, error)
	RegistryAddress(name string) (common.Address, error)
	StartBlock(name string) uint64
}

// Enqueuer 同步队列
type Enqueuer interface {
	Enqueue(ctx context.Context, req *model.BountySyncRequest) (bool, error)
}

// RegistryMonitor StandardBounties 合约日志监控器，发现变化的悬赏后加入同步队列
type RegistryMonitor struct {
	chains          NetworkSource
	logs            *repository.RegistryLogRepository
	queue           Enqueuer
	cfg             config.MonitorConfig
	env             config.Environment
	cursors         map[string]uint64 // 每个网络下一个待处理区块
	ctx             context.Context
	cancel          context.CancelFunc
	retryCount      int           // 重试次数
	lastRetryTime   time.Time     // 上次重试时间
	backoffDuration time.Duration // 退避时间
	mu              sync.RWMutex  // 保护 cursors 与退避状态
}

// NewRegistryMonitor 创建合约日志监控器
func NewRegistryMonitor(chains NetworkSource, db *gorm.DB, queue Enqueuer, cfg config.MonitorConfig, env config.Environment) *RegistryMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 500
	}

	return &RegistryMonitor{
		chains:  chains,
		logs:    repository.NewRegistryLogRepository(db),
		queue:   queue,
		cfg:     cfg,
		env:     env,
		cursors: make(map[string]uint64),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 启动监控
func (m *RegistryMonitor) Start() error {
	logger.Info("Starting registry log monitor")

	networks := m.networks()
	if len(networks) == 0 {
		return fmt.Errorf("no networks available for monitoring")
	}
	for _, name := range networks {
		start, err := m.startBlock(m.ctx, name)
		if err != nil {
			return fmt.Errorf("failed to determine start block for %s: %w", name, err)
		}
		m.setCursor(name, start)
		logger.Info("Monitoring %s from block %d", name, start)
	}

	go m.loop()
	return nil
}

// Stop 停止监控
func (m *RegistryMonitor) Stop() {
	logger.Info("Stopping registry log monitor")
	m.cancel()
}

// networks 受环境限制后需要监控的网络
func (m *RegistryMonitor) networks() []string {
	var out []string
	for _, name := range m.chains.Networks() {
		if m.env.Suppresses(name) {
			logger.Info("Skipping suppressed network %s", name)
			continue
		}
		out = append(out, name)
	}
	return out
}

// loop 监控循环
func (m *RegistryMonitor) loop() {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			logger.Info("Monitor stopped")
			return
		case <-ticker.C:
			if m.backingOff() {
				continue
			}
			if err := m.Poll(m.ctx); err != nil {
				logger.Error("Error processing registry logs: %v", err)
				m.handleError(err)
				continue
			}
			m.resetErrors()
		}
	}
}

// Poll 处理所有网络上的新区块
func (m *RegistryMonitor) Poll(ctx context.Context) error {
	for _, name := range m.networks() {
		backend, err := m.chains.Backend(name)
		if err != nil {
			return err
		}
		registry, err := m.chains.RegistryAddress(name)
		if err != nil {
			return err
		}
		current, err := chain.CurrentBlockNumber(ctx, backend)
		if err != nil {
			return fmt.Errorf("failed to get current block number on %s: %w", name, err)
		}

		from, ok := m.cursor(name)
		if !ok {
			if from, err = m.startBlock(ctx, name); err != nil {
				return err
			}
		}
		if from > current {
			logger.Debug("No new blocks on %s (next %d, head %d)", name, from, current)
			continue
		}
		if err := m.processBlocksInBatches(ctx, name, backend, registry, from, current); err != nil {
			return err
		}
	}
	return nil
}

// startBlock 配置的起始区块与已处理区块的较大者
func (m *RegistryMonitor) startBlock(ctx context.Context, name string) (uint64, error) {
	configured := m.chains.StartBlock(name)
	processed, err := m.logs.LastBlock(ctx, name)
	if err != nil {
		return 0, err
	}
	if processed >= configured && processed > 0 {
		return processed + 1, nil
	}
	return configured, nil
}

// processBlocksInBatches 分批处理区块
func (m *RegistryMonitor) processBlocksInBatches(ctx context.Context, name string, backend chain.Backend, registry common.Address, fromBlock, toBlock uint64) error {
	logger.Debug("Processing %s blocks from %d to %d", name, fromBlock, toBlock)

	for currentFrom := fromBlock; currentFrom <= toBlock; currentFrom += m.cfg.BatchSize {
		currentTo := currentFrom + m.cfg.BatchSize - 1
		if currentTo > toBlock {
			currentTo = toBlock
		}

		logs, err := chain.FilterRegistryLogs(ctx, backend, registry, currentFrom, currentTo)
		if err != nil {
			if isAPIRateLimitError(err) {
				logger.Error("API rate limit hit while processing %s blocks %d-%d: %v", name, currentFrom, currentTo, err)
				return err
			}
			return fmt.Errorf("error getting logs for %s blocks %d-%d: %w", name, currentFrom, currentTo, err)
		}
		if err := m.processLogs(ctx, name, registry, logs); err != nil {
			return err
		}

		// 更新游标
		m.setCursor(name, currentTo+1)

		if currentTo < toBlock {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(batchPause):
			}
		}
	}
	return nil
}

// processLogs 按悬赏编号分组，使用临时协程池并发入队
func (m *RegistryMonitor) processLogs(ctx context.Context, name string, registry common.Address, logs []types.Log) error {
	if len(logs) == 0 {
		return nil
	}
	byBounty := make(map[int64][]*chain.RegistryEvent)
	for _, l := range logs {
		ev, err := chain.ParseRegistryEvent(l)
		if err != nil {
			logger.Warn("Skipping unparseable %s log in tx %s: %v", name, l.TxHash.Hex(), err)
			continue
		}
		byBounty[ev.BountyID] = append(byBounty[ev.BountyID], ev)
	}
	if len(byBounty) == 0 {
		return nil
	}
	logger.Debug("Found %d registry logs touching %d bounties on %s", len(logs), len(byBounty), name)

	tempPool, err := ants.NewPool(len(byBounty))
	if err != nil {
		return fmt.Errorf("failed to create temporary pool for %d bounties: %w", len(byBounty), err)
	}
	defer tempPool.Release()

	var wg sync.WaitGroup
	for id, events := range byBounty {
		id, events := id, events
		wg.Add(1)
		if err := tempPool.Submit(func() {
			defer wg.Done()
			m.processBountyEvents(ctx, name, registry, id, events)
		}); err != nil {
			wg.Done()
			logger.Error("Failed to submit task to pool: %v", err)
		}
	}
	wg.Wait()
	return nil
}

// processBountyEvents 记录日志，有新日志时将悬赏加入同步队列
func (m *RegistryMonitor) processBountyEvents(ctx context.Context, name string, registry common.Address, id int64, events []*chain.RegistryEvent) {
	log := logger.ForBounty(name, id)
	fresh := false
	var txid string
	for _, ev := range events {
		added, err := m.logs.Record(ctx, &model.RegistryLog{
			Network:            name,
			ContractAddress:    registry.Hex(),
			EventName:          ev.Name,
			StandardBountiesId: id,
			TxHash:             ev.TxHash,
			BlockNum:           int64(ev.BlockNumber),
			LogIndex:           int64(ev.LogIndex),
		})
		if err != nil {
			log.Error("Failed to record %s log: %v", ev.Name, err)
			continue
		}
		if added {
			fresh = true
			txid = ev.TxHash
		}
	}
	if !fresh {
		return
	}
	if id == 0 {
		log.Warn("Registry bounty 0 cannot be queued by id, sync it by url")
		return
	}

	queued, err := m.queue.Enqueue(ctx, &model.BountySyncRequest{
		Network:            name,
		StandardBountiesId: id,
		Txid:               txid,
	})
	if err != nil {
		log.Error("Failed to enqueue sync request: %v", err)
		return
	}
	log.Debug("Processed %d events, queued=%v", len(events), queued)
}

func (m *RegistryMonitor) cursor(name string) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.cursors[name]
	return v, ok
}

func (m *RegistryMonitor) setCursor(name string, block uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[name] = block
}

// handleError 处理错误
func (m *RegistryMonitor) handleError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount++
	m.lastRetryTime = time.Now()

	// 指数退避
	if m.retryCount > 5 {
		m.backoffDuration = time.Minute * 5 // 最大退避时间5分钟
	} else {
		m.backoffDuration = time.Duration(m.retryCount) * time.Second * 10
	}

	logger.Error("Monitor encountered error (retry %d, backoff %s): %v", m.retryCount, m.backoffDuration, err)
}

func (m *RegistryMonitor) resetErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount = 0
	m.backoffDuration = 0
}

func (m *RegistryMonitor) backingOff() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backoffDuration > 0 && time.Since(m.lastRetryTime) < m.backoffDuration
}

// GetStatus 获取监控状态
func (m *RegistryMonitor) GetStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cursors := make(map[string]uint64, len(m.cursors))
	for k, v := range m.cursors {
		cursors[k] = v
	}
	return map[string]interface{}{
		"cursors":     cursors,
		"retry_count": m.retryCount,
		"backoff":     m.backoffDuration.String(),
	}
}

// GetStatusJSON 获取监控状态的JSON格式
func (m *RegistryMonitor) GetStatusJSON() (string, error) {
	jsonData, err := json.MarshalIndent(m.GetStatus(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal monitor status: %w", err)
	}
	return string(jsonData), nil
}

// isAPIRateLimitError 检查是否为API限制错误
func isAPIRateLimitError(err error) bool {
	return strings.Contains(err.Error(), "Too Many Requests")
}
