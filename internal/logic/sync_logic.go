package logic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/zoek1/web-1/internal/chain"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/ipfs"
	"github.com/zoek1/web-1/internal/lifecycle"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
	"gorm.io/gorm"
)

// BountyReader 链上悬赏读取
type BountyReader interface {
	GetBounty(ctx context.Context, id int64, network string) (*chain.Snapshot, error)
	FindBountyID(ctx context.Context, network, githubURL string, from int64) (int64, bool, error)
}

// TxMinedChecker 交易是否已上链
type TxMinedChecker interface {
	HasTxMined(ctx context.Context, network, txid string) bool
}

// SyncResult sync_web3 的响应
type SyncResult struct {
	Status    int    `json:"status"`
	Msg       string `json:"msg"`
	DidChange bool   `json:"did_change"`
	URL       string `json:"url,omitempty"`
}

// SyncLogic 链上同步入口与同步队列
type SyncLogic struct {
	bounties   *repository.BountyRepository
	requests   *repository.SyncRequestRepository
	reconciler *BountyReconciler
	reader     BountyReader
	txs        TxMinedChecker
	cfg        config.SyncConfig
}

// NewSyncLogic 创建同步逻辑
func NewSyncLogic(db *gorm.DB, reconciler *BountyReconciler, reader BountyReader, txs TxMinedChecker, cfg config.SyncConfig) *SyncLogic {
	return &SyncLogic{
		bounties:   repository.NewBountyRepository(db),
		requests:   repository.NewSyncRequestRepository(db),
		reconciler: reconciler,
		reader:     reader,
		txs:        txs,
		cfg:        cfg,
	}
}

// GetBountyID 先查库，再扫描链上
func (l *SyncLogic) GetBountyID(ctx context.Context, githubURL, network string) (int64, bool, error) {
	url := lifecycle.NormalizeGithubURL(githubURL)
	id, ok, err := l.bounties.LatestStandardBountiesID(ctx, url, network)
	if err != nil {
		return 0, false, fmt.Errorf("查询悬赏编号失败: %w", err)
	}
	if ok {
		return id, true, nil
	}
	from, err := l.bounties.MaxStandardBountiesID(ctx, network)
	if err != nil {
		return 0, false, fmt.Errorf("查询最大悬赏编号失败: %w", err)
	}
	return l.reader.FindBountyID(ctx, network, url, from)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// syncFailure 将已知的链上与 IPFS 错误转换为响应，其余错误返回 nil
func syncFailure(err error) *SyncResult {
	switch {
	case errors.Is(err, chain.ErrBountyNotFound):
		return &SyncResult{Status: 404, Msg: "bounty not found"}
	case errors.Is(err, chain.ErrUnsupportedNetwork):
		return &SyncResult{Status: 400, Msg: "unsupported network"}
	case errors.Is(err, ipfs.ErrCantConnect):
		return &SyncResult{Status: 503, Msg: "bounty data unavailable, try again later"}
	}
	return nil
}

// SyncWeb3 交易上链后同步对应悬赏，直到出现变化或重试用尽
func (l *SyncLogic) SyncWeb3(ctx context.Context, githubURL, txid, network string) (*SyncResult, error) {
	if githubURL == "" || txid == "" || network == "" {
		return &SyncResult{Status: 400, Msg: "bad request"}, nil
	}
	if !l.txs.HasTxMined(ctx, network, txid) {
		return &SyncResult{Status: 400, Msg: "tx has not mined yet"}, nil
	}

	id, ok, err := l.GetBountyID(ctx, githubURL, network)
	if err != nil {
		if out := syncFailure(err); out != nil {
			return out, nil
		}
		return nil, err
	}
	if !ok {
		return &SyncResult{Status: 400, Msg: "could not find bounty id"}, nil
	}
	log := logger.ForBounty(network, id)

	retries := l.cfg.RetryCount
	if retries < 0 {
		retries = 0
	}
	var result *ReconcileResult
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, l.cfg.RetryDelay); err != nil {
				return nil, err
			}
		}
		snap, err := l.reader.GetBounty(ctx, id, network)
		if err != nil {
			if out := syncFailure(err); out != nil {
				log.Warn("sync_web3 read failed: %v", err)
				return out, nil
			}
			return nil, err
		}
		result, err = l.reconciler.Reconcile(ctx, snap)
		if err != nil {
			return nil, err
		}
		if result.DidChange {
			break
		}
		log.Debug("no change after attempt %d", attempt+1)
	}

	out := &SyncResult{Status: 200, Msg: "success", DidChange: result.DidChange}
	if result.New != nil {
		out.URL = l.reconciler.bounties.URL(result.New)
	}
	return out, nil
}

// SyncBounty 读取并同步单个悬赏
func (l *SyncLogic) SyncBounty(ctx context.Context, network string, id int64) (*ReconcileResult, error) {
	snap, err := l.reader.GetBounty(ctx, id, network)
	if err != nil {
		return nil, err
	}
	return l.reconciler.Reconcile(ctx, snap)
}

// Enqueue 新增同步请求
func (l *SyncLogic) Enqueue(ctx context.Context, req *model.BountySyncRequest) (bool, error) {
	if req.Network == "" || (req.StandardBountiesId == 0 && req.GithubURL == "") {
		return false, ErrInvalidSyncRequest
	}
	req.GithubURL = lifecycle.NormalizeGithubURL(req.GithubURL)
	added, err := l.requests.Enqueue(ctx, req)
	if err != nil {
		return false, fmt.Errorf("写入同步请求失败: %w", err)
	}
	return added, nil
}

// ProcessQueue 处理一批同步请求，返回处理条数
func (l *SyncLogic) ProcessQueue(ctx context.Context) (int, error) {
	batch, err := l.requests.Unprocessed(ctx, l.cfg.BatchSize, l.cfg.MaxAttempt)
	if err != nil {
		return 0, fmt.Errorf("获取同步请求失败: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	size := l.cfg.PoolSize
	if size <= 0 || size > len(batch) {
		size = len(batch)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return 0, fmt.Errorf("创建协程池失败: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range batch {
		req := batch[i]
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			l.processRequest(ctx, &req)
		}); err != nil {
			wg.Done()
			logger.Error("submit sync request %d: %v", req.Id, err)
		}
	}
	wg.Wait()
	return len(batch), nil
}

func (l *SyncLogic) processRequest(ctx context.Context, req *model.BountySyncRequest) {
	id := req.StandardBountiesId
	if id == 0 {
		found, ok, err := l.GetBountyID(ctx, req.GithubURL, req.Network)
		if err != nil {
			l.retry(ctx, req, err)
			return
		}
		if !ok {
			l.finish(ctx, req, ErrBountyNotFound.Error())
			return
		}
		id = found
	}

	_, err := l.SyncBounty(ctx, req.Network, id)
	switch {
	case err == nil:
		l.finish(ctx, req, "")
	case errors.Is(err, chain.ErrBountyNotFound), errors.Is(err, ErrBountyNotFound):
		logger.ForBounty(req.Network, id).Warn("bounty not found, dropping request %d", req.Id)
		l.finish(ctx, req, err.Error())
	default:
		l.retry(ctx, req, err)
	}
}

func (l *SyncLogic) finish(ctx context.Context, req *model.BountySyncRequest, lastError string) {
	if err := l.requests.MarkProcessed(ctx, req.Id, lastError); err != nil {
		logger.Error("mark sync request %d processed: %v", req.Id, err)
	}
}

func (l *SyncLogic) retry(ctx context.Context, req *model.BountySyncRequest, cause error) {
	logger.Warn("sync request %d failed (attempt %d): %v", req.Id, req.Attempts+1, cause)
	if err := l.requests.MarkRetry(ctx, req.Id, cause.Error()); err != nil {
		logger.Error("mark sync request %d for retry: %v", req.Id, err)
	}
}
