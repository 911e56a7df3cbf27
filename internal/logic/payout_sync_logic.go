package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/event"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
)

// TxStatusChecker 查询交易状态
type TxStatusChecker interface {
	TxStatus(ctx context.Context, network, txid string, createdOn, now time.Time) (string, error)
}

// PayoutSyncLogic 确认待处理的打款
type PayoutSyncLogic struct {
	bounties *BountyLogic
	repo     *repository.BountyRepository
	profiles *repository.ProfileRepository
	payouts  *PayoutLogic
	txs      TxStatusChecker
	bus      *event.Bus
	cfg      config.PayoutSyncConfig
}

// NewPayoutSyncLogic 创建打款同步逻辑
func NewPayoutSyncLogic(bounties *BountyLogic, payouts *PayoutLogic, txs TxStatusChecker, bus *event.Bus, cfg config.PayoutSyncConfig) *PayoutSyncLogic {
	return &PayoutSyncLogic{
		bounties: bounties,
		repo:     repository.NewBountyRepository(bounties.db),
		profiles: repository.NewProfileRepository(bounties.db),
		payouts:  payouts,
		txs:      txs,
		bus:      bus,
		cfg:      cfg,
	}
}

// SyncPending 处理全部待确认打款，返回状态发生变化的条数
func (l *PayoutSyncLogic) SyncPending(ctx context.Context) (int, error) {
	pending, err := l.repo.PendingPayouts(ctx, []string{model.PayoutTypeWeb3Modal, model.PayoutTypeQR})
	if err != nil {
		return 0, fmt.Errorf("获取待确认打款失败: %w", err)
	}
	changed := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		before := pending[i].PayoutStatus
		if err := l.SyncOne(ctx, &pending[i]); err != nil {
			logger.Warn("sync payout of fulfillment %d: %v", pending[i].Id, err)
			continue
		}
		if pending[i].PayoutStatus != before {
			changed++
		}
	}
	return changed, nil
}

// SyncOne 按打款方式确认单条打款
func (l *PayoutSyncLogic) SyncOne(ctx context.Context, f *model.BountyFulfillment) error {
	if f.PayoutStatus != model.PayoutStatusPending {
		return nil
	}
	now := l.bounties.now()

	switch f.PayoutType {
	case model.PayoutTypeQR:
		if now.Sub(f.UpdatedAt) > l.cfg.QRExpiry {
			return l.expire(ctx, f)
		}
		return nil
	case model.PayoutTypeWeb3Modal:
	default:
		return nil
	}

	if f.PayoutTxId == "" {
		return nil
	}
	b, err := l.bounties.Load(ctx, f.BountyId)
	if err != nil {
		return err
	}
	status, err := l.txs.TxStatus(ctx, b.Network, f.PayoutTxId, f.UpdatedAt, now)
	if err != nil {
		return fmt.Errorf("查询交易状态失败: %w", err)
	}

	switch status {
	case model.TxStatusSuccess:
		return l.complete(ctx, b, f, now)
	case model.TxStatusError, model.TxStatusDropped:
		return l.expire(ctx, f)
	default:
		return nil
	}
}

func (l *PayoutSyncLogic) expire(ctx context.Context, f *model.BountyFulfillment) error {
	f.PayoutStatus = model.PayoutStatusExpired
	if err := l.repo.SaveFulfillment(ctx, f); err != nil {
		return fmt.Errorf("保存提交失败: %w", err)
	}
	logger.Info("payout of fulfillment %d expired", f.Id)
	return nil
}

func (l *PayoutSyncLogic) complete(ctx context.Context, b *model.Bounty, f *model.BountyFulfillment, now time.Time) error {
	f.PayoutStatus = model.PayoutStatusDone
	f.Accepted = true
	f.AcceptedOn = &now
	if err := l.repo.SaveFulfillment(ctx, f); err != nil {
		return fmt.Errorf("保存提交失败: %w", err)
	}
	logger.ForBounty(b.Network, b.StandardBountiesId).Info("payout of fulfillment %d confirmed", f.Id)

	var fulfiller *model.Profile
	if f.ProfileId != nil {
		fulfiller, _ = l.profiles.Get(ctx, *f.ProfileId)
	}
	l.bounties.RecordActivity(ctx, b, fulfiller, model.ActivityPaymentReceived, nil)

	if _, _, err := l.payouts.Record(ctx, SourceRef{Kind: SourceFulfillment, ID: f.Id}); err != nil {
		logger.Warn("record earning for fulfillment %d: %v", f.Id, err)
	}
	l.bus.Publish(ctx, event.FulfillmentAccepted{Bounty: b, Fulfillment: f})
	return nil
}
