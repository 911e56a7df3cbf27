package logic

import (
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/event"
	"gorm.io/gorm"
)

// TxChecker 交易上链与状态查询
type TxChecker interface {
	TxMinedChecker
	TxStatusChecker
}

// Services 组装好的业务逻辑，供 handler、定时任务与命令行共用
type Services struct {
	DB         *gorm.DB
	Bus        *event.Bus
	Conversion *ConversionLogic
	Bounties   *BountyLogic
	Payouts    *PayoutLogic
	PayoutSync *PayoutSyncLogic
	Interests  *InterestLogic
	Moderation *ModerationLogic
	Reconciler *BountyReconciler
	Sync       *SyncLogic
	V1         *V1Logic
}

// NewServices 按配置组装业务逻辑
func NewServices(db *gorm.DB, bus *event.Bus, cfg *config.Config, reader BountyReader, txs TxChecker) *Services {
	baseURL := cfg.Server.BaseURL
	conv := NewConversionLogic(db)
	valuer := NewValuer(conv)
	bounties := NewBountyLogic(db, valuer, bus, baseURL)
	payouts := NewPayoutLogic(db, valuer, baseURL)
	payoutSync := NewPayoutSyncLogic(bounties, payouts, txs, bus, cfg.PayoutSync)
	reconciler := NewBountyReconciler(db, bounties, payouts, bus, cfg.Environment(), cfg.Sync.LockTTL)

	return &Services{
		DB:         db,
		Bus:        bus,
		Conversion: conv,
		Bounties:   bounties,
		Payouts:    payouts,
		PayoutSync: payoutSync,
		Interests:  NewInterestLogic(db, bounties, bus),
		Moderation: NewModerationLogic(bounties, cfg.Remarket),
		Reconciler: reconciler,
		Sync:       NewSyncLogic(db, reconciler, reader, txs, cfg.Sync),
		V1:         NewV1Logic(db, bounties, payoutSync, bus),
	}
}
