package event

import (
	"context"
	"sync"

	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
)

// 领域事件类型
const (
	TypeBountyCreated       = "bounty_created"
	TypeBountyRevised       = "bounty_revised"
	TypeBountyCancelled     = "bounty_cancelled"
	TypeBountyClosed        = "bounty_closed"
	TypeInterestClaimed     = "interest_claimed"
	TypeInterestApproved    = "interest_approved"
	TypeInterestRemoved     = "interest_removed"
	TypeFulfillmentAccepted = "fulfillment_accepted"
)

// Event 领域事件，在事务提交后发布
type Event interface {
	Type() string
}

// BountyRevised 悬赏被保存，Previous 为被取代的修订
type BountyRevised struct {
	Bounty   *model.Bounty
	Previous *model.Bounty
}

func (BountyRevised) Type() string { return TypeBountyRevised }

// BountyCreated 新建悬赏
type BountyCreated struct {
	Bounty *model.Bounty
}

func (BountyCreated) Type() string { return TypeBountyCreated }

// BountyCancelled 悬赏被取消
type BountyCancelled struct {
	Bounty *model.Bounty
	Reason string
}

func (BountyCancelled) Type() string { return TypeBountyCancelled }

// BountyClosed 悬赏完成
type BountyClosed struct {
	Bounty *model.Bounty
}

func (BountyClosed) Type() string { return TypeBountyClosed }

// InterestClaimed 用户认领或申请
type InterestClaimed struct {
	Bounty   *model.Bounty
	Interest *model.Interest
}

func (InterestClaimed) Type() string { return TypeInterestClaimed }

// InterestApproved 申请被批准（含自动批准）
type InterestApproved struct {
	Bounty   *model.Bounty
	Interest *model.Interest
	Auto     bool
}

func (InterestApproved) Type() string { return TypeInterestApproved }

// InterestRemoved 申请被移除
type InterestRemoved struct {
	Bounty   *model.Bounty
	Interest *model.Interest
	Reason   string
}

func (InterestRemoved) Type() string { return TypeInterestRemoved }

// FulfillmentAccepted 提交被接受
type FulfillmentAccepted struct {
	Bounty      *model.Bounty
	Fulfillment *model.BountyFulfillment
}

func (FulfillmentAccepted) Type() string { return TypeFulfillmentAccepted }

// Subscriber 事件订阅者
type Subscriber interface {
	Name() string
	EventTypes() []string
	Handle(ctx context.Context, e Event) error
}

// Bus 同步事件总线，订阅者失败只记录日志
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
}

// NewBus 创建事件总线
func NewBus(subscribers ...Subscriber) *Bus {
	b := &Bus{subscribers: make(map[string][]Subscriber)}
	for _, s := range subscribers {
		b.Subscribe(s)
	}
	return b
}

// Subscribe 注册订阅者
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range s.EventTypes() {
		b.subscribers[t] = append(b.subscribers[t], s)
	}
	logger.Info("Registered subscriber %s for %v", s.Name(), s.EventTypes())
}

// Publish 发布事件，nil 总线忽略
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil || e == nil {
		return
	}
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers[e.Type()]...)
	b.mu.RUnlock()

	for _, s := range subs {
		dispatch(ctx, s, e)
	}
}

func dispatch(ctx context.Context, s Subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("subscriber %s panicked on %s: %v", s.Name(), e.Type(), r)
		}
	}()
	if err := s.Handle(ctx, e); err != nil {
		logger.Warn("subscriber %s failed on %s: %v", s.Name(), e.Type(), err)
	}
}
