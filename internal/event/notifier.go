package event

import (
	"context"

	"github.com/zoek1/web-1/internal/lifecycle"
	"github.com/zoek1/web-1/internal/logger"
	"go.uber.org/zap"
)

// Notifier 营销/通知出口，实际投递由外部渠道消费日志完成
type Notifier struct {
	baseURL string
}

// NewNotifier 创建通知订阅者
func NewNotifier(baseURL string) *Notifier {
	return &Notifier{baseURL: baseURL}
}

func (n *Notifier) Name() string { return "notifier" }

func (n *Notifier) EventTypes() []string {
	return []string{
		TypeBountyCreated, TypeBountyCancelled, TypeBountyClosed,
		TypeInterestClaimed, TypeInterestApproved, TypeInterestRemoved,
		TypeFulfillmentAccepted,
	}
}

func (n *Notifier) Handle(ctx context.Context, e Event) error {
	fields := []zap.Field{zap.String("event", e.Type())}

	switch ev := e.(type) {
	case BountyCreated:
		fields = append(fields, zap.Int64("bounty_id", ev.Bounty.Id), zap.String("url", lifecycle.AbsoluteURL(n.baseURL, ev.Bounty)))
	case BountyCancelled:
		fields = append(fields, zap.Int64("bounty_id", ev.Bounty.Id), zap.String("reason", ev.Reason))
	case BountyClosed:
		fields = append(fields, zap.Int64("bounty_id", ev.Bounty.Id))
	case InterestClaimed:
		fields = append(fields, zap.Int64("bounty_id", ev.Bounty.Id), zap.Int64("profile_id", ev.Interest.ProfileId),
			zap.Bool("pending", ev.Interest.Pending))
	case InterestApproved:
		fields = append(fields, zap.Int64("bounty_id", ev.Bounty.Id), zap.Int64("profile_id", ev.Interest.ProfileId),
			zap.Bool("auto", ev.Auto))
	case InterestRemoved:
		fields = append(fields, zap.Int64("bounty_id", ev.Bounty.Id), zap.Int64("profile_id", ev.Interest.ProfileId),
			zap.String("reason", ev.Reason))
	case FulfillmentAccepted:
		fields = append(fields, zap.Int64("bounty_id", ev.Bounty.Id), zap.Int64("fulfillment_id", ev.Fulfillment.Id))
	}

	logger.With(fields...).Info("notify %s", lifecycle.HumanizeEventName(e.Type()))
	return nil
}
