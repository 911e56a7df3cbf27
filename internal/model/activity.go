package model

import "time"

// Activity 动态流
type Activity struct {
	Id           int64                  `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time              `json:"created"`
	ActivityType string                 `json:"activity_type" gorm:"size:50;index"`
	BountyId     *int64                 `json:"bounty_id" gorm:"index"`
	ProfileId    *int64                 `json:"profile_id" gorm:"index"`
	Metadata     map[string]interface{} `json:"metadata" gorm:"serializer:json;type:text"`
	NeedsReview  bool                   `json:"needs_review"`
}

// TableName 自定义表名
func (Activity) TableName() string {
	return "activity"
}

// 动态类型
const (
	ActivityNewBounty        = "new_bounty"
	ActivityStartWork        = "start_work"
	ActivityStopWork         = "stop_work"
	ActivityWorkSubmitted    = "work_submitted"
	ActivityWorkDone         = "work_done"
	ActivityWorkerApplied    = "worker_applied"
	ActivityWorkerApproved   = "worker_approved"
	ActivityWorkerRejected   = "worker_rejected"
	ActivityKilledBounty     = "killed_bounty"
	ActivityIncreasedBounty  = "increased_bounty"
	ActivityExtendExpiration = "extend_expiration"
	ActivityPaymentReceived  = "payment_received"
	ActivityBountyAbandoned  = "bounty_abandonment_escalation_to_mods"
)

// UserAction 用户行为审计
type UserAction struct {
	Id        int64 `gorm:"primaryKey"`
	CreatedAt time.Time
	Action    string                 `gorm:"size:50;index"`
	ProfileId *int64                 `gorm:"index"`
	Metadata  map[string]interface{} `gorm:"serializer:json;type:text"`
}

// TableName 自定义表名
func (UserAction) TableName() string {
	return "user_action"
}

// 用户行为
const (
	ActionStartWork                   = "start_work"
	ActionStopWork                    = "stop_work"
	ActionBountyRemovedByFunder       = "bounty_removed_by_funder"
	ActionBountyRemovedByStaff        = "bounty_removed_by_staff"
	ActionBountyRemovedSlashedByStaff = "bounty_removed_slashed_by_staff"
)

// BountyEvent 驱动状态机的事件
type BountyEvent struct {
	Id          int64                  `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time              `json:"created_on"`
	BountyId    int64                  `json:"bounty_id" gorm:"not null;index"`
	CreatedById *int64                 `json:"created_by_id"`
	EventType   string                 `json:"event_type" gorm:"size:50"`
	Metadata    map[string]interface{} `json:"metadata" gorm:"serializer:json;type:text"`
}

// TableName 自定义表名
func (BountyEvent) TableName() string {
	return "bounty_event"
}

// 事件类型
const (
	EventAcceptWorker     = "accept_worker"
	EventCancelBounty     = "cancel_bounty"
	EventSubmitWork       = "submit_work"
	EventStopWork         = "stop_work"
	EventExpressInterest  = "express_interest"
	EventPayoutBounty     = "payout_bounty"
	EventExpireBounty     = "expire_bounty"
	EventExtendExpiration = "extend_expiration"
	EventCloseBounty      = "close_bounty"
)
