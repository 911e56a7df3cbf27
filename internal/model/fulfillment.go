package model

import "time"

// BountyFulfillment 工作提交
type BountyFulfillment struct {
	Id        int64     `json:"pk" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_on"`
	UpdatedAt time.Time `json:"modified_on"`

	BountyId      int64 `json:"bounty_id" gorm:"not null;index"`
	FulfillmentId *int  `json:"fulfillment_id"` // 链上编号，非链上提交为空

	FulfillerAddress        string                 `json:"fulfiller_address"`
	FulfillerEmail          string                 `json:"-"`
	FulfillerGithubUsername string                 `json:"fulfiller_github_username" gorm:"index"`
	FulfillerName           string                 `json:"fulfiller_name"`
	FulfillerMetadata       map[string]interface{} `json:"fulfiller_metadata" gorm:"serializer:json;type:text"`
	FulfillerGithubURL      string                 `json:"fulfiller_github_url"`
	HoursWorked             *float64               `json:"fulfiller_hours_worked"`
	ProfileId               *int64                 `json:"profile_id" gorm:"index"`

	Accepted   bool       `json:"accepted"`
	AcceptedOn *time.Time `json:"accepted_on"`

	PayoutStatus string   `json:"payout_status" gorm:"size:10"`
	PayoutTxId   string   `json:"payout_tx_id"`
	PayoutAmount *float64 `json:"payout_amount"`
	PayoutType   string   `json:"payout_type" gorm:"size:20"`
	TokenName    string   `json:"token_name"`

	FunderLastNotifiedOn *time.Time `json:"-"`
}

// TableName 自定义表名
func (BountyFulfillment) TableName() string {
	return "bounty_fulfillment"
}

// 打款状态
const (
	PayoutStatusPending = "pending"
	PayoutStatusDone    = "done"
	PayoutStatusExpired = "expired"
)

// 打款方式
const (
	PayoutTypeWeb3Modal = "web3_modal"
	PayoutTypeQR        = "qr"
	PayoutTypePolkadot  = "polkadot_ext"
)
