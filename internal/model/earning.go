package model

import "time"

// Tip 打赏
type Tip struct {
	Id                   int64     `json:"id" gorm:"primaryKey"`
	CreatedAt            time.Time `json:"created_on"`
	UpdatedAt            time.Time `json:"-"`
	GithubURL            string    `json:"github_url" gorm:"index"`
	Network              string    `json:"network"`
	SenderProfileId      *int64    `json:"sender_profile_id"`
	RecipientProfileId   *int64    `json:"recipient_profile_id"`
	OrgProfileId         *int64    `json:"org_profile_id"`
	Username             string    `json:"username"`
	FromUsername         string    `json:"from_username"`
	TokenName            string    `json:"token_name"`
	Amount               float64   `json:"amount"`
	ValueTrue            float64   `json:"value_true"`
	ValueInUsdtThen      *float64  `json:"value_in_usdt_then"`
	Txid                 string    `json:"txid"`
	TxStatus             string    `json:"tx_status"`
	IsForBountyFulfiller bool      `json:"is_for_bounty_fulfiller"`
}

// TableName 自定义表名
func (Tip) TableName() string {
	return "tip"
}

// 交易状态
const (
	TxStatusPending = "pending"
	TxStatusSuccess = "success"
	TxStatusError   = "error"
	TxStatusDropped = "dropped"
	TxStatusUnknown = "unknown"
)

// Earning 收入记录，每个来源最多一条
type Earning struct {
	Id            int64     `json:"id" gorm:"primaryKey"`
	CreatedAt     time.Time `json:"created_on"`
	UpdatedAt     time.Time `json:"-"`
	SourceType    string    `json:"source_type" gorm:"size:32;not null;uniqueIndex:idx_earning_source"`
	SourceId      int64     `json:"source_id" gorm:"not null;uniqueIndex:idx_earning_source"`
	FromProfileId *int64    `json:"from_profile_id"`
	ToProfileId   *int64    `json:"to_profile_id"`
	OrgProfileId  *int64    `json:"org_profile_id"`
	ValueUsd      *float64  `json:"value_usd"`
	Network       string    `json:"network"`
	URL           string    `json:"url"`
	Txid          string    `json:"txid"`
	TokenName     string    `json:"token_name"`
	TokenValue    float64   `json:"token_value"`
}

// TableName 自定义表名
func (Earning) TableName() string {
	return "earning"
}
