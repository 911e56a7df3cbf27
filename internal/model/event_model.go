package model

import (
	"time"
)

// RegistryLog 已处理的 StandardBounties 合约日志
type RegistryLog struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Network            string `json:"network" gorm:"size:255;not null;uniqueIndex:idx_registry_log_position"`
	ContractAddress    string `json:"contract_address" gorm:"not null"`
	EventName          string `json:"event_name" gorm:"not null"`
	StandardBountiesId int64  `json:"standard_bounties_id" gorm:"index"`
	TxHash             string `json:"tx_hash" gorm:"size:66;not null;uniqueIndex:idx_registry_log_position"`
	BlockNum           int64  `json:"block_num" gorm:"not null;index"`
	LogIndex           int64  `json:"log_index" gorm:"uniqueIndex:idx_registry_log_position"`
}

// TableName 自定义表名
func (RegistryLog) TableName() string {
	return "registry_log"
}
