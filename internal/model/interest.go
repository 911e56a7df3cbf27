package model

import "time"

// Interest 贡献者对悬赏的申请/认领
type Interest struct {
	Id             int64      `json:"pk" gorm:"primaryKey"`
	CreatedAt      time.Time  `json:"created"`
	UpdatedAt      time.Time  `json:"-"`
	ProfileId      int64      `json:"profile_id" gorm:"not null;index"`
	IssueMessage   string     `json:"issue_message" gorm:"type:text"`
	Pending        bool       `json:"pending"`
	Status         string     `json:"status" gorm:"size:7;default:'okay'"`
	AcceptanceDate *time.Time `json:"acceptance_date"`

	Profile *Profile `json:"profile,omitempty" gorm:"foreignKey:ProfileId"`
}

// TableName 自定义表名
func (Interest) TableName() string {
	return "interest"
}

// BountyInterest 悬赏修订与申请的关联，同一修订下每个用户最多一条
type BountyInterest struct {
	Id         int64 `gorm:"primaryKey"`
	CreatedAt  time.Time
	BountyId   int64 `gorm:"not null;uniqueIndex:idx_bounty_interest_profile"`
	ProfileId  int64 `gorm:"not null;uniqueIndex:idx_bounty_interest_profile"`
	InterestId int64 `gorm:"not null;index"`
}

// TableName 自定义表名
func (BountyInterest) TableName() string {
	return "bounty_interest"
}
