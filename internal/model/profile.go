package model

import "time"

// Profile 用户档案，认证由外部完成
type Profile struct {
	Id                     int64     `json:"id" gorm:"primaryKey"`
	CreatedAt              time.Time `json:"-"`
	UpdatedAt              time.Time `json:"-"`
	Handle                 string    `json:"handle" gorm:"size:255;uniqueIndex;not null"`
	Email                  string    `json:"-"`
	PreferredPayoutAddress string    `json:"-"`
	IsOrg                  bool      `json:"is_org"`
	IsStaff                bool      `json:"-"`
	IsModerator            bool      `json:"-"`
	DontAutofollowEarnings bool      `json:"-"`
	MaxNumIssuesStartWork  int       `json:"-" gorm:"default:3"`
}

// TableName 自定义表名
func (Profile) TableName() string {
	return "profile"
}

// TribeMember 关注关系 (profile 关注 org)
type TribeMember struct {
	Id        int64 `gorm:"primaryKey"`
	CreatedAt time.Time
	ProfileId int64 `gorm:"not null;uniqueIndex:idx_tribe_member_pair"`
	OrgId     int64 `gorm:"not null;uniqueIndex:idx_tribe_member_pair"`
	Leader    bool
	Title     string
	Status    string
	Why       string `gorm:"size:20"`
}

// TableName 自定义表名
func (TribeMember) TableName() string {
	return "tribe_member"
}
