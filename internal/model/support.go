package model

import "time"

// SearchResult 搜索索引
type SearchResult struct {
	Id          int64     `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
	SourceType  string    `json:"source_type" gorm:"size:32;not null;uniqueIndex:idx_search_source"`
	SourceId    int64     `json:"source_id" gorm:"not null;uniqueIndex:idx_search_source"`
	CreatedOn   time.Time `json:"created_on"`
	Title       string    `json:"title"`
	Description string    `json:"description" gorm:"type:text"`
	URL         string    `json:"url"`
	ImgURL      string    `json:"img_url"`
	Slug        string    `json:"slug" gorm:"index"`
}

// TableName 自定义表名
func (SearchResult) TableName() string {
	return "search_result"
}

// BountySyncRequest 待同步的链上悬赏
type BountySyncRequest struct {
	Id                 int64 `gorm:"primaryKey"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	GithubURL          string
	Network            string `gorm:"size:255;index"`
	StandardBountiesId int64  `gorm:"index"`
	Txid               string
	Processed          bool `gorm:"index"`
	Attempts           int
	LastError          string `gorm:"type:text"`
}

// TableName 自定义表名
func (BountySyncRequest) TableName() string {
	return "bounty_sync_request"
}

// ConversionRate 汇率
type ConversionRate struct {
	Id           int64 `gorm:"primaryKey"`
	CreatedAt    time.Time
	FromCurrency string `gorm:"size:20;index:idx_conversion_pair"`
	ToCurrency   string `gorm:"size:20;index:idx_conversion_pair"`
	FromAmount   float64
	ToAmount     float64
	Timestamp    time.Time `gorm:"index"`
	Source       string
}

// TableName 自定义表名
func (ConversionRate) TableName() string {
	return "conversion_rate"
}

// Semaphore 数据库锁
type Semaphore struct {
	Namespace string    `gorm:"primaryKey;size:255"`
	Owner     string    `gorm:"size:64;not null"`
	ExpiresAt time.Time `gorm:"not null"`
}

// TableName 自定义表名
func (Semaphore) TableName() string {
	return "semaphore"
}
