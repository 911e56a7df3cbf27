package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Bounty 悬赏的一个版本（修订）
//
// 同一个链上悬赏 (network, standard_bounties_id) 可能有多行，只有一行 current_bounty = true。
type Bounty struct {
	Id        int64     `json:"pk" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_on"`
	UpdatedAt time.Time `json:"modified_on"`

	// 链上身份
	Web3Type           string    `json:"web3_type" gorm:"size:50;default:'bounties_network'"`
	Web3Created        time.Time `json:"web3_created" gorm:"index"`
	Network            string    `json:"network" gorm:"size:255;index"`
	StandardBountiesId int64     `json:"standard_bounties_id" gorm:"index"`
	CurrentBounty      bool      `json:"current_bounty" gorm:"index"`

	// 描述
	Title                  string   `json:"title"`
	IssueDescription       string   `json:"issue_description" gorm:"type:text"`
	GithubURL              string   `json:"github_url" gorm:"index"`
	BountyType             string   `json:"bounty_type"`
	ProjectLength          string   `json:"project_length"`
	ExperienceLevel        string   `json:"experience_level"`
	EstimatedHours         *int     `json:"estimated_hours"`
	ProjectType            string   `json:"project_type" gorm:"size:50;default:'traditional'"`
	PermissionType         string   `json:"permission_type" gorm:"size:50;default:'permissionless'"`
	RepoType               string   `json:"repo_type" gorm:"size:50;default:'public'"`
	BountyCategories       []string `json:"bounty_categories" gorm:"serializer:json;type:text"`
	AttachedJobDescription string   `json:"attached_job_description"`

	// 金额
	TokenName    string  `json:"token_name"`
	TokenAddress string  `json:"token_address"`
	ValueInToken float64 `json:"value_in_token"`
	Balance      float64 `json:"balance"`
	FeeAmount    float64 `json:"fee_amount"`
	FeeTxId      string  `json:"fee_tx_id"`

	// 生命周期
	BountyState          string     `json:"bounty_state" gorm:"size:50;default:'open'"`
	IsOpen               bool       `json:"is_open"`
	Accepted             bool       `json:"accepted"`
	ExpiresDate          time.Time  `json:"expires_date"`
	NumFulfillments      int        `json:"num_fulfillments"`
	OverrideStatus       string     `json:"override_status"`
	CanceledOn           *time.Time `json:"canceled_on"`
	CanceledBountyReason string     `json:"canceled_bounty_reason"`

	// 发布者
	BountyOwnerAddress        string `json:"bounty_owner_address"`
	BountyOwnerEmail          string `json:"-"`
	BountyOwnerGithubUsername string `json:"bounty_owner_github_username"`
	BountyOwnerName           string `json:"bounty_owner_name"`
	BountyOwnerProfileId      *int64 `json:"bounty_owner_profile_id"`

	// 预留
	BountyReservedForUserId   *int64     `json:"bounty_reserved_for_user_id"`
	ReservedForUserFrom       *time.Time `json:"reserved_for_user_from"`
	ReservedForUserExpiration *time.Time `json:"reserved_for_user_expiration"`

	RawData            map[string]interface{} `json:"-" gorm:"serializer:json;type:text"`
	Metadata           map[string]interface{} `json:"metadata" gorm:"serializer:json;type:text"`
	PrivacyPreferences map[string]interface{} `json:"-" gorm:"serializer:json;type:text"`

	// 运营
	IsFeatured      bool       `json:"is_featured"`
	FeaturingDate   *time.Time `json:"featuring_date"`
	LastRemarketed  *time.Time `json:"last_remarketed"`
	RemarketedCount int        `json:"remarketed_count"`

	// 管理员覆盖
	AdminOverrideAndHide             bool `json:"-"`
	AdminOverrideSuspendAutoApproval bool `json:"-"`
	AdminMarkAsRemarketReady         bool `json:"-"`

	// 估值缓存
	TokenValueTimePeg *time.Time `json:"token_value_time_peg"`
	TokenValueInUsdt  *float64   `json:"token_value_in_usdt"`
	ValueInUsdtNow    *float64   `json:"value_in_usdt_now"`
	ValueInUsdt       *float64   `json:"value_in_usdt"`
	ValueInEth        *float64   `json:"value_in_eth"`
	ValueTrue         float64    `json:"value_true"`

	// 派生索引
	IdxStatus              string     `json:"status" gorm:"size:9;index"`
	IdxExperienceLevel     int        `json:"-"`
	IdxProjectLength       int        `json:"-"`
	FulfillmentAcceptedOn  *time.Time `json:"fulfillment_accepted_on"`
	FulfillmentSubmittedOn *time.Time `json:"fulfillment_submitted_on"`
	FulfillmentStartedOn   *time.Time `json:"fulfillment_started_on"`

	// 乐观锁
	Version int64 `json:"-" gorm:"not null;default:0"`

	Fulfillments []BountyFulfillment `json:"fulfillments" gorm:"foreignKey:BountyId"`
	Interests    []Interest          `json:"interested" gorm:"-"`
}

// TableName 自定义表名
func (Bounty) TableName() string {
	return "bounty"
}

// Web3 类型
const (
	Web3TypeBountiesNetwork = "bounties_network"
	Web3TypeLegacyGitcoin   = "legacy_gitcoin"
	Web3TypeQR              = "qr"
	Web3TypeWeb3Modal       = "web3_modal"
	Web3TypePolkadot        = "polkadot_ext"
)

// 项目类型
const (
	ProjectTypeTraditional = "traditional"
	ProjectTypeContest     = "contest"
	ProjectTypeCooperative = "cooperative"
)

// 权限类型
const (
	PermissionTypePermissionless = "permissionless"
	PermissionTypeApproval       = "approval"
)

// 生命周期状态 (bounty_state)
const (
	StateOpen          = "open"
	StateWorkStarted   = "work_started"
	StateWorkSubmitted = "work_submitted"
	StateDone          = "done"
	StateCancelled     = "cancelled"
	StateExpired       = "expired"
)

// 展示状态 (status / idx_status)
const (
	StatusCancelled = "cancelled"
	StatusDone      = "done"
	StatusExpired   = "expired"
	StatusReserved  = "reserved"
	StatusOpen      = "open"
	StatusStarted   = "started"
	StatusSubmitted = "submitted"
	StatusUnknown   = "unknown"
)

// CrossChainStandardBountiesOffset 非 bounties_network 悬赏的合成编号偏移
const CrossChainStandardBountiesOffset int64 = 100000000

// IsLegacy 旧版 gitcoin 悬赏
func (b *Bounty) IsLegacy() bool {
	return b.Web3Type == Web3TypeLegacyGitcoin
}

// IsBountiesNetwork 是否在 StandardBounties 合约上
func (b *Bounty) IsBountiesNetwork() bool {
	return b.Web3Type == Web3TypeBountiesNetwork
}

// Persisted 是否已入库
func (b *Bounty) Persisted() bool {
	return b.Id != 0
}

// IsFunder 判断 handle 是否为发布者
func (b *Bounty) IsFunder(handle string) bool {
	if handle == "" {
		return false
	}
	return strings.EqualFold(strings.TrimPrefix(handle, "@"), strings.TrimPrefix(b.BountyOwnerGithubUsername, "@"))
}

// githubParts 拆分 github issue 地址: org, repo, issue number
func (b *Bounty) githubParts() []string {
	u, err := url.Parse(b.GithubURL)
	if err != nil {
		return nil
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" {
		return nil
	}
	return parts
}

// OrgName github 组织名
func (b *Bounty) OrgName() string {
	parts := b.githubParts()
	if parts == nil {
		return ""
	}
	return parts[0]
}

// RepoName github 仓库名
func (b *Bounty) RepoName() string {
	parts := b.githubParts()
	if parts == nil {
		return ""
	}
	return parts[1]
}

// IssueNumber github issue 编号
func (b *Bounty) IssueNumber() string {
	parts := b.githubParts()
	if len(parts) < 4 {
		return ""
	}
	if _, err := strconv.Atoi(parts[3]); err != nil {
		return ""
	}
	return parts[3]
}

// RawNumber 读取 raw_data 中的数值字段，缺失返回 ok=false，非数值返回错误
func (b *Bounty) RawNumber(key string) (float64, bool, error) {
	if b.RawData == nil {
		return 0, false, nil
	}
	v, exists := b.RawData[key]
	if !exists || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, n != 0, nil
	case int:
		return float64(n), n != 0, nil
	case int64:
		return float64(n), n != 0, nil
	case bool:
		return 0, false, fmt.Errorf("%s is not numeric", key)
	case string:
		if n == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%s is not numeric: %w", key, err)
		}
		return f, f != 0, nil
	default:
		return 0, false, fmt.Errorf("%s has unsupported type %T", key, v)
	}
}
