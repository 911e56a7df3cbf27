package handler

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

// 悬赏相关请求模型

// CreateBountyForm v1 创建悬赏表单
type CreateBountyForm struct {
	GithubURL                 string  `form:"github_url" binding:"required"`
	Title                     string  `form:"title"`
	IssueDescription          string  `form:"issue_description"`
	TokenName                 string  `form:"token_name"`
	TokenAddress              string  `form:"token_address"`
	ValueInToken              float64 `form:"value_in_token"`
	Amount                    float64 `form:"amount"`
	BountyType                string  `form:"bounty_type"`
	ProjectLength             string  `form:"project_length"`
	ExperienceLevel           string  `form:"experience_level"`
	EstimatedHours            *int    `form:"estimated_hours"`
	BountyOwnerGithubUsername string  `form:"bounty_owner_github_username"`
	BountyOwnerAddress        string  `form:"bounty_owner_address"`
	BountyOwnerEmail          string  `form:"bounty_owner_email"`
	BountyOwnerName           string  `form:"bounty_owner_name"`
	AttachedJobDescription    string  `form:"attached_job_description"`
	FeeAmount                 float64 `form:"fee_amount"`
	FeeTxId                   string  `form:"fee_tx_id"`
	Metadata                  string  `form:"metadata"`
	PrivacyPreferences        string  `form:"privacy_preferences"`
	RepoType                  string  `form:"repo_type"`
	ProjectType               string  `form:"project_type"`
	PermissionType            string  `form:"permission_type"`
	BountyCategories          string  `form:"bounty_categories"`
	Network                   string  `form:"network"`
	Web3Type                  string  `form:"web3_type"`
	AutoApproveWorkers        *bool   `form:"auto_approve_workers"`
	ExpiresDate               int64   `form:"expires_date"`
	IsFeatured                bool    `form:"is_featured"`
	BountyReservedFor         string  `form:"bounty_reserved_for"`
	ReleaseToPublic           string  `form:"release_to_public"`
}

// CancelBountyForm v1 取消悬赏表单
type CancelBountyForm struct {
	Pk                   int64  `form:"pk"`
	CanceledBountyReason string `form:"canceled_bounty_reason"`
}

// FulfillBountyForm v1 提交表单
type FulfillBountyForm struct {
	IssueURL         string `form:"issueURL"`
	FulfillerAddress string `form:"fulfiller_address"`
	Email            string `form:"email"`
	HoursWorked      string `form:"hoursWorked"`
	GithubPRLink     string `form:"githubPRLink"`
	Metadata         string `form:"metadata"`
}

// PayoutForm v1 打款表单
type PayoutForm struct {
	Amount             string `form:"amount"`
	TokenName          string `form:"token_name"`
	BountyOwnerAddress string `form:"bounty_owner_address"`
	PayoutTxId         string `form:"payout_tx_id"`
	PayoutType         string `form:"payout_type"`
}

// SyncWeb3Form 交易上链后的同步请求
type SyncWeb3Form struct {
	URL     string `form:"url"`
	Txid    string `form:"txid"`
	Network string `form:"network"`
}

// SyncRequestBody 同步队列请求
type SyncRequestBody struct {
	Network            string `json:"network" binding:"required"`
	StandardBountiesId int64  `json:"standard_bounties_id"`
	GithubURL          string `json:"github_url"`
	Txid               string `json:"txid"`
}

// TipBody 打赏记录
type TipBody struct {
	Username             string  `json:"username" binding:"required"`
	FromUsername         string  `json:"from_username"`
	TokenName            string  `json:"token_name" binding:"required"`
	Amount               float64 `json:"amount" binding:"required"`
	Network              string  `json:"network"`
	Txid                 string  `json:"txid" binding:"required"`
	TxStatus             string  `json:"tx_status"`
	GithubURL            string  `json:"github_url"`
	IsForBountyFulfiller bool    `json:"is_for_bounty_fulfiller"`
}
