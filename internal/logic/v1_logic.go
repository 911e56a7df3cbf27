package logic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zoek1/web-1/internal/event"
	"github.com/zoek1/web-1/internal/lifecycle"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
	"gorm.io/gorm"
)

// DefaultV1Expiry 未指定截止时间时的默认值
const DefaultV1Expiry int64 = 9999999999

// V1Result v1 接口成功结果
type V1Result struct {
	Status        int    `json:"status"`
	Message       string `json:"message"`
	BountyURL     string `json:"bounty_url,omitempty"`
	FulfillmentID int64  `json:"fulfillment_id,omitempty"`
}

// CreateBountyRequest 链下创建悬赏
type CreateBountyRequest struct {
	GithubURL                 string
	Title                     string
	IssueDescription          string
	TokenName                 string
	TokenAddress              string
	ValueInToken              float64
	Amount                    float64
	BountyType                string
	ProjectLength             string
	ExperienceLevel           string
	EstimatedHours            *int
	BountyOwnerGithubUsername string
	BountyOwnerAddress        string
	BountyOwnerEmail          string
	BountyOwnerName           string
	AttachedJobDescription    string
	FeeAmount                 float64
	FeeTxId                   string
	Metadata                  map[string]interface{}
	PrivacyPreferences        map[string]interface{}
	RepoType                  string
	ProjectType               string
	PermissionType            string
	BountyCategories          []string
	Network                   string
	Web3Type                  string
	AutoApproveWorkers        bool
	ExpiresDate               int64
	IsFeatured                bool
	BountyReservedFor         string
	ReleaseToPublic           string
}

// FulfillBountyRequest 链下提交
type FulfillBountyRequest struct {
	IssueURL         string
	FulfillerAddress string
	Email            string
	HoursWorked      string
	GithubPRLink     string
	Metadata         map[string]interface{}
}

// PayoutRequest 链下打款
type PayoutRequest struct {
	FulfillmentID      int64
	Amount             string
	TokenName          string
	BountyOwnerAddress string
	PayoutTxId         string
	PayoutType         string
}

// V1Logic 链下悬赏的创建、取消、提交、打款与关闭
type V1Logic struct {
	db         *gorm.DB
	bounties   *BountyLogic
	repo       *repository.BountyRepository
	profiles   *repository.ProfileRepository
	payoutSync *PayoutSyncLogic
	bus        *event.Bus
}

// NewV1Logic 创建 v1 接口逻辑
func NewV1Logic(db *gorm.DB, bounties *BountyLogic, payoutSync *PayoutSyncLogic, bus *event.Bus) *V1Logic {
	return &V1Logic{
		db:         db,
		bounties:   bounties,
		repo:       repository.NewBountyRepository(db),
		profiles:   repository.NewProfileRepository(db),
		payoutSync: payoutSync,
		bus:        bus,
	}
}

func requireProfile(actor *model.Profile, action string) error {
	if actor == nil {
		return businessError(CodeUnauthorized, "error: user needs to be authenticated to %s bounty", action)
	}
	if actor.Id == 0 {
		return businessError(CodeUnauthorized, "error: no matching profile found")
	}
	return nil
}

// checkMutable 已隐藏、已取消或已完成的悬赏不能再操作
func checkMutable(b *model.Bounty, verb string) error {
	if b.AdminOverrideAndHide {
		return businessError(CodeGone, "error: bounty is no longer available")
	}
	if b.BountyState == model.StateCancelled || b.BountyState == model.StateDone {
		return businessError(CodeIllegalState, "error: bounty in %s state cannot be %s", b.BountyState, verb)
	}
	return nil
}

func (l *V1Logic) load(ctx context.Context, id int64) (*model.Bounty, error) {
	b, err := l.bounties.Load(ctx, id)
	if errors.Is(err, ErrBountyNotFound) {
		return nil, businessError(CodeNotFound, "error: bounty not found")
	}
	return b, err
}

// Create 创建链下悬赏
func (l *V1Logic) Create(ctx context.Context, actor *model.Profile, req *CreateBountyRequest) (*V1Result, error) {
	if err := requireProfile(actor, "create"); err != nil {
		return nil, err
	}
	githubURL := lifecycle.NormalizeGithubURL(req.GithubURL)
	exists, err := l.repo.ExistsForURL(ctx, githubURL)
	if err != nil {
		return nil, fmt.Errorf("查询悬赏失败: %w", err)
	}
	if exists {
		return nil, businessError(CodeDuplicate, "bounty already exists for this github issue")
	}

	now := l.bounties.now()
	b := &model.Bounty{
		BountyOwnerProfileId:             &actor.Id,
		BountyState:                      model.StateOpen,
		Title:                            req.Title,
		TokenName:                        req.TokenName,
		TokenAddress:                     req.TokenAddress,
		BountyType:                       req.BountyType,
		ProjectLength:                    req.ProjectLength,
		EstimatedHours:                   req.EstimatedHours,
		ExperienceLevel:                  req.ExperienceLevel,
		GithubURL:                        githubURL,
		BountyOwnerGithubUsername:        req.BountyOwnerGithubUsername,
		BountyOwnerAddress:               req.BountyOwnerAddress,
		BountyOwnerEmail:                 req.BountyOwnerEmail,
		BountyOwnerName:                  req.BountyOwnerName,
		IsOpen:                           true,
		CurrentBounty:                    true,
		IssueDescription:                 req.IssueDescription,
		AttachedJobDescription:           req.AttachedJobDescription,
		FeeAmount:                        req.FeeAmount,
		FeeTxId:                          req.FeeTxId,
		Metadata:                         req.Metadata,
		PrivacyPreferences:               req.PrivacyPreferences,
		RepoType:                         defaultString(req.RepoType, "public"),
		ProjectType:                      defaultString(req.ProjectType, model.ProjectTypeTraditional),
		PermissionType:                   defaultString(req.PermissionType, model.PermissionTypePermissionless),
		BountyCategories:                 req.BountyCategories,
		Network:                          defaultString(req.Network, "mainnet"),
		Web3Type:                         defaultString(req.Web3Type, model.Web3TypeWeb3Modal),
		AdminOverrideSuspendAutoApproval: !req.AutoApproveWorkers,
		ValueInToken:                     req.ValueInToken,
		Balance:                          req.ValueInToken,
		ValueTrue:                        req.Amount,
		Web3Created:                      now,
		LastRemarketed:                   &now,
		IsFeatured:                       req.IsFeatured,
	}
	if b.BountyOwnerGithubUsername == "" {
		b.BountyOwnerGithubUsername = actor.Handle
	}
	expires := req.ExpiresDate
	if expires == 0 {
		expires = DefaultV1Expiry
	}
	b.ExpiresDate = time.Unix(expires, 0).UTC()
	if b.IsFeatured {
		b.FeaturingDate = &now
	}

	if req.BountyReservedFor != "" {
		reserved, err := l.profiles.ByHandle(ctx, req.BountyReservedFor)
		if err != nil {
			logger.Warn("reserved profile %s: %v", req.BountyReservedFor, err)
		} else {
			b.BountyReservedForUserId = &reserved.Id
			b.ReservedForUserFrom = &now
			var expiry time.Time
			switch req.ReleaseToPublic {
			case "3-days":
				expiry = now.Add(3 * 24 * time.Hour)
			case "1-week":
				expiry = now.Add(7 * 24 * time.Hour)
			}
			if !expiry.IsZero() {
				b.ReservedForUserExpiration = &expiry
			}
		}
	}

	if err := l.bounties.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("保存悬赏失败: %w", err)
	}
	l.bounties.RecordActivity(ctx, b, actor, model.ActivityNewBounty, nil)
	l.bus.Publish(ctx, event.BountyCreated{Bounty: b})

	return &V1Result{Status: CodeSuccess, Message: "bounty successfully created", BountyURL: l.bounties.URL(b)}, nil
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Cancel 发布者取消悬赏
func (l *V1Logic) Cancel(ctx context.Context, actor *model.Profile, bountyID int64, reason string) (*V1Result, error) {
	if err := requireProfile(actor, "cancel"); err != nil {
		return nil, err
	}
	b, err := l.load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if err := checkMutable(b, "cancelled"); err != nil {
		return nil, err
	}
	if !b.IsFunder(actor.Handle) {
		return nil, businessError(CodeUnauthorized, "error: bounty cancellation is bounty funder operation")
	}
	if reason == "" {
		return nil, businessError(CodeBadRequest, "error: missing canceled_bounty_reason")
	}

	l.bounties.RecordActivity(ctx, b, actor, model.ActivityKilledBounty, nil)

	now := l.bounties.now()
	b.BountyState = model.StateCancelled
	b.IsOpen = false
	b.CanceledOn = &now
	b.CanceledBountyReason = reason
	if err := l.bounties.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("保存悬赏失败: %w", err)
	}
	l.bus.Publish(ctx, event.BountyCancelled{Bounty: b, Reason: reason})

	return &V1Result{Status: CodeSuccess, Message: "bounty successfully cancelled", BountyURL: l.bounties.URL(b)}, nil
}

// Fulfill 按 issue 地址提交工作，每人每个悬赏一次
func (l *V1Logic) Fulfill(ctx context.Context, actor *model.Profile, req *FulfillBountyRequest) (*V1Result, error) {
	if err := requireProfile(actor, "fulfill"); err != nil {
		return nil, err
	}
	b, err := l.repo.AnyCurrentByURL(ctx, lifecycle.NormalizeGithubURL(req.IssueURL))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, businessError(CodeNotFound, "error: bounty not found")
	}
	if err != nil {
		return nil, fmt.Errorf("获取悬赏失败: %w", err)
	}
	if err := checkMutable(b, "fulfilled"); err != nil {
		return nil, err
	}

	_, err = l.repo.FulfillmentByProfile(ctx, b.Id, actor.Id)
	if err == nil {
		return nil, businessError(CodeBadRequest, "error: user can submit once per bounty")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("获取提交失败: %w", err)
	}

	switch {
	case req.FulfillerAddress == "":
		return nil, businessError(CodeBadRequest, "error: missing fulfiller_address")
	case req.Email == "":
		return nil, businessError(CodeBadRequest, "error: missing email")
	case !isDigits(req.HoursWorked):
		return nil, businessError(CodeBadRequest, "error: missing hoursWorked")
	case req.GithubPRLink == "":
		return nil, businessError(CodeBadRequest, "error: missing githubPRLink")
	}
	hours, _ := strconv.ParseFloat(req.HoursWorked, 64)

	l.bounties.RecordActivity(ctx, b, actor, model.ActivityWorkSubmitted, nil)

	now := l.bounties.now()
	f := &model.BountyFulfillment{
		BountyId:                b.Id,
		ProfileId:               &actor.Id,
		FulfillerAddress:        req.FulfillerAddress,
		FulfillerEmail:          req.Email,
		FulfillerGithubUsername: actor.Handle,
		FulfillerGithubURL:      req.GithubPRLink,
		FulfillerMetadata:       req.Metadata,
		HoursWorked:             &hours,
		TokenName:               b.TokenName,
		FunderLastNotifiedOn:    &now,
	}
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := l.repo.WithTx(tx).SaveFulfillment(ctx, f); err != nil {
			return err
		}
		b.BountyState = model.StateWorkSubmitted
		b.NumFulfillments++
		return l.bounties.SaveTx(ctx, tx, b)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, businessError(CodeBadRequest, "error: user can submit once per bounty")
		}
		return nil, fmt.Errorf("保存提交失败: %w", err)
	}
	l.bus.Publish(ctx, event.BountyRevised{Bounty: b})

	return &V1Result{Status: CodeSuccess, Message: "bounty successfully fulfilled", BountyURL: l.bounties.URL(b)}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}

// Payout 记录发布者的打款，随后立即确认一次
func (l *V1Logic) Payout(ctx context.Context, actor *model.Profile, req *PayoutRequest) (*V1Result, error) {
	if err := requireProfile(actor, "payout"); err != nil {
		return nil, err
	}
	if req.FulfillmentID == 0 {
		return nil, businessError(CodeBadRequest, "error: missing parameter fulfillment_id")
	}
	f, err := l.repo.GetFulfillment(ctx, req.FulfillmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, businessError(CodeNotFound, "error: bounty fulfillment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("获取提交失败: %w", err)
	}
	b, err := l.load(ctx, f.BountyId)
	if err != nil {
		return nil, err
	}
	if err := checkMutable(b, "paid out"); err != nil {
		return nil, err
	}
	if !b.IsFunder(actor.Handle) {
		return nil, businessError(CodeUnauthorized, "error: payout is bounty funder operation")
	}

	if b.BountyOwnerAddress == "" {
		if req.BountyOwnerAddress == "" {
			return nil, businessError(CodeBadRequest, "error: missing parameter bounty_owner_address")
		}
		b.BountyOwnerAddress = req.BountyOwnerAddress
		if err := l.bounties.Save(ctx, b); err != nil {
			return nil, fmt.Errorf("保存悬赏失败: %w", err)
		}
	}
	if req.Amount == "" {
		return nil, businessError(CodeBadRequest, "error: missing parameter amount")
	}
	amount, err := strconv.ParseFloat(req.Amount, 64)
	if err != nil {
		return nil, businessError(CodeBadRequest, "error: invalid parameter amount")
	}
	if req.TokenName == "" {
		return nil, businessError(CodeBadRequest, "error: missing parameter token_name")
	}

	if req.PayoutTxId != "" {
		f.PayoutTxId = req.PayoutTxId
	}
	if req.PayoutType != "" {
		f.PayoutType = req.PayoutType
	}
	if f.PayoutType == "" {
		f.PayoutType = model.PayoutTypeWeb3Modal
	}
	f.PayoutAmount = &amount
	f.PayoutStatus = model.PayoutStatusPending
	f.TokenName = req.TokenName
	if err := l.repo.SaveFulfillment(ctx, f); err != nil {
		return nil, fmt.Errorf("保存提交失败: %w", err)
	}

	if err := l.payoutSync.SyncOne(ctx, f); err != nil {
		logger.Warn("sync payout of fulfillment %d: %v", f.Id, err)
	}

	return &V1Result{Status: CodeSuccess, Message: "bounty payment recorded. verification pending", FulfillmentID: f.Id}, nil
}

// Close 有已确认打款后由发布者关闭悬赏
func (l *V1Logic) Close(ctx context.Context, actor *model.Profile, bountyID int64) (*V1Result, error) {
	if err := requireProfile(actor, "close"); err != nil {
		return nil, err
	}
	if bountyID == 0 {
		return nil, businessError(CodeBadRequest, "error: missing parameter bounty_id")
	}
	b, err := l.load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if err := checkMutable(b, "closed"); err != nil {
		return nil, err
	}
	if !b.IsFunder(actor.Handle) {
		return nil, businessError(CodeUnauthorized, "error: closing a bounty funder operation")
	}
	paid, err := l.repo.HasPaidAcceptedFulfillment(ctx, b.Id)
	if err != nil {
		return nil, fmt.Errorf("查询打款失败: %w", err)
	}
	if !paid {
		return nil, businessError(CodeBadRequest, "error: cannot close a bounty without making a payment")
	}

	l.bounties.RecordActivity(ctx, b, actor, model.ActivityWorkDone, nil)

	b.BountyState = model.StateDone
	b.IsOpen = false
	b.Accepted = true
	if err := l.bounties.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("保存悬赏失败: %w", err)
	}
	l.bus.Publish(ctx, event.BountyClosed{Bounty: b})

	return &V1Result{Status: CodeSuccess, Message: "bounty successfully closed", BountyURL: l.bounties.URL(b)}, nil
}
