package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/zoek1/web-1/internal/event"
	"github.com/zoek1/web-1/internal/lifecycle"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
	"gorm.io/gorm"
)

// 申请结果提示
const (
	MsgStartedWork         = "You have started work."
	MsgAppliedForApproval  = "You have applied to start work. If approved, you will be notified via email."
	MsgAppliedButReserved  = "You have applied to start work, but the bounty is reserved for another user."
	MsgStoppedWork         = "You've stopped working on this, thanks for letting us know."
	msgProjectTypeFulfiled = "There is already someone working on this bounty."
	msgAlreadyStarted      = "You have already started work on this bounty!"
	msgSlashed             = "Because a staff member has had to remove you from a bounty in the past, you are unable to start more work at this time. Please leave a message on slack if you feel this message is in error."
)

// InterestLogic 认领、审批与退出
type InterestLogic struct {
	db        *gorm.DB
	bounties  *BountyLogic
	interests *repository.InterestRepository
	profiles  *repository.ProfileRepository
	bus       *event.Bus
}

// NewInterestLogic 创建申请逻辑
func NewInterestLogic(db *gorm.DB, bounties *BountyLogic, bus *event.Bus) *InterestLogic {
	return &InterestLogic{
		db:        db,
		bounties:  bounties,
		interests: repository.NewInterestRepository(db),
		profiles:  repository.NewProfileRepository(db),
		bus:       bus,
	}
}

// ClaimResult 认领结果
type ClaimResult struct {
	Interest *model.Interest `json:"-"`
	Profile  *model.Profile  `json:"profile"`
	Msg      string          `json:"msg"`
}

// Claim 认领悬赏
func (l *InterestLogic) Claim(ctx context.Context, bountyID int64, profile *model.Profile, message string) (*ClaimResult, error) {
	b, err := l.bounties.Load(ctx, bountyID)
	if err != nil {
		return nil, err
	}

	if b.ProjectType == model.ProjectTypeTraditional {
		fulfilled, err := l.interests.HasActive(ctx, b.Id)
		if err != nil {
			return nil, fmt.Errorf("获取申请失败: %w", err)
		}
		if fulfilled {
			return nil, refuse(ErrProjectTypeFulfilled, msgProjectTypeFulfiled)
		}
	}

	active, err := l.interests.ActiveBountyCount(ctx, profile.Id)
	if err != nil {
		return nil, fmt.Errorf("获取进行中悬赏失败: %w", err)
	}
	if active >= int64(profile.MaxNumIssuesStartWork) {
		return nil, refuse(ErrTooManyActive, "You cannot work on more than %d issues at once", profile.MaxNumIssuesStartWork)
	}

	slashed, err := l.interests.SlashCount(ctx, profile.Id)
	if err != nil {
		return nil, fmt.Errorf("获取处罚记录失败: %w", err)
	}
	if slashed > 0 {
		return nil, refuse(ErrSlashed, msgSlashed)
	}

	existing, err := l.interests.ForBountyAndProfile(ctx, b.Id, profile.Id)
	if err != nil {
		return nil, fmt.Errorf("获取申请失败: %w", err)
	}
	if len(existing) > 0 {
		// 只保留最新的一条
		for _, dup := range existing[1:] {
			if err := l.interests.Delete(ctx, dup.Id); err != nil {
				logger.Warn("collapse duplicate interest %d: %v", dup.Id, err)
			}
		}
		return nil, refuse(ErrAlreadyStarted, msgAlreadyStarted)
	}

	approvalRequired := b.PermissionType == model.PermissionTypeApproval
	now := l.bounties.now()
	// 预留只影响提示，不影响是否待审批
	reservedForOther := lifecycle.IsReserved(b, now) && *b.BountyReservedForUserId != profile.Id
	interest := &model.Interest{
		ProfileId:    profile.Id,
		IssueMessage: message,
		Pending:      approvalRequired,
		Status:       "okay",
	}
	if !interest.Pending {
		interest.AcceptanceDate = &now
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.interests.WithTx(tx).Create(ctx, b.Id, interest)
	})
	if errors.Is(err, repository.ErrDuplicateInterest) {
		return nil, refuse(ErrAlreadyStarted, msgAlreadyStarted)
	}
	if err != nil {
		return nil, fmt.Errorf("创建申请失败: %w", err)
	}
	interest.Profile = profile

	activity := model.ActivityStartWork
	msg := MsgStartedWork
	if approvalRequired {
		activity = model.ActivityWorkerApplied
		msg = MsgAppliedForApproval
	}
	if reservedForOther {
		msg = MsgAppliedButReserved
	}

	l.bounties.RecordUserAction(ctx, model.ActionStartWork, profile, map[string]interface{}{
		"bounty_id": b.Id, "interest_id": interest.Id,
	})
	l.bounties.RecordActivity(ctx, b, profile, activity, interest)
	l.bus.Publish(ctx, event.InterestClaimed{Bounty: b, Interest: interest})

	if err := l.afterInterestSave(ctx, interest); err != nil {
		logger.Warn("post-save for interest %d: %v", interest.Id, err)
	}
	return &ClaimResult{Interest: interest, Profile: profile, Msg: msg}, nil
}

// afterInterestSave 对关联的当前悬赏执行预留自动批准并重新保存
func (l *InterestLogic) afterInterestSave(ctx context.Context, interest *model.Interest) error {
	ids, err := l.interests.LinkedCurrentBountyIDs(ctx, interest.Id)
	if err != nil {
		return err
	}
	for _, id := range ids {
		b, err := l.bounties.Load(ctx, id)
		if err != nil {
			return err
		}
		if interest.Pending && b.BountyReservedForUserId != nil && *b.BountyReservedForUserId == interest.ProfileId {
			now := l.bounties.now()
			interest.Pending = false
			interest.AcceptanceDate = &now
			if err := l.interests.Save(ctx, interest); err != nil {
				return err
			}
			logger.Info("auto-approved interest %d on reserved bounty %d", interest.Id, b.Id)
			l.bounties.RecordActivity(ctx, b, nil, model.ActivityWorkerApproved, interest)
			l.bus.Publish(ctx, event.InterestApproved{Bounty: b, Interest: interest, Auto: true})
		}
		if err := l.bounties.Save(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func canManageWorkers(b *model.Bounty, actor *model.Profile) bool {
	return actor != nil && (actor.IsStaff || b.IsFunder(actor.Handle))
}

func (l *InterestLogic) pendingInterest(ctx context.Context, b *model.Bounty, actor *model.Profile, worker string) (*model.Interest, error) {
	if worker == "" {
		return nil, refuse(ErrMissingWorker, "You must provide the worker's username in order to approve or reject them.")
	}
	if !canManageWorkers(b, actor) {
		return nil, refuse(ErrForbidden, "Only the funder of this bounty may perform this action.")
	}
	pending, err := l.interests.PendingForHandle(ctx, b.Id, worker)
	if err != nil {
		return nil, fmt.Errorf("获取申请失败: %w", err)
	}
	if len(pending) == 0 {
		return nil, refuse(ErrNoPendingInterest, "This worker does not exist or is not in a pending state. Perhaps they were already approved or rejected? Please check your link and try again.")
	}
	return &pending[0], nil
}

// Approve 发布者或管理员批准申请
func (l *InterestLogic) Approve(ctx context.Context, bountyID int64, actor *model.Profile, worker string) (*ModerationResult, error) {
	b, err := l.bounties.Load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	interest, err := l.pendingInterest(ctx, b, actor, worker)
	if err != nil {
		return nil, err
	}

	now := l.bounties.now()
	interest.Pending = false
	interest.AcceptanceDate = &now
	if err := l.interests.Save(ctx, interest); err != nil {
		return nil, fmt.Errorf("更新申请失败: %w", err)
	}
	l.bounties.RecordActivity(ctx, b, actor, model.ActivityWorkerApproved, interest)
	l.bus.Publish(ctx, event.InterestApproved{Bounty: b, Interest: interest})
	if err := l.bounties.Save(ctx, b); err != nil {
		logger.Warn("re-save bounty %d after approval: %v", b.Id, err)
	}
	return &ModerationResult{Success: true, Msg: fmt.Sprintf("%s has been approved", worker)}, nil
}

// Reject 发布者或管理员拒绝申请，申请被删除
func (l *InterestLogic) Reject(ctx context.Context, bountyID int64, actor *model.Profile, worker string) (*ModerationResult, error) {
	b, err := l.bounties.Load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	interest, err := l.pendingInterest(ctx, b, actor, worker)
	if err != nil {
		return nil, err
	}

	l.bounties.RecordActivity(ctx, b, actor, model.ActivityWorkerRejected, interest)
	if err := l.interests.Delete(ctx, interest.Id); err != nil {
		return nil, fmt.Errorf("删除申请失败: %w", err)
	}
	l.bus.Publish(ctx, event.InterestRemoved{Bounty: b, Interest: interest, Reason: "rejected"})
	if err := l.bounties.Save(ctx, b); err != nil {
		logger.Warn("re-save bounty %d after rejection: %v", b.Id, err)
	}
	return &ModerationResult{Success: true, Msg: fmt.Sprintf("%s has been rejected", worker)}, nil
}

// deleteAll 删除用户在悬赏下的全部申请，返回最新的一条
func (l *InterestLogic) deleteAll(ctx context.Context, bountyID, profileID int64) (*model.Interest, error) {
	interests, err := l.interests.ForBountyAndProfile(ctx, bountyID, profileID)
	if err != nil {
		return nil, fmt.Errorf("获取申请失败: %w", err)
	}
	if len(interests) == 0 {
		return nil, nil
	}
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := l.interests.WithTx(tx)
		for _, i := range interests {
			if err := repo.Delete(ctx, i.Id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("删除申请失败: %w", err)
	}
	return &interests[0], nil
}

// Withdraw 贡献者主动退出
func (l *InterestLogic) Withdraw(ctx context.Context, bountyID int64, profile *model.Profile) (*ModerationResult, error) {
	b, err := l.bounties.Load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	interest, err := l.deleteAll(ctx, b.Id, profile.Id)
	if err != nil {
		return nil, err
	}
	if interest == nil {
		return nil, refuse(ErrNoInterest, "You haven't expressed interest on this bounty.")
	}
	interest.Profile = profile

	l.bounties.RecordUserAction(ctx, model.ActionStopWork, profile, map[string]interface{}{
		"bounty_id": b.Id, "interest_id": interest.Id,
	})
	l.bounties.RecordActivity(ctx, b, profile, model.ActivityStopWork, nil)
	l.bus.Publish(ctx, event.InterestRemoved{Bounty: b, Interest: interest, Reason: model.ActionStopWork})
	if err := l.bounties.Save(ctx, b); err != nil {
		logger.Warn("re-save bounty %d after withdraw: %v", b.Id, err)
	}
	return &ModerationResult{Success: true, Msg: MsgStoppedWork}, nil
}

// Remove 发布者、管理员或版主移除贡献者，slashed 记为处罚
func (l *InterestLogic) Remove(ctx context.Context, bountyID int64, actor *model.Profile, workerID int64, slashed bool) (*ModerationResult, error) {
	b, err := l.bounties.Load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if actor == nil || (!b.IsFunder(actor.Handle) && !actor.IsStaff && !actor.IsModerator) {
		return nil, refuse(ErrForbidden, "Only bounty funders are allowed to remove users!")
	}

	interest, err := l.deleteAll(ctx, b.Id, workerID)
	if err != nil {
		return nil, err
	}
	if interest == nil {
		return nil, refuse(ErrNoInterest, "Party haven't expressed interest on this bounty.")
	}

	action := model.ActionBountyRemovedByFunder
	if actor.IsStaff || actor.IsModerator {
		action = model.ActionBountyRemovedByStaff
		if slashed {
			action = model.ActionBountyRemovedSlashedByStaff
		}
	}
	worker, err := l.profiles.Get(ctx, workerID)
	if err != nil {
		worker = &model.Profile{Id: workerID}
	}
	interest.Profile = worker

	l.bounties.RecordUserAction(ctx, action, worker, map[string]interface{}{
		"bounty_id": b.Id, "interest_id": interest.Id, "removed_by": actor.Handle,
	})
	l.bounties.RecordActivity(ctx, b, actor, model.ActivityStopWork, nil)
	l.bus.Publish(ctx, event.InterestRemoved{Bounty: b, Interest: interest, Reason: action})
	if err := l.bounties.Save(ctx, b); err != nil {
		logger.Warn("re-save bounty %d after removal: %v", b.Id, err)
	}
	return &ModerationResult{Success: true, Msg: MsgStoppedWork}, nil
}
