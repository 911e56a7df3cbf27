package logic

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
)

const (
	msgStaffOrFunder     = "Only staff or the funder of this bounty may do this."
	msgModeratorOrFunder = "Only moderators or the funder of this bounty may do this."
)

// ModerationResult 运营操作结果，失败也只是提示
type ModerationResult struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

func warn(format string, args ...interface{}) *ModerationResult {
	return &ModerationResult{Success: false, Msg: fmt.Sprintf(format, args...)}
}

// ModerationLogic 重新推广、延期、释放预留等运营操作
type ModerationLogic struct {
	bounties  *BountyLogic
	interests *repository.InterestRepository
	cfg       config.RemarketConfig
}

// NewModerationLogic 创建运营逻辑
func NewModerationLogic(bounties *BountyLogic, cfg config.RemarketConfig) *ModerationLogic {
	return &ModerationLogic{
		bounties:  bounties,
		interests: repository.NewInterestRepository(bounties.db),
		cfg:       cfg,
	}
}

func (l *ModerationLogic) cooldown() time.Duration {
	return time.Duration(l.cfg.MinutesBetween) * time.Minute
}

// remarket 更新推广计数，autoSave 为 false 时由调用方保存
func (l *ModerationLogic) remarket(ctx context.Context, b *model.Bounty, autoSave bool) (*ModerationResult, error) {
	if b.RemarketedCount >= l.cfg.Limit {
		return warn("The issue was not remarketed due to reaching the remarket limit (%d).", l.cfg.Limit), nil
	}

	now := l.bounties.now()
	earliest := now
	if b.LastRemarketed != nil {
		earliest = b.LastRemarketed.Add(l.cooldown())
	}
	if now.Before(earliest) {
		minutes := int(math.Round(earliest.Sub(now).Minutes()))
		return warn("As you recently remarketed this issue, you need to wait %d minutes before remarketing this issue again.", minutes), nil
	}

	b.RemarketedCount++
	b.LastRemarketed = &now
	if autoSave {
		if err := l.bounties.Save(ctx, b); err != nil {
			return nil, fmt.Errorf("保存悬赏失败: %w", err)
		}
	}
	logger.Info("bounty %d remarketed (%d/%d)", b.Id, b.RemarketedCount, l.cfg.Limit)

	msg := "The issue will appear at the top of the issue explorer. "
	switch further := l.cfg.Limit - b.RemarketedCount; {
	case further >= 1:
		msg += fmt.Sprintf("You will be able to remarket this bounty %d more time if a contributor does not pick this up.", further)
	case further == 0:
		msg += "Please note this is the last time the issue is able to be remarketed."
	}
	return &ModerationResult{Success: true, Msg: msg}, nil
}

// Remarket 管理员或发布者重新推广
func (l *ModerationLogic) Remarket(ctx context.Context, bountyID int64, actor *model.Profile) (*ModerationResult, error) {
	b, err := l.bounties.Load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if actor == nil || (!actor.IsStaff && !b.IsFunder(actor.Handle)) {
		return warn(msgStaffOrFunder), nil
	}
	result, err := l.remarket(ctx, b, true)
	if err != nil {
		return nil, err
	}
	if result.Success {
		result.Msg = "This issue has been remarketed. " + result.Msg
	}
	return result, nil
}

// CanRemarket 未达上限、不在冷却期且无人申请
func (l *ModerationLogic) CanRemarket(ctx context.Context, b *model.Bounty) (bool, error) {
	if b.RemarketedCount >= l.cfg.Limit {
		return false, nil
	}
	if b.LastRemarketed != nil && l.bounties.now().Before(b.LastRemarketed.Add(l.cooldown())) {
		return false, nil
	}
	count, err := l.interests.Count(ctx, b.Id)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// ExtendExpiration 发布者延长截止时间，同时尝试重新推广
func (l *ModerationLogic) ExtendExpiration(ctx context.Context, bountyID int64, actor *model.Profile, deadline int64) (*ModerationResult, error) {
	b, err := l.bounties.Load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if actor == nil || !b.IsFunder(actor.Handle) {
		return warn("You must be funder to extend expiration"), nil
	}

	b.ExpiresDate = time.Unix(deadline, 0).UTC()
	result, err := l.remarket(ctx, b, false)
	if err != nil {
		return nil, err
	}
	if err := l.bounties.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("保存悬赏失败: %w", err)
	}

	l.bounties.RecordUserAction(ctx, model.ActivityExtendExpiration, actor, map[string]interface{}{
		"bounty_id": b.Id, "deadline": deadline,
	})
	l.bounties.RecordActivity(ctx, b, actor, model.ActivityExtendExpiration, nil)
	return &ModerationResult{Success: true, Msg: "You've extended expiration of this issue. " + result.Msg}, nil
}

// ReleaseToPublic 释放预留
func (l *ModerationLogic) ReleaseToPublic(ctx context.Context, bountyID int64, actor *model.Profile) (*ModerationResult, error) {
	b, err := l.bounties.Load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if l.bounties.Status(ctx, b) != model.StatusReserved {
		return warn("This functionality is only for reserved bounties"), nil
	}
	reservedForActor := actor != nil && b.BountyReservedForUserId != nil && *b.BountyReservedForUserId == actor.Id
	if actor == nil || (!actor.IsStaff && !reservedForActor) {
		return warn("Only staff or the user that has been reserved can release this bounty"), nil
	}

	b.BountyReservedForUserId = nil
	b.ReservedForUserFrom = nil
	b.ReservedForUserExpiration = nil
	if err := l.bounties.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("保存悬赏失败: %w", err)
	}
	return &ModerationResult{Success: true, Msg: "You have successfully released this bounty to the public"}, nil
}

var overridableStatuses = []string{
	model.StatusCancelled, model.StatusDone, model.StatusExpired, model.StatusReserved,
	model.StatusOpen, model.StatusStarted, model.StatusSubmitted, model.StatusUnknown, "",
}

// OverrideStatus 管理员覆盖展示状态，空字符串取消覆盖
func (l *ModerationLogic) OverrideStatus(ctx context.Context, bountyID int64, actor *model.Profile, status string) (*ModerationResult, error) {
	b, err := l.bounties.Load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if actor == nil || !actor.IsStaff {
		return warn(msgStaffOrFunder), nil
	}
	valid := false
	for _, s := range overridableStatuses {
		if s == status {
			valid = true
			break
		}
	}
	if !valid {
		return warn("Not a valid status choice.  Please choose a valid status (no quotes): %s", strings.Join(overridableStatuses, ",")), nil
	}

	b.OverrideStatus = status
	if err := l.bounties.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("保存悬赏失败: %w", err)
	}
	return &ModerationResult{Success: true, Msg: fmt.Sprintf("Status updated to \"%s\" ", status)}, nil
}

func isModerator(actor *model.Profile) bool {
	return actor != nil && (actor.IsStaff || actor.IsModerator)
}

// Hide 版主隐藏悬赏
func (l *ModerationLogic) Hide(ctx context.Context, bountyID int64, actor *model.Profile) (*ModerationResult, error) {
	b, err := l.bounties.Load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if !isModerator(actor) {
		return warn("Only moderators may do this."), nil
	}
	b.AdminOverrideAndHide = true
	if err := l.bounties.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("保存悬赏失败: %w", err)
	}
	return &ModerationResult{Success: true, Msg: "Bounty is now hidden"}, nil
}

// ToggleRemarketReady 切换可重新推广标记
func (l *ModerationLogic) ToggleRemarketReady(ctx context.Context, bountyID int64, actor *model.Profile) (*ModerationResult, error) {
	b, err := l.bounties.Load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if !isModerator(actor) {
		return warn(msgModeratorOrFunder), nil
	}
	b.AdminMarkAsRemarketReady = !b.AdminMarkAsRemarketReady
	if err := l.bounties.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("保存悬赏失败: %w", err)
	}
	if b.AdminMarkAsRemarketReady {
		return &ModerationResult{Success: true, Msg: "Bounty is now remarket ready"}, nil
	}
	return &ModerationResult{Success: true, Msg: "Bounty is now NOT remarket ready"}, nil
}

// SuspendAutoApproval 暂停自动批准
func (l *ModerationLogic) SuspendAutoApproval(ctx context.Context, bountyID int64, actor *model.Profile) (*ModerationResult, error) {
	b, err := l.bounties.Load(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if !isModerator(actor) {
		return warn(msgModeratorOrFunder), nil
	}
	b.AdminOverrideSuspendAutoApproval = true
	if err := l.bounties.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("保存悬赏失败: %w", err)
	}
	return &ModerationResult{Success: true, Msg: "Bounty auto approvals are now suspended"}, nil
}
