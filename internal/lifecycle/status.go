package lifecycle

import (
	"time"

	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
)

// Facts 计算展示状态所需的悬赏及其关联数据
type Facts struct {
	Bounty *model.Bounty
	// HasActiveInterest 存在已通过（非 pending）的申请
	HasActiveInterest bool
	// HasTips 存在同一 github_url 与网络、非赏金接收者、已成功广播的打赏
	HasTips bool
}

// OpenStatuses 仍在进行中的状态
var OpenStatuses = []string{model.StatusReserved, model.StatusOpen, model.StatusStarted, model.StatusSubmitted}

// FundedStatuses 已出资的状态
var FundedStatuses = append(append([]string{}, OpenStatuses...), model.StatusDone)

// TerminalStatuses 结束状态
var TerminalStatuses = []string{model.StatusDone, model.StatusExpired, model.StatusCancelled}

// IsOpenStatus 判断状态是否为进行中
func IsOpenStatus(status string) bool {
	for _, s := range OpenStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Status 计算展示状态，任何错误都返回 unknown，不会 panic
func Status(f Facts, now time.Time) (status string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("status derivation panicked: %v", r)
			status = model.StatusUnknown
		}
	}()

	s, err := deriveStatus(f, now)
	if err != nil {
		logger.Warn("status derivation failed for bounty %d: %v", f.Bounty.Id, err)
		return model.StatusUnknown
	}
	return s
}

func deriveStatus(f Facts, now time.Time) (string, error) {
	b := f.Bounty

	if b.OverrideStatus != "" {
		return b.OverrideStatus, nil
	}
	if b.IsLegacy() {
		return b.IdxStatus, nil
	}

	if f.HasTips && b.ProjectType == model.ProjectTypeTraditional && !b.IsOpen {
		return model.StatusDone, nil
	}

	if !b.IsOpen {
		if b.Accepted {
			return model.StatusDone, nil
		}
		expired, err := PastHardExpiration(b, now)
		if err != nil {
			return "", err
		}
		if expired {
			return model.StatusExpired, nil
		}
		if f.HasTips {
			return model.StatusDone, nil
		}
		return model.StatusCancelled, nil
	}

	if b.Persisted() && (b.ProjectType == model.ProjectTypeContest || b.ProjectType == model.ProjectTypeCooperative) {
		return model.StatusOpen, nil
	}

	if b.NumFulfillments == 0 {
		if b.Persisted() && f.HasActiveInterest {
			return model.StatusStarted, nil
		}
		if IsReserved(b, now) {
			return model.StatusReserved, nil
		}
		return model.StatusOpen, nil
	}
	return model.StatusSubmitted, nil
}

// CanSubmitAfterExpirationDate 链上截止时间晚于 IPFS 截止时间时允许过期后提交
func CanSubmitAfterExpirationDate(b *model.Bounty) (bool, error) {
	if b.IsLegacy() {
		return true, nil
	}
	ipfsDeadline, ok, err := b.RawNumber("ipfs_deadline")
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	contractDeadline, _, err := b.RawNumber("contract_deadline")
	if err != nil {
		return false, err
	}
	return contractDeadline > ipfsDeadline, nil
}

// PastHardExpiration 已过截止时间且不允许继续提交
func PastHardExpiration(b *model.Bounty, now time.Time) (bool, error) {
	canSubmit, err := CanSubmitAfterExpirationDate(b)
	if err != nil {
		return false, err
	}
	return !canSubmit && now.After(b.ExpiresDate), nil
}

// IsReserved 当前处于预留期
func IsReserved(b *model.Bounty, now time.Time) bool {
	if b.BountyReservedForUserId == nil || b.ReservedForUserFrom == nil {
		return false
	}
	if now.Before(*b.ReservedForUserFrom) {
		return false
	}
	return b.ReservedForUserExpiration == nil || !now.After(*b.ReservedForUserExpiration)
}
