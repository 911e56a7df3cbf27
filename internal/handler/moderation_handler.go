package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zoek1/web-1/internal/logic"
	"github.com/zoek1/web-1/internal/model"
)

type ModerationHandler struct {
	moderationLogic *logic.ModerationLogic
}

func NewModerationHandler(moderationLogic *logic.ModerationLogic) *ModerationHandler {
	return &ModerationHandler{
		moderationLogic: moderationLogic,
	}
}

type moderationAction func(ctx context.Context, bountyID int64, actor *model.Profile) (*logic.ModerationResult, error)

// run 鉴权、解析悬赏 ID 后执行动作，失败提示以 200 返回
func (h *ModerationHandler) run(c *gin.Context, action moderationAction) {
	profile, ok := requireProfile(c)
	if !ok {
		return
	}
	id, ok := bountyID(c, "id")
	if !ok {
		return
	}
	result, err := action(c.Request.Context(), id, profile)
	if err != nil {
		ActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Remarket 重新推广
func (h *ModerationHandler) Remarket(c *gin.Context) {
	h.run(c, h.moderationLogic.Remarket)
}

// ExtendExpiration 延长截止时间
func (h *ModerationHandler) ExtendExpiration(c *gin.Context) {
	deadline, err := strconv.ParseInt(c.PostForm("deadline"), 10, 64)
	if err != nil || deadline <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deadline"})
		return
	}
	h.run(c, func(ctx context.Context, id int64, actor *model.Profile) (*logic.ModerationResult, error) {
		return h.moderationLogic.ExtendExpiration(ctx, id, actor, deadline)
	})
}

// ReleaseToPublic 释放预留
func (h *ModerationHandler) ReleaseToPublic(c *gin.Context) {
	h.run(c, h.moderationLogic.ReleaseToPublic)
}

// OverrideStatus 管理员覆盖状态
func (h *ModerationHandler) OverrideStatus(c *gin.Context) {
	status := c.PostForm("status")
	h.run(c, func(ctx context.Context, id int64, actor *model.Profile) (*logic.ModerationResult, error) {
		return h.moderationLogic.OverrideStatus(ctx, id, actor, status)
	})
}

// Hide 隐藏悬赏
func (h *ModerationHandler) Hide(c *gin.Context) {
	h.run(c, h.moderationLogic.Hide)
}

// ToggleRemarketReady 切换可重新推广
func (h *ModerationHandler) ToggleRemarketReady(c *gin.Context) {
	h.run(c, h.moderationLogic.ToggleRemarketReady)
}

// SuspendAutoApproval 暂停自动批准
func (h *ModerationHandler) SuspendAutoApproval(c *gin.Context) {
	h.run(c, h.moderationLogic.SuspendAutoApproval)
}
