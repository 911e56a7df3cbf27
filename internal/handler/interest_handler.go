package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zoek1/web-1/internal/logic"
)

type InterestHandler struct {
	interestLogic *logic.InterestLogic
}

func NewInterestHandler(interestLogic *logic.InterestLogic) *InterestHandler {
	return &InterestHandler{
		interestLogic: interestLogic,
	}
}

// NewInterest 认领悬赏
func (h *InterestHandler) NewInterest(c *gin.Context) {
	profile, ok := requireProfile(c)
	if !ok {
		return
	}
	id, ok := bountyID(c, "id")
	if !ok {
		return
	}

	result, err := h.interestLogic.Claim(c.Request.Context(), id, profile, c.PostForm("issue_message"))
	if err != nil {
		ActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"profile": result.Profile,
		"msg":     result.Msg,
	})
}

// RemoveInterest 贡献者退出
func (h *InterestHandler) RemoveInterest(c *gin.Context) {
	profile, ok := requireProfile(c)
	if !ok {
		return
	}
	id, ok := bountyID(c, "id")
	if !ok {
		return
	}

	result, err := h.interestLogic.Withdraw(c.Request.Context(), id, profile)
	if err != nil {
		ActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Uninterested 发布者或管理员移除贡献者
func (h *InterestHandler) Uninterested(c *gin.Context) {
	profile, ok := requireProfile(c)
	if !ok {
		return
	}
	id, ok := bountyID(c, "id")
	if !ok {
		return
	}
	workerID, err := strconv.ParseInt(c.Param("profile_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的用户ID"})
		return
	}
	slashed, _ := strconv.ParseBool(c.PostForm("slashed"))

	result, err := h.interestLogic.Remove(c.Request.Context(), id, profile, workerID, slashed)
	if err != nil {
		ActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// MutateWorker 批准或拒绝申请
func (h *InterestHandler) MutateWorker(c *gin.Context) {
	profile, ok := requireProfile(c)
	if !ok {
		return
	}
	id, ok := bountyID(c, "id")
	if !ok {
		return
	}

	worker := c.Query("worker")
	var (
		result *logic.ModerationResult
		err    error
	)
	switch c.Param("action") {
	case "approve":
		result, err = h.interestLogic.Approve(c.Request.Context(), id, profile, worker)
	case "reject":
		result, err = h.interestLogic.Reject(c.Request.Context(), id, profile, worker)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown worker action"})
		return
	}
	if err != nil {
		ActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
