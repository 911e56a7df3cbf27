package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zoek1/web-1/internal/logic"
	"github.com/zoek1/web-1/internal/repository"
)

type BountyHandler struct {
	bountyLogic *logic.BountyLogic
}

func NewBountyHandler(bountyLogic *logic.BountyLogic) *BountyHandler {
	return &BountyHandler{
		bountyLogic: bountyLogic,
	}
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// listFilter 从查询参数构造过滤条件
func listFilter(c *gin.Context) repository.ListFilter {
	f := repository.ListFilter{
		GithubURLs:                splitList(c.Query("github_url")),
		Started:                   splitList(c.Query("started")),
		FulfillerGithubUsername:   c.Query("fulfiller_github_username"),
		InterestedGithubUsername:  c.Query("interested_github_username"),
		OrderBy:                   c.Query("order_by"),
		ExperienceLevel:           c.Query("experience_level"),
		ProjectLength:             c.Query("project_length"),
		BountyType:                c.Query("bounty_type"),
		BountyOwnerAddress:        c.Query("bounty_owner_address"),
		IdxStatus:                 c.Query("idx_status"),
		Network:                   c.Query("network"),
		BountyOwnerGithubUsername: c.Query("bounty_owner_github_username"),
	}
	f.PkGt, _ = strconv.ParseInt(c.Query("pk__gt"), 10, 64)
	if v, ok := c.GetQuery("is_open"); ok {
		open := strings.EqualFold(v, "true")
		f.IsOpen = &open
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 10
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// GetBounties 获取悬赏列表
func (h *BountyHandler) GetBounties(c *gin.Context) {
	filter := listFilter(c)
	bounties, total, err := h.bountyLogic.List(c.Request.Context(), filter)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", gin.H{
		"bounties":   bounties,
		"pagination": Pagination{Limit: filter.Limit, Offset: filter.Offset, Total: total},
	})
}

func bountyID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "无效的悬赏ID")
		return 0, false
	}
	return id, true
}

// GetBounty 获取单个悬赏详情
func (h *BountyHandler) GetBounty(c *gin.Context) {
	id, ok := bountyID(c, "id")
	if !ok {
		return
	}

	bounty, err := h.bountyLogic.Get(c.Request.Context(), id)
	if errors.Is(err, logic.ErrBountyNotFound) {
		ErrorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	if bounty.AdminOverrideAndHide {
		ErrorResponse(c, http.StatusGone, "bounty is no longer available")
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", bounty)
}

// GetBountyHistory 同一链上悬赏的全部修订
func (h *BountyHandler) GetBountyHistory(c *gin.Context) {
	id, ok := bountyID(c, "id")
	if !ok {
		return
	}

	revisions, err := h.bountyLogic.History(c.Request.Context(), id)
	if errors.Is(err, logic.ErrBountyNotFound) {
		ErrorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", gin.H{"revisions": revisions})
}
