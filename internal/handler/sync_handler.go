package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zoek1/web-1/internal/logic"
	"github.com/zoek1/web-1/internal/model"
)

// SyncHandler 链上同步处理器
type SyncHandler struct {
	syncLogic *logic.SyncLogic
}

// NewSyncHandler 创建同步处理器
func NewSyncHandler(syncLogic *logic.SyncLogic) *SyncHandler {
	return &SyncHandler{
		syncLogic: syncLogic,
	}
}

// SyncWeb3 交易上链后立即同步
func (h *SyncHandler) SyncWeb3(c *gin.Context) {
	var form SyncWeb3Form
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "msg": "bad request"})
		return
	}

	result, err := h.syncLogic.SyncWeb3(c.Request.Context(), form.URL, form.Txid, form.Network)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(result.Status, result)
}

// EnqueueSync 加入同步队列
func (h *SyncHandler) EnqueueSync(c *gin.Context) {
	var body SyncRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	req := &model.BountySyncRequest{
		Network:            body.Network,
		StandardBountiesId: body.StandardBountiesId,
		GithubURL:          body.GithubURL,
		Txid:               body.Txid,
	}
	added, err := h.syncLogic.Enqueue(c.Request.Context(), req)
	if errors.Is(err, logic.ErrInvalidSyncRequest) {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !added {
		SuccessResponse(c, http.StatusOK, "already queued", nil)
		return
	}
	SuccessResponse(c, http.StatusAccepted, "queued", req)
}
