package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zoek1/web-1/internal/logic"
	"github.com/zoek1/web-1/internal/model"
)

type TipHandler struct {
	payoutLogic *logic.PayoutLogic
}

func NewTipHandler(payoutLogic *logic.PayoutLogic) *TipHandler {
	return &TipHandler{
		payoutLogic: payoutLogic,
	}
}

// RecordTip 保存打赏并记录收入
func (h *TipHandler) RecordTip(c *gin.Context) {
	var body TipBody
	if err := c.ShouldBindJSON(&body); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	from := body.FromUsername
	if from == "" {
		if p := currentProfile(c); p != nil {
			from = p.Handle
		}
	}

	tip := &model.Tip{
		Username:             body.Username,
		FromUsername:         from,
		TokenName:            body.TokenName,
		Amount:               body.Amount,
		Network:              body.Network,
		Txid:                 body.Txid,
		TxStatus:             body.TxStatus,
		GithubURL:            body.GithubURL,
		IsForBountyFulfiller: body.IsForBountyFulfiller,
	}
	earning, err := h.payoutLogic.RecordTip(c.Request.Context(), tip)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusCreated, "tip recorded", gin.H{
		"tip":     tip,
		"earning": earning,
	})
}
