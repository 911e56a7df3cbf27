package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zoek1/web-1/internal/logic"
)

type V1Handler struct {
	v1Logic *logic.V1Logic
}

func NewV1Handler(v1Logic *logic.V1Logic) *V1Handler {
	return &V1Handler{
		v1Logic: v1Logic,
	}
}

func badV1Request(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"status": logic.CodeBadRequest, "message": message})
}

// decodeJSONField 表单中的 JSON 字段，空串视为未提供
func decodeJSONField(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return nil, nil
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBounty 链下创建悬赏
func (h *V1Handler) CreateBounty(c *gin.Context) {
	var form CreateBountyForm
	if err := c.ShouldBind(&form); err != nil {
		badV1Request(c, "error: Bad Request. Unable to create bounty")
		return
	}
	metadata, err := decodeJSONField(form.Metadata)
	if err != nil {
		badV1Request(c, "error: invalid metadata")
		return
	}
	privacy, err := decodeJSONField(form.PrivacyPreferences)
	if err != nil {
		badV1Request(c, "error: invalid privacy_preferences")
		return
	}
	autoApprove := form.AutoApproveWorkers == nil || *form.AutoApproveWorkers

	result, err := h.v1Logic.Create(c.Request.Context(), currentProfile(c), &logic.CreateBountyRequest{
		GithubURL:                 form.GithubURL,
		Title:                     form.Title,
		IssueDescription:          form.IssueDescription,
		TokenName:                 form.TokenName,
		TokenAddress:              form.TokenAddress,
		ValueInToken:              form.ValueInToken,
		Amount:                    form.Amount,
		BountyType:                form.BountyType,
		ProjectLength:             form.ProjectLength,
		ExperienceLevel:           form.ExperienceLevel,
		EstimatedHours:            form.EstimatedHours,
		BountyOwnerGithubUsername: form.BountyOwnerGithubUsername,
		BountyOwnerAddress:        form.BountyOwnerAddress,
		BountyOwnerEmail:          form.BountyOwnerEmail,
		BountyOwnerName:           form.BountyOwnerName,
		AttachedJobDescription:    form.AttachedJobDescription,
		FeeAmount:                 form.FeeAmount,
		FeeTxId:                   form.FeeTxId,
		Metadata:                  metadata,
		PrivacyPreferences:        privacy,
		RepoType:                  form.RepoType,
		ProjectType:               form.ProjectType,
		PermissionType:            form.PermissionType,
		BountyCategories:          splitList(form.BountyCategories),
		Network:                   form.Network,
		Web3Type:                  form.Web3Type,
		AutoApproveWorkers:        autoApprove,
		ExpiresDate:               form.ExpiresDate,
		IsFeatured:                form.IsFeatured,
		BountyReservedFor:         form.BountyReservedFor,
		ReleaseToPublic:           form.ReleaseToPublic,
	})
	V1Response(c, result, err)
}

// CancelBounty 发布者取消悬赏
func (h *V1Handler) CancelBounty(c *gin.Context) {
	var form CancelBountyForm
	if err := c.ShouldBind(&form); err != nil {
		badV1Request(c, "error: Bad Request. Unable to cancel bounty")
		return
	}
	result, err := h.v1Logic.Cancel(c.Request.Context(), currentProfile(c), form.Pk, form.CanceledBountyReason)
	V1Response(c, result, err)
}

// FulfillBounty 提交工作
func (h *V1Handler) FulfillBounty(c *gin.Context) {
	var form FulfillBountyForm
	if err := c.ShouldBind(&form); err != nil {
		badV1Request(c, "error: Bad Request. Unable to fulfill bounty")
		return
	}
	metadata, err := decodeJSONField(form.Metadata)
	if err != nil {
		badV1Request(c, "error: invalid metadata")
		return
	}
	result, err := h.v1Logic.Fulfill(c.Request.Context(), currentProfile(c), &logic.FulfillBountyRequest{
		IssueURL:         form.IssueURL,
		FulfillerAddress: form.FulfillerAddress,
		Email:            form.Email,
		HoursWorked:      form.HoursWorked,
		GithubPRLink:     form.GithubPRLink,
		Metadata:         metadata,
	})
	V1Response(c, result, err)
}

// PayoutBounty 记录打款
func (h *V1Handler) PayoutBounty(c *gin.Context) {
	var form PayoutForm
	if err := c.ShouldBind(&form); err != nil {
		badV1Request(c, "error: Bad Request. Unable to payout bounty")
		return
	}
	fulfillmentID, _ := strconv.ParseInt(c.Param("fulfillment_id"), 10, 64)
	result, err := h.v1Logic.Payout(c.Request.Context(), currentProfile(c), &logic.PayoutRequest{
		FulfillmentID:      fulfillmentID,
		Amount:             form.Amount,
		TokenName:          form.TokenName,
		BountyOwnerAddress: form.BountyOwnerAddress,
		PayoutTxId:         form.PayoutTxId,
		PayoutType:         form.PayoutType,
	})
	V1Response(c, result, err)
}

// CloseBounty 关闭悬赏
func (h *V1Handler) CloseBounty(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("bounty_id"), 10, 64)
	result, err := h.v1Logic.Close(c.Request.Context(), currentProfile(c), id)
	V1Response(c, result, err)
}
