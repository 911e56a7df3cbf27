package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/logic"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// V1Response v1 接口统一以 200 返回，状态码放在 body 中
func V1Response(c *gin.Context, result *logic.V1Result, err error) {
	var be *logic.BusinessError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.As(err, &be):
		c.JSON(http.StatusOK, gin.H{"status": be.Code, "message": be.Message})
	default:
		logger.Error("[%s] v1 request failed: %v", requestID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": http.StatusInternalServerError, "message": "error: internal server error"})
	}
}

// ActionError 动作类接口的错误响应
func ActionError(c *gin.Context, err error) {
	var refusal *logic.InterestRefusal
	switch {
	case errors.As(err, &refusal):
		status := http.StatusUnauthorized
		if errors.Is(err, logic.ErrMissingWorker) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": refusal.Message})
	case errors.Is(err, logic.ErrBountyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Bounty doesn't exist!"})
	default:
		logger.Error("[%s] action failed: %v", requestID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
