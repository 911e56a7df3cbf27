package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
)

const (
	HeaderProfileHandle = "X-Profile-Handle"
	HeaderRequestID     = "X-Request-Id"

	keyProfile   = "profile"
	keyRequestID = "request_id"
)

// RequestID 为每个请求分配 id
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(keyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(keyRequestID)
}

// Identity 按 X-Profile-Handle 解析当前用户，认证由上游完成
// 找不到对应 profile 时放入只有 handle 的空 profile
func Identity(profiles *repository.ProfileRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		handle := strings.TrimPrefix(strings.TrimSpace(c.GetHeader(HeaderProfileHandle)), "@")
		if handle == "" {
			c.Next()
			return
		}
		p, err := profiles.ByHandle(c.Request.Context(), handle)
		switch {
		case err == nil:
			c.Set(keyProfile, p)
		case errors.Is(err, repository.ErrNotFound):
			c.Set(keyProfile, &model.Profile{Handle: strings.ToLower(handle)})
		default:
			logger.Warn("[%s] resolve profile %s: %v", requestID(c), handle, err)
		}
		c.Next()
	}
}

// currentProfile 当前用户，未认证时为 nil
func currentProfile(c *gin.Context) *model.Profile {
	v, ok := c.Get(keyProfile)
	if !ok {
		return nil
	}
	p, _ := v.(*model.Profile)
	return p
}

// requireProfile 动作类接口要求已有 profile
func requireProfile(c *gin.Context) (*model.Profile, bool) {
	p := currentProfile(c)
	if p == nil || p.Id == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "You must be authenticated via github to use this feature!"})
		return nil, false
	}
	return p, true
}
