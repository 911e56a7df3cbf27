package router

import (
	"github.com/gin-gonic/gin"
	"github.com/zoek1/web-1/internal/handler"
	"github.com/zoek1/web-1/internal/logic"
	"github.com/zoek1/web-1/internal/repository"
)

func Setup(svc *logic.Services) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(handler.RequestID())
	r.Use(handler.Identity(repository.NewProfileRepository(svc.DB)))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "bountyd",
		})
	})

	bountyHandler := handler.NewBountyHandler(svc.Bounties)
	v01 := r.Group("/api/v0.1")
	{
		bounties := v01.Group("/bounties")
		{
			bounties.GET("", bountyHandler.GetBounties)
			bounties.GET("/:id", bountyHandler.GetBounty)
			bounties.GET("/:id/history", bountyHandler.GetBountyHistory)
		}
	}

	v1Handler := handler.NewV1Handler(svc.V1)
	syncHandler := handler.NewSyncHandler(svc.Sync)
	tipHandler := handler.NewTipHandler(svc.Payouts)
	v1 := r.Group("/api/v1")
	{
		bounty := v1.Group("/bounty")
		{
			bounty.POST("/create", v1Handler.CreateBounty)
			bounty.POST("/cancel", v1Handler.CancelBounty)
			bounty.POST("/fulfill", v1Handler.FulfillBounty)
			bounty.POST("/payout/:fulfillment_id", v1Handler.PayoutBounty)
			bounty.POST("/:bounty_id/close", v1Handler.CloseBounty)
		}
		v1.POST("/sync/requests", syncHandler.EnqueueSync)
		v1.POST("/tips", tipHandler.RecordTip)
	}

	interestHandler := handler.NewInterestHandler(svc.Interests)
	moderationHandler := handler.NewModerationHandler(svc.Moderation)
	actions := r.Group("/actions/bounty/:id")
	{
		actions.POST("/interest/new", interestHandler.NewInterest)
		actions.POST("/interest/remove", interestHandler.RemoveInterest)
		actions.POST("/interest/:profile_id/uninterested", interestHandler.Uninterested)
		actions.POST("/worker/:action", interestHandler.MutateWorker)

		actions.POST("/remarket", moderationHandler.Remarket)
		actions.POST("/extend_expiration", moderationHandler.ExtendExpiration)
		actions.POST("/release_to_public", moderationHandler.ReleaseToPublic)
		actions.POST("/override_status", moderationHandler.OverrideStatus)
		actions.POST("/hide", moderationHandler.Hide)
		actions.POST("/toggle_remarket_ready", moderationHandler.ToggleRemarketReady)
		actions.POST("/suspend_auto_approval", moderationHandler.SuspendAutoApproval)
	}

	r.POST("/sync/web3", syncHandler.SyncWeb3)

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Profile-Handle, X-Request-Id")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
