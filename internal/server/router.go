package server

import (
	"livebid/internal/server/ws"
	handler "livebid/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application. The WebSocket
// route is registered only when hub is non-nil.
func SetupRouter(biddingService handler.BiddingServiceInterface, notifications handler.NotificationServiceInterface, hub *ws.Hub) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestIDMiddleware)     // correlation id
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := handler.NewBiddingHandler(biddingService, notifications)

	router.GET("/healthz", biddingHandler.HealthHandler)
	if hub != nil {
		router.GET("/ws", hub.ServeWS)
	}

	users := router.Group("/users")
	{
		users.POST("", biddingHandler.CreateUserHandler)
		users.GET("/:user_id", biddingHandler.GetUserHandler)
		users.GET("/:user_id/auctions", biddingHandler.GetAuctionsBySellerHandler)
		users.GET("/:user_id/bids", biddingHandler.GetAuctionsByBidderHandler)
		users.GET("/:user_id/sales", biddingHandler.GetSalesHandler)
		users.GET("/:user_id/purchases", biddingHandler.GetPurchasesHandler)

		users.GET("/:user_id/notifications", biddingHandler.ListNotificationsHandler)
		users.GET("/:user_id/notifications/unread-count", biddingHandler.UnreadCountHandler)
		users.POST("/:user_id/notifications/mark-all-read", biddingHandler.MarkAllReadHandler)
		users.POST("/:user_id/notifications/:notification_id/read", biddingHandler.MarkReadHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.POST("", biddingHandler.CreateAuctionHandler)
		auctions.GET("", biddingHandler.SearchAuctionsHandler)
		auctions.GET("/:auction_id", biddingHandler.GetAuctionHandler)
		auctions.PATCH("/:auction_id", biddingHandler.UpdateAuctionHandler)
		auctions.POST("/:auction_id/start", biddingHandler.StartAuctionHandler)
		auctions.POST("/:auction_id/close", biddingHandler.CloseAuctionHandler)
		auctions.POST("/:auction_id/resume-closing", biddingHandler.ResumeClosingHandler)
		auctions.POST("/:auction_id/bids", biddingHandler.PlaceBidHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
	}

	return router
}
