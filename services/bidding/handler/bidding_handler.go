package handler

import (
	"context"
	"net/http"

	bidding "livebid/internal/biddingService"
	model "livebid/internal/models"
	"livebid/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -destination=mock_services.go -package=handler livebid/services/bidding/handler BiddingServiceInterface,NotificationServiceInterface

type BiddingServiceInterface interface {
	CreateUser(ctx context.Context, email, name string) (model.User, error)
	GetUser(ctx context.Context, userID string) (model.User, error)
	CreateAuction(ctx context.Context, in bidding.CreateAuctionInput) (model.Auction, error)
	UpdateAuctionDetails(ctx context.Context, auctionID string, in bidding.UpdateAuctionInput) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	SearchAuctions(ctx context.Context, query string, status model.AuctionStatus) ([]model.Auction, error)
	GetAuctionsBySeller(ctx context.Context, sellerID string) ([]model.Auction, error)
	GetAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetSalesByUser(ctx context.Context, userID string) ([]model.Settlement, error)
	GetPurchasesByUser(ctx context.Context, userID string) ([]model.Settlement, error)
	ConvertToLive(ctx context.Context, auctionID string) (model.Auction, error)
	CloseAuction(ctx context.Context, auctionID string) error
	ResumeClosing(ctx context.Context, auctionID string) error
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount int64) (model.Bid, error)
}

type NotificationServiceInterface interface {
	List(ctx context.Context, userID string) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type BiddingHandler struct {
	service       BiddingServiceInterface
	notifications NotificationServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface, notifications NotificationServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service, notifications: notifications}
}

// HealthHandler handles GET /healthz
func (h *BiddingHandler) HealthHandler(c *gin.Context) {
	utils.JSONMessage(c, http.StatusOK, "ok")
}
