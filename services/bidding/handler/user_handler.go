package handler

import (
	"net/http"

	model "livebid/internal/models"
	"livebid/services/bidding/helpers"
	"livebid/utils"

	"github.com/gin-gonic/gin"
)

// CreateUserHandler handles POST /users
func (h *BiddingHandler) CreateUserHandler(c *gin.Context) {
	var req helpers.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateUserHandler", err)
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		helpers.RespondError(c, "CreateUserHandler", err, nil)
		return
	}

	utils.JSONResponse(c, http.StatusCreated, user, "user created successfully")
	helpers.LogSuccess("CreateUserHandler", "user created successfully", map[string]any{"user_id": user.UserID})
}

// GetUserHandler handles GET /users/:user_id
func (h *BiddingHandler) GetUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetUserHandler", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, user, "user retrieved successfully")
}

// GetAuctionsBySellerHandler handles GET /users/:user_id/auctions
func (h *BiddingHandler) GetAuctionsBySellerHandler(c *gin.Context) {
	userID := c.Param("user_id")
	auctions, err := h.service.GetAuctionsBySeller(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionsBySellerHandler", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponses(auctions), "auctions retrieved successfully")
	helpers.LogSuccess("GetAuctionsBySellerHandler", "auctions retrieved successfully", map[string]any{
		"user_id": userID,
		"count":   len(auctions),
	})
}

// GetAuctionsByBidderHandler handles GET /users/:user_id/bids
func (h *BiddingHandler) GetAuctionsByBidderHandler(c *gin.Context) {
	userID := c.Param("user_id")
	auctions, err := h.service.GetAuctionsByBidder(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionsByBidderHandler", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponses(auctions), "auctions retrieved successfully")
	helpers.LogSuccess("GetAuctionsByBidderHandler", "auctions retrieved successfully", map[string]any{
		"user_id": userID,
		"count":   len(auctions),
	})
}

// GetSalesHandler handles GET /users/:user_id/sales
func (h *BiddingHandler) GetSalesHandler(c *gin.Context) {
	userID := c.Param("user_id")
	sales, err := h.service.GetSalesByUser(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetSalesHandler", err, map[string]any{"user_id": userID})
		return
	}
	if sales == nil {
		sales = []model.Settlement{}
	}

	utils.JSONResponse(c, http.StatusOK, sales, "sales retrieved successfully")
}

// GetPurchasesHandler handles GET /users/:user_id/purchases
func (h *BiddingHandler) GetPurchasesHandler(c *gin.Context) {
	userID := c.Param("user_id")
	purchases, err := h.service.GetPurchasesByUser(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetPurchasesHandler", err, map[string]any{"user_id": userID})
		return
	}
	if purchases == nil {
		purchases = []model.Settlement{}
	}

	utils.JSONResponse(c, http.StatusOK, purchases, "purchases retrieved successfully")
}
