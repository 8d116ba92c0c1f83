package handler

import (
	"net/http"
	"strings"

	"livebid/internal/biddingerrors"
	model "livebid/internal/models"
	"livebid/services/bidding/helpers"
	"livebid/utils"

	"github.com/gin-gonic/gin"
)

// CreateAuctionHandler handles POST /auctions
func (h *BiddingHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), req.ToCreateAuctionInput())
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, map[string]any{"seller_id": req.SellerID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewAuctionResponse(auction), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  auction.SellerID,
	})
}

// SearchAuctionsHandler handles GET /auctions?search=&status=
func (h *BiddingHandler) SearchAuctionsHandler(c *gin.Context) {
	query := strings.TrimSpace(c.Query("search"))

	var status model.AuctionStatus
	if raw := c.Query("status"); raw != "" {
		parsed, ok := model.ParseAuctionStatus(raw)
		if !ok {
			helpers.RespondError(c, "SearchAuctionsHandler", biddingerrors.ErrInvalidAuction, map[string]any{"status": raw})
			return
		}
		status = parsed
	}

	auctions, err := h.service.SearchAuctions(c.Request.Context(), query, status)
	if err != nil {
		helpers.RespondError(c, "SearchAuctionsHandler", err, map[string]any{"search": query})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponses(auctions), "auctions retrieved successfully")
	helpers.LogSuccess("SearchAuctionsHandler", "auctions retrieved successfully", map[string]any{
		"search": query,
		"status": string(status),
		"count":  len(auctions),
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction retrieved successfully")
}

// UpdateAuctionHandler handles PATCH /auctions/:auction_id
func (h *BiddingHandler) UpdateAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.UpdateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}

	auction, err := h.service.UpdateAuctionDetails(c.Request.Context(), auctionID, req.ToUpdateAuctionInput())
	if err != nil {
		helpers.RespondError(c, "UpdateAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction updated successfully")
	helpers.LogSuccess("UpdateAuctionHandler", "auction updated successfully", map[string]any{
		"auction_id": auctionID,
		"version":    auction.Version,
	})
}

// StartAuctionHandler handles POST /auctions/:auction_id/start
func (h *BiddingHandler) StartAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.ConvertToLive(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "StartAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction started successfully")
	helpers.LogSuccess("StartAuctionHandler", "auction started successfully", map[string]any{
		"auction_id": auctionID,
		"end_time":   auction.EndTime,
	})
}

// CloseAuctionHandler handles POST /auctions/:auction_id/close. Closing is
// idempotent; the response always carries the auction's current state.
func (h *BiddingHandler) CloseAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	ctx := c.Request.Context()

	if err := h.service.CloseAuction(ctx, auctionID); err != nil {
		helpers.RespondError(c, "CloseAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	auction, err := h.service.GetAuction(ctx, auctionID)
	if err != nil {
		helpers.RespondError(c, "CloseAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction close processed")
	helpers.LogSuccess("CloseAuctionHandler", "auction close processed", map[string]any{
		"auction_id": auctionID,
		"status":     string(auction.Status),
	})
}

// ResumeClosingHandler retries settlement of an auction stuck in CLOSING
func (h *BiddingHandler) ResumeClosingHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	ctx := c.Request.Context()

	if err := h.service.ResumeClosing(ctx, auctionID); err != nil {
		helpers.RespondError(c, "ResumeClosingHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	auction, err := h.service.GetAuction(ctx, auctionID)
	if err != nil {
		helpers.RespondError(c, "ResumeClosingHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction settlement resumed")
	helpers.LogSuccess("ResumeClosingHandler", "auction settlement resumed", map[string]any{
		"auction_id": auctionID,
		"status":     string(auction.Status),
	})
}
