package helpers

import (
	"time"

	bidding "livebid/internal/biddingService"
	model "livebid/internal/models"
)

// Request/Response DTOs. Money is always in integer minor units.

type CreateUserRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

type CreateAuctionRequest struct {
	SellerID    string    `json:"seller_id" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	ImageKey    string    `json:"image_key"`
	StartPrice  int64     `json:"start_price" binding:"required,gt=0"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
}

// UpdateAuctionRequest carries a partial update; omitted fields are kept.
// Version, when set, must match the stored auction.
type UpdateAuctionRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	ImageKey    *string    `json:"image_key"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Version     *int64     `json:"version"`
}

type PlaceBidRequest struct {
	BidderID string `json:"bidder_id" binding:"required"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
}

type BidResponse struct {
	BidID     string `json:"bid_id"`
	AuctionID string `json:"auction_id"`
	BidderID  string `json:"bidder_id"`
	Amount    int64  `json:"amount"`
	CreatedAt string `json:"created_at"`
}

type AuctionResponse struct {
	AuctionID       string              `json:"auction_id"`
	SellerID        string              `json:"seller_id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	ImageKey        string              `json:"image_key,omitempty"`
	StartPrice      int64               `json:"start_price"`
	CurrentPrice    int64               `json:"current_price"`
	MinimumNextBid  int64               `json:"minimum_next_bid"`
	CurrentLeaderID *string             `json:"current_leader_id"`
	StartTime       string              `json:"start_time"`
	EndTime         string              `json:"end_time"`
	Status          model.AuctionStatus `json:"status"`
	Version         int64               `json:"version"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// ToCreateAuctionInput converts the request into service input
func (r CreateAuctionRequest) ToCreateAuctionInput() bidding.CreateAuctionInput {
	return bidding.CreateAuctionInput{
		SellerID:    r.SellerID,
		Title:       r.Title,
		Description: r.Description,
		ImageKey:    r.ImageKey,
		StartPrice:  r.StartPrice,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
	}
}

// ToUpdateAuctionInput converts the request into service input
func (r UpdateAuctionRequest) ToUpdateAuctionInput() bidding.UpdateAuctionInput {
	return bidding.UpdateAuctionInput{
		Title:       r.Title,
		Description: r.Description,
		ImageKey:    r.ImageKey,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Version:     r.Version,
	}
}

func NewBidResponse(b model.Bid) BidResponse {
	return BidResponse{
		BidID:     b.BidID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func NewBidResponses(bids []model.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, NewBidResponse(b))
	}
	return out
}

func NewAuctionResponse(a model.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:       a.AuctionID,
		SellerID:        a.SellerID,
		Title:           a.Title,
		Description:     a.Description,
		ImageKey:        a.ImageKey,
		StartPrice:      a.StartPrice,
		CurrentPrice:    a.CurrentPrice,
		MinimumNextBid:  bidding.MinimumBid(a.CurrentPrice),
		CurrentLeaderID: a.CurrentLeaderID,
		StartTime:       a.StartTime.UTC().Format(time.RFC3339),
		EndTime:         a.EndTime.UTC().Format(time.RFC3339),
		Status:          a.Status,
		Version:         a.Version,
	}
}

func NewAuctionResponses(auctions []model.Auction) []AuctionResponse {
	out := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, NewAuctionResponse(a))
	}
	return out
}
