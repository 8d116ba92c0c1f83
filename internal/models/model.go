package models

import (
	"strings"
	"time"
)

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	AuctionStatusScheduled AuctionStatus = "SCHEDULED"
	AuctionStatusLive      AuctionStatus = "LIVE"
	AuctionStatusClosing   AuctionStatus = "CLOSING"
	AuctionStatusClosed    AuctionStatus = "CLOSED"
)

// ParseAuctionStatus returns the status matching s, ignoring case
func ParseAuctionStatus(s string) (AuctionStatus, bool) {
	switch AuctionStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case AuctionStatusScheduled:
		return AuctionStatusScheduled, true
	case AuctionStatusLive:
		return AuctionStatusLive, true
	case AuctionStatusClosing:
		return AuctionStatusClosing, true
	case AuctionStatusClosed:
		return AuctionStatusClosed, true
	}
	return "", false
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	switch s {
	case AuctionStatusScheduled:
		return next == AuctionStatusLive
	case AuctionStatusLive:
		return next == AuctionStatusClosing
	case AuctionStatusClosing:
		return next == AuctionStatusClosed
	default:
		return false
	}
}

// User is a marketplace participant and the owner of one ledger entry.
// Balances are integer minor units.
type User struct {
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	AvailableBalance int64     `json:"available_balance"`
	ReservedBalance  int64     `json:"reserved_balance"`
	CreatedAt        time.Time `json:"created_at"`
}

// Auction is a single-item English auction
type Auction struct {
	AuctionID          string        `json:"auction_id"`
	SellerID           string        `json:"seller_id"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	ImageKey           string        `json:"image_key,omitempty"`
	StartPrice         int64         `json:"start_price"`
	CurrentPrice       int64         `json:"current_price"`
	CurrentLeaderID    *string       `json:"current_leader_id"`
	CurrentLeaderBidID *string       `json:"current_leader_bid_id"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            time.Time     `json:"end_time"`
	Status             AuctionStatus `json:"status"`
	Version            int64         `json:"version"`
}

// HasLeader reports whether a bid has ever been accepted
func (a Auction) HasLeader() bool {
	return a.CurrentLeaderID != nil
}

// LeaderID returns the current leader id, or "" when there is none
func (a Auction) LeaderID() string {
	if a.CurrentLeaderID == nil {
		return ""
	}
	return *a.CurrentLeaderID
}

// Bid represents an accepted bid on an auction. Bids are never updated.
type Bid struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Settlement records the final transfer of a closed auction with a winner
type Settlement struct {
	SettlementID string    `json:"settlement_id"`
	AuctionID    string    `json:"auction_id"`
	WinnerID     string    `json:"winner_id"`
	SellerID     string    `json:"seller_id"`
	Amount       int64     `json:"amount"`
	CreatedAt    time.Time `json:"created_at"`
}

// NotificationType classifies user notifications
type NotificationType string

const (
	NotificationOutbid       NotificationType = "OUTBID"
	NotificationAuctionWon   NotificationType = "AUCTION_WON"
	NotificationSaleComplete NotificationType = "SALE_COMPLETE"
)

// Notification is a message shown to a single user
type Notification struct {
	NotificationID string           `json:"notification_id"`
	UserID         string           `json:"user_id"`
	Type           NotificationType `json:"type"`
	Message        string           `json:"message"`
	AuctionID      string           `json:"auction_id,omitempty"`
	Read           bool             `json:"read"`
	CreatedAt      time.Time        `json:"created_at"`
}
