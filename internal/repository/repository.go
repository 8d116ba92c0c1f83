package repository

import (
	"context"
	"time"

	model "livebid/internal/models"
)

//go:generate mockgen -destination=mock_repository.go -package=repository livebid/internal/repository AuctionDB,Tx,NotificationStore

// Tx is one all-or-nothing unit of work. Rows must be locked before they are
// written; every lock is released when the unit ends, commit or rollback.
type Tx interface {
	// LockAuction takes the exclusive lock on an auction row and returns it
	LockAuction(ctx context.Context, auctionID string) (model.Auction, error)
	// LockUser takes the exclusive lock on a user's ledger row and returns it
	LockUser(ctx context.Context, userID string) (model.User, error)
	SaveAuction(ctx context.Context, auction model.Auction) error
	SaveUser(ctx context.Context, user model.User) error
	InsertBid(ctx context.Context, bid model.Bid) error
	InsertSettlement(ctx context.Context, settlement model.Settlement) error
	// AfterCommit registers fn to run after a successful commit and before
	// the row locks are released. Hooks of a rolled back unit never run.
	AfterCommit(fn func())
}

// TxRunner runs fn inside a transaction. If fn returns an error nothing it
// staged becomes visible.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// AuctionFilter narrows ListAuctions. Zero values match everything.
type AuctionFilter struct {
	Query    string
	Status   model.AuctionStatus
	SellerID string
}

// AuctionStore holds auction rows outside the locking path
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction model.Auction) error
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	// UpdateAuction persists auction if its Version still matches the stored
	// one and bumps the version.
	UpdateAuction(ctx context.Context, auction model.Auction) (model.Auction, error)
	ListAuctions(ctx context.Context, filter AuctionFilter) ([]model.Auction, error)
	// ClaimForClosing atomically moves a LIVE auction whose end time is
	// before now to CLOSING. It reports false when nothing was claimed.
	ClaimForClosing(ctx context.Context, auctionID string, now time.Time) (bool, error)
	// FindExpiredLive returns ids of LIVE auctions whose end time is before now
	FindExpiredLive(ctx context.Context, now time.Time) ([]string, error)
	// FindStuckClosing returns ids of auctions still in CLOSING, i.e. claimed
	// but not yet settled
	FindStuckClosing(ctx context.Context) ([]string, error)
}

// UserStore holds user rows outside the locking path
type UserStore interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUser(ctx context.Context, userID string) (model.User, error)
}

// BidStore exposes the append-only bid history
type BidStore interface {
	GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error)
}

// SettlementStore exposes settlement records
type SettlementStore interface {
	GetSettlementByAuction(ctx context.Context, auctionID string) (model.Settlement, error)
	ListSettlementsBySeller(ctx context.Context, sellerID string) ([]model.Settlement, error)
	ListSettlementsByWinner(ctx context.Context, winnerID string) ([]model.Settlement, error)
}

// NotificationStore holds user notifications
type NotificationStore interface {
	CreateNotification(ctx context.Context, n model.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// AuctionDB is the storage boundary used by the bidding service
type AuctionDB interface {
	TxRunner
	AuctionStore
	UserStore
	BidStore
	SettlementStore
}
