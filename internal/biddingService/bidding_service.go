package bidding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"livebid/internal/biddingerrors"
	"livebid/internal/events"
	model "livebid/internal/models"
	"livebid/internal/repository"
	"livebid/utils"
)

// DefaultStartingBalance is credited to every new user, in minor units
const DefaultStartingBalance int64 = 100000

// BiddingService defines the business logic for auction bidding and closing
type BiddingService struct {
	repo            repository.AuctionDB
	outbox          *events.Outbox
	now             func() time.Time
	startingBalance int64
}

// Option configures a BiddingService
type Option func(*BiddingService)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *BiddingService) {
		s.now = now
	}
}

// WithStartingBalance sets the balance new users start with
func WithStartingBalance(amount int64) Option {
	return func(s *BiddingService) {
		s.startingBalance = amount
	}
}

// NewBiddingService creates a new BiddingService instance. Committed events
// go to outbox; a nil outbox discards them.
func NewBiddingService(repo repository.AuctionDB, outbox *events.Outbox, opts ...Option) *BiddingService {
	if outbox == nil {
		outbox = events.NewOutbox()
	}
	s := &BiddingService{
		repo:            repo,
		outbox:          outbox,
		now:             time.Now,
		startingBalance: DefaultStartingBalance,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BiddingService) clock() time.Time {
	return s.now().UTC()
}

// CreateUser registers a user with the configured starting balance
func (s *BiddingService) CreateUser(ctx context.Context, email, name string) (model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return model.User{}, fmt.Errorf("service: %w - email is required", biddingerrors.ErrInvalidUser)
	}

	user := model.User{
		UserID:           utils.GenerateID(),
		Email:            email,
		Name:             strings.TrimSpace(name),
		AvailableBalance: s.startingBalance,
		CreatedAt:        s.clock(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("service: failed to create user %s: %w", email, err)
	}
	return user, nil
}

// GetUser returns a user and their balances
func (s *BiddingService) GetUser(ctx context.Context, userID string) (model.User, error) {
	if userID == "" {
		return model.User{}, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidUser)
	}
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("service: failed to get user %s: %w", userID, err)
	}
	return u, nil
}

// CreateAuctionInput carries the seller-supplied fields of a new auction
type CreateAuctionInput struct {
	SellerID    string
	Title       string
	Description string
	ImageKey    string
	StartPrice  int64
	StartTime   time.Time
	EndTime     time.Time
}

// CreateAuction stores a new SCHEDULED auction priced at its start price
func (s *BiddingService) CreateAuction(ctx context.Context, in CreateAuctionInput) (model.Auction, error) {
	switch {
	case in.SellerID == "":
		return model.Auction{}, fmt.Errorf("service: %w - missing seller ID", biddingerrors.ErrInvalidAuction)
	case strings.TrimSpace(in.Title) == "":
		return model.Auction{}, fmt.Errorf("service: %w - missing title", biddingerrors.ErrInvalidAuction)
	case in.StartPrice <= 0:
		return model.Auction{}, fmt.Errorf("service: %w - start price must be greater than 0", biddingerrors.ErrInvalidAuction)
	case !in.StartTime.Before(in.EndTime):
		return model.Auction{}, fmt.Errorf("service: %w - start time must be before end time", biddingerrors.ErrInvalidAuction)
	}

	if _, err := s.repo.GetUser(ctx, in.SellerID); err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to load seller %s: %w", in.SellerID, err)
	}

	auction := model.Auction{
		AuctionID:    utils.GenerateID(),
		SellerID:     in.SellerID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		ImageKey:     in.ImageKey,
		StartPrice:   in.StartPrice,
		CurrentPrice: in.StartPrice,
		StartTime:    in.StartTime.UTC(),
		EndTime:      in.EndTime.UTC(),
		Status:       model.AuctionStatusScheduled,
	}
	if err := s.repo.CreateAuction(ctx, auction); err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to create auction for seller %s: %w", in.SellerID, err)
	}

	utils.Info("auction created", map[string]any{
		"auction_id":  auction.AuctionID,
		"seller_id":   auction.SellerID,
		"start_price": auction.StartPrice,
	})
	return auction, nil
}

// UpdateAuctionInput lists the editable fields of a scheduled auction. Nil
// fields are left unchanged. A non-nil Version must match the stored one.
type UpdateAuctionInput struct {
	Title       *string
	Description *string
	ImageKey    *string
	StartTime   *time.Time
	EndTime     *time.Time
	Version     *int64
}

// UpdateAuctionDetails edits a SCHEDULED auction through the optimistic
// version check instead of row locks.
func (s *BiddingService) UpdateAuctionDetails(ctx context.Context, auctionID string, in UpdateAuctionInput) (model.Auction, error) {
	if auctionID == "" {
		return model.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}

	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	if in.Version != nil && *in.Version != a.Version {
		return model.Auction{}, fmt.Errorf("service: auction %s is at version %d, not %d: %w",
			auctionID, a.Version, *in.Version, biddingerrors.ErrVersionConflict)
	}
	if a.Status != model.AuctionStatusScheduled {
		return model.Auction{}, fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrInvalidStateTransition, auctionID, a.Status)
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return model.Auction{}, fmt.Errorf("service: %w - empty title", biddingerrors.ErrInvalidAuction)
		}
		a.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		a.Description = *in.Description
	}
	if in.ImageKey != nil {
		a.ImageKey = *in.ImageKey
	}
	if in.StartTime != nil {
		a.StartTime = in.StartTime.UTC()
	}
	if in.EndTime != nil {
		a.EndTime = in.EndTime.UTC()
	}
	if !a.StartTime.Before(a.EndTime) {
		return model.Auction{}, fmt.Errorf("service: %w - start time must be before end time", biddingerrors.ErrInvalidAuction)
	}

	updated, err := s.repo.UpdateAuction(ctx, a)
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
	}
	return updated, nil
}

// GetAuction returns a single auction
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	if auctionID == "" {
		return model.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}
	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return a, nil
}

// SearchAuctions matches query against title and description and filters by
// status. Empty arguments match everything.
func (s *BiddingService) SearchAuctions(ctx context.Context, query string, status model.AuctionStatus) ([]model.Auction, error) {
	auctions, err := s.repo.ListAuctions(ctx, repository.AuctionFilter{Query: query, Status: status})
	if err != nil {
		return nil, fmt.Errorf("service: failed to search auctions: %w", err)
	}
	return auctions, nil
}

// GetAuctionsBySeller returns every auction created by the user
func (s *BiddingService) GetAuctionsBySeller(ctx context.Context, sellerID string) ([]model.Auction, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidUser)
	}
	auctions, err := s.repo.ListAuctions(ctx, repository.AuctionFilter{SellerID: sellerID})
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for seller %s: %w", sellerID, err)
	}
	return auctions, nil
}

// GetAuctionsByBidder returns all auctions a user has placed bids on
func (s *BiddingService) GetAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidUser)
	}
	auctions, err := s.repo.GetAuctionsByBidder(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for bidder %s: %w", bidderID, err)
	}
	return auctions, nil
}

// GetBidsForAuction returns all accepted bids of an auction, oldest first
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}
	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetSalesByUser returns the settlements where the user was the seller
func (s *BiddingService) GetSalesByUser(ctx context.Context, userID string) ([]model.Settlement, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidUser)
	}
	sales, err := s.repo.ListSettlementsBySeller(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get sales for user %s: %w", userID, err)
	}
	return sales, nil
}

// GetPurchasesByUser returns the settlements the user won
func (s *BiddingService) GetPurchasesByUser(ctx context.Context, userID string) ([]model.Settlement, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidUser)
	}
	purchases, err := s.repo.ListSettlementsByWinner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get purchases for user %s: %w", userID, err)
	}
	return purchases, nil
}
