package bidding

import (
	"context"
	"errors"
	"testing"
	"time"

	"livebid/internal/biddingerrors"
	"livebid/internal/events"
	model "livebid/internal/models"
	"livebid/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func strPtr(s string) *string { return &s }

// runTxWith makes RunInTx hand mockTx to the callback and run the commit
// hooks only when the callback succeeds
func runTxWith(mockRepo *repository.MockAuctionDB, mockTx *repository.MockTx) {
	var hooks []func()
	mockTx.EXPECT().AfterCommit(gomock.Any()).Do(func(fn func()) {
		hooks = append(hooks, fn)
	}).AnyTimes()
	mockRepo.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, fn func(repository.Tx) error) error {
			hooks = nil
			if err := fn(mockTx); err != nil {
				return err
			}
			for _, hook := range hooks {
				hook()
			}
			return nil
		})
}

func liveAuction(price int64, leader *string) model.Auction {
	return model.Auction{
		AuctionID:       "a1",
		SellerID:        "seller",
		StartPrice:      1000,
		CurrentPrice:    price,
		CurrentLeaderID: leader,
		StartTime:       fixedNow.Add(-time.Hour),
		EndTime:         fixedNow.Add(time.Hour),
		Status:          model.AuctionStatusLive,
		Version:         3,
	}
}

// Tests PlaceBid
func TestBiddingService_PlaceBid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		auctionID     string
		bidderID      string
		amount        int64
		mockSetup     func(repo *repository.MockAuctionDB, tx *repository.MockTx)
		expectedError error
		wantEvents    int
	}{
		{
			name:      "valid_first_bid",
			auctionID: "a1",
			bidderID:  "b1",
			amount:    1100,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(liveAuction(1000, nil), nil)
				tx.EXPECT().LockUser(gomock.Any(), "b1").Return(model.User{UserID: "b1", AvailableBalance: 5000}, nil)
				tx.EXPECT().SaveUser(gomock.Any(), model.User{UserID: "b1", AvailableBalance: 3900, ReservedBalance: 1100}).Return(nil)
				tx.EXPECT().InsertBid(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().SaveAuction(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, a model.Auction) error {
						require.Equal(t, int64(1100), a.CurrentPrice)
						require.Equal(t, "b1", a.LeaderID())
						require.NotNil(t, a.CurrentLeaderBidID)
						return nil
					})
			},
			wantEvents: 2,
		},
		{
			name:      "outbids_previous_leader_locking_in_id_order",
			auctionID: "a1",
			bidderID:  "b2",
			amount:    1200,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				gomock.InOrder(
					tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(liveAuction(1050, strPtr("b1")), nil),
					tx.EXPECT().LockUser(gomock.Any(), "b1").Return(model.User{UserID: "b1", AvailableBalance: 3950, ReservedBalance: 1050}, nil),
					tx.EXPECT().LockUser(gomock.Any(), "b2").Return(model.User{UserID: "b2", AvailableBalance: 5000}, nil),
				)
				tx.EXPECT().SaveUser(gomock.Any(), model.User{UserID: "b2", AvailableBalance: 3800, ReservedBalance: 1200}).Return(nil)
				tx.EXPECT().SaveUser(gomock.Any(), model.User{UserID: "b1", AvailableBalance: 5000, ReservedBalance: 0}).Return(nil)
				tx.EXPECT().InsertBid(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().SaveAuction(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantEvents: 3,
		},
		{
			name:      "leader_raises_own_bid_reserves_delta",
			auctionID: "a1",
			bidderID:  "b1",
			amount:    1200,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(liveAuction(1050, strPtr("b1")), nil)
				tx.EXPECT().LockUser(gomock.Any(), "b1").Return(model.User{UserID: "b1", AvailableBalance: 1200, ReservedBalance: 1050}, nil).Times(1)
				tx.EXPECT().SaveUser(gomock.Any(), model.User{UserID: "b1", AvailableBalance: 1050, ReservedBalance: 1200}).Return(nil)
				tx.EXPECT().InsertBid(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().SaveAuction(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantEvents: 2,
		},
		{
			name:      "leader_raise_needs_full_amount_available",
			auctionID: "a1",
			bidderID:  "b1",
			amount:    1200,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(liveAuction(1050, strPtr("b1")), nil)
				tx.EXPECT().LockUser(gomock.Any(), "b1").Return(model.User{UserID: "b1", AvailableBalance: 150, ReservedBalance: 1050}, nil)
			},
			expectedError: biddingerrors.ErrInsufficientFunds,
		},
		{
			name:          "empty_auctionID",
			bidderID:      "b1",
			amount:        1050,
			mockSetup:     func(*repository.MockAuctionDB, *repository.MockTx) {},
			expectedError: biddingerrors.ErrInvalidBid,
		},
		{
			name:          "empty_bidderID",
			auctionID:     "a1",
			amount:        1050,
			mockSetup:     func(*repository.MockAuctionDB, *repository.MockTx) {},
			expectedError: biddingerrors.ErrInvalidBid,
		},
		{
			name:          "zero_amount",
			auctionID:     "a1",
			bidderID:      "b1",
			mockSetup:     func(*repository.MockAuctionDB, *repository.MockTx) {},
			expectedError: biddingerrors.ErrInvalidBid,
		},
		{
			name:      "auction_not_found",
			auctionID: "a1",
			bidderID:  "b1",
			amount:    1050,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(model.Auction{}, biddingerrors.ErrAuctionNotFound)
			},
			expectedError: biddingerrors.ErrAuctionNotFound,
		},
		{
			name:      "bidder_not_found",
			auctionID: "a1",
			bidderID:  "b1",
			amount:    1050,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(liveAuction(1000, nil), nil)
				tx.EXPECT().LockUser(gomock.Any(), "b1").Return(model.User{}, biddingerrors.ErrUserNotFound)
			},
			expectedError: biddingerrors.ErrUserNotFound,
		},
		{
			name:      "previous_leader_missing_is_corruption",
			auctionID: "a1",
			bidderID:  "b2",
			amount:    1200,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(liveAuction(1050, strPtr("b1")), nil)
				tx.EXPECT().LockUser(gomock.Any(), "b1").Return(model.User{}, biddingerrors.ErrUserNotFound)
			},
			expectedError: biddingerrors.ErrDataCorruption,
		},
		{
			name:      "auction_scheduled",
			auctionID: "a1",
			bidderID:  "b1",
			amount:    100000,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				a := liveAuction(1000, nil)
				a.Status = model.AuctionStatusScheduled
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(a, nil)
				tx.EXPECT().LockUser(gomock.Any(), "b1").Return(model.User{UserID: "b1", AvailableBalance: 500000}, nil)
			},
			expectedError: biddingerrors.ErrAuctionNotLive,
		},
		{
			name:      "soft_expired",
			auctionID: "a1",
			bidderID:  "b1",
			amount:    1050,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				a := liveAuction(1000, nil)
				a.EndTime = fixedNow.Add(-time.Millisecond)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(a, nil)
				tx.EXPECT().LockUser(gomock.Any(), "b1").Return(model.User{UserID: "b1", AvailableBalance: 5000}, nil)
			},
			expectedError: biddingerrors.ErrAuctionEnded,
		},
		{
			name:      "not_above_current_price",
			auctionID: "a1",
			bidderID:  "b1",
			amount:    1000,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(liveAuction(1000, nil), nil)
				tx.EXPECT().LockUser(gomock.Any(), "b1").Return(model.User{UserID: "b1", AvailableBalance: 5000}, nil)
			},
			expectedError: biddingerrors.ErrBidTooLow,
		},
		{
			name:      "below_minimum_increment",
			auctionID: "a1",
			bidderID:  "b1",
			amount:    1099,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(liveAuction(1000, nil), nil)
				tx.EXPECT().LockUser(gomock.Any(), "b1").Return(model.User{UserID: "b1", AvailableBalance: 5000}, nil)
			},
			expectedError: biddingerrors.ErrBelowMinimumIncrement,
		},
		{
			name:      "insufficient_funds",
			auctionID: "a1",
			bidderID:  "b1",
			amount:    1100,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(liveAuction(1000, nil), nil)
				tx.EXPECT().LockUser(gomock.Any(), "b1").Return(model.User{UserID: "b1", AvailableBalance: 1099}, nil)
			},
			expectedError: biddingerrors.ErrInsufficientFunds,
		},
		{
			name:      "previous_leader_reservation_shortfall",
			auctionID: "a1",
			bidderID:  "b2",
			amount:    1200,
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(liveAuction(1050, strPtr("b1")), nil)
				tx.EXPECT().LockUser(gomock.Any(), "b1").Return(model.User{UserID: "b1", ReservedBalance: 10}, nil)
				tx.EXPECT().LockUser(gomock.Any(), "b2").Return(model.User{UserID: "b2", AvailableBalance: 5000}, nil)
				tx.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(nil)
			},
			expectedError: biddingerrors.ErrDataCorruption,
		},
		{
			name:      "repo_commit_fails",
			auctionID: "a1",
			bidderID:  "b1",
			amount:    1050,
			mockSetup: func(repo *repository.MockAuctionDB, _ *repository.MockTx) {
				repo.EXPECT().RunInTx(gomock.Any(), gomock.Any()).Return(errors.New("storage unavailable"))
			},
			expectedError: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockRepo := repository.NewMockAuctionDB(ctrl)
			mockTx := repository.NewMockTx(ctrl)
			sink := &recordingSink{}
			outbox := events.NewOutbox()
			outbox.Register("test", sink)
			service := NewBiddingService(mockRepo, outbox, WithClock(fixedClock))

			tc.mockSetup(mockRepo, mockTx)

			bid, err := service.PlaceBid(context.Background(), tc.auctionID, tc.bidderID, tc.amount)
			outbox.Flush(context.Background())

			if tc.wantEvents == 0 {
				require.Error(t, err)
				if tc.expectedError != nil {
					require.ErrorIs(t, err, tc.expectedError)
				}
				require.Empty(t, sink.events(), "rejected bids must not publish")
				return
			}

			require.NoError(t, err)
			_, parseErr := uuid.Parse(bid.BidID)
			require.NoError(t, parseErr, "BidID should be a valid UUID")
			require.Equal(t, tc.auctionID, bid.AuctionID)
			require.Equal(t, tc.bidderID, bid.BidderID)
			require.Equal(t, tc.amount, bid.Amount)
			require.Equal(t, fixedNow, bid.CreatedAt)

			got := sink.events()
			require.Len(t, got, tc.wantEvents)
			placed, ok := got[len(got)-1].(events.BidPlaced)
			require.True(t, ok, "last event should be BidPlaced")
			require.Equal(t, tc.amount, placed.NewPrice)
			require.Equal(t, tc.bidderID, placed.NewLeaderID)
		})
	}
}

// Tests CloseAuction with mocks
func TestBiddingService_CloseAuction(t *testing.T) {
	t.Parallel()

	closing := func(leader *string) model.Auction {
		a := liveAuction(1200, leader)
		a.EndTime = fixedNow.Add(-time.Second)
		a.Status = model.AuctionStatusClosing
		return a
	}

	tests := []struct {
		name          string
		mockSetup     func(repo *repository.MockAuctionDB, tx *repository.MockTx)
		expectedError error
		wantEvents    int
	}{
		{
			name: "claim_lost_is_noop",
			mockSetup: func(repo *repository.MockAuctionDB, _ *repository.MockTx) {
				repo.EXPECT().ClaimForClosing(gomock.Any(), "a1", fixedNow).Return(false, nil)
			},
		},
		{
			name: "no_bids_closes_without_settlement",
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				repo.EXPECT().ClaimForClosing(gomock.Any(), "a1", fixedNow).Return(true, nil)
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(closing(nil), nil)
				tx.EXPECT().SaveAuction(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, a model.Auction) error {
						require.Equal(t, model.AuctionStatusClosed, a.Status)
						return nil
					})
			},
			wantEvents: 1,
		},
		{
			name: "settles_winner_to_seller",
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				repo.EXPECT().ClaimForClosing(gomock.Any(), "a1", fixedNow).Return(true, nil)
				runTxWith(repo, tx)
				gomock.InOrder(
					tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(closing(strPtr("b2")), nil),
					tx.EXPECT().LockUser(gomock.Any(), "b2").Return(model.User{UserID: "b2", AvailableBalance: 3800, ReservedBalance: 1200}, nil),
					tx.EXPECT().LockUser(gomock.Any(), "seller").Return(model.User{UserID: "seller"}, nil),
				)
				tx.EXPECT().SaveUser(gomock.Any(), model.User{UserID: "b2", AvailableBalance: 3800}).Return(nil)
				tx.EXPECT().SaveUser(gomock.Any(), model.User{UserID: "seller", AvailableBalance: 1200}).Return(nil)
				tx.EXPECT().InsertSettlement(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, s model.Settlement) error {
						require.Equal(t, "b2", s.WinnerID)
						require.Equal(t, "seller", s.SellerID)
						require.Equal(t, int64(1200), s.Amount)
						return nil
					})
				tx.EXPECT().SaveAuction(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantEvents: 3,
		},
		{
			name: "winner_reservation_shortfall_is_corruption",
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				repo.EXPECT().ClaimForClosing(gomock.Any(), "a1", fixedNow).Return(true, nil)
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(closing(strPtr("b2")), nil)
				tx.EXPECT().LockUser(gomock.Any(), "b2").Return(model.User{UserID: "b2", ReservedBalance: 100}, nil)
				tx.EXPECT().LockUser(gomock.Any(), "seller").Return(model.User{UserID: "seller"}, nil)
			},
			expectedError: biddingerrors.ErrDataCorruption,
		},
		{
			name: "winner_missing_is_corruption",
			mockSetup: func(repo *repository.MockAuctionDB, tx *repository.MockTx) {
				repo.EXPECT().ClaimForClosing(gomock.Any(), "a1", fixedNow).Return(true, nil)
				runTxWith(repo, tx)
				tx.EXPECT().LockAuction(gomock.Any(), "a1").Return(closing(strPtr("b2")), nil)
				tx.EXPECT().LockUser(gomock.Any(), "b2").Return(model.User{}, biddingerrors.ErrUserNotFound)
			},
			expectedError: biddingerrors.ErrDataCorruption,
		},
		{
			name: "claim_error",
			mockSetup: func(repo *repository.MockAuctionDB, _ *repository.MockTx) {
				repo.EXPECT().ClaimForClosing(gomock.Any(), "a1", fixedNow).Return(false, errors.New("db down"))
			},
			expectedError: errors.New("any"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockRepo := repository.NewMockAuctionDB(ctrl)
			mockTx := repository.NewMockTx(ctrl)
			sink := &recordingSink{}
			outbox := events.NewOutbox()
			outbox.Register("test", sink)
			service := NewBiddingService(mockRepo, outbox, WithClock(fixedClock))

			tc.mockSetup(mockRepo, mockTx)

			err := service.CloseAuction(context.Background(), "a1")
			outbox.Flush(context.Background())
			if tc.expectedError != nil {
				require.Error(t, err)
				if errors.Is(tc.expectedError, biddingerrors.ErrDataCorruption) {
					require.True(t, biddingerrors.IsDataCorruption(err), "got %v", err)
				}
				require.Empty(t, sink.events())
				return
			}
			require.NoError(t, err)
			require.Len(t, sink.events(), tc.wantEvents)
		})
	}
}

// Tests the read operations
func TestBiddingService_Reads(t *testing.T) {
	t.Parallel()

	bidsExample := []model.Bid{
		{BidID: "bid1", AuctionID: "a1", BidderID: "b1", Amount: 1050, CreatedAt: fixedNow},
		{BidID: "bid2", AuctionID: "a1", BidderID: "b2", Amount: 1200, CreatedAt: fixedNow.Add(time.Second)},
	}

	tests := []struct {
		name          string
		call          func(s *BiddingService) (any, error)
		mockSetup     func(repo *repository.MockAuctionDB)
		expected      any
		expectedError error
	}{
		{
			name: "bids_for_auction",
			call: func(s *BiddingService) (any, error) { return s.GetBidsForAuction(context.Background(), "a1") },
			mockSetup: func(repo *repository.MockAuctionDB) {
				repo.EXPECT().GetBidsByAuction(gomock.Any(), "a1").Return(bidsExample, nil)
			},
			expected: bidsExample,
		},
		{
			name:          "bids_for_empty_auction_id",
			call:          func(s *BiddingService) (any, error) { return s.GetBidsForAuction(context.Background(), "") },
			mockSetup:     func(*repository.MockAuctionDB) {},
			expectedError: biddingerrors.ErrInvalidAuction,
		},
		{
			name: "bids_repo_error",
			call: func(s *BiddingService) (any, error) { return s.GetBidsForAuction(context.Background(), "a1") },
			mockSetup: func(repo *repository.MockAuctionDB) {
				repo.EXPECT().GetBidsByAuction(gomock.Any(), "a1").Return(nil, biddingerrors.ErrAuctionNotFound)
			},
			expectedError: biddingerrors.ErrAuctionNotFound,
		},
		{
			name: "auctions_by_seller",
			call: func(s *BiddingService) (any, error) { return s.GetAuctionsBySeller(context.Background(), "seller") },
			mockSetup: func(repo *repository.MockAuctionDB) {
				repo.EXPECT().ListAuctions(gomock.Any(), repository.AuctionFilter{SellerID: "seller"}).Return([]model.Auction{{AuctionID: "a1"}}, nil)
			},
			expected: []model.Auction{{AuctionID: "a1"}},
		},
		{
			name: "search_by_status",
			call: func(s *BiddingService) (any, error) {
				return s.SearchAuctions(context.Background(), "vase", model.AuctionStatusLive)
			},
			mockSetup: func(repo *repository.MockAuctionDB) {
				repo.EXPECT().ListAuctions(gomock.Any(), repository.AuctionFilter{Query: "vase", Status: model.AuctionStatusLive}).Return([]model.Auction{}, nil)
			},
			expected: []model.Auction{},
		},
		{
			name:          "auctions_by_bidder_empty_id",
			call:          func(s *BiddingService) (any, error) { return s.GetAuctionsByBidder(context.Background(), "") },
			mockSetup:     func(*repository.MockAuctionDB) {},
			expectedError: biddingerrors.ErrInvalidUser,
		},
		{
			name: "sales",
			call: func(s *BiddingService) (any, error) { return s.GetSalesByUser(context.Background(), "seller") },
			mockSetup: func(repo *repository.MockAuctionDB) {
				repo.EXPECT().ListSettlementsBySeller(gomock.Any(), "seller").Return([]model.Settlement{{AuctionID: "a1"}}, nil)
			},
			expected: []model.Settlement{{AuctionID: "a1"}},
		},
		{
			name: "purchases",
			call: func(s *BiddingService) (any, error) { return s.GetPurchasesByUser(context.Background(), "b2") },
			mockSetup: func(repo *repository.MockAuctionDB) {
				repo.EXPECT().ListSettlementsByWinner(gomock.Any(), "b2").Return([]model.Settlement{}, nil)
			},
			expected: []model.Settlement{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockRepo := repository.NewMockAuctionDB(ctrl)
			service := NewBiddingService(mockRepo, nil, WithClock(fixedClock))
			tc.mockSetup(mockRepo)

			got, err := tc.call(service)
			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}

// Tests CreateAuction input validation
func TestBiddingService_CreateAuction(t *testing.T) {
	t.Parallel()

	valid := CreateAuctionInput{
		SellerID:   "seller",
		Title:      "Vase",
		StartPrice: 1000,
		StartTime:  fixedNow,
		EndTime:    fixedNow.Add(time.Hour),
	}

	tests := []struct {
		name          string
		mutate        func(in *CreateAuctionInput)
		mockSetup     func(repo *repository.MockAuctionDB)
		expectedError error
	}{
		{
			name: "valid",
			mockSetup: func(repo *repository.MockAuctionDB) {
				repo.EXPECT().GetUser(gomock.Any(), "seller").Return(model.User{UserID: "seller"}, nil)
				repo.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).Return(nil)
			},
		},
		{
			name:          "zero_start_price",
			mutate:        func(in *CreateAuctionInput) { in.StartPrice = 0 },
			expectedError: biddingerrors.ErrInvalidAuction,
		},
		{
			name:          "end_before_start",
			mutate:        func(in *CreateAuctionInput) { in.EndTime = in.StartTime.Add(-time.Minute) },
			expectedError: biddingerrors.ErrInvalidAuction,
		},
		{
			name:          "blank_title",
			mutate:        func(in *CreateAuctionInput) { in.Title = "  " },
			expectedError: biddingerrors.ErrInvalidAuction,
		},
		{
			name: "unknown_seller",
			mockSetup: func(repo *repository.MockAuctionDB) {
				repo.EXPECT().GetUser(gomock.Any(), "seller").Return(model.User{}, biddingerrors.ErrUserNotFound)
			},
			expectedError: biddingerrors.ErrUserNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockRepo := repository.NewMockAuctionDB(ctrl)
			service := NewBiddingService(mockRepo, nil, WithClock(fixedClock))
			if tc.mockSetup != nil {
				tc.mockSetup(mockRepo)
			}

			in := valid
			if tc.mutate != nil {
				tc.mutate(&in)
			}
			a, err := service.CreateAuction(context.Background(), in)
			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				return
			}
			require.NoError(t, err)
			require.Equal(t, model.AuctionStatusScheduled, a.Status)
			require.Equal(t, a.StartPrice, a.CurrentPrice)
			require.False(t, a.HasLeader())
		})
	}
}

func TestMinimumIncrement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		price   int64
		wantInc int64
		wantMin int64
	}{
		{price: 0, wantInc: 100, wantMin: 100},
		{price: 1000, wantInc: 100, wantMin: 1100},
		{price: 1050, wantInc: 100, wantMin: 1150},
		{price: 2000, wantInc: 100, wantMin: 2100},
		{price: 2019, wantInc: 100, wantMin: 2119},
		{price: 2020, wantInc: 101, wantMin: 2121},
		{price: 100000, wantInc: 5000, wantMin: 105000},
	}

	for _, tc := range tests {
		require.Equal(t, tc.wantInc, MinimumIncrement(tc.price), "price %d", tc.price)
		require.Equal(t, tc.wantMin, MinimumBid(tc.price), "price %d", tc.price)
	}
}
