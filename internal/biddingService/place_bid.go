package bidding

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"livebid/internal/biddingerrors"
	"livebid/internal/events"
	"livebid/internal/ledger"
	model "livebid/internal/models"
	"livebid/internal/repository"
	"livebid/utils"
)

// PlaceBid validates and applies a bid as one all-or-nothing unit. The
// auction row is locked first, then the bidder and any previous leader in
// ascending id order. Events are enqueued by a commit hook, while the rows
// are still locked, so they reach the outbox in commit order.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount int64) (model.Bid, error) {
	if auctionID == "" || bidderID == "" {
		return model.Bid{}, fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if amount <= 0 {
		return model.Bid{}, fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}

	var (
		bid   model.Bid
		batch events.Batch
	)
	err := s.repo.RunInTx(ctx, func(tx repository.Tx) error {
		batch = events.Batch{}
		tx.AfterCommit(func() { s.outbox.Commit(&batch) })

		auction, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}

		previousLeader := auction.CurrentLeaderID
		users, missing, err := lockUsers(ctx, tx, bidderID, auction.LeaderID())
		if err != nil {
			if missing != "" && missing != bidderID {
				return fmt.Errorf("service: %w - leader %s of auction %s has no user record: %w",
					biddingerrors.ErrDataCorruption, missing, auctionID, err)
			}
			return err
		}
		bidder := users[bidderID]

		now := s.clock()
		if auction.Status != model.AuctionStatusLive {
			return fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrAuctionNotLive, auctionID, auction.Status)
		}
		if now.After(auction.EndTime) {
			return fmt.Errorf("service: %w - auction %s ended at %s", biddingerrors.ErrAuctionEnded, auctionID, auction.EndTime)
		}
		if amount <= auction.CurrentPrice {
			return fmt.Errorf("service: %w - current price is %d", biddingerrors.ErrBidTooLow, auction.CurrentPrice)
		}
		if minBid := MinimumBid(auction.CurrentPrice); amount < minBid {
			return fmt.Errorf("service: %w - minimum bid is %d (current: %d + increment: %d)",
				biddingerrors.ErrBelowMinimumIncrement, minBid, auction.CurrentPrice, MinimumIncrement(auction.CurrentPrice))
		}

		// a raising leader needs the full amount available too, but only
		// the difference is reserved
		if bidder.AvailableBalance < amount {
			return fmt.Errorf("service: %w - bid %d with %d available", biddingerrors.ErrInsufficientFunds, amount, bidder.AvailableBalance)
		}

		if previousLeader != nil && *previousLeader == bidderID {
			if err := ledger.RaiseReservation(bidder, auction.CurrentPrice, amount); err != nil {
				return ledgerFault(err)
			}
			if err := tx.SaveUser(ctx, *bidder); err != nil {
				return err
			}
			batch.Add(balanceChanged(*bidder))
		} else {
			if err := ledger.Reserve(bidder, amount); err != nil {
				return ledgerFault(err)
			}
			if err := tx.SaveUser(ctx, *bidder); err != nil {
				return err
			}
			batch.Add(balanceChanged(*bidder))

			if previousLeader != nil {
				prev := users[*previousLeader]
				if err := ledger.Release(prev, auction.CurrentPrice); err != nil {
					return ledgerFault(err)
				}
				if err := tx.SaveUser(ctx, *prev); err != nil {
					return err
				}
				batch.Add(balanceChanged(*prev))
			}
		}

		bid = model.Bid{
			BidID:     utils.GenerateID(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			CreatedAt: now,
		}
		if err := tx.InsertBid(ctx, bid); err != nil {
			return err
		}

		leaderID, leaderBidID := bidderID, bid.BidID
		auction.CurrentPrice = amount
		auction.CurrentLeaderID = &leaderID
		auction.CurrentLeaderBidID = &leaderBidID
		if err := tx.SaveAuction(ctx, auction); err != nil {
			return err
		}

		batch.Add(events.BidPlaced{
			AuctionID:        auctionID,
			NewPrice:         amount,
			NewLeaderID:      bidderID,
			PreviousLeaderID: previousLeader,
			Version:          auction.Version + 1,
		})
		return nil
	})
	if err != nil {
		if biddingerrors.IsDataCorruption(err) {
			utils.Error("PlaceBid: data corruption", map[string]any{
				"auction_id": auctionID,
				"bidder_id":  bidderID,
				"amount":     amount,
				"error":      err.Error(),
			})
		}
		return model.Bid{}, fmt.Errorf("service: failed to place bid on auction %s by user %s: %w", auctionID, bidderID, err)
	}

	return bid, nil
}

// lockUsers locks the distinct non-empty ids in ascending order, each at
// most once. When a user row does not exist its id is returned with the error.
func lockUsers(ctx context.Context, tx repository.Tx, ids ...string) (map[string]*model.User, string, error) {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)

	users := make(map[string]*model.User, len(uniq))
	for _, id := range uniq {
		u, err := tx.LockUser(ctx, id)
		if err != nil {
			if errors.Is(err, biddingerrors.ErrUserNotFound) {
				return nil, id, err
			}
			return nil, "", err
		}
		users[id] = &u
	}
	return users, "", nil
}

// ledgerFault marks a reservation shortfall as data corruption and passes
// every other ledger error through.
func ledgerFault(err error) error {
	if errors.Is(err, biddingerrors.ErrReservationShortfall) {
		return fmt.Errorf("service: %w: %w", biddingerrors.ErrDataCorruption, err)
	}
	return err
}

func balanceChanged(u model.User) events.BalanceChanged {
	return events.BalanceChanged{
		UserID:           u.UserID,
		AvailableBalance: u.AvailableBalance,
		ReservedBalance:  u.ReservedBalance,
	}
}
