package bidding

import (
	"context"
	"fmt"

	"livebid/internal/biddingerrors"
	"livebid/internal/events"
	"livebid/internal/ledger"
	model "livebid/internal/models"
	"livebid/internal/repository"
	"livebid/utils"
)

// CloseAuction closes an expired LIVE auction. It is idempotent: only the
// caller that wins the LIVE->CLOSING claim settles, every other call returns
// nil without touching anything.
func (s *BiddingService) CloseAuction(ctx context.Context, auctionID string) error {
	if auctionID == "" {
		return fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}

	claimed, err := s.repo.ClaimForClosing(ctx, auctionID, s.clock())
	if err != nil {
		return fmt.Errorf("service: failed to claim auction %s for closing: %w", auctionID, err)
	}
	if !claimed {
		utils.Debug("CloseAuction: nothing to claim", map[string]any{"auction_id": auctionID})
		return nil
	}

	return s.settle(ctx, auctionID)
}

// ResumeClosing re-runs settlement for an auction left in CLOSING by an
// earlier failure. It never claims a LIVE auction.
func (s *BiddingService) ResumeClosing(ctx context.Context, auctionID string) error {
	a, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	switch a.Status {
	case model.AuctionStatusClosing:
		return s.settle(ctx, auctionID)
	case model.AuctionStatusClosed:
		return nil
	default:
		return fmt.Errorf("service: %w - auction %s is %s, not CLOSING", biddingerrors.ErrInvalidStateTransition, auctionID, a.Status)
	}
}

// settle runs the second closing step for an auction this caller has claimed.
// On error nothing is written and the auction stays CLOSING.
func (s *BiddingService) settle(ctx context.Context, auctionID string) error {
	var (
		batch      events.Batch
		settlement *model.Settlement
		already    bool
	)
	err := s.repo.RunInTx(ctx, func(tx repository.Tx) error {
		batch = events.Batch{}
		settlement = nil
		already = false
		tx.AfterCommit(func() { s.outbox.Commit(&batch) })

		auction, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		if auction.Status == model.AuctionStatusClosed {
			already = true
			return nil
		}
		if !auction.Status.CanTransitionTo(model.AuctionStatusClosed) {
			return fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrInvalidStateTransition, auctionID, auction.Status)
		}

		if !auction.HasLeader() {
			auction.Status = model.AuctionStatusClosed
			if err := tx.SaveAuction(ctx, auction); err != nil {
				return err
			}
			batch.Add(events.AuctionClosed{AuctionID: auctionID, ClosingPrice: auction.CurrentPrice, Version: auction.Version + 1})
			return nil
		}

		winnerID := auction.LeaderID()
		users, missing, err := lockUsers(ctx, tx, winnerID, auction.SellerID)
		if err != nil {
			if missing != "" {
				return fmt.Errorf("service: %w - user %s of auction %s has no record: %w",
					biddingerrors.ErrDataCorruption, missing, auctionID, err)
			}
			return err
		}
		winner, seller := users[winnerID], users[auction.SellerID]

		price := auction.CurrentPrice
		if err := ledger.Settle(winner, seller, price); err != nil {
			return ledgerFault(err)
		}
		if err := tx.SaveUser(ctx, *winner); err != nil {
			return err
		}
		if seller != winner {
			if err := tx.SaveUser(ctx, *seller); err != nil {
				return err
			}
		}

		st := model.Settlement{
			SettlementID: utils.GenerateID(),
			AuctionID:    auctionID,
			WinnerID:     winnerID,
			SellerID:     auction.SellerID,
			Amount:       price,
			CreatedAt:    s.clock(),
		}
		if err := tx.InsertSettlement(ctx, st); err != nil {
			return err
		}
		settlement = &st

		auction.Status = model.AuctionStatusClosed
		if err := tx.SaveAuction(ctx, auction); err != nil {
			return err
		}

		batch.Add(balanceChanged(*winner))
		if seller != winner {
			batch.Add(balanceChanged(*seller))
		}
		batch.Add(events.AuctionClosed{AuctionID: auctionID, WinnerID: &winnerID, ClosingPrice: price, Version: auction.Version + 1})
		return nil
	})
	if err != nil {
		utils.Error("CloseAuction: settlement failed, auction left CLOSING", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return fmt.Errorf("service: failed to settle auction %s: %w", auctionID, err)
	}
	if already {
		utils.Debug("CloseAuction: already settled", map[string]any{"auction_id": auctionID})
		return nil
	}

	fields := map[string]any{"auction_id": auctionID}
	if settlement != nil {
		fields["winner_id"] = settlement.WinnerID
		fields["amount"] = settlement.Amount
	}
	utils.Info("auction closed", fields)
	return nil
}

// ConvertToLive starts a SCHEDULED auction now. The configured duration is
// kept, so a late start moves the end time too.
func (s *BiddingService) ConvertToLive(ctx context.Context, auctionID string) (model.Auction, error) {
	if auctionID == "" {
		return model.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}

	err := s.repo.RunInTx(ctx, func(tx repository.Tx) error {
		auction, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		if !auction.Status.CanTransitionTo(model.AuctionStatusLive) {
			return fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrInvalidStateTransition, auctionID, auction.Status)
		}

		duration := auction.EndTime.Sub(auction.StartTime)
		now := s.clock()
		auction.StartTime = now
		auction.EndTime = now.Add(duration)
		auction.Status = model.AuctionStatusLive
		return tx.SaveAuction(ctx, auction)
	})
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to start auction %s: %w", auctionID, err)
	}

	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to reload auction %s: %w", auctionID, err)
	}
	utils.Info("auction started", map[string]any{
		"auction_id": auctionID,
		"end_time":   a.EndTime,
	})
	return a, nil
}
