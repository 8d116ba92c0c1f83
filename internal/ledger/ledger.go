// Package ledger holds the balance arithmetic behind bid reservations and
// auction settlement. Every function either applies its whole change or
// leaves the users untouched.
package ledger

import (
	"fmt"

	"livebid/internal/biddingerrors"
	"livebid/internal/models"
)

// Total returns the funds a user owns across both balances
func Total(u models.User) int64 {
	return u.AvailableBalance + u.ReservedBalance
}

// Reserve moves amount from the user's available balance to reserved
func Reserve(u *models.User, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: reserve %d: %w", amount, biddingerrors.ErrInvalidAmount)
	}
	if u.AvailableBalance < amount {
		return fmt.Errorf("ledger: reserve %d for user %s with %d available: %w",
			amount, u.UserID, u.AvailableBalance, biddingerrors.ErrInsufficientFunds)
	}
	u.AvailableBalance -= amount
	u.ReservedBalance += amount
	return nil
}

// Release returns amount from the user's reserved balance to available
func Release(u *models.User, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: release %d: %w", amount, biddingerrors.ErrInvalidAmount)
	}
	if u.ReservedBalance < amount {
		return fmt.Errorf("ledger: release %d for user %s with %d reserved: %w",
			amount, u.UserID, u.ReservedBalance, biddingerrors.ErrReservationShortfall)
	}
	u.ReservedBalance -= amount
	u.AvailableBalance += amount
	return nil
}

// RaiseReservation grows an existing reservation from one amount to a
// higher one. Only the difference leaves the available balance.
func RaiseReservation(u *models.User, from, to int64) error {
	if to <= from {
		return fmt.Errorf("ledger: raise reservation %d -> %d: %w", from, to, biddingerrors.ErrInvalidAmount)
	}
	if u.ReservedBalance < from {
		return fmt.Errorf("ledger: raise reservation for user %s holding %d of %d: %w",
			u.UserID, u.ReservedBalance, from, biddingerrors.ErrReservationShortfall)
	}
	return Reserve(u, to-from)
}

// Settle transfers amount from the winner's reservation to the seller's
// available balance. winner and seller may point at the same user.
func Settle(winner, seller *models.User, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: settle %d: %w", amount, biddingerrors.ErrInvalidAmount)
	}
	if winner.ReservedBalance < amount {
		return fmt.Errorf("ledger: settle %d from user %s with %d reserved: %w",
			amount, winner.UserID, winner.ReservedBalance, biddingerrors.ErrReservationShortfall)
	}
	winner.ReservedBalance -= amount
	seller.AvailableBalance += amount
	return nil
}
