package biddingerrors

import "errors"

// Not-found errors
var (
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrSettlementNotFound   = errors.New("settlement not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

// Rejected bids and invalid state. These are expected, user-facing outcomes.
var (
	ErrInvalidBid             = errors.New("invalid bid")
	ErrAuctionNotLive         = errors.New("auction is not live")
	ErrAuctionEnded           = errors.New("auction has ended")
	ErrBidTooLow              = errors.New("bid amount too low")
	ErrBelowMinimumIncrement  = errors.New("bid below minimum increment")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidStateTransition = errors.New("invalid auction state transition")
)

// Input and storage errors
var (
	ErrInvalidAuction  = errors.New("invalid auction")
	ErrInvalidUser     = errors.New("invalid user")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrEmailTaken      = errors.New("email already registered")
	ErrVersionConflict = errors.New("version conflict")
	ErrAlreadyExists   = errors.New("already exists")
	ErrLockNotHeld     = errors.New("row lock not held by transaction")
	ErrTxDone          = errors.New("transaction already finished")
)

// Data-corruption faults. A broken invariant elsewhere in the system; never
// swallowed.
var (
	ErrDataCorruption       = errors.New("data corruption")
	ErrReservationShortfall = errors.New("reserved balance below required amount")
)

// IsNotFound reports whether err resolves to a missing auction or user
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAuctionNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrSettlementNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

// IsRejection reports whether err is a domain rule rejecting a bid or a
// lifecycle action
func IsRejection(err error) bool {
	return errors.Is(err, ErrAuctionNotLive) ||
		errors.Is(err, ErrAuctionEnded) ||
		errors.Is(err, ErrBidTooLow) ||
		errors.Is(err, ErrBelowMinimumIncrement) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidStateTransition)
}

// IsDataCorruption reports whether err signals a broken invariant
func IsDataCorruption(err error) bool {
	return errors.Is(err, ErrDataCorruption)
}
