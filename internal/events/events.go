// Package events defines the notifications emitted by the bidding and closing
// protocols and the outbox that delivers them once the causing transaction
// has committed.
package events

import (
	"context"
	"fmt"
)

// Event types
const (
	TypeBidPlaced      = "bid.placed"
	TypeBalanceChanged = "balance.changed"
	TypeAuctionClosed  = "auction.closed"
)

// Event is a committed state change observed by downstream collaborators
type Event interface {
	// Type returns the event type, e.g. "bid.placed"
	Type() string
	// Topic returns the fan-out topic, "auctions/{id}" or "users/{id}"
	Topic() string
}

// AuctionTopic returns the topic carrying events for one auction
func AuctionTopic(auctionID string) string {
	return "auctions/" + auctionID
}

// UserTopic returns the topic carrying events for one user
func UserTopic(userID string) string {
	return "users/" + userID
}

// BidPlaced is emitted after a bid is accepted. Version is the auction
// version the bid committed, so consumers can drop stale updates.
type BidPlaced struct {
	AuctionID        string  `json:"auction_id"`
	NewPrice         int64   `json:"new_price"`
	NewLeaderID      string  `json:"new_leader_id"`
	PreviousLeaderID *string `json:"previous_leader_id"`
	Version          int64   `json:"version"`
}

func (BidPlaced) Type() string    { return TypeBidPlaced }
func (e BidPlaced) Topic() string { return AuctionTopic(e.AuctionID) }

// Outbid reports whether a different user lost the lead with this bid
func (e BidPlaced) Outbid() bool {
	return e.PreviousLeaderID != nil && *e.PreviousLeaderID != e.NewLeaderID
}

// BalanceChanged is emitted for every user whose ledger entry moved
type BalanceChanged struct {
	UserID           string `json:"user_id"`
	AvailableBalance int64  `json:"available_balance"`
	ReservedBalance  int64  `json:"reserved_balance"`
}

func (BalanceChanged) Type() string    { return TypeBalanceChanged }
func (e BalanceChanged) Topic() string { return UserTopic(e.UserID) }

// AuctionClosed is emitted when an auction reaches CLOSED. WinnerID is nil
// when the auction ended without bids.
type AuctionClosed struct {
	AuctionID    string  `json:"auction_id"`
	WinnerID     *string `json:"winner_id"`
	ClosingPrice int64   `json:"closing_price"`
	Version      int64   `json:"version"`
}

func (AuctionClosed) Type() string    { return TypeAuctionClosed }
func (e AuctionClosed) Topic() string { return AuctionTopic(e.AuctionID) }

// Envelope is the wire shape used by sinks that serialize events
type Envelope struct {
	Type    string `json:"type"`
	Topic   string `json:"topic"`
	Payload Event  `json:"payload"`
}

// Wrap builds the wire envelope for e
func Wrap(e Event) Envelope {
	return Envelope{Type: e.Type(), Topic: e.Topic(), Payload: e}
}

// Sink receives committed events
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, e Event) error

// Publish calls f(ctx, e)
func (f SinkFunc) Publish(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Batch collects events raised inside a transaction. It is discarded when
// the transaction rolls back.
type Batch struct {
	events []Event
}

// Add appends events to the batch
func (b *Batch) Add(e ...Event) {
	b.events = append(b.events, e...)
}

// Events returns the collected events in emission order
func (b *Batch) Events() []Event {
	return append([]Event(nil), b.events...)
}

// Len returns the number of collected events
func (b *Batch) Len() int {
	return len(b.events)
}

func describe(e Event) string {
	return fmt.Sprintf("%s on %s", e.Type(), e.Topic())
}

// TypeNotificationCreated is emitted after a user notification is stored
const TypeNotificationCreated = "notification.created"

// NotificationCreated pushes a freshly stored notification to its user
type NotificationCreated struct {
	NotificationID string `json:"notification_id"`
	UserID         string `json:"user_id"`
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	AuctionID      string `json:"auction_id,omitempty"`
}

func (NotificationCreated) Type() string    { return TypeNotificationCreated }
func (e NotificationCreated) Topic() string { return UserTopic(e.UserID) + "/notifications" }
