// Package notification turns committed auction events into per-user
// notifications and serves the notification inbox.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"livebid/internal/biddingerrors"
	"livebid/internal/events"
	model "livebid/internal/models"
	"livebid/internal/repository"
	"livebid/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionReader loads the auction an event refers to
type AuctionReader interface {
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
}

// Service stores notifications and implements events.Sink
type Service struct {
	store     repository.NotificationStore
	auctions  AuctionReader
	publisher events.Sink
	now       func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithPublisher forwards NotificationCreated events to sink
func WithPublisher(sink events.Sink) Option {
	return func(s *Service) {
		s.publisher = sink
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a notification Service
func NewService(store repository.NotificationStore, auctions AuctionReader, opts ...Option) *Service {
	s := &Service{
		store:    store,
		auctions: auctions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FormatAmount renders minor units as dollars, e.g. 105000 -> "$1050.00"
func FormatAmount(minor int64) string {
	return "$" + decimal.New(minor, -2).StringFixed(2)
}

// Publish handles one committed event. It may be retried by the outbox, so
// notification ids are derived from the event and a repeat is a no-op.
func (s *Service) Publish(ctx context.Context, e events.Event) error {
	switch ev := e.(type) {
	case events.BidPlaced:
		return s.onBidPlaced(ctx, ev)
	case events.AuctionClosed:
		return s.onAuctionClosed(ctx, ev)
	default:
		return nil
	}
}

func (s *Service) onBidPlaced(ctx context.Context, ev events.BidPlaced) error {
	if !ev.Outbid() {
		return nil
	}
	a, err := s.auctions.GetAuction(ctx, ev.AuctionID)
	if err != nil {
		return s.missingAuction(ev.AuctionID, err)
	}

	msg := fmt.Sprintf("You've been outbid on \"%s\" - new price: %s", a.Title, FormatAmount(ev.NewPrice))
	key := fmt.Sprintf("%s/%d", ev.NewLeaderID, ev.NewPrice)
	return s.create(ctx, *ev.PreviousLeaderID, model.NotificationOutbid, msg, ev.AuctionID, key)
}

func (s *Service) onAuctionClosed(ctx context.Context, ev events.AuctionClosed) error {
	a, err := s.auctions.GetAuction(ctx, ev.AuctionID)
	if err != nil {
		return s.missingAuction(ev.AuctionID, err)
	}

	if ev.WinnerID != nil {
		msg := fmt.Sprintf("Congratulations! You won \"%s\" for %s", a.Title, FormatAmount(ev.ClosingPrice))
		if err := s.create(ctx, *ev.WinnerID, model.NotificationAuctionWon, msg, ev.AuctionID, "closed"); err != nil {
			return err
		}
	}

	msg := fmt.Sprintf("Your auction \"%s\" ended with no bids", a.Title)
	if ev.WinnerID != nil {
		msg = fmt.Sprintf("Your auction \"%s\" sold for %s", a.Title, FormatAmount(ev.ClosingPrice))
	}
	return s.create(ctx, a.SellerID, model.NotificationSaleComplete, msg, ev.AuctionID, "closed")
}

// missingAuction drops events for auctions that no longer exist; retrying
// them would block the queue forever.
func (s *Service) missingAuction(auctionID string, err error) error {
	if biddingerrors.IsNotFound(err) {
		utils.Warn("notification: auction not found, event skipped", map[string]any{"auction_id": auctionID})
		return nil
	}
	return fmt.Errorf("notification: failed to load auction %s: %w", auctionID, err)
}

func (s *Service) create(ctx context.Context, userID string, kind model.NotificationType, msg, auctionID, key string) error {
	n := model.Notification{
		NotificationID: notificationID(userID, kind, auctionID, key),
		UserID:         userID,
		Type:           kind,
		Message:        msg,
		AuctionID:      auctionID,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		if errors.Is(err, biddingerrors.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("notification: failed to store %s for user %s: %w", kind, userID, err)
	}

	utils.Debug("notification created", map[string]any{
		"notification_id": n.NotificationID,
		"user_id":         userID,
		"type":            string(kind),
	})

	if s.publisher != nil {
		// the inbox is the source of truth, a lost push is only logged
		if err := s.publisher.Publish(ctx, events.NotificationCreated{
			NotificationID: n.NotificationID,
			UserID:         n.UserID,
			Kind:           string(n.Type),
			Message:        n.Message,
			AuctionID:      n.AuctionID,
		}); err != nil {
			utils.Warn("notification: push failed", map[string]any{
				"notification_id": n.NotificationID,
				"error":           err.Error(),
			})
		}
	}
	return nil
}

var notificationNamespace = uuid.MustParse("6f1d2c0e-8a55-4d43-9f3a-3c1f0b7e9a21")

func notificationID(userID string, kind model.NotificationType, auctionID, key string) string {
	return utils.DerivedID(notificationNamespace, userID, string(kind), auctionID, key)
}

// List returns the user's notifications, newest first
func (s *Service) List(ctx context.Context, userID string) ([]model.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("notification: %w - empty user ID", biddingerrors.ErrInvalidUser)
	}
	out, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("notification: failed to list for user %s: %w", userID, err)
	}
	return out, nil
}

// CountUnread returns how many of the user's notifications are unread
func (s *Service) CountUnread(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("notification: %w - empty user ID", biddingerrors.ErrInvalidUser)
	}
	n, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("notification: failed to count unread for user %s: %w", userID, err)
	}
	return n, nil
}

// MarkRead marks one of the user's notifications as read
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	if userID == "" || notificationID == "" {
		return fmt.Errorf("notification: %w - empty user or notification ID", biddingerrors.ErrInvalidUser)
	}
	if err := s.store.MarkRead(ctx, userID, notificationID); err != nil {
		return fmt.Errorf("notification: failed to mark %s read: %w", notificationID, err)
	}
	return nil
}

// MarkAllRead marks every notification of the user as read
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("notification: %w - empty user ID", biddingerrors.ErrInvalidUser)
	}
	if err := s.store.MarkAllRead(ctx, userID); err != nil {
		return fmt.Errorf("notification: failed to mark all read for user %s: %w", userID, err)
	}
	return nil
}
