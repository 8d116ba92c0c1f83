package events

import (
	"context"

	"livebid/utils"
)

// LogSink writes every event to the structured log
type LogSink struct{}

// Publish logs e at info level
func (LogSink) Publish(_ context.Context, e Event) error {
	fields := map[string]any{
		"type":  e.Type(),
		"topic": e.Topic(),
	}
	switch ev := e.(type) {
	case BidPlaced:
		fields["auction_id"] = ev.AuctionID
		fields["new_price"] = ev.NewPrice
		fields["new_leader_id"] = ev.NewLeaderID
		if ev.PreviousLeaderID != nil {
			fields["previous_leader_id"] = *ev.PreviousLeaderID
		}
	case BalanceChanged:
		fields["user_id"] = ev.UserID
		fields["available_balance"] = ev.AvailableBalance
		fields["reserved_balance"] = ev.ReservedBalance
	case AuctionClosed:
		fields["auction_id"] = ev.AuctionID
		fields["closing_price"] = ev.ClosingPrice
		if ev.WinnerID != nil {
			fields["winner_id"] = *ev.WinnerID
		}
	case NotificationCreated:
		fields["user_id"] = ev.UserID
		fields["notification_id"] = ev.NotificationID
		fields["kind"] = ev.Kind
	}
	utils.Info("event published", fields)
	return nil
}
