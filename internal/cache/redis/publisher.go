package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"livebid/internal/events"
	"livebid/utils"

	"github.com/redis/go-redis/v9"
)

// ChannelPrefix namespaces every Pub/Sub channel of this service
const ChannelPrefix = "livebid"

// setPriceLua stores the price only when ARGV[2] is newer than the stored
// version, then publishes the envelope either way. Returns 1 when the price
// key moved.
const setPriceLua = `
local current = tonumber(redis.call('GET', KEYS[2]) or '-1')
local applied = 0
if tonumber(ARGV[2]) > current then
    redis.call('SET', KEYS[1], ARGV[1])
    redis.call('SET', KEYS[2], ARGV[2])
    applied = 1
end
redis.call('PUBLISH', ARGV[3], ARGV[4])
return applied
`

// EventPublisher implements events.Sink. Each event is published as a JSON
// envelope on "livebid:{topic}" with slashes turned into colons, e.g.
// "livebid:auctions:{id}". Auction events also refresh the price cache in
// the same script, guarded by the auction version so a late event never
// overwrites a newer price.
type EventPublisher struct {
	rdb      *redis.Client
	setPrice *redis.Script
}

// NewEventPublisher creates an EventPublisher backed by the given Client.
func NewEventPublisher(c *Client) *EventPublisher {
	return &EventPublisher{
		rdb:      c.Underlying(),
		setPrice: redis.NewScript(setPriceLua),
	}
}

// PriceKey returns the key holding an auction's current price in minor
// units. It is a read model for other consumers; the database stays
// authoritative.
func PriceKey(auctionID string) string {
	return "auction:" + auctionID + ":price"
}

// PriceVersionKey returns the key holding the auction version behind PriceKey
func PriceVersionKey(auctionID string) string {
	return "auction:" + auctionID + ":price_version"
}

type priceUpdate struct {
	auctionID string
	price     int64
	version   int64
}

// priceOf returns the price change carried by e, if any
func priceOf(e events.Event) (priceUpdate, bool) {
	switch ev := e.(type) {
	case events.BidPlaced:
		return priceUpdate{auctionID: ev.AuctionID, price: ev.NewPrice, version: ev.Version}, true
	case events.AuctionClosed:
		return priceUpdate{auctionID: ev.AuctionID, price: ev.ClosingPrice, version: ev.Version}, true
	default:
		return priceUpdate{}, false
	}
}

// Channel maps an event topic to its Redis channel name
func Channel(topic string) string {
	return ChannelPrefix + ":" + strings.ReplaceAll(topic, "/", ":")
}

// Encode returns the wire form of e
func Encode(e events.Event) ([]byte, error) {
	data, err := json.Marshal(events.Wrap(e))
	if err != nil {
		return nil, fmt.Errorf("redis: marshal %s: %w", e.Type(), err)
	}
	return data, nil
}

// Publish sends e to its channel.
func (p *EventPublisher) Publish(ctx context.Context, e events.Event) error {
	payload, err := Encode(e)
	if err != nil {
		return err
	}

	channel := Channel(e.Topic())
	pu, ok := priceOf(e)
	if !ok {
		if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
			return fmt.Errorf("redis: publish %s on %s: %w", e.Type(), e.Topic(), err)
		}
		return nil
	}

	keys := []string{PriceKey(pu.auctionID), PriceVersionKey(pu.auctionID)}
	applied, err := p.setPrice.Run(ctx, p.rdb, keys, pu.price, pu.version, channel, payload).Int()
	if err != nil {
		return fmt.Errorf("redis: publish %s on %s: %w", e.Type(), e.Topic(), err)
	}
	if applied == 0 {
		utils.Debug("redis: stale price update skipped", map[string]any{
			"auction_id": pu.auctionID,
			"version":    pu.version,
		})
	}
	return nil
}

var _ events.Sink = (*EventPublisher)(nil)
