package bidding

const (
	// MinimumIncrementPercent of the current price must be added by a new bid
	MinimumIncrementPercent = 5
	// MinimumIncrementFloor is the smallest increment in minor units
	MinimumIncrementFloor int64 = 100
)

// MinimumIncrement returns max(5% of price truncated, 100)
func MinimumIncrement(price int64) int64 {
	inc := price * MinimumIncrementPercent / 100
	if inc < MinimumIncrementFloor {
		return MinimumIncrementFloor
	}
	return inc
}

// MinimumBid returns the lowest acceptable next bid for an auction at price
func MinimumBid(price int64) int64 {
	return price + MinimumIncrement(price)
}
