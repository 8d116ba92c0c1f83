package ledger

import (
	"testing"

	"livebid/internal/models"

	"pgregory.net/rapid"
)

// Reserve, Release and RaiseReservation never change what a user owns and
// never drive a balance negative, whether they succeed or fail.
func TestProperty_SingleUserConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		u := models.User{
			UserID:           "u",
			AvailableBalance: rapid.Int64Range(0, 1_000_000).Draw(t, "available"),
			ReservedBalance:  rapid.Int64Range(0, 1_000_000).Draw(t, "reserved"),
		}
		total := Total(u)

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			amount := rapid.Int64Range(-10, 500_000).Draw(t, "amount")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				_ = Reserve(&u, amount)
			case 1:
				_ = Release(&u, amount)
			case 2:
				from := rapid.Int64Range(0, u.ReservedBalance).Draw(t, "from")
				_ = RaiseReservation(&u, from, from+amount)
			}

			if u.AvailableBalance < 0 || u.ReservedBalance < 0 {
				t.Fatalf("negative balance: available=%d reserved=%d", u.AvailableBalance, u.ReservedBalance)
			}
			if Total(u) != total {
				t.Fatalf("total changed: want %d, got %d", total, Total(u))
			}
		}
	})
}

// Settle is net zero across winner and seller.
func TestProperty_SettlePairConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		winner := models.User{
			UserID:           "w",
			AvailableBalance: rapid.Int64Range(0, 1_000_000).Draw(t, "winnerAvailable"),
			ReservedBalance:  rapid.Int64Range(0, 1_000_000).Draw(t, "winnerReserved"),
		}
		seller := models.User{
			UserID:           "s",
			AvailableBalance: rapid.Int64Range(0, 1_000_000).Draw(t, "sellerAvailable"),
		}
		amount := rapid.Int64Range(1, 1_000_000).Draw(t, "amount")
		before := Total(winner) + Total(seller)

		err := Settle(&winner, &seller, amount)

		if Total(winner)+Total(seller) != before {
			t.Fatalf("pair total changed: want %d, got %d", before, Total(winner)+Total(seller))
		}
		if winner.ReservedBalance < 0 {
			t.Fatalf("winner reserved negative: %d", winner.ReservedBalance)
		}
		if err == nil && Total(seller) != before-Total(winner) {
			t.Fatalf("seller did not receive the transfer")
		}
	})
}
