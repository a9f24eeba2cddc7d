package domain

// LastPlayed returns the cards contributed by the most recent play: the last
// n cards of the trick pile. The pile preserves play order exactly so this
// count-based slice is well defined even when the pile spans several turns.
func LastPlayed(trick []Card, n int) []Card {
	if n <= 0 || n > len(trick) {
		return nil
	}
	return trick[len(trick)-n:]
}

// IsBluff reports whether the contributed cards contradict the claim made
// about them. A play is a bluff when the contributed count differs from the
// claimed quantity, or any contributed card's value differs from the claimed
// value.
func IsBluff(claim Claim, played []Card) bool {
	if len(played) != claim.Quantity {
		return true
	}
	for _, c := range played {
		if c.Value != claim.Value {
			return true
		}
	}
	return false
}
