package domain

// RemoveFromHand removes one matching copy of each requested card from the
// hand and returns the updated hand. Multiset semantics: playing two copies
// of the same card requires the hand to hold two copies. On failure the
// offending card is returned and the hand is left untouched.
func RemoveFromHand(hand []Card, toPlay []Card) ([]Card, *Card) {
	removeCounts := make(map[Card]int, len(toPlay))
	for _, c := range toPlay {
		removeCounts[c]++
	}

	available := make(map[Card]int, len(hand))
	for _, c := range hand {
		available[c]++
	}
	for c, n := range removeCounts {
		if available[c] < n {
			missing := c
			return nil, &missing
		}
	}

	updated := make([]Card, 0, len(hand)-len(toPlay))
	for _, c := range hand {
		if removeCounts[c] > 0 {
			removeCounts[c]--
			continue
		}
		updated = append(updated, c)
	}
	return updated, nil
}
