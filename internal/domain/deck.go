package domain

// DeckSize is the number of cards in a full deck (13 values x 4 suits).
const DeckSize = 52

// NewDeck returns an ordered 52-card deck, values 3..15 across all suits.
// Shuffling is the caller's concern so deals stay reproducible under an
// injected rng.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for v := MinCardValue; v <= MaxCardValue; v++ {
		for _, s := range Suits {
			deck = append(deck, Card{Value: v, Suit: s})
		}
	}
	return deck
}
