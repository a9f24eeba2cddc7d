package domain

import (
	"testing"
)

func TestRemoveFromHand(t *testing.T) {
	hand := []Card{
		{Value: 7, Suit: SuitHearts},
		{Value: 7, Suit: SuitHearts}, // duplicate copy on purpose
		{Value: 9, Suit: SuitClubs},
		{Value: 15, Suit: SuitSpades},
	}

	tests := []struct {
		name        string
		play        []Card
		wantLeft    int
		wantMissing *Card
	}{
		{
			name:     "Single card",
			play:     []Card{{Value: 9, Suit: SuitClubs}},
			wantLeft: 3,
		},
		{
			name:     "Both duplicate copies",
			play:     []Card{{Value: 7, Suit: SuitHearts}, {Value: 7, Suit: SuitHearts}},
			wantLeft: 2,
		},
		{
			name:        "Third copy not held",
			play:        []Card{{Value: 7, Suit: SuitHearts}, {Value: 7, Suit: SuitHearts}, {Value: 7, Suit: SuitHearts}},
			wantMissing: &Card{Value: 7, Suit: SuitHearts},
		},
		{
			name:        "Card not in hand",
			play:        []Card{{Value: 4, Suit: SuitDiamonds}},
			wantMissing: &Card{Value: 4, Suit: SuitDiamonds},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, missing := RemoveFromHand(hand, tt.play)
			if tt.wantMissing != nil {
				if missing == nil {
					t.Fatalf("expected missing card %v, got nil", *tt.wantMissing)
				}
				if *missing != *tt.wantMissing {
					t.Errorf("missing card = %v, want %v", *missing, *tt.wantMissing)
				}
				return
			}
			if missing != nil {
				t.Fatalf("unexpected missing card: %v", *missing)
			}
			if len(updated) != tt.wantLeft {
				t.Errorf("expected %d cards left, got %d", tt.wantLeft, len(updated))
			}
			if len(hand) != 4 {
				t.Errorf("input hand mutated: now %d cards", len(hand))
			}
		})
	}
}

func TestNewDeck(t *testing.T) {
	deck := NewDeck()
	if len(deck) != DeckSize {
		t.Fatalf("expected %d cards, got %d", DeckSize, len(deck))
	}

	seen := make(map[Card]bool, DeckSize)
	for _, c := range deck {
		if c.Value < MinCardValue || c.Value > MaxCardValue {
			t.Errorf("card value %d out of range", c.Value)
		}
		if seen[c] {
			t.Errorf("duplicate card %v", c)
		}
		seen[c] = true
	}
}

func TestNextActivePlayer(t *testing.T) {
	room := NewRoom("r1")
	for _, id := range []string{"a", "b", "c", "d"} {
		room.AddPlayer(&Player{ID: id, DisplayName: id, Role: RoleNeutral})
	}

	tests := []struct {
		name     string
		passed   []string
		after    int
		expected string
	}{
		{name: "Nobody passed", passed: nil, after: 0, expected: "b"},
		{name: "Skip one", passed: []string{"b"}, after: 0, expected: "c"},
		{name: "Wraps around", passed: []string{"b", "c", "d"}, after: 0, expected: "a"},
		{name: "All others passed", passed: []string{"a", "b", "c", "d"}, after: 1, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room.ResetPasses()
			for _, id := range tt.passed {
				room.PlayerByID(id).HasPassed = true
			}
			if got := room.NextActivePlayer(tt.after); got != tt.expected {
				t.Errorf("NextActivePlayer(%d) = %q, want %q", tt.after, got, tt.expected)
			}
		})
	}
}
