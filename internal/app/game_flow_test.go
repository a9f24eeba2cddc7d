package app

import (
	"testing"
	"time"

	"bluffroyal/internal/domain"
)

// TestFullGameFlow drives three players through a whole trick cycle: a
// truthful claim that goes uncontested, a lie that gets caught, and a trick
// that ends on passes. Card conservation holds at every step.
func TestFullGameFlow(t *testing.T) {
	svc := newTestService(time.Minute, nil)

	room := svc.CreateRoom("flow")
	for _, id := range []string{"alice", "bob", "carol"} {
		var err error
		room, err = svc.EnsurePlayer("flow", id, "")
		if err != nil {
			t.Fatalf("EnsurePlayer(%s): %v", id, err)
		}
	}
	if len(room.Players) != 3 {
		t.Fatalf("players = %d, want 3", len(room.Players))
	}

	room, _, err := svc.StartGame("flow")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if room.Phase != domain.PhaseInGame {
		t.Fatalf("phase = %s, want in_game", room.Phase)
	}
	if room.ActivePlayerID != "alice" {
		t.Fatalf("active = %s, want alice", room.ActivePlayerID)
	}
	total := room.CardTotal()

	// Alice plays a pair truthfully.
	pair := pairInHand(t, room.PlayerByID("alice").Hand)
	room, _, err = svc.PlayCards("flow", "alice", pair, domain.Claim{Quantity: 2, Value: pair[0].Value})
	if err != nil {
		t.Fatalf("PlayCards: %v", err)
	}
	if room.Phase != domain.PhaseReactionWindow {
		t.Fatalf("phase = %s, want reaction_window", room.Phase)
	}

	// Bob contests and loses: he eats the pile, Alice keeps the turn.
	room, _, err = svc.CallBluff("flow", "bob")
	if err != nil {
		t.Fatalf("CallBluff: %v", err)
	}
	if room.ActivePlayerID != "alice" {
		t.Fatalf("active = %s, want alice after truthful claim", room.ActivePlayerID)
	}
	if got := room.CardTotal(); got != total {
		t.Fatalf("card total = %d, want %d", got, total)
	}

	// Alice lies about a single card; Carol catches it.
	aliceHand := room.PlayerByID("alice").Hand
	card := aliceHand[0]
	lie := card.Value + 1
	if lie > domain.MaxCardValue {
		lie = domain.MinCardValue
	}
	aliceBefore := len(aliceHand)
	room, _, err = svc.PlayCards("flow", "alice", []domain.Card{card}, domain.Claim{Quantity: 1, Value: lie})
	if err != nil {
		t.Fatalf("PlayCards: %v", err)
	}
	room, events, err := svc.CallBluff("flow", "carol")
	if err != nil {
		t.Fatalf("CallBluff: %v", err)
	}
	resolved := events[0].Payload.(BluffResolvedPayload)
	if !resolved.WasBluff {
		t.Fatal("expected the lie to be caught")
	}
	if room.ActivePlayerID != "carol" {
		t.Fatalf("active = %s, want carol after catching the lie", room.ActivePlayerID)
	}
	if got := len(room.PlayerByID("alice").Hand); got != aliceBefore {
		// The single-card pile went straight back to the liar.
		t.Fatalf("alice hand = %d, want %d", got, aliceBefore)
	}
	if got := room.CardTotal(); got != total {
		t.Fatalf("card total = %d, want %d", got, total)
	}

	// Everyone passes; the trick ends with the last passer opening.
	for _, id := range []string{"carol", "alice", "bob"} {
		room, _, err = svc.PassTurn("flow", id)
		if err != nil {
			t.Fatalf("PassTurn(%s): %v", id, err)
		}
	}
	if room.ActivePlayerID != "bob" {
		t.Fatalf("active = %s, want bob to open the next trick", room.ActivePlayerID)
	}
	for _, p := range room.Players {
		if p.HasPassed {
			t.Fatalf("player %s still marked passed after trick end", p.ID)
		}
	}
	if got := room.CardTotal(); got != total {
		t.Fatalf("card total = %d, want %d", got, total)
	}
}
