package app

import "bluffroyal/internal/domain"

// EventKind identifies emitted engine events for adapter dispatch.
type EventKind string

const (
	EventGameStarted   EventKind = "game_started"
	EventHandDealt     EventKind = "hand_dealt"
	EventClaimMade     EventKind = "claim_made"
	EventBluffResolved EventKind = "bluff_resolved"
	EventTurnPassed    EventKind = "turn_passed"
)

// Event is an engine event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // player IDs; empty means broadcast
}

type GameStartedPayload struct {
	FirstPlayerID  string
	CardsPerPlayer int
}

// HandDealtPayload carries a full hand and must only ever be sent to its
// owner.
type HandDealtPayload struct {
	PlayerID string
	Hand     []domain.Card
}

// ClaimMadePayload announces a face-down play. The cards themselves stay
// hidden; only the count and the claim are public.
type ClaimMadePayload struct {
	PlayerID  string
	CardCount int
	Claim     domain.Claim
}

// BluffResolvedPayload reveals the contested cards and the outcome.
type BluffResolvedPayload struct {
	CallerID     string
	ClaimantID   string
	WasBluff     bool
	Revealed     []domain.Card
	PileSize     int
	NextPlayerID string
}

type TurnPassedPayload struct {
	PlayerID     string
	NextPlayerID string
	TrickEnded   bool
}
