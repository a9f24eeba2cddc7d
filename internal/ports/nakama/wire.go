package nakama

import (
	"errors"

	"bluffroyal/internal/app"
	"bluffroyal/internal/domain"
)

// Wire types for the JSON payloads exchanged with clients. Hands are only
// ever serialized inside HandDealtEvent and BluffResolvedEvent; room
// snapshots carry card counts so a client can never see another hand.

type WireCard struct {
	Value int    `json:"value"`
	Suit  string `json:"suit"`
}

type WireClaim struct {
	Quantity int `json:"quantity"`
	Value    int `json:"value"`
}

// PlayCardsRequest is the client payload for OpPlayCards.
type PlayCardsRequest struct {
	Cards []WireCard `json:"cards"`
	Claim WireClaim  `json:"claim"`
}

// PlayerSnapshot is the public view of one seat.
type PlayerSnapshot struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	CardCount   int    `json:"card_count"`
	HasPassed   bool   `json:"has_passed"`
	Role        string `json:"role"`
}

// RoomSnapshot is the public view of the whole room, broadcast on
// OpRoomState after every accepted action and on timer expiry.
type RoomSnapshot struct {
	RoomID           string           `json:"room_id"`
	Phase            string           `json:"phase"`
	ActivePlayerID   string           `json:"active_player_id"`
	PileSize         int              `json:"pile_size"`
	Claim            *WireClaim       `json:"claim,omitempty"`
	PendingPlayerID  string           `json:"pending_player_id,omitempty"`
	PendingCardCount int              `json:"pending_card_count,omitempty"`
	Players          []PlayerSnapshot `json:"players"`
}

type GameStartedEvent struct {
	FirstPlayerID  string `json:"first_player_id"`
	CardsPerPlayer int    `json:"cards_per_player"`
}

type HandDealtEvent struct {
	Hand []WireCard `json:"hand"`
}

type ClaimMadeEvent struct {
	PlayerID  string    `json:"player_id"`
	CardCount int       `json:"card_count"`
	Claim     WireClaim `json:"claim"`
}

type BluffResolvedEvent struct {
	CallerID     string     `json:"caller_id"`
	ClaimantID   string     `json:"claimant_id"`
	WasBluff     bool       `json:"was_bluff"`
	Revealed     []WireCard `json:"revealed"`
	PileSize     int        `json:"pile_size"`
	NextPlayerID string     `json:"next_player_id"`
}

type TurnPassedEvent struct {
	PlayerID     string `json:"player_id"`
	NextPlayerID string `json:"next_player_id"`
	TrickEnded   bool   `json:"trick_ended"`
}

// GameErrorEvent is sent privately to the player whose action was rejected.
type GameErrorEvent struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func toWireCard(c domain.Card) WireCard {
	return WireCard{Value: c.Value, Suit: string(c.Suit)}
}

func toWireCards(cards []domain.Card) []WireCard {
	out := make([]WireCard, len(cards))
	for i, c := range cards {
		out[i] = toWireCard(c)
	}
	return out
}

func toDomainCards(cards []WireCard) []domain.Card {
	out := make([]domain.Card, len(cards))
	for i, c := range cards {
		out[i] = domain.Card{Value: c.Value, Suit: domain.Suit(c.Suit)}
	}
	return out
}

func toWireClaim(c domain.Claim) WireClaim {
	return WireClaim{Quantity: c.Quantity, Value: c.Value}
}

// toRoomSnapshot redacts a room into its public view.
func toRoomSnapshot(room *domain.Room) RoomSnapshot {
	snapshot := RoomSnapshot{
		RoomID:         room.ID,
		Phase:          string(room.Phase),
		ActivePlayerID: room.ActivePlayerID,
		PileSize:       len(room.CurrentTrick),
		Players:        make([]PlayerSnapshot, 0, len(room.Players)),
	}
	if room.CurrentClaim != nil {
		claim := toWireClaim(*room.CurrentClaim)
		snapshot.Claim = &claim
	}
	if room.Pending != nil {
		snapshot.PendingPlayerID = room.Pending.PlayerID
		snapshot.PendingCardCount = room.Pending.CardCount
	}
	for _, p := range room.Players {
		snapshot.Players = append(snapshot.Players, PlayerSnapshot{
			UserID:      p.ID,
			DisplayName: p.DisplayName,
			CardCount:   len(p.Hand),
			HasPassed:   p.HasPassed,
			Role:        string(p.Role),
		})
	}
	return snapshot
}

// Error codes sent in GameErrorEvent. Stable values so clients can branch
// on them without string matching.
const (
	errCodeInternal         = 0
	errCodeInvalidPayload   = 1
	errCodeInvalidPhase     = 2
	errCodeNotYourTurn      = 3
	errCodeNotEnoughPlayers = 4
	errCodeCardNotInHand    = 5
	errCodeSelfChallenge    = 6
	errCodeNoActiveClaim    = 7
	errCodePlayerNotFound   = 8
)

// errorCode maps engine sentinels to wire codes.
func errorCode(err error) int {
	switch {
	case errors.Is(err, app.ErrInvalidPhase):
		return errCodeInvalidPhase
	case errors.Is(err, app.ErrNotYourTurn):
		return errCodeNotYourTurn
	case errors.Is(err, app.ErrNotEnoughPlayers):
		return errCodeNotEnoughPlayers
	case errors.Is(err, app.ErrCardNotInHand):
		return errCodeCardNotInHand
	case errors.Is(err, app.ErrCannotChallengeSelf):
		return errCodeSelfChallenge
	case errors.Is(err, app.ErrNoActiveClaim):
		return errCodeNoActiveClaim
	case errors.Is(err, app.ErrPlayerNotFound):
		return errCodePlayerNotFound
	default:
		return errCodeInternal
	}
}
