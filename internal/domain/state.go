package domain

// Phase represents the lifecycle stage of a Bluff Royal room.
type Phase string

const (
	// PhaseWaitingForPlayers is the pre-game state where players can join.
	PhaseWaitingForPlayers Phase = "waiting_for_players"
	// PhaseInGame is the active state where the turn-holder plays or passes.
	PhaseInGame Phase = "in_game"
	// PhaseReactionWindow is the timed window in which any opponent may
	// contest the claim just made.
	PhaseReactionWindow Phase = "reaction_window"
)

// Role is the rank a player earned in a previous round. Unused by the engine
// for now, reserved for cross-round scoring.
type Role string

const (
	RolePresident     Role = "president"
	RoleVicePresident Role = "vice_president"
	RoleNeutral       Role = "neutral"
	RoleViceServant   Role = "vice_servant"
	RoleServant       Role = "servant"
)

// Suit is one of the four card suits.
type Suit string

const (
	SuitHearts   Suit = "H"
	SuitDiamonds Suit = "D"
	SuitClubs    Suit = "C"
	SuitSpades   Suit = "S"
)

// Suits lists all suits in deck-building order.
var Suits = [4]Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

const (
	// MinCardValue is the lowest card value in the local ranking (the 3).
	MinCardValue = 3
	// MaxCardValue is the highest card value in the local ranking (the 2).
	MaxCardValue = 15
)

// Card is a single playing card. Equality is by (Value, Suit).
type Card struct {
	Value int  `json:"value"` // 3..15, where 15 is the 2
	Suit  Suit `json:"suit"`
}

// Claim is what a player asserts about cards just played face-down. The
// engine never checks a claim for plausibility; lying is part of the game.
type Claim struct {
	Quantity int `json:"quantity"` // > 0
	Value    int `json:"value"`    // 3..15
}

// PendingPlay records who made the most recent face-down play and how many
// cards it contributed to the trick pile. It is room-local state, cleared
// together with the claim.
type PendingPlay struct {
	PlayerID  string
	CardCount int
}

// Player holds the state of one participant in a room.
type Player struct {
	ID          string
	DisplayName string
	Hand        []Card
	Role        Role
	HasPassed   bool
}

// Room is the authoritative state of one game room. A room exclusively owns
// its players, their hands and the trick pile; nothing here is shared across
// rooms.
type Room struct {
	ID             string
	Players        []*Player // insertion order = turn order
	ActivePlayerID string    // "" when unset
	CurrentTrick   []Card    // face-down pile, flattened across plays
	CurrentClaim   *Claim
	Pending        *PendingPlay
	Phase          Phase
}

// NewRoom creates an empty room waiting for players.
func NewRoom(id string) *Room {
	return &Room{
		ID:    id,
		Phase: PhaseWaitingForPlayers,
	}
}

// PlayerByID returns the player with the given id, or nil.
func (r *Room) PlayerByID(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayerIndex returns the turn-order index of the given player, or -1.
func (r *Room) PlayerIndex(id string) int {
	for i, p := range r.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// AddPlayer appends a player to the turn order. Callers are expected to have
// checked for duplicates.
func (r *Room) AddPlayer(p *Player) {
	r.Players = append(r.Players, p)
}

// NextActivePlayer scans forward circularly from afterIndex and returns the
// id of the first player that has not passed, wrapping at most once around
// the table. It returns "" when every other player has passed, which ends
// the trick.
func (r *Room) NextActivePlayer(afterIndex int) string {
	n := len(r.Players)
	if n == 0 {
		return ""
	}
	for offset := 1; offset <= n; offset++ {
		candidate := r.Players[(afterIndex+offset)%n]
		if !candidate.HasPassed {
			return candidate.ID
		}
	}
	return ""
}

// ClearTrick drops the pile together with the claim and pending-play record.
// The claim and pending play must never outlive the pile.
func (r *Room) ClearTrick() {
	r.CurrentTrick = r.CurrentTrick[:0]
	r.CurrentClaim = nil
	r.Pending = nil
}

// ResetPasses clears every player's passed flag for a fresh trick.
func (r *Room) ResetPasses() {
	for _, p := range r.Players {
		p.HasPassed = false
	}
}

// CardTotal sums the cards held in hands plus the trick pile. Exposed for
// invariant checks in tests.
func (r *Room) CardTotal() int {
	total := len(r.CurrentTrick)
	for _, p := range r.Players {
		total += len(p.Hand)
	}
	return total
}
