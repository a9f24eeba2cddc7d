package bot

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"bluffroyal/internal/domain"
)

// MoveKind is what a bot decided to do on its turn.
type MoveKind string

const (
	MoveKindPlay MoveKind = "play"
	MoveKindPass MoveKind = "pass"
)

// Move is a bot's turn decision. Cards and Claim are only set for plays; a
// bluffing bot's Claim deliberately disagrees with Cards.
type Move struct {
	Kind  MoveKind
	Cards []domain.Card
	Claim domain.Claim
}

// Config tunes an agent's behavior.
type Config struct {
	// BluffChance is the probability a play claims a value the bot did not
	// actually put down.
	BluffChance float64
	// ChallengeChance is the probability the bot contests a claim during a
	// reaction window.
	ChallengeChance float64
	// RNG may be nil to use a time-seeded source.
	RNG *rand.Rand
}

// Agent decides moves for one bot seat. Not safe for concurrent use; each
// match owns its agents and drives them from the match loop.
type Agent struct {
	userID          string
	rng             *rand.Rand
	bluffChance     float64
	challengeChance float64
}

// NewAgent builds an agent for a bot user id.
func NewAgent(userID string, cfg Config) (*Agent, error) {
	if !IsBot(userID) {
		return nil, fmt.Errorf("user %s is not a bot", userID)
	}
	rng := cfg.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Agent{
		userID:          userID,
		rng:             rng,
		bluffChance:     cfg.BluffChance,
		challengeChance: cfg.ChallengeChance,
	}, nil
}

func (a *Agent) UserID() string {
	return a.userID
}

// Act decides the bot's move for its turn. The strategy plays the value it
// holds the most copies of, and bluffs about the claimed value with the
// configured probability. It passes on an empty hand or a one-in-five whim,
// which keeps tricks from running forever.
func (a *Agent) Act(view *domain.Room) (Move, error) {
	self := view.PlayerByID(a.userID)
	if self == nil {
		return Move{}, fmt.Errorf("bot %s is not seated in room %s", a.userID, view.ID)
	}
	if len(self.Hand) == 0 || a.rng.Float64() < 0.2 {
		return Move{Kind: MoveKindPass}, nil
	}

	cards := a.pickCards(self.Hand)
	claim := domain.Claim{Quantity: len(cards), Value: cards[0].Value}
	if a.rng.Float64() < a.bluffChance {
		claim.Value = a.bluffValue(cards[0].Value)
	}

	return Move{Kind: MoveKindPlay, Cards: cards, Claim: claim}, nil
}

// WantsChallenge rolls once per reaction window.
func (a *Agent) WantsChallenge() bool {
	return a.rng.Float64() < a.challengeChance
}

// pickCards selects the most-held value in the hand, capped at four cards.
func (a *Agent) pickCards(hand []domain.Card) []domain.Card {
	byValue := make(map[int][]domain.Card)
	for _, c := range hand {
		byValue[c.Value] = append(byValue[c.Value], c)
	}

	values := make([]int, 0, len(byValue))
	for v := range byValue {
		values = append(values, v)
	}
	// Deterministic tie-break keeps tests stable across map iteration order.
	sort.Ints(values)

	best := values[0]
	for _, v := range values[1:] {
		if len(byValue[v]) > len(byValue[best]) {
			best = v
		}
	}

	cards := byValue[best]
	if len(cards) > 4 {
		cards = cards[:4]
	}
	return append([]domain.Card(nil), cards...)
}

// bluffValue picks a claimed value different from the real one.
func (a *Agent) bluffValue(actual int) int {
	span := domain.MaxCardValue - domain.MinCardValue
	v := domain.MinCardValue + a.rng.Intn(span)
	if v >= actual {
		v++
	}
	return v
}
