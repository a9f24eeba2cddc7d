package app

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"bluffroyal/internal/domain"
	"bluffroyal/internal/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrInvalidPhase        = errors.New("action not allowed in current phase")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrNotEnoughPlayers    = errors.New("not enough players to start")
	ErrCardNotInHand       = errors.New("card not in hand")
	ErrCannotChallengeSelf = errors.New("cannot contest your own play")
	ErrNoActiveClaim       = errors.New("no active claim to contest")
)

// action names a player-triggered engine operation.
type action string

const (
	actionStartGame action = "start_game"
	actionPlayCards action = "play_cards"
	actionCallBluff action = "call_bluff"
	actionPassTurn  action = "pass_turn"
)

// legalPhase is the single place that says which phase each action is legal
// in. Every operation consults it before touching room state.
var legalPhase = map[action]domain.Phase{
	actionStartGame: domain.PhaseWaitingForPlayers,
	actionPlayCards: domain.PhaseInGame,
	actionCallBluff: domain.PhaseReactionWindow,
	actionPassTurn:  domain.PhaseInGame,
}

// roomEntry pairs a room with its lock and its outstanding reaction timer.
// All mutation of the room goes through mu, so an action and a timer expiry
// can never interleave. timerGen invalidates callbacks of timers that were
// stopped after their function already started waiting on mu.
type roomEntry struct {
	mu       sync.Mutex
	room     *domain.Room
	timer    *time.Timer
	timerGen uint64
}

// cancelTimerLocked stops any outstanding reaction timer. Callers hold mu.
// Bumping the generation makes an already-fired callback a no-op even when
// Stop reports the function has started.
func (e *roomEntry) cancelTimerLocked() {
	e.timerGen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// Config wires a Service. Zero values fall back to sane defaults.
type Config struct {
	// ReactionWindow overrides DefaultReactionWindow; tests use millisecond
	// windows here.
	ReactionWindow time.Duration
	// Broadcaster receives state-changed notifications from timer expiry.
	Broadcaster ports.Broadcaster
	// RNG drives deck shuffling; time-seeded when nil.
	RNG    *rand.Rand
	Logger *zap.Logger
}

// Service is the Bluff Royal rules engine. It owns every active room, their
// reaction timers, and is the single writer of room state.
type Service struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry

	reactionWindow time.Duration
	broadcaster    ports.Broadcaster
	logger         *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService constructs the engine.
func NewService(cfg Config) *Service {
	if cfg.ReactionWindow <= 0 {
		cfg.ReactionWindow = DefaultReactionWindow
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = ports.NopBroadcaster{}
	}
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		rooms:          make(map[string]*roomEntry),
		reactionWindow: cfg.ReactionWindow,
		broadcaster:    cfg.Broadcaster,
		rng:            cfg.RNG,
		logger:         cfg.Logger,
	}
}

// CreateRoom registers a new empty room and returns its state. An empty id
// asks the engine to mint one. Creating an id that already exists returns
// the existing room unchanged.
func (s *Service) CreateRoom(id string) *domain.Room {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	entry, ok := s.rooms[id]
	if !ok {
		entry = &roomEntry{room: domain.NewRoom(id)}
		s.rooms[id] = entry
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Info("room created", zap.String("room_id", id))
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneRoom(entry.room)
}

// RemoveRoom drops a room and cancels its timer. Called when the hosting
// match terminates; a missing id is a no-op.
func (s *Service) RemoveRoom(id string) {
	s.mu.Lock()
	entry, ok := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.cancelTimerLocked()
	entry.mu.Unlock()
	s.logger.Info("room removed", zap.String("room_id", id))
}

// Snapshot returns a deep copy of the room state.
func (s *Service) Snapshot(roomID string) (*domain.Room, error) {
	entry, err := s.entry(roomID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneRoom(entry.room), nil
}

// EnsurePlayer creates the player in room state the first time an unknown id
// shows up, per the join-on-first-action boundary contract. An empty display
// name gets the default derived from the id. Existing players are untouched,
// which makes rejoin after a dropped connection safe.
func (s *Service) EnsurePlayer(roomID, playerID, displayName string) (*domain.Room, error) {
	entry, err := s.entry(roomID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.room.PlayerByID(playerID) == nil {
		if displayName == "" {
			displayName = defaultDisplayName(playerID)
		}
		entry.room.AddPlayer(&domain.Player{
			ID:          playerID,
			DisplayName: displayName,
			Role:        domain.RoleNeutral,
		})
		s.logger.Info("player joined room",
			zap.String("room_id", roomID),
			zap.String("player_id", playerID),
			zap.String("display_name", displayName))
	}

	return cloneRoom(entry.room), nil
}

// StartGame shuffles a fresh deck, deals floor(52/n) cards to each player in
// turn order (remainder cards stay undealt for the round) and opens play
// with the first player.
func (s *Service) StartGame(roomID string) (*domain.Room, []Event, error) {
	entry, err := s.entry(roomID)
	if err != nil {
		return nil, nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	room := entry.room

	if err := checkPhase(room, actionStartGame); err != nil {
		return nil, nil, err
	}
	n := len(room.Players)
	if n < MinPlayersToStartGame {
		return nil, nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughPlayers, n, MinPlayersToStartGame)
	}

	deck := domain.NewDeck()
	s.shuffle(deck)
	perPlayer := len(deck) / n

	events := make([]Event, 0, n+1)
	for i, p := range room.Players {
		p.Hand = append([]domain.Card(nil), deck[i*perPlayer:(i+1)*perPlayer]...)
		p.HasPassed = false
		events = append(events, Event{
			Kind: EventHandDealt,
			Payload: HandDealtPayload{
				PlayerID: p.ID,
				Hand:     append([]domain.Card(nil), p.Hand...),
			},
			Recipients: []string{p.ID},
		})
	}

	room.ClearTrick()
	room.ActivePlayerID = room.Players[0].ID
	room.Phase = domain.PhaseInGame

	events = append(events, Event{
		Kind: EventGameStarted,
		Payload: GameStartedPayload{
			FirstPlayerID:  room.ActivePlayerID,
			CardsPerPlayer: perPlayer,
		},
	})

	s.logger.Info("game started",
		zap.String("room_id", roomID),
		zap.Int("players", n),
		zap.Int("cards_per_player", perPlayer))

	return cloneRoom(room), events, nil
}

// PlayCards removes the played cards from the actor's hand, stacks them
// face-down on the trick pile, records the claim, and opens the reaction
// window. The claim is deliberately never checked against the cards: lying
// is legal until contested.
func (s *Service) PlayCards(roomID, playerID string, cards []domain.Card, claim domain.Claim) (*domain.Room, []Event, error) {
	entry, err := s.entry(roomID)
	if err != nil {
		return nil, nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	room := entry.room

	if err := checkPhase(room, actionPlayCards); err != nil {
		return nil, nil, err
	}
	player := room.PlayerByID(playerID)
	if player == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if room.ActivePlayerID != playerID {
		return nil, nil, ErrNotYourTurn
	}

	updated, missing := domain.RemoveFromHand(player.Hand, cards)
	if missing != nil {
		return nil, nil, fmt.Errorf("%w: %d of %s", ErrCardNotInHand, missing.Value, missing.Suit)
	}

	player.Hand = updated
	room.CurrentTrick = append(room.CurrentTrick, cards...)
	claimCopy := claim
	room.CurrentClaim = &claimCopy
	room.Pending = &domain.PendingPlay{PlayerID: playerID, CardCount: len(cards)}
	room.Phase = domain.PhaseReactionWindow

	s.startReactionTimerLocked(entry)

	s.logger.Info("claim made",
		zap.String("room_id", roomID),
		zap.String("player_id", playerID),
		zap.Int("cards", len(cards)),
		zap.Int("claim_quantity", claim.Quantity),
		zap.Int("claim_value", claim.Value))

	events := []Event{{
		Kind: EventClaimMade,
		Payload: ClaimMadePayload{
			PlayerID:  playerID,
			CardCount: len(cards),
			Claim:     claim,
		},
	}}

	return cloneRoom(room), events, nil
}

// CallBluff contests the pending claim. It cancels the reaction timer, then
// compares the claim against the cards the claimant actually contributed:
// the last N cards of the pile, N being the pending play's count. The loser
// of the comparison takes the whole pile; the winner of the exchange holds
// the turn as described in the rules (a truthful claimant keeps initiative).
func (s *Service) CallBluff(roomID, callerID string) (*domain.Room, []Event, error) {
	entry, err := s.entry(roomID)
	if err != nil {
		return nil, nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	room := entry.room

	// Checked before the phase guard: when the timer beat this contest to
	// the room lock the claim is already settled, and the race loser must
	// see ErrNoActiveClaim rather than a generic phase failure.
	if room.CurrentClaim == nil || room.Pending == nil {
		return nil, nil, ErrNoActiveClaim
	}
	if err := checkPhase(room, actionCallBluff); err != nil {
		return nil, nil, err
	}
	caller := room.PlayerByID(callerID)
	if caller == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, callerID)
	}
	if room.Pending.PlayerID == callerID {
		return nil, nil, ErrCannotChallengeSelf
	}

	// From here the contest owns the resolution; a timer that already fired
	// is waiting on the room lock and will observe the bumped generation.
	entry.cancelTimerLocked()

	claimant := room.PlayerByID(room.Pending.PlayerID)
	if claimant == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, room.Pending.PlayerID)
	}

	played := domain.LastPlayed(room.CurrentTrick, room.Pending.CardCount)
	revealed := append([]domain.Card(nil), played...)
	wasBluff := domain.IsBluff(*room.CurrentClaim, played)

	pile := append([]domain.Card(nil), room.CurrentTrick...)
	if wasBluff {
		claimant.Hand = append(claimant.Hand, pile...)
		room.ActivePlayerID = caller.ID
	} else {
		caller.Hand = append(caller.Hand, pile...)
		room.ActivePlayerID = claimant.ID
	}

	room.ClearTrick()
	room.Phase = domain.PhaseInGame
	// HasPassed flags intentionally survive bluff resolution; only trick
	// exhaustion in PassTurn resets them.

	s.logger.Info("bluff contested",
		zap.String("room_id", roomID),
		zap.String("caller_id", callerID),
		zap.String("claimant_id", claimant.ID),
		zap.Bool("was_bluff", wasBluff),
		zap.Int("pile_size", len(pile)))

	events := []Event{{
		Kind: EventBluffResolved,
		Payload: BluffResolvedPayload{
			CallerID:     caller.ID,
			ClaimantID:   claimant.ID,
			WasBluff:     wasBluff,
			Revealed:     revealed,
			PileSize:     len(pile),
			NextPlayerID: room.ActivePlayerID,
		},
	}}

	return cloneRoom(room), events, nil
}

// PassTurn marks the actor as passed and advances the turn, skipping players
// who already passed. When nobody is left to act the trick ends: pile and
// claim are dropped, passed flags reset, and the passer opens the next
// trick.
func (s *Service) PassTurn(roomID, playerID string) (*domain.Room, []Event, error) {
	entry, err := s.entry(roomID)
	if err != nil {
		return nil, nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	room := entry.room

	if err := checkPhase(room, actionPassTurn); err != nil {
		return nil, nil, err
	}
	player := room.PlayerByID(playerID)
	if player == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if room.ActivePlayerID != playerID {
		return nil, nil, ErrNotYourTurn
	}

	player.HasPassed = true
	next := room.NextActivePlayer(room.PlayerIndex(playerID))

	trickEnded := next == ""
	if trickEnded {
		room.ClearTrick()
		room.ResetPasses()
		room.ActivePlayerID = playerID
		s.logger.Info("all players passed, trick ended",
			zap.String("room_id", roomID),
			zap.String("opener_id", playerID))
	} else {
		room.ActivePlayerID = next
		s.logger.Debug("turn passed",
			zap.String("room_id", roomID),
			zap.String("player_id", playerID),
			zap.String("next_id", next))
	}

	events := []Event{{
		Kind: EventTurnPassed,
		Payload: TurnPassedPayload{
			PlayerID:     playerID,
			NextPlayerID: room.ActivePlayerID,
			TrickEnded:   trickEnded,
		},
	}}

	return cloneRoom(room), events, nil
}

// startReactionTimerLocked arms the per-room reaction timer. Callers hold
// the room lock. The phase guard means no timer can be outstanding here, but
// cancelling first costs nothing and keeps the one-timer-per-room invariant
// even if a caller slips.
func (s *Service) startReactionTimerLocked(entry *roomEntry) {
	entry.cancelTimerLocked()
	gen := entry.timerGen
	roomID := entry.room.ID
	entry.timer = time.AfterFunc(s.reactionWindow, func() {
		s.reactionWindowElapsed(entry, roomID, gen)
	})
}

// reactionWindowElapsed runs when nobody contested in time. The claim stands
// as truth: the turn moves on from the claimant with the same skip-passed
// scan used for passing, the pile and claim are dropped, and the surrounding
// system is told to re-broadcast. If the timer lost the race against a
// contest, the generation check turns this into a no-op.
func (s *Service) reactionWindowElapsed(entry *roomEntry, roomID string, gen uint64) {
	entry.mu.Lock()
	room := entry.room
	if gen != entry.timerGen || room.Phase != domain.PhaseReactionWindow || room.Pending == nil {
		entry.mu.Unlock()
		return
	}
	entry.timer = nil

	claimantID := room.Pending.PlayerID
	next := ""
	if idx := room.PlayerIndex(claimantID); idx >= 0 {
		next = room.NextActivePlayer(idx)
	}
	room.ActivePlayerID = next
	room.ClearTrick()
	room.Phase = domain.PhaseInGame
	entry.mu.Unlock()

	s.logger.Info("reaction window elapsed, claim stands",
		zap.String("room_id", roomID),
		zap.String("claimant_id", claimantID),
		zap.String("next_id", next))

	s.broadcaster.StateChanged(roomID)
}

func (s *Service) entry(roomID string) (*roomEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return entry, nil
}

func (s *Service) shuffle(deck []domain.Card) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
}

func checkPhase(room *domain.Room, act action) error {
	if room.Phase != legalPhase[act] {
		return fmt.Errorf("%w: %s during %s", ErrInvalidPhase, act, room.Phase)
	}
	return nil
}

func defaultDisplayName(playerID string) string {
	short := playerID
	if len(short) > 6 {
		short = short[:6]
	}
	return "player-" + short
}

func cloneRoom(r *domain.Room) *domain.Room {
	out := &domain.Room{
		ID:             r.ID,
		ActivePlayerID: r.ActivePlayerID,
		CurrentTrick:   append([]domain.Card(nil), r.CurrentTrick...),
		Phase:          r.Phase,
	}
	if r.CurrentClaim != nil {
		claim := *r.CurrentClaim
		out.CurrentClaim = &claim
	}
	if r.Pending != nil {
		pending := *r.Pending
		out.Pending = &pending
	}
	out.Players = make([]*domain.Player, 0, len(r.Players))
	for _, p := range r.Players {
		out.Players = append(out.Players, &domain.Player{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Hand:        append([]domain.Card(nil), p.Hand...),
			Role:        p.Role,
			HasPassed:   p.HasPassed,
		})
	}
	return out
}
