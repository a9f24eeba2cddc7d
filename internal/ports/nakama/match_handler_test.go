package nakama

import (
	"encoding/json"
	"testing"
	"time"

	"bluffroyal/internal/app"
	"bluffroyal/internal/bot"
	"bluffroyal/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	broadcastCount int
	labelUpdates   int
	lastOpCode     int64
	lastData       []byte
	opCodes        []int64
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.broadcastCount++
	md.lastOpCode = opCode
	md.lastData = append([]byte(nil), data...)
	md.opCodes = append(md.opCodes, opCode)
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates++
	return nil
}

func (md *mockDispatcher) sawOpCode(opCode int64) bool {
	for _, op := range md.opCodes {
		if op == opCode {
			return true
		}
	}
	return false
}

// newTestHandler wires a handler around a fresh engine with a long reaction
// window so timers never race the assertions.
func newTestHandler() (*matchHandler, *app.Service) {
	registry := NewDispatcherRegistry(noopLogger{})
	svc := app.NewService(app.Config{
		ReactionWindow: time.Minute,
		Broadcaster:    registry,
	})
	registry.Bind(svc)
	return newMatchHandler(svc, registry), svc
}

func TestMatchLabel_Marshal(t *testing.T) {
	tests := []struct {
		name     string
		label    matchLabel
		expected string
	}{
		{
			name:     "Gathering",
			label:    matchLabel{Open: true, Game: "bluffroyal", Phase: "waiting_for_players"},
			expected: `{"open":true,"game":"bluffroyal","phase":"waiting_for_players"}`,
		},
		{
			name:     "InGame",
			label:    matchLabel{Open: false, Game: "bluffroyal", Phase: "in_game"},
			expected: `{"open":false,"game":"bluffroyal","phase":"in_game"}`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			payload, err := json.Marshal(test.label)
			if err != nil {
				t.Fatalf("Failed to marshal label: %v", err)
			}
			if string(payload) != test.expected {
				t.Errorf("Got %s, want %s", payload, test.expected)
			}
		})
	}
}

func TestProcessBots_AddsTwoBotsForSoloHuman(t *testing.T) {
	mh, svc := newTestHandler()
	dispatcher := &mockDispatcher{}

	svc.CreateRoom("room-1")
	if _, err := svc.EnsurePlayer("room-1", "user-1", "Solo"); err != nil {
		t.Fatalf("EnsurePlayer: %v", err)
	}

	state := &MatchState{
		RoomID:           "room-1",
		Presences:        make(map[string]runtime.Presence),
		Bots:             make(map[string]*bot.Agent),
		BotsEnabled:      true,
		BotAutoFillDelay: 2,
		SoloHumanSince:   8,
		Tick:             10,
	}

	mh.processBots(state, dispatcher, noopLogger{})

	room, err := svc.Snapshot("room-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	botCount := 0
	for _, p := range room.Players {
		if bot.IsBot(p.ID) {
			botCount++
		}
	}
	if botCount != 2 {
		t.Fatalf("Expected 2 bots, got %d", botCount)
	}
	if len(state.Bots) != 2 {
		t.Fatalf("Expected 2 agents, got %d", len(state.Bots))
	}
	if state.SoloHumanSince != 0 {
		t.Fatalf("Expected auto-fill timer reset, got %d", state.SoloHumanSince)
	}
	if dispatcher.broadcastCount == 0 || dispatcher.labelUpdates == 0 {
		t.Fatal("Expected room state broadcast and label update after auto-fill")
	}
}

func TestProcessBots_WaitsOutAutoFillDelay(t *testing.T) {
	mh, svc := newTestHandler()
	dispatcher := &mockDispatcher{}

	svc.CreateRoom("room-1")
	if _, err := svc.EnsurePlayer("room-1", "user-1", "Solo"); err != nil {
		t.Fatalf("EnsurePlayer: %v", err)
	}

	state := &MatchState{
		RoomID:           "room-1",
		Presences:        make(map[string]runtime.Presence),
		Bots:             make(map[string]*bot.Agent),
		BotsEnabled:      true,
		BotAutoFillDelay: 5,
		Tick:             10,
	}

	// First pass only starts the timer.
	mh.processBots(state, dispatcher, noopLogger{})
	if state.SoloHumanSince != 10 {
		t.Fatalf("SoloHumanSince = %d, want 10", state.SoloHumanSince)
	}

	// Still inside the delay.
	state.Tick = 12
	mh.processBots(state, dispatcher, noopLogger{})

	room, err := svc.Snapshot("room-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(room.Players) != 1 {
		t.Fatalf("Expected no bots before the delay elapses, got %d players", len(room.Players))
	}
}

func TestProcessBots_BotTakesItsTurn(t *testing.T) {
	mh, svc := newTestHandler()
	dispatcher := &mockDispatcher{}

	svc.CreateRoom("room-1")
	// Bot seated first so it opens the game.
	if _, err := svc.EnsurePlayer("room-1", "bot-ace", "Ace"); err != nil {
		t.Fatalf("EnsurePlayer: %v", err)
	}
	if _, err := svc.EnsurePlayer("room-1", "user-1", "Human"); err != nil {
		t.Fatalf("EnsurePlayer: %v", err)
	}
	if _, _, err := svc.StartGame("room-1"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	agent, err := bot.NewAgent("bot-ace", bot.Config{})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}

	state := &MatchState{
		RoomID:      "room-1",
		Presences:   make(map[string]runtime.Presence),
		Bots:        map[string]*bot.Agent{"bot-ace": agent},
		BotsEnabled: true,
		Tick:        5,
	}

	// First pass arms the delay, second pass acts.
	mh.processBots(state, dispatcher, noopLogger{})
	if dispatcher.broadcastCount != 0 {
		t.Fatal("Expected no move while the bot delay is armed")
	}
	mh.processBots(state, dispatcher, noopLogger{})

	if dispatcher.broadcastCount == 0 {
		t.Fatal("Expected the bot to act on the second pass")
	}
	if !dispatcher.sawOpCode(OpRoomState) {
		t.Fatal("Expected a room state broadcast after the bot move")
	}

	room, err := svc.Snapshot("room-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	// Whatever the bot chose, the turn moved on: either a claim opened the
	// reaction window or a pass advanced the active player.
	if room.Phase == domain.PhaseReactionWindow {
		if room.Pending == nil || room.Pending.PlayerID != "bot-ace" {
			t.Fatalf("Expected pending play by bot-ace, got %+v", room.Pending)
		}
	} else if room.ActivePlayerID == "bot-ace" {
		t.Fatal("Expected the bot's turn to be over")
	}
}

func TestProcessBots_BotContestsClaim(t *testing.T) {
	mh, svc := newTestHandler()
	dispatcher := &mockDispatcher{}

	svc.CreateRoom("room-1")
	if _, err := svc.EnsurePlayer("room-1", "user-1", "Human"); err != nil {
		t.Fatalf("EnsurePlayer: %v", err)
	}
	if _, err := svc.EnsurePlayer("room-1", "bot-ace", "Ace"); err != nil {
		t.Fatalf("EnsurePlayer: %v", err)
	}
	if _, _, err := svc.StartGame("room-1"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	// Human lies about a single card.
	room, err := svc.Snapshot("room-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	card := room.PlayerByID("user-1").Hand[0]
	claimValue := card.Value + 1
	if claimValue > domain.MaxCardValue {
		claimValue = domain.MinCardValue
	}
	if _, _, err := svc.PlayCards("room-1", "user-1", []domain.Card{card}, domain.Claim{Quantity: 1, Value: claimValue}); err != nil {
		t.Fatalf("PlayCards: %v", err)
	}

	agent, err := bot.NewAgent("bot-ace", bot.Config{ChallengeChance: 1.0})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}

	state := &MatchState{
		RoomID:      "room-1",
		Presences:   make(map[string]runtime.Presence),
		Bots:        map[string]*bot.Agent{"bot-ace": agent},
		BotsEnabled: true,
		Tick:        10,
	}

	// The roll happens on the first pass, the contest within the next few
	// ticks. Stop as soon as it lands so the bot does not start its own
	// turn afterwards.
	for tick := int64(10); tick <= 15; tick++ {
		state.Tick = tick
		mh.processBots(state, dispatcher, noopLogger{})
		if dispatcher.sawOpCode(OpBluffResolved) {
			break
		}
	}

	if !dispatcher.sawOpCode(OpBluffResolved) {
		t.Fatal("Expected a bluff resolution broadcast")
	}

	room, err = svc.Snapshot("room-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if room.Phase != domain.PhaseInGame {
		t.Fatalf("Phase = %s, want in_game after contest", room.Phase)
	}
	if room.CurrentClaim != nil {
		t.Fatal("Expected claim cleared after contest")
	}
	// The lie was caught: the liar took the pile back and the bot holds the
	// turn.
	if room.ActivePlayerID != "bot-ace" {
		t.Fatalf("ActivePlayerID = %s, want bot-ace", room.ActivePlayerID)
	}
}

func TestRoomSnapshotRedactsHands(t *testing.T) {
	room := domain.NewRoom("room-1")
	room.AddPlayer(&domain.Player{
		ID:          "user-1",
		DisplayName: "Human",
		Hand:        []domain.Card{{Value: 7, Suit: domain.SuitHearts}, {Value: 9, Suit: domain.SuitSpades}},
	})
	room.Phase = domain.PhaseReactionWindow
	room.CurrentTrick = []domain.Card{{Value: 7, Suit: domain.SuitHearts}}
	room.CurrentClaim = &domain.Claim{Quantity: 1, Value: 7}
	room.Pending = &domain.PendingPlay{PlayerID: "user-1", CardCount: 1}

	snapshot := toRoomSnapshot(room)

	if snapshot.Players[0].CardCount != 2 {
		t.Fatalf("CardCount = %d, want 2", snapshot.Players[0].CardCount)
	}
	if snapshot.PileSize != 1 {
		t.Fatalf("PileSize = %d, want 1", snapshot.PileSize)
	}
	if snapshot.Claim == nil || snapshot.Claim.Quantity != 1 || snapshot.Claim.Value != 7 {
		t.Fatalf("Claim = %+v, want quantity 1 value 7", snapshot.Claim)
	}
	if snapshot.PendingPlayerID != "user-1" || snapshot.PendingCardCount != 1 {
		t.Fatalf("Pending = %s/%d, want user-1/1", snapshot.PendingPlayerID, snapshot.PendingCardCount)
	}

	// The serialized form must never contain card values outside the pile
	// metadata.
	data, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	players := decoded["players"].([]any)
	if _, ok := players[0].(map[string]any)["hand"]; ok {
		t.Fatal("Snapshot leaked a hand")
	}
}

func TestErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{app.ErrInvalidPhase, errCodeInvalidPhase},
		{app.ErrNotYourTurn, errCodeNotYourTurn},
		{app.ErrNotEnoughPlayers, errCodeNotEnoughPlayers},
		{app.ErrCardNotInHand, errCodeCardNotInHand},
		{app.ErrCannotChallengeSelf, errCodeSelfChallenge},
		{app.ErrNoActiveClaim, errCodeNoActiveClaim},
		{app.ErrPlayerNotFound, errCodePlayerNotFound},
		{app.ErrRoomNotFound, errCodeInternal},
	}

	for _, test := range tests {
		if got := errorCode(test.err); got != test.want {
			t.Errorf("errorCode(%v) = %d, want %d", test.err, got, test.want)
		}
	}
}

func TestDispatcherRegistry_StateChanged(t *testing.T) {
	registry := NewDispatcherRegistry(noopLogger{})
	svc := app.NewService(app.Config{
		ReactionWindow: time.Minute,
		Broadcaster:    registry,
	})
	registry.Bind(svc)

	svc.CreateRoom("room-1")
	if _, err := svc.EnsurePlayer("room-1", "user-1", "Human"); err != nil {
		t.Fatalf("EnsurePlayer: %v", err)
	}

	dispatcher := &mockDispatcher{}
	registry.Register("room-1", dispatcher)

	registry.StateChanged("room-1")

	if dispatcher.lastOpCode != OpRoomState {
		t.Fatalf("Expected opcode %d, got %d", OpRoomState, dispatcher.lastOpCode)
	}
	var snapshot RoomSnapshot
	if err := json.Unmarshal(dispatcher.lastData, &snapshot); err != nil {
		t.Fatalf("Unmarshal snapshot: %v", err)
	}
	if snapshot.RoomID != "room-1" || len(snapshot.Players) != 1 {
		t.Fatalf("Snapshot = %+v, want room-1 with 1 player", snapshot)
	}

	// Unregistered rooms are silently skipped.
	registry.Unregister("room-1")
	before := dispatcher.broadcastCount
	registry.StateChanged("room-1")
	if dispatcher.broadcastCount != before {
		t.Fatal("Expected no broadcast after unregister")
	}
}
