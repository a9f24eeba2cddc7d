package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math/rand"

	"bluffroyal/internal/app"
	"bluffroyal/internal/bot"
	"bluffroyal/internal/config"
	"bluffroyal/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	// MatchLabelKey_Open is the label key quick-match queries filter on.
	MatchLabelKey_Open = "open"

	// maxPlayersPerRoom caps the table size; the deal still works beyond
	// this but the game stops being playable.
	maxPlayersPerRoom = 8

	// botChallengeMaxDelayTicks spreads bot contests across the reaction
	// window instead of firing them on the first tick.
	botChallengeMaxDelayTicks = 2

	// botAutoFillTargetPlayers is how many seats auto-fill tops the table
	// up to when a lone human is waiting.
	botAutoFillTargetPlayers = 3
)

// matchLabel is the JSON match listing label used by quick-match queries.
type matchLabel struct {
	Open  bool   `json:"open"`
	Game  string `json:"game"`
	Phase string `json:"phase"`
}

// MatchState holds the per-match runtime state. Game state itself lives in
// the engine keyed by room id; the match only tracks connectivity and bots.
type MatchState struct {
	RoomID    string                      `json:"room_id"`
	Tick      int64                       `json:"tick"`
	Presences map[string]runtime.Presence `json:"-"`

	BotsEnabled      bool                  `json:"bots_enabled"`
	BotMinDelay      int                   `json:"bot_min_delay"`
	BotMaxDelay      int                   `json:"bot_max_delay"`
	BotAutoFillDelay int                   `json:"bot_auto_fill_delay"`
	Bots             map[string]*bot.Agent `json:"-"`
	BotWaitUntil     int64                 `json:"bot_wait_until"`
	SoloHumanSince   int64                 `json:"solo_human_since"`

	// Reaction-window bot bookkeeping: one roll per window, and a short
	// delay before the chosen bot actually contests.
	ReactionRolled bool   `json:"reaction_rolled"`
	BotChallenger  string `json:"bot_challenger"`
	BotChallengeAt int64  `json:"bot_challenge_at"`
}

func (ms *MatchState) humanPlayerCount(room *domain.Room) int {
	count := 0
	for _, p := range room.Players {
		if !bot.IsBot(p.ID) {
			count++
		}
	}
	return count
}

type matchHandler struct {
	svc      *app.Service
	registry *DispatcherRegistry
}

func newMatchHandler(svc *app.Service, registry *DispatcherRegistry) *matchHandler {
	return &matchHandler{svc: svc, registry: registry}
}

// MatchInit is called when the match is created. The match id doubles as
// the engine room id so the registry can route broadcasts.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	if err := bot.LoadIdentities("data/bot_identities.json"); err != nil {
		logger.Warn("MatchInit: Could not load bot identities: %v", err)
	}
	if err := config.LoadGameConfig("data/game_config.json"); err != nil {
		logger.Warn("MatchInit: Could not load game config: %v", err)
	}
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		if err := config.ApplyEnvOverrides(env); err != nil {
			logger.Warn("MatchInit: Could not apply env overrides: %v", err)
		}
	}

	roomID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)
	room := mh.svc.CreateRoom(roomID)

	cfg := config.GetGameConfig()
	state := &MatchState{
		RoomID:           room.ID,
		Presences:        make(map[string]runtime.Presence),
		Bots:             make(map[string]*bot.Agent),
		BotsEnabled:      cfg.BotsEnabled,
		BotMinDelay:      cfg.BotMinDelaySeconds,
		BotMaxDelay:      cfg.BotMaxDelaySeconds,
		BotAutoFillDelay: cfg.BotAutoFillDelaySeconds,
	}

	label := matchLabel{Open: true, Game: "bluffroyal", Phase: string(room.Phase)}
	labelBytes, err := json.Marshal(label)
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}

	tickRate := 1
	return state, tickRate, string(labelBytes)
}

// MatchJoinAttempt admits rejoining players any time, and new players only
// while the room is still gathering.
func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	room, err := mh.svc.Snapshot(matchState.RoomID)
	if err != nil {
		logger.Error("MatchJoinAttempt: %v", err)
		return state, false, "room not available"
	}

	if room.PlayerByID(presence.GetUserId()) != nil {
		return state, true, ""
	}
	if room.Phase != domain.PhaseWaitingForPlayers {
		return state, false, "game already started"
	}
	if len(room.Players) >= maxPlayersPerRoom {
		return state, false, "match full"
	}

	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	mh.registry.Register(matchState.RoomID, dispatcher)

	for _, p := range presences {
		matchState.Presences[p.GetUserId()] = p
		if _, err := mh.svc.EnsurePlayer(matchState.RoomID, p.GetUserId(), p.GetUsername()); err != nil {
			logger.Error("MatchJoin: Failed to seat %s: %v", p.GetUserId(), err)
			continue
		}
		if data, err := json.Marshal(map[string]string{"user_id": p.GetUserId()}); err == nil {
			if err := dispatcher.BroadcastMessage(OpPlayerJoined, data, nil, nil, true); err != nil {
				logger.Error("MatchJoin: Failed to broadcast join: %v", err)
			}
		}
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastRoomState(matchState, dispatcher, logger)

	return matchState
}

// MatchLeave only drops connectivity. The player stays seated in the engine
// so a dropped connection can rejoin mid-game with hand intact.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		delete(matchState.Presences, p.GetUserId())
		if data, err := json.Marshal(map[string]string{"user_id": p.GetUserId()}); err == nil {
			if err := dispatcher.BroadcastMessage(OpPlayerLeft, data, nil, nil, true); err != nil {
				logger.Error("MatchLeave: Failed to broadcast leave: %v", err)
			}
		}
	}

	if len(matchState.Presences) == 0 {
		logger.Info("MatchLeave: Last human disconnected, closing room %s.", matchState.RoomID)
		mh.svc.RemoveRoom(matchState.RoomID)
		mh.registry.Unregister(matchState.RoomID)
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastRoomState(matchState, dispatcher, logger)

	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick
	mh.registry.Register(matchState.RoomID, dispatcher)

	for _, msg := range messages {
		switch msg.GetOpCode() {
		case OpStartGame:
			mh.handleStartGame(matchState, dispatcher, logger, msg)
		case OpPlayCards:
			mh.handlePlayCards(matchState, dispatcher, logger, msg)
		case OpCallBluff:
			mh.handleCallBluff(matchState, dispatcher, logger, msg)
		case OpPassTurn:
			mh.handlePassTurn(matchState, dispatcher, logger, msg)
		default:
			logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		}
	}

	if matchState.BotsEnabled {
		mh.processBots(matchState, dispatcher, logger)
	}

	return matchState
}

func (mh *matchHandler) handleStartGame(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	_, events, err := mh.svc.StartGame(state.RoomID)
	if err != nil {
		logger.Warn("StartGame: User %s failed to start game: %v", senderID, err)
		mh.sendError(state, dispatcher, logger, senderID, err)
		return
	}

	mh.updateLabel(state, dispatcher, logger)
	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	mh.broadcastRoomState(state, dispatcher, logger)
}

func (mh *matchHandler) handlePlayCards(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	var request PlayCardsRequest
	if err := json.Unmarshal(msg.GetData(), &request); err != nil {
		logger.Warn("handlePlayCards: Invalid payload from %s: %v", senderID, err)
		mh.sendErrorCode(state, dispatcher, logger, senderID, errCodeInvalidPayload, "invalid play_cards payload")
		return
	}
	if len(request.Cards) == 0 {
		mh.sendErrorCode(state, dispatcher, logger, senderID, errCodeInvalidPayload, "at least one card is required")
		return
	}
	if request.Claim.Quantity <= 0 || request.Claim.Value < domain.MinCardValue || request.Claim.Value > domain.MaxCardValue {
		mh.sendErrorCode(state, dispatcher, logger, senderID, errCodeInvalidPayload, "claim out of range")
		return
	}

	cards := toDomainCards(request.Cards)
	claim := domain.Claim{Quantity: request.Claim.Quantity, Value: request.Claim.Value}

	_, events, err := mh.svc.PlayCards(state.RoomID, senderID, cards, claim)
	if err != nil {
		logger.Warn("handlePlayCards: User %s failed to play: %v", senderID, err)
		mh.sendError(state, dispatcher, logger, senderID, err)
		return
	}

	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	mh.broadcastRoomState(state, dispatcher, logger)
}

func (mh *matchHandler) handleCallBluff(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	_, events, err := mh.svc.CallBluff(state.RoomID, senderID)
	if err != nil {
		logger.Warn("handleCallBluff: User %s failed to contest: %v", senderID, err)
		mh.sendError(state, dispatcher, logger, senderID, err)
		return
	}

	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	mh.broadcastRoomState(state, dispatcher, logger)
}

func (mh *matchHandler) handlePassTurn(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	_, events, err := mh.svc.PassTurn(state.RoomID, senderID)
	if err != nil {
		logger.Warn("handlePassTurn: User %s failed to pass: %v", senderID, err)
		mh.sendError(state, dispatcher, logger, senderID, err)
		return
	}

	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	mh.broadcastRoomState(state, dispatcher, logger)
}

func (mh *matchHandler) processBots(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	room, err := mh.svc.Snapshot(state.RoomID)
	if err != nil {
		logger.Error("processBots: %v", err)
		return
	}

	switch room.Phase {
	case domain.PhaseWaitingForPlayers:
		mh.autoFillBots(state, room, dispatcher, logger)
	case domain.PhaseInGame:
		state.ReactionRolled = false
		state.BotChallenger = ""
		mh.playBotTurn(state, room, dispatcher, logger)
	case domain.PhaseReactionWindow:
		state.BotWaitUntil = 0
		mh.maybeContest(state, room, dispatcher, logger)
	}
}

// autoFillBots tops the table up with bots when exactly one human has been
// waiting alone for the configured delay.
func (mh *matchHandler) autoFillBots(state *MatchState, room *domain.Room, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if state.humanPlayerCount(room) != 1 || len(room.Players) >= botAutoFillTargetPlayers {
		state.SoloHumanSince = 0
		return
	}

	if state.SoloHumanSince == 0 {
		state.SoloHumanSince = state.Tick
		logger.Debug("autoFillBots: Single player detected, starting auto-fill timer.")
		return
	}
	if state.Tick-state.SoloHumanSince < int64(state.BotAutoFillDelay) {
		return
	}
	state.SoloHumanSince = 0

	cfg := config.GetGameConfig()
	added := false
	for i := 0; len(room.Players) < botAutoFillTargetPlayers && i < maxPlayersPerRoom; i++ {
		identity := bot.GetBotIdentity(i)
		if room.PlayerByID(identity.UserID) != nil {
			continue
		}

		agent, err := bot.NewAgent(identity.UserID, bot.Config{
			BluffChance:     cfg.BotBluffChance,
			ChallengeChance: cfg.BotChallengeChance,
		})
		if err != nil {
			logger.Error("autoFillBots: Failed to create agent for %s: %v", identity.UserID, err)
			continue
		}
		if _, err := mh.svc.EnsurePlayer(state.RoomID, identity.UserID, identity.Username); err != nil {
			logger.Error("autoFillBots: Failed to seat bot %s: %v", identity.UserID, err)
			continue
		}
		state.Bots[identity.UserID] = agent
		logger.Info("autoFillBots: Added bot %s (%s) to room %s", identity.Username, identity.UserID, state.RoomID)
		added = true

		updated, err := mh.svc.Snapshot(state.RoomID)
		if err != nil {
			break
		}
		room = updated
	}

	if added {
		mh.updateLabel(state, dispatcher, logger)
		mh.broadcastRoomState(state, dispatcher, logger)
	}
}

// playBotTurn acts for the bot holding the turn after a small random delay
// so moves do not land on the very next tick.
func (mh *matchHandler) playBotTurn(state *MatchState, room *domain.Room, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	botID := room.ActivePlayerID
	if !bot.IsBot(botID) {
		state.BotWaitUntil = 0
		return
	}

	if state.BotWaitUntil == 0 {
		delay := state.BotMinDelay
		if state.BotMaxDelay > state.BotMinDelay {
			delay += rand.Intn(state.BotMaxDelay - state.BotMinDelay + 1)
		}
		state.BotWaitUntil = state.Tick + int64(delay)
		return
	}
	if state.Tick < state.BotWaitUntil {
		return
	}
	state.BotWaitUntil = 0

	agent, exists := state.Bots[botID]
	if !exists {
		cfg := config.GetGameConfig()
		var err error
		agent, err = bot.NewAgent(botID, bot.Config{
			BluffChance:     cfg.BotBluffChance,
			ChallengeChance: cfg.BotChallengeChance,
		})
		if err != nil {
			logger.Error("playBotTurn: Failed to create fallback agent: %v", err)
			return
		}
		state.Bots[botID] = agent
	}

	move, err := agent.Act(room)
	if err != nil {
		logger.Error("playBotTurn: Bot %s failed to decide: %v", botID, err)
		return
	}

	var events []app.Event
	switch move.Kind {
	case bot.MoveKindPass:
		_, events, err = mh.svc.PassTurn(state.RoomID, botID)
	case bot.MoveKindPlay:
		_, events, err = mh.svc.PlayCards(state.RoomID, botID, move.Cards, move.Claim)
	}
	if err != nil {
		logger.Warn("playBotTurn: Bot %s move rejected: %v", botID, err)
		return
	}

	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	mh.broadcastRoomState(state, dispatcher, logger)
}

// maybeContest rolls each seated bot once per reaction window and lets at
// most one of them contest after a short delay. A contest that loses the
// race against the window timer surfaces as ErrNoActiveClaim and is
// silently dropped.
func (mh *matchHandler) maybeContest(state *MatchState, room *domain.Room, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if room.Pending == nil {
		return
	}

	if !state.ReactionRolled {
		state.ReactionRolled = true
		state.BotChallenger = ""
		for _, p := range room.Players {
			if p.ID == room.Pending.PlayerID {
				continue
			}
			agent, exists := state.Bots[p.ID]
			if !exists || !agent.WantsChallenge() {
				continue
			}
			state.BotChallenger = p.ID
			state.BotChallengeAt = state.Tick + int64(rand.Intn(botChallengeMaxDelayTicks+1))
			break
		}
		return
	}

	if state.BotChallenger == "" || state.Tick < state.BotChallengeAt {
		return
	}

	challenger := state.BotChallenger
	state.BotChallenger = ""

	_, events, err := mh.svc.CallBluff(state.RoomID, challenger)
	if err != nil {
		if !errors.Is(err, app.ErrNoActiveClaim) {
			logger.Warn("maybeContest: Bot %s contest rejected: %v", challenger, err)
		}
		return
	}

	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	mh.broadcastRoomState(state, dispatcher, logger)
}

// broadcastEvent converts an engine event to its wire payload and sends it,
// respecting targeted recipients. A targeted event whose recipients are all
// offline (bots included) is dropped rather than broadcast.
func (mh *matchHandler) broadcastEvent(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	var opCode int64
	var payload any

	switch ev.Kind {
	case app.EventGameStarted:
		p := ev.Payload.(app.GameStartedPayload)
		opCode = OpGameStarted
		payload = GameStartedEvent{
			FirstPlayerID:  p.FirstPlayerID,
			CardsPerPlayer: p.CardsPerPlayer,
		}
	case app.EventHandDealt:
		p := ev.Payload.(app.HandDealtPayload)
		opCode = OpHandDealt
		payload = HandDealtEvent{Hand: toWireCards(p.Hand)}
	case app.EventClaimMade:
		p := ev.Payload.(app.ClaimMadePayload)
		opCode = OpClaimMade
		payload = ClaimMadeEvent{
			PlayerID:  p.PlayerID,
			CardCount: p.CardCount,
			Claim:     toWireClaim(p.Claim),
		}
	case app.EventBluffResolved:
		p := ev.Payload.(app.BluffResolvedPayload)
		opCode = OpBluffResolved
		payload = BluffResolvedEvent{
			CallerID:     p.CallerID,
			ClaimantID:   p.ClaimantID,
			WasBluff:     p.WasBluff,
			Revealed:     toWireCards(p.Revealed),
			PileSize:     p.PileSize,
			NextPlayerID: p.NextPlayerID,
		}
	case app.EventTurnPassed:
		p := ev.Payload.(app.TurnPassedPayload)
		opCode = OpTurnPassed
		payload = TurnPassedEvent{
			PlayerID:     p.PlayerID,
			NextPlayerID: p.NextPlayerID,
			TrickEnded:   p.TrickEnded,
		}
	default:
		logger.Warn("Unknown event kind: %v", ev.Kind)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
		return
	}

	var recipients []runtime.Presence
	if len(ev.Recipients) > 0 {
		for _, uid := range ev.Recipients {
			if p, ok := state.Presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}
		if len(recipients) == 0 {
			return
		}
	}

	if err := dispatcher.BroadcastMessage(opCode, data, recipients, nil, true); err != nil {
		logger.Error("Failed to broadcast event %v: %v", ev.Kind, err)
	}
}

// broadcastRoomState sends the redacted snapshot to everyone.
func (mh *matchHandler) broadcastRoomState(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	room, err := mh.svc.Snapshot(state.RoomID)
	if err != nil {
		logger.Error("broadcastRoomState: %v", err)
		return
	}

	data, err := json.Marshal(toRoomSnapshot(room))
	if err != nil {
		logger.Error("broadcastRoomState: Failed to marshal snapshot: %v", err)
		return
	}
	if err := dispatcher.BroadcastMessage(OpRoomState, data, nil, nil, true); err != nil {
		logger.Error("broadcastRoomState: Failed to broadcast: %v", err)
	}
}

// sendError sends a GameErrorEvent derived from an engine error to one user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, err error) {
	mh.sendErrorCode(state, dispatcher, logger, userID, errorCode(err), err.Error())
}

func (mh *matchHandler) sendErrorCode(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, code int, message string) {
	data, err := json.Marshal(GameErrorEvent{Code: code, Message: message})
	if err != nil {
		logger.Error("Failed to marshal GameErrorEvent: %v", err)
		return
	}

	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}
	if err := dispatcher.BroadcastMessage(OpGameError, data, []runtime.Presence{presence}, nil, true); err != nil {
		logger.Error("Failed to send GameErrorEvent: %v", err)
	}
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	room, err := mh.svc.Snapshot(state.RoomID)
	if err != nil {
		logger.Error("updateLabel: %v", err)
		return
	}

	label := matchLabel{
		Open:  room.Phase == domain.PhaseWaitingForPlayers && len(room.Players) < maxPlayersPerRoom,
		Game:  "bluffroyal",
		Phase: string(room.Phase),
	}
	labelBytes, err := json.Marshal(label)
	if err != nil {
		logger.Error("updateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(string(labelBytes)); err != nil {
		logger.Error("updateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, reason int) interface{} {
	matchState, ok := state.(*MatchState)
	if ok {
		mh.svc.RemoveRoom(matchState.RoomID)
		mh.registry.Unregister(matchState.RoomID)
	}
	logger.Debug("MatchTerminate: Match terminated for reason %d", reason)
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
