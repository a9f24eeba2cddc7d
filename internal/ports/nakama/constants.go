package nakama

const (
	// RpcQuickMatch is the Nakama RPC id clients call to find or create an open room.
	RpcQuickMatch = "quick_match"

	// RpcInviteToken is the Nakama RPC id clients call to mint a room invite token.
	RpcInviteToken = "invite_token"

	// MatchNameBluffRoyal is the authoritative match handler name registered with Nakama.
	MatchNameBluffRoyal = "bluffroyal_match"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpStartGame int64 = 1
	OpPlayCards int64 = 2
	OpCallBluff int64 = 3
	OpPassTurn  int64 = 4

	// Server -> Client events
	OpPlayerJoined  int64 = 101
	OpPlayerLeft    int64 = 102
	OpGameStarted   int64 = 103
	OpHandDealt     int64 = 104 // send privately
	OpClaimMade     int64 = 105
	OpBluffResolved int64 = 106
	OpTurnPassed    int64 = 107
	OpRoomState     int64 = 108
	OpGameError     int64 = 400
)
