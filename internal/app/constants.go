package app

import "time"

// MinPlayersToStartGame defines the minimum number of players required to
// start a round. Keep this centralized so tests or local runs can adjust the
// rule without touching multiple call sites.
const MinPlayersToStartGame = 2

// DefaultReactionWindow is how long opponents have to contest a claim before
// it is treated as truth. Fixed per process; never configurable per call.
const DefaultReactionWindow = 3 * time.Second
