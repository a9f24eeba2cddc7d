package ports

// Broadcaster is the capability the engine uses to tell the surrounding
// system that a room's state changed outside any player action, i.e. from
// reaction-timer expiry. The engine never sends network messages itself; the
// adapter owning the connections re-broadcasts the fresh state.
type Broadcaster interface {
	StateChanged(roomID string)
}

// NopBroadcaster discards notifications. Useful default for tests and for
// engines constructed before a transport adapter exists.
type NopBroadcaster struct{}

func (NopBroadcaster) StateChanged(string) {}
