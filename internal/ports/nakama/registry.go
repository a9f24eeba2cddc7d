package nakama

import (
	"encoding/json"
	"sync"

	"bluffroyal/internal/app"

	"github.com/heroiclabs/nakama-common/runtime"
)

// DispatcherRegistry bridges the engine's broadcaster port to Nakama match
// dispatchers. Reaction-timer expiry happens on a timer goroutine with no
// dispatcher in hand, so each match registers its dispatcher here and the
// registry resolves room id -> dispatcher when the engine reports a change.
type DispatcherRegistry struct {
	mu          sync.RWMutex
	dispatchers map[string]runtime.MatchDispatcher
	svc         *app.Service
	logger      runtime.Logger
}

func NewDispatcherRegistry(logger runtime.Logger) *DispatcherRegistry {
	return &DispatcherRegistry{
		dispatchers: make(map[string]runtime.MatchDispatcher),
		logger:      logger,
	}
}

// Bind attaches the engine after construction. The registry is created
// first because the engine takes its broadcaster at construction time.
func (r *DispatcherRegistry) Bind(svc *app.Service) {
	r.mu.Lock()
	r.svc = svc
	r.mu.Unlock()
}

// Register remembers the dispatcher serving a room. Idempotent; match
// callbacks call it on every invocation since MatchInit has no dispatcher.
func (r *DispatcherRegistry) Register(roomID string, dispatcher runtime.MatchDispatcher) {
	r.mu.Lock()
	r.dispatchers[roomID] = dispatcher
	r.mu.Unlock()
}

// Unregister drops a room's dispatcher when its match terminates.
func (r *DispatcherRegistry) Unregister(roomID string) {
	r.mu.Lock()
	delete(r.dispatchers, roomID)
	r.mu.Unlock()
}

// StateChanged re-broadcasts the room snapshot. Called by the engine when
// state changed outside a client action, i.e. when a reaction window ran
// out with nobody contesting.
func (r *DispatcherRegistry) StateChanged(roomID string) {
	r.mu.RLock()
	dispatcher := r.dispatchers[roomID]
	svc := r.svc
	r.mu.RUnlock()
	if dispatcher == nil || svc == nil {
		return
	}

	room, err := svc.Snapshot(roomID)
	if err != nil {
		r.logger.Warn("StateChanged: snapshot failed for room %s: %v", roomID, err)
		return
	}

	data, err := json.Marshal(toRoomSnapshot(room))
	if err != nil {
		r.logger.Error("StateChanged: marshal snapshot failed for room %s: %v", roomID, err)
		return
	}
	if err := dispatcher.BroadcastMessage(OpRoomState, data, nil, nil, true); err != nil {
		r.logger.Error("StateChanged: broadcast failed for room %s: %v", roomID, err)
	}
}
