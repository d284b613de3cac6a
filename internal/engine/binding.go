package engine

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/roomsync/roomsync/internal/wire"
)

// collectionNames is the priority-ordered list of conventional keys
// checked when locating the peer collection inside an arbitrary state
// object.
var collectionNames = []string{"players", "peers", "users", "entities", "objects"}

// CollectionAdapter is the explicit contract for handing the engine its
// peer collection. Applications that know their own schema implement it
// directly; BindState offers heuristic resolution on top for callers
// that don't.
type CollectionAdapter interface {
	PeerCollection() map[string]any
}

// StateBinding is the engine's fixed attachment to one peer collection
// for the lifetime of a session. The engine writes remote peers' entries
// and the application writes its own; by convention the two never touch
// the same peer id. Map-level access is still serialized internally so
// concurrent entry writes are safe.
type StateBinding struct {
	mu   sync.RWMutex
	coll map[string]any
	err  error
}

// Bind attaches to the collection an adapter exposes. A nil collection
// yields a disabled binding whose operations no-op and whose Err reports
// ErrNoPeerCollection.
func Bind(adapter CollectionAdapter) *StateBinding {
	coll := adapter.PeerCollection()
	if coll == nil {
		return &StateBinding{err: ErrNoPeerCollection}
	}
	return &StateBinding{coll: coll}
}

// BindCollection attaches directly to a peer-id-keyed map.
func BindCollection(coll map[string]any) *StateBinding {
	if coll == nil {
		return &StateBinding{err: ErrNoPeerCollection}
	}
	return &StateBinding{coll: coll}
}

// BindState locates the peer collection inside an arbitrary state object:
// first conventional key holding an object wins, then any object-valued
// key, else the binding is disabled. The engine never replaces the state
// object itself; resolution happens once and is fixed for the session.
func BindState(state map[string]any) *StateBinding {
	if state == nil {
		return &StateBinding{err: ErrNoPeerCollection}
	}
	for _, name := range collectionNames {
		if coll, ok := state[name].(map[string]any); ok {
			return &StateBinding{coll: coll}
		}
	}
	for key, val := range state {
		if coll, ok := val.(map[string]any); ok {
			log.Debug().Str("key", key).Msg("no conventional peer key, using first object-valued key")
			return &StateBinding{coll: coll}
		}
	}
	log.Warn().Msg("state has no object-valued key, sync disabled for this binding")
	return &StateBinding{err: ErrNoPeerCollection}
}

// Err reports ErrNoPeerCollection on a disabled binding, nil otherwise.
func (b *StateBinding) Err() error {
	return b.err
}

// Peer returns a copy of a peer's record, or nil when absent, the
// binding is disabled, or the entry is not a record. The copy is taken
// under the binding lock so callers can read it while the entry keeps
// changing; use MutatePeer to write.
func (b *StateBinding) Peer(id string) wire.Record {
	if b.err != nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.coll[id].(map[string]any)
	if !ok {
		return nil
	}
	return cloneRecord(rec)
}

// SetPeer replaces a peer's entry wholesale.
func (b *StateBinding) SetPeer(id string, rec wire.Record) {
	if b.err != nil {
		return
	}
	b.mu.Lock()
	b.coll[id] = map[string]any(rec)
	b.mu.Unlock()
}

// MutatePeer applies fn to a peer's record under the binding lock,
// creating the record if absent.
func (b *StateBinding) MutatePeer(id string, fn func(rec wire.Record)) {
	if b.err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.coll[id].(map[string]any)
	if !ok {
		rec = map[string]any{}
		b.coll[id] = rec
	}
	fn(rec)
}

// RemovePeer deletes a peer's entry.
func (b *StateBinding) RemovePeer(id string) {
	if b.err != nil {
		return
	}
	b.mu.Lock()
	delete(b.coll, id)
	b.mu.Unlock()
}

// PeerIDs returns the ids currently present in the collection.
func (b *StateBinding) PeerIDs() []string {
	if b.err != nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.coll))
	for id := range b.coll {
		ids = append(ids, id)
	}
	return ids
}

// ClearRemote removes every entry except the local peer's. Used when a
// session attaches to a new room so stale peers never leak across joins.
func (b *StateBinding) ClearRemote(localID string) {
	if b.err != nil {
		return
	}
	b.mu.Lock()
	for id := range b.coll {
		if id != localID {
			delete(b.coll, id)
		}
	}
	b.mu.Unlock()
}
