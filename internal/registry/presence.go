package registry

import (
	"fmt"
	"math/rand"
)

// ListenerTTLMs is how long a listener counts as present after their last
// join. Pruning is lazy: stale entries only fall out when the owning
// station or room is next touched.
const ListenerTTLMs = 30_000

// presenceMap tracks listener last-seen timestamps per station or room.
// It carries no lock of its own: the owning store's mutex guards it.
type presenceMap map[string]map[string]int64

// prune drops entries older than the TTL and returns the surviving count.
func (p presenceMap) prune(key string, nowMs int64) int {
	listeners := p[key]
	cutoff := nowMs - ListenerTTLMs
	for id, seen := range listeners {
		if seen < cutoff {
			delete(listeners, id)
		}
	}
	if len(listeners) == 0 {
		delete(p, key)
		return 0
	}
	return len(listeners)
}

// apply records a join or leave and returns the post-prune count.
func (p presenceMap) apply(key, listenerID, action string, nowMs int64) int {
	listeners := p[key]
	if listeners == nil {
		listeners = make(map[string]int64)
		p[key] = listeners
	}
	if action == "leave" {
		delete(listeners, listenerID)
	} else {
		listeners[listenerID] = nowMs
	}
	return p.prune(key, nowMs)
}

// newListenerID synthesizes an id for callers that did not bring one.
// The shape matches what existing clients already store locally.
func newListenerID(nowMs int64) string {
	return fmt.Sprintf("listener_%d_%d", nowMs/1000, 1000+rand.Intn(9000))
}
