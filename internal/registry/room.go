package registry

import (
	"log"
	"sort"
	"sync"
)

// Room is an ephemeral presence group keyed by an opaque composite id
// (typically region|app|tone|date) with a pseudo-frequency on the dial.
type Room struct {
	RoomID    string  `json:"roomId"`
	Region    string  `json:"region,omitempty"`
	AppKey    string  `json:"appKey,omitempty"`
	ToneID    string  `json:"toneId,omitempty"`
	Frequency float64 `json:"frequency,omitempty"`
	LastSeen  int64   `json:"lastSeen"`

	// ListenerCount is set on enriched copies only.
	ListenerCount int `json:"listenerCount,omitempty"`
}

// PresencePayload is what a client reports when joining or leaving a
// room. Empty fields fall back to the stored room, then to defaults.
type PresencePayload struct {
	Region     string `json:"region,omitempty"`
	AppKey     string `json:"appKey,omitempty"`
	ToneID     string `json:"toneId,omitempty"`
	ListenerID string `json:"listenerId,omitempty"`
	Action     string `json:"action,omitempty"`
}

// PresenceResult is returned to the joining/leaving client.
type PresenceResult struct {
	RoomID        string `json:"roomId"`
	ListenerID    string `json:"listenerId"`
	ListenerCount int    `json:"listenerCount"`
	LastSeen      int64  `json:"lastSeen"`
}

// RoomStore mirrors StationStore for rooms: coarse lock, write-through
// JSON persistence, lazy listener pruning. Rooms have no broadcast state.
type RoomStore struct {
	mu            sync.Mutex
	path          string
	clock         Clock
	defaultRegion string
	rooms         map[string]*Room
	listeners     presenceMap
}

func NewRoomStore(path string, clock Clock, defaultRegion string) *RoomStore {
	s := &RoomStore{
		path:          path,
		clock:         clock,
		defaultRegion: defaultRegion,
		rooms:         make(map[string]*Room),
		listeners:     make(presenceMap),
	}
	var doc struct {
		Rooms []*Room `json:"rooms"`
	}
	if err := loadJSON(path, &doc); err != nil {
		log.Printf("⚠️  room store: could not load %s, starting empty: %v", path, err)
	}
	for _, r := range doc.Rooms {
		if r.RoomID != "" {
			s.rooms[r.RoomID] = r
		}
	}
	return s
}

func (s *RoomStore) save() {
	doc := struct {
		Rooms []*Room `json:"rooms"`
	}{Rooms: make([]*Room, 0, len(s.rooms))}
	for _, r := range s.rooms {
		doc.Rooms = append(doc.Rooms, r)
	}
	if err := saveJSON(s.path, doc); err != nil {
		log.Printf("⚠️  room store: persist failed: %v", err)
	}
}

func (s *RoomStore) enrich(r *Room) Room {
	copy := *r
	copy.ListenerCount = s.listeners.prune(r.RoomID, NowMs(s.clock))
	return copy
}

// usedFrequencies maps each assigned dial slot to its holder.
func (s *RoomStore) usedFrequencies() map[float64]string {
	used := make(map[float64]string, len(s.rooms))
	for _, r := range s.rooms {
		if r.Frequency > 0 {
			used[roundFreq(r.Frequency)] = r.RoomID
		}
	}
	return used
}

// List returns rooms filtered by any of region/appKey/toneId, most
// recently seen first.
func (s *RoomStore) List(region, appKey, toneID string) []Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		if region != "" && r.Region != region {
			continue
		}
		if appKey != "" && r.AppKey != appKey {
			continue
		}
		if toneID != "" && r.ToneID != toneID {
			continue
		}
		items = append(items, s.enrich(r))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].LastSeen > items[j].LastSeen
	})
	return items
}

func (s *RoomStore) Get(roomID string) (Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return s.enrich(r), true
}

// Presence creates or refreshes a room and records the caller's join or
// leave. The frequency is assigned on first contact and then never
// reassigned.
func (s *RoomStore) Presence(roomID string, payload PresencePayload) (PresenceResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if roomID == "" {
		return PresenceResult{}, false
	}
	now := NowMs(s.clock)
	r, ok := s.rooms[roomID]
	if !ok {
		r = &Room{RoomID: roomID}
		s.rooms[roomID] = r
	}
	r.Region = firstNonEmpty(payload.Region, r.Region, s.defaultRegion)
	r.AppKey = firstNonEmpty(payload.AppKey, r.AppKey, "unknown")
	r.ToneID = firstNonEmpty(payload.ToneID, r.ToneID, "default")
	if r.Frequency == 0 {
		r.Frequency = AssignFrequency(roomID, s.usedFrequencies())
	}
	r.LastSeen = now
	s.save()

	listenerID := payload.ListenerID
	if listenerID == "" {
		listenerID = newListenerID(now)
	}
	action := payload.Action
	if action == "" {
		action = "join"
	}
	count := s.listeners.apply(roomID, listenerID, action, now)
	return PresenceResult{
		RoomID:        roomID,
		ListenerID:    listenerID,
		ListenerCount: count,
		LastSeen:      r.LastSeen,
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
