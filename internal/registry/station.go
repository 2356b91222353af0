package registry

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
)

// ActiveWindowMs is the lastSeen horizon for the active-only station
// filter.
const ActiveWindowMs = 5 * 60 * 1000

// Station is a persistent named broadcast channel. All timestamps are
// epoch milliseconds.
type Station struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name,omitempty"`
	Description          string  `json:"description,omitempty"`
	CoverImage           string  `json:"coverImage,omitempty"`
	Region               string  `json:"region,omitempty"`
	Status               string  `json:"status,omitempty"`
	Frequency            float64 `json:"frequency,omitempty"`
	StreamURL            string  `json:"streamUrl,omitempty"`
	Broadcasting         bool    `json:"broadcasting"`
	BroadcastSessionID   string  `json:"broadcastSessionId,omitempty"`
	BroadcastMode        string  `json:"broadcastMode,omitempty"`
	BroadcastStopReason  string  `json:"broadcastStopReason,omitempty"`
	BroadcastStartedAtMs int64   `json:"broadcastStartedAtMs,omitempty"`
	BroadcastEndedAtMs   int64   `json:"broadcastEndedAtMs,omitempty"`
	CreatedAt            int64   `json:"createdAt"`
	UpdatedAt            int64   `json:"updatedAt"`
	LastSeen             int64   `json:"lastSeen"`

	// ListenerCount is set on enriched copies returned to callers; the
	// stored record keeps it zero.
	ListenerCount int `json:"listenerCount,omitempty"`
}

// StationUpdate is a partial station write. Nil fields keep whatever the
// stored record already has; set fields win. Callers resend fields they
// want to keep, this is last-write-wins rather than a patch protocol.
type StationUpdate struct {
	ID          string   `json:"id,omitempty"`
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	CoverImage  *string  `json:"coverImage,omitempty"`
	Region      *string  `json:"region,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Frequency   *float64 `json:"frequency,omitempty"`
	StreamURL   *string  `json:"streamUrl,omitempty"`
	StopReason  *string  `json:"broadcastStopReason,omitempty"`
}

// ListenResult reports the outcome of a join/leave.
type ListenResult struct {
	ListenerID    string `json:"listenerId"`
	ListenerCount int    `json:"listenerCount"`
}

// StationStore is the authoritative registry of stations and their
// listener presence. One mutex guards the whole structure so the
// write-through persistence stays atomic relative to reads.
type StationStore struct {
	mu            sync.Mutex
	path          string
	clock         Clock
	defaultRegion string
	stations      map[string]*Station
	listeners     presenceMap
}

func NewStationStore(path string, clock Clock, defaultRegion string) *StationStore {
	s := &StationStore{
		path:          path,
		clock:         clock,
		defaultRegion: defaultRegion,
		stations:      make(map[string]*Station),
		listeners:     make(presenceMap),
	}
	var doc struct {
		Stations []*Station `json:"stations"`
	}
	if err := loadJSON(path, &doc); err != nil {
		log.Printf("⚠️  station store: could not load %s, starting empty: %v", path, err)
	}
	for _, st := range doc.Stations {
		if st.ID != "" {
			s.stations[st.ID] = st
		}
	}
	return s
}

func (s *StationStore) save() {
	doc := struct {
		Stations []*Station `json:"stations"`
	}{Stations: make([]*Station, 0, len(s.stations))}
	for _, st := range s.stations {
		doc.Stations = append(doc.Stations, st)
	}
	if err := saveJSON(s.path, doc); err != nil {
		log.Printf("⚠️  station store: persist failed: %v", err)
	}
}

// enrich returns a copy carrying the post-prune listener count.
func (s *StationStore) enrich(st *Station) Station {
	copy := *st
	copy.ListenerCount = s.listeners.prune(st.ID, NowMs(s.clock))
	return copy
}

// List returns stations, optionally filtered by region and recent
// activity, newest update first.
func (s *StationStore) List(region string, activeOnly bool) []Station {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := NowMs(s.clock) - ActiveWindowMs
	items := make([]Station, 0, len(s.stations))
	for _, st := range s.stations {
		if region != "" && st.Region != region {
			continue
		}
		if activeOnly && st.LastSeen < cutoff {
			continue
		}
		items = append(items, s.enrich(st))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].UpdatedAt > items[j].UpdatedAt
	})
	return items
}

func (s *StationStore) Get(id string) (Station, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stations[id]
	if !ok {
		return Station{}, false
	}
	return s.enrich(st), true
}

// Upsert merges a partial update over any existing record. CreatedAt is
// immutable after first creation; updatedAt/lastSeen always advance.
func (s *StationStore) Upsert(update StationUpdate) Station {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := NowMs(s.clock)
	id := update.ID
	if id == "" {
		id = fmt.Sprintf("st_%d_%d", now/1000, 1000+rand.Intn(9000))
	}

	st, ok := s.stations[id]
	if !ok {
		st = &Station{ID: id, CreatedAt: now}
		s.stations[id] = st
	}
	applyUpdate(st, update)
	st.ID = id
	st.UpdatedAt = now
	st.LastSeen = now
	if st.Region == "" {
		st.Region = s.defaultRegion
	}
	if st.Status == "" {
		st.Status = "live"
	}
	s.save()
	return s.enrich(st)
}

func applyUpdate(st *Station, update StationUpdate) {
	if update.Name != nil {
		st.Name = *update.Name
	}
	if update.Description != nil {
		st.Description = *update.Description
	}
	if update.CoverImage != nil {
		st.CoverImage = *update.CoverImage
	}
	if update.Region != nil {
		st.Region = *update.Region
	}
	if update.Status != nil {
		st.Status = *update.Status
	}
	if update.Frequency != nil {
		st.Frequency = *update.Frequency
	}
	if update.StreamURL != nil {
		st.StreamURL = *update.StreamURL
	}
	if update.StopReason != nil {
		st.BroadcastStopReason = *update.StopReason
	}
}

// Heartbeat bumps liveness timestamps. Unknown stations are not created.
func (s *StationStore) Heartbeat(id string) (Station, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stations[id]
	if !ok {
		return Station{}, false
	}
	now := NowMs(s.clock)
	st.LastSeen = now
	st.UpdatedAt = now
	if st.Status == "" {
		st.Status = "live"
	}
	s.save()
	return s.enrich(st), true
}

// Listen records a listener join or leave against an existing station.
func (s *StationStore) Listen(id, listenerID, action string) (ListenResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stations[id]; !ok {
		return ListenResult{}, false
	}
	now := NowMs(s.clock)
	if listenerID == "" {
		listenerID = newListenerID(now)
	}
	count := s.listeners.apply(id, listenerID, action, now)
	return ListenResult{ListenerID: listenerID, ListenerCount: count}, true
}

// SetBroadcast flips a station's live state. The station is created if
// missing so a session can light up a station nobody upserted first.
func (s *StationStore) SetBroadcast(id string, broadcasting bool, streamURL, sessionID, mode string, metadata *StationUpdate) Station {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := NowMs(s.clock)
	st, ok := s.stations[id]
	if !ok {
		st = &Station{ID: id, CreatedAt: now}
		s.stations[id] = st
	}
	if metadata != nil {
		applyUpdate(st, *metadata)
	}
	st.Broadcasting = broadcasting
	st.UpdatedAt = now
	st.LastSeen = now
	if broadcasting {
		st.Status = "live"
		if streamURL != "" {
			st.StreamURL = streamURL
		}
		if sessionID != "" {
			st.BroadcastSessionID = sessionID
		}
		if mode != "" {
			st.BroadcastMode = mode
		}
		st.BroadcastStartedAtMs = now
	} else {
		st.Status = "idle"
		st.BroadcastSessionID = ""
		st.BroadcastMode = ""
		st.BroadcastEndedAtMs = now
	}
	s.save()
	return s.enrich(st)
}
