package registry

import (
	"encoding/hex"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"keegan-registry/internal/token"
)

// FailureKind names the admission/credential failures the session
// manager can signal. Routine absence is not a failure.
type FailureKind string

const (
	FailAlreadyLive  FailureKind = "already_live"
	FailCooldown     FailureKind = "cooldown"
	FailInvalidToken FailureKind = "invalid_token"
	FailNotFound     FailureKind = "not_found"
)

// Failure pairs a kind with the HTTP status the adapter should answer
// with.
type Failure struct {
	Kind   FailureKind
	Status int
}

func (f *Failure) Error() string {
	return string(f.Kind)
}

func failure(kind FailureKind) *Failure {
	switch kind {
	case FailAlreadyLive:
		return &Failure{Kind: kind, Status: http.StatusConflict}
	case FailCooldown:
		return &Failure{Kind: kind, Status: http.StatusTooManyRequests}
	case FailInvalidToken:
		return &Failure{Kind: kind, Status: http.StatusUnauthorized}
	default:
		return &Failure{Kind: FailNotFound, Status: http.StatusNotFound}
	}
}

// Session is a time-bounded grant of live status on a station.
// EndsAtMs nil means the session is bounded only by its token's expiry.
type Session struct {
	StationID   string `json:"stationId"`
	SessionID   string `json:"sessionId"`
	Mode        string `json:"mode"`
	ClientID    string `json:"clientId,omitempty"`
	StartedAtMs int64  `json:"startedAtMs"`
	EndsAtMs    *int64 `json:"endsAtMs"`
	Token       string `json:"token"`
}

// IngestEndpoints are the derived publish/playback URLs for a session.
type IngestEndpoints struct {
	RTMPURL   string `json:"rtmpUrl"`
	HLSURL    string `json:"hlsUrl"`
	WebRTCURL string `json:"webrtcUrl"`
}

// IngestBases configures where the derived endpoints point.
type IngestBases struct {
	RTMP   string
	HLS    string
	WebRTC string
}

// BeginResult is handed back to a successful begin caller.
type BeginResult struct {
	Session   *Session        `json:"session"`
	Ingest    IngestEndpoints `json:"ingest"`
	StationID string          `json:"stationId"`
	Token     string          `json:"token"`
}

// SessionManager owns broadcast sessions and anonymous cooldowns. It
// colocates admission control with credential issuance because both
// gate the same airtime and must be evaluated under one lock: a begin
// must never interleave with an expiry sweep of the same station.
// Stations are referenced by id through the injected store, never held
// directly.
type SessionManager struct {
	mu               sync.Mutex
	clock            Clock
	codec            *token.Codec
	stations         *StationStore
	bases            IngestBases
	anonCooldownMs   int64
	creatorSessionMs int64

	sessions        map[string]*Session
	stationSessions map[string]string
	cooldowns       map[string]int64
}

func NewSessionManager(clock Clock, codec *token.Codec, stations *StationStore, bases IngestBases, anonCooldownMs, creatorSessionMs int64) *SessionManager {
	return &SessionManager{
		clock:            clock,
		codec:            codec,
		stations:         stations,
		bases:            bases,
		anonCooldownMs:   anonCooldownMs,
		creatorSessionMs: creatorSessionMs,
		sessions:         make(map[string]*Session),
		stationSessions:  make(map[string]string),
		cooldowns:        make(map[string]int64),
	}
}

func (m *SessionManager) ingestEndpoints(tok string) IngestEndpoints {
	return IngestEndpoints{
		RTMPURL:   strings.TrimRight(m.bases.RTMP, "/") + "/" + tok,
		HLSURL:    strings.TrimRight(m.bases.HLS, "/") + "/" + tok + "/index.m3u8",
		WebRTCURL: strings.TrimRight(m.bases.WebRTC, "/") + "/" + tok,
	}
}

func (m *SessionManager) activeSession(stationID string) *Session {
	sessionID, ok := m.stationSessions[stationID]
	if !ok {
		return nil
	}
	return m.sessions[sessionID]
}

// sweepExpired evicts every session whose end time has passed. There is
// no timer: expiry is only ever observed here, on the next call.
func (m *SessionManager) sweepExpired() {
	now := NowMs(m.clock)
	var expired []string
	for id, sess := range m.sessions {
		if sess.EndsAtMs != nil && *sess.EndsAtMs <= now {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		m.endSessionLocked(id, "expired")
	}
}

func (m *SessionManager) endSessionLocked(sessionID, reason string) *Session {
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(m.sessions, sessionID)
	if m.stationSessions[sess.StationID] == sessionID {
		delete(m.stationSessions, sess.StationID)
	}
	if sess.Mode == "anon" && sess.ClientID != "" {
		m.cooldowns[sess.ClientID] = NowMs(m.clock)
	}
	m.stations.SetBroadcast(sess.StationID, false, "", "", "", &StationUpdate{StopReason: &reason})
	return sess
}

// Begin starts a broadcast session on a station. A zero durationMs
// leaves the session bounded only by token expiry.
func (m *SessionManager) Begin(stationID, mode, clientID string, durationMs int64, metadata *StationUpdate, allowReplace bool) (*BeginResult, *Failure) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepExpired()
	if existing := m.activeSession(stationID); existing != nil && !allowReplace {
		return nil, failure(FailAlreadyLive)
	}
	now := NowMs(m.clock)
	if mode == "anon" {
		if lastEnd, ok := m.cooldowns[clientID]; ok && now-lastEnd < m.anonCooldownMs {
			return nil, failure(FailCooldown)
		}
	}

	sessionID := newSessionID()
	var endsAt *int64
	exp := now + m.creatorSessionMs
	if durationMs > 0 {
		e := now + durationMs
		endsAt = &e
		exp = e
	}
	tok, err := m.codec.Issue(map[string]any{
		"stationId": stationID,
		"sessionId": sessionID,
		"mode":      mode,
		"exp":       exp,
	})
	if err != nil {
		// Payload is plain strings and numbers; Marshal cannot fail on it.
		return nil, failure(FailNotFound)
	}

	sess := &Session{
		StationID:   stationID,
		SessionID:   sessionID,
		Mode:        mode,
		ClientID:    clientID,
		StartedAtMs: now,
		EndsAtMs:    endsAt,
		Token:       tok,
	}
	m.sessions[sessionID] = sess
	m.stationSessions[stationID] = sessionID

	ingest := m.ingestEndpoints(tok)
	m.stations.SetBroadcast(stationID, true, ingest.HLSURL, sessionID, mode, metadata)
	return &BeginResult{
		Session:   sess,
		Ingest:    ingest,
		StationID: stationID,
		Token:     tok,
	}, nil
}

// Stop ends a session resolved from a token, an explicit session id, or
// a station's current active session, in that order of preference.
func (m *SessionManager) Stop(tok, stationID, sessionID string) (*Session, *Failure) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepExpired()
	if tok != "" {
		payload, ok := m.codec.Verify(tok)
		if !ok {
			return nil, failure(FailInvalidToken)
		}
		stationID, _ = payload["stationId"].(string)
		sessionID, _ = payload["sessionId"].(string)
	}
	resolved := sessionID
	if resolved == "" && stationID != "" {
		if active := m.activeSession(stationID); active != nil {
			resolved = active.SessionID
		}
	}
	if resolved == "" {
		return nil, failure(FailNotFound)
	}
	sess := m.endSessionLocked(resolved, "stopped")
	if sess == nil {
		return nil, failure(FailNotFound)
	}
	return sess, nil
}

// Status reports the station's active session after an expiry sweep, or
// nil when the station is idle.
func (m *SessionManager) Status(stationID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepExpired()
	sess := m.activeSession(stationID)
	if sess == nil {
		return nil
	}
	copy := *sess
	return &copy
}

// ActiveCount reports how many sessions are live right now.
func (m *SessionManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepExpired()
	return len(m.sessions)
}

func newSessionID() string {
	id := uuid.New()
	return "sess_" + hex.EncodeToString(id[:])[:12]
}
