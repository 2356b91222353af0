package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"keegan-registry/internal/config"
	"keegan-registry/internal/registry"
	"keegan-registry/internal/telemetry"
	"keegan-registry/internal/token"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time {
	return c.t
}

func newTestServer(t *testing.T, registryKey string) (*Server, *testClock) {
	t.Helper()
	clock := &testClock{t: time.UnixMilli(1_700_000_000_000)}

	cfg := &config.Config{}
	cfg.Server.Version = "0.3.0"
	cfg.Server.StaticDir = t.TempDir()
	cfg.Registry.DataDir = t.TempDir()
	cfg.Registry.DefaultRegion = "us-midwest"
	cfg.Registry.Key = registryKey
	cfg.Registry.Telemetry = true
	cfg.Sessions.AnonSessionMs = 4 * 60 * 1000
	cfg.Sessions.AnonCooldownMs = 10 * 60 * 1000
	cfg.Sessions.CreatorSessionMs = 12 * 60 * 60 * 1000
	cfg.Ingest.RTMPBase = "rtmp://localhost/live"
	cfg.Ingest.HLSBase = "http://localhost:8888/live"
	cfg.Ingest.WebRTCBase = "http://localhost:8889/live"
	cfg.CORS.AllowedOrigins = "*"

	stations := registry.NewStationStore(filepath.Join(cfg.Registry.DataDir, "stations.json"), clock, cfg.Registry.DefaultRegion)
	rooms := registry.NewRoomStore(filepath.Join(cfg.Registry.DataDir, "rooms.json"), clock, cfg.Registry.DefaultRegion)
	codec := token.NewCodec("test-secret", clock.Now)
	sessions := registry.NewSessionManager(clock, codec, stations, registry.IngestBases{
		RTMP:   cfg.Ingest.RTMPBase,
		HLS:    cfg.Ingest.HLSBase,
		WebRTC: cfg.Ingest.WebRTCBase,
	}, cfg.Sessions.AnonCooldownMs, cfg.Sessions.CreatorSessionMs)
	tel := telemetry.NewWriter(cfg.Registry.DataDir, cfg.Registry.Telemetry, clock.Now)

	return New(cfg, clock, stations, rooms, sessions, tel), clock
}

func doJSON(t *testing.T, s *Server, method, path string, payload any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("bad response body %q: %v", w.Body.String(), err)
		}
	}
	return w.Code, decoded
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, "")
	status, payload := doJSON(t, s, "GET", "/health", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if payload["ok"] != true || payload["version"] != "0.3.0" {
		t.Errorf("payload = %v", payload)
	}
}

func TestSeed(t *testing.T) {
	s, _ := newTestServer(t, "")
	status, payload := doJSON(t, s, "GET", "/api/seed", nil, nil)
	if status != http.StatusOK || payload["seed"] == "" || payload["tz"] != "UTC" {
		t.Errorf("status=%d payload=%v", status, payload)
	}
}

func TestStationUpsertAndList(t *testing.T) {
	s, _ := newTestServer(t, "")

	status, payload := doJSON(t, s, "POST", "/api/stations", map[string]any{
		"name":      "Test Station",
		"region":    "us-midwest",
		"frequency": 98.7,
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("upsert status = %d", status)
	}
	stationID, _ := payload["id"].(string)
	if stationID == "" {
		t.Fatal("no station id returned")
	}

	status, payload = doJSON(t, s, "GET", "/api/stations?region=us-midwest", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	stationList, _ := payload["stations"].([]any)
	if len(stationList) != 1 {
		t.Errorf("stations = %v", payload["stations"])
	}

	status, payload = doJSON(t, s, "GET", "/api/stations/"+stationID, nil, nil)
	if status != http.StatusOK || payload["name"] != "Test Station" {
		t.Errorf("get: status=%d payload=%v", status, payload)
	}
}

func TestStationNotFound(t *testing.T) {
	s, _ := newTestServer(t, "")
	status, payload := doJSON(t, s, "GET", "/api/stations/ghost", nil, nil)
	if status != http.StatusNotFound || payload["error"] != "not_found" {
		t.Errorf("status=%d payload=%v", status, payload)
	}
}

func TestRegistryKeyGuardsMutations(t *testing.T) {
	s, _ := newTestServer(t, "sekrit")

	status, _ := doJSON(t, s, "POST", "/api/stations", map[string]any{"name": "X"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated upsert status = %d", status)
	}

	status, _ = doJSON(t, s, "POST", "/api/stations", map[string]any{"name": "X"},
		map[string]string{"X-Api-Key": "sekrit"})
	if status != http.StatusOK {
		t.Errorf("X-Api-Key upsert status = %d", status)
	}

	status, _ = doJSON(t, s, "POST", "/api/stations", map[string]any{"name": "Y"},
		map[string]string{"Authorization": "Bearer sekrit"})
	if status != http.StatusOK {
		t.Errorf("bearer upsert status = %d", status)
	}

	// Reads stay open.
	status, _ = doJSON(t, s, "GET", "/api/stations", nil, nil)
	if status != http.StatusOK {
		t.Errorf("list status = %d", status)
	}
}

func TestRoomPresenceAndList(t *testing.T) {
	s, _ := newTestServer(t, "")
	roomID := "us-midwest|code|focus_room|2026-02-01"

	status, payload := doJSON(t, s, "POST", "/api/rooms/"+roomID+"/presence", map[string]any{
		"listenerId": "listener_test",
		"action":     "join",
		"region":     "us-midwest",
		"appKey":     "code",
		"toneId":     "focus_room",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("presence status = %d", status)
	}
	if payload["roomId"] != roomID {
		t.Errorf("roomId = %v", payload["roomId"])
	}
	if payload["listenerCount"] != float64(1) {
		t.Errorf("listenerCount = %v", payload["listenerCount"])
	}

	status, payload = doJSON(t, s, "GET", "/api/rooms?region=us-midwest", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	roomList, _ := payload["rooms"].([]any)
	found := false
	for _, item := range roomList {
		if room, ok := item.(map[string]any); ok && room["roomId"] == roomID {
			found = true
			if room["frequency"] == nil {
				t.Error("room has no frequency")
			}
		}
	}
	if !found {
		t.Errorf("room missing from list: %v", payload["rooms"])
	}
}

func TestWebBeginStopFlow(t *testing.T) {
	s, _ := newTestServer(t, "")

	status, payload := doJSON(t, s, "POST", "/api/stations/web/begin", map[string]any{
		"mode": "anon",
	}, map[string]string{"X-Client-Id": "client-A"})
	if status != http.StatusOK {
		t.Fatalf("begin status = %d payload=%v", status, payload)
	}
	if payload["stationId"] != "anon" {
		t.Errorf("stationId = %v", payload["stationId"])
	}
	tok, _ := payload["token"].(string)
	if tok == "" {
		t.Fatal("no token returned")
	}
	ingest, _ := payload["ingest"].(map[string]any)
	if ingest["hlsUrl"] == "" || ingest["rtmpUrl"] == "" {
		t.Errorf("ingest = %v", ingest)
	}
	station, _ := payload["station"].(map[string]any)
	if station["broadcasting"] != true {
		t.Errorf("station not broadcasting: %v", station)
	}

	// A second anonymous broadcaster collides with the live session.
	status, payload = doJSON(t, s, "POST", "/api/stations/web/begin", map[string]any{
		"mode": "anon",
	}, map[string]string{"X-Client-Id": "client-B"})
	if status != http.StatusConflict || payload["error"] != "already_live" {
		t.Errorf("conflict: status=%d payload=%v", status, payload)
	}

	// Status reflects the live session.
	status, payload = doJSON(t, s, "GET", "/api/stations/anon/status", nil, nil)
	if status != http.StatusOK || payload["broadcasting"] != true {
		t.Errorf("status: %d %v", status, payload)
	}
	if payload["sessionId"] == nil {
		t.Error("status has no sessionId")
	}

	// Stop with the issued token.
	status, payload = doJSON(t, s, "POST", "/api/stations/web/stop", map[string]any{
		"token": tok,
	}, nil)
	if status != http.StatusOK || payload["ok"] != true {
		t.Fatalf("stop: status=%d payload=%v", status, payload)
	}

	status, payload = doJSON(t, s, "GET", "/api/stations/anon/status", nil, nil)
	if status != http.StatusOK || payload["broadcasting"] != false {
		t.Errorf("post-stop status: %d %v", status, payload)
	}
}

func TestWebStopInvalidToken(t *testing.T) {
	s, _ := newTestServer(t, "")
	status, payload := doJSON(t, s, "POST", "/api/stations/web/stop", map[string]any{
		"token": "forged.token",
	}, nil)
	if status != http.StatusUnauthorized || payload["error"] != "invalid_token" {
		t.Errorf("status=%d payload=%v", status, payload)
	}
}

func TestWebBeginCreatorRequiresKey(t *testing.T) {
	s, _ := newTestServer(t, "sekrit")

	status, _ := doJSON(t, s, "POST", "/api/stations/web/begin", map[string]any{
		"mode":    "creator",
		"station": map[string]any{"name": "My Show"},
	}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated creator begin status = %d", status)
	}

	// Anonymous mode stays open even with a key configured.
	status, _ = doJSON(t, s, "POST", "/api/stations/web/begin", map[string]any{
		"mode": "anon",
	}, map[string]string{"X-Client-Id": "client-A"})
	if status != http.StatusOK {
		t.Errorf("anon begin status = %d", status)
	}
}

func TestTelemetryEndpoint(t *testing.T) {
	s, _ := newTestServer(t, "")
	status, payload := doJSON(t, s, "POST", "/api/telemetry", map[string]any{
		"event":  "test_event",
		"source": "test",
	}, nil)
	if status != http.StatusOK || payload["ok"] != true {
		t.Fatalf("status=%d payload=%v", status, payload)
	}
	if payload["stored"] != true {
		t.Errorf("event not stored: %v", payload)
	}
}

func TestStoryEndpoint(t *testing.T) {
	s, _ := newTestServer(t, "")
	status, payload := doJSON(t, s, "GET", "/api/story?mood=rain", nil, nil)
	if status != http.StatusOK || payload["mood"] != "rain" || payload["story"] == "" {
		t.Errorf("status=%d payload=%v", status, payload)
	}
}

func TestOriginAllowed(t *testing.T) {
	s, _ := newTestServer(t, "")
	s.origins = []string{"https://keegan.app", "*.vercel.app", "https://*.preview.net"}

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"Exact Match", "https://keegan.app", true},
		{"Wildcard Subdomain", "https://demo.vercel.app", true},
		{"Wildcard With Scheme", "https://pr-42.preview.net", true},
		{"Wrong Host", "https://evil.example.com", false},
		{"Empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.originAllowed(tt.origin); got != tt.want {
				t.Errorf("originAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
