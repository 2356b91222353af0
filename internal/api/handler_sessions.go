package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"keegan-registry/internal/api/middleware"
	"keegan-registry/internal/registry"
)

type webBeginRequest struct {
	Mode     string                 `json:"mode"`
	ClientID string                 `json:"clientId"`
	Station  registry.StationUpdate `json:"station"`
}

// WebBegin starts a web broadcast session. Anonymous mode is open to
// everyone and pinned to the shared "anon" station; creator mode needs
// the registry key when one is configured.
func (s *Server) WebBegin(c *gin.Context) {
	var req webBeginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}

	mode := req.Mode
	stationID := req.Station.ID
	if stationID == "anon" || mode == "anon" {
		mode = "anon"
		stationID = "anon"
		setDefault(&req.Station.Name, "Anonymous Frequency")
		setDefault(&req.Station.Description, "Open mic drop (4 minutes).")
		setDefault(&req.Station.Region, s.cfg.Registry.DefaultRegion)
	} else {
		mode = "creator"
		if s.cfg.Registry.Key != "" && !middleware.Authorized(c, s.cfg.Registry.Key) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
	}

	clientID := firstOf(
		c.GetHeader("X-Client-Id"),
		req.ClientID,
		c.GetHeader("X-Session-Id"),
		c.ClientIP(),
	)

	var station registry.Station
	if mode == "creator" {
		station = s.stations.Upsert(req.Station)
		stationID = station.ID
	} else {
		update := req.Station
		update.ID = stationID
		live := "live"
		update.Status = &live
		station = s.stations.Upsert(update)
	}

	durationMs := s.cfg.Sessions.CreatorSessionMs
	if mode == "anon" {
		durationMs = s.cfg.Sessions.AnonSessionMs
	}
	metadata := &registry.StationUpdate{
		Name:        &station.Name,
		Description: &station.Description,
		CoverImage:  &station.CoverImage,
		Region:      &station.Region,
	}
	result, fail := s.sessions.Begin(stationID, mode, clientID, durationMs, metadata, false)
	if fail != nil {
		sessionBegins.WithLabelValues(mode, string(fail.Kind)).Inc()
		c.JSON(fail.Status, gin.H{"error": string(fail.Kind)})
		return
	}
	sessionBegins.WithLabelValues(mode, "ok").Inc()
	activeSessions.Set(float64(s.sessions.ActiveCount()))

	session := result.Session
	s.telemetry.Event("web_broadcast_start", map[string]any{
		"stationId": stationID,
		"mode":      mode,
		"sessionId": session.SessionID,
	})

	expiresAt := session.StartedAtMs
	if session.EndsAtMs != nil {
		expiresAt = *session.EndsAtMs
	}
	current, _ := s.stations.Get(stationID)
	c.JSON(http.StatusOK, gin.H{
		"stationId":   result.StationID,
		"sessionId":   session.SessionID,
		"token":       result.Token,
		"expiresAtMs": expiresAt,
		"ingest":      result.Ingest,
		"station":     current,
	})
}

// WebStop ends a session resolved from a token, session id or station id.
func (s *Server) WebStop(c *gin.Context) {
	var body struct {
		Token     string `json:"token"`
		StationID string `json:"stationId"`
		SessionID string `json:"sessionId"`
	}
	_ = c.ShouldBindJSON(&body)
	tok := firstOf(body.Token, c.GetHeader("X-Broadcast-Token"))

	session, fail := s.sessions.Stop(tok, body.StationID, body.SessionID)
	if fail != nil {
		sessionStops.WithLabelValues(string(fail.Kind)).Inc()
		c.JSON(fail.Status, gin.H{"error": string(fail.Kind)})
		return
	}
	sessionStops.WithLabelValues("ok").Inc()
	activeSessions.Set(float64(s.sessions.ActiveCount()))

	s.telemetry.Event("web_broadcast_stop", map[string]any{
		"stationId": session.StationID,
		"sessionId": session.SessionID,
	})
	c.JSON(http.StatusOK, gin.H{"ok": true, "sessionId": session.SessionID})
}

// GetStationStatus reports a station's broadcast state, folding in the
// active session when one exists.
func (s *Server) GetStationStatus(c *gin.Context) {
	stationID := c.Param("id")
	session := s.sessions.Status(stationID)
	station, ok := s.stations.Get(stationID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	payload := gin.H{
		"stationId":    stationID,
		"broadcasting": station.Broadcasting,
		"startedAtMs":  station.BroadcastStartedAtMs,
		"endsAtMs":     nil,
		"sessionId":    nil,
	}
	if session != nil {
		payload["startedAtMs"] = session.StartedAtMs
		payload["endsAtMs"] = session.EndsAtMs
		payload["sessionId"] = session.SessionID
	} else if station.BroadcastStartedAtMs == 0 {
		payload["startedAtMs"] = nil
	}
	c.JSON(http.StatusOK, payload)
}

func setDefault(field **string, value string) {
	if *field == nil || **field == "" {
		v := value
		*field = &v
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
