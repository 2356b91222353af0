package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"keegan-registry/internal/registry"
)

// ListStations returns the station registry, optionally filtered.
// Query Params: region (optional), active=1 (lastSeen within 5 minutes)
func (s *Server) ListStations(c *gin.Context) {
	region := c.Query("region")
	activeOnly := c.Query("active") == "1"
	stations := s.stations.List(region, activeOnly)
	c.JSON(http.StatusOK, gin.H{"stations": stations})
}

// UpsertStation creates or merges a station record.
func (s *Server) UpsertStation(c *gin.Context) {
	var update registry.StationUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	station := s.stations.Upsert(update)
	stationUpdates.Inc()
	s.telemetry.Event("station_update", map[string]any{
		"stationId":    station.ID,
		"region":       station.Region,
		"status":       station.Status,
		"broadcasting": station.Broadcasting,
	})
	c.JSON(http.StatusOK, station)
}

func (s *Server) GetStation(c *gin.Context) {
	station, ok := s.stations.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, station)
}

// Heartbeat bumps a station's liveness. Unknown stations 404 rather
// than being created.
func (s *Server) Heartbeat(c *gin.Context) {
	station, ok := s.stations.Heartbeat(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, station)
}

// Listen records a listener join/leave against a station.
func (s *Server) Listen(c *gin.Context) {
	stationID := c.Param("id")
	var body struct {
		ListenerID string `json:"listenerId"`
		Action     string `json:"action"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.Action == "" {
		body.Action = "join"
	}
	result, ok := s.stations.Listen(stationID, body.ListenerID, body.Action)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	listenerEvents.WithLabelValues(body.Action).Inc()
	if body.Action == "join" || body.Action == "leave" {
		s.telemetry.Event("listener_"+body.Action, map[string]any{
			"stationId":  stationID,
			"listenerId": result.ListenerID,
		})
	}
	c.JSON(http.StatusOK, result)
}

// ListRooms returns rooms filtered by region/appKey/toneId.
func (s *Server) ListRooms(c *gin.Context) {
	rooms := s.rooms.List(c.Query("region"), c.Query("appKey"), c.Query("toneId"))
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (s *Server) GetRoom(c *gin.Context) {
	room, ok := s.rooms.Get(c.Param("roomId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, room)
}

// RoomPresence creates/refreshes a room and records the caller's
// join or leave.
func (s *Server) RoomPresence(c *gin.Context) {
	roomID := c.Param("roomId")
	var payload registry.PresencePayload
	_ = c.ShouldBindJSON(&payload)
	result, ok := s.rooms.Presence(roomID, payload)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	action := payload.Action
	if action == "" {
		action = "join"
	}
	roomPresenceEvents.Inc()
	s.telemetry.Event("room_presence", map[string]any{
		"roomId":     roomID,
		"region":     payload.Region,
		"appKey":     payload.AppKey,
		"toneId":     payload.ToneID,
		"action":     action,
		"listenerId": result.ListenerID,
	})
	c.JSON(http.StatusOK, result)
}
