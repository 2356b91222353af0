package api

import "github.com/prometheus/client_golang/prometheus"

// Metrics
var (
	stationUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "registry_station_updates_total", Help: "Station upserts"},
	)
	listenerEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "registry_listener_events_total", Help: "Listener joins/leaves"},
		[]string{"action"},
	)
	roomPresenceEvents = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "registry_room_presence_total", Help: "Room presence calls"},
	)
	sessionBegins = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "registry_session_begins_total", Help: "Broadcast session begin outcomes"},
		[]string{"mode", "outcome"},
	)
	sessionStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "registry_session_stops_total", Help: "Broadcast session stop outcomes"},
		[]string{"outcome"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "registry_active_sessions", Help: "Currently live broadcast sessions"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(stationUpdates, listenerEvents, roomPresenceEvents, sessionBegins, sessionStops, activeSessions)
}
