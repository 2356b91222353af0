package api

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"keegan-registry/internal/api/middleware"
	"keegan-registry/internal/config"
	"keegan-registry/internal/registry"
	"keegan-registry/internal/telemetry"
)

type Server struct {
	cfg       *config.Config
	clock     registry.Clock
	stations  *registry.StationStore
	rooms     *registry.RoomStore
	sessions  *registry.SessionManager
	telemetry *telemetry.Writer
	origins   []string
	router    *gin.Engine
}

func New(cfg *config.Config, clock registry.Clock, stations *registry.StationStore, rooms *registry.RoomStore, sessions *registry.SessionManager, tel *telemetry.Writer) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:       cfg,
		clock:     clock,
		stations:  stations,
		rooms:     rooms,
		sessions:  sessions,
		telemetry: tel,
		origins:   cfg.AllowedOrigins(),
		router:    gin.Default(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "X-Api-Key", "X-Client-Id", "X-Session-Id", "X-Broadcast-Token"}
	if len(s.origins) == 1 && s.origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOriginFunc = s.originAllowed
	}
	s.router.Use(cors.New(corsConfig))
}

// originAllowed matches an Origin header against the configured list,
// including *.domain wildcard patterns.
func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	host := ""
	if parsed, err := url.Parse(origin); err == nil {
		host = parsed.Hostname()
	}
	for _, pattern := range s.origins {
		if pattern == "*" || pattern == origin {
			return true
		}
		if !strings.Contains(pattern, "*.") {
			continue
		}
		patternHost := pattern
		if strings.Contains(pattern, "://") {
			if parsed, err := url.Parse(pattern); err == nil {
				patternHost = parsed.Hostname()
			}
		}
		if strings.HasPrefix(patternHost, "*.") && strings.HasSuffix(host, patternHost[1:]) {
			return true
		}
	}
	return false
}

func (s *Server) setupRoutes() {
	key := s.cfg.Registry.Key

	s.router.GET("/health", s.GetHealth)

	api := s.router.Group("/api")
	{
		api.GET("/seed", s.GetSeed)
		api.GET("/story", s.GetStory)
		api.POST("/telemetry", s.PostTelemetry)

		api.GET("/stations", s.ListStations)
		api.POST("/stations", middleware.RequireKey(key), s.UpsertStation)
		api.GET("/stations/:id", s.GetStation)
		api.GET("/stations/:id/status", s.GetStationStatus)
		api.POST("/stations/:id/heartbeat", middleware.RequireKey(key), s.Heartbeat)
		api.POST("/stations/:id/listen", middleware.RequireKey(key), s.Listen)

		// Web broadcast lifecycle. Anonymous mode must stay reachable
		// without the key, so authorization happens inside the handler.
		api.POST("/stations/web/begin", s.WebBegin)
		api.POST("/stations/web/stop", s.WebStop)

		api.GET("/rooms", s.ListRooms)
		api.GET("/rooms/:roomId", s.GetRoom)
		api.POST("/rooms/:roomId/presence", middleware.RequireKey(key), s.RoomPresence)
	}

	s.router.NoRoute(s.ServeStatic)
}

// ServeStatic is the fallback for the bundled web client. Paths are
// confined to the configured static directory.
func (s *Server) ServeStatic(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	reqPath := c.Request.URL.Path
	if reqPath == "/" {
		reqPath = "/index.html"
	}
	root, err := filepath.Abs(s.cfg.Server.StaticDir)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	full := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(reqPath, "/")))
	if !strings.HasPrefix(full, root+string(os.PathSeparator)) {
		c.Status(http.StatusForbidden)
		return
	}
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		c.Status(http.StatusNotFound)
		return
	}
	c.File(full)
}

// Start runs the server on the configured address
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
