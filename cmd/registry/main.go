package main

import (
	"log"
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keegan-registry/internal/api"
	"keegan-registry/internal/config"
	"keegan-registry/internal/registry"
	"keegan-registry/internal/telemetry"
	"keegan-registry/internal/token"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Keegan Registry Server...")

	// 1. Setup Configuration
	cfg := config.Load()
	cfg.WarnInsecureSecret()

	// 2. Initialize Stores
	clock := registry.RealClock{}
	stations := registry.NewStationStore(filepath.Join(cfg.Registry.DataDir, "stations.json"), clock, cfg.Registry.DefaultRegion)
	rooms := registry.NewRoomStore(filepath.Join(cfg.Registry.DataDir, "rooms.json"), clock, cfg.Registry.DefaultRegion)

	// 3. Session Manager
	codec := token.NewCodec(cfg.IngestSecret(), clock.Now)
	sessions := registry.NewSessionManager(clock, codec, stations, registry.IngestBases{
		RTMP:   cfg.Ingest.RTMPBase,
		HLS:    cfg.Ingest.HLSBase,
		WebRTC: cfg.Ingest.WebRTCBase,
	}, cfg.Sessions.AnonCooldownMs, cfg.Sessions.CreatorSessionMs)

	// 4. Telemetry
	tel := telemetry.NewWriter(cfg.Registry.DataDir, cfg.Registry.Telemetry, clock.Now)

	// 5. Setup Metrics
	api.RegisterMetrics()
	go func() {
		http.Handle("/_metrics", promhttp.Handler())
		log.Printf("📊 Metrics exposed at http://localhost%s/_metrics", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(cfg.Server.MetricsPort, nil); err != nil {
			log.Printf("⚠️ Metrics server error: %v", err)
		}
	}()

	// 6. Start Server
	srv := api.New(cfg, clock, stations, rooms, sessions, tel)
	log.Printf("🚀 Registry server starting on %s", cfg.Server.Addr)
	if err := srv.Start(cfg.Server.Addr); err != nil {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}
