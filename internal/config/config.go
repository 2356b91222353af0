package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr        string `mapstructure:"addr"`
		MetricsPort string `mapstructure:"metrics_port"`
		StaticDir   string `mapstructure:"static_dir"`
		Version     string `mapstructure:"version"`
	} `mapstructure:"server"`
	Registry struct {
		DataDir       string `mapstructure:"data_dir"`
		DefaultRegion string `mapstructure:"default_region"`
		Key           string `mapstructure:"key"`
		Telemetry     bool   `mapstructure:"telemetry"`
	} `mapstructure:"registry"`
	Ingest struct {
		Secret          string `mapstructure:"secret"`
		BroadcastSecret string `mapstructure:"broadcast_secret"`
		RTMPBase        string `mapstructure:"rtmp_base"`
		HLSBase         string `mapstructure:"hls_base"`
		WebRTCBase      string `mapstructure:"webrtc_base"`
	} `mapstructure:"ingest"`
	Sessions struct {
		AnonSessionMs    int64 `mapstructure:"anon_session_ms"`
		AnonCooldownMs   int64 `mapstructure:"anon_cooldown_ms"`
		CreatorSessionMs int64 `mapstructure:"creator_session_ms"`
	} `mapstructure:"sessions"`
	CORS struct {
		AllowedOrigins string `mapstructure:"allowed_origins"`
	} `mapstructure:"cors"`
}

// DefaultSecret is the last resort of the ingest secret fallback chain.
// Any deployment still running on it is wide open; Load shouts about it.
const DefaultSecret = "dev-secret"

var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"https://keegan-khaki.vercel.app",
}

func Load() *Config {
	viper.SetEnvPrefix("KEEGAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register keys
	viper.BindEnv("server.addr")
	viper.BindEnv("server.metrics_port")
	viper.BindEnv("server.static_dir")
	viper.BindEnv("server.version")
	viper.BindEnv("registry.data_dir")
	viper.BindEnv("registry.default_region")
	viper.BindEnv("registry.key")
	viper.BindEnv("registry.telemetry")
	viper.BindEnv("ingest.secret")
	viper.BindEnv("ingest.broadcast_secret")
	viper.BindEnv("ingest.rtmp_base")
	viper.BindEnv("ingest.hls_base")
	viper.BindEnv("ingest.webrtc_base")
	viper.BindEnv("sessions.anon_session_ms")
	viper.BindEnv("sessions.anon_cooldown_ms")
	viper.BindEnv("sessions.creator_session_ms")
	viper.BindEnv("cors.allowed_origins")

	// Defaults
	viper.SetDefault("server.addr", ":8090")
	viper.SetDefault("server.metrics_port", ":9092")
	viper.SetDefault("server.static_dir", "./static")
	viper.SetDefault("server.version", "0.3.0")
	viper.SetDefault("registry.data_dir", "./data")
	viper.SetDefault("registry.default_region", "us-midwest")
	viper.SetDefault("registry.telemetry", false)
	viper.SetDefault("ingest.rtmp_base", "rtmp://localhost/live")
	viper.SetDefault("ingest.hls_base", "http://localhost:8888/live")
	viper.SetDefault("ingest.webrtc_base", "http://localhost:8889/live")
	viper.SetDefault("sessions.anon_session_ms", 4*60*1000)
	viper.SetDefault("sessions.anon_cooldown_ms", 10*60*1000)
	viper.SetDefault("sessions.creator_session_ms", 12*60*60*1000)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	return &cfg
}

// IngestSecret resolves the signing secret through the legacy fallback
// chain: KEEGAN_INGEST_SECRET, then KEEGAN_BROADCAST_SECRET, then the
// registry key, then the fixed dev default.
func (c *Config) IngestSecret() string {
	if c.Ingest.Secret != "" {
		return c.Ingest.Secret
	}
	if c.Ingest.BroadcastSecret != "" {
		return c.Ingest.BroadcastSecret
	}
	if c.Registry.Key != "" {
		return c.Registry.Key
	}
	return DefaultSecret
}

// WarnInsecureSecret logs loudly when the resolved secret is the fixed
// default. Tokens signed with it are forgeable by anyone who reads the
// source.
func (c *Config) WarnInsecureSecret() {
	if c.IngestSecret() == DefaultSecret {
		log.Println("⚠️  SECURITY: ingest secret is the built-in default ('dev-secret').")
		log.Println("⚠️  Set KEEGAN_INGEST_SECRET before exposing this registry.")
	}
}

// AllowedOrigins parses the configured CORS origin list. Empty config
// keeps the historical localhost + production defaults; "*" opens it up.
func (c *Config) AllowedOrigins() []string {
	raw := strings.TrimSpace(c.CORS.AllowedOrigins)
	if raw == "" {
		return defaultAllowedOrigins
	}
	if raw == "*" {
		return []string{"*"}
	}
	var origins []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			origins = append(origins, item)
		}
	}
	return origins
}
