package config

import (
	"log"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/sirupsen/logrus"
)

var Config = struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Port        int    `env:"PORT" envDefault:"8081"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9103"`

	// Source selects the upstream transport: none, redis or websocket
	Source    string `env:"SOURCE" envDefault:"none"`
	RedisURI  string `env:"REDIS_URI"`
	SourceURL string `env:"SOURCE_URL"`

	// Delivery report settings
	WebhookURL            string `env:"WEBHOOK_URL"`
	ReportBufferSize      int    `env:"REPORT_BUFFER_SIZE" envDefault:"200"`
	ReportFlushIntervalMs int    `env:"REPORT_FLUSH_INTERVAL_MS" envDefault:"500"`

	// Other settings
	CorsEnable            bool     `env:"CORS_ENABLE"`
	HeartbeatInterval     int      `env:"HEARTBEAT_INTERVAL" envDefault:"10"`
	SessionBufferSize     int      `env:"SESSION_BUFFER_SIZE" envDefault:"100"`
	RPSLimit              int      `env:"RPS_LIMIT" envDefault:"5"`
	RateLimitsByPassToken []string `env:"RATE_LIMITS_BY_PASS_TOKEN"`
	ConnectionsLimit      int      `env:"CONNECTIONS_LIMIT" envDefault:"50"`
	SelfSignedTLS         bool     `env:"SELF_SIGNED_TLS" envDefault:"false"`
	TrustedProxyRanges    []string `env:"TRUSTED_PROXY_RANGES" envDefault:"0.0.0.0/0"`
	PprofEnabled          bool     `env:"PPROF_ENABLED" envDefault:"true"`
	BridgeName            string   `env:"BRIDGE_NAME" envDefault:"convoline-bridge"`
}{}

func LoadConfig() {
	if err := env.Parse(&Config); err != nil {
		log.Fatalf("config parsing failed: %v\n", err)
	}

	level, err := logrus.ParseLevel(strings.ToLower(Config.LogLevel))
	if err != nil {
		log.Printf("Invalid LOG_LEVEL '%s', using default 'info'. Valid levels: panic, fatal, error, warn, info, debug, trace", Config.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
