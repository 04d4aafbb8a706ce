// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env string // logging mode: "prod" or anything else for development

	// SlashID API
	Environment    string // production | sandbox, validated by gateway.New
	OrganizationID string
	APIKey         string
	APIBaseURL     string // overrides the environment's base URL, e.g. for a proxy
	HTTPTimeout    time.Duration

	// Webhook call verification
	JWKSTTL         time.Duration
	JWKSRateLimited bool

	// webhook-receiver
	ReceiverAddr string
	ReceiverPath string

	// Key cache backends; both optional
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:             env("SLASHID_LOG_ENV", "dev"),
		Environment:     env("SLASHID_ENVIRONMENT", "sandbox"),
		OrganizationID:  env("SLASHID_ORG_ID", ""),
		APIKey:          env("SLASHID_API_KEY", ""),
		APIBaseURL:      env("SLASHID_API_BASE_URL", ""),
		HTTPTimeout:     envDur("SLASHID_HTTP_TIMEOUT_SEC", 30) * time.Second,
		JWKSTTL:         envDur("SLASHID_JWKS_TTL_SEC", 3600) * time.Second,
		JWKSRateLimited: envBool("SLASHID_JWKS_RATE_LIMITED", true),
		ReceiverAddr:    env("WEBHOOK_RECEIVER_ADDR", ":8080"),
		ReceiverPath:    env("WEBHOOK_RECEIVER_PATH", "/slashid/webhook"),
		RedisURL:        env("REDIS_URL", ""),
		DatabaseURL:     env("DATABASE_URL", ""),
	}
	if cfg.OrganizationID == "" || cfg.APIKey == "" {
		log.Println("[WARN] SLASHID_ORG_ID or SLASHID_API_KEY not set; API calls will be rejected")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return time.Duration(def)
		}
		return time.Duration(i)
	}
	return time.Duration(def)
}
